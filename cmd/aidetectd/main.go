package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"ai_detector/internal/app"
	"ai_detector/internal/config"
	"ai_detector/internal/logging"
	"ai_detector/internal/relay"
	"ai_detector/internal/server"
	"ai_detector/internal/workspace"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "config file (.toml, .yaml or .json)")
	noStore := flag.Bool("no-store", false, "do not persist reports")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "aidetectd: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "aidetectd: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Component: "aidetectd"})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger, !*noStore); err != nil {
		logger.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger, persist bool) error {
	opts := app.Options{Logger: logger, OpenStore: persist, Release: version}
	if persist && cfg.Database.DSN == "" {
		ws, err := workspace.EnsureDefault()
		if err != nil {
			return err
		}
		opts.DefaultDSN = ws.DatabaseFile()
	}
	a, err := app.Build(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Corpus.Watch {
		if err := a.WatchCorpus(ctx); err != nil {
			return err
		}
	}

	rl := relay.New(relay.Config{
		Prefix:   cfg.Relay.Prefix,
		Upstream: cfg.Relay.Upstream,
		APIKey:   cfg.Relay.APIKey,
		Logger:   logger,
	})
	srvCfg := server.Config{
		Addr:         cfg.Relay.Addr,
		Detector:     a.Pipeline,
		Relay:        rl,
		RelayPattern: rl.Pattern(),
		Logger:       logger,
	}
	if a.Store != nil {
		srvCfg.Sink = a.Store
	}
	return server.New(srvCfg).Run(ctx)
}
