package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai_detector/internal/app"
	"ai_detector/internal/config"
	"ai_detector/internal/ingest"
	"ai_detector/internal/logging"
	"ai_detector/internal/provenance"
	"ai_detector/internal/workspace"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("aidetect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "config file (.toml, .yaml or .json)")
	local := fs.Bool("local", false, "use local frequency embeddings instead of the embedding endpoint")
	topN := fs.Int("top", 0, "number of top words in the report")
	save := fs.Bool("save", false, "store the report in the database and the workspace archive")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: aidetect [-config f] [-local] [-top n] [-save] [file|-]\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return 2
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(stderr, "aidetect: %v\n", err)
		return 1
	}
	ws, wsErr := workspace.EnsureDefault()
	if *configPath == "" && wsErr == nil {
		if _, err := os.Stat(ws.ConfigFile()); err == nil {
			*configPath = ws.ConfigFile()
		}
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "aidetect: %v\n", err)
		return 1
	}
	if *local {
		cfg.Detect.LocalEmbedding = true
	}
	if *topN > 0 {
		cfg.Detect.TopN = *topN
	}
	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Component: "aidetect", Output: stderr})

	if *save && wsErr != nil {
		logger.Error("workspace unavailable", slog.String("error", wsErr.Error()))
		return 1
	}
	a, err := app.Build(ctx, cfg, app.Options{
		Logger:     logger,
		OpenStore:  *save,
		DefaultDSN: ws.DatabaseFile(),
		Release:    version,
	})
	if err != nil {
		logger.Error("startup failed", slog.String("error", err.Error()))
		return 1
	}
	defer a.Close()

	doc, err := ingest.ReadInput(fs.Arg(0), stdin)
	if err != nil {
		logger.Error("read input failed", slog.String("error", err.Error()))
		return 1
	}

	report := a.Pipeline.Run(ctx, provenance.Input{Text: doc.Text})
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Error("write report failed", slog.String("error", err.Error()))
		return 1
	}

	if *save {
		now := time.Now()
		if err := a.Store.SaveReport(ctx, report, now); err != nil {
			logger.Error("save report failed", slog.String("error", err.Error()))
			return 1
		}
		path, err := ws.ArchiveReport(report.RequestID, now, report)
		if err != nil {
			logger.Error("archive report failed", slog.String("error", err.Error()))
			return 1
		}
		logger.Info("report saved", slog.String("request_id", report.RequestID), slog.String("path", path))
	}
	if report.Degraded() {
		logger.Warn("report partially failed", slog.String("request_id", report.RequestID), slog.Int("errors", len(report.Errors)))
	}
	return 0
}
