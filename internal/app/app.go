// Package app assembles the detection pipeline from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ai_detector/internal/config"
	"ai_detector/internal/corpus"
	"ai_detector/internal/judge"
	"ai_detector/internal/logging"
	"ai_detector/internal/model"
	"ai_detector/internal/perplexity"
	"ai_detector/internal/provenance"
	"ai_detector/internal/similarity"
	"ai_detector/internal/store"
	"ai_detector/internal/telemetry"
)

const telemetryFlushTimeout = 2 * time.Second

type Options struct {
	Logger *slog.Logger
	// OpenStore opens the configured database. DefaultDSN is used for sqlite
	// when the config has no DSN.
	OpenStore  bool
	DefaultDSN string
	Release    string
}

type App struct {
	Config   config.Config
	Pipeline *provenance.Pipeline
	Corpus   *corpus.Holder
	Store    *store.Store
	Reporter telemetry.Reporter
	Logger   *slog.Logger
}

func Build(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	reporter, err := telemetry.New(telemetry.Options{
		DSN:         cfg.Telemetry.SentryDSN,
		Environment: cfg.Telemetry.Environment,
		Release:     opts.Release,
	})
	if err != nil {
		return nil, err
	}
	a.Reporter = reporter

	if opts.OpenStore {
		dsn := cfg.Database.DSN
		if dsn == "" {
			dsn = opts.DefaultDSN
		}
		if dsn == "" {
			return nil, errors.New("no database dsn configured")
		}
		st, err := store.Open(ctx, cfg.Database.Driver, dsn)
		if err != nil {
			return nil, err
		}
		a.Store = st
	}

	samples, source, err := a.loadCorpus(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Corpus = corpus.NewHolder(samples)
	logger.Info("reference corpus loaded", slog.String("source", source), slog.Int("samples", len(samples)))

	client := model.NewClient(model.ClientConfig{
		BaseURL:       cfg.Model.BaseURL,
		APIKey:        cfg.Model.APIKey,
		Timeout:       cfg.Model.Timeout(),
		RatePerSecond: cfg.Model.RatePerSecond,
		Burst:         cfg.Model.Burst,
	})

	var embedder similarity.Embedder
	if cfg.Detect.LocalEmbedding {
		embedder = similarity.LocalEmbedder{Dim: cfg.Detect.EmbeddingDim}
		logger.Warn("using local frequency embeddings, similarity scores are low fidelity")
	} else {
		embedder = similarity.NewRemoteEmbedder(client.Endpoint(cfg.Model.EmbeddingAction), cfg.Model.ID)
	}
	ranker, err := similarity.NewRanker(embedder, cfg.Detect.EmbeddingCache)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	pplCfg := perplexity.DefaultConfig()
	pplCfg.Model = cfg.Model.ID
	pplCfg.Mode = cfg.Detect.SegmentMode
	pplCfg.WindowWords = cfg.Detect.WindowWords
	pplCfg.OverlapWords = cfg.Detect.OverlapWords
	pplCfg.Workers = cfg.Detect.PerplexityWorkers

	a.Pipeline = provenance.New(provenance.Config{TopN: cfg.Detect.TopN}, provenance.Analyzers{
		Perplexity: perplexity.New(client.Endpoint(cfg.Model.PerplexityAction), pplCfg),
		Similarity: ranker,
		Judgment:   judge.New(client.Endpoint(cfg.Model.JudgeAction), cfg.Model.ID),
		Corpus:     a.Corpus,
		Logger:     logging.PipelineLogger{L: logger},
		Reporter:   reporter,
	})
	return a, nil
}

// loadCorpus prefers the configured file, then the store, then the built-in
// samples. A store that is still empty is seeded with the chosen corpus.
func (a *App) loadCorpus(ctx context.Context) ([]corpus.Sample, string, error) {
	if path := a.Config.Corpus.File; path != "" {
		samples, err := corpus.LoadFile(path)
		if err != nil {
			return nil, "", err
		}
		return samples, path, a.seedStore(ctx, samples, true)
	}
	if a.Store != nil {
		samples, err := a.Store.LoadSamples(ctx)
		if err != nil {
			return nil, "", err
		}
		if len(samples) > 0 {
			return samples, "store", nil
		}
	}
	samples := corpus.Default()
	return samples, "default", a.seedStore(ctx, samples, false)
}

func (a *App) seedStore(ctx context.Context, samples []corpus.Sample, overwrite bool) error {
	if a.Store == nil {
		return nil
	}
	if !overwrite {
		n, err := a.Store.CountRows(ctx, "reference_samples")
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
	}
	if err := a.Store.ReplaceSamples(ctx, samples); err != nil {
		return fmt.Errorf("seed reference samples: %w", err)
	}
	return nil
}

// WatchCorpus reloads the configured corpus file on change until ctx is
// done. It is a no-op without a corpus file.
func (a *App) WatchCorpus(ctx context.Context) error {
	path := a.Config.Corpus.File
	if path == "" {
		return nil
	}
	return corpus.Watch(ctx, path, a.Corpus, func(err error) {
		a.Logger.Warn("corpus reload failed", slog.String("path", path), slog.String("error", err.Error()))
	})
}

func (a *App) Close() error {
	var errs []error
	if a.Reporter != nil {
		a.Reporter.Flush(telemetryFlushTimeout)
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
