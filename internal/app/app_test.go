package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ai_detector/internal/config"
	"ai_detector/internal/provenance"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestBuildRunsAgainstHTTPModel(t *testing.T) {
	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/perplexity":
			_, _ = w.Write([]byte(`{"logprobs":[-0.5,-0.5]}`))
		case "/judge":
			_, _ = w.Write([]byte(`{"probability":"0.25","explanation":"varied"}`))
		case "/embedding":
			_, _ = w.Write([]byte(`{"embedding":[1,2,3]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer model.Close()

	cfg := config.Defaults()
	cfg.Model.BaseURL = model.URL
	a, err := Build(context.Background(), cfg, Options{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer a.Close()

	report := a.Pipeline.Run(context.Background(), provenance.Input{Text: "Short one. Another short one."})
	if report.Status != provenance.StateCompleted {
		t.Fatalf("expected completed, got %s errors=%+v", report.Status, report.Errors)
	}
	if len(report.Perplexity) != 2 || *report.Judgment.AIProbability != 0.25 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Similarity.BestMatchID == nil || *report.Similarity.BestMatchID != "g1" {
		t.Fatalf("expected first default sample to win the tie, got %+v", report.Similarity)
	}
}

func TestBuildSeedsStoreAndPrefersCorpusFile(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "detector.db")
	cfg := config.Defaults()
	cfg.Detect.LocalEmbedding = true

	a, err := Build(context.Background(), cfg, Options{Logger: quietLogger(), OpenStore: true, DefaultDSN: dsn})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	n, err := a.Store.CountRows(context.Background(), "reference_samples")
	if err != nil || n != 2 {
		t.Fatalf("expected default corpus seeded into store, got %d err=%v", n, err)
	}
	_ = a.Close()

	corpusPath := filepath.Join(dir, "corpus.json")
	if err := os.WriteFile(corpusPath, []byte(`[{"id":"only","text":"a human wrote this"}]`), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	cfg.Corpus.File = corpusPath
	a, err = Build(context.Background(), cfg, Options{Logger: quietLogger(), OpenStore: true, DefaultDSN: dsn})
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	defer a.Close()
	if got := a.Corpus.Samples(); len(got) != 1 || got[0].ID != "only" {
		t.Fatalf("expected corpus file to win, got %+v", got)
	}
	stored, err := a.Store.LoadSamples(context.Background())
	if err != nil || len(stored) != 1 || !strings.EqualFold(stored[0].ID, "only") {
		t.Fatalf("expected store to follow corpus file, got %+v err=%v", stored, err)
	}
}

func TestBuildFailsOnBadCorpusFile(t *testing.T) {
	cfg := config.Defaults()
	cfg.Corpus.File = filepath.Join(t.TempDir(), "missing.json")
	if _, err := Build(context.Background(), cfg, Options{Logger: quietLogger()}); err == nil {
		t.Fatal("expected error for missing corpus file")
	}
}
