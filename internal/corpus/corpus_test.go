package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	samples := Default()
	if len(samples) != 2 {
		t.Fatalf("expected 2 default samples, got %d", len(samples))
	}
	if err := Validate(samples); err != nil {
		t.Fatalf("default corpus invalid: %v", err)
	}
}

func TestValidateRejectsDuplicatesAndEmptyIDs(t *testing.T) {
	err := Validate([]Sample{{ID: "a"}, {ID: "a"}, {ID: " "}})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.json")
	body := `[{"id":"h1","text":"first"},{"id":"h2","text":"second","embedding":[0,1]}]`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	samples, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(samples) != 2 || samples[0].ID != "h1" || len(samples[1].Embedding) != 2 {
		t.Fatalf("unexpected samples %+v", samples)
	}

	if err := os.WriteFile(path, []byte(`[{"id":""}]`), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for invalid corpus")
	}
}

func TestHolderReplaceCopies(t *testing.T) {
	in := []Sample{{ID: "a", Text: "x", Embedding: []float64{1, 2}}}
	h := NewHolder(in)
	in[0].Embedding[0] = 99
	in[0].Text = "changed"
	got := h.Samples()
	if got[0].Text != "x" || got[0].Embedding[0] != 1 {
		t.Fatalf("holder snapshot shares caller memory: %+v", got)
	}
}

func TestWatchReloadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.json")
	if err := os.WriteFile(path, []byte(`[{"id":"a","text":"one"}]`), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	samples, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	h := NewHolder(samples)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := Watch(ctx, path, h, nil); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if err := os.WriteFile(path, []byte(`[{"id":"a","text":"one"},{"id":"b","text":"two"}]`), 0o644); err != nil {
		t.Fatalf("rewrite corpus: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(h.Samples()) == 2 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected reload to 2 samples, got %d", len(h.Samples()))
}
