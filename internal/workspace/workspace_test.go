package workspace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEnsureAtCreatesLayout(t *testing.T) {
	base := filepath.Join(t.TempDir(), BaseDirName)
	p, err := EnsureAt(base)
	if err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	for _, dir := range []string{p.Configs, p.Reports, p.Data} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
	if filepath.Dir(p.DatabaseFile()) != p.Data || filepath.Base(p.ConfigFile()) != "config.toml" {
		t.Fatalf("unexpected derived paths %s %s", p.DatabaseFile(), p.ConfigFile())
	}
	if _, err := EnsureAt(base); err != nil {
		t.Fatalf("ensure must be idempotent: %v", err)
	}
}

func TestArchiveReport(t *testing.T) {
	p, err := EnsureAt(t.TempDir())
	if err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	path, err := p.ArchiveReport("../evil id", created, map[string]any{"status": "completed"})
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if filepath.Dir(path) != p.Reports {
		t.Fatalf("report escaped reports dir: %s", path)
	}
	if base := filepath.Base(path); !strings.HasPrefix(base, "20260102T030405Z-") || strings.Contains(base, "/") {
		t.Fatalf("unexpected report name %s", base)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read archived report: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(raw, &decoded); err != nil || decoded["status"] != "completed" {
		t.Fatalf("unexpected archived body %s err=%v", raw, err)
	}
}
