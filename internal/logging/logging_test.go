package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewJSONRedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Format: "json", Component: "aidetect", Output: &buf})
	l.Debug("configured", slog.String("api_key", "sk-live-123"), slog.String("base_url", "http://x"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["api_key"] != "[REDACTED]" {
		t.Fatalf("expected api_key to be redacted, got %v", entry["api_key"])
	}
	if entry["base_url"] != "http://x" || entry["component"] != "aidetect" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Output: &buf})
	l.Info("hidden")
	l.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestPipelineLogger(t *testing.T) {
	var buf bytes.Buffer
	p := PipelineLogger{L: New(Config{Output: &buf})}
	p.Log("WARN", "DETECT", "judgment degraded", "timeout")
	out := buf.String()
	for _, want := range []string{"level=WARN", "stage=DETECT", "judgment degraded", "detail=timeout"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"DEBUG": slog.LevelDebug, "warning": slog.LevelWarn, "error": slog.LevelError, "ANALYSIS": slog.LevelInfo}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
