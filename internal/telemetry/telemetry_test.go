package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"

	"ai_detector/internal/provenance"
)

func TestNewWithoutDSNIsNop(t *testing.T) {
	r, err := New(Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := r.(Nop); !ok {
		t.Fatalf("expected Nop reporter, got %T", r)
	}
	r.ReportDegraded(context.Background(), provenance.Degradation{Err: errors.New("x")})
	if !r.Flush(time.Second) {
		t.Fatal("nop flush must succeed")
	}
}

func TestSentryTagsDegradation(t *testing.T) {
	var (
		mu     sync.Mutex
		events []*sentry.Event
	)
	r, err := New(Options{
		Environment: "test",
		BeforeSend: func(e *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, e)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	r.ReportDegraded(context.Background(), provenance.Degradation{
		RequestID: "req-9",
		Analyzer:  provenance.AnalyzerJudgment,
		Type:      "contract_violation",
		Err:       errors.New("judgment response lacks ai_probability/reasoning"),
	})
	r.ReportDegraded(context.Background(), provenance.Degradation{Analyzer: "ignored"})
	r.Flush(time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Tags["analyzer"] != "judgment" || e.Tags["error_type"] != "contract_violation" || e.Tags["request_id"] != "req-9" {
		t.Fatalf("unexpected tags %v", e.Tags)
	}
	if e.Level != sentry.LevelWarning {
		t.Fatalf("unexpected level %v", e.Level)
	}
}
