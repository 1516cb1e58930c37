// Package telemetry forwards degraded analyzers to Sentry.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"ai_detector/internal/provenance"
)

type Reporter interface {
	provenance.Reporter
	Flush(timeout time.Duration) bool
}

type Options struct {
	DSN         string
	Environment string
	Release     string
	// BeforeSend may inspect or drop events before they leave the process.
	BeforeSend func(*sentry.Event, *sentry.EventHint) *sentry.Event
}

// New returns a Sentry reporter, or Nop when no DSN is configured.
func New(opts Options) (Reporter, error) {
	if opts.DSN == "" && opts.BeforeSend == nil {
		return Nop{}, nil
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         opts.DSN,
		Environment: opts.Environment,
		Release:     opts.Release,
		BeforeSend:  opts.BeforeSend,
	})
	if err != nil {
		return nil, fmt.Errorf("create sentry client: %w", err)
	}
	return &Sentry{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

type Sentry struct {
	hub *sentry.Hub
}

func (s *Sentry) ReportDegraded(_ context.Context, d provenance.Degradation) {
	if d.Err == nil {
		return
	}
	// Each report gets its own hub so concurrent requests never share a scope.
	hub := s.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelWarning)
		scope.SetTag("analyzer", d.Analyzer)
		scope.SetTag("error_type", d.Type)
		scope.SetTag("request_id", d.RequestID)
	})
	hub.CaptureException(d.Err)
}

func (s *Sentry) Flush(timeout time.Duration) bool {
	return s.hub.Flush(timeout)
}

type Nop struct{}

func (Nop) ReportDegraded(context.Context, provenance.Degradation) {}

func (Nop) Flush(time.Duration) bool { return true }
