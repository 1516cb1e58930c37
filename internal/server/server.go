// Package server exposes the detector and the credential relay over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"ai_detector/internal/provenance"
)

const maxDetectBytes = 4 << 20

type Detector interface {
	Run(ctx context.Context, in provenance.Input) provenance.Report
}

// ReportSink persists finished reports. Failures are logged and never change
// the response.
type ReportSink interface {
	SaveReport(ctx context.Context, report provenance.Report, createdAt time.Time) error
}

type Config struct {
	Addr     string
	Detector Detector
	// Relay is mounted on RelayPattern when set.
	Relay        http.Handler
	RelayPattern string
	Sink         ReportSink
	Logger       *slog.Logger
}

type Server struct {
	cfg    Config
	logger *slog.Logger
	http   *http.Server
}

func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, logger: logger}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthCheck)
	if s.cfg.Detector != nil {
		mux.HandleFunc("/detect", s.handleDetect)
	}
	if s.cfg.Relay != nil && s.cfg.RelayPattern != "" {
		mux.Handle(s.cfg.RelayPattern, s.cfg.Relay)
	}
	return mux
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", slog.String("addr", s.cfg.Addr))
		errCh <- s.http.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) healthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "aidetect"})
}

type detectRequest struct {
	Text      string `json:"text"`
	RequestID string `json:"request_id"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed"})
		return
	}
	var req detectRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxDetectBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "detail": err.Error()})
		return
	}
	if req.RequestID == "" {
		req.RequestID = r.Header.Get("X-Request-ID")
	}

	report := s.cfg.Detector.Run(r.Context(), provenance.Input{RequestID: req.RequestID, Text: req.Text})
	if s.cfg.Sink != nil {
		if err := s.cfg.Sink.SaveReport(context.WithoutCancel(r.Context()), report, time.Now()); err != nil {
			s.logger.Warn("save report failed", slog.String("request_id", report.RequestID), slog.String("error", err.Error()))
		}
	}
	w.Header().Set("X-Request-ID", report.RequestID)
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
