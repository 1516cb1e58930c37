// Package relay forwards model calls to the upstream provider so the
// provider credential never leaves the server.
package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const maxBodyBytes = 8 << 20

type Config struct {
	// Prefix is the mount path, e.g. /api/deepseek. Requests to
	// Prefix/<action> go to Upstream/<action>.
	Prefix   string
	Upstream string
	APIKey   string
	Timeout  time.Duration
	Client   *http.Client
	Logger   *slog.Logger
}

type Handler struct {
	prefix   string
	upstream string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

func New(cfg Config) *Handler {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		prefix:   "/" + strings.Trim(cfg.Prefix, "/"),
		upstream: strings.TrimSuffix(strings.TrimSpace(cfg.Upstream), "/"),
		apiKey:   cfg.APIKey,
		client:   client,
		logger:   logger,
	}
	if h.upstream == "" {
		logger.Warn("relay upstream not configured, forwarded requests will fail", slog.String("prefix", h.prefix))
	}
	return h
}

// Pattern is the ServeMux pattern the handler expects to be mounted on.
func (h *Handler) Pattern() string { return h.prefix + "/" }

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed"})
		return
	}
	action := strings.TrimPrefix(r.URL.Path, h.prefix+"/")
	if action == "" || action == r.URL.Path || strings.Contains(action, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown_action"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "detail": err.Error()})
		return
	}

	status, respBody, contentType, err := h.forward(r, action, body)
	if err != nil {
		h.logger.Error("relay request failed",
			slog.String("action", action),
			slog.String("request_id", r.Header.Get("X-Request-ID")),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "proxy_error", "detail": err.Error()})
		return
	}
	h.logger.Debug("relay request forwarded",
		slog.String("action", action),
		slog.Int("status", status),
		slog.String("request_id", r.Header.Get("X-Request-ID")))
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(status)
	_, _ = w.Write(respBody)
}

func (h *Handler) forward(r *http.Request, action string, body []byte) (int, []byte, string, error) {
	if h.upstream == "" {
		return 0, nil, "", fmt.Errorf("upstream base URL not configured")
	}
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, h.upstream+"/"+action, bytes.NewReader(body))
	if err != nil {
		return 0, nil, "", fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	if id := r.Header.Get("X-Request-ID"); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, nil, "", err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, "", fmt.Errorf("read upstream response: %w", err)
	}
	return resp.StatusCode, respBody, resp.Header.Get("Content-Type"), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
