// Package model talks to the external model endpoints used by the
// perplexity, similarity and judgment analyzers.
//
// Every endpoint accepts a POST of {"model": ..., "text": ...} and answers
// with a JSON body. A Client works the same against the credential relay
// (for example http://localhost:5173/api/deepseek) or the upstream provider.
package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 8 << 20

// ErrStatus is wrapped by every StatusError.
var ErrStatus = errors.New("model endpoint returned non-success status")

// Request is the body sent to every model endpoint.
type Request struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

// Endpoint scores a text and decodes the structured answer into out.
type Endpoint interface {
	Call(ctx context.Context, req Request, out any) error
}

// EndpointFunc adapts a function to Endpoint.
type EndpointFunc func(ctx context.Context, req Request, out any) error

func (f EndpointFunc) Call(ctx context.Context, req Request, out any) error {
	return f(ctx, req, out)
}

// JSONFunc adapts a function returning a raw JSON body to Endpoint. The body
// is decoded into out exactly as HTTPEndpoint would decode it.
type JSONFunc func(ctx context.Context, req Request) ([]byte, error)

func (f JSONFunc) Call(ctx context.Context, req Request, out any) error {
	body, err := f(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type StatusError struct {
	Action string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s: status %d", e.Action, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Action, e.Code, body)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RatePerSecond limits outbound calls across all endpoints of the
	// client. Zero or negative disables limiting.
	RatePerSecond float64
	Burst         int
	HTTPClient    *http.Client
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(cfg ClientConfig) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return &Client{
		baseURL: strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  cfg.APIKey,
		http:    hc,
		limiter: limiter,
	}
}

// Endpoint returns the endpoint at baseURL/action. An empty action targets
// baseURL itself.
func (c *Client) Endpoint(action string) *HTTPEndpoint {
	return &HTTPEndpoint{client: c, action: strings.Trim(action, "/")}
}

type HTTPEndpoint struct {
	client *Client
	action string
}

func (e *HTTPEndpoint) URL() string {
	if e.action == "" {
		return e.client.baseURL
	}
	return e.client.baseURL + "/" + e.action
}

func (e *HTTPEndpoint) Call(ctx context.Context, req Request, out any) error {
	c := e.client
	name := e.action
	if name == "" {
		name = "model"
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limit wait: %w", name, err)
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", name, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestIDOrNew(ctx))
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Action: name, Code: resp.StatusCode, Body: string(body)}
	}
	if readErr != nil {
		return fmt.Errorf("%s: read response: %w", name, readErr)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", name, err)
	}
	return nil
}

type requestIDKey struct{}

// WithRequestID attaches the detection request id to ctx so every outbound
// call carries it in X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// NewRequestID returns a fresh random request id.
func NewRequestID() string {
	return uuid.NewString()
}

func requestIDOrNew(ctx context.Context) string {
	if id := RequestID(ctx); id != "" {
		return id
	}
	return NewRequestID()
}
