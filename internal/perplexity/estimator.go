// Package perplexity turns token log-probabilities from an external language
// model into a per-segment perplexity curve.
package perplexity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"

	"ai_detector/internal/chunk"
	"ai_detector/internal/model"
	"ai_detector/internal/pipeline"
)

// ErrMissingLogProbs means the endpoint answered without logprobs or probs.
var ErrMissingLogProbs = errors.New("perplexity response has neither logprobs nor probs")

const labelRunes = 30

// Segment modes.
const (
	ModeSentence = "sentence"
	ModeWindow   = "window"
)

type Status string

const (
	// StatusOK means the endpoint was measured.
	StatusOK Status = "ok"
	// StatusEmpty means the segment text was empty and nothing was sent.
	StatusEmpty Status = "empty"
	// StatusFailed means the call failed or the response was unusable.
	StatusFailed Status = "failed"
)

// Segment is one point of the perplexity curve. Perplexity is nil when the
// value is undefined (infinite); Status tells an empty segment apart from a
// failed measurement.
type Segment struct {
	Label      string   `json:"label"`
	Perplexity *float64 `json:"perplexity"`
	TokenCount int      `json:"token_count"`
	Status     Status   `json:"status"`
	Error      string   `json:"error,omitempty"`
}

// Value returns the perplexity, +Inf when undefined.
func (s Segment) Value() float64 {
	if s.Perplexity == nil {
		return math.Inf(1)
	}
	return *s.Perplexity
}

func (s Segment) Defined() bool { return s.Perplexity != nil }

type response struct {
	Tokens   []string  `json:"tokens"`
	LogProbs []float64 `json:"logprobs"`
	Probs    []float64 `json:"probs"`
}

type Config struct {
	Model string
	// Delimiter splits sentences in ModeSentence; nil uses
	// chunk.DefaultSentenceDelimiter.
	Delimiter    *regexp.Regexp
	Mode         string
	WindowWords  int
	OverlapWords int
	// Workers bounds concurrent segment calls. Output order never depends
	// on it.
	Workers int
}

func DefaultConfig() Config {
	return Config{
		Model:        "default",
		Mode:         ModeSentence,
		WindowWords:  120,
		OverlapWords: 20,
		Workers:      1,
	}
}

type Estimator struct {
	endpoint model.Endpoint
	cfg      Config
}

func New(endpoint model.Endpoint, cfg Config) *Estimator {
	if cfg.Mode == "" {
		cfg.Mode = ModeSentence
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Estimator{endpoint: endpoint, cfg: cfg}
}

// FromLogProbs returns exp(-mean(logProbs)), or +Inf for an empty sequence.
func FromLogProbs(logProbs []float64) float64 {
	if len(logProbs) == 0 {
		return math.Inf(1)
	}
	sum := 0.0
	for _, v := range logProbs {
		sum += v
	}
	return math.Exp(-sum / float64(len(logProbs)))
}

// LogProbsFromProbs takes the natural log of each probability, clamping at
// the smallest positive float64 so a zero never yields -Inf.
func LogProbsFromProbs(probs []float64) []float64 {
	out := make([]float64, len(probs))
	for i, p := range probs {
		out[i] = math.Log(math.Max(p, math.SmallestNonzeroFloat64))
	}
	return out
}

// ComputeSegment measures one segment. Empty text yields an undefined
// perplexity without a network call. On failure the returned segment is
// already marked failed, so callers may keep it and only log the error.
func (e *Estimator) ComputeSegment(ctx context.Context, text string) (Segment, error) {
	seg := Segment{Label: label(text), Status: StatusEmpty}
	if text == "" {
		return seg, nil
	}

	values, err := e.measure(ctx, text)
	if err != nil {
		seg.Status = StatusFailed
		seg.Error = err.Error()
		return seg, err
	}
	seg.Status = StatusOK
	seg.TokenCount = len(values)
	if ppl := FromLogProbs(values); !math.IsInf(ppl, 0) && !math.IsNaN(ppl) {
		seg.Perplexity = &ppl
	}
	return seg, nil
}

// ComputeSegments splits text and measures every segment independently.
// A failing segment is recorded as failed and never aborts the curve; the
// result has one entry per segment in source order.
func (e *Estimator) ComputeSegments(ctx context.Context, text string) []Segment {
	segments, _ := e.Curve(ctx, text)
	return segments
}

// Curve is ComputeSegments that also returns the segment errors joined in
// source order, nil when every segment was measured.
func (e *Estimator) Curve(ctx context.Context, text string) ([]Segment, error) {
	pieces := e.split(text)
	out := make([]Segment, len(pieces))
	errs := pipeline.ForEach(ctx, len(pieces), e.cfg.Workers, func(ctx context.Context, i int) error {
		seg, err := e.ComputeSegment(ctx, pieces[i].Text)
		out[i] = seg
		if err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		return nil
	})
	return out, errors.Join(errs...)
}

func (e *Estimator) split(text string) []chunk.Segment {
	if e.cfg.Mode == ModeWindow {
		return chunk.SlidingWindow(text, e.cfg.WindowWords, e.cfg.OverlapWords)
	}
	return chunk.Sentences(text, e.cfg.Delimiter)
}

func (e *Estimator) measure(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.endpoint == nil {
		return nil, errors.New("perplexity endpoint not configured")
	}
	var resp response
	if err := e.endpoint.Call(ctx, model.Request{Model: e.cfg.Model, Text: text}, &resp); err != nil {
		return nil, err
	}
	switch {
	case resp.LogProbs != nil:
		return resp.LogProbs, nil
	case resp.Probs != nil:
		return LogProbsFromProbs(resp.Probs), nil
	default:
		return nil, fmt.Errorf("%w (tokens=%d)", ErrMissingLogProbs, len(resp.Tokens))
	}
}

func label(text string) string {
	r := []rune(text)
	if len(r) > labelRunes {
		r = r[:labelRunes]
	}
	return string(r)
}

// Failed counts segments whose measurement failed.
func Failed(segments []Segment) int {
	n := 0
	for _, s := range segments {
		if s.Status == StatusFailed {
			n++
		}
	}
	return n
}
