// Package provenance runs the lexical, perplexity, similarity and judgment
// analyzers over one text and merges them into a single report. A report is
// always produced; analyzers that fail are replaced by a degenerate value and
// the report is marked partially failed.
package provenance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ai_detector/internal/corpus"
	"ai_detector/internal/judge"
	"ai_detector/internal/model"
	"ai_detector/internal/perplexity"
	"ai_detector/internal/similarity"
	"ai_detector/internal/textstats"
)

type State string

const (
	StateIdle            State = "idle"
	StateRunning         State = "running"
	StateCompleted       State = "completed"
	StatePartiallyFailed State = "partially_failed"
)

// Analyzer names as they appear in outcomes, errors and traces.
const (
	AnalyzerLexical    = "lexical"
	AnalyzerPerplexity = "perplexity"
	AnalyzerSimilarity = "similarity"
	AnalyzerJudgment   = "judgment"
)

const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
)

type Input struct {
	RequestID string `json:"request_id,omitempty"`
	Text      string `json:"text"`
}

type ErrorEntry struct {
	Stage     string `json:"stage"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Retryable bool   `json:"retryable"`
}

type SpanTrace struct {
	Name       string `json:"name"`
	DurationMs int64  `json:"duration_ms"`
	Status     string `json:"status"`
}

// Outcome tags one analyzer's result as ok or degraded with its cause.
type Outcome struct {
	Analyzer string `json:"analyzer"`
	State    string `json:"state"`
	Cause    string `json:"cause,omitempty"`
}

type Report struct {
	RequestID       string               `json:"request_id"`
	Status          State                `json:"status"`
	WordCount       int                  `json:"word_count"`
	TopWords        []textstats.Entry    `json:"top_words"`
	Punctuation     textstats.Table      `json:"punctuation"`
	SentenceLengths []int                `json:"sentence_lengths"`
	Perplexity      []perplexity.Segment `json:"perplexity"`
	Similarity      similarity.Result    `json:"similarity"`
	Judgment        judge.Result         `json:"judgment"`
	Outcomes        []Outcome            `json:"outcomes"`
	Errors          []ErrorEntry         `json:"errors"`
	Traces          []SpanTrace          `json:"traces"`
	DurationMs      int64                `json:"duration_ms"`
}

// Degraded reports whether any analyzer was downgraded.
func (r Report) Degraded() bool { return r.Status == StatePartiallyFailed }

type PerplexityAnalyzer interface {
	Curve(ctx context.Context, text string) ([]perplexity.Segment, error)
}

type SimilarityAnalyzer interface {
	BestMatch(ctx context.Context, input string, samples []corpus.Sample) (similarity.Result, error)
}

type JudgmentAnalyzer interface {
	Judge(ctx context.Context, text string) (judge.Result, error)
}

// CorpusSource supplies the current reference samples. *corpus.Holder
// satisfies it.
type CorpusSource interface {
	Samples() []corpus.Sample
}

type Logger interface {
	Log(level, stage, message, detail string)
}

// Degradation describes one downgraded analyzer.
type Degradation struct {
	RequestID string
	Analyzer  string
	Type      string
	Err       error
}

// Reporter receives degraded analyzers for error tracking.
type Reporter interface {
	ReportDegraded(ctx context.Context, d Degradation)
}

type Config struct {
	TopN int
}

// Analyzers wires the pipeline. A nil analyzer is recorded as unavailable on
// every run.
type Analyzers struct {
	Perplexity PerplexityAnalyzer
	Similarity SimilarityAnalyzer
	Judgment   JudgmentAnalyzer
	Corpus     CorpusSource
	Logger     Logger
	Reporter   Reporter
}

type Pipeline struct {
	cfg Config
	a   Analyzers
}

func New(cfg Config, a Analyzers) *Pipeline {
	if cfg.TopN <= 0 {
		cfg.TopN = textstats.DefaultTopN
	}
	return &Pipeline{cfg: cfg, a: a}
}

// slot is the private result of one analyzer goroutine.
type slot struct {
	name    string
	err     error
	detail  string
	elapsed time.Duration
}

// Run analyzes in and returns a fresh report. Cancelling ctx abandons the
// outstanding model calls; the analyzers they belong to are marked degraded.
func (p *Pipeline) Run(ctx context.Context, in Input) Report {
	start := time.Now()
	requestID := in.RequestID
	if requestID == "" {
		requestID = model.RequestID(ctx)
	}
	if requestID == "" {
		requestID = model.NewRequestID()
	}
	ctx = model.WithRequestID(ctx, requestID)

	report := Report{
		RequestID:       requestID,
		Status:          StateIdle,
		TopWords:        []textstats.Entry{},
		SentenceLengths: []int{},
		Perplexity:      []perplexity.Segment{},
		Similarity:      similarity.NoMatch(),
		Outcomes:        []Outcome{},
		Errors:          []ErrorEntry{},
		Traces:          []SpanTrace{},
	}
	report.Status = StateRunning
	p.log("INFO", "detection started", fmt.Sprintf("request_id=%s chars=%d", requestID, len(in.Text)))

	withSpan(&report, AnalyzerLexical, func() error {
		freq := textstats.WordFrequency(in.Text)
		report.WordCount = freq.Total()
		report.TopWords = textstats.TopN(freq, p.cfg.TopN)
		report.Punctuation = textstats.PunctuationStats(in.Text)
		report.SentenceLengths = textstats.SentenceLengthDistribution(in.Text)
		return nil
	})
	report.Outcomes = append(report.Outcomes, Outcome{Analyzer: AnalyzerLexical, State: OutcomeOK})

	if strings.TrimSpace(in.Text) == "" {
		zero := 0.0
		report.Judgment = judge.Result{AIProbability: &zero, Explanation: judge.ExplanationEmpty}
		for _, name := range []string{AnalyzerPerplexity, AnalyzerSimilarity, AnalyzerJudgment} {
			report.Outcomes = append(report.Outcomes, Outcome{Analyzer: name, State: OutcomeOK})
			report.Traces = append(report.Traces, SpanTrace{Name: name, Status: "skipped"})
		}
		return p.finish(report, start)
	}

	var (
		wg       sync.WaitGroup
		segments []perplexity.Segment
		simRes   = similarity.NoMatch()
		judgeRes = judge.Unavailable()
		slots    [3]slot
	)
	run := func(i int, name string, fn func() (string, error)) {
		defer wg.Done()
		t0 := time.Now()
		detail, err := fn()
		slots[i] = slot{name: name, err: err, detail: detail, elapsed: time.Since(t0)}
	}
	wg.Add(3)
	go run(0, AnalyzerPerplexity, func() (string, error) {
		if p.a.Perplexity == nil {
			return "", errUnavailable(AnalyzerPerplexity)
		}
		var err error
		segments, err = p.a.Perplexity.Curve(ctx, in.Text)
		failed := perplexity.Failed(segments)
		if err != nil && failed > 0 {
			return fmt.Sprintf("%d/%d segments failed", failed, len(segments)), err
		}
		return "", err
	})
	go run(1, AnalyzerSimilarity, func() (string, error) {
		if p.a.Similarity == nil {
			return "", errUnavailable(AnalyzerSimilarity)
		}
		var samples []corpus.Sample
		if p.a.Corpus != nil {
			samples = p.a.Corpus.Samples()
		}
		res, err := p.a.Similarity.BestMatch(ctx, in.Text, samples)
		if err != nil {
			return "", err
		}
		simRes = res
		return "", nil
	})
	go run(2, AnalyzerJudgment, func() (string, error) {
		if p.a.Judgment == nil {
			return "", errUnavailable(AnalyzerJudgment)
		}
		res, err := p.a.Judgment.Judge(ctx, in.Text)
		if err != nil {
			return "", err
		}
		judgeRes = res
		return "", nil
	})
	wg.Wait()

	if segments != nil {
		report.Perplexity = segments
	}
	report.Similarity = simRes
	report.Judgment = judgeRes

	for _, s := range slots {
		status := "ok"
		outcome := Outcome{Analyzer: s.name, State: OutcomeOK}
		if s.err != nil {
			status = "error"
			kind := classifyToolErr(s.err)
			msg := s.err.Error()
			if s.detail != "" {
				msg = s.detail + ": " + msg
			}
			outcome.State = OutcomeDegraded
			outcome.Cause = msg
			report.Errors = append(report.Errors, ErrorEntry{
				Stage:     s.name,
				Message:   msg,
				Type:      kind,
				Retryable: retryable(kind),
			})
			p.log("WARN", s.name+" degraded", fmt.Sprintf("request_id=%s type=%s err=%s", requestID, kind, msg))
			if p.a.Reporter != nil {
				p.a.Reporter.ReportDegraded(ctx, Degradation{RequestID: requestID, Analyzer: s.name, Type: kind, Err: s.err})
			}
		}
		report.Outcomes = append(report.Outcomes, outcome)
		report.Traces = append(report.Traces, SpanTrace{Name: s.name, DurationMs: s.elapsed.Milliseconds(), Status: status})
	}
	return p.finish(report, start)
}

func (p *Pipeline) finish(report Report, start time.Time) Report {
	report.Status = StateCompleted
	for _, o := range report.Outcomes {
		if o.State != OutcomeOK {
			report.Status = StatePartiallyFailed
			break
		}
	}
	report.DurationMs = time.Since(start).Milliseconds()
	p.log("INFO", "detection completed", fmt.Sprintf("request_id=%s status=%s words=%d segments=%d errors=%d duration_ms=%d",
		report.RequestID, report.Status, report.WordCount, len(report.Perplexity), len(report.Errors), report.DurationMs))
	return report
}

func (p *Pipeline) log(level, message, detail string) {
	if p.a.Logger != nil {
		p.a.Logger.Log(level, "DETECT", message, detail)
	}
}

func withSpan(report *Report, name string, fn func() error) {
	start := time.Now()
	status := "ok"
	if err := fn(); err != nil {
		status = "error"
		report.Errors = append(report.Errors, ErrorEntry{
			Stage:     name,
			Message:   err.Error(),
			Type:      "exception",
			Retryable: false,
		})
	}
	report.Traces = append(report.Traces, SpanTrace{
		Name:       name,
		DurationMs: time.Since(start).Milliseconds(),
		Status:     status,
	})
}

var errToolUnavailable = errors.New("analyzer unavailable")

func errUnavailable(name string) error {
	return fmt.Errorf("%s %w", name, errToolUnavailable)
}

func classifyToolErr(err error) string {
	if err == nil {
		return "exception"
	}
	var statusErr *model.StatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, errToolUnavailable):
		return "tool_unavailable"
	case errors.Is(err, judge.ErrUnrecognizedJudgment),
		errors.Is(err, perplexity.ErrMissingLogProbs),
		errors.Is(err, similarity.ErrMissingEmbedding):
		return "contract_violation"
	case errors.As(err, &statusErr):
		return "endpoint_status"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return "timeout"
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "unavailable"):
		return "tool_unavailable"
	default:
		return "exception"
	}
}

func retryable(kind string) bool {
	switch kind {
	case "timeout", "tool_unavailable", "endpoint_status":
		return true
	default:
		return false
	}
}
