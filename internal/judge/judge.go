// Package judge asks an external model for a direct verdict on whether a
// text is machine generated.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"ai_detector/internal/model"
)

// ErrUnrecognizedJudgment means the response matched neither accepted shape.
var ErrUnrecognizedJudgment = errors.New("judgment response lacks ai_probability/reasoning")

const (
	ExplanationEmpty       = "empty input"
	ExplanationUnavailable = "unavailable"
)

// Result is the judge verdict. AIProbability is nil when the judge could not
// answer; Raw keeps the endpoint response for inspection.
type Result struct {
	AIProbability *float64        `json:"ai_probability"`
	Explanation   string          `json:"explanation"`
	Raw           json.RawMessage `json:"raw,omitempty"`
}

// Unavailable is the result recorded when the judge call degrades.
func Unavailable() Result {
	return Result{Explanation: ExplanationUnavailable}
}

type Adapter struct {
	endpoint model.Endpoint
	model    string
}

func New(endpoint model.Endpoint, modelName string) *Adapter {
	if modelName == "" {
		modelName = "default"
	}
	return &Adapter{endpoint: endpoint, model: modelName}
}

// Judge returns the model's verdict on text. Blank text yields probability 0
// without calling the endpoint.
func (a *Adapter) Judge(ctx context.Context, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		zero := 0.0
		return Result{AIProbability: &zero, Explanation: ExplanationEmpty}, nil
	}
	var raw json.RawMessage
	if err := a.endpoint.Call(ctx, model.Request{Model: a.model, Text: text}, &raw); err != nil {
		return Unavailable(), err
	}
	res, err := Parse(raw)
	if err != nil {
		return Unavailable(), err
	}
	return res, nil
}

// Parse accepts {ai_probability: number, reasoning: string} or the
// compatibility shape {probability, explanation} where probability may be a
// numeric string and explanation must be non-empty. Probabilities outside
// [0,1] are rejected.
func Parse(raw []byte) (Result, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Result{}, fmt.Errorf("%w: body is not a JSON object", ErrUnrecognizedJudgment)
	}
	keep := json.RawMessage(bytes.Clone(raw))

	if p, ok := number(fields["ai_probability"]); ok && inUnitRange(p) {
		if reasoning, ok := str(fields["reasoning"]); ok {
			return Result{AIProbability: &p, Explanation: reasoning, Raw: keep}, nil
		}
	}

	if p, ok := numberOrNumericString(fields["probability"]); ok && inUnitRange(p) {
		if explanation, ok := str(fields["explanation"]); ok && explanation != "" {
			return Result{AIProbability: &p, Explanation: explanation, Raw: keep}, nil
		}
	}
	return Result{}, ErrUnrecognizedJudgment
}

func inUnitRange(p float64) bool { return p >= 0 && p <= 1 }

func number(raw json.RawMessage) (float64, bool) {
	if isNull(raw) {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func numberOrNumericString(raw json.RawMessage) (float64, bool) {
	if v, ok := number(raw); ok {
		return v, true
	}
	s, ok := str(raw)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func str(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
