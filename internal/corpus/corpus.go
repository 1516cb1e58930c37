// Package corpus holds the green-list: reference samples known to be written
// by humans, used as the similarity baseline.
package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
)

type Sample struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	// Embedding is an optional precomputed vector. Analyzers read it but
	// never write it back.
	Embedding []float64 `json:"embedding,omitempty"`
}

// Default returns the built-in green-list.
func Default() []Sample {
	return []Sample{
		{ID: "g1", Text: "这是一个人工撰写的示例段落，用于测试与 AI 文本的相似度比较。"},
		{ID: "g2", Text: "在很久很久以前，人们在夜晚围坐篝火旁讲述故事。"},
	}
}

// Validate checks that every sample has a unique, non-empty id.
func Validate(samples []Sample) error {
	seen := make(map[string]struct{}, len(samples))
	var errs []error
	for i, s := range samples {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			errs = append(errs, fmt.Errorf("sample %d: empty id", i))
			continue
		}
		if _, dup := seen[id]; dup {
			errs = append(errs, fmt.Errorf("sample %d: duplicate id %q", i, id))
			continue
		}
		seen[id] = struct{}{}
	}
	return errors.Join(errs...)
}

// LoadFile reads a JSON array of samples.
func LoadFile(path string) ([]Sample, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	var samples []Sample
	if err := json.Unmarshal(raw, &samples); err != nil {
		return nil, fmt.Errorf("decode corpus %s: %w", path, err)
	}
	if err := Validate(samples); err != nil {
		return nil, fmt.Errorf("invalid corpus %s: %w", path, err)
	}
	return samples, nil
}

// Holder publishes immutable corpus snapshots to concurrent readers.
type Holder struct {
	current atomic.Pointer[[]Sample]
}

func NewHolder(samples []Sample) *Holder {
	h := &Holder{}
	h.Replace(samples)
	return h
}

// Samples returns the current snapshot. Callers must not modify it.
func (h *Holder) Samples() []Sample {
	if p := h.current.Load(); p != nil {
		return *p
	}
	return nil
}

// Replace swaps in a copy of samples.
func (h *Holder) Replace(samples []Sample) {
	snapshot := make([]Sample, len(samples))
	for i, s := range samples {
		snapshot[i] = Sample{ID: s.ID, Text: s.Text}
		if s.Embedding != nil {
			snapshot[i].Embedding = append([]float64(nil), s.Embedding...)
		}
	}
	h.current.Store(&snapshot)
}
