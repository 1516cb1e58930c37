// Package similarity ranks the green-list against an input text by cosine
// similarity of embeddings.
package similarity

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"ai_detector/internal/corpus"
	"ai_detector/internal/model"
)

// ErrMissingEmbedding means the embedding endpoint answered without an
// embedding array.
var ErrMissingEmbedding = errors.New("embedding response has no embedding field")

const defaultCacheSize = 1024

type Result struct {
	BestMatchID *string `json:"best_match_id"`
	Score       float64 `json:"score"`
}

// NoMatch is the result for an empty corpus or a degraded ranker.
func NoMatch() Result { return Result{} }

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	// ModelID scopes cached vectors so vectors of different embedders are
	// never compared.
	ModelID() string
}

type RemoteEmbedder struct {
	endpoint model.Endpoint
	model    string
}

func NewRemoteEmbedder(endpoint model.Endpoint, modelName string) *RemoteEmbedder {
	if modelName == "" {
		modelName = "default"
	}
	return &RemoteEmbedder{endpoint: endpoint, model: modelName}
}

func (e *RemoteEmbedder) ModelID() string { return "remote:" + e.model }

func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	var resp struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := e.endpoint.Call(ctx, model.Request{Model: e.model, Text: text}, &resp); err != nil {
		return nil, err
	}
	if resp.Embedding == nil {
		return nil, ErrMissingEmbedding
	}
	return resp.Embedding, nil
}

// Cosine returns the cosine similarity of a and b. Empty vectors, vectors of
// different length and zero vectors all yield 0.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	denom := math.Sqrt(na) * math.Sqrt(nb)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// Ranker owns an embedding cache keyed by embedder, sample id and sample
// text. The cache is safe for concurrent use; concurrent writers of the same
// key race with last-write-wins.
type Ranker struct {
	embedder Embedder
	cache    *lru.Cache[string, []float64]
}

func NewRanker(embedder Embedder, cacheSize int) (*Ranker, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, []float64](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Ranker{embedder: embedder, cache: cache}, nil
}

// BestMatch returns the sample most similar to input. The first maximum wins
// ties. An empty corpus or blank input yields NoMatch without embedding
// anything.
func (r *Ranker) BestMatch(ctx context.Context, input string, samples []corpus.Sample) (Result, error) {
	if len(samples) == 0 || strings.TrimSpace(input) == "" {
		return NoMatch(), nil
	}
	inputVec, err := r.embedder.Embed(ctx, input)
	if err != nil {
		return NoMatch(), fmt.Errorf("embed input: %w", err)
	}

	best := NoMatch()
	for i, s := range samples {
		vec, err := r.sampleEmbedding(ctx, s)
		if err != nil {
			return NoMatch(), fmt.Errorf("embed sample %s: %w", s.ID, err)
		}
		score := Cosine(inputVec, vec)
		if i == 0 || score > best.Score {
			id := s.ID
			best = Result{BestMatchID: &id, Score: score}
		}
	}
	return best, nil
}

func (r *Ranker) sampleEmbedding(ctx context.Context, s corpus.Sample) ([]float64, error) {
	if len(s.Embedding) > 0 {
		return s.Embedding, nil
	}
	key := r.cacheKey(s)
	if vec, ok := r.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := r.embedder.Embed(ctx, s.Text)
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, vec)
	return vec, nil
}

// CacheLen reports how many sample embeddings are cached.
func (r *Ranker) CacheLen() int { return r.cache.Len() }

func (r *Ranker) cacheKey(s corpus.Sample) string {
	h := sha1.Sum([]byte(s.Text))
	return r.embedder.ModelID() + "|" + s.ID + "|" + hex.EncodeToString(h[:8])
}
