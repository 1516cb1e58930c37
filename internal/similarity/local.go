package similarity

import (
	"context"
	"fmt"

	"ai_detector/internal/textstats"
)

// DefaultLocalDim is the vector length of LocalEmbedder.
const DefaultLocalDim = 50

// LocalEmbedder is a low-fidelity stand-in for a real embedding model, used
// when network calls must be avoided. A text maps to the counts of its first
// Dim distinct tokens of the NFKC-normalized text in order of first
// appearance, zero-padded to Dim.
// Positions carry no shared meaning across texts, so scores only hint at
// similar frequency profiles and must not be read as semantic similarity.
type LocalEmbedder struct {
	Dim int
}

func (e LocalEmbedder) dim() int {
	if e.Dim <= 0 {
		return DefaultLocalDim
	}
	return e.Dim
}

func (e LocalEmbedder) ModelID() string { return fmt.Sprintf("local-frequency:%d", e.dim()) }

func (e LocalEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, e.dim())
	for i, entry := range textstats.WordFrequency(textstats.Normalize(text)).Entries() {
		if i >= len(vec) {
			break
		}
		vec[i] = float64(entry.Count)
	}
	return vec, nil
}
