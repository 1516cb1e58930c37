package chunk

import (
	"regexp"
	"strings"
)

// DefaultSentenceDelimiter matches runs of ASCII and CJK sentence terminals.
var DefaultSentenceDelimiter = regexp.MustCompile(`[.!?。！？]+`)

type Segment struct {
	Index      int
	StartToken int
	EndToken   int
	Text       string
}

// Sentences splits text on delimiter (DefaultSentenceDelimiter when nil),
// trims each piece and drops the empty ones. Token offsets count
// whitespace-separated fields.
func Sentences(text string, delimiter *regexp.Regexp) []Segment {
	if delimiter == nil {
		delimiter = DefaultSentenceDelimiter
	}
	if text == "" {
		return nil
	}

	parts := delimiter.Split(text, -1)
	segments := make([]Segment, 0, len(parts))
	cursor := 0
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n := len(strings.Fields(p))
		segments = append(segments, Segment{
			Index:      len(segments),
			StartToken: cursor,
			EndToken:   cursor + n,
			Text:       p,
		})
		cursor += n
	}
	return segments
}

// SlidingWindow splits text into windows of segmentTokens whitespace
// separated words, each starting overlapTokens words before the previous one
// ended. The last window may be shorter. Overlap is capped below the window
// size.
func SlidingWindow(text string, segmentTokens, overlapTokens int) []Segment {
	tokens := strings.Fields(text)
	if segmentTokens <= 0 || len(tokens) == 0 {
		return nil
	}
	overlapTokens = max(0, min(overlapTokens, segmentTokens-1))

	step := segmentTokens - overlapTokens
	segments := make([]Segment, 0, len(tokens)/step+1)
	for start := 0; ; start += step {
		end := min(start+segmentTokens, len(tokens))
		segments = append(segments, Segment{
			Index:      len(segments),
			StartToken: start,
			EndToken:   end,
			Text:       strings.Join(tokens[start:end], " "),
		})
		if end == len(tokens) {
			return segments
		}
	}
}
