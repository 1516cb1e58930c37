// Package textstats computes the lexical signals of a detection report:
// word frequency, punctuation distribution and sentence lengths.
package textstats

import (
	"bytes"
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"ai_detector/internal/chunk"
)

// DefaultTopN is the number of words surfaced by a report.
const DefaultTopN = 20

var wordSplitter = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// punctuationSet is the fixed set of recognized ASCII and CJK symbols.
var punctuationSet = map[rune]struct{}{
	'，': {}, '。': {}, '？': {}, '！': {}, '；': {}, '：': {},
	',': {}, '.': {}, '?': {}, '!': {}, ';': {}, ':': {},
	'—': {}, '–': {}, '-': {},
	'"': {}, '\'': {}, '“': {}, '”': {}, '‘': {}, '’': {}, '「': {}, '」': {}, '『': {}, '』': {},
	'(': {}, ')': {}, '[': {}, ']': {}, '{': {}, '}': {}, '（': {}, '）': {}, '【': {}, '】': {},
}

type Entry struct {
	Token string `json:"token"`
	Count int    `json:"count"`
}

// Table counts tokens and remembers the order in which they were first seen.
// The zero value is an empty table ready for use.
type Table struct {
	index   map[string]int
	entries []Entry
}

func (t *Table) Add(token string) {
	if t.index == nil {
		t.index = map[string]int{}
	}
	if i, ok := t.index[token]; ok {
		t.entries[i].Count++
		return
	}
	t.index[token] = len(t.entries)
	t.entries = append(t.entries, Entry{Token: token, Count: 1})
}

func (t Table) Count(token string) int {
	if i, ok := t.index[token]; ok {
		return t.entries[i].Count
	}
	return 0
}

func (t Table) Len() int { return len(t.entries) }

// Total is the sum of all counts.
func (t Table) Total() int {
	total := 0
	for _, e := range t.entries {
		total += e.Count
	}
	return total
}

// Entries returns a copy of the entries in first-seen order.
func (t Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// MarshalJSON encodes the table as an object whose keys keep first-seen order.
func (t Table) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, e := range t.entries {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(e.Token)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(e.Count))
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// Tokenize lowercases text and splits it on every run of characters that are
// neither letters nor digits. The text is not normalized; see Normalize.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	lowered := strings.ToLower(text)
	parts := wordSplitter.Split(lowered, -1)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Normalize applies NFKC, folding full-width and compatibility forms. Report
// statistics never call it.
func Normalize(text string) string {
	return norm.NFKC.String(text)
}

func WordFrequency(text string) Table {
	var t Table
	for _, w := range Tokenize(text) {
		t.Add(w)
	}
	return t
}

// PunctuationStats counts recognized punctuation in the raw text. Other
// symbols are ignored.
func PunctuationStats(text string) Table {
	var t Table
	for _, r := range text {
		if _, ok := punctuationSet[r]; ok {
			t.Add(string(r))
		}
	}
	return t
}

// SentenceLengthDistribution returns the word count of every sentence.
func SentenceLengthDistribution(text string) []int {
	sentences := chunk.Sentences(text, nil)
	out := make([]int, 0, len(sentences))
	for _, s := range sentences {
		out = append(out, len(Tokenize(s.Text)))
	}
	return out
}

// TopN orders entries by count, highest first, keeping first-seen order on
// ties, and truncates to n.
func TopN(t Table, n int) []Entry {
	if n <= 0 {
		return []Entry{}
	}
	entries := t.Entries()
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Count > entries[j].Count })
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
