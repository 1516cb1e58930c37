package chunk

import (
	"regexp"
	"strings"
	"testing"
)

func TestSlidingWindowCoversAllTokens(t *testing.T) {
	words := make([]string, 5000)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ")

	segments := SlidingWindow(text, 1500, 200)
	if len(segments) == 0 {
		t.Fatal("expected chunks to be generated")
	}

	covered := make([]bool, 5000)
	for _, s := range segments {
		if s.StartToken < 0 || s.EndToken > 5000 || s.StartToken >= s.EndToken {
			t.Fatalf("invalid segment bounds: %+v", s)
		}
		for i := s.StartToken; i < s.EndToken; i++ {
			covered[i] = true
		}
	}

	for i, ok := range covered {
		if !ok {
			t.Fatalf("data loss at token index %d", i)
		}
	}
}

func TestSentencesDefaultDelimiter(t *testing.T) {
	segs := Sentences("A. B? C!", nil)
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d: %+v", len(segs), segs)
	}
	for i, want := range []string{"A", "B", "C"} {
		if segs[i].Text != want || segs[i].Index != i {
			t.Fatalf("segment %d: got %+v, want text %q", i, segs[i], want)
		}
	}
}

func TestSentencesCJKAndRuns(t *testing.T) {
	segs := Sentences("  第一句。第二句！！ third one?!  ...  ", nil)
	got := make([]string, 0, len(segs))
	for _, s := range segs {
		got = append(got, s.Text)
	}
	if strings.Join(got, "|") != "第一句|第二句|third one" {
		t.Fatalf("unexpected segments: %q", got)
	}
	if segs[2].StartToken != 2 || segs[2].EndToken != 4 {
		t.Fatalf("unexpected token offsets: %+v", segs[2])
	}
}

func TestSentencesCustomDelimiter(t *testing.T) {
	segs := Sentences("one;two;;three", regexp.MustCompile(`;+`))
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segs))
	}
}

func TestSentencesEmpty(t *testing.T) {
	if segs := Sentences("", nil); len(segs) != 0 {
		t.Fatalf("expected no segments, got %+v", segs)
	}
	if segs := Sentences(" . ! ", nil); len(segs) != 0 {
		t.Fatalf("expected no segments for delimiter-only text, got %+v", segs)
	}
}

func TestSlidingWindowCapsOverlap(t *testing.T) {
	segs := SlidingWindow("a b c d e", 3, 5)
	if len(segs) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(segs))
	}
	if segs[0].Text != "a b c" || segs[2].Text != "c d e" || segs[2].EndToken != 5 {
		t.Fatalf("unexpected windows %+v", segs)
	}
	if SlidingWindow("a b", 0, 0) != nil || SlidingWindow("   ", 3, 1) != nil {
		t.Fatal("expected no windows")
	}
}
