package flashcards

import (
	"context"
	"strings"
	"unicode/utf8"
)

const (
	MaxFrontLength = 200
	MaxBackLength  = 500
)

// Candidate is one proposed question/answer pair before it is stored.
type Candidate struct {
	Front string
	Back  string
}

// Generator turns study text into at most target candidates.
type Generator interface {
	Generate(ctx context.Context, text string, target int) ([]Candidate, error)
	Model() string
}

// clean trims, collapses whitespace and cuts s to max runes.
func clean(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	cut := string(r[:max-1])
	if i := strings.LastIndexByte(cut, ' '); i > max/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:") + "…"
}

// normalize drops empty and duplicate candidates and enforces field limits.
func normalize(in []Candidate, target int) []Candidate {
	out := make([]Candidate, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, c := range in {
		front := clean(c.Front, MaxFrontLength)
		back := clean(c.Back, MaxBackLength)
		if front == "" || back == "" {
			continue
		}
		key := strings.ToLower(front)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Candidate{Front: front, Back: back})
		if target > 0 && len(out) >= target {
			break
		}
	}
	return out
}
