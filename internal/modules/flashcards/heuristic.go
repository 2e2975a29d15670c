package flashcards

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	sentenceEnd  = regexp.MustCompile(`([.!?])\s+`)
	definitional = regexp.MustCompile(`(?i)^(.{2,80}?)\s+(is|are|was|were|refers to|means)\s+(.+)$`)
)

// HeuristicGenerator builds cards from definitional sentences without any
// outbound call. Output is deterministic for a given text.
type HeuristicGenerator struct{}

func NewHeuristicGenerator() *HeuristicGenerator { return &HeuristicGenerator{} }

func (HeuristicGenerator) Model() string { return "heuristic-v1" }

func (g HeuristicGenerator) Generate(ctx context.Context, text string, target int) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil, fmt.Errorf("text contains no usable sentences")
	}

	var defs, rest []Candidate
	for _, s := range sentences {
		if c, ok := definitionCard(s); ok {
			defs = append(defs, c)
			continue
		}
		rest = append(rest, recallCard(s))
	}
	// Definitions make the better cards, so they go first.
	out := normalize(append(defs, rest...), target)
	if len(out) == 0 {
		return nil, fmt.Errorf("no flashcards could be derived from text")
	}
	return out, nil
}

func splitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}
	marked := sentenceEnd.ReplaceAllString(text, "$1\n")
	var out []string
	for _, s := range strings.Split(marked, "\n") {
		s = strings.TrimSpace(s)
		if len(strings.Fields(s)) < 4 {
			continue
		}
		out = append(out, s)
	}
	return out
}

func definitionCard(sentence string) (Candidate, bool) {
	body := strings.TrimRight(sentence, ".!? ")
	m := definitional.FindStringSubmatch(body)
	if m == nil {
		return Candidate{}, false
	}
	subject := strings.TrimSpace(m[1])
	verb := strings.ToLower(m[2])
	if n := len(strings.Fields(subject)); n == 0 || n > 8 {
		return Candidate{}, false
	}
	var front string
	switch verb {
	case "refers to":
		front = fmt.Sprintf("What does %s refer to?", lowerFirst(subject))
	case "means":
		front = fmt.Sprintf("What does %s mean?", lowerFirst(subject))
	default:
		front = fmt.Sprintf("What %s %s?", verb, lowerFirst(subject))
	}
	return Candidate{Front: front, Back: upperFirst(strings.TrimSpace(m[3])) + "."}, true
}

func recallCard(sentence string) Candidate {
	words := strings.Fields(sentence)
	lead := words
	if len(lead) > 8 {
		lead = lead[:8]
	}
	front := "Complete the statement: " + strings.TrimRight(strings.Join(lead, " "), ".!?,;:") + " …"
	return Candidate{Front: front, Back: sentence}
}

// lowerFirst keeps acronyms and proper-looking multiword names intact.
func lowerFirst(s string) string {
	r := []rune(s)
	if len(r) < 2 || unicode.IsUpper(r[1]) {
		return s
	}
	if strings.HasPrefix(strings.ToLower(s), "the ") || strings.HasPrefix(strings.ToLower(s), "a ") || strings.HasPrefix(strings.ToLower(s), "an ") {
		r[0] = unicode.ToLower(r[0])
	}
	return string(r)
}

func upperFirst(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
