package flashcards

import (
	"math"
	"strings"
	"unicode"
)

// Readability scores front and back together on a 0..1 scale, 1 being the
// easiest to read. It is Flesch reading ease clamped to 0..100 and divided
// by 100, rounded to two decimals.
func Readability(front, back string) float64 {
	text := strings.TrimSpace(front + " " + back)
	words := wordsOf(text)
	if len(words) == 0 {
		return 0
	}
	sentences := countSentences(text)
	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}
	ease := 206.835 -
		1.015*(float64(len(words))/float64(sentences)) -
		84.6*(float64(syllables)/float64(len(words)))
	ease = math.Max(0, math.Min(100, ease))
	return math.Round(ease) / 100
}

func wordsOf(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func countSentences(text string) int {
	n := 0
	prevTerminal := false
	for _, r := range text {
		terminal := r == '.' || r == '!' || r == '?'
		if terminal && !prevTerminal {
			n++
		}
		prevTerminal = terminal
	}
	if n == 0 {
		return 1
	}
	return n
}

// countSyllables approximates English syllables by counting vowel groups.
func countSyllables(word string) int {
	w := strings.ToLower(word)
	count := 0
	prevVowel := false
	for _, r := range w {
		v := strings.ContainsRune("aeiouy", r)
		if v && !prevVowel {
			count++
		}
		prevVowel = v
	}
	if strings.HasSuffix(w, "e") && !strings.HasSuffix(w, "le") && count > 1 {
		count--
	}
	if count == 0 {
		return 1
	}
	return count
}
