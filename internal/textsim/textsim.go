// Package textsim compares transcript hypotheses to suppress near-duplicate
// partial results.
package textsim

import (
	"strings"
	"unicode"
)

// Focus selects which words of each text are compared.
type Focus int

const (
	FocusEnd Focus = iota
	FocusFull
)

const (
	DefaultWords     = 7
	DefaultThreshold = 0.85
)

// Comparator scores two texts over a window of words.
type Comparator struct {
	Focus     Focus
	Words     int
	Threshold float64
}

// New returns a Comparator over the trailing words of each text.
func New(words int, threshold float64) Comparator {
	if words <= 0 {
		words = DefaultWords
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Comparator{Focus: FocusEnd, Words: words, Threshold: threshold}
}

// Normalize lowercases, trims and collapses whitespace.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func (c Comparator) window(text string) string {
	words := strings.Fields(Normalize(text))
	n := c.Words
	if c.Focus == FocusFull || n <= 0 || len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[len(words)-n:], " ")
}

// Similarity returns a ratio in [0, 1]: 1 when both windows are empty,
// 0 when only one is.
func (c Comparator) Similarity(a, b string) float64 {
	return Ratio(c.window(a), c.window(b))
}

// IsSimilar reports whether Similarity(a, b) reaches the threshold.
func (c Comparator) IsSimilar(a, b string) bool {
	return c.Similarity(a, b) >= c.Threshold
}

// Ratio is 2*M/T where M is the longest common subsequence of runes and T
// the total rune count.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	return 2 * float64(lcs(ra, rb)) / float64(total)
}

func lcs(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// StripEndingPunctuation removes trailing sentence punctuation and spaces.
func StripEndingPunctuation(text string) string {
	return strings.TrimRightFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(".,;:!?…।॥", r)
	})
}
