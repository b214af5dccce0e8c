package textsim

import (
	"math"
	"testing"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"abc", "", 0},
		{"", "abc", 0},
		{"abc", "abc", 1},
		{"abcd", "bcde", 0.75},
		{"hello world", "hello world!!", 22.0 / 24.0},
	}
	for _, tt := range tests {
		if got := Ratio(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Ratio(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestIsSimilar(t *testing.T) {
	c := New(7, 0.8)
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical", "the quick brown fox", "the quick brown fox", true},
		{"trailing punctuation", "hello world", "hello world!!", true},
		{"case and spacing", "Hello   World", "hello world", true},
		{"different", "good morning everyone", "see you tomorrow night", false},
		{"one empty", "", "hello", false},
		{"both empty", "", "  ", true},
		{
			"only the trailing window counts",
			"completely different opening words here and then one two three four five six seven",
			"nothing alike at the start at all so one two three four five six seven",
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.IsSimilar(tt.a, tt.b); got != tt.want {
				t.Errorf("IsSimilar = %v (ratio %f), want %v", got, c.Similarity(tt.a, tt.b), tt.want)
			}
		})
	}
}

func TestIsSimilarReflexive(t *testing.T) {
	c := New(0, 0)
	for _, s := range []string{"a", "hello", "नमस्ते दुनिया", "one two three four five six seven eight nine"} {
		if !c.IsSimilar(s, s) {
			t.Errorf("IsSimilar(%q, itself) = false", s)
		}
	}
}

func TestFocus(t *testing.T) {
	c := Comparator{Focus: FocusEnd, Words: 2, Threshold: 0.9}
	if !c.IsSimilar("totally different start same end", "unrelated opening words same end") {
		t.Error("FocusEnd compared the wrong words")
	}
	c.Focus = FocusFull
	if c.IsSimilar("totally different start same end", "unrelated opening words same end") {
		t.Error("FocusFull ignored the head")
	}
}

func TestStripEndingPunctuation(t *testing.T) {
	tests := map[string]string{
		"hello world!!":  "hello world",
		"what? ":         "what",
		"मैं ठीक हूँ।":   "मैं ठीक हूँ",
		"no punctuation": "no punctuation",
		"...":            "",
	}
	for in, want := range tests {
		if got := StripEndingPunctuation(in); got != want {
			t.Errorf("StripEndingPunctuation(%q) = %q, want %q", in, got, want)
		}
	}
}
