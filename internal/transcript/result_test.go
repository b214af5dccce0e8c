package transcript

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewDerivesFields(t *testing.T) {
	tests := []struct {
		text      string
		wantWords int
		wantMixed bool
	}{
		{"", 0, false},
		{"   ", 0, false},
		{"hello  world\tagain", 3, false},
		{"मैं market गया", 3, true},
	}
	for _, tt := range tests {
		r := New(tt.text, 0.5, time.Now(), "en", true, 1)
		if r.WordCount != tt.wantWords {
			t.Errorf("WordCount(%q) = %d, want %d", tt.text, r.WordCount, tt.wantWords)
		}
		if r.HasMixedLanguage != tt.wantMixed {
			t.Errorf("HasMixedLanguage(%q) = %v", tt.text, r.HasMixedLanguage)
		}
	}
}

func TestMarshalJSON(t *testing.T) {
	ts := time.Unix(1700000000, 250000000)
	b, err := json.Marshal(New("hi there", 0.75, ts, "en", true, 2.5))
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got["timestamp"].(float64) != 1700000000.25 {
		t.Errorf("timestamp = %v", got["timestamp"])
	}
	for _, key := range []string{"text", "confidence", "datetime", "language", "is_final", "duration", "word_count", "has_mixed_language"} {
		if _, ok := got[key]; !ok {
			t.Errorf("missing %q in %s", key, b)
		}
	}
}
