// Package transcript defines the transcription result shared by the
// session, history and sinks.
package transcript

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/obiente/translate/livescribe/internal/language"
)

// Result is one partial or final transcription. Treat it as immutable.
type Result struct {
	Text             string
	Confidence       float64
	Timestamp        time.Time
	Language         string
	IsFinal          bool
	Duration         float64 // seconds since recording start
	WordCount        int
	HasMixedLanguage bool
}

// New builds a Result, deriving word count and script mixing from text.
func New(text string, confidence float64, ts time.Time, lang string, final bool, duration float64) Result {
	return Result{
		Text:             text,
		Confidence:       confidence,
		Timestamp:        ts,
		Language:         lang,
		IsFinal:          final,
		Duration:         duration,
		WordCount:        WordCount(text),
		HasMixedLanguage: language.HasMixedScripts(text),
	}
}

// WordCount counts whitespace-delimited tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// UnixSeconds is the timestamp as float seconds.
func (r Result) UnixSeconds() float64 {
	return float64(r.Timestamp.Unix()) + float64(r.Timestamp.Nanosecond())/1e9
}

// DateTime formats the timestamp in ISO 8601 local time.
func (r Result) DateTime() string {
	return r.Timestamp.Format("2006-01-02T15:04:05.000000")
}

type wireResult struct {
	Text             string  `json:"text"`
	Confidence       float64 `json:"confidence"`
	Timestamp        float64 `json:"timestamp"`
	DateTime         string  `json:"datetime"`
	Language         string  `json:"language"`
	IsFinal          bool    `json:"is_final"`
	Duration         float64 `json:"duration"`
	WordCount        int     `json:"word_count"`
	HasMixedLanguage bool    `json:"has_mixed_language"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireResult{
		Text:             r.Text,
		Confidence:       r.Confidence,
		Timestamp:        r.UnixSeconds(),
		DateTime:         r.DateTime(),
		Language:         r.Language,
		IsFinal:          r.IsFinal,
		Duration:         r.Duration,
		WordCount:        r.WordCount,
		HasMixedLanguage: r.HasMixedLanguage,
	})
}
