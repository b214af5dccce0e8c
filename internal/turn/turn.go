// Package turn recommends how long to wait in silence before an utterance
// is considered finished, based on how the current text ends.
package turn

import (
	"strings"
	"sync"
	"time"

	"github.com/obiente/translate/livescribe/internal/textsim"
)

// Detector recommends a silence wait for the latest partial text.
type Detector interface {
	WaitingTime(text string) time.Duration
	// SetSpeed adjusts responsiveness; 0 is the most patient, 1 the fastest.
	SetSpeed(factor float64)
	Reset() time.Duration
}

// continuation words suggest the speaker is mid-sentence.
var continuation = map[string]bool{
	"and": true, "but": true, "or": true, "so": true, "because": true,
	"the": true, "a": true, "an": true, "to": true, "of": true, "with": true,
	"और": true, "लेकिन": true, "या": true, "क्योंकि": true, "तो": true, "कि": true,
}

// Heuristic scales a base wait by punctuation and trailing-word cues.
type Heuristic struct {
	base time.Duration
	min  time.Duration
	max  time.Duration

	mu    sync.Mutex
	speed float64
}

// NewHeuristic returns a detector around base, clamped to [base/4, base*3].
func NewHeuristic(base time.Duration) *Heuristic {
	return &Heuristic{base: base, min: base / 4, max: base * 3}
}

func (h *Heuristic) WaitingTime(text string) time.Duration {
	h.mu.Lock()
	speed := h.speed
	h.mu.Unlock()

	factor := 1.0
	trimmed := strings.TrimSpace(text)
	stripped := textsim.StripEndingPunctuation(trimmed)
	switch {
	case trimmed == "":
	case strings.HasSuffix(trimmed, "?"), strings.HasSuffix(trimmed, "!"):
		factor = 0.5
	case strings.HasSuffix(trimmed, ","), strings.HasSuffix(trimmed, "..."), strings.HasSuffix(trimmed, "…"):
		factor = 1.5
	case strings.HasSuffix(trimmed, "."), strings.HasSuffix(trimmed, "।"):
		factor = 0.6
	default:
		words := strings.Fields(strings.ToLower(stripped))
		if len(words) > 0 && continuation[words[len(words)-1]] {
			factor = 1.6
		}
	}
	factor *= 1 - 0.5*speed
	return h.clamp(time.Duration(float64(h.base) * factor))
}

func (h *Heuristic) SetSpeed(factor float64) {
	if factor < 0 {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}
	h.mu.Lock()
	h.speed = factor
	h.mu.Unlock()
}

// Speed returns the current speed factor.
func (h *Heuristic) Speed() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.speed
}

// Reset returns the wait to use at the start of a new utterance.
func (h *Heuristic) Reset() time.Duration {
	return h.WaitingTime("")
}

func (h *Heuristic) clamp(d time.Duration) time.Duration {
	if d < h.min {
		return h.min
	}
	if d > h.max {
		return h.max
	}
	return d
}
