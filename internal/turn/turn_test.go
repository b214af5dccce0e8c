package turn

import (
	"testing"
	"time"
)

func TestWaitingTime(t *testing.T) {
	h := NewHeuristic(time.Second)
	tests := []struct {
		name string
		text string
		want time.Duration
	}{
		{"empty", "", time.Second},
		{"question", "are you there?", 500 * time.Millisecond},
		{"statement", "I am here.", 600 * time.Millisecond},
		{"danda", "मैं यहाँ हूँ।", 600 * time.Millisecond},
		{"comma", "well,", 1500 * time.Millisecond},
		{"ellipsis", "so I was thinking...", 1500 * time.Millisecond},
		{"continuation", "I went to the shop and", 1600 * time.Millisecond},
		{"hindi continuation", "मैं गया और", 1600 * time.Millisecond},
		{"plain", "I went to the shop", time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.WaitingTime(tt.text); got != tt.want {
				t.Errorf("WaitingTime(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestSetSpeed(t *testing.T) {
	h := NewHeuristic(time.Second)
	h.SetSpeed(1)
	if got := h.Reset(); got != 500*time.Millisecond {
		t.Errorf("fastest reset = %v", got)
	}
	if got := h.WaitingTime("done?"); got != 250*time.Millisecond {
		t.Errorf("fastest question = %v", got)
	}
	h.SetSpeed(7)
	if h.Speed() != 1 {
		t.Errorf("speed not clamped: %f", h.Speed())
	}
	h.SetSpeed(-1)
	if h.Speed() != 0 {
		t.Errorf("speed not clamped: %f", h.Speed())
	}
}
