package transcription

import (
	"math"
	"sort"
	"strings"

	"github.com/obiente/translate/livescribe/internal/language"
)

const (
	quietLevel    = 0.01
	clippingLevel = 0.5
	minSNRSamples = 1600 // 100ms at 16kHz
	snrFrameSize  = 160
	lowSNR        = 10.0
	noNoiseSNR    = 30.0
)

// Estimate scores a transcript heuristically in [0, 1]. samples may be nil.
// codeSwitch reports whether the session expects mixed-script text.
func Estimate(text string, samples []float32, codeSwitch bool) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	conf := 1.0
	words := strings.Fields(text)

	switch {
	case len(words) < 2:
		conf *= 0.7
	case len(words) > 50:
		conf *= 0.9
	}

	if len([]rune(text)) > 10 && distinctRunes(strings.ToLower(text)) < 5 {
		conf *= 0.6
	}

	if language.HasMixedScripts(text) {
		if codeSwitch {
			conf *= 0.95
		} else {
			conf *= 0.75
		}
	}

	if float64(maxRepetition(words)) > float64(len(words))*0.5 {
		conf *= 0.6
	}

	if len(samples) > 0 {
		switch level := meanAbs(samples); {
		case level < quietLevel:
			conf *= 0.8
		case level > clippingLevel:
			conf *= 0.9
		}
		if len(samples) > minSNRSamples && EstimateSNR(samples) < lowSNR {
			conf *= 0.85
		}
	}
	return math.Max(0, math.Min(1, conf))
}

// EstimateSNR approximates the signal-to-noise ratio in dB as the mean
// frame energy over the mean energy of the quietest quarter of frames.
func EstimateSNR(samples []float32) float64 {
	var energies []float64
	for start := 0; start+snrFrameSize <= len(samples); start += snrFrameSize {
		var e float64
		for _, s := range samples[start : start+snrFrameSize] {
			e += float64(s) * float64(s)
		}
		energies = append(energies, e/snrFrameSize)
	}
	if len(energies) == 0 {
		return noNoiseSNR
	}
	signal := mean(energies)
	sort.Float64s(energies)
	quartile := len(energies) / 4
	if quartile == 0 {
		quartile = 1
	}
	noise := mean(energies[:quartile])
	if noise <= 0 {
		return noNoiseSNR
	}
	return math.Max(0, 10*math.Log10(signal/noise))
}

func distinctRunes(s string) int {
	seen := make(map[rune]struct{})
	for _, r := range s {
		seen[r] = struct{}{}
	}
	return len(seen)
}

func maxRepetition(words []string) int {
	freq := make(map[string]int, len(words))
	best := 0
	for _, w := range words {
		freq[w]++
		if freq[w] > best {
			best = freq[w]
		}
	}
	return best
}

func meanAbs(samples []float32) float64 {
	var sum float64
	for _, s := range samples {
		sum += math.Abs(float64(s))
	}
	return sum / float64(len(samples))
}

func mean(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}
