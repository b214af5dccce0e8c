// Package audio converts between PCM16LE, float32 samples and WAV.
package audio

import (
	"encoding/binary"
	"errors"
	"math"
)

// DefaultSampleRate is the rate the recognizers expect.
const DefaultSampleRate = 16000

// ErrOddPCM is returned for PCM16 payloads with a dangling byte.
var ErrOddPCM = errors.New("pcm16 length must be even")

// DecodePCM16LE converts little-endian PCM16 bytes into float32 samples in [-1, 1).
func DecodePCM16LE(b []byte) ([]float32, error) {
	if len(b)%2 != 0 {
		return nil, ErrOddPCM
	}
	out := make([]float32, len(b)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(b[2*i:]))
		out[i] = float32(v) / 32768.0
	}
	return out, nil
}

// EncodePCM16LE converts float32 samples into little-endian PCM16 bytes,
// clipping values outside [-1, 1].
func EncodePCM16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(floatToInt16(s)))
	}
	return out
}

func floatToInt16(s float32) int16 {
	v := math.Round(float64(s) * 32767)
	if v > math.MaxInt16 {
		v = math.MaxInt16
	}
	if v < math.MinInt16 {
		v = math.MinInt16
	}
	return int16(v)
}

// RMS is the root mean square amplitude of samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
