package whisper

import "path/filepath"

const (
	// SampleRate is the only rate whisper accepts.
	SampleRate = 16000
	// MinSamples is the shortest buffer worth decoding (100ms).
	MinSamples = SampleRate / 10
	// MaxSamples caps a single decode at 30s, whisper's window.
	MaxSamples = 30 * SampleRate
)

// Transcript is the text decoded from one buffer.
type Transcript struct {
	Text     string
	Language string
}

// Engine is a small interface for whisper transcription.
// Implementations may be a no-op (stub) or backed by whisper.cpp (build tag: whisper_cpp).
type Engine interface {
	// Transcribe decodes 16kHz mono PCM32F samples. Buffers shorter than
	// MinSamples yield an empty transcript.
	Transcribe(samples []float32) (Transcript, error)
	// SetLanguage configures the decode language. Empty or "auto" means auto-detection.
	SetLanguage(lang string)
	Close() error
}

// ModelPath maps a model size hint such as "base.en" to a ggml file in dir.
func ModelPath(dir, hint string) string {
	return filepath.Join(dir, "ggml-"+hint+".bin")
}
