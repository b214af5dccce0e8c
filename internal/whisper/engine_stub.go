//go:build !whisper_cpp

package whisper

import "github.com/rs/zerolog/log"

// Default stub (no cgo) so the project builds without whisper_cpp tag.
type stubEngine struct{}

func NewEngine(modelPath string, threads int) (Engine, error) {
	log.Warn().Str("model", modelPath).Msg("whisper: built without whisper_cpp tag, transcripts will be empty")
	return &stubEngine{}, nil
}

func (e *stubEngine) Transcribe(samples []float32) (Transcript, error) { return Transcript{}, nil }
func (e *stubEngine) SetLanguage(lang string)                          {}
func (e *stubEngine) Close() error                                     { return nil }
