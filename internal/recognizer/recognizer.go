// Package recognizer wraps speech recognition engines behind a single
// adapter that the transcription session drives.
package recognizer

import (
	"context"
	"time"

	"github.com/obiente/translate/livescribe/internal/language"
)

// Handler receives recognizer events. Engines invoke it from their own
// goroutine, never concurrently with itself.
type Handler interface {
	OnPartial(text string)
	OnFinal(text string)
	OnRecordingStart()
	// OnRecordingStop is called when an utterance ends, before its final
	// text is produced.
	OnRecordingStop() bool
	OnTurnDetectionStart()
	OnTurnDetectionStop()
}

// Engine is a speech recognition backend.
type Engine interface {
	Start(ctx context.Context, h Handler) error
	Feed(pcm []byte) error
	SetLanguage(lang language.Language)
	SetSilenceDuration(d time.Duration)
	SilenceDuration() time.Duration
	// SilenceStart is the instant the current silence began, zero if none.
	SilenceStart() time.Time
	IsRecording() bool
	// Done is closed once the engine has stopped, after Close or when it
	// fails on its own.
	Done() <-chan struct{}
	// Err is nil unless the engine stopped on its own, in which case it
	// wraps ErrEngineStopped.
	Err() error
	Close() error
}
