package recognizer

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/obiente/translate/livescribe/internal/language"
)

const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

// Options selects and configures an Engine.
type Options struct {
	Mode     string
	ModelDir string
	Threads  int
	Local    LocalConfig
	Remote   RemoteConfig
	// Dialer overrides the remote websocket dialer.
	Dialer Dialer
	// Loader overrides whisper model loading for the local engine.
	Loader ModelLoader
}

// NewEngine builds the engine variant named by opts.Mode, speaking lang.
func NewEngine(opts Options, lang language.Language, logger zerolog.Logger) (Engine, error) {
	switch opts.Mode {
	case ModeLocal, "":
		load := opts.Loader
		if load == nil {
			load = WhisperLoader(opts.ModelDir, opts.Threads)
		}
		return NewLocal(opts.Local, lang, load, logger), nil
	case ModeRemote:
		return NewRemote(opts.Remote, lang, opts.Dialer, logger), nil
	default:
		return nil, fmt.Errorf("unknown recognizer mode %q", opts.Mode)
	}
}
