//go:build whisper_cpp

package whisper

import (
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	whisperpkg "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog/log"
)

// EngineCPP is the whisper.cpp-backed implementation of Engine.
type EngineCPP struct {
	model    whisperpkg.Model
	threads  uint
	language string     // "auto" for auto-detection
	mu       sync.Mutex // whisper.cpp contexts must not decode concurrently
}

// NewEngine loads a ggml model. threads <= 0 uses one thread per CPU.
func NewEngine(modelPath string, threads int) (Engine, error) {
	n := uint(runtime.NumCPU())
	if threads > 0 {
		n = uint(threads)
	}
	m, err := whisperpkg.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", modelPath, err)
	}
	log.Info().Str("model", modelPath).Uint("threads", n).Msg("whisper: model loaded")
	return &EngineCPP{model: m, threads: n, language: "auto"}, nil
}

func (e *EngineCPP) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}

// SetLanguage configures the language for transcription. Use "auto" for auto-detection.
func (e *EngineCPP) SetLanguage(lang string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if lang == "" {
		lang = "auto"
	}
	e.language = lang
	log.Debug().Str("language", lang).Msg("whisper: language configured")
}

// Transcribe runs a full-context decode. Calls are serialised.
func (e *EngineCPP) Transcribe(samples []float32) (Transcript, error) {
	if len(samples) < MinSamples {
		return Transcript{}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(samples) > MaxSamples {
		log.Warn().Int("samples", len(samples)).Int("max", MaxSamples).Msg("whisper: truncating long audio")
		samples = samples[len(samples)-MaxSamples:]
	}

	ctx, err := e.model.NewContext()
	if err != nil {
		return Transcript{}, fmt.Errorf("create context: %w", err)
	}
	ctx.SetThreads(e.threads)
	_ = ctx.SetLanguage(e.language)
	ctx.SetSplitOnWord(true)
	ctx.SetTokenTimestamps(true)
	ctx.SetMaxSegmentLength(0)
	ctx.SetMaxTokensPerSegment(0)
	ctx.SetAudioCtx(0)

	if err := ctx.Process(samples, nil, nil, nil); err != nil {
		return Transcript{}, fmt.Errorf("process audio: %w", err)
	}

	var segments []string
	for {
		seg, err := ctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn().Err(err).Msg("whisper: error reading segment")
			break
		}
		if text := strings.TrimSpace(seg.Text); text != "" {
			segments = append(segments, text)
		}
	}

	lang := ctx.Language()
	if lang == "" || lang == "auto" {
		lang = ctx.DetectedLanguage()
	}
	return Transcript{Text: strings.Join(segments, " "), Language: lang}, nil
}
