package recognizer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/obiente/translate/livescribe/internal/audio"
	"github.com/obiente/translate/livescribe/internal/language"
	"github.com/obiente/translate/livescribe/internal/metrics"
	"github.com/obiente/translate/livescribe/internal/whisper"
)

// LocalConfig tunes the in-process recognizer.
type LocalConfig struct {
	// SpeechThreshold is the frame RMS above which audio counts as speech.
	SpeechThreshold float64
	SilenceDuration time.Duration
	// RealtimeInterval is the minimum spacing of partial decodes.
	RealtimeInterval time.Duration
	// MinUtterance drops utterances too short to decode.
	MinUtterance time.Duration
	// MaxUtterance forces an utterance to end.
	MaxUtterance time.Duration
	// DumpDir, when set, receives a WAV file per finished utterance.
	DumpDir string
}

func (c LocalConfig) withDefaults() LocalConfig {
	if c.SpeechThreshold <= 0 {
		c.SpeechThreshold = 0.015
	}
	if c.SilenceDuration <= 0 {
		c.SilenceDuration = 700 * time.Millisecond
	}
	if c.RealtimeInterval <= 0 {
		c.RealtimeInterval = 200 * time.Millisecond
	}
	if c.MinUtterance <= 0 {
		c.MinUtterance = 300 * time.Millisecond
	}
	if c.MaxUtterance <= 0 {
		c.MaxUtterance = 30 * time.Second
	}
	return c
}

// ModelLoader opens a whisper engine for a model size hint.
type ModelLoader func(model string) (whisper.Engine, error)

// WhisperLoader loads ggml models from dir.
func WhisperLoader(dir string, threads int) ModelLoader {
	return func(model string) (whisper.Engine, error) {
		return whisper.NewEngine(whisper.ModelPath(dir, model), threads)
	}
}

type eventKind int

const (
	evRecordingStart eventKind = iota
	evTurnStart
	evTurnStop
	evPartial
	evFinal
)

type event struct {
	kind    eventKind
	samples []float32
	// utterance numbers the utterance the event belongs to.
	utterance uint64
}

// Local endpoints the incoming audio with an energy detector and decodes
// utterances with whisper on a single worker goroutine. All Handler calls
// happen on that goroutine, in order.
type Local struct {
	cfg     LocalConfig
	load    ModelLoader
	log     zerolog.Logger
	metrics *metrics.Metrics
	clock   func() time.Time

	events chan event
	done   chan struct{}
	wg     sync.WaitGroup

	mu           sync.Mutex
	handler      Handler
	lang         language.Language
	silenceDur   time.Duration
	recording    bool
	silent       bool
	silenceStart time.Time
	silentFor    time.Duration
	utterance    []float32
	// seq is the number of the current utterance, bumped when one is finalized.
	seq    uint64
	dirty  bool
	closed bool

	// worker-owned
	engines map[string]whisper.Engine
}

// NewLocal builds a local recognizer speaking lang.
func NewLocal(cfg LocalConfig, lang language.Language, load ModelLoader, logger zerolog.Logger) *Local {
	cfg = cfg.withDefaults()
	return &Local{
		cfg:        cfg,
		load:       load,
		log:        logger.With().Str("engine", "local").Logger(),
		metrics:    metrics.DefaultMetrics,
		clock:      time.Now,
		events:     make(chan event, 16),
		done:       make(chan struct{}),
		lang:       lang,
		silenceDur: cfg.SilenceDuration,
		engines:    make(map[string]whisper.Engine),
	}
}

func (l *Local) Start(ctx context.Context, h Handler) error {
	l.mu.Lock()
	if l.handler != nil {
		l.mu.Unlock()
		return fmt.Errorf("local recognizer already started")
	}
	l.handler = h
	lang := l.lang
	l.mu.Unlock()

	// Load the first model eagerly so a missing file fails the connection.
	if _, err := l.engineFor(lang); err != nil {
		return err
	}

	l.wg.Add(2)
	go l.work()
	go l.realtime()
	return nil
}

func (l *Local) Feed(pcm []byte) error {
	samples, err := audio.DecodePCM16LE(pcm)
	if err != nil {
		return fmt.Errorf("decode pcm: %w", err)
	}
	if len(samples) == 0 {
		return nil
	}
	speech := audio.RMS(samples) >= l.cfg.SpeechThreshold
	chunk := time.Duration(len(samples)) * time.Second / audio.DefaultSampleRate
	maxSamples := int(l.cfg.MaxUtterance.Seconds() * audio.DefaultSampleRate)

	var out []event
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	switch {
	case !l.recording && speech:
		if l.silent {
			l.silent = false
			out = append(out, event{kind: evTurnStop})
		}
		l.recording = true
		l.utterance = append([]float32(nil), samples...)
		l.silenceStart = time.Time{}
		l.silentFor = 0
		l.dirty = true
		out = append(out, event{kind: evRecordingStart})
	case l.recording:
		l.utterance = append(l.utterance, samples...)
		l.dirty = true
		if speech {
			l.silentFor = 0
			if l.silent {
				l.silent = false
				l.silenceStart = time.Time{}
				out = append(out, event{kind: evTurnStop})
			}
		} else {
			if !l.silent {
				l.silent = true
				l.silenceStart = l.clock()
				out = append(out, event{kind: evTurnStart})
			}
			l.silentFor += chunk
		}
		if l.silentFor >= l.silenceDur || len(l.utterance) >= maxSamples {
			out = append(out, event{kind: evFinal, samples: l.utterance, utterance: l.seq})
			l.seq++
			l.utterance = nil
			l.recording = false
			l.dirty = false
			l.silentFor = 0
			l.silenceStart = time.Time{}
		}
	}
	l.mu.Unlock()

	for _, e := range out {
		l.emit(e)
	}
	return nil
}

// emit queues an event for the worker. Partials are skipped when the worker
// is behind; everything else waits.
func (l *Local) emit(e event) {
	if e.kind == evPartial {
		select {
		case l.events <- e:
		case <-l.done:
		default:
		}
		return
	}
	select {
	case l.events <- e:
	case <-l.done:
	}
}

func (l *Local) realtime() {
	defer l.wg.Done()
	ticker := time.NewTicker(l.cfg.RealtimeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			if e, ok := l.partial(); ok {
				l.emit(e)
			}
		}
	}
}

// partial snapshots the utterance in progress if it has new audio.
func (l *Local) partial() (event, bool) {
	minSamples := int(l.cfg.MinUtterance.Seconds() * audio.DefaultSampleRate)
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.recording || !l.dirty || len(l.utterance) < minSamples {
		return event{}, false
	}
	l.dirty = false
	return event{
		kind:      evPartial,
		samples:   append([]float32(nil), l.utterance...),
		utterance: l.seq,
	}, true
}

// stale reports whether e belongs to an utterance that was already finalized.
func (l *Local) stale(e event) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return e.utterance != l.seq
}

func (l *Local) work() {
	defer l.wg.Done()
	for {
		select {
		case <-l.done:
			return
		case e := <-l.events:
			l.handle(e)
		}
	}
}

func (l *Local) handle(e event) {
	h := l.handler
	switch e.kind {
	case evRecordingStart:
		h.OnRecordingStart()
	case evTurnStart:
		h.OnTurnDetectionStart()
	case evTurnStop:
		h.OnTurnDetectionStop()
	case evPartial:
		if l.stale(e) {
			l.log.Trace().Uint64("utterance", e.utterance).Msg("dropping partial for finalized utterance")
			return
		}
		if text := l.transcribe(e.samples, "partial"); text != "" && !l.stale(e) {
			h.OnPartial(text)
		}
	case evFinal:
		h.OnRecordingStop()
		minSamples := int(l.cfg.MinUtterance.Seconds() * audio.DefaultSampleRate)
		if len(e.samples) < minSamples {
			l.log.Debug().Int("samples", len(e.samples)).Msg("utterance too short, skipping final decode")
			return
		}
		l.dump(e.samples)
		if text := l.transcribe(e.samples, "final"); text != "" {
			h.OnFinal(text)
		}
	}
}

func (l *Local) transcribe(samples []float32, kind string) string {
	l.mu.Lock()
	lang := l.lang
	l.mu.Unlock()

	eng, err := l.engineFor(lang)
	if err != nil {
		l.log.Error().Err(err).Str("model", lang.Model).Msg("whisper engine unavailable")
		return ""
	}
	start := time.Now()
	tr, err := eng.Transcribe(samples)
	l.metrics.EngineLatency.WithLabelValues("local", kind).Observe(time.Since(start).Seconds())
	if err != nil {
		l.log.Warn().Err(err).Str("kind", kind).Msg("transcription failed")
		return ""
	}
	return strings.TrimSpace(tr.Text)
}

// engineFor returns the cached whisper engine for the language's model hint,
// loading it on first use.
func (l *Local) engineFor(lang language.Language) (whisper.Engine, error) {
	eng, ok := l.engines[lang.Model]
	if !ok {
		var err error
		eng, err = l.load(lang.Model)
		if err != nil {
			return nil, fmt.Errorf("load model %q: %w", lang.Model, err)
		}
		l.engines[lang.Model] = eng
	}
	eng.SetLanguage(lang.WhisperCode)
	return eng, nil
}

func (l *Local) dump(samples []float32) {
	if l.cfg.DumpDir == "" {
		return
	}
	path := filepath.Join(l.cfg.DumpDir, ulid.Make().String()+".wav")
	if err := audio.WriteWAVFile(path, samples, audio.DefaultSampleRate); err != nil {
		l.log.Warn().Err(err).Str("path", path).Msg("utterance dump failed")
	}
}

func (l *Local) SetLanguage(lang language.Language) {
	l.mu.Lock()
	l.lang = lang
	l.mu.Unlock()
}

func (l *Local) SetSilenceDuration(d time.Duration) {
	if d <= 0 {
		return
	}
	l.mu.Lock()
	l.silenceDur = d
	l.mu.Unlock()
}

func (l *Local) SilenceDuration() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.silenceDur
}

func (l *Local) SilenceStart() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.silenceStart
}

func (l *Local) Done() <-chan struct{} { return l.done }

// Err is always nil: the local engine only stops when closed.
func (l *Local) Err() error { return nil }

func (l *Local) IsRecording() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recording
}

// Close stops the worker and releases every loaded model.
func (l *Local) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.done)
	l.mu.Unlock()

	l.wg.Wait()
	var firstErr error
	for model, eng := range l.engines {
		if err := eng.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close model %q: %w", model, err)
		}
	}
	return firstErr
}
