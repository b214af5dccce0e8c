package recognizer

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/obiente/translate/livescribe/internal/language"
	"github.com/obiente/translate/livescribe/internal/metrics"
)

var (
	// ErrCallbackPanic wraps a value recovered from a handler.
	ErrCallbackPanic = errors.New("recognizer callback panic")
	// ErrShuttingDown is logged for work arriving after Shutdown.
	ErrShuttingDown = errors.New("recognizer shutting down")
	// ErrEngineStopped is reported by Err when an engine stops on its own.
	ErrEngineStopped = errors.New("recognizer stopped")
)

// Adapter owns an Engine and forwards its events to a rebindable Handler.
// Handler panics are recovered and logged so a faulty callback never takes
// down the connection.
type Adapter struct {
	engine  Engine
	log     zerolog.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	handler Handler

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewAdapter wraps engine. Call Bind and Start before feeding audio.
func NewAdapter(engine Engine, logger zerolog.Logger) *Adapter {
	return &Adapter{
		engine:  engine,
		log:     logger.With().Str("component", "recognizer").Logger(),
		metrics: metrics.DefaultMetrics,
	}
}

// Bind atomically replaces the event handler and returns the previous one.
func (a *Adapter) Bind(h Handler) Handler {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.handler
	a.handler = h
	return prev
}

// Start starts the engine with the adapter as its event sink.
func (a *Adapter) Start(ctx context.Context) error {
	if err := a.engine.Start(ctx, dispatcher{a}); err != nil {
		return fmt.Errorf("start recognizer: %w", err)
	}
	return nil
}

// Feed passes PCM16LE audio to the engine. After Shutdown it silently drops
// the audio.
func (a *Adapter) Feed(pcm []byte) error {
	if a.closed.Load() {
		a.log.Trace().Err(ErrShuttingDown).Int("bytes", len(pcm)).Msg("dropping late audio")
		return nil
	}
	return a.engine.Feed(pcm)
}

func (a *Adapter) SetLanguage(lang language.Language) {
	if a.closed.Load() {
		return
	}
	a.engine.SetLanguage(lang)
}

func (a *Adapter) SetSilenceDuration(d time.Duration) {
	if a.closed.Load() {
		return
	}
	a.engine.SetSilenceDuration(d)
}

func (a *Adapter) SilenceDuration() time.Duration { return a.engine.SilenceDuration() }

func (a *Adapter) SilenceStart() time.Time {
	if a.closed.Load() {
		return time.Time{}
	}
	return a.engine.SilenceStart()
}

func (a *Adapter) IsRecording() bool { return !a.closed.Load() && a.engine.IsRecording() }

// Done is closed when the engine stops, whether by Shutdown or on its own.
func (a *Adapter) Done() <-chan struct{} { return a.engine.Done() }

func (a *Adapter) Err() error { return a.engine.Err() }

// Shutdown closes the engine once. Later calls return the first result.
func (a *Adapter) Shutdown() error {
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		a.closeErr = a.engine.Close()
	})
	return a.closeErr
}

func (a *Adapter) current() Handler {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.handler
}

// invoke runs fn against the bound handler, recovering panics. It reports
// whether fn completed.
func (a *Adapter) invoke(event string, fn func(Handler)) (ok bool) {
	h := a.current()
	if h == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
			a.metrics.RecognizerPanics.Inc()
			a.log.Error().
				Err(fmt.Errorf("%w: %v", ErrCallbackPanic, r)).
				Str("event", event).
				Bytes("stack", debug.Stack()).
				Msg("recovered panic in recognizer callback")
		}
	}()
	fn(h)
	return true
}

// dispatcher is the Handler engines see; it routes through the adapter.
type dispatcher struct{ a *Adapter }

func (d dispatcher) OnPartial(text string) {
	d.a.invoke("partial", func(h Handler) { h.OnPartial(text) })
}

func (d dispatcher) OnFinal(text string) {
	d.a.invoke("final", func(h Handler) { h.OnFinal(text) })
}

func (d dispatcher) OnRecordingStart() {
	d.a.invoke("recording_start", func(h Handler) { h.OnRecordingStart() })
}

func (d dispatcher) OnRecordingStop() bool {
	var res bool
	d.a.invoke("recording_stop", func(h Handler) { res = h.OnRecordingStop() })
	return res
}

func (d dispatcher) OnTurnDetectionStart() {
	d.a.invoke("turn_start", func(h Handler) { h.OnTurnDetectionStart() })
}

func (d dispatcher) OnTurnDetectionStop() {
	d.a.invoke("turn_stop", func(h Handler) { h.OnTurnDetectionStop() })
}
