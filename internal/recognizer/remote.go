package recognizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/obiente/translate/livescribe/internal/language"
)

// Dialer opens the websocket to a remote recognizer. *websocket.Dialer
// satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// RemoteConfig configures the websocket recognizer client.
type RemoteConfig struct {
	URL             string
	SilenceDuration time.Duration
	WriteTimeout    time.Duration
}

// remoteEvent is a message from the recognition server.
type remoteEvent struct {
	Type         string  `json:"type"`
	Text         string  `json:"text"`
	SilenceStart float64 `json:"silence_start"`
}

type setParameter struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Remote streams audio to an external recognition server over a websocket.
// PCM goes out as binary messages; events come back as JSON text messages
// and are dispatched from the read goroutine.
type Remote struct {
	cfg    RemoteConfig
	dialer Dialer
	log    zerolog.Logger
	clock  func() time.Time

	conn     *websocket.Conn
	writeMu  sync.Mutex
	wg       sync.WaitGroup
	closed   atomic.Bool
	done     chan struct{}
	doneOnce sync.Once
	err      error

	mu           sync.Mutex
	lang         language.Language
	silenceDur   time.Duration
	silenceStart time.Time
	recording    bool
}

// NewRemote builds a remote recognizer. A nil dialer uses websocket.DefaultDialer.
func NewRemote(cfg RemoteConfig, lang language.Language, dialer Dialer, logger zerolog.Logger) *Remote {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.SilenceDuration <= 0 {
		cfg.SilenceDuration = 700 * time.Millisecond
	}
	return &Remote{
		cfg:        cfg,
		dialer:     dialer,
		log:        logger.With().Str("engine", "remote").Logger(),
		clock:      time.Now,
		done:       make(chan struct{}),
		lang:       lang,
		silenceDur: cfg.SilenceDuration,
	}
}

func (r *Remote) Start(ctx context.Context, h Handler) error {
	if r.cfg.URL == "" {
		return errors.New("remote recognizer url is empty")
	}
	conn, resp, err := r.dialer.DialContext(ctx, r.cfg.URL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %w (status %d)", r.cfg.URL, err, resp.StatusCode)
		}
		return fmt.Errorf("dial %s: %w", r.cfg.URL, err)
	}
	r.conn = conn

	r.mu.Lock()
	lang, dur := r.lang, r.silenceDur
	r.mu.Unlock()
	if err := r.sendParameter("language", lang.WhisperCode); err != nil {
		conn.Close()
		return err
	}
	if err := r.sendParameter("post_speech_silence_duration", dur.Seconds()); err != nil {
		conn.Close()
		return err
	}

	r.wg.Add(1)
	go r.readLoop(h)
	r.log.Info().Str("url", r.cfg.URL).Msg("connected to remote recognizer")
	return nil
}

func (r *Remote) readLoop(h Handler) {
	defer r.wg.Done()
	defer r.finish()
	for {
		mt, data, err := r.conn.ReadMessage()
		if err != nil {
			if !r.closed.Load() {
				r.log.Warn().Err(err).Msg("remote recognizer read failed")
				r.mu.Lock()
				r.err = fmt.Errorf("%w: %v", ErrEngineStopped, err)
				r.mu.Unlock()
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var ev remoteEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			r.log.Warn().Err(err).Msg("invalid event from remote recognizer")
			continue
		}
		r.dispatch(h, ev)
	}
}

func (r *Remote) dispatch(h Handler, ev remoteEvent) {
	switch ev.Type {
	case "partial":
		h.OnPartial(ev.Text)
	case "final":
		h.OnFinal(ev.Text)
	case "recording_start":
		r.mu.Lock()
		r.recording = true
		r.mu.Unlock()
		h.OnRecordingStart()
	case "recording_stop":
		r.mu.Lock()
		r.recording = false
		r.mu.Unlock()
		h.OnRecordingStop()
	case "turn_start":
		start := r.clock()
		if ev.SilenceStart > 0 {
			sec, frac := math.Modf(ev.SilenceStart)
			start = time.Unix(int64(sec), int64(frac*1e9))
		}
		r.mu.Lock()
		r.silenceStart = start
		r.mu.Unlock()
		h.OnTurnDetectionStart()
	case "turn_stop":
		r.mu.Lock()
		r.silenceStart = time.Time{}
		r.mu.Unlock()
		h.OnTurnDetectionStop()
	default:
		r.log.Debug().Str("type", ev.Type).Msg("ignoring remote recognizer event")
	}
}

func (r *Remote) write(mt int, data []byte) error {
	if r.conn == nil {
		return errors.New("remote recognizer not started")
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	_ = r.conn.SetWriteDeadline(time.Now().Add(r.cfg.WriteTimeout))
	return r.conn.WriteMessage(mt, data)
}

func (r *Remote) sendParameter(name string, value any) error {
	b, err := json.Marshal(setParameter{Type: "set_parameter", Name: name, Value: value})
	if err != nil {
		return err
	}
	if err := r.write(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	return nil
}

func (r *Remote) Feed(pcm []byte) error {
	if r.closed.Load() || len(pcm) == 0 {
		return nil
	}
	select {
	case <-r.done:
		// The coordinator learns about this through Done.
		return nil
	default:
	}
	if err := r.write(websocket.BinaryMessage, pcm); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

func (r *Remote) SetLanguage(lang language.Language) {
	r.mu.Lock()
	r.lang = lang
	r.mu.Unlock()
	if r.conn == nil || r.closed.Load() {
		return
	}
	if err := r.sendParameter("language", lang.WhisperCode); err != nil {
		r.log.Warn().Err(err).Msg("remote language update failed")
	}
}

func (r *Remote) SetSilenceDuration(d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	changed := r.silenceDur != d
	r.silenceDur = d
	r.mu.Unlock()
	if !changed || r.conn == nil || r.closed.Load() {
		return
	}
	if err := r.sendParameter("post_speech_silence_duration", d.Seconds()); err != nil {
		r.log.Warn().Err(err).Msg("remote silence update failed")
	}
}

func (r *Remote) SilenceDuration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.silenceDur
}

func (r *Remote) SilenceStart() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.silenceStart
}

func (r *Remote) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

func (r *Remote) finish() { r.doneOnce.Do(func() { close(r.done) }) }

func (r *Remote) Done() <-chan struct{} { return r.done }

func (r *Remote) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close sends a close frame, closes the socket and waits for the reader.
func (r *Remote) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	defer r.finish()
	if r.conn == nil {
		return nil
	}
	_ = r.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := r.conn.Close()
	r.wg.Wait()
	return err
}
