package ws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/obiente/translate/livescribe/internal/audio"
	"github.com/obiente/translate/livescribe/internal/frame"
	"github.com/obiente/translate/livescribe/internal/history"
	"github.com/obiente/translate/livescribe/internal/queue"
	"github.com/obiente/translate/livescribe/internal/recognizer"
	"github.com/obiente/translate/livescribe/internal/silence"
	"github.com/obiente/translate/livescribe/internal/textsim"
	"github.com/obiente/translate/livescribe/internal/transcript"
	"github.com/obiente/translate/livescribe/internal/transcription"
	"github.com/obiente/translate/livescribe/internal/turn"
)

const statusTick = time.Second

// connection is the per-socket task set.
type connection struct {
	srv  *Server
	conn *websocket.Conn
	id   string
	log  zerolog.Logger

	adapter  *recognizer.Adapter
	session  *transcription.Session
	monitor  *silence.Monitor
	audio    *queue.Queue[frame.AudioFrame]
	outbound *queue.Queue[map[string]any]
	finals   *queue.Queue[transcript.Result]
}

func newConnection(srv *Server, conn *websocket.Conn, id string, logger zerolog.Logger) (*connection, error) {
	cfg := srv.deps.Config
	lang, err := srv.deps.Registry.Lookup(cfg.DefaultLanguage)
	if err != nil {
		return nil, err
	}
	engine, err := srv.deps.NewEngine(lang, logger)
	if err != nil {
		return nil, fmt.Errorf("create recognizer: %w", err)
	}

	c := &connection{
		srv:      srv,
		conn:     conn,
		id:       id,
		log:      logger,
		adapter:  recognizer.NewAdapter(engine, logger),
		audio:    queue.New[frame.AudioFrame](cfg.QueueCapacity),
		outbound: queue.New[map[string]any](cfg.OutboundQueueSize),
		finals:   queue.New[transcript.Result](cfg.OutboundQueueSize),
	}

	exportPath := exportPathFor(cfg.ExportPath, id)
	store := history.New(history.Options{
		Capacity:      cfg.HistoryCapacity,
		AutoSaveEvery: cfg.AutoSaveInterval,
		AutoSavePath:  exportPath,
	}, logger)
	sess, err := transcription.New(c.adapter, transcription.Options{
		Language:        lang.Code,
		AutoSwitch:      cfg.AutoLanguageSwitching,
		Registry:        srv.deps.Registry,
		Detector:        srv.deps.Detector,
		Turn:            turn.NewHeuristic(cfg.SilenceDuration),
		History:         store,
		Comparator:      textsim.New(cfg.DedupWords, cfg.DedupThreshold),
		FinalExportPath: exportPath,
	}, c.hooks(), logger)
	if err != nil {
		_ = c.adapter.Shutdown()
		return nil, err
	}
	c.session = sess
	c.adapter.Bind(sess)
	c.monitor = silence.NewMonitor(silence.Config{
		PipelineLatency: cfg.PipelineLatency,
		ReserveMargin:   cfg.ReserveMargin,
		PollInterval:    cfg.SilencePollInterval,
	}, c.adapter, sess, logger)
	return c, nil
}

func (c *connection) hooks() transcription.Hooks {
	return transcription.Hooks{
		Partial: func(r transcript.Result) {
			c.send(map[string]any{
				"type":      "partial_transcription",
				"content":   r.Text,
				"language":  r.Language,
				"timestamp": r.UnixSeconds(),
			})
		},
		Final: func(r transcript.Result) {
			c.send(map[string]any{
				"type":       "final_transcription",
				"content":    r.Text,
				"language":   r.Language,
				"timestamp":  r.UnixSeconds(),
				"confidence": fmt.Sprintf("%.2f", r.Confidence),
			})
			if err := c.finals.TryEnqueue(r); err != nil {
				c.log.Warn().Err(err).Msg("publish queue full; final not published")
			}
		},
		LanguageChanged: func(code string) {
			c.send(map[string]any{"type": "language_changed", "content": code})
		},
		RecordingStarted: func(lang string, at time.Time) {
			c.send(map[string]any{
				"type": "recording_started",
				"content": map[string]any{
					"timestamp": float64(at.UnixNano()) / 1e9,
					"language":  lang,
				},
			})
		},
		SilenceChanged: func(silent bool) {
			c.send(map[string]any{
				"type": "recording_state",
				"content": map[string]any{
					"is_recording":   !silent,
					"silence_active": silent,
				},
			})
		},
	}
}

// send queues msg for the writer, dropping it when the writer is behind.
func (c *connection) send(msg map[string]any) {
	if err := c.outbound.TryEnqueue(msg); err != nil {
		c.srv.metrics.OutboundDropped.Inc()
		c.log.Warn().Err(err).Interface("type", msg["type"]).Msg("outbound queue full; dropping message")
	}
}

// run starts every task and blocks until all of them have returned, then
// tears down the recognizer and the session in that order.
func (c *connection) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	if err := c.adapter.Start(ctx); err != nil {
		c.log.Error().Err(err).Msg("recognizer start failed")
		_ = c.conn.WriteJSON(map[string]any{"type": "error", "detail": "recognizer unavailable"})
		_ = c.adapter.Shutdown()
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	task := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			defer cancel()
			err := fn(gctx)
			if err != nil {
				c.log.Debug().Err(err).Str("task", name).Msg("task ended")
			}
			return err
		})
	}
	task("read", c.readLoop)
	task("feed", c.feedLoop)
	task("write", c.writeLoop)
	task("status", c.statusLoop)
	task("silence", c.monitor.Run)
	task("publish", c.publishLoop)
	task("recognizer", c.watchRecognizer)

	err := g.Wait()
	switch {
	case errors.Is(err, recognizer.ErrEngineStopped):
		c.log.Error().Err(err).Msg("recognizer lost; closing connection")
		// Every writer has returned, so the socket is free.
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = c.conn.WriteJSON(map[string]any{"type": "error", "detail": "recognizer unavailable"})
	case err != nil && !errors.Is(err, context.Canceled):
		c.log.Warn().Err(err).Msg("connection ended with error")
	}

	if err := c.adapter.Shutdown(); err != nil {
		c.log.Warn().Err(err).Msg("recognizer shutdown failed")
	}
	c.session.Close()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

// watchRecognizer ends the connection when the engine stops on its own.
func (c *connection) watchRecognizer(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-c.adapter.Done():
		if ctx.Err() != nil {
			return nil
		}
		if err := c.adapter.Err(); err != nil {
			return err
		}
		return recognizer.ErrEngineStopped
	}
}

func (c *connection) readLoop(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(readTimeout)) })

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("ws read: %w", err)
		}
		// Bump read deadline on any activity
		_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))

		switch mt {
		case websocket.BinaryMessage:
			c.ingest(data)
		case websocket.TextMessage:
			c.handleControl(data)
		}
	}
}

func (c *connection) ingest(data []byte) {
	m := c.srv.metrics
	f, err := frame.Parse(data, time.Now())
	if err != nil {
		m.FramesMalformed.Inc()
		c.log.Warn().Err(err).Msg("discarding audio frame")
		return
	}
	m.FramesReceived.Inc()
	m.AudioBytes.Add(float64(len(f.PCM)))
	if err := c.audio.TryEnqueue(f); err != nil {
		m.FramesDropped.Inc()
		c.log.Warn().Err(err).
			Int("depth", c.audio.Len()).
			Int("capacity", c.audio.Cap()).
			Msg("audio queue full; dropping frame")
		return
	}
	m.QueueDepth.Observe(float64(c.audio.Len()))
}

func (c *connection) feedLoop(ctx context.Context) error {
	for {
		f, err := c.audio.Dequeue(ctx)
		if err != nil {
			return nil
		}
		samples, err := audio.DecodePCM16LE(f.PCM)
		if err != nil {
			c.log.Warn().Err(err).Int("bytes", len(f.PCM)).Msg("discarding audio frame")
			continue
		}
		c.session.ObserveAudio(samples)
		if err := c.adapter.Feed(f.PCM); err != nil {
			c.log.Warn().Err(err).Msg("recognizer feed failed")
		}
	}
}

func (c *connection) writeLoop(ctx context.Context) error {
	for {
		msg, err := c.outbound.Dequeue(ctx)
		if err != nil {
			return nil
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("ws write: %w", err)
		}
		if msg["type"] == "partial_transcription" {
			c.log.Trace().Interface("type", msg["type"]).Msg("sent")
		} else {
			c.log.Debug().Interface("type", msg["type"]).Msg("sent")
		}
	}
}

// statusLoop checks every second and reports once per status interval.
// It also pings the client so idle connections keep their read deadline.
func (c *connection) statusLoop(ctx context.Context) error {
	interval := c.srv.deps.Config.StatusInterval
	ticker := time.NewTicker(statusTick)
	defer ticker.Stop()
	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if now.Sub(last) < interval {
				continue
			}
			last = now
			c.send(c.status(now))
			if err := c.conn.WriteControl(websocket.PingMessage, nil, now.Add(writeTimeout)); err != nil {
				return fmt.Errorf("ws ping: %w", err)
			}
		}
	}
}

func (c *connection) status(now time.Time) map[string]any {
	stats := c.session.Stats()
	return map[string]any{
		"type": "transcription_status",
		"content": map[string]any{
			"language":            stats.CurrentLanguage,
			"is_recording":        !stats.SilenceActive,
			"transcription_count": stats.TotalTranscriptions,
			"session_duration":    now.Sub(c.session.History().Started()).Seconds(),
			"audio_queue_size":    c.audio.Len(),
			"statistics":          stats,
		},
	}
}

// publishLoop hands finals to the sink and, when enabled, the translator.
func (c *connection) publishLoop(ctx context.Context) error {
	tcfg := c.srv.deps.Config.Translation
	for {
		r, err := c.finals.Dequeue(ctx)
		if err != nil {
			return nil
		}
		if err := c.srv.deps.Sink.PublishFinal(ctx, c.id, r); err != nil {
			c.log.Warn().Err(err).Msg("publishing final failed")
		}
		if c.srv.deps.Translator == nil {
			continue
		}
		tctx, cancel := context.WithTimeout(ctx, tcfg.Timeout)
		translations, err := c.srv.deps.Translator.Translate(tctx, r.Text, r.Language, tcfg.Targets, tcfg.Alternatives)
		cancel()
		if err != nil {
			c.log.Warn().Err(err).Msg("translation failed")
			continue
		}
		if len(translations) == 0 {
			continue
		}
		c.send(map[string]any{
			"type":         "final_translation",
			"content":      r.Text,
			"language":     r.Language,
			"translations": translations,
		})
	}
}
