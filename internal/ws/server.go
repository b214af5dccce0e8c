// Package ws serves the live transcription websocket. Each connection runs
// a fixed set of tasks that share one cancellation: the first task to
// finish stops the others.
package ws

import (
	"context"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livescribe/internal/config"
	"github.com/obiente/translate/livescribe/internal/events"
	"github.com/obiente/translate/livescribe/internal/language"
	"github.com/obiente/translate/livescribe/internal/logging"
	"github.com/obiente/translate/livescribe/internal/metrics"
	"github.com/obiente/translate/livescribe/internal/recognizer"
	"github.com/obiente/translate/livescribe/internal/translation"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
)

// Client-chosen connection ids end up in export file names.
var validConnectionID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// EngineFactory creates the recognizer engine for one connection.
type EngineFactory func(lang language.Language, logger zerolog.Logger) (recognizer.Engine, error)

// Deps are the process-wide collaborators shared by all connections.
type Deps struct {
	Config    config.Config
	Registry  *language.Registry
	Detector  language.Detector
	NewEngine EngineFactory
	// Sink receives every committed final. Defaults to a log-only sink.
	Sink events.Sink
	// Translator is nil when translation is disabled.
	Translator *translation.Client
}

type Server struct {
	deps     Deps
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	conns    sync.WaitGroup
}

func NewServer(deps Deps) *Server {
	if deps.Registry == nil {
		deps.Registry = language.NewRegistry(deps.Config.Constrained())
	}
	if deps.Detector == nil {
		deps.Detector = language.NewDetector()
	}
	if deps.Sink == nil {
		deps.Sink = events.NewLogSink(log.Logger)
	}
	return &Server{
		deps: deps,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024 * 16,
			WriteBufferSize: 1024 * 16,
		},
		metrics: metrics.DefaultMetrics,
	}
}

// Handle upgrades the request and runs the connection until it ends.
func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	s.conns.Add(1)
	defer s.conns.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	id := connectionID(r.URL.Query().Get("connection_id"))
	logger := logging.WithConnection(id)

	s.metrics.ConnectionsTotal.Inc()
	s.metrics.ConnectionsActive.Inc()
	defer s.metrics.ConnectionsActive.Dec()

	c, err := newConnection(s, conn, id, logger)
	if err != nil {
		logger.Error().Err(err).Msg("connection setup failed")
		_ = conn.WriteJSON(map[string]any{"type": "error", "detail": err.Error()})
		return
	}
	logger.Info().Str("remote", r.RemoteAddr).Str("language", c.session.Language()).Msg("client connected")
	c.run(r.Context())
	logger.Info().Msg("client disconnected")
}

// Wait blocks until every connection handler has returned, including the
// final export each one writes, or until ctx is done.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// connectionID keeps a client-supplied id only if it is safe to use in a
// file name; otherwise a fresh ULID is used.
func connectionID(requested string) string {
	if validConnectionID.MatchString(requested) {
		return requested
	}
	id := ulid.Make().String()
	if requested != "" {
		log.Warn().Str("requested", requested).Str("connection_id", id).Msg("replacing invalid connection id")
	}
	return id
}

// exportPathFor gives each connection its own auto-save file by inserting
// the connection id before the extension. Ids that could leave the export
// directory disable exports.
func exportPathFor(base, id string) string {
	if base == "" || !validConnectionID.MatchString(id) {
		return ""
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "_" + id + ext
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f
	default:
		return 0
	}
}
