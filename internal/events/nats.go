package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/obiente/translate/livescribe/internal/metrics"
	"github.com/obiente/translate/livescribe/internal/transcript"
)

// NATSConfig configures the NATS sink.
type NATSConfig struct {
	Enabled        bool
	Servers        []string
	Subject        string
	ConnectTimeout time.Duration
	Token          string
}

// NATSSink publishes finals on <Subject>.<language>.
type NATSSink struct {
	conn    *nats.Conn
	subject string
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewNATS connects to the configured servers.
func NewNATS(cfg NATSConfig, logger zerolog.Logger) (*NATSSink, error) {
	if len(cfg.Servers) == 0 {
		return nil, fmt.Errorf("nats sink: no servers configured")
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	options := []nats.Option{
		nats.Name("livescribe"),
		nats.Timeout(timeout),
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}
	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	log := logger.With().Str("sink", "nats").Str("subject", cfg.Subject).Logger()
	log.Info().Str("servers", url).Msg("connected to NATS")
	return &NATSSink{conn: conn, subject: cfg.Subject, log: log, metrics: metrics.DefaultMetrics}, nil
}

// Subject returns the subject a result is published on.
func (n *NATSSink) Subject(r transcript.Result) string {
	return SubjectFor(n.subject, r.Language)
}

// SubjectFor joins the base subject and a NATS-safe language token.
func SubjectFor(base, lang string) string {
	if lang == "" {
		lang = "unknown"
	}
	return base + "." + strings.ReplaceAll(lang, ".", "_")
}

func (n *NATSSink) PublishFinal(_ context.Context, key string, r transcript.Result) error {
	payload, err := marshal(key, r)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(n.Subject(r))
	msg.Data = payload
	msg.Header.Set("Connection-Id", key)
	err = n.conn.PublishMsg(msg)
	n.metrics.RecordPublish("nats", err)
	if err != nil {
		n.log.Error().Err(err).Str("key", key).Msg("failed to publish to nats")
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

func (n *NATSSink) Close() error {
	n.log.Info().Msg("closing NATS connection")
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}
