// Package events publishes committed transcripts to message brokers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/obiente/translate/livescribe/internal/metrics"
	"github.com/obiente/translate/livescribe/internal/transcript"
)

// FinalEvent is the payload published for every committed final.
type FinalEvent struct {
	EventID      string            `json:"event_id"`
	ConnectionID string            `json:"connection_id"`
	PublishedAt  time.Time         `json:"published_at"`
	Transcript   transcript.Result `json:"transcript"`
}

// NewFinalEvent stamps r with a fresh event id.
func NewFinalEvent(connectionID string, r transcript.Result) FinalEvent {
	return FinalEvent{
		EventID:      ulid.Make().String(),
		ConnectionID: connectionID,
		PublishedAt:  time.Now().UTC(),
		Transcript:   r,
	}
}

// Sink receives committed finals. Implementations must be safe for
// concurrent use.
type Sink interface {
	PublishFinal(ctx context.Context, key string, r transcript.Result) error
	Close() error
}

// Config selects and configures the sinks.
type Config struct {
	Kafka KafkaConfig
	NATS  NATSConfig
}

// Build returns a sink for every enabled broker, or a log-only sink when
// none is enabled.
func Build(cfg Config, logger zerolog.Logger) (Sink, error) {
	var sinks []Sink
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		sinks = append(sinks, NewKafka(cfg.Kafka, logger))
	}
	if cfg.NATS.Enabled {
		n, err := NewNATS(cfg.NATS, logger)
		if err != nil {
			for _, s := range sinks {
				_ = s.Close()
			}
			return nil, err
		}
		sinks = append(sinks, n)
	}
	switch len(sinks) {
	case 0:
		logger.Info().Msg("no transcript sinks enabled, using log-only mode")
		return NewLogSink(logger), nil
	case 1:
		return sinks[0], nil
	}
	return Multi(sinks), nil
}

func marshal(key string, r transcript.Result) ([]byte, error) {
	return json.Marshal(NewFinalEvent(key, r))
}

// LogSink only logs events.
type LogSink struct {
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{log: logger.With().Str("sink", "log").Logger(), metrics: metrics.DefaultMetrics}
}

func (l *LogSink) PublishFinal(_ context.Context, key string, r transcript.Result) error {
	payload, err := marshal(key, r)
	if err != nil {
		return err
	}
	l.log.Debug().Str("key", key).RawJSON("payload", payload).Msg("final transcript")
	l.metrics.RecordPublish("log", nil)
	return nil
}

func (l *LogSink) Close() error { return nil }

// Multi fans out to every sink and joins their errors.
type Multi []Sink

func (m Multi) PublishFinal(ctx context.Context, key string, r transcript.Result) error {
	var errs []error
	for _, s := range m {
		if err := s.PublishFinal(ctx, key, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
