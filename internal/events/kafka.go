package events

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/obiente/translate/livescribe/internal/metrics"
	"github.com/obiente/translate/livescribe/internal/transcript"
)

// KafkaConfig configures the Kafka sink.
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// KafkaSink writes finals to one topic keyed by connection id.
type KafkaSink struct {
	writer  *kafka.Writer
	topic   string
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewKafka creates the writer. No connection is made until the first write.
func NewKafka(cfg KafkaConfig, logger zerolog.Logger) *KafkaSink {
	// longer dial timeout for broker DNS in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}
	log := logger.With().Str("sink", "kafka").Str("topic", cfg.Topic).Logger()
	log.Info().Strs("brokers", cfg.Brokers).Msg("kafka sink initialized")
	return &KafkaSink{writer: writer, topic: cfg.Topic, log: log, metrics: metrics.DefaultMetrics}
}

func (k *KafkaSink) PublishFinal(ctx context.Context, key string, r transcript.Result) error {
	payload, err := marshal(key, r)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte("final")},
			{Key: "language", Value: []byte(r.Language)},
		},
	}
	err = k.writer.WriteMessages(ctx, msg)
	k.metrics.RecordPublish("kafka", err)
	if err != nil {
		k.log.Error().Err(err).Str("key", key).Msg("failed to write to kafka")
		return fmt.Errorf("kafka publish: %w", err)
	}
	return nil
}

func (k *KafkaSink) Close() error {
	if err := k.writer.Close(); err != nil {
		k.log.Error().Err(err).Msg("error closing kafka writer")
		return err
	}
	return nil
}
