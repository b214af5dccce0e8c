package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/obiente/translate/livescribe/internal/transcript"
)

type fakeSink struct {
	keys   []string
	err    error
	closed bool
}

func (f *fakeSink) PublishFinal(_ context.Context, key string, _ transcript.Result) error {
	f.keys = append(f.keys, key)
	return f.err
}

func (f *fakeSink) Close() error {
	f.closed = true
	return f.err
}

func TestBuildWithoutBrokersIsLogOnly(t *testing.T) {
	sink, err := Build(Config{Kafka: KafkaConfig{Enabled: true}}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := sink.(*LogSink); !ok {
		t.Fatalf("sink = %T, want *LogSink", sink)
	}
	r := transcript.New("hello", 0.9, time.Now(), "en", true, 1)
	if err := sink.PublishFinal(context.Background(), "conn-1", r); err != nil {
		t.Errorf("PublishFinal: %v", err)
	}
}

func TestBuildKafkaOnly(t *testing.T) {
	sink, err := Build(Config{Kafka: KafkaConfig{Enabled: true, Brokers: []string{"localhost:9092"}, Topic: "finals"}}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	k, ok := sink.(*KafkaSink)
	if !ok {
		t.Fatalf("sink = %T, want *KafkaSink", sink)
	}
	if k.topic != "finals" {
		t.Errorf("topic = %q", k.topic)
	}
	_ = k.Close()
}

func TestBuildNATSWithoutServersFails(t *testing.T) {
	if _, err := Build(Config{NATS: NATSConfig{Enabled: true}}, zerolog.Nop()); err == nil {
		t.Error("expected an error without NATS servers")
	}
}

func TestMultiFansOut(t *testing.T) {
	a, b := &fakeSink{}, &fakeSink{err: errors.New("down")}
	m := Multi{a, b}
	r := transcript.New("hi", 1, time.Now(), "en", true, 0)

	err := m.PublishFinal(context.Background(), "k", r)
	if err == nil || err.Error() != "down" {
		t.Errorf("err = %v, want down", err)
	}
	if len(a.keys) != 1 || len(b.keys) != 1 {
		t.Errorf("publishes = %d/%d, want 1/1", len(a.keys), len(b.keys))
	}
	_ = m.Close()
	if !a.closed || !b.closed {
		t.Error("Multi.Close skipped a sink")
	}
}

func TestFinalEventJSON(t *testing.T) {
	r := transcript.New("नमस्ते world", 0.5, time.Unix(1700000000, 0), "hi-en", true, 2)
	data, err := marshal("conn-7", r)
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		EventID      string `json:"event_id"`
		ConnectionID string `json:"connection_id"`
		Transcript   struct {
			Text     string  `json:"text"`
			Language string  `json:"language"`
			IsFinal  bool    `json:"is_final"`
			Time     float64 `json:"timestamp"`
		} `json:"transcript"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.EventID) != 26 || got.ConnectionID != "conn-7" {
		t.Errorf("envelope = %+v", got)
	}
	if got.Transcript.Text != r.Text || got.Transcript.Language != "hi-en" || !got.Transcript.IsFinal || got.Transcript.Time != 1700000000 {
		t.Errorf("transcript = %+v", got.Transcript)
	}
}

func TestSubjectFor(t *testing.T) {
	tests := []struct{ base, lang, want string }{
		{"livescribe.finals", "en", "livescribe.finals.en"},
		{"livescribe.finals", "hi-en", "livescribe.finals.hi-en"},
		{"livescribe.finals", "", "livescribe.finals.unknown"},
		{"x", "a.b", "x.a_b"},
	}
	for _, tt := range tests {
		if got := SubjectFor(tt.base, tt.lang); got != tt.want {
			t.Errorf("SubjectFor(%q, %q) = %q, want %q", tt.base, tt.lang, got, tt.want)
		}
	}
}
