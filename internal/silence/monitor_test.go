package silence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/obiente/translate/livescribe/internal/history"
	"github.com/obiente/translate/livescribe/internal/language"
	"github.com/obiente/translate/livescribe/internal/transcript"
	"github.com/obiente/translate/livescribe/internal/transcription"
)

type fakeSource struct {
	mu       sync.Mutex
	start    time.Time
	duration time.Duration
}

func (f *fakeSource) SilenceStart() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.start
}

func (f *fakeSource) SilenceDuration() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration
}

func (f *fakeSource) set(start time.Time) {
	f.mu.Lock()
	f.start = start
	f.mu.Unlock()
}

type countingTarget struct {
	mu    sync.Mutex
	text  string
	fired int
}

func (c *countingTarget) FinalizePartial(string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.text == "" {
		return false
	}
	c.text = ""
	c.fired++
	return true
}

var cfg = Config{PipelineLatency: 300 * time.Millisecond, ReserveMargin: 15 * time.Millisecond}

func TestFinalizeOnSilence(t *testing.T) {
	var mu sync.Mutex
	var finals []transcript.Result
	sess, err := transcription.New(nil, transcription.Options{
		Language: language.English,
		History:  history.New(history.Options{Capacity: 10}, zerolog.Nop()),
	}, transcription.Hooks{
		Final: func(r transcript.Result) { mu.Lock(); finals = append(finals, r); mu.Unlock() },
	}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	src := &fakeSource{duration: 700 * time.Millisecond}
	m := NewMonitor(cfg, src, sess, zerolog.Nop())

	sess.OnRecordingStart()
	for _, p := range []string{"hel", "hello", "hello wor"} {
		sess.OnPartial(p)
	}
	if m.Check(time.Now()) || m.State() != Idle {
		t.Fatal("monitor left idle without silence")
	}

	t0 := time.Now()
	src.set(t0)
	want := t0.Add(385 * time.Millisecond)
	if got := m.Deadline(t0); !got.Equal(want) {
		t.Fatalf("deadline = %v after silence, want 385ms", got.Sub(t0))
	}
	if m.Check(t0.Add(380 * time.Millisecond)) {
		t.Fatal("finalized before the deadline")
	}
	if m.State() != Watching {
		t.Fatalf("state = %s, want watching", m.State())
	}
	if !m.Check(t0.Add(390 * time.Millisecond)) {
		t.Fatal("did not finalize after the deadline")
	}
	if m.State() != Idle {
		t.Errorf("state = %s after finalizing, want idle", m.State())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(finals) != 1 || finals[0].Text != "hello wor" || !finals[0].IsFinal {
		t.Fatalf("finals = %+v, want one final \"hello wor\"", finals)
	}
}

func TestFiresOncePerSilenceWindow(t *testing.T) {
	src := &fakeSource{duration: 700 * time.Millisecond}
	target := &countingTarget{text: "hello"}
	m := NewMonitor(cfg, src, target, zerolog.Nop())

	t0 := time.Now()
	src.set(t0)
	if !m.Check(t0.Add(time.Second)) {
		t.Fatal("expected finalize")
	}
	target.text = "again"
	if m.Check(t0.Add(2 * time.Second)) {
		t.Fatal("finalized twice in one silence window")
	}

	t1 := t0.Add(3 * time.Second)
	src.set(t1)
	if !m.Check(t1.Add(time.Second)) {
		t.Fatal("new silence window did not finalize")
	}
	if target.fired != 2 {
		t.Errorf("fired = %d, want 2", target.fired)
	}
}

func TestNoPartialKeepsWatching(t *testing.T) {
	src := &fakeSource{duration: 700 * time.Millisecond}
	target := &countingTarget{}
	m := NewMonitor(cfg, src, target, zerolog.Nop())

	t0 := time.Now()
	src.set(t0)
	if m.Check(t0.Add(time.Second)) {
		t.Fatal("finalized without a partial")
	}
	if m.State() != Watching {
		t.Errorf("state = %s, want watching", m.State())
	}
	src.set(time.Time{})
	m.Check(t0.Add(time.Second))
	if m.State() != Idle {
		t.Errorf("state = %s after silence ended, want idle", m.State())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &fakeSource{duration: 700 * time.Millisecond, start: time.Now().Add(-time.Second)}
	target := &countingTarget{text: "hello"}
	m := NewMonitor(Config{PollInterval: time.Millisecond}, src, target, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		target.mu.Lock()
		fired := target.fired
		target.mu.Unlock()
		if fired == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Run never finalized")
		case <-time.After(2 * time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestStateString(t *testing.T) {
	if Idle.String() != "idle" || Watching.String() != "watching" || State(9).String() != "unknown" {
		t.Error("unexpected state names")
	}
}
