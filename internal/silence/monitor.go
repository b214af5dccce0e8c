// Package silence force-finalizes the current partial once the recognizer
// has been silent long enough.
package silence

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPollInterval is how often the monitor checks the deadline.
const DefaultPollInterval = 5 * time.Millisecond

// State of the monitor.
type State int

const (
	Idle State = iota
	Watching
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Watching:
		return "watching"
	}
	return "unknown"
}

// Source reports the recognizer's silence window.
type Source interface {
	// SilenceStart is zero when no silence is in progress.
	SilenceStart() time.Time
	SilenceDuration() time.Duration
}

// Target commits the current partial.
type Target interface {
	FinalizePartial(reason string) bool
}

// Config tunes the finalization deadline.
type Config struct {
	PipelineLatency time.Duration
	ReserveMargin   time.Duration
	PollInterval    time.Duration
}

// Monitor watches a Source and finalizes on a Target when
// silence_start + silence_duration - pipeline_latency - reserve_margin has passed.
type Monitor struct {
	cfg    Config
	source Source
	target Target
	log    zerolog.Logger
	now    func() time.Time

	mu        sync.Mutex
	state     State
	lastFired time.Time
}

// NewMonitor creates an idle monitor.
func NewMonitor(cfg Config, source Source, target Target, logger zerolog.Logger) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Monitor{
		cfg:    cfg,
		source: source,
		target: target,
		log:    logger.With().Str("component", "silence").Logger(),
		now:    time.Now,
	}
}

// State returns the current monitor state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Deadline is the finalization instant for a silence that began at start.
func (m *Monitor) Deadline(start time.Time) time.Time {
	return start.Add(m.source.SilenceDuration() - m.cfg.PipelineLatency - m.cfg.ReserveMargin)
}

// Check evaluates the deadline at now and reports whether it finalized.
// Each silence window finalizes at most once.
func (m *Monitor) Check(now time.Time) bool {
	start := m.source.SilenceStart()

	m.mu.Lock()
	defer m.mu.Unlock()
	if start.IsZero() {
		m.state = Idle
		return false
	}
	if start.Equal(m.lastFired) {
		return false
	}
	if m.state == Idle {
		m.state = Watching
		m.log.Trace().Time("silence_start", start).Msg("watching silence")
	}
	deadline := m.Deadline(start)
	if !now.After(deadline) {
		return false
	}
	if !m.target.FinalizePartial("silence") {
		return false
	}
	m.lastFired = start
	m.state = Idle
	m.log.Debug().
		Dur("after_silence", now.Sub(start)).
		Dur("late_by", now.Sub(deadline)).
		Msg("finalized on silence")
	return true
}

// Run polls until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Check(m.now())
		}
	}
}
