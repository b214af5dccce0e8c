// Package history keeps the bounded transcription log of a session and
// exports it as JSON, CSV or plain text.
package history

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/obiente/translate/livescribe/internal/metrics"
	"github.com/obiente/translate/livescribe/internal/transcript"
)

// Options configures a Store.
type Options struct {
	// Capacity bounds the number of retained results. When exceeded, the
	// oldest half is dropped.
	Capacity int
	// AutoSaveEvery triggers an auto-save after this many finals. Zero disables it.
	AutoSaveEvery int
	// AutoSavePath is the export target for auto-saves. Empty disables them.
	AutoSavePath string
}

// Store is the insertion-ordered, capacity-bounded history. Safe for
// concurrent use.
type Store struct {
	opts    Options
	log     zerolog.Logger
	metrics *metrics.Metrics
	clock   func() time.Time

	mu        sync.RWMutex
	entries   []transcript.Result
	sinceSave int
	started   time.Time
}

// New creates an empty store.
func New(opts Options, logger zerolog.Logger) *Store {
	if opts.Capacity < 1 {
		opts.Capacity = 1
	}
	s := &Store{
		opts:    opts,
		log:     logger.With().Str("component", "history").Logger(),
		metrics: metrics.DefaultMetrics,
		clock:   time.Now,
	}
	s.started = s.clock()
	return s
}

// Append adds r, evicting the oldest half of the history when the capacity
// is exceeded. It returns the number of evicted entries.
func (s *Store) Append(r transcript.Result) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, r)
	if len(s.entries) <= s.opts.Capacity {
		return 0
	}
	drop := len(s.entries) / 2
	s.entries = append(s.entries[:0:0], s.entries[drop:]...)
	s.log.Debug().Int("evicted", drop).Int("kept", len(s.entries)).Msg("history capacity reached")
	return drop
}

// Len is the number of retained results.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entries returns a copy of the history, oldest first.
func (s *Store) Entries() []transcript.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]transcript.Result(nil), s.entries...)
}

// Recent returns up to limit of the newest results, oldest first.
func (s *Store) Recent(limit int) []transcript.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit >= len(s.entries) {
		return append([]transcript.Result(nil), s.entries...)
	}
	return append([]transcript.Result(nil), s.entries[len(s.entries)-limit:]...)
}

// Clear truncates the history to the keepRecent newest results (0 clears
// everything) and resets the auto-save counter. It returns how many results
// were removed.
func (s *Store) Clear(keepRecent int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := len(s.entries)
	if keepRecent > 0 && keepRecent < len(s.entries) {
		s.entries = append(s.entries[:0:0], s.entries[len(s.entries)-keepRecent:]...)
		removed -= keepRecent
	} else if keepRecent <= 0 {
		s.entries = nil
		s.started = s.clock()
	} else {
		removed = 0
	}
	s.sinceSave = 0
	s.log.Info().Int("removed", removed).Int("kept", len(s.entries)).Msg("history cleared")
	return removed
}

// Started is when the history began, reset by a full Clear.
func (s *Store) Started() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// NoteFinal counts a committed final and reports whether an auto-save is due.
func (s *Store) NoteFinal() bool {
	if s.opts.AutoSavePath == "" || s.opts.AutoSaveEvery <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinceSave++
	if s.sinceSave < s.opts.AutoSaveEvery {
		return false
	}
	s.sinceSave = 0
	return true
}

// AutoSave exports finals to the configured auto-save path.
func (s *Store) AutoSave() bool {
	if s.opts.AutoSavePath == "" {
		return false
	}
	ok := s.Export(s.opts.AutoSavePath, FormatFromPath(s.opts.AutoSavePath), true, true)
	if ok {
		s.log.Info().Int("transcriptions", s.Len()).Str("path", s.opts.AutoSavePath).Msg("auto-saved transcriptions")
	}
	return ok
}

// Stats summarises the whole history.
type Stats struct {
	TotalTranscriptions int            `json:"total_transcriptions"`
	FinalTranscriptions int            `json:"final_transcriptions"`
	AverageConfidence   float64        `json:"average_confidence"`
	LanguageCounts      map[string]int `json:"language_distribution"`
	MixedLanguage       int            `json:"mixed_language_transcriptions"`
	TotalDuration       float64        `json:"total_duration"`
}

// Statistics computes Stats over every retained result.
func (s *Store) Statistics() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{LanguageCounts: make(map[string]int)}
	var confSum float64
	var confN int
	for _, r := range s.entries {
		st.TotalTranscriptions++
		if r.IsFinal {
			st.FinalTranscriptions++
		}
		if r.Confidence > 0 {
			confSum += r.Confidence
			confN++
		}
		st.LanguageCounts[r.Language]++
		if r.HasMixedLanguage {
			st.MixedLanguage++
		}
		st.TotalDuration += r.Duration
	}
	if confN > 0 {
		st.AverageConfidence = confSum / float64(confN)
	}
	return st
}

func (s *Store) filtered(finalOnly bool) []transcript.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]transcript.Result, 0, len(s.entries))
	for _, r := range s.entries {
		if finalOnly && !r.IsFinal {
			continue
		}
		out = append(out, r)
	}
	return out
}

func languagesOf(entries []transcript.Result) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range entries {
		if !seen[r.Language] {
			seen[r.Language] = true
			out = append(out, r.Language)
		}
	}
	sort.Strings(out)
	return out
}
