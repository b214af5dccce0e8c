// Package transcription turns raw recognizer events into timestamped,
// deduplicated, language-tagged transcripts.
package transcription

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/obiente/translate/livescribe/internal/audio"
	"github.com/obiente/translate/livescribe/internal/history"
	"github.com/obiente/translate/livescribe/internal/language"
	"github.com/obiente/translate/livescribe/internal/metrics"
	"github.com/obiente/translate/livescribe/internal/textsim"
	"github.com/obiente/translate/livescribe/internal/transcript"
	"github.com/obiente/translate/livescribe/internal/turn"
)

// ErrEmptyFinalText is logged when a final arrives without text.
var ErrEmptyFinalText = errors.New("empty final text")

const (
	recentFinals    = 3
	processingRing  = 100
	switchAgreement = 2
	// DefaultAudioWindow bounds the audio kept for confidence estimation.
	DefaultAudioWindow = 30 * time.Second
)

// Recognizer is the part of the recognizer the session steers.
type Recognizer interface {
	SetLanguage(lang language.Language)
	SetSilenceDuration(d time.Duration)
}

// Hooks receive session output. Nil hooks are skipped. They are called
// outside the session lock and must not block.
type Hooks struct {
	Partial          func(transcript.Result)
	Final            func(transcript.Result)
	LanguageChanged  func(code string)
	RecordingStarted func(lang string, at time.Time)
	SilenceChanged   func(silent bool)
}

// Options configures a Session.
type Options struct {
	Language   string
	AutoSwitch bool
	Registry   *language.Registry
	Detector   language.Detector
	// Turn adjusts the recognizer silence duration per partial. Optional.
	Turn       turn.Detector
	History    *history.Store
	Comparator textsim.Comparator
	// AudioWindow bounds the buffered audio; DefaultAudioWindow if zero.
	AudioWindow time.Duration
	// FinalExportPath receives a final snapshot on Close when set.
	FinalExportPath string
}

// Session is the per-connection transcription state machine. It implements
// recognizer.Handler; all state is guarded by one mutex shared with the
// silence monitor's FinalizePartial.
type Session struct {
	opts     Options
	rec      Recognizer
	hooks    Hooks
	log      zerolog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	sameText textsim.Comparator
	audio    *audio.Buffer

	mu             sync.Mutex
	current        string
	detected       string
	realtimeText   string
	confidence     float64
	recordingStart time.Time
	recording      bool
	silenceActive  bool
	lastPartial    string
	lastForced     string
	recent         []string
	procTimes      []time.Duration
	procNext       int
	finals         int
	started        time.Time

	closeOnce sync.Once
}

// New creates a session in opts.Language.
func New(rec Recognizer, opts Options, hooks Hooks, logger zerolog.Logger) (*Session, error) {
	if opts.Registry == nil {
		opts.Registry = language.NewRegistry(false)
	}
	if opts.Detector == nil {
		opts.Detector = language.NewDetector()
	}
	if opts.History == nil {
		return nil, errors.New("session requires a history store")
	}
	if opts.Comparator.Words == 0 {
		opts.Comparator = textsim.New(textsim.DefaultWords, textsim.DefaultThreshold)
	}
	if opts.AudioWindow <= 0 {
		opts.AudioWindow = DefaultAudioWindow
	}
	if _, err := opts.Registry.Lookup(opts.Language); err != nil {
		return nil, fmt.Errorf("session language: %w", err)
	}
	s := &Session{
		opts:          opts,
		rec:           rec,
		hooks:         hooks,
		log:           logger.With().Str("component", "session").Logger(),
		metrics:       metrics.DefaultMetrics,
		now:           time.Now,
		sameText:      textsim.Comparator{Focus: textsim.FocusFull, Threshold: opts.Comparator.Threshold},
		audio:         audio.NewBuffer(int(opts.AudioWindow.Seconds() * audio.DefaultSampleRate)),
		current:       opts.Language,
		detected:      language.Unknown,
		silenceActive: true,
	}
	s.started = s.now()
	return s, nil
}

// Language is the current session language.
func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// RealtimeText is the freshest partial of the current utterance.
func (s *Session) RealtimeText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.realtimeText
}

// IsRecording reports whether an utterance is in progress.
func (s *Session) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// History is the session's transcript store.
func (s *Session) History() *history.Store { return s.opts.History }

// ObserveAudio buffers decoded samples for confidence estimation.
func (s *Session) ObserveAudio(samples []float32) {
	s.audio.Append(samples)
}

func (s *Session) OnRecordingStart() {
	s.mu.Lock()
	now := s.now()
	s.recordingStart = now
	s.recording = true
	s.realtimeText = ""
	s.confidence = 0
	s.lastPartial = ""
	s.lastForced = ""
	silenceChanged := s.setSilenceLocked(false)
	lang := s.current
	s.mu.Unlock()

	s.audio.Reset()
	s.log.Info().Str("language", lang).Msg("recording started")
	if silenceChanged {
		s.emitSilence(false)
	}
	if s.hooks.RecordingStarted != nil {
		s.hooks.RecordingStarted(lang, now)
	}
}

func (s *Session) OnRecordingStop() bool {
	samples := s.audio.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = false
	if s.realtimeText != "" {
		s.confidence = Estimate(s.realtimeText, samples, s.current == language.CodeSwitch)
		s.log.Debug().Float64("confidence", s.confidence).Msg("recording stopped")
	}
	return false
}

func (s *Session) OnTurnDetectionStart() {
	s.mu.Lock()
	changed := s.setSilenceLocked(true)
	s.mu.Unlock()
	if changed {
		s.emitSilence(true)
	}
}

func (s *Session) OnTurnDetectionStop() {
	s.mu.Lock()
	changed := s.setSilenceLocked(false)
	s.mu.Unlock()
	if changed {
		s.emitSilence(false)
	}
}

func (s *Session) setSilenceLocked(active bool) bool {
	if s.silenceActive == active {
		return false
	}
	s.silenceActive = active
	return true
}

func (s *Session) emitSilence(active bool) {
	s.log.Debug().Bool("silence", active).Msg("silence changed")
	if s.hooks.SilenceChanged != nil {
		s.hooks.SilenceChanged(active)
	}
}

// OnPartial handles an interim hypothesis.
func (s *Session) OnPartial(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	samples := s.audio.Snapshot()

	s.mu.Lock()
	start := s.now()
	s.realtimeText = text
	s.confidence = Estimate(text, samples, s.current == language.CodeSwitch)

	var switched *language.Language
	if s.opts.AutoSwitch {
		if target := s.switchTargetLocked(text); target != "" {
			switched = s.setLanguageLocked(target)
		}
	}

	result := transcript.New(text, s.confidence, start, s.current, false, s.durationLocked(start))
	stripped := textsim.StripEndingPunctuation(text)
	suppressed := s.opts.Comparator.IsSimilar(s.lastPartial, stripped)
	var wait time.Duration
	if !suppressed {
		s.lastPartial = stripped
		if s.opts.Turn != nil {
			wait = s.opts.Turn.WaitingTime(text)
		}
	}
	elapsed := s.now().Sub(start)
	s.recordProcessingLocked(elapsed)
	s.mu.Unlock()

	s.metrics.ProcessingLatency.Observe(elapsed.Seconds())
	if switched != nil {
		s.announceLanguage(*switched, "auto")
	}
	if suppressed {
		s.metrics.PartialsSuppressed.Inc()
		return
	}
	s.metrics.PartialsEmitted.Inc()
	if s.hooks.Partial != nil {
		s.hooks.Partial(result)
	}
	if wait > 0 && s.rec != nil {
		s.rec.SetSilenceDuration(wait)
	}
	s.log.Debug().
		Str("text", truncate(text, 50)).
		Float64("confidence", result.Confidence).
		Str("language", result.Language).
		Dur("processing", elapsed).
		Msg("partial")
}

// switchTargetLocked decides whether text should move the session to
// another language. Leaving code-switch mode needs two of the last three
// finals to agree with the detected language.
func (s *Session) switchTargetLocked(text string) string {
	if language.HasMixedScripts(text) {
		if s.current != language.CodeSwitch {
			return language.CodeSwitch
		}
		return ""
	}
	detected := s.opts.Detector.Detect(text)
	if detected != language.Unknown {
		s.detected = detected
	}
	if detected == s.current || !s.opts.Registry.IsSingle(detected) {
		return ""
	}
	if s.current == language.CodeSwitch {
		agree := 0
		for _, l := range s.recent {
			if l == detected {
				agree++
			}
		}
		if agree < switchAgreement {
			return ""
		}
	}
	return detected
}

func (s *Session) setLanguageLocked(code string) *language.Language {
	lang, err := s.opts.Registry.Lookup(code)
	if err != nil || code == s.current {
		return nil
	}
	prev := s.current
	s.current = code
	s.log.Info().Str("from", prev).Str("to", lang.Name).Msg("language switched")
	return &lang
}

func (s *Session) announceLanguage(lang language.Language, source string) {
	s.metrics.LanguageSwitches.WithLabelValues(lang.Code, source).Inc()
	if s.rec != nil {
		s.rec.SetLanguage(lang)
	}
	if s.hooks.LanguageChanged != nil {
		s.hooks.LanguageChanged(lang.Code)
	}
}

// SwitchLanguage moves the session to code. Unsupported codes leave the
// language unchanged and return an error wrapping language.ErrInvalidLanguage.
func (s *Session) SwitchLanguage(code string) error {
	if _, err := s.opts.Registry.Lookup(code); err != nil {
		s.log.Warn().Err(err).Str("language", code).Msg("rejecting language switch")
		return err
	}
	s.mu.Lock()
	lang := s.setLanguageLocked(code)
	s.mu.Unlock()
	if lang != nil {
		s.announceLanguage(*lang, "manual")
	}
	return nil
}

// OnFinal commits the recognizer's final text for the utterance.
func (s *Session) OnFinal(text string) {
	if strings.TrimSpace(text) == "" {
		s.log.Warn().Err(ErrEmptyFinalText).Msg("discarding final")
		s.metrics.FinalsDiscarded.WithLabelValues("empty").Inc()
		return
	}
	s.commit(text, false)
}

// FinalizePartial commits the current partial as final, as if the
// recognizer had ended the utterance. It reports whether anything was
// committed.
func (s *Session) FinalizePartial(reason string) bool {
	if !s.commit("", true) {
		return false
	}
	s.metrics.ForcedFinalized.Inc()
	s.log.Debug().Str("reason", reason).Msg("force finalized partial")
	return true
}

func (s *Session) commit(text string, forced bool) bool {
	samples := s.audio.Snapshot()

	s.mu.Lock()
	start := s.now()
	if forced {
		text = s.realtimeText
		if text == "" {
			s.mu.Unlock()
			return false
		}
	} else if s.lastForced != "" && s.sameText.IsSimilar(s.lastForced, text) {
		s.lastForced = ""
		s.realtimeText = ""
		s.mu.Unlock()
		s.metrics.FinalsDiscarded.WithLabelValues("duplicate").Inc()
		s.log.Debug().Str("text", truncate(text, 50)).Msg("dropping final already committed on silence")
		return false
	}

	conf := Estimate(text, samples, s.current == language.CodeSwitch)
	detected := s.opts.Detector.Detect(text)
	lang := detected
	if lang == language.Unknown {
		lang = s.current
	} else {
		s.detected = detected
	}
	result := transcript.New(text, conf, start, lang, true, s.durationLocked(start))

	s.recent = append(s.recent, detected)
	if len(s.recent) > recentFinals {
		s.recent = s.recent[len(s.recent)-recentFinals:]
	}
	s.realtimeText = ""
	s.confidence = conf
	s.lastForced = ""
	if forced {
		s.lastForced = text
	}
	s.finals++
	var wait time.Duration
	if s.opts.Turn != nil {
		wait = s.opts.Turn.Reset()
	}
	s.recordProcessingLocked(s.now().Sub(start))
	s.mu.Unlock()

	s.opts.History.Append(result)
	if s.hooks.Final != nil {
		s.hooks.Final(result)
	}
	if wait > 0 && s.rec != nil {
		s.rec.SetSilenceDuration(wait)
	}
	s.metrics.FinalsCommitted.Inc()
	s.metrics.Confidence.Observe(conf)
	if s.opts.History.NoteFinal() {
		s.opts.History.AutoSave()
	}
	s.log.Info().
		Str("text", result.Text).
		Float64("confidence", conf).
		Str("language", lang).
		Int("words", result.WordCount).
		Bool("forced", forced).
		Msg("final")
	return true
}

func (s *Session) durationLocked(now time.Time) float64 {
	if s.recordingStart.IsZero() {
		return 0
	}
	return now.Sub(s.recordingStart).Seconds()
}

func (s *Session) recordProcessingLocked(d time.Duration) {
	if len(s.procTimes) < processingRing {
		s.procTimes = append(s.procTimes, d)
		return
	}
	s.procTimes[s.procNext] = d
	s.procNext = (s.procNext + 1) % processingRing
}

// SetSpeed adjusts turn detection responsiveness, factor in [0, 1].
func (s *Session) SetSpeed(factor float64) {
	if s.opts.Turn == nil {
		return
	}
	s.opts.Turn.SetSpeed(factor)
	s.log.Info().Float64("factor", factor).Msg("turn detection speed updated")
}

// ClearHistory keeps only the keepRecent newest transcripts.
func (s *Session) ClearHistory(keepRecent int) int {
	return s.opts.History.Clear(keepRecent)
}

// Stats extends the history statistics with live session state.
type Stats struct {
	history.Stats
	CurrentLanguage       string  `json:"current_language"`
	DetectedLanguage      string  `json:"detected_language"`
	AutoLanguageSwitching bool    `json:"auto_language_switching"`
	Recording             bool    `json:"is_recording"`
	SilenceActive         bool    `json:"silence_active"`
	CurrentConfidence     float64 `json:"current_confidence"`
	SessionFinals         int     `json:"session_finals"`
	AverageProcessingTime float64 `json:"average_processing_time"`
	SessionDuration       float64 `json:"session_duration"`
}

func (s *Session) Stats() Stats {
	st := Stats{Stats: s.opts.History.Statistics()}
	s.mu.Lock()
	defer s.mu.Unlock()
	st.CurrentLanguage = s.current
	st.DetectedLanguage = s.detected
	st.AutoLanguageSwitching = s.opts.AutoSwitch
	st.Recording = s.recording
	st.SilenceActive = s.silenceActive
	st.CurrentConfidence = s.confidence
	st.SessionFinals = s.finals
	st.SessionDuration = s.now().Sub(s.started).Seconds()
	if len(s.procTimes) > 0 {
		var total time.Duration
		for _, d := range s.procTimes {
			total += d
		}
		st.AverageProcessingTime = (total / time.Duration(len(s.procTimes))).Seconds()
	}
	return st
}

// Close writes the final export, if configured. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.opts.FinalExportPath == "" {
			return
		}
		if path, ok := s.opts.History.ExportFinal(s.opts.FinalExportPath); ok {
			s.log.Info().Str("path", path).Msg("final export written")
		}
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
