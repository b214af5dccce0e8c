// Package config loads service settings from profile defaults, an optional
// YAML file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/obiente/translate/livescribe/internal/language"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Profile is a deployment profile.
type Profile string

const (
	ProfileStandard    Profile = "standard"
	ProfileConstrained Profile = "constrained"
)

type Config struct {
	Addr    string  `yaml:"addr"`
	Profile Profile `yaml:"-"`

	DefaultLanguage       string `yaml:"default_language"`
	AutoLanguageSwitching bool   `yaml:"auto_language_switching"`

	QueueCapacity     int `yaml:"queue_capacity"`
	OutboundQueueSize int `yaml:"outbound_queue_size"`

	PipelineLatency     time.Duration `yaml:"pipeline_latency"`
	ReserveMargin       time.Duration `yaml:"reserve_margin"`
	SilenceDuration     time.Duration `yaml:"silence_duration"`
	SilencePollInterval time.Duration `yaml:"silence_poll_interval"`
	StatusInterval      time.Duration `yaml:"status_interval"`

	HistoryCapacity  int    `yaml:"history_capacity"`
	AutoSaveInterval int    `yaml:"auto_save_interval"`
	ExportPath       string `yaml:"export_path"`

	DedupWords     int     `yaml:"dedup_words"`
	DedupThreshold float64 `yaml:"dedup_threshold"`

	Log         LogConfig         `yaml:"log"`
	Recognizer  RecognizerConfig  `yaml:"recognizer"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	NATS        NATSConfig        `yaml:"nats"`
	Translation TranslationConfig `yaml:"translation"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type RecognizerConfig struct {
	Mode             string        `yaml:"mode"` // local, remote
	URL              string        `yaml:"url"`
	ModelDir         string        `yaml:"model_dir"`
	Threads          int           `yaml:"threads"`
	RealtimeInterval time.Duration `yaml:"realtime_interval"`
	SpeechThreshold  float64       `yaml:"speech_threshold"`
	DumpDir          string        `yaml:"dump_dir"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type NATSConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Servers        []string      `yaml:"servers"`
	Subject        string        `yaml:"subject"`
	Token          string        `yaml:"token"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

type TranslationConfig struct {
	Enabled      bool          `yaml:"enabled"`
	BaseURL      string        `yaml:"base_url"`
	Targets      []string      `yaml:"targets"`
	Timeout      time.Duration `yaml:"timeout"`
	Alternatives int           `yaml:"alternatives"`
}

// Constrained reports whether the constrained profile is active.
func (c Config) Constrained() bool { return c.Profile == ProfileConstrained }

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch v {
		case "0", "false", "no", "off", "False", "FALSE":
			return false
		default:
			return true
		}
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// getenvSeconds reads a duration given in (fractional) seconds.
func getenvSeconds(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(f * float64(time.Second))
		}
	}
	return def
}

func getenvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func seconds(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }

// DetectProfile picks the profile from DEPLOYMENT_PROFILE, falling back to
// constrained when RAILWAY_DEPLOYMENT is present.
func DetectProfile() Profile {
	switch strings.ToLower(os.Getenv("DEPLOYMENT_PROFILE")) {
	case string(ProfileConstrained):
		return ProfileConstrained
	case string(ProfileStandard):
		return ProfileStandard
	}
	if _, ok := os.LookupEnv("RAILWAY_DEPLOYMENT"); ok {
		return ProfileConstrained
	}
	return ProfileStandard
}

// Defaults returns the settings for a profile before any overrides.
func Defaults(p Profile) Config {
	cfg := Config{
		Addr:                  ":8080",
		Profile:               ProfileStandard,
		DefaultLanguage:       language.English,
		AutoLanguageSwitching: true,
		QueueCapacity:         100,
		OutboundQueueSize:     256,
		PipelineLatency:       seconds(0.3),
		ReserveMargin:         seconds(0.015),
		SilenceDuration:       seconds(0.7),
		SilencePollInterval:   5 * time.Millisecond,
		StatusInterval:        5 * time.Second,
		HistoryCapacity:       1000,
		AutoSaveInterval:      100,
		DedupWords:            7,
		DedupThreshold:        0.85,
		Log:                   LogConfig{Level: "info", Format: "json"},
		Recognizer: RecognizerConfig{
			Mode:             "local",
			ModelDir:         "./models",
			RealtimeInterval: 200 * time.Millisecond,
			SpeechThreshold:  0.015,
		},
		Kafka: KafkaConfig{Topic: "livescribe.transcripts.final"},
		NATS: NATSConfig{
			Servers:        []string{"nats://localhost:4222"},
			Subject:        "livescribe.transcripts.final",
			ConnectTimeout: 2 * time.Second,
		},
		Translation: TranslationConfig{
			BaseURL:      "https://libretranslate.obiente.cloud",
			Timeout:      8 * time.Second,
			Alternatives: 3,
		},
	}
	if p == ProfileConstrained {
		cfg.Profile = ProfileConstrained
		cfg.QueueCapacity = 30
		cfg.PipelineLatency = seconds(0.5)
		cfg.ReserveMargin = seconds(0.025)
		cfg.SilenceDuration = seconds(0.9)
		cfg.HistoryCapacity = 200
		cfg.AutoSaveInterval = 50
		cfg.Recognizer.Threads = 2
	}
	return cfg
}

// Load builds the configuration. LIVESCRIBE_CONFIG names an optional YAML
// file applied over the profile defaults; environment variables win.
func Load() (Config, error) {
	cfg := Defaults(DetectProfile())
	if path := os.Getenv("LIVESCRIBE_CONFIG"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %w", err)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Addr = getenv("LIVESCRIBE_ADDR", cfg.Addr)
	cfg.DefaultLanguage = getenv("DEFAULT_LANGUAGE", cfg.DefaultLanguage)
	cfg.AutoLanguageSwitching = getenvBool("AUTO_LANGUAGE_SWITCHING", cfg.AutoLanguageSwitching)
	cfg.QueueCapacity = getenvInt("MAX_AUDIO_QUEUE_SIZE", cfg.QueueCapacity)
	cfg.OutboundQueueSize = getenvInt("OUTBOUND_QUEUE_SIZE", cfg.OutboundQueueSize)
	cfg.PipelineLatency = getenvSeconds("PIPELINE_LATENCY", cfg.PipelineLatency)
	cfg.ReserveMargin = getenvSeconds("RESERVE_MARGIN", cfg.ReserveMargin)
	cfg.SilenceDuration = getenvSeconds("SILENCE_DURATION", cfg.SilenceDuration)
	cfg.SilencePollInterval = getenvSeconds("SILENCE_POLL_INTERVAL", cfg.SilencePollInterval)
	cfg.StatusInterval = getenvSeconds("STATUS_INTERVAL", cfg.StatusInterval)
	cfg.HistoryCapacity = getenvInt("HISTORY_CAPACITY", cfg.HistoryCapacity)
	cfg.AutoSaveInterval = getenvInt("AUTO_SAVE_INTERVAL", cfg.AutoSaveInterval)
	cfg.ExportPath = getenv("EXPORT_PATH", cfg.ExportPath)
	cfg.DedupWords = getenvInt("DEDUP_WORDS", cfg.DedupWords)
	cfg.DedupThreshold = getenvFloat("DEDUP_THRESHOLD", cfg.DedupThreshold)

	cfg.Log.Level = getenv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenv("LOG_FORMAT", cfg.Log.Format)

	cfg.Recognizer.Mode = getenv("RECOGNIZER_MODE", cfg.Recognizer.Mode)
	cfg.Recognizer.URL = getenv("RECOGNIZER_URL", cfg.Recognizer.URL)
	cfg.Recognizer.ModelDir = getenv("WHISPER_MODEL_DIR", cfg.Recognizer.ModelDir)
	cfg.Recognizer.Threads = getenvInt("WHISPER_THREADS", cfg.Recognizer.Threads)
	cfg.Recognizer.RealtimeInterval = getenvSeconds("REALTIME_INTERVAL", cfg.Recognizer.RealtimeInterval)
	cfg.Recognizer.SpeechThreshold = getenvFloat("SPEECH_THRESHOLD", cfg.Recognizer.SpeechThreshold)
	cfg.Recognizer.DumpDir = getenv("UTTERANCE_DUMP_DIR", cfg.Recognizer.DumpDir)

	cfg.Kafka.Enabled = getenvBool("KAFKA_ENABLED", cfg.Kafka.Enabled)
	cfg.Kafka.Brokers = getenvList("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.Topic = getenv("KAFKA_TOPIC", cfg.Kafka.Topic)

	cfg.NATS.Enabled = getenvBool("NATS_ENABLED", cfg.NATS.Enabled)
	cfg.NATS.Servers = getenvList("NATS_URL", cfg.NATS.Servers)
	cfg.NATS.Subject = getenv("NATS_SUBJECT", cfg.NATS.Subject)
	cfg.NATS.Token = getenv("NATS_TOKEN", cfg.NATS.Token)

	cfg.Translation.Enabled = getenvBool("TRANSLATION_ENABLED", cfg.Translation.Enabled)
	cfg.Translation.BaseURL = getenv("TRANSLATION_BASE_URL", cfg.Translation.BaseURL)
	cfg.Translation.Targets = getenvList("TRANSLATION_TARGETS", cfg.Translation.Targets)
	cfg.Translation.Timeout = getenvSeconds("TRANSLATION_TIMEOUT", cfg.Translation.Timeout)
}

// Validate reports every invalid setting, each wrapping ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}
	if c.QueueCapacity <= 0 {
		bad("queue capacity must be positive, got %d", c.QueueCapacity)
	}
	if c.OutboundQueueSize <= 0 {
		bad("outbound queue size must be positive, got %d", c.OutboundQueueSize)
	}
	if c.HistoryCapacity <= 0 {
		bad("history capacity must be positive, got %d", c.HistoryCapacity)
	}
	if c.AutoSaveInterval < 0 {
		bad("auto-save interval must not be negative, got %d", c.AutoSaveInterval)
	}
	if c.DedupWords <= 0 {
		bad("dedup words must be positive, got %d", c.DedupWords)
	}
	if c.DedupThreshold <= 0 || c.DedupThreshold > 1 {
		bad("dedup threshold must be in (0, 1], got %v", c.DedupThreshold)
	}
	if c.SilenceDuration <= 0 {
		bad("silence duration must be positive, got %v", c.SilenceDuration)
	}
	if c.PipelineLatency < 0 || c.ReserveMargin < 0 {
		bad("pipeline latency and reserve margin must not be negative")
	}
	if c.SilencePollInterval <= 0 || c.StatusInterval <= 0 {
		bad("poll and status intervals must be positive")
	}
	if !language.NewRegistry(c.Constrained()).Supported(c.DefaultLanguage) {
		bad("unsupported default language %q", c.DefaultLanguage)
	}
	switch c.Recognizer.Mode {
	case "local":
	case "remote":
		if c.Recognizer.URL == "" {
			bad("remote recognizer requires RECOGNIZER_URL")
		}
	default:
		bad("unknown recognizer mode %q", c.Recognizer.Mode)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		bad("unknown log format %q", c.Log.Format)
	}
	if c.Translation.Enabled && (c.Translation.BaseURL == "" || len(c.Translation.Targets) == 0) {
		bad("translation requires a base URL and at least one target")
	}
	return errors.Join(errs...)
}
