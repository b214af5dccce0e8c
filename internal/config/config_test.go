package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearProfileEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DEPLOYMENT_PROFILE", "")
	// t.Setenv restores the variable afterwards; unset it for this test.
	t.Setenv("RAILWAY_DEPLOYMENT", "")
	os.Unsetenv("RAILWAY_DEPLOYMENT")
	t.Setenv("LIVESCRIBE_CONFIG", "")
}

func TestLoadStandardDefaults(t *testing.T) {
	clearProfileEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Profile != ProfileStandard {
		t.Fatalf("profile = %s", cfg.Profile)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"addr", cfg.Addr, ":8080"},
		{"queue", cfg.QueueCapacity, 100},
		{"latency", cfg.PipelineLatency, 300 * time.Millisecond},
		{"reserve", cfg.ReserveMargin, 15 * time.Millisecond},
		{"silence", cfg.SilenceDuration, 700 * time.Millisecond},
		{"history", cfg.HistoryCapacity, 1000},
		{"autosave", cfg.AutoSaveInterval, 100},
		{"language", cfg.DefaultLanguage, "en"},
		{"dedup words", cfg.DedupWords, 7},
		{"dedup threshold", cfg.DedupThreshold, 0.85},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestConstrainedProfile(t *testing.T) {
	tests := []struct {
		name    string
		profile string
		railway bool
	}{
		{"explicit", "constrained", false},
		{"railway", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearProfileEnv(t)
			t.Setenv("DEPLOYMENT_PROFILE", tt.profile)
			if tt.railway {
				t.Setenv("RAILWAY_DEPLOYMENT", "1")
			}
			cfg, err := Load()
			if err != nil {
				t.Fatal(err)
			}
			if !cfg.Constrained() {
				t.Fatalf("profile = %s, want constrained", cfg.Profile)
			}
			if cfg.QueueCapacity != 30 || cfg.HistoryCapacity != 200 || cfg.AutoSaveInterval != 50 {
				t.Errorf("capacities = %d/%d/%d", cfg.QueueCapacity, cfg.HistoryCapacity, cfg.AutoSaveInterval)
			}
			if cfg.PipelineLatency != 500*time.Millisecond || cfg.ReserveMargin != 25*time.Millisecond || cfg.SilenceDuration != 900*time.Millisecond {
				t.Errorf("timings = %v/%v/%v", cfg.PipelineLatency, cfg.ReserveMargin, cfg.SilenceDuration)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	clearProfileEnv(t)
	t.Setenv("MAX_AUDIO_QUEUE_SIZE", "12")
	t.Setenv("PIPELINE_LATENCY", "0.25")
	t.Setenv("DEFAULT_LANGUAGE", "hi-en")
	t.Setenv("AUTO_LANGUAGE_SWITCHING", "off")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("DEDUP_THRESHOLD", "0.9")
	t.Setenv("EXPORT_PATH", "/tmp/out.csv")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.QueueCapacity != 12 || cfg.PipelineLatency != 250*time.Millisecond {
		t.Errorf("queue=%d latency=%v", cfg.QueueCapacity, cfg.PipelineLatency)
	}
	if cfg.DefaultLanguage != "hi-en" || cfg.AutoLanguageSwitching {
		t.Errorf("language=%s auto=%v", cfg.DefaultLanguage, cfg.AutoLanguageSwitching)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b:9092" {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.DedupThreshold != 0.9 || cfg.ExportPath != "/tmp/out.csv" {
		t.Errorf("threshold=%v export=%s", cfg.DedupThreshold, cfg.ExportPath)
	}
}

func TestYAMLFileThenEnv(t *testing.T) {
	clearProfileEnv(t)
	path := filepath.Join(t.TempDir(), "livescribe.yaml")
	data := []byte(`
addr: ":9000"
history_capacity: 42
silence_duration: 1200ms
recognizer:
  mode: remote
  url: ws://recognizer:8011
translation:
  targets: [fr, de]
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LIVESCRIBE_CONFIG", path)
	t.Setenv("HISTORY_CAPACITY", "64")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":9000" || cfg.SilenceDuration != 1200*time.Millisecond {
		t.Errorf("addr=%s silence=%v", cfg.Addr, cfg.SilenceDuration)
	}
	if cfg.HistoryCapacity != 64 {
		t.Errorf("history = %d, env should win over the file", cfg.HistoryCapacity)
	}
	if cfg.Recognizer.Mode != "remote" || cfg.Recognizer.URL != "ws://recognizer:8011" {
		t.Errorf("recognizer = %+v", cfg.Recognizer)
	}
	if len(cfg.Translation.Targets) != 2 {
		t.Errorf("targets = %v", cfg.Translation.Targets)
	}
	if cfg.QueueCapacity != 100 {
		t.Errorf("unset file keys must keep defaults, queue = %d", cfg.QueueCapacity)
	}
}

func TestMissingConfigFile(t *testing.T) {
	clearProfileEnv(t)
	t.Setenv("LIVESCRIBE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"queue", func(c *Config) { c.QueueCapacity = 0 }},
		{"history", func(c *Config) { c.HistoryCapacity = -1 }},
		{"threshold high", func(c *Config) { c.DedupThreshold = 1.5 }},
		{"threshold zero", func(c *Config) { c.DedupThreshold = 0 }},
		{"language", func(c *Config) { c.DefaultLanguage = "fr" }},
		{"mode", func(c *Config) { c.Recognizer.Mode = "cloud" }},
		{"remote url", func(c *Config) { c.Recognizer.Mode = "remote" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"translation targets", func(c *Config) { c.Translation.Enabled = true }},
	}
	if err := Defaults(ProfileStandard).Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults(ProfileStandard)
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
