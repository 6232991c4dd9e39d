package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration, loaded from a YAML file with
// environment overrides for secrets and the listen port.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Catchup    CatchupConfig    `yaml:"catchup"`
	Twitch     TwitchConfig     `yaml:"twitch"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Summarize  SummarizeConfig  `yaml:"summarize"`
	Credit     CreditConfig     `yaml:"credit"`
	Audit      AuditConfig      `yaml:"audit"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Env  string `yaml:"env"`  // dev, prod
	Port string `yaml:"port"` // listen port
}

// LogConfig configures pkg/logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	WithSource bool   `yaml:"with_source"`
}

// CatchupConfig configures the orchestrator.
type CatchupConfig struct {
	AllowedWindows   []int  `yaml:"allowed_windows"`   // minutes, default {30, 60}
	RetentionMinutes int    `yaml:"retention_minutes"` // terminal task retention, default 10
	ReaperInterval   string `yaml:"reaper_interval"`   // default 1m
	PhaseTimeout     string `yaml:"phase_timeout"`     // hard ceiling per phase, default 15m
}

// TwitchConfig holds Helix API credentials and endpoints.
type TwitchConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	APIBaseURL   string `yaml:"api_base_url"`   // default https://api.twitch.tv/helix
	AuthURL      string `yaml:"auth_url"`       // default https://id.twitch.tv/oauth2/token
	ClipWaitSecs int    `yaml:"clip_wait_secs"` // readiness budget per clip, default 30
}

// TranscribeConfig configures the speech service client and batch engine.
type TranscribeConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`      // default https://api.assemblyai.com/v2
	Concurrency  int    `yaml:"concurrency"`   // batch size, default 5
	BatchPause   string `yaml:"batch_pause"`   // default 1s
	PollInterval string `yaml:"poll_interval"` // default 5s
	PollBudget   string `yaml:"poll_budget"`   // default 10m
}

// SummarizeConfig selects and configures the summarizer backend.
type SummarizeConfig struct {
	Backend     string   `yaml:"backend"` // openai, gemini, none
	OpenAIKey   string   `yaml:"openai_key"`
	OpenAIURL   string   `yaml:"openai_url"`   // default https://api.openai.com/v1/chat/completions
	OpenAIModel string   `yaml:"openai_model"` // default gpt-4o-mini
	GeminiKeys  []string `yaml:"gemini_keys"`
	GeminiModel string   `yaml:"gemini_model"` // default gemini-2.0-flash
}

// CreditConfig configures the external credit gate.
// An empty Endpoint disables the gate (all requests allowed).
type CreditConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Cost30Min int    `yaml:"cost_30min"`
	Cost60Min int    `yaml:"cost_60min"`
}

// AuditConfig configures the rotating audit log.
type AuditConfig struct {
	Path string `yaml:"path"` // default ./audit/catchup_audit.log
}

// LoadConfig loads configuration from a YAML file, applies defaults and
// environment overrides, and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&config)
	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Env == "" {
		cfg.Server.Env = "dev"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8000"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if len(cfg.Catchup.AllowedWindows) == 0 {
		cfg.Catchup.AllowedWindows = []int{30, 60}
	}
	if cfg.Catchup.RetentionMinutes == 0 {
		cfg.Catchup.RetentionMinutes = 10
	}
	if cfg.Catchup.ReaperInterval == "" {
		cfg.Catchup.ReaperInterval = "1m"
	}
	if cfg.Catchup.PhaseTimeout == "" {
		cfg.Catchup.PhaseTimeout = "15m"
	}
	if cfg.Twitch.APIBaseURL == "" {
		cfg.Twitch.APIBaseURL = "https://api.twitch.tv/helix"
	}
	if cfg.Twitch.AuthURL == "" {
		cfg.Twitch.AuthURL = "https://id.twitch.tv/oauth2/token"
	}
	if cfg.Twitch.ClipWaitSecs == 0 {
		cfg.Twitch.ClipWaitSecs = 30
	}
	if cfg.Transcribe.BaseURL == "" {
		cfg.Transcribe.BaseURL = "https://api.assemblyai.com/v2"
	}
	if cfg.Transcribe.Concurrency == 0 {
		cfg.Transcribe.Concurrency = 5
	}
	if cfg.Transcribe.BatchPause == "" {
		cfg.Transcribe.BatchPause = "1s"
	}
	if cfg.Transcribe.PollInterval == "" {
		cfg.Transcribe.PollInterval = "5s"
	}
	if cfg.Transcribe.PollBudget == "" {
		cfg.Transcribe.PollBudget = "10m"
	}
	if cfg.Summarize.Backend == "" {
		cfg.Summarize.Backend = "none"
	}
	if cfg.Summarize.OpenAIURL == "" {
		cfg.Summarize.OpenAIURL = "https://api.openai.com/v1/chat/completions"
	}
	if cfg.Summarize.OpenAIModel == "" {
		cfg.Summarize.OpenAIModel = "gpt-4o-mini"
	}
	if cfg.Summarize.GeminiModel == "" {
		cfg.Summarize.GeminiModel = "gemini-2.0-flash"
	}
	if cfg.Credit.Cost30Min == 0 {
		cfg.Credit.Cost30Min = 1
	}
	if cfg.Credit.Cost60Min == 0 {
		cfg.Credit.Cost60Min = 2
	}
	if cfg.Audit.Path == "" {
		cfg.Audit.Path = "./audit/catchup_audit.log"
	}
}

// applyEnvOverrides lets deployments inject secrets and the port without
// touching the config file.
func applyEnvOverrides(cfg *Config) {
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Twitch.ClientID = getEnv("TWITCH_CLIENT_ID", cfg.Twitch.ClientID)
	cfg.Twitch.ClientSecret = getEnv("TWITCH_CLIENT_SECRET", cfg.Twitch.ClientSecret)
	cfg.Transcribe.APIKey = getEnv("SPEECH_API_KEY", cfg.Transcribe.APIKey)
	cfg.Summarize.OpenAIKey = getEnv("OPENAI_API_KEY", cfg.Summarize.OpenAIKey)
	cfg.Credit.Endpoint = getEnv("CREDIT_ENDPOINT", cfg.Credit.Endpoint)
}

func validateConfig(cfg *Config) error {
	if port, err := strconv.Atoi(cfg.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port value: %s (must be 1-65535)", cfg.Server.Port)
	}

	validEnvs := map[string]bool{"dev": true, "prod": true}
	if !validEnvs[cfg.Server.Env] {
		return fmt.Errorf("invalid server env: %s (must be: dev, prod)", cfg.Server.Env)
	}

	for _, w := range cfg.Catchup.AllowedWindows {
		if w <= 0 {
			return fmt.Errorf("allowed_windows entries must be greater than 0, got %d", w)
		}
	}

	if cfg.Transcribe.Concurrency <= 0 {
		return fmt.Errorf("transcribe.concurrency must be greater than 0")
	}

	for _, d := range []struct {
		name  string
		value string
	}{
		{"catchup.reaper_interval", cfg.Catchup.ReaperInterval},
		{"catchup.phase_timeout", cfg.Catchup.PhaseTimeout},
		{"transcribe.batch_pause", cfg.Transcribe.BatchPause},
		{"transcribe.poll_interval", cfg.Transcribe.PollInterval},
		{"transcribe.poll_budget", cfg.Transcribe.PollBudget},
	} {
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("%s: invalid duration format: %w", d.name, err)
		}
	}

	validBackends := map[string]bool{"openai": true, "gemini": true, "none": true}
	if !validBackends[cfg.Summarize.Backend] {
		return fmt.Errorf("invalid summarize backend: %s (must be: openai, gemini, none)", cfg.Summarize.Backend)
	}
	if cfg.Summarize.Backend == "gemini" && len(cfg.Summarize.GeminiKeys) == 0 {
		return fmt.Errorf("summarize.gemini_keys cannot be empty when backend is gemini")
	}

	return nil
}

// WindowAllowed reports whether a requested catch-up window is on the
// configured allow-list.
func (c *Config) WindowAllowed(minutes int) bool {
	for _, w := range c.Catchup.AllowedWindows {
		if w == minutes {
			return true
		}
	}
	return false
}

// CreditCost returns the credit cost for a window in minutes.
func (c *Config) CreditCost(minutes int) int {
	switch minutes {
	case 30:
		return c.Credit.Cost30Min
	case 60:
		return c.Credit.Cost60Min
	default:
		return c.Credit.Cost60Min
	}
}

// GetServerAddr returns the listen address for the HTTP server.
func (c *Config) GetServerAddr() string {
	return ":" + c.Server.Port
}

// IsProduction reports whether the server runs in the prod environment.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "prod"
}

// MustDuration parses a duration string already validated by LoadConfig.
func MustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(fmt.Sprintf("unvalidated duration %q: %v", s, err))
	}
	return d
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
