package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile     = "config.yaml"
	DefaultStoragePath    = ".crier/crier.db"
	DefaultRetainDays     = 90
	DefaultInterval       = 5 * time.Minute
	DefaultJitter         = 30 * time.Second
	DefaultLookback       = 24 * time.Hour
	DefaultPageSize       = 20
	DefaultUserAgent      = "crier/1.0"
	DefaultGateMode       = "off"
	DefaultMarketSymbol   = "GME"
	DefaultMarketSchedule = "30 16 * * 1-5"
	DefaultMarketTimezone = "America/New_York"
	DefaultRateMaxCalls   = 55
	DefaultRatePeriod     = time.Minute
)

// Duration wraps time.Duration for YAML unmarshaling from strings like "5m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	Accounts  []AccountConfig `yaml:"accounts"`
	Source    SourceConfig    `yaml:"source"`
	Sink      SinkConfig      `yaml:"sink"`
	Watch     WatchConfig     `yaml:"watch"`
	Storage   StorageConfig   `yaml:"storage"`
	Gate      GateConfig      `yaml:"gate"`
	Market    MarketConfig    `yaml:"market"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
}

// AccountConfig describes one monitored account. Kind "twitter" reads the
// timeline API; kind "rss" reads a mirror feed (feed URL required).
type AccountConfig struct {
	Handle string `yaml:"handle"`
	Kind   string `yaml:"kind"`
	Feed   string `yaml:"feed"`
}

type SourceConfig struct {
	Twitter TwitterConfig `yaml:"twitter"`
}

type TwitterConfig struct {
	BearerTokenEnv string `yaml:"bearer_token_env"`
	PageSize       int    `yaml:"page_size"`

	// Resolved from env at load time.
	BearerToken string `yaml:"-"`
}

type SinkConfig struct {
	Subreddit       string `yaml:"subreddit"`
	FlairID         string `yaml:"flair_id"`
	Signature       string `yaml:"signature"`
	UserAgent       string `yaml:"user_agent"`
	ClientIDEnv     string `yaml:"client_id_env"`
	ClientSecretEnv string `yaml:"client_secret_env"`
	UsernameEnv     string `yaml:"username_env"`
	PasswordEnv     string `yaml:"password_env"`

	// Resolved from env at load time.
	ClientID     string `yaml:"-"`
	ClientSecret string `yaml:"-"`
	Username     string `yaml:"-"`
	Password     string `yaml:"-"`
}

type WatchConfig struct {
	Interval Duration `yaml:"interval"`
	Jitter   Duration `yaml:"jitter"`
	Lookback Duration `yaml:"lookback"`
}

type StorageConfig struct {
	Path       string `yaml:"path"`
	RetainDays int    `yaml:"retain_days"`
}

type GateConfig struct {
	Mode         string    `yaml:"mode"`
	DenyKeywords []string  `yaml:"deny_keywords"`
	MinLength    int       `yaml:"min_length"`
	LLM          LLMConfig `yaml:"llm"`
}

type LLMConfig struct {
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	MaxTokens int    `yaml:"max_tokens"`

	// Resolved from env at load time.
	APIKey string `yaml:"-"`
}

type MarketConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Symbol    string `yaml:"symbol"`
	Schedule  string `yaml:"schedule"`
	Timezone  string `yaml:"timezone"`
	APIKeyEnv string `yaml:"api_key_env"`

	// Resolved from env at load time.
	APIKey string `yaml:"-"`
}

type RateLimitConfig struct {
	MaxCalls int      `yaml:"max_calls"`
	Period   Duration `yaml:"period"`
}

// MarketLocation returns the configured market timezone.
func (c *Config) MarketLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Market.Timezone)
	if err != nil {
		return nil, fmt.Errorf("market.timezone: %w", err)
	}
	return loc, nil
}

// Load reads config.yaml from dir, applies defaults, resolves env vars, and validates.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	resolveEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	for i := range cfg.Accounts {
		if cfg.Accounts[i].Kind == "" {
			cfg.Accounts[i].Kind = "twitter"
		}
	}
	if cfg.Source.Twitter.PageSize == 0 {
		cfg.Source.Twitter.PageSize = DefaultPageSize
	}
	if cfg.Sink.UserAgent == "" {
		cfg.Sink.UserAgent = DefaultUserAgent
	}
	if cfg.Watch.Interval.Duration == 0 {
		cfg.Watch.Interval.Duration = DefaultInterval
	}
	if cfg.Watch.Jitter.Duration == 0 {
		cfg.Watch.Jitter.Duration = DefaultJitter
	}
	if cfg.Watch.Lookback.Duration == 0 {
		cfg.Watch.Lookback.Duration = DefaultLookback
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Storage.RetainDays == 0 {
		cfg.Storage.RetainDays = DefaultRetainDays
	}
	if cfg.Gate.Mode == "" {
		cfg.Gate.Mode = DefaultGateMode
	}
	if cfg.Market.Symbol == "" {
		cfg.Market.Symbol = DefaultMarketSymbol
	}
	if cfg.Market.Schedule == "" {
		cfg.Market.Schedule = DefaultMarketSchedule
	}
	if cfg.Market.Timezone == "" {
		cfg.Market.Timezone = DefaultMarketTimezone
	}
	if cfg.RateLimit.MaxCalls == 0 {
		cfg.RateLimit.MaxCalls = DefaultRateMaxCalls
	}
	if cfg.RateLimit.Period.Duration == 0 {
		cfg.RateLimit.Period.Duration = DefaultRatePeriod
	}
}

func resolveEnv(cfg *Config) {
	if cfg.Source.Twitter.BearerTokenEnv != "" {
		cfg.Source.Twitter.BearerToken = os.Getenv(cfg.Source.Twitter.BearerTokenEnv)
	}
	if cfg.Sink.ClientIDEnv != "" {
		cfg.Sink.ClientID = os.Getenv(cfg.Sink.ClientIDEnv)
	}
	if cfg.Sink.ClientSecretEnv != "" {
		cfg.Sink.ClientSecret = os.Getenv(cfg.Sink.ClientSecretEnv)
	}
	if cfg.Sink.UsernameEnv != "" {
		cfg.Sink.Username = os.Getenv(cfg.Sink.UsernameEnv)
	}
	if cfg.Sink.PasswordEnv != "" {
		cfg.Sink.Password = os.Getenv(cfg.Sink.PasswordEnv)
	}
	if cfg.Gate.LLM.APIKeyEnv != "" {
		cfg.Gate.LLM.APIKey = os.Getenv(cfg.Gate.LLM.APIKeyEnv)
	}
	if cfg.Market.APIKeyEnv != "" {
		cfg.Market.APIKey = os.Getenv(cfg.Market.APIKeyEnv)
	}
}

func validate(cfg *Config) error {
	if len(cfg.Accounts) == 0 {
		return errors.New("accounts: at least one account must be configured")
	}
	for i, acc := range cfg.Accounts {
		if strings.TrimSpace(acc.Handle) == "" {
			return fmt.Errorf("accounts[%d]: handle is required", i)
		}
		switch acc.Kind {
		case "twitter":
			// timeline API
		case "rss":
			if strings.TrimSpace(acc.Feed) == "" {
				return fmt.Errorf("accounts[%d]: feed URL is required for kind rss", i)
			}
		default:
			return fmt.Errorf("accounts[%d]: unknown kind %q (want twitter or rss)", i, acc.Kind)
		}
	}

	if strings.TrimSpace(cfg.Sink.Subreddit) == "" {
		return errors.New("sink.subreddit is required")
	}

	if cfg.Watch.Interval.Duration <= 0 {
		return errors.New("watch.interval must be positive")
	}
	if cfg.Watch.Jitter.Duration < 0 {
		return errors.New("watch.jitter must not be negative")
	}

	switch cfg.Gate.Mode {
	case "off", "heuristic", "llm":
		// valid
	default:
		return fmt.Errorf("gate.mode: unknown mode %q (want off, heuristic or llm)", cfg.Gate.Mode)
	}

	if _, err := time.LoadLocation(cfg.Market.Timezone); err != nil {
		return fmt.Errorf("market.timezone: %w", err)
	}

	return nil
}
