package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/agencydesk/dispatch/internal/biz/domain"
	"github.com/agencydesk/dispatch/internal/biz/usecase"
)

// Provider kinds
const (
	ProviderHTTP   = "http"
	ProviderFeishu = "lark"
)

// Config represents application configuration
type Config struct {
	// HTTP API configuration
	HTTP HTTPConfig

	// Message record store
	Store StoreConfig

	// Messaging provider
	Provider ProviderConfig

	// Correlation tuning, overridable from the reconcile YAML file
	Correlate CorrelateConfig

	Log LogConfig

	// OTLP/HTTP collector endpoint; tracing is disabled when empty
	OtelEndpoint string `env:"OTEL_ENDPOINT"`

	// Path of the reconcile YAML file that was loaded, if any
	ConfigPath string

	// Debug mode
	Debug bool `env:"DEBUG"`
}

// HTTPConfig contains HTTP server configuration
type HTTPConfig struct {
	Addr string `env:"DISPATCH_HTTP_ADDR" envDefault:":8080"`
}

// StoreConfig contains record store configuration.
// DatabaseURL selects Postgres; otherwise SQLite at DBPath is used.
type StoreConfig struct {
	DBPath      string `env:"DISPATCH_DB_PATH"`
	DatabaseURL string `env:"DATABASE_URL"`
}

// ProviderConfig contains messaging provider configuration
type ProviderConfig struct {
	Kind           string `env:"DISPATCH_PROVIDER" envDefault:"http"`
	BaseURL        string `env:"PROVIDER_BASE_URL"`
	APIKey         string `env:"PROVIDER_API_KEY"`
	APISecret      string `env:"PROVIDER_API_SECRET"`
	TimeoutSeconds int    `env:"PROVIDER_TIMEOUT_SECONDS" envDefault:"15"`
	MaxAttachments int    `env:"PROVIDER_MAX_ATTACHMENTS" yaml:"max_attachments"`

	FeishuAppID     string `env:"FEISHU_APP_ID"`
	FeishuAppSecret string `env:"FEISHU_APP_SECRET"`
}

// CorrelateConfig contains correlation polling configuration
type CorrelateConfig struct {
	MaxAttempts    int           `env:"CORRELATE_MAX_ATTEMPTS" yaml:"max_attempts"`
	PollDelay      time.Duration `env:"CORRELATE_POLL_DELAY" yaml:"poll_delay"`
	PollTimeout    time.Duration `env:"CORRELATE_POLL_TIMEOUT" yaml:"poll_timeout"`
	FallbackWindow time.Duration `env:"CORRELATE_FALLBACK_WINDOW" yaml:"fallback_window"`
}

// LogConfig contains logger configuration
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// LoadFromEnv loads configuration from environment variables.
//
// Precedence: built-in defaults, then the reconcile YAML file, then env.
func LoadFromEnv() (*Config, error) {
	defaults := usecase.DefaultCorrelatorConfig
	cfg := &Config{
		Provider: ProviderConfig{MaxAttachments: domain.DefaultMaxAttachments},
		Correlate: CorrelateConfig{
			MaxAttempts:    defaults.MaxAttempts,
			PollDelay:      defaults.PollDelay,
			PollTimeout:    defaults.PollTimeout,
			FallbackWindow: defaults.FallbackWindow,
		},
	}

	// Tuning fields carry no envDefault so env only overrides what is set
	path, err := LoadReconcileFile(os.Getenv("RECONCILE_CONFIG_PATH"), cfg)
	if err != nil {
		return nil, err
	}
	cfg.ConfigPath = path

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}

	if cfg.Store.DBPath == "" && cfg.Store.DatabaseURL == "" {
		homeDir, _ := os.UserHomeDir()
		cfg.Store.DBPath = filepath.Join(homeDir, ".dispatch", "records.db")
	}
	if cfg.Debug {
		cfg.Log.Level = "debug"
	}

	return cfg, nil
}

// ToCorrelatorConfig converts to correlator configuration
func (c *CorrelateConfig) ToCorrelatorConfig() usecase.CorrelatorConfig {
	return usecase.CorrelatorConfig{
		MaxAttempts:    c.MaxAttempts,
		PollDelay:      c.PollDelay,
		PollTimeout:    c.PollTimeout,
		FallbackWindow: c.FallbackWindow,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Provider.Kind {
	case ProviderHTTP:
		if c.Provider.BaseURL == "" {
			return &ConfigError{Field: "PROVIDER_BASE_URL", Message: "required for http provider"}
		}
	case ProviderFeishu:
		if c.Provider.FeishuAppID == "" || c.Provider.FeishuAppSecret == "" {
			return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required for lark provider"}
		}
	default:
		return &ConfigError{Field: "DISPATCH_PROVIDER", Message: fmt.Sprintf("unknown provider %q", c.Provider.Kind)}
	}

	if c.Provider.MaxAttachments < 0 {
		return &ConfigError{Field: "PROVIDER_MAX_ATTACHMENTS", Message: "must not be negative"}
	}
	if c.Correlate.MaxAttempts < 1 {
		return &ConfigError{Field: "CORRELATE_MAX_ATTEMPTS", Message: "must be at least 1"}
	}
	if c.Correlate.PollDelay < 0 {
		return &ConfigError{Field: "CORRELATE_POLL_DELAY", Message: "must not be negative"}
	}
	if c.Correlate.PollTimeout <= 0 {
		return &ConfigError{Field: "CORRELATE_POLL_TIMEOUT", Message: "must be positive"}
	}
	if c.Correlate.FallbackWindow <= 0 {
		return &ConfigError{Field: "CORRELATE_FALLBACK_WINDOW", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
