package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	HubSpot   HubSpotConfig   `yaml:"hubspot" mapstructure:"hubspot"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Schema    SchemaConfig    `yaml:"schema" mapstructure:"schema"`
	Merge     MergeConfig     `yaml:"merge" mapstructure:"merge"`
	Sync      SyncConfig      `yaml:"sync" mapstructure:"sync"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// HubSpotConfig holds CRM connection and transport settings.
type HubSpotConfig struct {
	BaseURL             string `yaml:"base_url" mapstructure:"base_url"`
	Token               string `yaml:"token" mapstructure:"token"`
	ConnectionID        string `yaml:"connection_id" mapstructure:"connection_id"`
	PortalID            string `yaml:"portal_id" mapstructure:"portal_id"`
	RateLimitRequests   int    `yaml:"rate_limit_requests" mapstructure:"rate_limit_requests"`
	RateLimitWindowSecs int    `yaml:"rate_limit_window_secs" mapstructure:"rate_limit_window_secs"`
	MaxRetries          int    `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs         int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// RateLimitWindow returns the rolling window as a duration.
func (c HubSpotConfig) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSecs) * time.Second
}

// AnthropicConfig holds assisted-merge provider settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SchemaConfig sets the two schema cache TTLs.
type SchemaConfig struct {
	MemoryTTLMins   int `yaml:"memory_ttl_mins" mapstructure:"memory_ttl_mins"`
	DurableTTLHours int `yaml:"durable_ttl_hours" mapstructure:"durable_ttl_hours"`
}

// MergeConfig configures the merge engine.
type MergeConfig struct {
	Assisted                bool `yaml:"assisted" mapstructure:"assisted"`
	CircuitFailureThreshold int  `yaml:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold"`
	CircuitResetSecs        int  `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
	TranscriptMaxChars      int  `yaml:"transcript_max_chars" mapstructure:"transcript_max_chars"`
}

// SyncConfig configures matching and orchestration.
type SyncConfig struct {
	MatchLimit             int    `yaml:"match_limit" mapstructure:"match_limit"`
	OrphanPendingMins      int    `yaml:"orphan_pending_mins" mapstructure:"orphan_pending_mins"`
	TaskDueDays            int    `yaml:"task_due_days" mapstructure:"task_due_days"`
	PlaceholderEmailDomain string `yaml:"placeholder_email_domain" mapstructure:"placeholder_email_domain"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DEALSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets get empty defaults so AutomaticEnv can see them.
	v.SetDefault("hubspot.token", "")
	v.SetDefault("hubspot.portal_id", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("hubspot.base_url", "https://api.hubapi.com")
	v.SetDefault("hubspot.connection_id", "default")
	v.SetDefault("hubspot.rate_limit_requests", 100)
	v.SetDefault("hubspot.rate_limit_window_secs", 10)
	v.SetDefault("hubspot.max_retries", 3)
	v.SetDefault("hubspot.timeout_secs", 30)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("schema.memory_ttl_mins", 60)
	v.SetDefault("schema.durable_ttl_hours", 24)
	v.SetDefault("merge.assisted", true)
	v.SetDefault("merge.circuit_failure_threshold", 3)
	v.SetDefault("merge.circuit_reset_secs", 60)
	v.SetDefault("merge.transcript_max_chars", 4000)
	v.SetDefault("sync.match_limit", 5)
	v.SetDefault("sync.orphan_pending_mins", 30)
	v.SetDefault("sync.task_due_days", 1)
	v.SetDefault("sync.placeholder_email_domain", "placeholder.dealsync.invalid")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "dealsync.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings every CRM-touching command needs.
func (c *Config) Validate() error {
	if c.HubSpot.Token == "" {
		return eris.New("config: hubspot.token is required (DEALSYNC_HUBSPOT_TOKEN)")
	}
	if c.HubSpot.ConnectionID == "" {
		return eris.New("config: hubspot.connection_id is required")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unsupported store driver %q", c.Store.Driver)
	}
	if c.Merge.Assisted && c.Anthropic.Key == "" {
		zap.L().Warn("config: merge.assisted is on but anthropic.key is empty, using deterministic merge")
		c.Merge.Assisted = false
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
