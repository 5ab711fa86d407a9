// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Registry  RegistryConfig  `mapstructure:"registry"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Assessors AssessorsConfig `mapstructure:"assessors"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// RegistryConfig identifies the site being scraped and how politely to
// treat it.
type RegistryConfig struct {
	BaseURL       string  `mapstructure:"base_url"`
	UserAgent     string  `mapstructure:"user_agent"`
	RespectRobots bool    `mapstructure:"respect_robots"`
	RateLimitRPS  float64 `mapstructure:"rate_limit_rps"`
	RateBurst     int     `mapstructure:"rate_burst"`
}

// HTTPConfig configures fetch timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// PipelineConfig governs the concurrent core.
type PipelineConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// StorageConfig sets the staging and output locations plus the optional
// export target.
type StorageConfig struct {
	StagingDir   string `mapstructure:"staging_dir"`
	OutputDir    string `mapstructure:"output_dir"`
	ExportBucket string `mapstructure:"export_bucket"`
	ExportDir    string `mapstructure:"export_dir"`
}

// AssessorsConfig locates the assessor registry source, either a local
// CSV path or an http(s) URL.
type AssessorsConfig struct {
	Source string `mapstructure:"source"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("registry.base_url", "https://www.certificacionsustentable.cl/")
	v.SetDefault("registry.user_agent", "ces-registry-crawler/1.0 (+https://github.com/cesdata/ces-registry-crawler)")
	v.SetDefault("registry.respect_robots", true)
	v.SetDefault("registry.rate_limit_rps", 4)
	v.SetDefault("registry.rate_burst", 2)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 10)
	v.SetDefault("http.backoff_initial_ms", 1000)
	v.SetDefault("http.backoff_max_ms", 15000)
	v.SetDefault("pipeline.concurrency", 5)
	v.SetDefault("storage.staging_dir", "data/staging")
	v.SetDefault("storage.output_dir", "data")
	v.SetDefault("assessors.source", "Registro_AsesoresCES.csv")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Registry.BaseURL == "" {
		return fmt.Errorf("registry.base_url must be set")
	}
	if c.Registry.UserAgent == "" {
		return fmt.Errorf("registry.user_agent must be set")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries <= 0 {
		return fmt.Errorf("http.max_retries must be > 0")
	}
	if c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("pipeline.concurrency must be > 0")
	}
	if c.Storage.StagingDir == "" {
		return fmt.Errorf("storage.staging_dir must be set")
	}
	if c.Storage.OutputDir == "" {
		return fmt.Errorf("storage.output_dir must be set")
	}
	if c.Storage.ExportBucket != "" && c.Storage.ExportDir != "" {
		return fmt.Errorf("storage.export_bucket and storage.export_dir are mutually exclusive")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout config into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffInitial converts the initial backoff config into a duration.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}

// BackoffMax converts the backoff cap config into a duration.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}
