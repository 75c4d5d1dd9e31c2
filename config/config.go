package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. CORSAIR_MAX_RETRIES.
const EnvPrefix = "CORSAIR"

// Config holds client, store and export configuration.
type Config struct {
	BaseURL            string        `mapstructure:"base_url"`
	PageSize           int           `mapstructure:"page_size"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MinRequestSpacing  time.Duration `mapstructure:"min_request_spacing"`
	MaxRetries         int           `mapstructure:"max_retries"`
	RetryBackoff       time.Duration `mapstructure:"retry_backoff"`
	RetryBackoffMax    time.Duration `mapstructure:"retry_backoff_max"`
	UserAgent          string        `mapstructure:"user_agent"`
	ListenAddr         string        `mapstructure:"listen_addr"`
	MetricsAddr        string        `mapstructure:"metrics_addr"`
	ExportPages        int           `mapstructure:"export_pages"`
	OutputFile         string        `mapstructure:"output_file"`
	OutputFormat       string        `mapstructure:"output_format"` // csv, json, or dual
	PipelineBufferSize int           `mapstructure:"pipeline_buffer_size"`
	BatchSize          int           `mapstructure:"batch_size"`
	DedupeMaxSize      int           `mapstructure:"dedupe_max_size"`
	Verbose            bool          `mapstructure:"verbose"`
}

// DefaultConfig returns defaults matching the public Jikan limits.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "https://api.jikan.moe/v4",
		PageSize:           20,
		Timeout:            10 * time.Second,
		MinRequestSpacing:  time.Second,
		MaxRetries:         3,
		RetryBackoff:       time.Second,
		RetryBackoffMax:    8 * time.Second,
		UserAgent:          "anime-corsair/1.0 (+https://github.com/aluiziolira/anime-corsair)",
		ListenAddr:         ":8080",
		MetricsAddr:        "",
		ExportPages:        5,
		OutputFile:         "output/anime.csv",
		OutputFormat:       "csv",
		PipelineBufferSize: 128,
		BatchSize:          20,
		DedupeMaxSize:      10000,
		Verbose:            false,
	}
}

// Load layers defaults, an optional config file at path and CORSAIR_* env vars.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				return nil, fmt.Errorf("config file %q not found", path)
			}
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("base_url", cfg.BaseURL)
	v.SetDefault("page_size", cfg.PageSize)
	v.SetDefault("timeout", cfg.Timeout)
	v.SetDefault("min_request_spacing", cfg.MinRequestSpacing)
	v.SetDefault("max_retries", cfg.MaxRetries)
	v.SetDefault("retry_backoff", cfg.RetryBackoff)
	v.SetDefault("retry_backoff_max", cfg.RetryBackoffMax)
	v.SetDefault("user_agent", cfg.UserAgent)
	v.SetDefault("listen_addr", cfg.ListenAddr)
	v.SetDefault("metrics_addr", cfg.MetricsAddr)
	v.SetDefault("export_pages", cfg.ExportPages)
	v.SetDefault("output_file", cfg.OutputFile)
	v.SetDefault("output_format", cfg.OutputFormat)
	v.SetDefault("pipeline_buffer_size", cfg.PipelineBufferSize)
	v.SetDefault("batch_size", cfg.BatchSize)
	v.SetDefault("dedupe_max_size", cfg.DedupeMaxSize)
	v.SetDefault("verbose", cfg.Verbose)
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.PageSize <= 0 || c.PageSize > 25 {
		return fmt.Errorf("page size must be between 1 and 25")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MinRequestSpacing < 0 {
		return fmt.Errorf("min request spacing cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.ExportPages < 0 {
		return fmt.Errorf("export pages cannot be negative")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}

	return nil
}
