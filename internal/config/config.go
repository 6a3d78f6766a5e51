// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all pipeline configuration knobs loaded via Viper.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Import   ImportConfig   `mapstructure:"import"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DatabaseConfig locates the SQLite store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ImportConfig governs the bulk extract importer.
type ImportConfig struct {
	DataDir   string `mapstructure:"data_dir"`
	BatchSize int    `mapstructure:"batch_size"`
}

// CrawlConfig governs the document crawler and its proxy client.
type CrawlConfig struct {
	WorkerURL         string `mapstructure:"worker_url"`
	BaseURL           string `mapstructure:"base_url"`
	RequestDelayMs    int    `mapstructure:"request_delay_ms"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	MaxAttempts       int    `mapstructure:"max_attempts"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds"`
	ProgressInterval  int    `mapstructure:"progress_interval"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BRRTS")
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
	v.SetDefault("database.path", "brrts.db")
	v.SetDefault("import.data_dir", "data/wdnr-brrts-data")
	v.SetDefault("import.batch_size", 5000)
	v.SetDefault("crawl.base_url", "https://apps.dnr.wi.gov")
	v.SetDefault("crawl.request_delay_ms", 1500)
	v.SetDefault("crawl.timeout_seconds", 30)
	v.SetDefault("crawl.max_attempts", 3)
	v.SetDefault("crawl.retry_delay_seconds", 5)
	v.SetDefault("crawl.progress_interval", 100)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must be set")
	}
	if c.Import.BatchSize <= 0 {
		return fmt.Errorf("import.batch_size must be > 0")
	}
	if c.Crawl.RequestDelayMs < 0 {
		return fmt.Errorf("crawl.request_delay_ms must be >= 0")
	}
	if c.Crawl.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawl.timeout_seconds must be > 0")
	}
	if c.Crawl.MaxAttempts <= 0 {
		return fmt.Errorf("crawl.max_attempts must be > 0")
	}
	if c.Crawl.ProgressInterval <= 0 {
		return fmt.Errorf("crawl.progress_interval must be > 0")
	}
	return nil
}

// RequestDelay is the fixed cooperative delay between proxy requests.
func (c CrawlConfig) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMs) * time.Millisecond
}

// FetchTimeout bounds a single proxy fetch.
func (c CrawlConfig) FetchTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryBaseDelay is the base backoff unit between retry attempts.
func (c CrawlConfig) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}
