// Package config provides configuration management for the screener.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Azmorus/GPTScreener/internal/analysis/indicators"
	apperrors "github.com/Azmorus/GPTScreener/internal/errors"
	"github.com/Azmorus/GPTScreener/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Source      SourceConfig     `mapstructure:"source"`
	Store       StoreConfig      `mapstructure:"store"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Detector    DetectorConfig   `mapstructure:"detector"`
	Logging     LoggingConfig    `mapstructure:"logging"`
	Metrics     MetricsConfig    `mapstructure:"metrics"`
	Resilience  ResilienceConfig `mapstructure:"resilience"`
	Credentials Credentials      `mapstructure:"-"` // Loaded separately

	dir string
}

// SourceConfig selects the price providers.
type SourceConfig struct {
	Primary        string        `mapstructure:"primary"`  // twelvedata, sqlite
	Fallback       string        `mapstructure:"fallback"` // twelvedata, sqlite, or empty
	Interval       string        `mapstructure:"interval"`
	OutputSize     int           `mapstructure:"output_size"`
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RequestsPerMin int           `mapstructure:"requests_per_minute"`
}

// StoreConfig configures the local candle database.
type StoreConfig struct {
	Path       string        `mapstructure:"path"`
	Limit      int           `mapstructure:"limit"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

// CacheConfig configures the Redis series cache.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// DetectorConfig configures pattern detection.
type DetectorConfig struct {
	TrendMethod string `mapstructure:"trend_method"` // sma, hilbert
}

// LoggingConfig configures logging output.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// MetricsConfig configures the metrics textfile.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile"`
}

// ResilienceConfig configures retries and the source circuit breaker.
type ResilienceConfig struct {
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	BreakerEnabled   bool          `mapstructure:"breaker_enabled"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
	Concurrency      int           `mapstructure:"concurrency"`
}

// Credentials holds API credentials.
type Credentials struct {
	TwelveData TwelveDataCredentials `mapstructure:"twelvedata"`
}

// TwelveDataCredentials holds the Twelve Data API key.
type TwelveDataCredentials struct {
	APIKey string `mapstructure:"api_key"`
}

// Known source names.
const (
	SourceTwelveData = "twelvedata"
	SourceSQLite     = "sqlite"
)

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/gptscreener"
	}
	return filepath.Join(home, ".config", "gptscreener")
}

// Dir returns the directory the configuration was loaded from.
func (c *Config) Dir() string {
	return c.dir
}

// Load loads configuration from the specified directory, writing templates
// for missing files. If configDir is empty, uses the default config directory.
// A .env file in the working directory or configDir is applied before the
// environment overrides.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	loadDotEnv(configDir)

	cfg := &Config{dir: configDir}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}
	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{dir: DefaultConfigDir()}
	_ = v.Unmarshal(cfg)
	cfg.resolvePaths()
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.primary", SourceTwelveData)
	v.SetDefault("source.fallback", SourceSQLite)
	v.SetDefault("source.interval", string(models.Timeframe1Day))
	v.SetDefault("source.output_size", 365)
	v.SetDefault("source.request_timeout", 15*time.Second)
	v.SetDefault("source.requests_per_minute", 8)

	v.SetDefault("store.path", "screener.db")
	v.SetDefault("store.limit", 500)
	v.SetDefault("store.stale_after", 24*time.Hour)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.ttl", 5*time.Minute)

	v.SetDefault("detector.trend_method", string(indicators.TrendSMA))

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", false)
	v.SetDefault("logging.file_path", "logs/screener.log")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.textfile", "screener.prom")

	v.SetDefault("resilience.retry_delay", 250*time.Millisecond)
	v.SetDefault("resilience.breaker_enabled", true)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.cooldown", 30*time.Second)
	v.SetDefault("resilience.concurrency", 4)
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		if err := createTemplateConfig(configDir); err != nil {
			return err
		}
	}

	return v.Unmarshal(cfg)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func loadDotEnv(configDir string) {
	for _, path := range []string{".env", filepath.Join(configDir, ".env")} {
		if _, err := os.Stat(path); err == nil {
			// Variables already set in the environment win.
			_ = godotenv.Load(path)
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TWELVE_API_KEY"); v != "" {
		cfg.Credentials.TwelveData.APIKey = v
	}
	if v := os.Getenv("SCREENER_PRIMARY_SOURCE"); v != "" {
		cfg.Source.Primary = v
	}
	if v, ok := os.LookupEnv("SCREENER_FALLBACK_SOURCE"); ok {
		cfg.Source.Fallback = v
	}
	if v := os.Getenv("SCREENER_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("SCREENER_REDIS_ADDR"); v != "" {
		cfg.Cache.Address = v
		cfg.Cache.Enabled = true
	}
	if v := os.Getenv("SCREENER_TREND_METHOD"); v != "" {
		cfg.Detector.TrendMethod = v
	}
	if v := os.Getenv("SCREENER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SCREENER_METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.Textfile = v
		cfg.Metrics.Enabled = true
	}
	if v := os.Getenv("SCREENER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Resilience.Concurrency = n
		}
	}
}

// resolvePaths anchors relative file paths at the config directory.
func (c *Config) resolvePaths() {
	for _, p := range []*string{&c.Store.Path, &c.Logging.FilePath, &c.Metrics.Textfile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(c.dir, *p)
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !isKnownSource(c.Source.Primary) {
		return invalid("source.primary", c.Source.Primary, "must be 'twelvedata' or 'sqlite'")
	}
	if c.Source.Fallback != "" && !isKnownSource(c.Source.Fallback) {
		return invalid("source.fallback", c.Source.Fallback, "must be 'twelvedata', 'sqlite' or empty")
	}
	if c.Source.Fallback == c.Source.Primary {
		return invalid("source.fallback", c.Source.Fallback, "must differ from source.primary")
	}
	if !models.Timeframe(c.Source.Interval).Valid() {
		return invalid("source.interval", c.Source.Interval, "unknown interval")
	}
	if c.Source.OutputSize <= 0 || c.Source.OutputSize > 5000 {
		return invalid("source.output_size", c.Source.OutputSize, "must be between 1 and 5000")
	}
	if c.Store.Limit <= 0 {
		return invalid("store.limit", c.Store.Limit, "must be positive")
	}
	if _, err := indicators.ParseTrendMethod(c.Detector.TrendMethod); err != nil {
		return invalid("detector.trend_method", c.Detector.TrendMethod, err.Error())
	}
	if c.Cache.Enabled && c.Cache.Address == "" {
		return invalid("cache.address", c.Cache.Address, "required when the cache is enabled")
	}
	if c.Resilience.RetryDelay < 0 {
		return invalid("resilience.retry_delay", c.Resilience.RetryDelay, "must be non-negative")
	}
	if c.Resilience.Concurrency < 0 {
		return invalid("resilience.concurrency", c.Resilience.Concurrency, "must be non-negative")
	}
	return nil
}

// UsesTwelveData reports whether either source slot is the Twelve Data API.
func (c *Config) UsesTwelveData() bool {
	return c.Source.Primary == SourceTwelveData || c.Source.Fallback == SourceTwelveData
}

func isKnownSource(name string) bool {
	return name == SourceTwelveData || name == SourceSQLite
}

func invalid(field string, value interface{}, message string) error {
	return fmt.Errorf("%w: %w", apperrors.ErrConfigInvalid, apperrors.NewValidationError(field, value, message))
}
