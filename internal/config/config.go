package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rewired-gh/rtestimate/internal/rt"
)

// Config represents the complete application configuration
type Config struct {
	Source     SourceConfig     `mapstructure:"source"`
	Estimation EstimationConfig `mapstructure:"estimation"`
	Output     OutputConfig     `mapstructure:"output"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// SourceConfig holds case data API configuration
type SourceConfig struct {
	APIURL         string        `mapstructure:"api_url"`
	Region         string        `mapstructure:"region"`
	SkipLastDays   int           `mapstructure:"skip_last_days"` // recent days still being reported
	FillGaps       bool          `mapstructure:"fill_gaps"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// EstimationConfig holds Rt estimation parameters
type EstimationConfig struct {
	SmoothingWindow int     `mapstructure:"smoothing_window"`
	SmoothingStdDev float64 `mapstructure:"smoothing_std_dev"`
	RMax            float64 `mapstructure:"r_max"`
	RStep           float64 `mapstructure:"r_step"`
	Gamma           float64 `mapstructure:"gamma"` // 1 / serial interval in days
	Window          int     `mapstructure:"window"`
	MinPeriods      int     `mapstructure:"min_periods"`
	PriorShape      float64 `mapstructure:"prior_shape"`
	CredibleMass    float64 `mapstructure:"credible_mass"`
}

// OutputConfig holds CSV artifact configuration
type OutputConfig struct {
	Dir     string `mapstructure:"dir"`
	Enabled bool   `mapstructure:"enabled"`
}

// StorageConfig holds result database configuration
type StorageConfig struct {
	DBPath  string `mapstructure:"db_path"`
	MaxRuns int    `mapstructure:"max_runs"`
}

// MonitorConfig holds run revision detection configuration
type MonitorConfig struct {
	RevisionThreshold float64 `mapstructure:"revision_threshold"` // absolute change of ML Rt
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Enable environment variable override, e.g. RT_ESTIMATE_SOURCE_REGION
	v.SetEnvPrefix("RT_ESTIMATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Secrets have no default, so Unmarshal only sees them when bound
	_ = v.BindEnv("telegram.bot_token")
	_ = v.BindEnv("telegram.chat_id")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Source defaults
	v.SetDefault("source.api_url", "https://w3qa5ydb4l.execute-api.eu-west-1.amazonaws.com/prod/processedThlData")
	v.SetDefault("source.region", "Kaikki sairaanhoitopiirit")
	v.SetDefault("source.skip_last_days", 5)
	v.SetDefault("source.fill_gaps", false)
	v.SetDefault("source.timeout", "30s")
	v.SetDefault("source.max_retries", 3)
	v.SetDefault("source.retry_delay_base", "1s")

	// Estimation defaults
	d := rt.DefaultConfig()
	v.SetDefault("estimation.smoothing_window", d.SmoothingWindow)
	v.SetDefault("estimation.smoothing_std_dev", d.SmoothingStdDev)
	v.SetDefault("estimation.r_max", d.RMax)
	v.SetDefault("estimation.r_step", d.RStep)
	v.SetDefault("estimation.gamma", d.Gamma)
	v.SetDefault("estimation.window", d.Window)
	v.SetDefault("estimation.min_periods", d.MinPeriods)
	v.SetDefault("estimation.prior_shape", d.PriorShape)
	v.SetDefault("estimation.credible_mass", d.CredibleMass)

	// Output defaults
	v.SetDefault("output.dir", "./output")
	v.SetDefault("output.enabled", true)

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/rt.db")
	v.SetDefault("storage.max_runs", 30)

	// Monitor defaults
	v.SetDefault("monitor.revision_threshold", 0.1)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Source config
	if c.Source.APIURL == "" {
		return fmt.Errorf("source.api_url is required")
	}
	if c.Source.Region == "" {
		return fmt.Errorf("source.region is required")
	}
	if c.Source.SkipLastDays < 0 {
		return fmt.Errorf("source.skip_last_days must not be negative")
	}
	if c.Source.Timeout < 1*time.Second {
		return fmt.Errorf("source.timeout must be at least 1 second")
	}
	if c.Source.MaxRetries < 1 {
		return fmt.Errorf("source.max_retries must be at least 1")
	}

	// Validate Estimation config
	if err := c.EstimatorConfig().Validate(); err != nil {
		return fmt.Errorf("estimation: %w", err)
	}

	// Validate Output config
	if c.Output.Enabled && c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required when output is enabled")
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxRuns < 1 {
		return fmt.Errorf("storage.max_runs must be at least 1")
	}

	// Validate Monitor config
	if c.Monitor.RevisionThreshold <= 0 {
		return fmt.Errorf("monitor.revision_threshold must be positive")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// EstimatorConfig returns the estimation section as estimator parameters
func (c *Config) EstimatorConfig() rt.Config {
	e := c.Estimation
	return rt.Config{
		SmoothingWindow: e.SmoothingWindow,
		SmoothingStdDev: e.SmoothingStdDev,
		RMax:            e.RMax,
		RStep:           e.RStep,
		Gamma:           e.Gamma,
		Window:          e.Window,
		MinPeriods:      e.MinPeriods,
		PriorShape:      e.PriorShape,
		CredibleMass:    e.CredibleMass,
	}
}
