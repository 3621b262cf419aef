// Package config provides configuration loading and validation for the
// analysis coordination engine.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidFileTimeout   = errors.New("fileTimeoutMs must be positive")
	ErrInvalidMaxTypeDepth  = errors.New("maxTypeDepth must be positive")
	ErrInvalidMaxMemoryMb   = errors.New("maxMemoryMb must be positive")
	ErrInvalidTTL           = errors.New("cache ttlSeconds must be non-negative")
	ErrInvalidMaxEntries    = errors.New("cache maxEntries must be positive")
	ErrInvalidMaxSizeMb     = errors.New("cache maxSizeMb must be positive")
	ErrInvalidMaxConcurrent = errors.New("maxConcurrent must be positive")
	ErrInvalidMaxFileSizeMb = errors.New("logging maxFileSizeMb must be positive")
	ErrInvalidSeverity      = errors.New("rule override severity is not a canonical severity")
	ErrSchemaViolation      = errors.New("config document violates schema")
)

// Default configuration values, named for the fields they seed.
const (
	defaultMaxConcurrent     = 4
	defaultCheckerPoolSize   = 4
	defaultCheckerTimeoutMs  = 30_000
	defaultMaxTypeDepth      = 24
	defaultMaxMemoryMb       = 4096
	defaultLinterConcurrency = 8
	defaultLinterTimeoutMs   = 10_000
	defaultCacheMaxEntries   = 2000
	defaultCacheMaxSizeMb    = 64
	defaultCacheTTLSeconds   = 300
	defaultLogMaxFileSizeMb  = 20
	defaultMaxTraceHistory   = 1000
	defaultDebounceMs        = 150
)

// Config is the top-level configuration for the coordinator. Field tags use
// mapstructure for viper unmarshalling, matching the settings surface
// enumerated in the specification's configuration table.
type Config struct {
	MaxConcurrent int             `mapstructure:"max_concurrent"`
	Checker       CheckerConfig   `mapstructure:"checker"`
	Linter        LinterConfig    `mapstructure:"linter"`
	Logging       LoggingConfig   `mapstructure:"logging"`
	Cache         CacheConfig     `mapstructure:"cache"`
	Watch         WatchConfig     `mapstructure:"watch"`
	Inspector     InspectorConfig `mapstructure:"inspector"`
}

// CheckerConfig configures the persistent checker pool.
type CheckerConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	BinaryPath    string   `mapstructure:"binary_path"`
	PoolSize      int      `mapstructure:"pool_size"`
	MaxTypeDepth  int      `mapstructure:"max_type_depth"`
	FileTimeoutMs int      `mapstructure:"file_timeout_ms"`
	MaxMemoryMb   int      `mapstructure:"max_memory_mb"`
	Flags         []string `mapstructure:"flags"`
}

// LinterConfig configures the ephemeral linter pool.
type LinterConfig struct {
	Enabled       bool              `mapstructure:"enabled"`
	BinaryPath    string            `mapstructure:"binary_path"`
	ConfigPath    string            `mapstructure:"config_path"`
	Concurrency   int               `mapstructure:"concurrency"`
	FileTimeoutMs int               `mapstructure:"file_timeout_ms"`
	Rules         map[string]string `mapstructure:"rules"`
}

// LoggingConfig configures the structured logging core.
type LoggingConfig struct {
	Level         string `mapstructure:"level"`
	File          string `mapstructure:"file"`
	MaxFileSizeMb int    `mapstructure:"max_file_size_mb"`
	PrettyPrint   bool   `mapstructure:"pretty_print"`
}

// CacheConfig configures the result cache bounds.
type CacheConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	MaxEntries int  `mapstructure:"max_entries"`
	MaxSizeMb  int  `mapstructure:"max_size_mb"`
	TTLSeconds int  `mapstructure:"ttl_seconds"`
}

// WatchConfig is exposed for callers; it does not affect cache keys.
type WatchConfig struct {
	DebounceMs int `mapstructure:"debounce_ms"`
}

// InspectorConfig configures the tracer retention exposed via inspector-data.
type InspectorConfig struct {
	MaxTraceHistory int `mapstructure:"max_trace_history"`
}

// canonicalSeverities are the severity values a rule override may map to.
var canonicalSeverities = map[string]bool{
	"error": true, "warning": true, "info": true, "hint": true,
}

// LoadConfig loads configuration from file, environment variables, and
// defaults. A missing config file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType("yaml")
	viperCfg.SetEnvPrefix("LANGBRIDGE")
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(".langbridge")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("/etc/langbridge")
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	if err := validateDocument(viperCfg.AllSettings()); err != nil {
		return nil, fmt.Errorf("validate config document: %w", err)
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("max_concurrent", defaultMaxConcurrent)

	v.SetDefault("checker.enabled", true)
	v.SetDefault("checker.binary_path", "checker")
	v.SetDefault("checker.pool_size", defaultCheckerPoolSize)
	v.SetDefault("checker.max_type_depth", defaultMaxTypeDepth)
	v.SetDefault("checker.file_timeout_ms", defaultCheckerTimeoutMs)
	v.SetDefault("checker.max_memory_mb", defaultMaxMemoryMb)
	v.SetDefault("checker.flags", []string{})

	v.SetDefault("linter.enabled", true)
	v.SetDefault("linter.binary_path", "linter")
	v.SetDefault("linter.config_path", "")
	v.SetDefault("linter.concurrency", defaultLinterConcurrency)
	v.SetDefault("linter.file_timeout_ms", defaultLinterTimeoutMs)
	v.SetDefault("linter.rules", map[string]string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_file_size_mb", defaultLogMaxFileSizeMb)
	v.SetDefault("logging.pretty_print", false)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_entries", defaultCacheMaxEntries)
	v.SetDefault("cache.max_size_mb", defaultCacheMaxSizeMb)
	v.SetDefault("cache.ttl_seconds", defaultCacheTTLSeconds)

	v.SetDefault("watch.debounce_ms", defaultDebounceMs)

	v.SetDefault("inspector.max_trace_history", defaultMaxTraceHistory)
}

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxConcurrent, c.MaxConcurrent)
	}

	if err := c.Checker.validate(); err != nil {
		return err
	}

	if err := c.Linter.validate(); err != nil {
		return err
	}

	if err := c.Cache.validate(); err != nil {
		return err
	}

	if err := c.Logging.validate(); err != nil {
		return err
	}

	return c.Linter.validateRules()
}

func (c *CheckerConfig) validate() error {
	if c.FileTimeoutMs <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidFileTimeout, c.FileTimeoutMs)
	}

	if c.MaxTypeDepth <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxTypeDepth, c.MaxTypeDepth)
	}

	if c.MaxMemoryMb <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxMemoryMb, c.MaxMemoryMb)
	}

	return nil
}

func (c *LinterConfig) validate() error {
	if c.FileTimeoutMs <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidFileTimeout, c.FileTimeoutMs)
	}

	return nil
}

func (c *LinterConfig) validateRules() error {
	for rule, severity := range c.Rules {
		if !canonicalSeverities[severity] {
			return fmt.Errorf("%w: rule %q severity %q", ErrInvalidSeverity, rule, severity)
		}
	}

	return nil
}

func (c *CacheConfig) validate() error {
	if c.TTLSeconds < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTTL, c.TTLSeconds)
	}

	if c.MaxEntries <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxEntries, c.MaxEntries)
	}

	if c.MaxSizeMb <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxSizeMb, c.MaxSizeMb)
	}

	return nil
}

func (c *LoggingConfig) validate() error {
	if c.MaxFileSizeMb <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxFileSizeMb, c.MaxFileSizeMb)
	}

	return nil
}

// TTL returns the cache TTL as a time.Duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// MaxSizeBytes returns the cache's maximum total size in bytes.
func (c CacheConfig) MaxSizeBytes() int64 {
	return int64(c.MaxSizeMb) * 1024 * 1024
}
