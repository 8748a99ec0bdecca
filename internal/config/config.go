// Package config loads gc60 settings from defaults, an optional TOML file and
// GC60_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of the environment variables read by Load.
const EnvPrefix = "GC60"

// DefaultFile is the project config file looked up in the working directory.
const DefaultFile = "gc60.toml"

// Config is the resolved CLI configuration.
type Config struct {
	Limit         uint64    `mapstructure:"limit"`
	SegmentBlocks uint64    `mapstructure:"segment_blocks"`
	Workers       int       `mapstructure:"workers"`
	Parallel      bool      `mapstructure:"parallel"`
	MemoryLimit   int64     `mapstructure:"memory_limit"`
	Log           LogConfig `mapstructure:"log"`
}

// LogConfig controls the CLI logger.
type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

// New returns a viper instance with defaults and environment binding.
// If path is empty, DefaultFile is read when it exists.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if path == "" {
		if _, err := os.Stat(DefaultFile); err != nil {
			return v, nil
		}
		path = DefaultFile
	}

	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return v, nil
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Limit == 0 {
		return fmt.Errorf("limit must be positive")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0 (got %d)", c.Workers)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}
