// Package config loads crewd configuration from YAML files and environment
// variables. Search order: explicit path, ./crewd.yaml, ~/.config/crewd/crewd.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/marcus/crewd/internal/logging"
)

// Config holds all crewd configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Run      RunConfig      `mapstructure:"run"`
	Daemon   DaemonConfig   `mapstructure:"daemon"`
}

// DatabaseConfig holds persistence settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level         string `mapstructure:"level"`
	Path          string `mapstructure:"path"`
	Format        string `mapstructure:"format"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// RunConfig holds orchestration run defaults.
type RunConfig struct {
	Steps int `mapstructure:"steps"`
}

// DaemonConfig holds scheduled-run settings.
type DaemonConfig struct {
	Cron  string `mapstructure:"cron"`
	Steps int    `mapstructure:"steps"`
}

// DefaultDBPath returns the default database location.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "crewd", "crewd.db")
}

// Load reads configuration. An empty path uses the default search locations;
// a missing config file yields defaults rather than an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	logDefaults := logging.DefaultConfig()
	v.SetDefault("database.path", DefaultDBPath())
	v.SetDefault("logging.level", logDefaults.Level)
	v.SetDefault("logging.path", logDefaults.Path)
	v.SetDefault("logging.format", logDefaults.Format)
	v.SetDefault("logging.retention_days", logDefaults.RetentionDays)
	v.SetDefault("run.steps", 1)
	v.SetDefault("daemon.cron", "0 2 * * *")
	v.SetDefault("daemon.steps", 10)

	v.SetEnvPrefix("CREWD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("crewd")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "crewd"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// ExpandedDBPath returns the database path with ~ expanded.
func (c *Config) ExpandedDBPath() string {
	return expandPath(c.Database.Path)
}

// LoggingSettings returns the logging package configuration.
func (c *Config) LoggingSettings() logging.Config {
	return logging.Config{
		Level:         c.Logging.Level,
		Path:          expandPath(c.Logging.Path),
		Format:        c.Logging.Format,
		RetentionDays: c.Logging.RetentionDays,
	}
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
