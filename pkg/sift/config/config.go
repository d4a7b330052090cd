package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/jamesainslie/sift/pkg/sift/logging"
	"github.com/jamesainslie/sift/pkg/sift/types"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level        string            `mapstructure:"level"`
	Path         string            `mapstructure:"path"`
	ConsoleLevel string            `mapstructure:"console_level"`
	Rotation     RotationConfig    `mapstructure:"rotation"`
	Components   map[string]string `mapstructure:"components"`
}

// CacheConfig selects the scan cache store.
type CacheConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"` // empty means the default under DataDir
}

// HistoryConfig configures the scan history log.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Dir           string `mapstructure:"dir"` // empty means DataDir/history
	RetentionDays int    `mapstructure:"retention_days"`
}

// Config represents the application configuration.
type Config struct {
	Workers    int      `mapstructure:"workers"`    // zero picks from CPU count
	QueueSize  int      `mapstructure:"queue_size"` // zero picks from RAM
	MinSize    string   `mapstructure:"min_size"`
	Extensions []string `mapstructure:"extensions"`
	Exclude    []string `mapstructure:"exclude"`
	Digest     struct {
		ChunkSize string `mapstructure:"chunk_size"`
	} `mapstructure:"digest"`
	Cache   CacheConfig   `mapstructure:"cache"`
	History HistoryConfig `mapstructure:"history"`
	Output  struct {
		Format string `mapstructure:"format"`
	} `mapstructure:"output"`
	Smart struct {
		Fallback string `mapstructure:"fallback"`
	} `mapstructure:"smart"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// NewViper returns a viper instance with defaults, environment binding and
// the config file read in. An empty configFile searches the standard
// locations:
//   - $XDG_CONFIG_HOME/sift/config.yaml
//   - $HOME/.config/sift/config.yaml
//
// Environment variables are prefixed with SIFT_ (e.g., SIFT_CACHE_BACKEND).
// A missing config file is not an error unless configFile names it.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()

	if configFile != "" {
		path, err := ExpandPath(configFile)
		if err != nil {
			return nil, err
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, "sift"))
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		v.AddConfigPath(filepath.Join(homeDir, ".config", "sift"))
	}

	v.SetEnvPrefix("SIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("workers", 0)
	v.SetDefault("queue_size", 0)
	v.SetDefault("min_size", DefaultMinSize)
	v.SetDefault("extensions", []string{})
	v.SetDefault("exclude", DefaultExclusions)
	v.SetDefault("digest.chunk_size", DefaultChunkSize)

	v.SetDefault("cache.backend", DefaultCacheBackend)
	v.SetDefault("cache.path", "")

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.dir", "")
	v.SetDefault("history.retention_days", DefaultHistoryRetentionDays)

	v.SetDefault("output.format", DefaultOutputFormat)
	v.SetDefault("smart.fallback", DefaultFallback)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.console_level", "")
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"scanner": "info",
		"cache":   "info",
		"smart":   "info",
		"watcher": "info",
	})
}

// Decode unmarshals v into a Config and expands ~ in path settings.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	paths := []*string{&cfg.Cache.Path, &cfg.History.Dir, &cfg.Logging.Path}
	for i := range cfg.Exclude {
		paths = append(paths, &cfg.Exclude[i])
	}
	for _, p := range paths {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}
	return &cfg, nil
}

// Load loads configuration from the standard locations and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration from path, or the standard locations when
// path is empty.
func LoadFile(path string) (*Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

// MinSizeBytes parses MinSize.
func (c *Config) MinSizeBytes() (int64, error) {
	if c.MinSize == "" {
		return 0, nil
	}
	return types.ParseSize(c.MinSize)
}

// ChunkSizeBytes parses Digest.ChunkSize. Empty yields zero, which the
// digester treats as its default.
func (c *Config) ChunkSizeBytes() (int, error) {
	if c.Digest.ChunkSize == "" {
		return 0, nil
	}
	n, err := types.ParseSize(c.Digest.ChunkSize)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// CachePath returns the configured cache location or the backend default.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return DefaultCachePath(c.Cache.Backend)
}

// HistoryDir returns the configured history directory or the default.
func (c *Config) HistoryDir() string {
	if c.History.Dir != "" {
		return c.History.Dir
	}
	return DefaultHistoryDir()
}

// LoggingOptions converts the logging section for logging.Init.
func (c *Config) LoggingOptions() (logging.Config, error) {
	rot := logging.RotationConfig{
		MaxAge:     c.Logging.Rotation.MaxAge,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		Daily:      c.Logging.Rotation.Daily,
	}
	if c.Logging.Rotation.MaxSize != "" {
		n, err := types.ParseSize(c.Logging.Rotation.MaxSize)
		if err != nil {
			return logging.Config{}, fmt.Errorf("logging.rotation.max_size: %w", err)
		}
		rot.MaxSize = n
	}

	path := c.Logging.Path
	if path == "" {
		path = logging.DefaultLogPath()
	}

	return logging.Config{
		Level:        c.Logging.Level,
		Path:         path,
		Rotation:     rot,
		Components:   c.Logging.Components,
		ConsoleLevel: c.Logging.ConsoleLevel,
	}, nil
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "sift"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "sift"), nil
}

// ConfigFilePath returns the path of the default config file.
func ConfigFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// WriteDefault writes a default config file if none exists and returns its
// path. An existing file is left untouched.
func WriteDefault() (string, error) {
	configPath, err := ConfigFilePath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}
	return configPath, nil
}

func defaultConfig() string {
	return fmt.Sprintf(`# sift configuration

# Hash workers (0 = one per CPU)
workers: 0

# Job queue capacity (0 = sized from available memory)
queue_size: 0

# Skip files smaller than this (0 disables the filter)
min_size: %q

# Only hash files with these extensions (empty = all)
extensions: []

# Directories never descended into
exclude:
  - /proc
  - /sys
  - /dev

digest:
  chunk_size: %s

cache:
  # badger or sqlite
  backend: %s
  # empty means $XDG_DATA_HOME/sift/<backend default>
  path: ""

history:
  enabled: true
  # empty means $XDG_DATA_HOME/sift/history
  dir: ""
  retention_days: %d

output:
  # pretty, plain, json, jsonl, yaml, csv, tsv, markdown, template, paths, null
  format: %s

smart:
  # ask, always or never
  fallback: %s

logging:
  level: info
  # empty means $XDG_STATE_HOME/sift/sift.log
  path: ""
  console_level: ""
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
`, DefaultMinSize, DefaultChunkSize, DefaultCacheBackend, DefaultHistoryRetentionDays,
		DefaultOutputFormat, DefaultFallback)
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	return types.ExpandHome(path)
}

// DataDir returns $XDG_DATA_HOME/sift/ for the cache and scan history.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "sift")
}

// StateDir returns $XDG_STATE_HOME/sift/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "sift")
}

// CacheDir returns $XDG_CACHE_HOME/sift/.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "sift")
}

// DefaultCachePath returns the default store location for backend.
func DefaultCachePath(backend string) string {
	if strings.EqualFold(backend, "sqlite") {
		return filepath.Join(DataDir(), "sift.db")
	}
	return filepath.Join(DataDir(), "cache")
}

// DefaultHistoryDir returns the default scan history directory.
func DefaultHistoryDir() string {
	return filepath.Join(DataDir(), "history")
}
