package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/marcelocantos/quash/internal/jobs"
	"github.com/marcelocantos/quash/internal/token"
)

// EnvPath names the environment variable that overrides the config path.
const EnvPath = "QUASH_CONFIG"

// DefaultWatchdogTimeout bounds how long a foreground command may run.
const DefaultWatchdogTimeout = 10 * time.Second

// Config holds the global quash configuration.
type Config struct {
	Watchdog WatchdogConfig `yaml:"watchdog"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Limits   LimitsConfig   `yaml:"limits"`
	Log      LogConfig      `yaml:"log"`
	Audit    AuditConfig    `yaml:"audit"`
	Prompt   PromptConfig   `yaml:"prompt"`
}

// WatchdogConfig controls the foreground timeout.
type WatchdogConfig struct {
	// Timeout is a Go duration string. "0" disables the watchdog; empty or
	// unparsable values fall back to the default.
	Timeout string `yaml:"timeout"`
}

// TimeoutDuration parses the configured timeout or returns the default.
func (w *WatchdogConfig) TimeoutDuration() time.Duration {
	if w.Timeout != "" {
		dur, err := time.ParseDuration(w.Timeout)
		if err == nil && dur >= 0 {
			return dur
		}
	}
	return DefaultWatchdogTimeout
}

// JobsConfig controls background job tracking.
type JobsConfig struct {
	Max int `yaml:"max"`
}

// LimitsConfig bounds a single input line.
type LimitsConfig struct {
	MaxLine int `yaml:"max_line"`
	MaxArgs int `yaml:"max_args"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	Path   string `yaml:"path"`   // empty = stderr
}

// SlogLevel maps Level to a slog level, defaulting to warn.
func (l *LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// AuditConfig controls the job log. An empty path disables it.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// PromptConfig controls prompt rendering.
type PromptConfig struct {
	Color bool `yaml:"color"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Watchdog: WatchdogConfig{Timeout: DefaultWatchdogTimeout.String()},
		Jobs:     JobsConfig{Max: jobs.DefaultCapacity},
		Limits: LimitsConfig{
			MaxLine: token.DefaultMaxLine,
			MaxArgs: token.DefaultMaxArgs,
		},
		Log:    LogConfig{Level: "warn", Format: "text"},
		Prompt: PromptConfig{Color: true},
	}
}

// Load reads the config from $QUASH_CONFIG, or from the standard location
// (~/.config/quash/config.yaml). If the file doesn't exist, returns the
// default config.
func Load() (*Config, error) {
	if path := os.Getenv(EnvPath); path != "" {
		return LoadFrom(path)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(filepath.Join(home, ".config", "quash", "config.yaml"))
}

// LoadFrom reads the config from the given path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Jobs.Max <= 0 {
		cfg.Jobs.Max = jobs.DefaultCapacity
	}
	if cfg.Limits.MaxLine <= 0 {
		cfg.Limits.MaxLine = token.DefaultMaxLine
	}
	if cfg.Limits.MaxArgs <= 0 {
		cfg.Limits.MaxArgs = token.DefaultMaxArgs
	}

	cfg.Audit.Path = expandHome(cfg.Audit.Path)
	cfg.Log.Path = expandHome(cfg.Log.Path)

	return cfg, nil
}

func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, path[1:])
}

// ConfigPath returns the config file path Load would read.
func ConfigPath() string {
	if path := os.Getenv(EnvPath); path != "" {
		return path
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "quash", "config.yaml")
}
