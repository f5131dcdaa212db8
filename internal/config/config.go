package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rzbill/flowatch/pkg/log"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// DataDir holds the Pebble database. Empty means DefaultDataDir().
	DataDir string `json:"dataDir" yaml:"dataDir"`
	// WorkDir is the directory relative bookmark locations resolve against.
	// Empty means the process working directory.
	WorkDir         string             `json:"workDir" yaml:"workDir"`
	Fsync           string             `json:"fsync" yaml:"fsync"`
	FsyncIntervalMs int                `json:"fsyncIntervalMs" yaml:"fsyncIntervalMs"`
	Bookmark        BookmarkConfig     `json:"bookmark" yaml:"bookmark"`
	Subscription    SubscriptionConfig `json:"subscription" yaml:"subscription"`
	EventLog        EventLogConfig     `json:"eventLog" yaml:"eventLog"`
	FileSource      FileSourceConfig   `json:"fileSource" yaml:"fileSource"`
	Log             log.Config         `json:"log" yaml:"log"`
	// MetricsAddr serves Prometheus metrics when non-empty, e.g. ":9464".
	MetricsAddr string `json:"metricsAddr" yaml:"metricsAddr"`
}

// BookmarkConfig selects the position store.
type BookmarkConfig struct {
	// Backend is "file" or "pebble".
	Backend  string `json:"backend" yaml:"backend"`
	Location string `json:"location" yaml:"location"`
}

// SubscriptionConfig carries subscription defaults.
type SubscriptionConfig struct {
	Tag         string `json:"tag" yaml:"tag"`
	ErrorBuffer int    `json:"errorBuffer" yaml:"errorBuffer"`
}

// EventLogConfig tunes the event log source.
type EventLogConfig struct {
	BatchSize  int `json:"batchSize" yaml:"batchSize"`
	IdleWaitMs int `json:"idleWaitMs" yaml:"idleWaitMs"`
}

// FileSourceConfig tunes the file source.
type FileSourceConfig struct {
	PollIntervalMs int `json:"pollIntervalMs" yaml:"pollIntervalMs"`
}

const (
	BackendFile   = "file"
	BackendPebble = "pebble"
)

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Fsync:           "always",
		FsyncIntervalMs: 5,
		Bookmark: BookmarkConfig{
			Backend:  BackendFile,
			Location: "./flowatch.bookmark",
		},
		Subscription: SubscriptionConfig{
			Tag:         "flowatch",
			ErrorBuffer: 64,
		},
		EventLog: EventLogConfig{
			BatchSize:  256,
			IdleWaitMs: 1000,
		},
		FileSource: FileSourceConfig{PollIntervalMs: 500},
		Log:        log.Config{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate checks enumerations and ranges.
func (c Config) Validate() error {
	switch c.Bookmark.Backend {
	case BackendFile, BackendPebble:
	default:
		return fmt.Errorf("config: bookmark.backend %q; use file|pebble", c.Bookmark.Backend)
	}
	switch strings.ToLower(c.Fsync) {
	case "", "always", "interval", "never":
	default:
		return fmt.Errorf("config: fsync %q; use always|interval|never", c.Fsync)
	}
	if c.Subscription.ErrorBuffer < 0 {
		return fmt.Errorf("config: subscription.errorBuffer must be >= 0")
	}
	if c.WorkDir != "" && !filepath.IsAbs(c.WorkDir) {
		return fmt.Errorf("config: workDir %q must be absolute", c.WorkDir)
	}
	return nil
}

// ResolvedWorkDir returns WorkDir, falling back to the process working directory.
func (c Config) ResolvedWorkDir() (string, error) {
	if c.WorkDir != "" {
		return c.WorkDir, nil
	}
	return os.Getwd()
}

// ResolvedDataDir returns DataDir, falling back to DefaultDataDir().
func (c Config) ResolvedDataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return DefaultDataDir()
}

func (c Config) FsyncInterval() time.Duration {
	return time.Duration(c.FsyncIntervalMs) * time.Millisecond
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.FileSource.PollIntervalMs) * time.Millisecond
}

func (c Config) IdleWait() time.Duration {
	return time.Duration(c.EventLog.IdleWaitMs) * time.Millisecond
}
