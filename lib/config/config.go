// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable Load reads the config path from.
const EnvironmentVariable = "PARLEY_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local use.
	Development Environment = "development"
	// Production is for long-running followers.
	Production Environment = "production"
)

// Snapshot backends.
const (
	BackendFile   = "file"
	BackendPebble = "pebble"
	BackendSQLite = "sqlite"
)

// Config is the master configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	// StateDir is the base directory for persisted state. Other path
	// fields may refer to it as ${PARLEY_STATE}.
	StateDir string `yaml:"state_dir"`

	Log        LogConfig        `yaml:"log"`
	Homeserver HomeserverConfig `yaml:"homeserver"`
	Sync       SyncConfig       `yaml:"sync"`
	Stash      StashConfig      `yaml:"stash"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
	Metrics    MetricsConfig    `yaml:"metrics"`

	// Per-environment overrides, applied after the base config.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Log      *LogConfig      `yaml:"log,omitempty"`
	Snapshot *SnapshotConfig `yaml:"snapshot,omitempty"`
	Metrics  *MetricsConfig  `yaml:"metrics,omitempty"`
}

// LogConfig configures the command logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is "auto" (text on a terminal, JSON otherwise), "text"
	// or "json".
	Format string `yaml:"format"`
}

// HomeserverConfig locates the Matrix homeserver and credentials.
type HomeserverConfig struct {
	// URL is the homeserver base URL. Empty disables live sync.
	URL string `yaml:"url"`
	// UserID is the account the access token belongs to.
	UserID string `yaml:"user_id"`
	// AccessTokenFile holds the access token on its first line. "-"
	// reads stdin.
	AccessTokenFile string `yaml:"access_token_file"`
}

// SyncConfig configures /sync.
type SyncConfig struct {
	// TimelineLimit caps timeline events per room per response.
	TimelineLimit int `yaml:"timeline_limit"`
	// LongPollTimeout is the server-side hold time, e.g. "30s".
	LongPollTimeout string `yaml:"long_poll_timeout"`
	// Rooms restricts the sync to these room IDs. Empty means all
	// joined rooms.
	Rooms []string `yaml:"rooms"`
}

// StashConfig bounds modifiers waiting for their target. Zero values
// mean unbounded.
type StashConfig struct {
	// TTL is how long a modifier may wait, e.g. "24h". Empty means
	// forever.
	TTL          string `yaml:"ttl"`
	MaxPerTarget int    `yaml:"max_per_target"`
	MaxTotal     int    `yaml:"max_total"`
}

// SnapshotConfig configures room snapshot persistence.
type SnapshotConfig struct {
	// Backend is file, pebble or sqlite. Empty disables persistence.
	Backend string `yaml:"backend"`
	// Path is the directory (file, pebble) or database file (sqlite).
	Path string `yaml:"path"`
	// Compression is none, lz4 or zstd.
	Compression string `yaml:"compression"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address to serve /metrics on. Empty disables it.
	Listen string `yaml:"listen"`
}

// Default returns the default configuration. Defaults exist so every
// field has a sensible value; they are not a fallback for a missing
// config file.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	stateDir := filepath.Join(homeDir, ".local", "state", "parley")

	return &Config{
		Environment: Development,
		StateDir:    stateDir,
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Sync: SyncConfig{
			TimelineLimit:   50,
			LongPollTimeout: "30s",
		},
		Snapshot: SnapshotConfig{
			Backend:     BackendFile,
			Path:        filepath.Join(stateDir, "snapshots"),
			Compression: "zstd",
		},
	}
}

// Load loads configuration from the PARLEY_CONFIG environment
// variable. There is no fallback: if it is not set, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your parley.yaml config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, applies the
// environment overrides and expands path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &ConfigOverrides{Log: &LogConfig{Level: "info", Format: "json"}}
		}
	}
	if overrides == nil {
		return
	}

	if overrides.Log != nil {
		if overrides.Log.Level != "" {
			c.Log.Level = overrides.Log.Level
		}
		if overrides.Log.Format != "" {
			c.Log.Format = overrides.Log.Format
		}
	}
	if overrides.Snapshot != nil {
		if overrides.Snapshot.Backend != "" {
			c.Snapshot.Backend = overrides.Snapshot.Backend
		}
		if overrides.Snapshot.Path != "" {
			c.Snapshot.Path = overrides.Snapshot.Path
		}
		if overrides.Snapshot.Compression != "" {
			c.Snapshot.Compression = overrides.Snapshot.Compression
		}
	}
	if overrides.Metrics != nil && overrides.Metrics.Listen != "" {
		c.Metrics.Listen = overrides.Metrics.Listen
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"PARLEY_STATE": c.StateDir,
		"HOME":         os.Getenv("HOME"),
	}
	c.StateDir = expandVars(c.StateDir, vars)
	vars["PARLEY_STATE"] = c.StateDir

	c.Snapshot.Path = expandVars(c.Snapshot.Path, vars)
	c.Homeserver.AccessTokenFile = expandVars(c.Homeserver.AccessTokenFile, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		// Provided vars first, then the environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if formats := []string{"auto", "text", "json"}; !slices.Contains(formats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", formats))
	}

	if c.Homeserver.URL != "" {
		parsed, err := url.Parse(c.Homeserver.URL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			errs = append(errs, fmt.Errorf("homeserver.url must be an http or https URL: %q", c.Homeserver.URL))
		}
		if c.Homeserver.UserID == "" {
			errs = append(errs, fmt.Errorf("homeserver.user_id is required with homeserver.url"))
		}
		if c.Homeserver.AccessTokenFile == "" {
			errs = append(errs, fmt.Errorf("homeserver.access_token_file is required with homeserver.url"))
		}
	}

	if c.Sync.TimelineLimit < 0 {
		errs = append(errs, fmt.Errorf("sync.timeline_limit must not be negative"))
	}
	if _, err := parseDuration("sync.long_poll_timeout", c.Sync.LongPollTimeout); err != nil {
		errs = append(errs, err)
	}

	if _, err := parseDuration("stash.ttl", c.Stash.TTL); err != nil {
		errs = append(errs, err)
	}
	if c.Stash.MaxPerTarget < 0 || c.Stash.MaxTotal < 0 {
		errs = append(errs, fmt.Errorf("stash limits must not be negative"))
	}

	backends := []string{"", BackendFile, BackendPebble, BackendSQLite}
	if !slices.Contains(backends, c.Snapshot.Backend) {
		errs = append(errs, fmt.Errorf("snapshot.backend must be one of: %v", backends[1:]))
	}
	if c.Snapshot.Backend != "" && c.Snapshot.Path == "" {
		errs = append(errs, fmt.Errorf("snapshot.path is required with snapshot.backend"))
	}
	if compressions := []string{"none", "lz4", "zstd"}; !slices.Contains(compressions, c.Snapshot.Compression) {
		errs = append(errs, fmt.Errorf("snapshot.compression must be one of: %v", compressions))
	}

	return errors.Join(errs...)
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// LongPollDuration returns the parsed long-poll timeout. Call Validate
// first; an invalid value yields zero.
func (s SyncConfig) LongPollDuration() time.Duration {
	duration, _ := parseDuration("", s.LongPollTimeout)
	return duration
}

// TTLDuration returns the parsed stash TTL, zero when unset. Call
// Validate first; an invalid value yields zero.
func (s StashConfig) TTLDuration() time.Duration {
	duration, _ := parseDuration("", s.TTL)
	return duration
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if duration < 0 {
		return 0, fmt.Errorf("%s must not be negative", field)
	}
	return duration, nil
}

// EnsureStateDir creates StateDir, and the snapshot directory for the
// file and pebble backends.
func (c *Config) EnsureStateDir() error {
	paths := []string{c.StateDir}
	switch c.Snapshot.Backend {
	case BackendFile:
		paths = append(paths, c.Snapshot.Path)
	case BackendSQLite:
		paths = append(paths, filepath.Dir(c.Snapshot.Path))
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
