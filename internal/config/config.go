// Package config loads pdatrace settings from a YAML file.
//
// Every field is optional; anything left out keeps its Default value.
// Configuration is read once at startup and not changed afterwards.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full set of settings.
type Config struct {
	Cache  CacheConfig  `yaml:"cache"`
	Batch  BatchConfig  `yaml:"batch"`
	Search SearchConfig `yaml:"search"`
	Store  StoreConfig  `yaml:"store"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// CacheConfig sizes the result cache.
type CacheConfig struct {
	TTL     Duration `yaml:"ttl"`
	MaxSize int      `yaml:"max_size"`
}

// BatchConfig bounds batch runs.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency"`
	MaxItems    int `yaml:"max_items"`
}

// SearchConfig tunes the matcher.
type SearchConfig struct {
	Budget int `yaml:"budget"`

	// PatternsDir optionally names a directory of CUE pattern
	// definitions added to the default library.
	PatternsDir string `yaml:"patterns_dir"`
}

// StoreConfig locates the result database. An empty Path disables
// persistence.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Listen string `yaml:"listen"`

	// RateLimit is requests per second; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// LogConfig sets the log level: debug, info, warn or error.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Cache:  CacheConfig{TTL: Duration(time.Hour), MaxSize: 10_000},
		Batch:  BatchConfig{Concurrency: 8, MaxItems: 1000},
		Search: SearchConfig{Budget: 4096},
		Store:  StoreConfig{Path: "pdatrace.db"},
		Server: ServerConfig{Listen: "127.0.0.1:8080", RateLimit: 50, Burst: 100},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path returns Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL))
	}
	if c.Cache.MaxSize < 1 {
		errs = append(errs, fmt.Errorf("cache.max_size must be at least 1, got %d", c.Cache.MaxSize))
	}
	if c.Batch.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("batch.concurrency must be at least 1, got %d", c.Batch.Concurrency))
	}
	if c.Batch.MaxItems < 1 {
		errs = append(errs, fmt.Errorf("batch.max_items must be at least 1, got %d", c.Batch.MaxItems))
	}
	if c.Search.Budget < 1 {
		errs = append(errs, fmt.Errorf("search.budget must be at least 1, got %d", c.Search.Budget))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit must not be negative, got %v", c.Server.RateLimit))
	}
	if c.Server.RateLimit > 0 && c.Server.Burst < 1 {
		errs = append(errs, fmt.Errorf("server.burst must be at least 1 when rate limiting, got %d", c.Server.Burst))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to its slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level must be debug, info, warn or error, got %q", s)
	}
}

// Duration is a time.Duration written in YAML as "90s", "1h" and so on.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string: %w", node.Line, err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// String renders the duration in time.Duration form.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
