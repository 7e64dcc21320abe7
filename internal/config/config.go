// Package config loads trace-review settings from a JSON or YAML file.
// Every field is optional; Get* accessors supply defaults for omitted values.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the canonical defaults file shipped with the repo.
const DefaultConfigPath = "config/trace-review.defaults.yaml"

// Slot backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Default values used when a field is omitted.
const (
	DefaultListen        = ":8080"
	DefaultBackend       = BackendSQLite
	DefaultDBPath        = "trace-review.db"
	DefaultSlotDir       = "slots"
	DefaultRedisAddr     = "localhost:6379"
	DefaultSlotName      = "annotations"
	DefaultFlushInterval = 30 * time.Second
	DefaultWindowDays    = 30.0
	DefaultExportDir     = "."
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// ReviewConfig is the root configuration.
type ReviewConfig struct {
	// HTTP listen address for serve
	Listen *string `json:"listen,omitempty" yaml:"listen,omitempty"`

	// Durable slot backend: sqlite, file, redis or memory
	Backend     *string `json:"backend,omitempty" yaml:"backend,omitempty"`
	DBPath      *string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	SlotDir     *string `json:"slot_dir,omitempty" yaml:"slot_dir,omitempty"`
	RedisAddr   *string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	RedisDB     *int    `json:"redis_db,omitempty" yaml:"redis_db,omitempty"`
	RedisPrefix *string `json:"redis_prefix,omitempty" yaml:"redis_prefix,omitempty"`
	SlotName    *string `json:"slot_name,omitempty" yaml:"slot_name,omitempty"`

	FlushInterval *string `json:"flush_interval,omitempty" yaml:"flush_interval,omitempty"` // duration string like "30s"

	// Review behaviour
	Shuffle     *bool    `json:"shuffle,omitempty" yaml:"shuffle,omitempty"`
	WeatherPath *string  `json:"weather_path,omitempty" yaml:"weather_path,omitempty"`
	WindowDays  *float64 `json:"window_days,omitempty" yaml:"window_days,omitempty"`
	ExportDir   *string  `json:"export_dir,omitempty" yaml:"export_dir,omitempty"`
}

// Helper functions to create pointers
func ptrString(v string) *string    { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }
func ptrFloat64(v float64) *float64 { return &v }

// DefaultReviewConfig returns a config with every field set to its default.
func DefaultReviewConfig() *ReviewConfig {
	return &ReviewConfig{
		Listen:        ptrString(DefaultListen),
		Backend:       ptrString(DefaultBackend),
		DBPath:        ptrString(DefaultDBPath),
		SlotDir:       ptrString(DefaultSlotDir),
		RedisAddr:     ptrString(DefaultRedisAddr),
		RedisDB:       ptrInt(0),
		RedisPrefix:   ptrString(""),
		SlotName:      ptrString(DefaultSlotName),
		FlushInterval: ptrString(DefaultFlushInterval.String()),
		Shuffle:       ptrBool(false),
		WeatherPath:   ptrString(""),
		WindowDays:    ptrFloat64(DefaultWindowDays),
		ExportDir:     ptrString(DefaultExportDir),
	}
}

// LoadConfig reads a config file. The format follows the extension: .json,
// .yaml or .yml. Fields omitted from the file keep their defaults through the
// Get* accessors, so partial configs are safe.
func LoadConfig(path string) (*ReviewConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data, ext)
}

// ParseConfig decodes data in the format named by ext and validates it.
func ParseConfig(data []byte, ext string) (*ReviewConfig, error) {
	cfg := &ReviewConfig{}
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *ReviewConfig) Validate() error {
	if c.Backend != nil {
		switch *c.Backend {
		case BackendSQLite, BackendFile, BackendRedis, BackendMemory:
		default:
			return fmt.Errorf("backend must be one of sqlite, file, redis, memory; got %q", *c.Backend)
		}
	}

	if c.FlushInterval != nil && *c.FlushInterval != "" {
		d, err := time.ParseDuration(*c.FlushInterval)
		if err != nil {
			return fmt.Errorf("invalid flush_interval '%s': %w", *c.FlushInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("flush_interval must be positive, got %s", d)
		}
	}

	if c.RedisDB != nil && *c.RedisDB < 0 {
		return fmt.Errorf("redis_db must be non-negative, got %d", *c.RedisDB)
	}

	if c.WindowDays != nil && *c.WindowDays <= 0 {
		return fmt.Errorf("window_days must be positive, got %f", *c.WindowDays)
	}

	if c.SlotName != nil && strings.TrimSpace(*c.SlotName) == "" {
		return fmt.Errorf("slot_name cannot be blank")
	}

	return nil
}

func stringOr(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

// GetListen returns the listen address or the default.
func (c *ReviewConfig) GetListen() string { return stringOr(c.Listen, DefaultListen) }

// GetBackend returns the slot backend or the default.
func (c *ReviewConfig) GetBackend() string { return stringOr(c.Backend, DefaultBackend) }

// GetDBPath returns the SQLite database path or the default.
func (c *ReviewConfig) GetDBPath() string { return stringOr(c.DBPath, DefaultDBPath) }

// GetSlotDir returns the file backend directory or the default.
func (c *ReviewConfig) GetSlotDir() string { return stringOr(c.SlotDir, DefaultSlotDir) }

// GetRedisAddr returns the Redis address or the default.
func (c *ReviewConfig) GetRedisAddr() string { return stringOr(c.RedisAddr, DefaultRedisAddr) }

// GetRedisDB returns the Redis database number.
func (c *ReviewConfig) GetRedisDB() int {
	if c.RedisDB == nil {
		return 0
	}
	return *c.RedisDB
}

// GetRedisPrefix returns the Redis key prefix; empty means the backend default.
func (c *ReviewConfig) GetRedisPrefix() string { return stringOr(c.RedisPrefix, "") }

// GetSlotName returns the well-known slot name or the default.
func (c *ReviewConfig) GetSlotName() string { return stringOr(c.SlotName, DefaultSlotName) }

// GetFlushInterval parses and returns the FlushInterval as a time.Duration.
func (c *ReviewConfig) GetFlushInterval() time.Duration {
	if c.FlushInterval == nil || *c.FlushInterval == "" {
		return DefaultFlushInterval
	}
	d, err := time.ParseDuration(*c.FlushInterval)
	if err != nil || d <= 0 {
		return DefaultFlushInterval
	}
	return d
}

// GetShuffle reports whether loaded batches are shuffled.
func (c *ReviewConfig) GetShuffle() bool {
	if c.Shuffle == nil {
		return false
	}
	return *c.Shuffle
}

// GetWeatherPath returns the precipitation file path; empty disables it.
func (c *ReviewConfig) GetWeatherPath() string { return stringOr(c.WeatherPath, "") }

// GetWindowDays returns the precipitation window length in days.
func (c *ReviewConfig) GetWindowDays() float64 {
	if c.WindowDays == nil || *c.WindowDays <= 0 {
		return DefaultWindowDays
	}
	return *c.WindowDays
}

// GetExportDir returns the directory exports are written to.
func (c *ReviewConfig) GetExportDir() string { return stringOr(c.ExportDir, DefaultExportDir) }
