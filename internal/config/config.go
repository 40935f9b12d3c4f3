// Package config loads capstore settings from a YAML file and validates
// them against an embedded CUE schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Config is the full capstore configuration.
type Config struct {
	// MemoryOnlyCacheSize bounds the store when persistence is disabled.
	MemoryOnlyCacheSize int               `yaml:"memory_only_cache_size"`
	Persistence         PersistenceConfig `yaml:"persistence"`
	Logging             LoggingConfig     `yaml:"logging"`
}

type PersistenceConfig struct {
	Enabled             bool          `yaml:"enabled"`
	MemoryCacheSize     int           `yaml:"memory_cache_size"`
	MaxPersistedRecords int           `yaml:"max_persisted_records"`
	RetentionDays       int           `yaml:"retention_days"`
	DatabasePath        string        `yaml:"database_path"`
	CleanupInterval     time.Duration `yaml:"cleanup_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MemoryOnlyCacheSize: 1000,
		Persistence: PersistenceConfig{
			Enabled:             true,
			MemoryCacheSize:     200,
			MaxPersistedRecords: 10000,
			RetentionDays:       7,
			CleanupInterval:     time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Retention returns the retention window as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Persistence.RetentionDays) * 24 * time.Hour
}

// DatabaseFile returns the configured database path, or the default
// location when none is set.
func (c *Config) DatabaseFile() string {
	if c.Persistence.DatabasePath != "" {
		return c.Persistence.DatabasePath
	}
	return DefaultDatabasePath()
}

// DefaultPath is config.yaml under the per-user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "capstore", "config.yaml")
}

// DefaultDatabasePath is captures.db under the per-user data directory.
func DefaultDatabasePath() string {
	return filepath.Join(dataDir(), "capstore", "captures.db")
}

func dataDir() string {
	if d := os.Getenv("XDG_DATA_HOME"); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		if d := os.Getenv("LOCALAPPDATA"); d != "" {
			return d
		}
	case "darwin":
		if err == nil {
			return filepath.Join(home, "Library", "Application Support")
		}
	}
	if err == nil {
		return filepath.Join(home, ".local", "share")
	}
	return os.TempDir()
}

// ValidationError describes the first schema violation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid config: %s", e.Message)
	}
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Message)
}

// document is the shape checked against #Config.
type document struct {
	MemoryOnlyCacheSize int `json:"memory_only_cache_size"`
	Persistence         struct {
		Enabled                bool    `json:"enabled"`
		MemoryCacheSize        int     `json:"memory_cache_size"`
		MaxPersistedRecords    int     `json:"max_persisted_records"`
		RetentionDays          int     `json:"retention_days"`
		DatabasePath           string  `json:"database_path"`
		CleanupIntervalSeconds float64 `json:"cleanup_interval_seconds"`
	} `json:"persistence"`
	Logging struct {
		Level  string `json:"level"`
		Format string `json:"format"`
	} `json:"logging"`
}

func (c *Config) document() document {
	var d document
	d.MemoryOnlyCacheSize = c.MemoryOnlyCacheSize
	d.Persistence.Enabled = c.Persistence.Enabled
	d.Persistence.MemoryCacheSize = c.Persistence.MemoryCacheSize
	d.Persistence.MaxPersistedRecords = c.Persistence.MaxPersistedRecords
	d.Persistence.RetentionDays = c.Persistence.RetentionDays
	d.Persistence.DatabasePath = c.Persistence.DatabasePath
	d.Persistence.CleanupIntervalSeconds = c.Persistence.CleanupInterval.Seconds()
	d.Logging.Level = strings.ToLower(c.Logging.Level)
	d.Logging.Format = strings.ToLower(c.Logging.Format)
	return d
}

// Validate checks c against the embedded schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := def.Unify(ctx.Encode(c.document()))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError reduces a CUE error list to its first entry.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Message: err.Error()}
	}

	first := errs[0]
	path := first.Path()
	if len(path) > 0 && path[0] == "#Config" {
		path = path[1:]
	}
	if len(path) == 0 {
		return &ValidationError{Message: first.Error()}
	}
	format, args := first.Msg()
	return &ValidationError{
		Field:   strings.Join(path, "."),
		Message: fmt.Sprintf(format, args...),
	}
}
