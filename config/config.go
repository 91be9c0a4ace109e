// Package config handles covariant.toml session configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"

	"github.com/chazu/covariant/export"

	_ "github.com/tliron/commonlog/simple"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "covariant.toml"

// Config represents a covariant.toml file.
type Config struct {
	Cache CacheConfig `toml:"cache"`
	Eval  EvalConfig  `toml:"eval"`
	Log   LogConfig   `toml:"log"`

	// Dir is the directory containing the covariant.toml file (set at load time).
	Dir string `toml:"-"`
}

// CacheConfig sizes the result cache.
type CacheConfig struct {
	Capacity int    `toml:"capacity"` // 0 means unbounded
	Persist  string `toml:"persist"`  // SQLite file for the persistent tier
}

// EvalConfig sets export defaults.
type EvalConfig struct {
	Tolerance  float64 `toml:"tolerance"`
	ThreadMode string  `toml:"thread-mode"`
}

// LogConfig configures the commonlog backend.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	Path      string `toml:"path"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Eval.Tolerance == 0 {
		c.Eval.Tolerance = export.Standard.Tolerance()
	}
	if c.Eval.ThreadMode == "" {
		c.Eval.ThreadMode = export.ThreadNone.String()
	}
}

// Load parses covariant.toml from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

// FindAndLoad walks up from startDir to find a covariant.toml file, then
// loads it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Cache.Capacity < 0 {
		return fmt.Errorf("cache.capacity must not be negative, got %d", c.Cache.Capacity)
	}
	if c.Eval.Tolerance <= 0 {
		return fmt.Errorf("eval.tolerance must be positive, got %g", c.Eval.Tolerance)
	}
	if _, err := export.ParseThreadMode(c.Eval.ThreadMode); err != nil {
		return fmt.Errorf("eval.thread-mode: %w", err)
	}
	return nil
}

// PersistPath returns the absolute path of the persistent cache file, or
// "" when persistence is off. Relative paths are taken from Dir.
func (c *Config) PersistPath() string {
	if c.Cache.Persist == "" {
		return ""
	}
	if filepath.IsAbs(c.Cache.Persist) || c.Dir == "" {
		return c.Cache.Persist
	}
	return filepath.Join(c.Dir, c.Cache.Persist)
}

// Quality returns the export tessellation quality.
func (c *Config) Quality() export.Quality {
	return export.Quality(c.Eval.Tolerance)
}

// ThreadMode returns the configured export thread mode.
func (c *Config) ThreadMode() export.ThreadMode {
	m, err := export.ParseThreadMode(c.Eval.ThreadMode)
	if err != nil {
		return export.ThreadNone
	}
	return m
}

// ConfigureLogging applies the [log] section to the commonlog backend.
// An empty path logs to stderr.
func ConfigureLogging(l LogConfig) {
	var path *string
	if l.Path != "" {
		path = &l.Path
	}
	commonlog.Configure(l.Verbosity, path)
}
