package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"buildcopy/internal/errors"
	"buildcopy/internal/match"
	"buildcopy/pkg/types"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the configuration is looked up when no path is given.
const DefaultPath = "buildcopy.yaml"

// Config represents the application configuration structure.
// It holds the copy options and logging settings.
type Config struct {
	types.Options `yaml:",inline"`

	Log struct {
		Verbose bool   `yaml:"verbose"` // Enable debug output
		JSON    bool   `yaml:"json"`    // Emit JSON log entries
		File    string `yaml:"file"`    // Also write log entries to this file
	} `yaml:"log"`
}

// LoadConfig loads configuration from DefaultPath in the working directory.
func LoadConfig() (*Config, error) {
	return LoadConfigFile(DefaultPath)
}

// LoadConfigFile loads configuration from a specific file path.
// If the file doesn't exist, returns default configuration.
func LoadConfigFile(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.NewConfigError("error reading config file", path, errors.ConfigUnreadable, err)
	}

	// Fields absent from the file keep their defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewConfigError("error parsing config file", path, errors.InvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Patterns = []types.Pattern{}
	cfg.Interval = 200 * time.Millisecond
	cfg.IgnorePermissionErrors = true
	return cfg
}

// New returns the default configuration.
func New() *Config {
	return defaultConfig()
}

// Sample returns a documented starting configuration for new projects.
func Sample() *Config {
	cfg := defaultConfig()
	cfg.Watch = true
	cfg.Patterns = []types.Pattern{
		{
			From:    types.StringList{"src/locales"},
			To:      types.StringList{"dist/locales"},
			Include: types.StringList{"*.json"},
			Watch:   true,
		},
		{
			From:    types.StringList{"public"},
			To:      types.StringList{"dist"},
			Exclude: types.StringList{".DS_Store", "*.map"},
		},
	}
	return cfg
}

// SaveConfig saves the configuration to the specified file.
// It creates parent directories if they don't exist.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewFileError("failed to create config directory", filepath.Dir(path), errors.FileCreateFailed, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.NewFileError("failed to write config file", path, errors.FileCreateFailed, err)
	}
	return nil
}

// Validate checks if the configuration is valid.
// Source paths are not checked here; a missing source is reported when it
// is copied.
func (c *Config) Validate() error {
	if c == nil {
		return errors.NewConfigError("nil config", "", errors.InvalidConfig, nil)
	}

	if c.Interval < 0 {
		return errors.NewConfigError("interval must not be negative", "interval", errors.InvalidConfig, nil)
	}

	for i, pattern := range c.Patterns {
		param := fmt.Sprintf("patterns[%d]", i)
		// A pattern without sources does nothing
		if len(pattern.From) > 0 && len(pattern.To) == 0 {
			return errors.NewConfigError("at least one destination is required", param+".to", errors.InvalidConfig, nil)
		}
		for _, p := range append(append([]string(nil), pattern.From...), pattern.To...) {
			if strings.TrimSpace(p) == "" {
				return errors.NewConfigError("paths must not be empty", param, errors.InvalidConfig, nil)
			}
		}
		if err := match.Validate(pattern.Filter()); err != nil {
			return errors.NewConfigError("invalid filter", param, errors.InvalidConfig, err)
		}
	}
	return nil
}
