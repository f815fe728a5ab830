// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package config loads wastectl settings.
//
// Sources are layered, later ones win:
//   - built-in defaults
//   - yaml file (~/.wastectl/config.yaml, or --config)
//   - .env and .env.local in the working directory
//   - WASTECTL_* environment variables
//   - command-line flags (applied by the caller)
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "WASTECTL_"

// Autocomplete empty-query policies.
const (
	EmptySuppress = "suppress"
	EmptyQuery    = "query"
)

// Config is the resolved client configuration.
type Config struct {
	BaseURL   string        `yaml:"base_url" env:"BASE_URL" validate:"required,url"`
	SessionID string        `yaml:"session_id" env:"SESSION_ID"`
	CSRFToken string        `yaml:"csrf_token" env:"CSRF_TOKEN"`
	Timeout   time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT" validate:"gt=0"`

	Import       ImportConfig       `yaml:"import" envPrefix:"IMPORT_"`
	Autocomplete AutocompleteConfig `yaml:"autocomplete" envPrefix:"AUTOCOMPLETE_"`
	UI           UIConfig           `yaml:"ui" envPrefix:"UI_"`

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" validate:"oneof=silent error warn info debug"`
	LogDir   string `yaml:"log_dir" env:"LOG_DIR" validate:"required"`

	// Path is the yaml file that was read, empty when none was found.
	Path string `yaml:"-" env:"-"`
}

// ImportConfig bounds what the import wizard accepts before upload.
type ImportConfig struct {
	MaxBytes          int64    `yaml:"max_bytes" env:"MAX_BYTES" validate:"gt=0"`
	AllowedExtensions []string `yaml:"allowed_extensions" env:"ALLOWED_EXTENSIONS" validate:"min=1,dive,startswith=."`
	// SuccessCloseDelay is how long the result stays up before the wizard closes.
	SuccessCloseDelay time.Duration `yaml:"success_close_delay" env:"SUCCESS_CLOSE_DELAY" validate:"gte=0"`
}

// AutocompleteConfig tunes filter suggestions.
type AutocompleteConfig struct {
	Debounce    time.Duration `yaml:"debounce" env:"DEBOUNCE" validate:"gte=0"`
	EmptyPolicy string        `yaml:"empty_policy" env:"EMPTY_POLICY" validate:"oneof=suppress query"`
}

// UIConfig holds notification and progress timings.
type UIConfig struct {
	NotifyDuration time.Duration `yaml:"notify_duration" env:"NOTIFY_DURATION" validate:"gt=0"`
	ProgressTick   time.Duration `yaml:"progress_tick" env:"PROGRESS_TICK" validate:"gt=0"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL: "http://127.0.0.1:8000",
		Timeout: 30 * time.Second,
		Import: ImportConfig{
			MaxBytes:          5 << 20,
			AllowedExtensions: []string{".csv"},
			SuccessCloseDelay: 1500 * time.Millisecond,
		},
		Autocomplete: AutocompleteConfig{
			Debounce:    300 * time.Millisecond,
			EmptyPolicy: EmptySuppress,
		},
		UI: UIConfig{
			NotifyDuration: 3 * time.Second,
			ProgressTick:   200 * time.Millisecond,
		},
		LogLevel: "info",
		LogDir:   filepath.Join(".wastectl", "logs"),
	}
}

// DefaultPath is ~/.wastectl/config.yaml, or empty if there is no home.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".wastectl", "config.yaml")
}

// LoadEnv loads the env files that exist and reports how many were found.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load resolves the configuration. An explicit path must exist; the default
// path is optional.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
			cfg.Path = path
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if _, err := LoadEnv([]string{".env", ".env.local"}); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	for i, ext := range c.Import.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Import.AllowedExtensions[i] = ext
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration after flags have been applied.
func (c *Config) Validate() error {
	c.normalize()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Allows reports whether ext (with dot, any case) is on the upload allow-list.
func (c *Config) Allows(ext string) bool {
	ext = strings.ToLower(ext)
	for _, a := range c.Import.AllowedExtensions {
		if a == ext {
			return true
		}
	}
	return false
}

// LogrusLevel maps LogLevel onto logrus.
func (c *Config) LogrusLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}
