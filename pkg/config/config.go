// Package config loads grove-backlog settings from the config file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/mattsolo1/grove-backlog/pkg/remote"
	"github.com/mattsolo1/grove-backlog/pkg/sync"
)

// EnvPrefix prefixes every environment override, e.g. BACKLOG_ORGANIZATION.
const EnvPrefix = "BACKLOG"

// TokenFallbackEnv is read when no token is configured. The Azure CLI
// devops extension uses the same variable.
const TokenFallbackEnv = "AZURE_DEVOPS_EXT_PAT"

// RateLimit configures client-side throttling.
type RateLimit struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// Config is the decoded configuration.
type Config struct {
	Organization     string        `mapstructure:"organization"`
	Project          string        `mapstructure:"project"`
	Token            string        `mapstructure:"token"`
	BaseURL          string        `mapstructure:"base_url"`
	DataDir          string        `mapstructure:"data_dir"`
	BatchSize        int           `mapstructure:"batch_size"`
	ConflictStrategy string        `mapstructure:"conflict_strategy"`
	IncludeComments  bool          `mapstructure:"include_comments"`
	IncludePRs       bool          `mapstructure:"include_prs"`
	Defaults         sync.Defaults `mapstructure:"defaults"`
	RateLimit        RateLimit     `mapstructure:"rate_limit"`
}

// Strategy returns the parsed conflict strategy.
func (c *Config) Strategy() (sync.Strategy, error) {
	return sync.ParseStrategy(c.ConflictStrategy)
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	var problems []string
	if _, err := c.Strategy(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.BatchSize < 1 || c.BatchSize > remote.MaxBatchSize {
		problems = append(problems, fmt.Sprintf("batch_size must be between 1 and %d, got %d", remote.MaxBatchSize, c.BatchSize))
	}
	if c.RateLimit.Requests < 1 {
		problems = append(problems, fmt.Sprintf("rate_limit.requests must be positive, got %d", c.RateLimit.Requests))
	}
	if c.RateLimit.Window <= 0 {
		problems = append(problems, fmt.Sprintf("rate_limit.window must be positive, got %s", c.RateLimit.Window))
	}
	if c.Defaults.Priority < 0 || c.Defaults.Priority > 4 {
		problems = append(problems, fmt.Sprintf("defaults.priority must be between 1 and 4, got %d", c.Defaults.Priority))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ClientOptions returns remote client options for an organization/project.
func (c *Config) ClientOptions(organization, project string) remote.Options {
	return remote.Options{
		Organization: organization,
		Project:      project,
		Token:        c.Token,
		BaseURL:      c.BaseURL,
		BatchSize:    c.BatchSize,
		RateLimit:    c.RateLimit.Requests,
		RateWindow:   c.RateLimit.Window,
	}
}

func defaults() map[string]any {
	home, _ := os.UserHomeDir()
	return map[string]any{
		"organization":            "",
		"project":                 "",
		"token":                   "",
		"base_url":                remote.DefaultBaseURL,
		"data_dir":                filepath.Join(home, ".local", "share", "backlog"),
		"batch_size":              remote.MaxBatchSize,
		"conflict_strategy":       string(sync.StrategyManual),
		"include_comments":        false,
		"include_prs":             false,
		"defaults.area_path":      "",
		"defaults.iteration_path": "",
		"defaults.state":          "",
		"defaults.priority":       0,
		"rate_limit.requests":     remote.DefaultRateLimit,
		"rate_limit.window":       remote.DefaultRateWindow.String(),
	}
}

// Keys lists every known configuration key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(defaults()))
	for k := range defaults() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultPath returns $HOME/.config/backlog/config.yaml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "backlog", "config.yaml")
}

// Loader wraps a viper instance bound to one config file.
type Loader struct {
	v    *viper.Viper
	path string
}

// NewLoader reads the config file at path (DefaultPath when empty) and binds
// environment overrides. A missing file is not an error.
func NewLoader(path string) (*Loader, error) {
	if path == "" {
		path = DefaultPath()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	if err := v.BindEnv("token", EnvPrefix+"_TOKEN", TokenFallbackEnv); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	return &Loader{v: v, path: path}, nil
}

// Path returns the config file the loader reads and writes.
func (l *Loader) Path() string { return l.path }

// Load decodes the effective configuration.
func (l *Loader) Load() (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := l.v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Get returns the effective value of key.
func (l *Loader) Get(key string) (any, error) {
	if _, ok := defaults()[key]; !ok {
		return nil, fmt.Errorf("unknown config key %q", key)
	}
	return l.v.Get(key), nil
}

// Set persists key=value to the config file. Only values stored in the
// file are written back; environment overrides never leak into it.
func (l *Loader) Set(key, value string) error {
	def, ok := defaults()[key]
	if !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	parsed, err := parseValue(key, def, value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	file := viper.New()
	file.SetConfigFile(l.path)
	file.SetConfigType("yaml")
	if err := file.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read config %s: %w", l.path, err)
	}
	file.Set(key, parsed)

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := file.WriteConfigAs(l.path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	l.v.Set(key, parsed)
	return nil
}

func parseValue(key string, def any, value string) (any, error) {
	switch def.(type) {
	case int:
		return strconv.Atoi(value)
	case bool:
		return strconv.ParseBool(value)
	}
	if key == "rate_limit.window" {
		if _, err := time.ParseDuration(value); err != nil {
			return nil, err
		}
	}
	return value, nil
}
