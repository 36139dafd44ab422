// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/termsage/internal/session"
	"github.com/jeranaias/termsage/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete termsage configuration.
type Config struct {
	// Session settings
	ActiveModel      string  `toml:"active_model" json:"active_model" yaml:"active_model"`
	Temperature      float64 `toml:"temperature" json:"temperature" yaml:"temperature"`
	SystemPrompt     string  `toml:"system_prompt" json:"system_prompt" yaml:"system_prompt"`
	HistoryLimit     int     `toml:"history_limit" json:"history_limit" yaml:"history_limit"`
	AutoStartService bool    `toml:"auto_start_service" json:"auto_start_service" yaml:"auto_start_service"`

	// Ollama service configuration
	Service ServiceConfig `toml:"service" json:"service" yaml:"service"`

	// Log file configuration
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Chat archive configuration
	Archive ArchiveConfig `toml:"archive" json:"archive" yaml:"archive"`
}

// ServiceConfig describes how to reach and start the Ollama service.
type ServiceConfig struct {
	// URL is the base URL of the Ollama server
	URL string `toml:"url" json:"url" yaml:"url"`
	// Command and Args start the service when it is not running
	Command string   `toml:"command" json:"command" yaml:"command"`
	Args    []string `toml:"args" json:"args" yaml:"args"`
	// ProcessName is matched against running processes before spawning
	ProcessName string `toml:"process_name" json:"process_name" yaml:"process_name"`
	// StartupTimeoutSecs bounds each readiness wait
	StartupTimeoutSecs int `toml:"startup_timeout_secs" json:"startup_timeout_secs" yaml:"startup_timeout_secs"`
	// PollIntervalMs is the health poll period while waiting for startup
	PollIntervalMs int `toml:"poll_interval_ms" json:"poll_interval_ms" yaml:"poll_interval_ms"`
	// RequestTimeoutSecs bounds non-streaming requests
	RequestTimeoutSecs int `toml:"request_timeout_secs" json:"request_timeout_secs" yaml:"request_timeout_secs"`
}

// LoggingConfig contains log file settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `toml:"level" json:"level" yaml:"level"`
	// File is the log path (empty = ~/.termsage/termsage.log)
	File string `toml:"file" json:"file" yaml:"file"`
}

// ArchiveConfig contains chat archive settings.
type ArchiveConfig struct {
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`
	// Path is the database file (empty = ~/.termsage/chats.db)
	Path string `toml:"path" json:"path" yaml:"path"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		ActiveModel:      "",
		Temperature:      0.7,
		SystemPrompt:     "",
		HistoryLimit:     100,
		AutoStartService: true,

		Service: ServiceConfig{
			URL:                "http://127.0.0.1:11434",
			Command:            "ollama",
			Args:               []string{"serve"},
			ProcessName:        "ollama",
			StartupTimeoutSecs: 30,
			PollIntervalMs:     500,
			RequestTimeoutSecs: 120,
		},

		Logging: LoggingConfig{
			Level: "info",
		},

		Archive: ArchiveConfig{
			Enabled: true,
		},
	}
}

// StartupTimeout returns the readiness wait bound.
func (s ServiceConfig) StartupTimeout() time.Duration {
	return time.Duration(s.StartupTimeoutSecs) * time.Second
}

// PollInterval returns the health poll period.
func (s ServiceConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMs) * time.Millisecond
}

// RequestTimeout returns the non-streaming request bound.
func (s ServiceConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// configFiles lists the file names Load looks for, in order.
var configFiles = []string{"config.toml", "config.json", "config.yaml"}

// ConfigDir returns the termsage configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".termsage"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// FindConfigFile returns the first existing config file in dir, or "".
func FindConfigFile(dir string) string {
	for _, name := range configFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// LogPath returns the configured log file, defaulting into the config dir.
func (c *Config) LogPath() (string, error) {
	return c.pathOrDefault(c.Logging.File, "termsage.log")
}

// ArchivePath returns the configured archive database path.
func (c *Config) ArchivePath() (string, error) {
	return c.pathOrDefault(c.Archive.Path, "chats.db")
}

// HistoryPath returns the line editor history file.
func (c *Config) HistoryPath() (string, error) {
	return c.pathOrDefault("", "history")
}

func (c *Config) pathOrDefault(path, name string) (string, error) {
	if path != "" {
		return expandHome(path), nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}

// ensureSecurePermissions tightens config file permissions to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD ERRORS
// =============================================================================

// LoadError reports a configuration that could not be read or is invalid.
// It is fatal at startup.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// IsLoadError reports whether err is a *LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the first config file found in the config
// directory (TOML, then JSON, then YAML). A missing file yields defaults.
// Environment overrides are applied before validation.
func Load() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, &LoadError{Err: err}
	}

	path := FindConfigFile(dir)
	if path == "" {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, &LoadError{Err: err}
		}
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file. The format is
// chosen by extension; anything that is not .json, .yaml or .yml is TOML.
// Keys absent from the file keep their default values.
func LoadFromPath(path string) (*Config, error) {
	if err := ensureSecurePermissions(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	cfg := Default()
	if err := decode(path, data, cfg); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return cfg, nil
}

// ReadFile returns the defaults overlaid with the file at path, without
// environment overrides or validation. A missing file yields defaults.
func ReadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if err := decode(path, data, cfg); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch formatOf(path) {
	case "json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode JSON: %w", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("failed to decode TOML: %w", err)
		}
	}
	return nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "toml"
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported variables:
//   - TERMSAGE_MODEL: overrides active_model
//   - TERMSAGE_OLLAMA_URL: overrides service.url
//   - TERMSAGE_AUTOSTART: overrides auto_start_service (on/off, true/false, 1/0)
//   - TERMSAGE_LOG_LEVEL: overrides logging.level
func (c *Config) ApplyEnvOverrides() {
	if model := os.Getenv("TERMSAGE_MODEL"); model != "" {
		c.ActiveModel = model
	}

	if u := os.Getenv("TERMSAGE_OLLAMA_URL"); u != "" {
		c.Service.URL = u
	}

	if v := os.Getenv("TERMSAGE_AUTOSTART"); v != "" {
		if enabled, ok := parseBool(v); ok {
			c.AutoStartService = enabled
		}
	}

	if level := os.Getenv("TERMSAGE_LOG_LEVEL"); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes":
		return true, true
	case "off", "no":
		return false, true
	}
	v, err := strconv.ParseBool(s)
	return v, err == nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration and returns all problems at once.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if math.IsNaN(c.Temperature) || c.Temperature < 0 || c.Temperature > 1 {
		errs = append(errs, ValidationError{
			Field:   "temperature",
			Message: fmt.Sprintf("must be between 0.0 and 1.0, got %v", c.Temperature),
		})
	}

	if c.HistoryLimit < 0 {
		errs = append(errs, ValidationError{
			Field:   "history_limit",
			Message: fmt.Sprintf("must be 0 (unlimited) or positive, got %d", c.HistoryLimit),
		})
	}

	if err := validateURL(c.Service.URL); err != nil {
		errs = append(errs, ValidationError{Field: "service.url", Message: err.Error()})
	}

	if strings.TrimSpace(c.Service.Command) == "" {
		errs = append(errs, ValidationError{Field: "service.command", Message: "cannot be empty"})
	}

	if c.Service.StartupTimeoutSecs <= 0 {
		errs = append(errs, ValidationError{
			Field:   "service.startup_timeout_secs",
			Message: fmt.Sprintf("must be positive, got %d", c.Service.StartupTimeoutSecs),
		})
	}

	if c.Service.PollIntervalMs <= 0 {
		errs = append(errs, ValidationError{
			Field:   "service.poll_interval_ms",
			Message: fmt.Sprintf("must be positive, got %d", c.Service.PollIntervalMs),
		})
	}

	if c.Service.RequestTimeoutSecs <= 0 {
		errs = append(errs, ValidationError{
			Field:   "service.request_timeout_secs",
			Message: fmt.Sprintf("must be positive, got %d", c.Service.RequestTimeoutSecs),
		})
	}

	if !slices.Contains(validLogLevels, strings.ToLower(c.Logging.Level)) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: %s", c.Logging.Level, strings.Join(validLogLevels, ", ")),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL '%s': %v", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL '%s': scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL '%s': missing host", raw)
	}
	return nil
}

// =============================================================================
// SESSION SNAPSHOT
// =============================================================================

// Snapshot returns the session settings held by the config.
func (c *Config) Snapshot() session.Snapshot {
	return session.Snapshot{
		ActiveModel:  c.ActiveModel,
		Temperature:  c.Temperature,
		SystemPrompt: c.SystemPrompt,
		HistoryLimit: c.HistoryLimit,
		AutoStart:    c.AutoStartService,
	}
}

// ApplySnapshot copies session settings into the config.
func (c *Config) ApplySnapshot(s session.Snapshot) {
	c.ActiveModel = s.ActiveModel
	c.Temperature = s.Temperature
	c.SystemPrompt = s.SystemPrompt
	c.HistoryLimit = s.HistoryLimit
	c.AutoStartService = s.AutoStart
}

// MergeSnapshot returns saved with every field the user changed since
// start taken from current. Fields still at their start value keep the
// saved one, so flag and environment overrides never reach the file.
func MergeSnapshot(saved, start, current session.Snapshot) session.Snapshot {
	out := saved
	if current.ActiveModel != start.ActiveModel {
		out.ActiveModel = current.ActiveModel
	}
	if current.Temperature != start.Temperature {
		out.Temperature = current.Temperature
	}
	if current.SystemPrompt != start.SystemPrompt {
		out.SystemPrompt = current.SystemPrompt
	}
	if current.HistoryLimit != start.HistoryLimit {
		out.HistoryLimit = current.HistoryLimit
	}
	if current.AutoStart != start.AutoStart {
		out.AutoStart = current.AutoStart
	}
	return out
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Service.Args = slices.Clone(c.Service.Args)
	return &clone
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveSnapshot writes cfg with the session settings from snap to path,
// atomically and with 0600 permissions. cfg itself is not modified.
func SaveSnapshot(path string, cfg *Config, snap session.Snapshot) error {
	out := cfg.Clone()
	out.ApplySnapshot(snap)
	return Save(path, out)
}

// Save writes cfg to path in the format implied by its extension.
func Save(path string, cfg *Config) error {
	data, err := encode(path, cfg)
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func encode(path string, cfg *Config) ([]byte, error) {
	switch formatOf(path) {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
		return append(data, '\n'), nil
	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
		return data, nil
	default:
		var buf bytes.Buffer
		buf.WriteString("# termsage configuration file\n")
		buf.WriteString("# Session settings are rewritten on exit\n\n")
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
		return buf.Bytes(), nil
	}
}

// String returns the config as indented JSON for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
