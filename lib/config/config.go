// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides runtime configuration loading for the kiosk
// daemon and admin tooling.
//
// Configuration is loaded from a single YAML file specified by:
//   - KIOSK_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
//
// The config file may contain environment-specific sections
// (development, production) that override base values when the
// environment matches.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment. The environment
// decides how enforcement failures are treated: fatal in production,
// a warning in development.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Production is for deployed kiosks.
	Production Environment = "production"
)

// Config is the master configuration for the kiosk.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Paths configures file and directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Session configures admin authentication.
	Session SessionConfig `yaml:"session"`

	// Guard configures the process monitor.
	Guard GuardConfig `yaml:"guard"`

	// Interceptor configures keyboard interception.
	Interceptor InterceptorConfig `yaml:"interceptor"`

	// EnvironmentOverrides contains per-environment overrides,
	// applied after the base config is loaded.
	Development *Overrides `yaml:"development,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains fields that can be overridden per environment.
type Overrides struct {
	Paths       *PathsConfig       `yaml:"paths,omitempty"`
	Session     *SessionConfig     `yaml:"session,omitempty"`
	Guard       *GuardConfig       `yaml:"guard,omitempty"`
	Interceptor *InterceptorConfig `yaml:"interceptor,omitempty"`
}

// PathsConfig configures file and directory locations.
type PathsConfig struct {
	// Root is the base directory for kiosk data.
	Root string `yaml:"root"`

	// State is the SQLite state database (audit trail, admin
	// credential, lockout counters).
	State string `yaml:"state"`

	// AuditLog is the append-only JSONL audit file.
	AuditLog string `yaml:"audit_log"`

	// PolicyDefault is the installed default policy file.
	PolicyDefault string `yaml:"policy_default"`

	// PolicyOverride is the user override policy file, written by
	// admin policy updates.
	PolicyOverride string `yaml:"policy_override"`

	// SandboxRoot is the directory user file operations are
	// confined to.
	SandboxRoot string `yaml:"sandbox_root"`

	// Socket is the Unix socket the daemon serves admin requests on.
	Socket string `yaml:"socket"`
}

// SessionConfig configures admin authentication.
type SessionConfig struct {
	// Timeout is how long an admin login stays valid.
	// Default: 30m
	Timeout string `yaml:"timeout"`

	// MaxFailedAttempts is the consecutive-failure count that
	// triggers a lockout. Default: 5
	MaxFailedAttempts int `yaml:"max_failed_attempts"`

	// LockoutDuration is how long logins are refused after the
	// failure threshold. Default: 15m
	LockoutDuration string `yaml:"lockout_duration"`
}

// GuardConfig configures the process monitor.
type GuardConfig struct {
	// PollInterval is the process table sweep period. Default: 2s
	PollInterval string `yaml:"poll_interval"`
}

// InterceptorConfig configures keyboard interception.
type InterceptorConfig struct {
	// Devices lists the input device nodes to grab. Empty means
	// probe /dev/input for keyboards at startup.
	Devices []string `yaml:"devices"`
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file; they exist to give every
// field a sensible zero-value, not as a substitute for the file.
func Default() *Config {
	defaultRoot := "/var/lib/restricted-ide"
	if os.Geteuid() != 0 {
		homeDir, _ := os.UserHomeDir()
		defaultRoot = filepath.Join(homeDir, ".restricted-ide")
	}

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:           defaultRoot,
			State:          filepath.Join(defaultRoot, "state.db"),
			AuditLog:       filepath.Join(defaultRoot, "audit.jsonl"),
			PolicyDefault:  filepath.Join(defaultRoot, "policy.json"),
			PolicyOverride: filepath.Join(defaultRoot, "policy.override.json"),
			SandboxRoot:    filepath.Join(defaultRoot, "sandbox"),
			Socket:         filepath.Join(defaultRoot, "kioskd.sock"),
		},
		Session: SessionConfig{
			Timeout:           "30m",
			MaxFailedAttempts: 5,
			LockoutDuration:   "15m",
		},
		Guard: GuardConfig{
			PollInterval: "2s",
		},
	}
}

// Load loads configuration from the KIOSK_CONFIG environment
// variable. There are no fallbacks: if KIOSK_CONFIG is not set, this
// fails.
func Load() (*Config, error) {
	configPath := os.Getenv("KIOSK_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("KIOSK_CONFIG environment variable not set; " +
			"set it to the path of your kiosk.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. The config
// file is the single source of truth; environment variables do not
// override config values. The only expansion performed is ${HOME}
// and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

// applyEnvironmentOverrides applies the section matching
// c.Environment. Empty override fields leave the base value alone.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.State != "" {
			c.Paths.State = overrides.Paths.State
		}
		if overrides.Paths.AuditLog != "" {
			c.Paths.AuditLog = overrides.Paths.AuditLog
		}
		if overrides.Paths.PolicyDefault != "" {
			c.Paths.PolicyDefault = overrides.Paths.PolicyDefault
		}
		if overrides.Paths.PolicyOverride != "" {
			c.Paths.PolicyOverride = overrides.Paths.PolicyOverride
		}
		if overrides.Paths.SandboxRoot != "" {
			c.Paths.SandboxRoot = overrides.Paths.SandboxRoot
		}
		if overrides.Paths.Socket != "" {
			c.Paths.Socket = overrides.Paths.Socket
		}
	}

	if overrides.Session != nil {
		if overrides.Session.Timeout != "" {
			c.Session.Timeout = overrides.Session.Timeout
		}
		if overrides.Session.MaxFailedAttempts != 0 {
			c.Session.MaxFailedAttempts = overrides.Session.MaxFailedAttempts
		}
		if overrides.Session.LockoutDuration != "" {
			c.Session.LockoutDuration = overrides.Session.LockoutDuration
		}
	}

	if overrides.Guard != nil {
		if overrides.Guard.PollInterval != "" {
			c.Guard.PollInterval = overrides.Guard.PollInterval
		}
	}

	if overrides.Interceptor != nil {
		if len(overrides.Interceptor.Devices) != 0 {
			c.Interceptor.Devices = overrides.Interceptor.Devices
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"KIOSK_ROOT": c.Paths.Root,
		"HOME":       os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["KIOSK_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Paths.AuditLog = expandVars(c.Paths.AuditLog, vars)
	c.Paths.PolicyDefault = expandVars(c.Paths.PolicyDefault, vars)
	c.Paths.PolicyOverride = expandVars(c.Paths.PolicyOverride, vars)
	c.Paths.SandboxRoot = expandVars(c.Paths.SandboxRoot, vars)
	c.Paths.Socket = expandVars(c.Paths.Socket, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
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

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// SessionTimeout returns the parsed session timeout.
func (c *Config) SessionTimeout() (time.Duration, error) {
	return parseDuration("session.timeout", c.Session.Timeout)
}

// LockoutDuration returns the parsed lockout duration.
func (c *Config) LockoutDuration() (time.Duration, error) {
	return parseDuration("session.lockout_duration", c.Session.LockoutDuration)
}

// GuardInterval returns the parsed process guard poll interval.
func (c *Config) GuardInterval() (time.Duration, error) {
	return parseDuration("guard.poll_interval", c.Guard.PollInterval)
}

func parseDuration(field, value string) (time.Duration, error) {
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", field, value)
	}
	return parsed, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.State == "" {
		errs = append(errs, fmt.Errorf("paths.state is required"))
	}
	if c.Paths.SandboxRoot == "" {
		errs = append(errs, fmt.Errorf("paths.sandbox_root is required"))
	}
	if c.Paths.Socket == "" {
		errs = append(errs, fmt.Errorf("paths.socket is required"))
	}
	if _, err := c.SessionTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.LockoutDuration(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.GuardInterval(); err != nil {
		errs = append(errs, err)
	}
	if c.Session.MaxFailedAttempts < 1 {
		errs = append(errs, fmt.Errorf("session.max_failed_attempts must be at least 1"))
	}

	return errors.Join(errs...)
}

// EnsurePaths creates the directories the daemon writes into.
func (c *Config) EnsurePaths() error {
	directories := []string{
		c.Paths.Root,
		filepath.Dir(c.Paths.State),
		filepath.Dir(c.Paths.AuditLog),
		filepath.Dir(c.Paths.PolicyOverride),
		c.Paths.SandboxRoot,
		filepath.Dir(c.Paths.Socket),
	}
	for _, directory := range directories {
		if directory == "" {
			continue
		}
		if err := os.MkdirAll(directory, 0700); err != nil {
			return fmt.Errorf("creating %s: %w", directory, err)
		}
	}
	return nil
}
