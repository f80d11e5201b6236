// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kiosk.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefaultsValidate(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoadFileAppliesValues(t *testing.T) {
	path := writeConfig(t, `
environment: production
paths:
  root: /srv/kiosk
  sandbox_root: /srv/kiosk/sandbox
session:
  timeout: 10m
  max_failed_attempts: 3
guard:
  poll_interval: 1s
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Environment != Production {
		t.Errorf("Environment = %s", cfg.Environment)
	}
	if cfg.Paths.Root != "/srv/kiosk" {
		t.Errorf("Root = %s", cfg.Paths.Root)
	}
	timeout, err := cfg.SessionTimeout()
	if err != nil || timeout != 10*time.Minute {
		t.Errorf("SessionTimeout = %v, %v", timeout, err)
	}
	if cfg.Session.MaxFailedAttempts != 3 {
		t.Errorf("MaxFailedAttempts = %d", cfg.Session.MaxFailedAttempts)
	}
	// Unset fields keep their defaults.
	if cfg.Session.LockoutDuration != "15m" {
		t.Errorf("LockoutDuration = %s, want default", cfg.Session.LockoutDuration)
	}
}

func TestEnvironmentOverridesApply(t *testing.T) {
	path := writeConfig(t, `
environment: production
paths:
  root: /srv/kiosk
production:
  guard:
    poll_interval: 500ms
development:
  guard:
    poll_interval: 10s
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	interval, err := cfg.GuardInterval()
	if err != nil || interval != 500*time.Millisecond {
		t.Errorf("GuardInterval = %v, %v; the production section must win", interval, err)
	}
}

func TestVariableExpansion(t *testing.T) {
	path := writeConfig(t, `
paths:
  root: /srv/kiosk
  state: ${KIOSK_ROOT}/db/state.db
  audit_log: ${UNSET_VAR:-/var/log}/audit.jsonl
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Paths.State != "/srv/kiosk/db/state.db" {
		t.Errorf("State = %s", cfg.Paths.State)
	}
	if cfg.Paths.AuditLog != "/var/log/audit.jsonl" {
		t.Errorf("AuditLog = %s", cfg.Paths.AuditLog)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Environment = "staging"
	cfg.Session.Timeout = "soon"
	cfg.Session.MaxFailedAttempts = 0
	cfg.Paths.Socket = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate accepted a broken config")
	}
	for _, want := range []string{"invalid environment", "session.timeout", "max_failed_attempts", "paths.socket"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadRequiresEnvVar(t *testing.T) {
	t.Setenv("KIOSK_CONFIG", "")
	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded without KIOSK_CONFIG")
	}

	path := writeConfig(t, "paths:\n  root: /srv/kiosk\n")
	t.Setenv("KIOSK_CONFIG", path)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Paths.Root != "/srv/kiosk" {
		t.Errorf("Root = %s", cfg.Paths.Root)
	}
}

func TestEnsurePaths(t *testing.T) {
	root := filepath.Join(t.TempDir(), "kiosk")
	cfg := Default()
	cfg.Paths = PathsConfig{
		Root:           root,
		State:          filepath.Join(root, "db", "state.db"),
		AuditLog:       filepath.Join(root, "log", "audit.jsonl"),
		PolicyOverride: filepath.Join(root, "policy", "override.json"),
		SandboxRoot:    filepath.Join(root, "sandbox"),
		Socket:         filepath.Join(root, "run", "kioskd.sock"),
	}
	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths: %v", err)
	}
	for _, directory := range []string{
		filepath.Join(root, "db"),
		filepath.Join(root, "log"),
		filepath.Join(root, "sandbox"),
		filepath.Join(root, "run"),
	} {
		info, err := os.Stat(directory)
		if err != nil || !info.IsDir() {
			t.Errorf("%s not created: %v", directory, err)
		}
	}
}
