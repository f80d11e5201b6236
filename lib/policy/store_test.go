// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStoreLoadLayering(t *testing.T) {
	directory := t.TempDir()
	defaultPath := filepath.Join(directory, "policy.default.json")
	overridePath := filepath.Join(directory, "policy.override.json")

	// The installed default layer carries comments and a placeholder
	// sandboxPath that must not clobber anything.
	defaultLayer := `{
		// shipped with the application
		"name": "classroom",
		"urls": {"mode": "whitelist", "patterns": ["https://docs.python.org/*"]},
		"fileAccess": {"sandboxPath": ""},
	}`
	if err := os.WriteFile(defaultPath, []byte(defaultLayer), 0600); err != nil {
		t.Fatalf("writing default layer: %v", err)
	}

	overrideLayer := `{"fileAccess": {"sandboxPath": "/home/kiosk/sandbox"}}`
	if err := os.WriteFile(overridePath, []byte(overrideLayer), 0600); err != nil {
		t.Fatalf("writing override layer: %v", err)
	}

	store := &Store{DefaultPath: defaultPath, OverridePath: overridePath}
	active, override := store.Load()

	if active.Name != "classroom" {
		t.Errorf("name = %q, want classroom", active.Name)
	}
	if len(active.URLs.Patterns) != 1 {
		t.Errorf("patterns = %v, want the default layer's pattern", active.URLs.Patterns)
	}
	if active.FileAccess.SandboxPath != "/home/kiosk/sandbox" {
		t.Errorf("sandboxPath = %q, want override value", active.FileAccess.SandboxPath)
	}
	if override == nil {
		t.Fatal("override layer should be returned for later update merges")
	}
}

func TestStoreLoadCorruptLayerFallsBack(t *testing.T) {
	directory := t.TempDir()
	defaultPath := filepath.Join(directory, "policy.default.json")
	if err := os.WriteFile(defaultPath, []byte("{not json at all"), 0600); err != nil {
		t.Fatalf("writing corrupt layer: %v", err)
	}

	store := &Store{DefaultPath: defaultPath}
	active, _ := store.Load()

	// Corrupt layer skipped; built-in defaults survive.
	if active.Name != "builtin" {
		t.Errorf("name = %q, want builtin fallback", active.Name)
	}
	if active.URLs.Mode != Whitelist {
		t.Errorf("urls.mode = %q, want restrictive builtin whitelist", active.URLs.Mode)
	}
}

func TestStoreLoadInvalidLayerSkipped(t *testing.T) {
	directory := t.TempDir()
	defaultPath := filepath.Join(directory, "policy.default.json")
	invalid := `{"time": {"schedule": {"days": [9]}}}`
	if err := os.WriteFile(defaultPath, []byte(invalid), 0600); err != nil {
		t.Fatalf("writing invalid layer: %v", err)
	}

	store := &Store{DefaultPath: defaultPath}
	active, _ := store.Load()
	if active.Time.Schedule != nil {
		t.Error("invalid layer should be skipped whole")
	}
}

func TestStoreSaveOverrideRoundTrip(t *testing.T) {
	directory := t.TempDir()
	store := &Store{OverridePath: filepath.Join(directory, "nested", "policy.override.json")}

	overlay := &Overlay{
		FileAccess: &FileAccessOverlay{SandboxPath: stringPointer("/sandbox")},
	}
	if err := store.SaveOverride(overlay); err != nil {
		t.Fatalf("SaveOverride: %v", err)
	}

	_, loaded := store.Load()
	if loaded == nil || loaded.FileAccess == nil || loaded.FileAccess.SandboxPath == nil {
		t.Fatal("override did not round-trip")
	}
	if *loaded.FileAccess.SandboxPath != "/sandbox" {
		t.Errorf("sandboxPath = %q, want /sandbox", *loaded.FileAccess.SandboxPath)
	}

	info, err := os.Stat(store.OverridePath)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("permissions = %04o, want 0600", info.Mode().Perm())
	}
}

func TestValidateRejectsBadFragments(t *testing.T) {
	tests := []struct {
		name    string
		overlay *Overlay
	}{
		{"nil fragment", nil},
		{"unknown url mode", &Overlay{URLs: &URLOverlay{Mode: modePointer("greylist")}}},
		{"sandbox mode on urls", &Overlay{URLs: &URLOverlay{Mode: modePointer(SandboxMode)}}},
		{"negative size", &Overlay{FileAccess: &FileAccessOverlay{MaxFileSize: int64Pointer(-1)}}},
		{"day out of range", &Overlay{Time: &TimeOverlay{Schedule: &ScheduleOverlay{Days: []int{7}}}}},
		{"malformed time", &Overlay{Time: &TimeOverlay{Schedule: &ScheduleOverlay{StartTime: stringPointer("25:99")}}}},
	}
	for _, test := range tests {
		if err := Validate(test.overlay); err == nil {
			t.Errorf("%s: Validate accepted, want error", test.name)
		}
	}

	valid := &Overlay{
		Processes: &ProcessOverlay{Mode: modePointer(Blacklist), Blocked: []string{"cmd.exe"}},
		Time: &TimeOverlay{Schedule: &ScheduleOverlay{
			Days: []int{1, 5}, StartTime: stringPointer("09:00"), EndTime: stringPointer("17:00"),
		}},
	}
	if err := Validate(valid); err != nil {
		t.Errorf("Validate rejected a valid fragment: %v", err)
	}
}
