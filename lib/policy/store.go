// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Store loads and persists the layered policy. Layer order, weakest
// first:
//
//	built-in defaults < installed default file < user override file
//
// The installed default file ships with the application and is never
// written by the store. Runtime policy updates persist to the user
// override file only.
type Store struct {
	// DefaultPath is the installed default policy file. Optional: a
	// missing file is skipped silently.
	DefaultPath string

	// OverridePath is the user override policy file. Optional on
	// load; created on first SaveOverride.
	OverridePath string

	// Logger receives load diagnostics. A corrupt layer is logged and
	// skipped — the kiosk keeps running on the layers it could read.
	Logger *slog.Logger
}

// Load reads all layers and returns the merged active policy along
// with the user override layer (for subsequent update merges; nil
// when no override file exists). Corrupt or unreadable layers are
// logged and skipped rather than failing the load: losing a layer
// degrades toward the restrictive built-in defaults, which is the
// fail-closed direction.
func (s *Store) Load() (Policy, *Overlay) {
	merged := Builtin()

	if layer := s.loadLayer(s.DefaultPath, "default"); layer != nil {
		merged = Merge(merged, layer)
	}

	override := s.loadLayer(s.OverridePath, "override")
	if override != nil {
		merged = Merge(merged, override)
	}

	return merged, override
}

// loadLayer reads and parses one policy file. Returns nil when the
// path is unset, the file is missing, or the content is invalid.
func (s *Store) loadLayer(path, name string) *Overlay {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger().Warn("policy layer unreadable, skipping",
				"layer", name, "path", path, "error", err)
		}
		return nil
	}

	overlay, err := ParseOverlay(data)
	if err != nil {
		s.logger().Warn("policy layer corrupt, skipping",
			"layer", name, "path", path, "error", err)
		return nil
	}
	if err := Validate(overlay); err != nil {
		s.logger().Warn("policy layer invalid, skipping",
			"layer", name, "path", path, "error", err)
		return nil
	}
	return overlay
}

// SaveOverride atomically writes the user override layer: the file is
// written to a temporary path in the same directory, fsynced, and
// renamed into place so a crash mid-write never leaves a truncated
// policy file.
func (s *Store) SaveOverride(overlay *Overlay) error {
	if s.OverridePath == "" {
		return fmt.Errorf("no override path configured")
	}

	data, err := json.MarshalIndent(overlay, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling policy override: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(s.OverridePath), 0700); err != nil {
		return fmt.Errorf("creating policy directory: %w", err)
	}

	temporaryPath := s.OverridePath + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating temporary policy file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary policy file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary policy file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary policy file: %w", err)
	}
	if err := os.Rename(temporaryPath, s.OverridePath); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming policy file into place: %w", err)
	}
	return nil
}

func (s *Store) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.DiscardHandler)
}
