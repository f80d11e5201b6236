// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunState marks that enforcement is (or was) active. The daemon
// writes it after the native services come up and clears it on clean
// shutdown. A leftover file at startup means the previous run died
// while enforcing, which is worth surfacing: enforcement may have
// been absent between that death and this start.
type RunState struct {
	PID         int       `json:"pid"`
	StartedAt   time.Time `json:"started_at"`
	Environment string    `json:"environment"`
}

// writeRunState atomically writes the run state file: temporary file
// in the same directory, fsync, rename, parent directory sync.
// Readers never see a partial write.
func writeRunState(path string, state RunState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run state: %w", err)
	}
	data = append(data, '\n')

	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating temporary run state file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary run state file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary run state file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary run state file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming run state file into place: %w", err)
	}

	if parent, err := os.Open(filepath.Dir(path)); err == nil {
		parent.Sync()
		parent.Close()
	}
	return nil
}

// checkRunState reads a leftover run state file. ok is false when
// none exists or it is unreadable.
func checkRunState(path string) (state RunState, ok bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunState{}, false
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return RunState{}, false
	}
	return state, true
}

// clearRunState removes the run state file.
func clearRunState(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing run state file: %w", err)
	}
	return nil
}
