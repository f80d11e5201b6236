// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package procguard

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ProcessInfo is one running process as seen at a poll tick. The
// snapshot is discarded after the tick's decisions are applied.
type ProcessInfo struct {
	PID  int
	Name string
	Path string
}

// snapshotProcesses enumerates the processes under root (normally
// /proc). Entries that vanish mid-enumeration are skipped; a poll
// tick racing process exit is expected. Kernel threads, which have
// no exe link, report their comm name and an empty path.
func snapshotProcesses(root string) ([]ProcessInfo, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	processes := make([]ProcessInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}

		comm, err := os.ReadFile(filepath.Join(root, entry.Name(), "comm"))
		if err != nil {
			continue
		}
		name := strings.TrimSpace(string(comm))
		if name == "" {
			continue
		}

		// exe requires same-uid or root; EACCES here just means we
		// fall back to the comm name for rule matching.
		path, err := os.Readlink(filepath.Join(root, entry.Name(), "exe"))
		if err != nil {
			path = ""
		}

		processes = append(processes, ProcessInfo{PID: pid, Name: name, Path: path})
	}
	return processes, nil
}
