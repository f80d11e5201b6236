// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox performs file operations inside the policy-gated
// sandbox directory. Every operation validates the path through the
// policy engine before touching the filesystem, records accepted
// operations on the audit trail, and reports denials with the
// verdict's reason and nothing else. Raw I/O error text never reaches
// the caller; it could leak paths outside the sandbox.
package sandbox

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/MMI122/RestrictedIDE/lib/audit"
	"github.com/MMI122/RestrictedIDE/lib/clock"
	"github.com/MMI122/RestrictedIDE/lib/engine"
	"github.com/MMI122/RestrictedIDE/lib/policy"
	"github.com/MMI122/RestrictedIDE/lib/rules"
)

// Result is the gated-operation response shape.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Entry describes one directory member in a List result.
type Entry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"isDir"`
	Size  int64  `json:"size"`
}

// Sandbox executes guarded file operations.
type Sandbox struct {
	engine *engine.Engine
	trail  *audit.Trail
	clock  clock.Clock
	logger *slog.Logger
}

// New creates a sandbox bound to the policy engine. trail may be nil.
func New(policyEngine *engine.Engine, trail *audit.Trail, clk clock.Clock, logger *slog.Logger) *Sandbox {
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sandbox{engine: policyEngine, trail: trail, clock: clk, logger: logger}
}

// EnsureRoot creates the sandbox root directory if missing.
func (s *Sandbox) EnsureRoot() error {
	root := s.engine.Policy().FileAccess.SandboxPath
	if root == "" {
		return fmt.Errorf("sandbox root not configured")
	}
	if err := os.MkdirAll(root, 0700); err != nil {
		return fmt.Errorf("creating sandbox root: %w", err)
	}
	return nil
}

// Read returns the contents of path as a string.
func (s *Sandbox) Read(path string) Result {
	if denied, result := s.gate(path, rules.OpRead); denied {
		return result
	}
	path, ok := s.confine(path, rules.OpRead)
	if !ok {
		return Result{Error: "Path outside sandbox"}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return s.ioFailure(path, rules.OpRead, err)
	}
	s.accepted(path, rules.OpRead)
	return Result{Success: true, Data: string(data)}
}

// Write stores content at path, creating parent directories inside
// the sandbox as needed. The size limit is checked before any byte
// is written.
func (s *Sandbox) Write(path string, content []byte) Result {
	if denied, result := s.gate(path, rules.OpWrite); denied {
		return result
	}
	path, ok := s.confine(path, rules.OpWrite)
	if !ok {
		return Result{Error: "Path outside sandbox"}
	}
	if verdict := s.engine.ValidateFileSize(path, int64(len(content))); !verdict.Allowed {
		return Result{Error: verdict.Reason}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return s.ioFailure(path, rules.OpWrite, err)
	}
	if err := os.WriteFile(path, content, 0600); err != nil {
		return s.ioFailure(path, rules.OpWrite, err)
	}
	s.accepted(path, rules.OpWrite)
	return Result{Success: true}
}

// Delete removes the file at path. Deleting a file that is already
// gone succeeds.
func (s *Sandbox) Delete(path string) Result {
	if denied, result := s.gate(path, rules.OpDelete); denied {
		return result
	}
	path, ok := s.confine(path, rules.OpDelete)
	if !ok {
		return Result{Error: "Path outside sandbox"}
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return s.ioFailure(path, rules.OpDelete, err)
	}
	s.accepted(path, rules.OpDelete)
	return Result{Success: true}
}

// List returns the entries of the directory at path, sorted by name.
func (s *Sandbox) List(path string) Result {
	if denied, result := s.gate(path, rules.OpList); denied {
		return result
	}
	path, ok := s.confine(path, rules.OpList)
	if !ok {
		return Result{Error: "Path outside sandbox"}
	}
	members, err := os.ReadDir(path)
	if err != nil {
		return s.ioFailure(path, rules.OpList, err)
	}

	entries := make([]Entry, 0, len(members))
	for _, member := range members {
		entry := Entry{Name: member.Name(), IsDir: member.IsDir()}
		if info, err := member.Info(); err == nil && !member.IsDir() {
			entry.Size = info.Size()
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	s.accepted(path, rules.OpList)
	return Result{Success: true, Data: entries}
}

// gate runs the policy check. The engine already emitted the
// violation and audit record on denial.
func (s *Sandbox) gate(path string, operation rules.Operation) (denied bool, result Result) {
	verdict := s.engine.ValidateFileAccess(path, operation)
	if verdict.Allowed {
		return false, Result{}
	}
	return true, Result{Error: verdict.Reason}
}

// confine maps a validated caller path to the path actually handed to
// the filesystem: trimmed and cleaned, case preserved. Validation
// compares case-folded paths, but this filesystem is case-sensitive,
// so a path that matched the sandbox root only under folding names a
// different directory outside it. The I/O path must sit under an allow
// anchor with exact case. Blacklist mode has no allow anchors and
// skips the check; its folded deny list is strictly more restrictive
// than an exact one.
func (s *Sandbox) confine(path string, operation rules.Operation) (string, bool) {
	cleaned := filepath.Clean(strings.TrimSpace(path))
	access := s.engine.Policy().FileAccess

	var anchors []string
	switch access.Mode {
	case policy.SandboxMode:
		anchors = append([]string{access.SandboxPath}, access.AllowedPaths...)
	case policy.Whitelist:
		anchors = access.AllowedPaths
	default:
		return cleaned, true
	}

	for _, anchor := range anchors {
		anchor = strings.TrimSpace(anchor)
		if anchor == "" {
			continue
		}
		anchor = filepath.Clean(anchor)
		if cleaned == anchor || strings.HasPrefix(cleaned, anchor+string(filepath.Separator)) {
			return cleaned, true
		}
	}

	s.engine.ReportViolation(rules.KindFileAccess, map[string]any{
		"filePath":  cleaned,
		"operation": string(operation),
	}, "Path outside sandbox")
	return cleaned, false
}

func (s *Sandbox) accepted(path string, operation rules.Operation) {
	if s.trail == nil {
		return
	}
	s.trail.Submit(audit.Action(s.clock.Now(), "file_"+string(operation), map[string]any{
		"filePath":  path,
		"operation": string(operation),
		"allowed":   true,
	}, true))
}

// ioFailure maps a filesystem error to a caller-safe response. The
// full error goes to the log, only a generic message to the caller.
func (s *Sandbox) ioFailure(path string, operation rules.Operation, err error) Result {
	s.logger.Error("sandbox file operation failed",
		"operation", string(operation), "path", path, "error", err)
	if s.trail != nil {
		s.trail.Submit(audit.Action(s.clock.Now(), "file_"+string(operation), map[string]any{
			"filePath":  path,
			"operation": string(operation),
			"allowed":   true,
		}, false))
	}
	message := "file operation failed"
	switch {
	case os.IsNotExist(err):
		message = "file not found"
	case os.IsPermission(err):
		message = "permission denied"
	case errors.Is(err, unix.ENOTDIR):
		message = "not a directory"
	}
	return Result{Error: message}
}
