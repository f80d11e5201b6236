// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"path/filepath"
	"strings"

	"github.com/MMI122/RestrictedIDE/lib/policy"
)

// Process evaluates executable names against the processes policy
// section. Names are compared case-insensitively on the base name, so
// "/usr/bin/Firefox" and "firefox" are the same process.
type Process struct {
	mode    policy.Mode
	allowed map[string]struct{}
	blocked map[string]struct{}

	// system holds the platform's session-critical process names.
	// These are always allowed, even over an explicit block entry:
	// a policy file must not be able to direct the guard at the
	// compositor or the login manager.
	system map[string]struct{}
}

// NewProcess compiles the process evaluator. systemProcesses comes
// from the resolved platform profile, not from the policy.
func NewProcess(config policy.ProcessRules, systemProcesses []string) *Process {
	return &Process{
		mode:    config.Mode,
		allowed: nameSet(config.Allowed),
		blocked: nameSet(config.Blocked),
		system:  nameSet(systemProcesses),
	}
}

// BaseName extracts the lower-cased executable base name from a name
// or full path.
func BaseName(exeNameOrPath string) string {
	return strings.ToLower(filepath.Base(strings.TrimSpace(exeNameOrPath)))
}

// Evaluate checks one executable name or path. Precedence: system
// processes, then the explicit block list, then mode membership.
func (r *Process) Evaluate(exeNameOrPath string) Verdict {
	name := BaseName(exeNameOrPath)
	if name == "" || name == "." {
		return Deny("Invalid process name")
	}

	if _, hit := r.system[name]; hit {
		return AllowBecause("System process")
	}
	if _, hit := r.blocked[name]; hit {
		return Deny("Process blocked: " + name)
	}

	switch r.mode {
	case policy.Whitelist:
		if _, hit := r.allowed[name]; hit {
			return Allow()
		}
		return Deny("Process not in whitelist: " + name)
	case policy.Blacklist:
		return Allow()
	default:
		return Deny("Process rule misconfigured")
	}
}

// ShouldTerminate reports whether the guard should kill a process
// with this name. It is the negation of Evaluate, exposed by name
// because the guard loop reads better with intent spelled out.
func (r *Process) ShouldTerminate(exeNameOrPath string) bool {
	return !r.Evaluate(exeNameOrPath).Allowed
}

func nameSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		normalized := BaseName(name)
		if normalized == "" || normalized == "." {
			continue
		}
		set[normalized] = struct{}{}
	}
	return set
}
