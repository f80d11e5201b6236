// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy defines the kiosk policy model: the five rule
// sections, the layered load order, and the merge algorithm that
// folds override layers onto the built-in defaults.
//
// A Policy value is immutable once activated. The engine swaps a new
// value in atomically on update; nothing ever mutates an active
// Policy in place. Override layers are expressed as Overlay values
// (pointer-typed fields so "absent" and "zero" are distinguishable)
// and folded in with Merge.
package policy

// Mode selects how a rule section interprets its lists.
type Mode string

const (
	// Whitelist allows only explicitly listed entries.
	Whitelist Mode = "whitelist"
	// Blacklist allows everything not explicitly listed.
	Blacklist Mode = "blacklist"
	// SandboxMode confines file access to the sandbox root. Valid
	// only for the fileAccess section.
	SandboxMode Mode = "sandbox"
)

// Policy is the full kiosk configuration. Construct via Builtin and
// Merge; treat every reachable value as read-only afterward.
type Policy struct {
	Version     string        `json:"version"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	URLs        URLRules      `json:"urls"`
	Keyboard    KeyboardRules `json:"keyboard"`
	Processes   ProcessRules  `json:"processes"`
	FileAccess  FileAccessRules `json:"fileAccess"`
	Time        TimeRules     `json:"time"`
}

// URLRules configures the URL rule section.
type URLRules struct {
	Mode Mode `json:"mode"`

	// Patterns are glob patterns ("*" wildcard) or raw "^"-prefixed
	// regular expressions, matched case-insensitively against the
	// whole URL.
	Patterns []string `json:"patterns"`
}

// KeyboardRules configures the keyboard rule section. Map keys are
// "+"-separated chord specs ("Ctrl+Alt+Del"); values are the reason
// shown when the chord is blocked (blacklist) or an informational
// label (whitelist).
type KeyboardRules struct {
	Mode    Mode              `json:"mode"`
	Blocked map[string]string `json:"blocked"`
	Allowed map[string]string `json:"allowed"`
}

// ProcessRules configures the process rule section. Entries are bare
// executable names, compared case-insensitively.
type ProcessRules struct {
	Mode    Mode     `json:"mode"`
	Allowed []string `json:"allowed"`
	Blocked []string `json:"blocked"`
}

// FileAccessRules configures the file access rule section.
type FileAccessRules struct {
	Mode Mode `json:"mode"`

	// SandboxPath is the sandbox root directory. Required in sandbox
	// mode: an empty value there fails closed (every operation is
	// denied), never open.
	SandboxPath string `json:"sandboxPath"`

	// AllowedExtensions restricts file extensions (with leading dot,
	// e.g. ".txt"). Empty means no extension restriction.
	AllowedExtensions []string `json:"allowedExtensions"`

	// MaxFileSize is the write size cap in bytes. Zero means no cap.
	MaxFileSize int64 `json:"maxFileSize"`

	// AllowedPaths are prefixes permitted outside the sandbox root
	// (sandbox mode) or the whitelist itself (whitelist mode).
	AllowedPaths []string `json:"allowedPaths"`

	// DeniedPaths are prefixes that always deny, regardless of mode.
	DeniedPaths []string `json:"deniedPaths"`
}

// TimeRules configures the time rule section.
type TimeRules struct {
	Enabled  bool      `json:"enabled"`
	Schedule *Schedule `json:"schedule"`
}

// Schedule restricts usage to certain weekdays and a daily window.
// Both restrictions are independently optional; whichever are present
// must all pass.
type Schedule struct {
	// Days are permitted weekdays, 0 (Sunday) through 6 (Saturday).
	// Empty means every day.
	Days []int `json:"days"`

	// StartTime and EndTime bound the daily window as "HH:MM" in
	// local time. Both empty means no window restriction.
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}
