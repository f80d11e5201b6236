// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

// Package rules implements the five policy rule evaluators: URL,
// keyboard, process, file access, and time.
//
// Each evaluator is compiled once from its policy section and is
// immutable afterward, so a single instance is safe to share across
// the enforcement goroutines without locking. Evaluation never blocks
// and never performs I/O — the input interception hot path calls
// straight into these.
//
// Denials are ordinary return values (Verdict), not errors. The one
// precedence rule shared by every evaluator: an explicit deny entry
// always wins, regardless of mode. The single exception is the
// platform system-process set, which outranks even the deny list so a
// misconfigured policy cannot name session-critical processes for
// termination.
package rules

// Verdict is the outcome of one rule evaluation. Reason is always
// populated on denial and empty on a plain allow; informational
// allows (a system process bypassing the process rule) carry a
// reason as well.
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Allow returns a plain allow verdict.
func Allow() Verdict { return Verdict{Allowed: true} }

// AllowBecause returns an allow verdict with an informational reason.
func AllowBecause(reason string) Verdict {
	return Verdict{Allowed: true, Reason: reason}
}

// Deny returns a deny verdict with the given human-readable reason.
func Deny(reason string) Verdict {
	return Verdict{Allowed: false, Reason: reason}
}

// Kind identifies a rule domain. The set is closed: adding a rule
// type means adding a constant here and handling it everywhere the
// compiler reports a missing case.
type Kind int

const (
	KindURL Kind = iota
	KindKeyboard
	KindProcess
	KindFileAccess
	KindTime
)

// String returns the wire name used in violation events and audit
// entries.
func (k Kind) String() string {
	switch k {
	case KindURL:
		return "url"
	case KindKeyboard:
		return "keyboard"
	case KindProcess:
		return "process"
	case KindFileAccess:
		return "fileAccess"
	case KindTime:
		return "time"
	}
	return "unknown"
}
