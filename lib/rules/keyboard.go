// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"github.com/MMI122/RestrictedIDE/lib/keycombo"
	"github.com/MMI122/RestrictedIDE/lib/policy"
)

// DefaultBlockReason is used when a blocked combo carries no reason
// of its own in the policy file.
const DefaultBlockReason = "Key combination blocked"

// Keyboard evaluates key chords against the keyboard policy section.
// The blocked and allowed sets are pre-normalized at construction so
// EvaluateCombo is a single map lookup — it runs on the input
// interception hot path.
type Keyboard struct {
	mode    policy.Mode
	blocked keycombo.Set
	allowed keycombo.Set
}

// NewKeyboard compiles the keyboard evaluator.
func NewKeyboard(config policy.KeyboardRules) *Keyboard {
	return &Keyboard{
		mode:    config.Mode,
		blocked: keycombo.NewSet(config.Blocked),
		allowed: keycombo.NewSet(config.Allowed),
	}
}

// Evaluate normalizes the key list and evaluates it. An empty chord
// is always allowed: no keys pressed means no action to restrict.
func (r *Keyboard) Evaluate(keys []string) Verdict {
	return r.EvaluateCombo(keycombo.Normalize(keys))
}

// EvaluateCombo evaluates an already-normalized combo. The blocked
// set wins in both modes.
func (r *Keyboard) EvaluateCombo(combo keycombo.Combo) Verdict {
	if combo.IsZero() {
		return Allow()
	}

	if reason, hit := r.blocked.Lookup(combo); hit {
		if reason == "" {
			reason = DefaultBlockReason
		}
		return Deny(reason)
	}

	if r.mode == policy.Whitelist {
		if _, hit := r.allowed.Lookup(combo); hit {
			return Allow()
		}
		return Deny("Key combination not in whitelist")
	}
	return Allow()
}

// BlockedCombos returns the pre-normalized blocked set for direct
// installation into the input interceptor's lookup table.
func (r *Keyboard) BlockedCombos() keycombo.Set {
	return r.blocked
}
