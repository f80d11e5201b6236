// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

// Package keycombo canonicalizes keyboard chords for order-independent
// set membership checks.
//
// A chord arrives from the input layer as a list of key names in
// whatever order the hardware reported them. Normalize folds the list
// into a single canonical string (lower-cased, de-duplicated, sorted,
// "+"-joined) so that ["ctrl","alt","del"] and ["DEL","Ctrl","Alt"]
// produce the same map key. The interception hot path does one map
// lookup per keystroke against a pre-normalized Set, so nothing here
// may allocate beyond the initial normalization.
package keycombo

import (
	"sort"
	"strings"
)

// Combo is the canonical, order-independent encoding of a chord.
// Two chords describing the same physical keys always normalize to
// the same Combo regardless of input order or casing.
type Combo string

// aliases maps common alternate key names onto canonical ones so that
// policy files and input drivers can disagree on spelling.
var aliases = map[string]string{
	"control": "ctrl",
	"command": "meta",
	"cmd":     "meta",
	"win":     "meta",
	"super":   "meta",
	"escape":  "esc",
	"delete":  "del",
	"return":  "enter",
}

// Normalize folds a list of key names into a Combo. Empty names are
// dropped. An empty or all-empty list yields the zero Combo.
func Normalize(keys []string) Combo {
	if len(keys) == 0 {
		return ""
	}

	seen := make(map[string]struct{}, len(keys))
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		name := strings.ToLower(strings.TrimSpace(key))
		if name == "" {
			continue
		}
		if canonical, ok := aliases[name]; ok {
			name = canonical
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return Combo(strings.Join(names, "+"))
}

// Parse normalizes a "+"-separated chord string from a policy file,
// e.g. "Ctrl+Alt+Del".
func Parse(spec string) Combo {
	return Normalize(strings.Split(spec, "+"))
}

// Keys returns the canonical key names of the combo, in sorted order.
// The zero Combo yields nil.
func (c Combo) Keys() []string {
	if c == "" {
		return nil
	}
	return strings.Split(string(c), "+")
}

// IsZero reports whether the combo encodes no keys at all.
func (c Combo) IsZero() bool { return c == "" }

// Set maps normalized combos to the reason they are blocked (or, in
// whitelist mode, an informational label). Built once at configuration
// time; lookups are read-only and safe for concurrent use.
type Set map[Combo]string

// NewSet builds a Set from chord spec strings. Zero combos (empty
// specs) are skipped.
func NewSet(specs map[string]string) Set {
	set := make(Set, len(specs))
	for spec, reason := range specs {
		combo := Parse(spec)
		if combo.IsZero() {
			continue
		}
		set[combo] = reason
	}
	return set
}

// Lookup reports whether the combo is in the set, and the stored
// reason when it is.
func (s Set) Lookup(c Combo) (reason string, ok bool) {
	reason, ok = s[c]
	return reason, ok
}
