// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package pattern

import (
	"path/filepath"
	"strings"
)

// PrefixList matches filesystem paths against a set of directory
// prefixes. Paths and prefixes are compared after cleaning and
// lower-casing (case-insensitive filesystem assumption; see the
// sandbox package's platform caveat).
type PrefixList struct {
	prefixes []string
}

// NewPrefixList builds a PrefixList from raw path prefixes. Empty
// entries are dropped.
func NewPrefixList(paths []string) *PrefixList {
	list := &PrefixList{}
	for _, path := range paths {
		cleaned := CanonicalPath(path)
		if cleaned == "" {
			continue
		}
		list.prefixes = append(list.prefixes, cleaned)
	}
	return list
}

// CanonicalPath cleans and lower-cases a path for comparison. Returns
// "" for blank input.
func CanonicalPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return ""
	}
	return strings.ToLower(filepath.Clean(trimmed))
}

// Contains reports whether the canonical path sits at or below any
// prefix in the list, and returns the matching prefix. A prefix
// matches only on a path-segment boundary: "/sandbox" contains
// "/sandbox/notes.txt" but not "/sandboxed/notes.txt".
func (l *PrefixList) Contains(canonicalPath string) (prefix string, ok bool) {
	for _, candidate := range l.prefixes {
		if canonicalPath == candidate {
			return candidate, true
		}
		if strings.HasPrefix(canonicalPath, candidate+string(filepath.Separator)) {
			return candidate, true
		}
	}
	return "", false
}

// Empty reports whether the list holds no prefixes.
func (l *PrefixList) Empty() bool { return l == nil || len(l.prefixes) == 0 }
