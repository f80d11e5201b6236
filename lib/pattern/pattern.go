// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

// Package pattern compiles policy match patterns into fast matchers.
//
// Two shapes are supported:
//
//   - Glob patterns, where "*" matches any run of characters:
//     "https://docs.python.org/*" matches every page under that host.
//   - Raw patterns, marked by a leading "^": treated as an
//     already-anchored regular expression and compiled as written.
//
// Compilation happens once per policy activation; matching is
// allocation-free and safe for concurrent use. All matching is
// case-insensitive, matching the behavior users expect from URLs and
// case-insensitive filesystems.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher is a compiled pattern. Safe for concurrent use.
type Matcher struct {
	source string
	re     *regexp.Regexp
}

// Compile compiles a single glob or raw pattern. An empty pattern is
// an error: a policy entry that matches nothing is a configuration
// mistake, not a silent no-op.
func Compile(glob string) (*Matcher, error) {
	if strings.TrimSpace(glob) == "" {
		return nil, fmt.Errorf("empty pattern")
	}

	var expr string
	if strings.HasPrefix(glob, "^") {
		// Raw pattern: the author anchored it themselves.
		expr = "(?i)" + glob
	} else {
		expr = "(?i)^" + globToRegexp(glob) + "$"
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern %q: %w", glob, err)
	}
	return &Matcher{source: glob, re: re}, nil
}

// globToRegexp escapes regexp metacharacters and rewrites "*" into
// ".*". Anchoring is added by the caller.
func globToRegexp(glob string) string {
	var builder strings.Builder
	for _, part := range strings.Split(glob, "*") {
		if builder.Len() > 0 {
			builder.WriteString(".*")
		}
		builder.WriteString(regexp.QuoteMeta(part))
	}
	return builder.String()
}

// Match reports whether the candidate matches the pattern.
func (m *Matcher) Match(candidate string) bool {
	return m.re.MatchString(candidate)
}

// String returns the original pattern text.
func (m *Matcher) String() string { return m.source }

// List is an ordered collection of compiled matchers.
type List []*Matcher

// CompileList compiles every pattern in specs. Patterns that fail to
// compile are skipped and reported; a policy with one bad pattern
// still enforces the rest (fail-closed decisions are made by the rule
// evaluators, not here).
func CompileList(specs []string) (List, []error) {
	var (
		list List
		errs []error
	)
	for _, spec := range specs {
		matcher, err := Compile(spec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		list = append(list, matcher)
	}
	return list, errs
}

// MatchAny reports whether any pattern in the list matches.
func (l List) MatchAny(candidate string) bool {
	for _, matcher := range l {
		if matcher.Match(candidate) {
			return true
		}
	}
	return false
}
