// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"log/slog"
	"net/url"

	"github.com/MMI122/RestrictedIDE/lib/pattern"
	"github.com/MMI122/RestrictedIDE/lib/policy"
)

// URL evaluates candidate URLs against the urls policy section.
type URL struct {
	mode     policy.Mode
	patterns pattern.List
}

// NewURL compiles the URL evaluator. Patterns that fail to compile
// are logged and skipped; the remaining patterns still enforce.
func NewURL(config policy.URLRules, logger *slog.Logger) *URL {
	patterns, errs := pattern.CompileList(config.Patterns)
	for _, err := range errs {
		logger.Warn("skipping unusable URL pattern", "error", err)
	}
	return &URL{mode: config.Mode, patterns: patterns}
}

// Evaluate checks one URL. Malformed URLs and any scheme other than
// http/https are rejected before the list check — a kiosk browser
// has no business following file:, javascript:, or ftp: links no
// matter what the lists say.
func (r *URL) Evaluate(raw string) Verdict {
	if raw == "" {
		return Deny("Invalid URL")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return Deny("Invalid URL")
	}
	switch parsed.Scheme {
	case "http", "https":
	default:
		return Deny("Protocol not allowed: " + parsed.Scheme)
	}

	switch r.mode {
	case policy.Whitelist:
		if r.patterns.MatchAny(raw) {
			return Allow()
		}
		return Deny("URL not in whitelist")
	case policy.Blacklist:
		if r.patterns.MatchAny(raw) {
			return Deny("URL blocked")
		}
		return Allow()
	default:
		// Unknown mode fails closed.
		return Deny("URL rule misconfigured")
	}
}
