// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/MMI122/RestrictedIDE/lib/policy"
)

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestURLWhitelist(t *testing.T) {
	evaluator := NewURL(policy.URLRules{
		Mode:     policy.Whitelist,
		Patterns: []string{"https://docs.python.org/*"},
	}, discard())

	if verdict := evaluator.Evaluate("https://docs.python.org/3/tutorial"); !verdict.Allowed {
		t.Errorf("tutorial page denied: %q", verdict.Reason)
	}

	verdict := evaluator.Evaluate("https://evil.com")
	if verdict.Allowed || verdict.Reason != "URL not in whitelist" {
		t.Errorf("evil.com verdict = %+v, want denial with whitelist reason", verdict)
	}

	verdict = evaluator.Evaluate("ftp://docs.python.org")
	if verdict.Allowed || !strings.Contains(verdict.Reason, "Protocol not allowed") {
		t.Errorf("ftp verdict = %+v, want protocol denial", verdict)
	}
}

func TestURLBlacklist(t *testing.T) {
	evaluator := NewURL(policy.URLRules{
		Mode:     policy.Blacklist,
		Patterns: []string{"https://*.gambling.example/*", "https://games.example/*"},
	}, discard())

	if verdict := evaluator.Evaluate("https://site.gambling.example/slots"); verdict.Allowed {
		t.Error("blacklisted URL allowed")
	}
	if verdict := evaluator.Evaluate("https://news.example/today"); !verdict.Allowed {
		t.Errorf("unlisted URL denied: %q", verdict.Reason)
	}
}

func TestURLProtocolCheckedBeforeLists(t *testing.T) {
	// A whitelist entry cannot smuggle a non-http scheme through.
	evaluator := NewURL(policy.URLRules{
		Mode:     policy.Whitelist,
		Patterns: []string{"file:///etc/*"},
	}, discard())

	verdict := evaluator.Evaluate("file:///etc/passwd")
	if verdict.Allowed || !strings.Contains(verdict.Reason, "Protocol not allowed") {
		t.Errorf("verdict = %+v, want protocol denial before list check", verdict)
	}
}

func TestURLMalformed(t *testing.T) {
	evaluator := NewURL(policy.URLRules{Mode: policy.Blacklist}, discard())

	for _, raw := range []string{"", "http://bad host/path", "://nothing"} {
		if verdict := evaluator.Evaluate(raw); verdict.Allowed {
			t.Errorf("Evaluate(%q) allowed, want denial", raw)
		}
	}
}

func TestURLUnknownModeFailsClosed(t *testing.T) {
	evaluator := NewURL(policy.URLRules{Mode: "greylist"}, discard())
	if verdict := evaluator.Evaluate("https://anything.example"); verdict.Allowed {
		t.Error("unknown mode allowed a URL, want fail-closed denial")
	}
}

func TestURLCaseInsensitivePatterns(t *testing.T) {
	evaluator := NewURL(policy.URLRules{
		Mode:     policy.Whitelist,
		Patterns: []string{"https://Docs.Python.org/*"},
	}, discard())
	if verdict := evaluator.Evaluate("HTTPS://DOCS.PYTHON.ORG/3/"); !verdict.Allowed {
		t.Errorf("case-folded match denied: %q", verdict.Reason)
	}
}
