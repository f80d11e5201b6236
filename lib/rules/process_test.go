// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"testing"

	"github.com/MMI122/RestrictedIDE/lib/policy"
)

var testSystemProcesses = []string{"systemd", "Xorg", "gnome-shell", "login"}

func TestProcessSystemOverride(t *testing.T) {
	// System processes survive whitelist mode AND an explicit block
	// entry — a policy file cannot aim the guard at the compositor.
	evaluator := NewProcess(policy.ProcessRules{
		Mode:    policy.Whitelist,
		Allowed: []string{"python3"},
		Blocked: []string{"Xorg"},
	}, testSystemProcesses)

	verdict := evaluator.Evaluate("/usr/lib/xorg/Xorg")
	if !verdict.Allowed || verdict.Reason != "System process" {
		t.Errorf("verdict = %+v, want informational system allow", verdict)
	}
	if evaluator.ShouldTerminate("xorg") {
		t.Error("guard should never target a system process")
	}
}

func TestProcessWhitelist(t *testing.T) {
	evaluator := NewProcess(policy.ProcessRules{
		Mode:    policy.Whitelist,
		Allowed: []string{"python3", "RestrictedIDE"},
	}, testSystemProcesses)

	if verdict := evaluator.Evaluate("/usr/bin/python3"); !verdict.Allowed {
		t.Errorf("python3 denied: %q", verdict.Reason)
	}
	if verdict := evaluator.Evaluate("restrictedide"); !verdict.Allowed {
		t.Errorf("case-insensitive allow failed: %q", verdict.Reason)
	}
	if verdict := evaluator.Evaluate("steam"); verdict.Allowed {
		t.Error("unlisted process allowed in whitelist mode")
	}
}

func TestProcessBlacklist(t *testing.T) {
	evaluator := NewProcess(policy.ProcessRules{
		Mode:    policy.Blacklist,
		Blocked: []string{"steam", "discord"},
	}, testSystemProcesses)

	if verdict := evaluator.Evaluate("/opt/steam/steam"); verdict.Allowed {
		t.Error("blocked process allowed")
	}
	if verdict := evaluator.Evaluate("gedit"); !verdict.Allowed {
		t.Errorf("unlisted process denied in blacklist mode: %q", verdict.Reason)
	}
}

func TestProcessBlockedWinsOverAllowed(t *testing.T) {
	evaluator := NewProcess(policy.ProcessRules{
		Mode:    policy.Whitelist,
		Allowed: []string{"game"},
		Blocked: []string{"game"},
	}, nil)
	if verdict := evaluator.Evaluate("game"); verdict.Allowed {
		t.Error("block entry should win over whitelist membership")
	}
}

func TestProcessInvalidName(t *testing.T) {
	evaluator := NewProcess(policy.ProcessRules{Mode: policy.Blacklist}, nil)
	for _, name := range []string{"", "   ", "."} {
		if verdict := evaluator.Evaluate(name); verdict.Allowed {
			t.Errorf("Evaluate(%q) allowed, want denial", name)
		}
	}
}

func TestProcessUnknownModeFailsClosed(t *testing.T) {
	evaluator := NewProcess(policy.ProcessRules{Mode: ""}, nil)
	if verdict := evaluator.Evaluate("anything"); verdict.Allowed {
		t.Error("unconfigured mode allowed a process")
	}
}

func TestBaseName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/usr/bin/Python3", "python3"},
		{"C:/Apps/Game.EXE", "game.exe"},
		{"bash", "bash"},
		{"  trimmed  ", "trimmed"},
	}
	for _, test := range tests {
		if got := BaseName(test.in); got != test.want {
			t.Errorf("BaseName(%q) = %q, want %q", test.in, got, test.want)
		}
	}
}
