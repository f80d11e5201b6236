// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MMI122/RestrictedIDE/lib/clock"
	"github.com/MMI122/RestrictedIDE/lib/policy"
	"github.com/MMI122/RestrictedIDE/lib/rules"
)

func testEngine(t *testing.T, defaultPolicy string) (*Engine, *clock.Manual, string) {
	t.Helper()
	dir := t.TempDir()
	defaultPath := ""
	if defaultPolicy != "" {
		defaultPath = filepath.Join(dir, "default.json")
		if err := os.WriteFile(defaultPath, []byte(defaultPolicy), 0600); err != nil {
			t.Fatalf("writing default policy: %v", err)
		}
	}
	overridePath := filepath.Join(dir, "override.json")

	manual := clock.NewManual(time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC))
	engine, err := New(Options{
		Store:           &policy.Store{DefaultPath: defaultPath, OverridePath: overridePath},
		Clock:           manual,
		SystemProcesses: []string{"systemd", "xorg"},
		SandboxRoot:     filepath.Join(dir, "sandbox"),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return engine, manual, overridePath
}

const urlWhitelistPolicy = `{
	"name": "test",
	"urls": {"mode": "whitelist", "patterns": ["https://docs.python.org/*"]}
}`

func TestValidateURL(t *testing.T) {
	engine, _, _ := testEngine(t, urlWhitelistPolicy)

	if !engine.ValidateURL("https://docs.python.org/3/tutorial") {
		t.Error("whitelisted URL denied")
	}
	if engine.ValidateURL("https://evil.com") {
		t.Error("non-whitelisted URL allowed")
	}
	if engine.ValidateURL("ftp://docs.python.org") {
		t.Error("non-http protocol allowed")
	}
}

func TestValidateFileAccessReturnsFullVerdict(t *testing.T) {
	engine, _, _ := testEngine(t, "")

	verdict := engine.ValidateFileAccess("/etc/passwd", rules.OpRead)
	if verdict.Allowed {
		t.Fatal("read of /etc/passwd allowed")
	}
	// Callers render the reason; a bare boolean is a contract break.
	if verdict.Reason == "" {
		t.Error("denial verdict carries no reason")
	}
}

func TestUpdatePolicySwapsAllEvaluatorsTogether(t *testing.T) {
	engine, _, overridePath := testEngine(t, urlWhitelistPolicy)

	mode := policy.Blacklist
	fragment := &policy.Overlay{
		URLs: &policy.URLOverlay{
			Mode:     &mode,
			Patterns: []string{"https://evil.com/*"},
		},
		Keyboard: &policy.KeyboardOverlay{
			Blocked: map[string]string{"ctrl+q": "Quit blocked"},
		},
	}
	if err := engine.UpdatePolicy(fragment); err != nil {
		t.Fatalf("UpdatePolicy: %v", err)
	}

	// Both sections took effect in the same swap.
	if !engine.ValidateURL("https://example.org") {
		t.Error("blacklist mode not active after update")
	}
	if engine.ValidateURL("https://evil.com/page") {
		t.Error("blacklisted URL allowed after update")
	}
	if engine.ValidateKeyboard([]string{"ctrl", "q"}) {
		t.Error("newly blocked chord allowed after update")
	}

	// The override layer was persisted.
	if _, err := os.Stat(overridePath); err != nil {
		t.Errorf("override file not written: %v", err)
	}
}

func TestUpdatePolicyRejectsInvalidFragment(t *testing.T) {
	engine, _, overridePath := testEngine(t, urlWhitelistPolicy)

	badMode := policy.Mode("sideways")
	err := engine.UpdatePolicy(&policy.Overlay{
		URLs: &policy.URLOverlay{Mode: &badMode},
	})
	if err == nil {
		t.Fatal("invalid fragment accepted")
	}

	// Nothing changed and nothing was persisted.
	if !engine.ValidateURL("https://docs.python.org/3/tutorial") {
		t.Error("active policy disturbed by rejected update")
	}
	if _, err := os.Stat(overridePath); err == nil {
		t.Error("override persisted for a rejected update")
	}
}

func TestUpdatesAccumulateAcrossCalls(t *testing.T) {
	engine, _, _ := testEngine(t, urlWhitelistPolicy)

	if err := engine.UpdatePolicy(&policy.Overlay{
		Keyboard: &policy.KeyboardOverlay{
			Blocked: map[string]string{"ctrl+q": "Quit blocked"},
		},
	}); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if err := engine.UpdatePolicy(&policy.Overlay{
		Processes: &policy.ProcessOverlay{Blocked: []string{"steam"}},
	}); err != nil {
		t.Fatalf("second update: %v", err)
	}

	if engine.ValidateKeyboard([]string{"ctrl", "q"}) {
		t.Error("first update lost after second update")
	}
	if engine.ValidateProcess("steam") {
		t.Error("second update not active")
	}
}

func TestViolationObservers(t *testing.T) {
	engine, manual, _ := testEngine(t, urlWhitelistPolicy)

	var order []string
	var events []ViolationEvent
	engine.OnViolation(func(event ViolationEvent) {
		order = append(order, "first")
		events = append(events, event)
	})
	engine.OnViolation(func(ViolationEvent) {
		order = append(order, "second")
	})

	engine.ValidateURL("https://evil.com")

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("delivery order = %v, want registration order", order)
	}
	event := events[0]
	if event.Type != "url" {
		t.Errorf("Type = %q", event.Type)
	}
	if event.Reason != "URL not in whitelist" {
		t.Errorf("Reason = %q", event.Reason)
	}
	if event.Timestamp != manual.Now().UnixMilli() {
		t.Errorf("Timestamp = %d, want %d", event.Timestamp, manual.Now().UnixMilli())
	}
}

func TestObserverPanicIsIsolated(t *testing.T) {
	engine, _, _ := testEngine(t, urlWhitelistPolicy)

	delivered := false
	engine.OnViolation(func(ViolationEvent) { panic("broken observer") })
	engine.OnViolation(func(ViolationEvent) { delivered = true })

	engine.ValidateURL("https://evil.com")

	if !delivered {
		t.Error("panic in one observer stopped delivery to the next")
	}
	// The engine still works afterwards.
	if !engine.ValidateURL("https://docs.python.org/3/") {
		t.Error("engine state corrupted by observer panic")
	}
}

func TestAllowedActionsDoNotNotify(t *testing.T) {
	engine, _, _ := testEngine(t, urlWhitelistPolicy)

	fired := false
	engine.OnViolation(func(ViolationEvent) { fired = true })
	engine.ValidateURL("https://docs.python.org/3/tutorial")
	if fired {
		t.Error("observer fired for an allowed action")
	}
}

func TestValidateTimeUsesClock(t *testing.T) {
	engine, manual, _ := testEngine(t, `{
		"time": {
			"enabled": true,
			"schedule": {"days": [1,2,3,4,5], "startTime": "09:00", "endTime": "17:00"}
		}
	}`)

	// 2026-03-03 10:00 UTC is a Tuesday inside the window.
	if !engine.ValidateTime() {
		t.Error("in-window time denied")
	}
	manual.Advance(10 * time.Hour)
	if engine.ValidateTime() {
		t.Error("out-of-window time allowed")
	}
}

func TestConcurrentValidationDuringUpdate(t *testing.T) {
	engine, _, _ := testEngine(t, urlWhitelistPolicy)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				// Readers must always see a coherent snapshot.
				engine.ValidateURL("https://docs.python.org/3/")
				engine.ValidateKeyboard([]string{"ctrl", "s"})
				engine.ValidateProcess("code")
			}
		}()
	}

	for i := 0; i < 20; i++ {
		blocked := map[string]string{"alt+tab": "Window switching"}
		if err := engine.UpdatePolicy(&policy.Overlay{
			Keyboard: &policy.KeyboardOverlay{Blocked: blocked},
		}); err != nil {
			t.Errorf("UpdatePolicy: %v", err)
		}
	}
	close(stop)
	wg.Wait()
}

func TestAllowedValidationsAreLogged(t *testing.T) {
	dir := t.TempDir()
	defaultPath := filepath.Join(dir, "default.json")
	if err := os.WriteFile(defaultPath, []byte(urlWhitelistPolicy), 0600); err != nil {
		t.Fatalf("writing default policy: %v", err)
	}

	var buffer bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buffer, &slog.HandlerOptions{Level: slog.LevelDebug}))
	engine, err := New(Options{
		Store:  &policy.Store{DefaultPath: defaultPath, OverridePath: filepath.Join(dir, "override.json")},
		Clock:  clock.NewManual(time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)),
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	buffer.Reset()
	if !engine.ValidateURL("https://docs.python.org/3/") {
		t.Fatal("whitelisted URL denied")
	}
	if !strings.Contains(buffer.String(), "url allowed") {
		t.Errorf("allowed validation left no log trace: %q", buffer.String())
	}

	// Denials are traced as violations, never as an allow line.
	buffer.Reset()
	engine.ValidateURL("https://evil.com")
	if strings.Contains(buffer.String(), "url allowed") {
		t.Errorf("denied validation logged as allowed: %q", buffer.String())
	}
}
