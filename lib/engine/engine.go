// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine holds the policy engine: the single authority every
// enforcement surface (keyboard interceptor, process guard, file
// sandbox, URL gate) consults before allowing an action.
//
// The active policy is an atomically swapped immutable snapshot. A
// snapshot bundles the policy with all five compiled evaluators, so
// a policy update replaces every evaluator in one pointer swap and
// no reader ever sees the keyboard rule from one policy paired with
// the file rule from another.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/MMI122/RestrictedIDE/lib/audit"
	"github.com/MMI122/RestrictedIDE/lib/clock"
	"github.com/MMI122/RestrictedIDE/lib/keycombo"
	"github.com/MMI122/RestrictedIDE/lib/policy"
	"github.com/MMI122/RestrictedIDE/lib/rules"
)

// ViolationEvent is delivered to observers when a validation denies
// an action.
type ViolationEvent struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}

// ViolationObserver receives violation events. Observers run on the
// calling goroutine of the validation that denied; keep them fast.
type ViolationObserver func(ViolationEvent)

// snapshot is one fully-formed generation of enforcement state.
type snapshot struct {
	policy     policy.Policy
	url        *rules.URL
	keyboard   *rules.Keyboard
	process    *rules.Process
	fileAccess *rules.FileAccess
	time       *rules.Time
}

// Engine validates actions against the active policy. Safe for
// concurrent use from every enforcement context at once.
type Engine struct {
	store           *policy.Store
	clock           clock.Clock
	logger          *slog.Logger
	trail           *audit.Trail
	systemProcesses []string

	active atomic.Pointer[snapshot]

	observerMu sync.RWMutex
	observers  []ViolationObserver

	// updateMu serializes UpdatePolicy so concurrent updates cannot
	// interleave their read-merge-persist-swap sequences.
	updateMu sync.Mutex
	override *policy.Overlay
}

// Options configures engine construction.
type Options struct {
	Store *policy.Store
	Clock clock.Clock
	Trail *audit.Trail

	// SystemProcesses is the platform exemption set handed to the
	// process rule.
	SystemProcesses []string

	// SandboxRoot overrides an unset sandboxPath in the loaded
	// policy. Layered policy files ship an empty placeholder; the
	// runtime default resolved here must win over that placeholder,
	// never the other way around.
	SandboxRoot string

	Logger *slog.Logger
}

// New loads the layered policy through options.Store and compiles the
// first snapshot.
func New(options Options) (*Engine, error) {
	if options.Store == nil {
		return nil, fmt.Errorf("engine: policy store is required")
	}
	if options.Clock == nil {
		options.Clock = clock.System()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}

	engine := &Engine{
		store:           options.Store,
		clock:           options.Clock,
		logger:          options.Logger,
		trail:           options.Trail,
		systemProcesses: options.SystemProcesses,
	}

	loaded, override := options.Store.Load()
	if options.SandboxRoot != "" && loaded.FileAccess.SandboxPath == "" {
		loaded.FileAccess.SandboxPath = options.SandboxRoot
	}
	engine.override = override
	engine.active.Store(engine.compile(loaded))

	options.Logger.Info("policy engine started",
		"policy", loaded.Name, "version", loaded.Version)
	return engine, nil
}

// compile builds a snapshot from a policy. Every evaluator is
// re-derived here; nothing from the previous generation survives.
func (e *Engine) compile(active policy.Policy) *snapshot {
	return &snapshot{
		policy:     active,
		url:        rules.NewURL(active.URLs, e.logger),
		keyboard:   rules.NewKeyboard(active.Keyboard),
		process:    rules.NewProcess(active.Processes, e.systemProcesses),
		fileAccess: rules.NewFileAccess(active.FileAccess),
		time:       rules.NewTime(active.Time),
	}
}

// Policy returns the active policy value.
func (e *Engine) Policy() policy.Policy {
	return e.active.Load().policy
}

// ValidateURL reports whether navigating to rawURL is allowed. Both
// outcomes leave a trace: denials as a violation, allows as a debug
// log line.
func (e *Engine) ValidateURL(rawURL string) bool {
	verdict := e.active.Load().url.Evaluate(rawURL)
	if !verdict.Allowed {
		e.violation(rules.KindURL, map[string]any{"url": rawURL}, verdict.Reason)
		return false
	}
	e.logger.Debug("url allowed", "url", rawURL)
	return true
}

// ValidateKeyboard reports whether the pressed key set is allowed.
func (e *Engine) ValidateKeyboard(keys []string) bool {
	verdict := e.active.Load().keyboard.Evaluate(keys)
	if !verdict.Allowed {
		e.violation(rules.KindKeyboard, map[string]any{"keys": keys}, verdict.Reason)
		return false
	}
	e.logger.Debug("key combination allowed", "keys", keys)
	return true
}

// ValidateCombo is the interceptor's hot path: the chord is already
// normalized, so evaluation is a map lookup. Allowed chords are not
// logged here — this runs per keystroke and must stay off any I/O.
func (e *Engine) ValidateCombo(combo keycombo.Combo) bool {
	verdict := e.active.Load().keyboard.EvaluateCombo(combo)
	if !verdict.Allowed {
		e.violation(rules.KindKeyboard, map[string]any{"keys": combo.Keys()}, verdict.Reason)
	}
	return verdict.Allowed
}

// ValidateProcess reports whether the named executable may run.
func (e *Engine) ValidateProcess(exeNameOrPath string) bool {
	verdict := e.active.Load().process.Evaluate(exeNameOrPath)
	if !verdict.Allowed {
		e.violation(rules.KindProcess, map[string]any{"process": exeNameOrPath}, verdict.Reason)
		return false
	}
	e.logger.Debug("process allowed", "process", exeNameOrPath)
	return true
}

// ValidateFileAccess returns the full verdict, not a bare boolean:
// file operation callers report the reason to the user, and the
// reason must always be present on denial.
func (e *Engine) ValidateFileAccess(path string, operation rules.Operation) rules.Verdict {
	verdict := e.active.Load().fileAccess.EvaluatePath(path, operation)
	if !verdict.Allowed {
		e.violation(rules.KindFileAccess, map[string]any{
			"filePath":  path,
			"operation": string(operation),
		}, verdict.Reason)
		return verdict
	}
	e.logger.Debug("file access allowed", "path", path, "operation", string(operation))
	return verdict
}

// ValidateFileSize checks a write against the configured size limit.
func (e *Engine) ValidateFileSize(path string, size int64) rules.Verdict {
	verdict := e.active.Load().fileAccess.ValidateSize(size)
	if !verdict.Allowed {
		e.violation(rules.KindFileAccess, map[string]any{
			"filePath": path,
			"size":     size,
		}, verdict.Reason)
		return verdict
	}
	e.logger.Debug("file size allowed", "path", path, "size", size)
	return verdict
}

// ValidateTime reports whether the application may be used right now.
func (e *Engine) ValidateTime() bool {
	verdict := e.active.Load().time.Evaluate(e.clock.Now())
	if !verdict.Allowed {
		e.violation(rules.KindTime, nil, verdict.Reason)
		return false
	}
	e.logger.Debug("time window allowed")
	return true
}

// ProcessDecision evaluates the process rule without emitting a
// violation. The process guard uses it inside the poll loop and
// reports the violation itself, with the pid and path attached.
func (e *Engine) ProcessDecision(exeNameOrPath string) rules.Verdict {
	return e.active.Load().process.Evaluate(exeNameOrPath)
}

// ReportViolation emits a violation on behalf of a native service.
// The interceptor and process guard evaluate on their own hot paths
// and deliver the observable side effects through here, off those
// paths.
func (e *Engine) ReportViolation(kind rules.Kind, data map[string]any, reason string) {
	e.violation(kind, data, reason)
}

// BlockedCombos exposes the active keyboard block set for the
// interceptor's pre-filter.
func (e *Engine) BlockedCombos() keycombo.Set {
	return e.active.Load().keyboard.BlockedCombos()
}

// UpdatePolicy validates fragment, merges it onto the active policy,
// re-derives all evaluators together, persists the accumulated
// override layer, and swaps the snapshot. Once it returns nil, every
// subsequent validation on any goroutine sees the new policy.
func (e *Engine) UpdatePolicy(fragment *policy.Overlay) error {
	if fragment == nil {
		return fmt.Errorf("engine: nil policy fragment")
	}
	if err := policy.Validate(fragment); err != nil {
		e.record("SECURITY", "policy_update_rejected", map[string]any{
			"error": err.Error(),
		}, false)
		return fmt.Errorf("engine: invalid policy fragment: %w", err)
	}

	e.updateMu.Lock()
	defer e.updateMu.Unlock()

	current := e.active.Load().policy
	merged := policy.Merge(current, fragment)
	combined := policy.Combine(e.override, fragment)

	if err := e.store.SaveOverride(combined); err != nil {
		// The swap does not happen on a failed persist: a policy
		// that silently reverts on restart is worse than a rejected
		// update.
		return fmt.Errorf("engine: persisting policy override: %w", err)
	}
	e.override = combined
	e.active.Store(e.compile(merged))

	e.record("AUDIT", "policy_update", map[string]any{
		"policy": merged.Name, "version": merged.Version,
	}, true)
	e.logger.Info("policy updated", "policy", merged.Name, "version", merged.Version)
	return nil
}

// OnViolation registers an observer. Observers are called in
// registration order for a single violation.
func (e *Engine) OnViolation(observer ViolationObserver) {
	if observer == nil {
		return
	}
	e.observerMu.Lock()
	e.observers = append(e.observers, observer)
	e.observerMu.Unlock()
}

func (e *Engine) violation(kind rules.Kind, data map[string]any, reason string) {
	event := ViolationEvent{
		Type:      kind.String(),
		Data:      data,
		Reason:    reason,
		Timestamp: e.clock.Now().UnixMilli(),
	}

	payload := map[string]any{"reason": reason}
	for key, value := range data {
		payload[key] = value
	}
	e.record("SECURITY", kind.String()+"_violation", payload, false)

	e.observerMu.RLock()
	observers := e.observers
	e.observerMu.RUnlock()
	for _, observer := range observers {
		e.deliver(observer, event)
	}
}

// deliver runs one observer with panic isolation. A broken observer
// must not stop delivery to the others or poison engine state.
func (e *Engine) deliver(observer ViolationObserver, event ViolationEvent) {
	defer func() {
		if recovered := recover(); recovered != nil {
			e.logger.Error("violation observer panicked",
				"type", event.Type, "panic", recovered)
		}
	}()
	observer(event)
}

func (e *Engine) record(recordType, name string, payload map[string]any, success bool) {
	if e.trail == nil {
		return
	}
	if recordType == audit.TypeSecurity {
		e.trail.Submit(audit.Security(e.clock.Now(), name, payload))
		return
	}
	e.trail.Submit(audit.Action(e.clock.Now(), name, payload, success))
}
