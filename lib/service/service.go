// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

// Package service assembles the kiosk daemon: policy engine, admin
// session, file sandbox, keyboard interceptor, and process guard,
// plus the admin request dispatch. The manager owns every component
// lifecycle; nothing else starts or stops native enforcement.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/MMI122/RestrictedIDE/lib/audit"
	"github.com/MMI122/RestrictedIDE/lib/clock"
	"github.com/MMI122/RestrictedIDE/lib/config"
	"github.com/MMI122/RestrictedIDE/lib/engine"
	"github.com/MMI122/RestrictedIDE/lib/interceptor"
	"github.com/MMI122/RestrictedIDE/lib/platform"
	"github.com/MMI122/RestrictedIDE/lib/policy"
	"github.com/MMI122/RestrictedIDE/lib/procguard"
	"github.com/MMI122/RestrictedIDE/lib/rules"
	"github.com/MMI122/RestrictedIDE/lib/sandbox"
	"github.com/MMI122/RestrictedIDE/lib/session"
	"github.com/MMI122/RestrictedIDE/lib/state"
)

const heartbeatInterval = time.Minute

// Manager owns the daemon's components and their lifecycles.
type Manager struct {
	cfg     *config.Config
	logger  *slog.Logger
	clock   clock.Clock
	profile platform.Profile

	store       *state.Store
	fileSink    *audit.FileSink
	trail       *audit.Trail
	engine      *engine.Engine
	session     *session.Session
	sandbox     *sandbox.Sandbox
	interceptor *interceptor.Interceptor
	guard       *procguard.Guard

	runStatePath  string
	stopHeartbeat func()
	stopped       atomic.Bool

	// BootstrapCredential is set when no admin credential existed
	// and one was generated. The daemon prints it exactly once at
	// startup; it is never stored in plaintext.
	BootstrapCredential string
}

// New builds the component graph. Nothing native is touched yet;
// Initialize performs the privileged setup.
func New(cfg *config.Config, clk clock.Clock, logger *slog.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, fmt.Errorf("preparing data directories: %w", err)
	}

	profile, err := platform.Resolve()
	if err != nil {
		return nil, fmt.Errorf("resolving platform profile: %w", err)
	}

	store, err := state.Open(cfg.Paths.State, logger)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}

	fileSink, err := audit.NewFileSink(cfg.Paths.AuditLog)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	trail := audit.NewTrail(logger, fileSink, store)

	policyEngine, err := engine.New(engine.Options{
		Store: &policy.Store{
			DefaultPath:  cfg.Paths.PolicyDefault,
			OverridePath: cfg.Paths.PolicyOverride,
			Logger:       logger,
		},
		Clock:           clk,
		Trail:           trail,
		SystemProcesses: profile.SystemProcesses,
		SandboxRoot:     cfg.Paths.SandboxRoot,
		Logger:          logger,
	})
	if err != nil {
		trail.Close()
		store.Close()
		return nil, fmt.Errorf("starting policy engine: %w", err)
	}

	sessionTimeout, _ := cfg.SessionTimeout()
	lockoutDuration, _ := cfg.LockoutDuration()
	adminSession := session.New(session.Config{
		SessionTimeout:    sessionTimeout,
		MaxFailedAttempts: cfg.Session.MaxFailedAttempts,
		LockoutDuration:   lockoutDuration,
	}, store, clk, trail, logger)

	manager := &Manager{
		cfg:          cfg,
		logger:       logger,
		clock:        clk,
		profile:      profile,
		store:        store,
		fileSink:     fileSink,
		trail:        trail,
		engine:       policyEngine,
		session:      adminSession,
		sandbox:      sandbox.New(policyEngine, trail, clk, logger),
		guard:        procguard.New(policyEngine, profile.GuardExclusions, clk, trail, logger),
		runStatePath: filepath.Join(cfg.Paths.Root, "kioskd.state"),
	}
	manager.interceptor = interceptor.New(manager.onBlockedChord, logger)
	return manager, nil
}

// onBlockedChord runs on the interceptor's async consumer goroutine,
// never on the event path. The engine call fans out the violation to
// observers and the audit trail.
func (m *Manager) onBlockedChord(blocked interceptor.Blocked) {
	m.engine.ReportViolation(rules.KindKeyboard, map[string]any{
		"keys":   blocked.Combo.Keys(),
		"device": blocked.Device,
	}, blocked.Reason)
}

// Initialize performs privileged startup: admin credential
// bootstrap, keyboard interception, process guard, heartbeat. In
// production any enforcement component that fails to come up aborts
// startup; running unprotected is worse than not running. In
// development the failure is a warning.
func (m *Manager) Initialize(ctx context.Context) error {
	if previous, ok := checkRunState(m.runStatePath); ok {
		m.logger.Warn("previous run ended without clean shutdown",
			"previous_pid", previous.PID, "previous_start", previous.StartedAt)
		m.trail.Submit(audit.Security(m.clock.Now(), "unclean_previous_shutdown", map[string]any{
			"previous_pid": previous.PID,
		}))
	}

	generated, err := m.session.Bootstrap(ctx)
	if err != nil {
		return fmt.Errorf("bootstrapping admin credential: %w", err)
	}
	m.BootstrapCredential = generated

	if err := m.sandbox.EnsureRoot(); err != nil {
		return fmt.Errorf("preparing sandbox root: %w", err)
	}

	if err := m.installInterception(); err != nil {
		if m.cfg.Environment == config.Production {
			return fmt.Errorf("keyboard interception unavailable: %w", err)
		}
		m.logger.Warn("keyboard interception unavailable, continuing without it",
			"environment", m.cfg.Environment, "error", err)
	}

	guardInterval, _ := m.cfg.GuardInterval()
	if err := m.guard.StartMonitoring(guardInterval, nil); err != nil {
		if m.cfg.Environment == config.Production {
			return fmt.Errorf("process guard unavailable: %w", err)
		}
		m.logger.Warn("process guard unavailable, continuing without it", "error", err)
	}

	if err := writeRunState(m.runStatePath, RunState{
		PID:         os.Getpid(),
		StartedAt:   m.clock.Now(),
		Environment: string(m.cfg.Environment),
	}); err != nil {
		return fmt.Errorf("writing run state: %w", err)
	}

	m.startHeartbeat()
	m.trail.Submit(audit.Action(m.clock.Now(), "service_initialized", map[string]any{
		"environment": string(m.cfg.Environment),
	}, true))
	m.logger.Info("kiosk enforcement active", "environment", m.cfg.Environment)
	return nil
}

func (m *Manager) installInterception() error {
	devices := m.cfg.Interceptor.Devices
	if len(devices) == 0 {
		devices = m.profile.InputDevices
	}
	if err := m.interceptor.Install(devices); err != nil {
		return err
	}
	m.interceptor.SetBlockedCombinations(m.engine.BlockedCombos())
	if err := m.interceptor.Activate(); err != nil {
		m.interceptor.Uninstall()
		return err
	}
	return nil
}

// startHeartbeat logs and audits a liveness record periodically, and
// rechecks the time rule so schedule violations surface even when
// the user does nothing.
func (m *Manager) startHeartbeat() {
	ticks, stopTicks := m.clock.Tick(heartbeatInterval)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			case <-ticks:
				m.engine.ValidateTime()
				m.logger.Debug("heartbeat",
					"interception", m.interceptor.State().String(),
					"guard_running", m.guard.Running(),
					"dropped_records", m.trail.Dropped())
			}
		}
	}()
	m.stopHeartbeat = func() {
		stopTicks()
		close(stop)
		<-done
	}
}

// ExitApproved reports whether an authenticated admin has requested
// exit. The daemon's signal handler consults this to distinguish an
// approved shutdown from the kiosk being killed.
func (m *Manager) ExitApproved() bool {
	return m.session.ExitRequested()
}

// Shutdown tears enforcement down and releases every resource. It
// always runs to completion: whatever else is wrong, grabbed input
// devices must be released before the process exits.
func (m *Manager) Shutdown(approved bool) {
	// The signal handler and the daemon's deferred cleanup can both
	// reach here; only the first call tears anything down.
	if !m.stopped.CompareAndSwap(false, true) {
		return
	}
	if !approved {
		m.trail.Submit(audit.Security(m.clock.Now(), "forced_shutdown", map[string]any{
			"exit_requested": false,
		}))
		m.logger.Warn("shutting down without admin exit approval")
	}

	if m.stopHeartbeat != nil {
		m.stopHeartbeat()
		m.stopHeartbeat = nil
	}
	m.guard.StopMonitoring()
	m.interceptor.Uninstall()

	m.trail.Submit(audit.Action(m.clock.Now(), "service_shutdown", map[string]any{
		"approved": approved,
	}, true))
	m.trail.Close()
	m.fileSink.Close()

	if err := clearRunState(m.runStatePath); err != nil {
		m.logger.Error("clearing run state", "error", err)
	}
	if err := m.store.Close(); err != nil {
		m.logger.Error("closing state database", "error", err)
	}
	m.logger.Info("kiosk enforcement stopped")
}
