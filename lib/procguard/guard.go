// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

// Package procguard polls the process table and terminates processes
// the active policy forbids. The loop is resilient: a failed kill or
// an unreadable /proc entry is logged and the next tick proceeds.
//
// A hardcoded self-protection set sits in front of the policy check.
// The guard never kills its own process or the platform exclusions,
// no matter what the configured rules say; a misconfigured policy
// must not be able to make the kiosk kill its own enforcement.
package procguard

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/MMI122/RestrictedIDE/lib/audit"
	"github.com/MMI122/RestrictedIDE/lib/clock"
	"github.com/MMI122/RestrictedIDE/lib/engine"
	"github.com/MMI122/RestrictedIDE/lib/rules"
)

// DefaultInterval is the poll period when none is configured.
const DefaultInterval = 2 * time.Second

// Guard is the process monitor. Safe for concurrent Start/Stop.
type Guard struct {
	engine *engine.Engine
	clock  clock.Clock
	trail  *audit.Trail
	logger *slog.Logger

	// protected are lowercase names never terminated, independent of
	// policy. Includes the guard's own process name.
	protected map[string]bool
	ownPID    int

	procRoot string
	kill     func(pid int) error

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// New creates a guard. exclusions are the platform's protected
// process names; the running binary's own name is always added.
func New(policyEngine *engine.Engine, exclusions []string, clk clock.Clock, trail *audit.Trail, logger *slog.Logger) *Guard {
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	protected := make(map[string]bool, len(exclusions)+1)
	for _, name := range exclusions {
		protected[strings.ToLower(name)] = true
	}
	if executable, err := os.Executable(); err == nil {
		protected[strings.ToLower(rules.BaseName(executable))] = true
	}

	return &Guard{
		engine:    policyEngine,
		clock:     clk,
		trail:     trail,
		logger:    logger,
		protected: protected,
		ownPID:    os.Getpid(),
		procRoot:  "/proc",
		kill: func(pid int) error {
			return unix.Kill(pid, unix.SIGKILL)
		},
	}
}

// StartMonitoring begins the poll loop. onUnauthorized, when
// non-nil, is called for every terminated process.
func (g *Guard) StartMonitoring(interval time.Duration, onUnauthorized func(ProcessInfo, string)) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return fmt.Errorf("process guard already running")
	}

	ticks, stopTicks := g.clock.Tick(interval)
	g.stop = make(chan struct{})
	g.done = make(chan struct{})
	g.running = true

	go func(stop, done chan struct{}) {
		defer close(done)
		defer stopTicks()
		for {
			select {
			case <-stop:
				return
			case <-ticks:
				g.Sweep(onUnauthorized)
			}
		}
	}(g.stop, g.done)

	g.logger.Info("process guard started", "interval", interval)
	return nil
}

// StopMonitoring stops the loop and waits for the in-flight sweep.
func (g *Guard) StopMonitoring() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	stop, done := g.stop, g.done
	g.running = false
	g.mu.Unlock()

	close(stop)
	<-done
	g.logger.Info("process guard stopped")
}

// Running reports whether the poll loop is active.
func (g *Guard) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Sweep performs one enumeration-and-terminate pass. Exposed so the
// service layer can force an immediate pass after a policy update
// instead of waiting out the tick interval.
func (g *Guard) Sweep(onUnauthorized func(ProcessInfo, string)) {
	processes, err := snapshotProcesses(g.procRoot)
	if err != nil {
		g.logger.Error("enumerating processes", "error", err)
		return
	}

	for _, process := range processes {
		if process.PID == g.ownPID || g.protected[strings.ToLower(process.Name)] {
			continue
		}

		subject := process.Path
		if subject == "" {
			subject = process.Name
		}
		verdict := g.engine.ProcessDecision(subject)
		if verdict.Allowed {
			continue
		}

		g.terminate(process, verdict.Reason, onUnauthorized)
	}
}

func (g *Guard) terminate(process ProcessInfo, reason string, onUnauthorized func(ProcessInfo, string)) {
	err := g.kill(process.PID)
	if err != nil && !errors.Is(err, unix.ESRCH) {
		// Permission denied or OS-protected: log and keep sweeping.
		g.logger.Error("terminating process",
			"name", process.Name, "pid", process.PID, "error", err)
		if g.trail != nil {
			g.trail.Submit(audit.Security(g.clock.Now(), "process_termination_failed", map[string]any{
				"name": process.Name, "pid": process.PID,
			}))
		}
		return
	}
	// ESRCH means the process exited between the snapshot and the
	// kill; that outcome is what we wanted.

	data := map[string]any{
		"name": process.Name,
		"pid":  process.PID,
		"path": process.Path,
	}
	g.engine.ReportViolation(rules.KindProcess, data, reason)
	if g.trail != nil {
		g.trail.Submit(audit.Security(g.clock.Now(), "process_terminated", data))
	}
	g.logger.Warn("terminated unauthorized process",
		"name", process.Name, "pid", process.PID, "reason", reason)

	if onUnauthorized != nil {
		onUnauthorized(process, reason)
	}
}
