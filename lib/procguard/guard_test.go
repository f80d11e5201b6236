// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package procguard

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/MMI122/RestrictedIDE/lib/clock"
	"github.com/MMI122/RestrictedIDE/lib/engine"
	"github.com/MMI122/RestrictedIDE/lib/policy"
)

// writeProc fabricates a /proc-shaped directory entry. The exe link
// is optional, mirroring kernel threads and permission-denied reads.
func writeProc(t *testing.T, root string, pid int, comm, exe string) {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(pid))
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "comm"), []byte(comm+"\n"), 0644); err != nil {
		t.Fatalf("writing comm: %v", err)
	}
	if exe != "" {
		if err := os.Symlink(exe, filepath.Join(dir, "exe")); err != nil {
			t.Fatalf("symlink exe: %v", err)
		}
	}
}

type killRecorder struct {
	mu     sync.Mutex
	pids   []int
	errFor map[int]error
}

func (k *killRecorder) kill(pid int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pids = append(k.pids, pid)
	if err, ok := k.errFor[pid]; ok {
		return err
	}
	return nil
}

func (k *killRecorder) killed() []int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]int(nil), k.pids...)
}

const whitelistPolicy = `{
	"processes": {"mode": "whitelist", "allowed": ["code", "python3"]}
}`

func testGuard(t *testing.T, policyJSON string) (*Guard, *killRecorder, string, *clock.Manual) {
	t.Helper()
	dir := t.TempDir()
	defaultPath := filepath.Join(dir, "default.json")
	if err := os.WriteFile(defaultPath, []byte(policyJSON), 0600); err != nil {
		t.Fatalf("writing policy: %v", err)
	}

	manual := clock.NewManual(time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC))
	policyEngine, err := engine.New(engine.Options{
		Store:           &policy.Store{DefaultPath: defaultPath, OverridePath: filepath.Join(dir, "override.json")},
		Clock:           manual,
		SystemProcesses: []string{"systemd", "xorg"},
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	procRoot := filepath.Join(dir, "proc")
	if err := os.MkdirAll(procRoot, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	recorder := &killRecorder{errFor: map[int]error{}}
	guard := New(policyEngine, []string{"kioskd"}, manual, nil, nil)
	guard.procRoot = procRoot
	guard.kill = recorder.kill
	t.Cleanup(guard.StopMonitoring)
	return guard, recorder, procRoot, manual
}

func TestSweepKillsUnauthorized(t *testing.T) {
	guard, recorder, procRoot, _ := testGuard(t, whitelistPolicy)

	writeProc(t, procRoot, 100, "code", "/usr/bin/code")
	writeProc(t, procRoot, 200, "steam", "/usr/bin/steam")
	writeProc(t, procRoot, 300, "python3", "/usr/bin/python3")

	var findings []ProcessInfo
	var reasons []string
	guard.Sweep(func(info ProcessInfo, reason string) {
		findings = append(findings, info)
		reasons = append(reasons, reason)
	})

	if killed := recorder.killed(); len(killed) != 1 || killed[0] != 200 {
		t.Fatalf("killed = %v, want [200]", killed)
	}
	if len(findings) != 1 || findings[0].Name != "steam" || findings[0].PID != 200 {
		t.Fatalf("findings = %+v", findings)
	}
	if reasons[0] == "" {
		t.Error("finding carries no reason")
	}
}

func TestSystemProcessesSurvive(t *testing.T) {
	guard, recorder, procRoot, _ := testGuard(t, whitelistPolicy)

	// Not in the whitelist, but in the platform system set.
	writeProc(t, procRoot, 1, "systemd", "/usr/lib/systemd/systemd")
	writeProc(t, procRoot, 50, "Xorg", "/usr/bin/Xorg")

	guard.Sweep(nil)
	if killed := recorder.killed(); len(killed) != 0 {
		t.Fatalf("killed = %v, want none", killed)
	}
}

func TestSelfProtectionBeatsPolicy(t *testing.T) {
	// Policy that blocks everything, including the exclusion names.
	guard, recorder, procRoot, _ := testGuard(t, `{
		"processes": {"mode": "whitelist", "allowed": []}
	}`)

	writeProc(t, procRoot, 400, "kioskd", "/usr/bin/kioskd")
	writeProc(t, procRoot, os.Getpid(), "whatever", "")

	guard.Sweep(nil)
	if killed := recorder.killed(); len(killed) != 0 {
		t.Fatalf("killed = %v; the guard attacked its own process tree", killed)
	}
}

func TestExitedProcessIsSuccess(t *testing.T) {
	guard, recorder, procRoot, _ := testGuard(t, whitelistPolicy)
	writeProc(t, procRoot, 200, "steam", "/usr/bin/steam")
	recorder.errFor[200] = unix.ESRCH

	notified := false
	guard.Sweep(func(ProcessInfo, string) { notified = true })
	if !notified {
		t.Error("ESRCH treated as failure; exit-vs-kill race must count as success")
	}
}

func TestKillFailureDoesNotStopSweep(t *testing.T) {
	guard, recorder, procRoot, _ := testGuard(t, whitelistPolicy)
	writeProc(t, procRoot, 200, "steam", "/usr/bin/steam")
	writeProc(t, procRoot, 201, "tor", "/usr/bin/tor")
	recorder.errFor[200] = unix.EPERM

	var findings []ProcessInfo
	guard.Sweep(func(info ProcessInfo, _ string) { findings = append(findings, info) })

	// Both were attempted; only the successful kill notified.
	if killed := recorder.killed(); len(killed) != 2 {
		t.Fatalf("killed attempts = %v, want both", killed)
	}
	if len(findings) != 1 || findings[0].PID != 201 {
		t.Fatalf("findings = %+v, want only pid 201", findings)
	}
}

func TestCommFallbackWhenExeUnreadable(t *testing.T) {
	guard, recorder, procRoot, _ := testGuard(t, whitelistPolicy)
	// No exe link: matching falls back to comm.
	writeProc(t, procRoot, 500, "steam", "")

	guard.Sweep(nil)
	if killed := recorder.killed(); len(killed) != 1 || killed[0] != 500 {
		t.Fatalf("killed = %v, want [500]", killed)
	}
}

func TestMonitoringLoop(t *testing.T) {
	guard, recorder, procRoot, manual := testGuard(t, whitelistPolicy)
	writeProc(t, procRoot, 200, "steam", "/usr/bin/steam")

	swept := make(chan struct{}, 16)
	if err := guard.StartMonitoring(2*time.Second, func(ProcessInfo, string) {
		swept <- struct{}{}
	}); err != nil {
		t.Fatalf("StartMonitoring: %v", err)
	}
	if err := guard.StartMonitoring(time.Second, nil); err == nil {
		t.Fatal("second StartMonitoring succeeded")
	}

	manual.Advance(2 * time.Second)
	select {
	case <-swept:
	case <-time.After(time.Second):
		t.Fatal("no sweep after one interval")
	}

	guard.StopMonitoring()
	if guard.Running() {
		t.Error("Running() true after stop")
	}
	before := len(recorder.killed())
	manual.Advance(10 * time.Second)
	if len(recorder.killed()) != before {
		t.Error("sweeps continued after StopMonitoring")
	}
}
