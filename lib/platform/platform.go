// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

// Package platform resolves the host-specific constants the
// enforcement layers depend on: which process names count as system
// infrastructure, where keyboard event devices live, and which
// processes the guard must never touch.
//
// The profile is resolved once at startup and treated as immutable
// afterwards; enforcement code receives it by value and never
// re-inspects the host.
package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Profile is the resolved host profile.
type Profile struct {
	// SystemProcesses are process names (lowercase base names) that
	// are always exempt from process enforcement. Killing these takes
	// the session or the display down with it.
	SystemProcesses []string

	// GuardExclusions are names the process guard skips in addition
	// to SystemProcesses, including this binary itself.
	GuardExclusions []string

	// InputDevices are candidate event device paths for the keyboard
	// interceptor, in probe order.
	InputDevices []string

	// SelfExecutable is the resolved path of the running binary.
	SelfExecutable string

	// SelfName is the lowercase base name of the running binary.
	SelfName string
}

// linuxSystemProcesses is the baseline exemption set for a Linux
// desktop session. The display server and session infrastructure are
// listed by the names they report in /proc/N/comm.
var linuxSystemProcesses = []string{
	"systemd",
	"init",
	"kthreadd",
	"dbus-daemon",
	"xorg",
	"x",
	"xwayland",
	"wayland",
	"gnome-shell",
	"gnome-session",
	"kwin_x11",
	"kwin_wayland",
	"plasmashell",
	"mutter",
	"networkmanager",
	"wpa_supplicant",
	"pulseaudio",
	"pipewire",
	"wireplumber",
	"login",
	"sshd",
	"agetty",
	"polkitd",
	"udevd",
	"systemd-udevd",
	"systemd-logind",
	"systemd-journald",
}

// Resolve builds the profile for the running host.
func Resolve() (Profile, error) {
	executable, err := os.Executable()
	if err != nil {
		return Profile{}, fmt.Errorf("resolving own executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(executable); err == nil {
		executable = resolved
	}
	selfName := strings.ToLower(filepath.Base(executable))

	return Profile{
		SystemProcesses: append([]string(nil), linuxSystemProcesses...),
		GuardExclusions: []string{selfName},
		InputDevices:    probeInputDevices(),
		SelfExecutable:  executable,
		SelfName:        selfName,
	}, nil
}

// probeInputDevices lists keyboard-looking event devices. by-path
// symlinks name the function ("-kbd"); fall back to every event node
// when the by-path directory is absent.
func probeInputDevices() []string {
	byPath, err := filepath.Glob("/dev/input/by-path/*-kbd")
	if err == nil && len(byPath) > 0 {
		return byPath
	}
	events, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return nil
	}
	return events
}
