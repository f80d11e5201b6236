// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction.
//
// Every component that reads the wall clock — the time rule, session
// expiry, lockout windows, the process guard poll loop — takes a Clock
// instead of calling the time package directly. Production code injects
// System(); tests inject a Manual clock and advance it explicitly.
package clock

import "time"

// Clock is the time source injected into time-dependent components.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc schedules f to run after d elapses. The returned
	// stop function cancels the pending call; it reports whether the
	// cancellation happened before f ran.
	AfterFunc(d time.Duration, f func()) (stop func() bool)

	// Tick returns a channel delivering ticks at the given interval
	// and a stop function releasing the underlying ticker.
	Tick(d time.Duration) (ticks <-chan time.Time, stop func())
}

// System returns a Clock backed by the time package.
func System() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) func() bool {
	timer := time.AfterFunc(d, f)
	return timer.Stop
}

func (systemClock) Tick(d time.Duration) (<-chan time.Time, func()) {
	ticker := time.NewTicker(d)
	return ticker.C, ticker.Stop
}
