// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// NewManual returns a Manual clock frozen at the given instant. Time
// moves only when Advance or Set is called.
func NewManual(initial time.Time) *Manual {
	return &Manual{current: initial}
}

// Manual is a deterministic Clock for tests. Scheduled functions and
// tickers fire synchronously inside Advance, in deadline order. Safe
// for concurrent use.
type Manual struct {
	mu      sync.Mutex
	current time.Time
	pending []*manualTimer
}

type manualTimer struct {
	deadline time.Time
	run      func()       // one-shot callback, nil for tickers
	ticks    chan<- time.Time // tick channel, nil for one-shots
	interval time.Duration
	stopped  bool
	fired    bool
}

// Now returns the clock's current instant.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Set jumps the clock to t, firing anything scheduled on the way.
func (m *Manual) Set(t time.Time) {
	m.advanceTo(t)
}

// Advance moves the clock forward by d, firing due timers and ticks
// synchronously in deadline order before returning.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.current.Add(d)
	m.mu.Unlock()
	m.advanceTo(target)
}

// AfterFunc implements Clock.
func (m *Manual) AfterFunc(d time.Duration, f func()) func() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	timer := &manualTimer{
		deadline: m.current.Add(d),
		run:      f,
	}
	m.pending = append(m.pending, timer)
	return func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		stoppedInTime := !timer.fired && !timer.stopped
		timer.stopped = true
		return stoppedInTime
	}
}

// Tick implements Clock. The tick channel is buffered; ticks beyond
// the buffer are dropped, matching time.Ticker behavior.
func (m *Manual) Tick(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		panic("clock: non-positive tick interval")
	}
	channel := make(chan time.Time, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	timer := &manualTimer{
		deadline: m.current.Add(d),
		ticks:    channel,
		interval: d,
	}
	m.pending = append(m.pending, timer)
	stop := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		timer.stopped = true
	}
	return channel, stop
}

// advanceTo fires all timers with deadlines at or before target, in
// deadline order, then sets the clock to target. One-shot callbacks
// run without the lock held so they may schedule further timers.
func (m *Manual) advanceTo(target time.Time) {
	for {
		m.mu.Lock()
		var next *manualTimer
		for _, timer := range m.pending {
			if timer.stopped || timer.fired {
				continue
			}
			if timer.deadline.After(target) {
				continue
			}
			if next == nil || timer.deadline.Before(next.deadline) {
				next = timer
			}
		}
		if next == nil {
			m.current = target
			m.compact()
			m.mu.Unlock()
			return
		}

		m.current = next.deadline
		if next.ticks != nil {
			select {
			case next.ticks <- next.deadline:
			default: // consumer fell behind, drop the tick
			}
			next.deadline = next.deadline.Add(next.interval)
			m.mu.Unlock()
			continue
		}

		next.fired = true
		run := next.run
		m.mu.Unlock()
		run()
	}
}

// compact drops finished and stopped timers. Caller holds the lock.
func (m *Manual) compact() {
	kept := m.pending[:0]
	for _, timer := range m.pending {
		if timer.stopped || timer.fired {
			continue
		}
		kept = append(kept, timer)
	}
	m.pending = kept
}
