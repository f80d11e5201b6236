// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

// Package interceptor implements system-wide keyboard interception on
// Linux evdev. Keyboard devices are grabbed exclusively (EVIOCGRAB),
// every event is inspected against the blocked-combination set, and
// allowed events are replayed through a uinput virtual keyboard.
// Blocked chords are simply not replayed, which is how they are
// swallowed before any other application sees them.
//
// The per-event path is a map update and one set lookup. Audit and
// notification work for a blocked chord is handed to a buffered
// channel consumed off the event goroutine, so a slow sink can never
// add typing latency.
package interceptor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/MMI122/RestrictedIDE/lib/keycombo"
)

// State is the interceptor lifecycle state.
type State int32

const (
	// Uninstalled: no devices grabbed, no filtering.
	Uninstalled State = iota
	// Installed: devices grabbed and the virtual keyboard exists,
	// but events are not yet being pumped.
	Installed
	// Active: event goroutines running, filtering live.
	Active
)

func (s State) String() string {
	switch s {
	case Uninstalled:
		return "uninstalled"
	case Installed:
		return "installed"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Blocked describes one swallowed chord, delivered asynchronously.
type Blocked struct {
	Combo  keycombo.Combo
	Reason string
	Device string
}

// Interceptor owns the grabbed devices and the filtering goroutines.
type Interceptor struct {
	logger *slog.Logger

	// blocked is swapped atomically by SetBlockedCombinations; the
	// event goroutines only ever load it.
	blocked atomic.Pointer[keycombo.Set]

	onBlocked func(Blocked)
	notifyQ   chan Blocked

	mu      sync.Mutex
	state   State
	sources []eventSource
	sink    eventSink
	stop    chan struct{}
	done    sync.WaitGroup

	// openSource and openSink exist so tests can substitute
	// in-memory devices.
	openSource func(path string) (eventSource, error)
	openSink   func() (eventSink, error)
}

// New creates an interceptor. onBlocked receives swallowed chords on
// a dedicated goroutine; it may do I/O.
func New(onBlocked func(Blocked), logger *slog.Logger) *Interceptor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	interceptor := &Interceptor{
		logger:    logger,
		onBlocked: onBlocked,
		notifyQ:   make(chan Blocked, 256),
		openSource: func(path string) (eventSource, error) {
			return openDevice(path)
		},
		openSink: func() (eventSink, error) {
			return newVirtualKeyboard("restricted-ide-keyboard")
		},
	}
	empty := keycombo.Set{}
	interceptor.blocked.Store(&empty)
	return interceptor
}

// SetBlockedCombinations replaces the blocked set. Takes effect for
// the next key event; no goroutine coordination needed.
func (i *Interceptor) SetBlockedCombinations(blocked keycombo.Set) {
	i.blocked.Store(&blocked)
	i.logger.Info("blocked combinations updated", "count", len(blocked))
}

// State returns the current lifecycle state.
func (i *Interceptor) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Install grabs every device and creates the virtual keyboard. On
// any failure everything acquired so far is released: the interceptor
// is either fully installed or fully uninstalled, never partial.
func (i *Interceptor) Install(devicePaths []string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state != Uninstalled {
		return fmt.Errorf("install from state %s", i.state)
	}
	if len(devicePaths) == 0 {
		return errors.New("no input devices to intercept")
	}

	sink, err := i.openSink()
	if err != nil {
		return fmt.Errorf("creating virtual keyboard: %w", err)
	}

	var sources []eventSource
	fail := func(err error) error {
		for _, source := range sources {
			source.Release()
			source.Close()
		}
		sink.Close()
		return err
	}

	for _, path := range devicePaths {
		source, err := i.openSource(path)
		if err != nil {
			return fail(err)
		}
		if err := source.Grab(); err != nil {
			source.Close()
			return fail(err)
		}
		sources = append(sources, source)
	}

	i.sources = sources
	i.sink = sink
	i.state = Installed
	i.logger.Info("keyboard interception installed", "devices", len(sources))
	return nil
}

// Activate starts the event goroutines. Must follow Install.
func (i *Interceptor) Activate() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state != Installed {
		return fmt.Errorf("activate from state %s", i.state)
	}

	i.stop = make(chan struct{})
	i.done.Add(1)
	go i.consumeNotifications(i.stop)
	for _, source := range i.sources {
		i.done.Add(1)
		go i.pump(source)
	}
	i.state = Active
	i.logger.Info("keyboard interception active")
	return nil
}

// Uninstall releases every device and tears down the virtual
// keyboard. Valid from any state; always lands in Uninstalled. This
// runs on every exit path including signal handling: a process that
// dies holding grabbed devices leaves the machine without a keyboard.
func (i *Interceptor) Uninstall() {
	i.mu.Lock()
	if i.state == Uninstalled {
		i.mu.Unlock()
		return
	}
	wasActive := i.state == Active
	sources := i.sources
	sink := i.sink
	stop := i.stop
	i.sources = nil
	i.sink = nil
	i.stop = nil
	i.state = Uninstalled
	i.mu.Unlock()

	if wasActive {
		close(stop)
	}
	for _, source := range sources {
		if err := source.Release(); err != nil {
			i.logger.Warn("releasing input device", "device", source.Path(), "error", err)
		}
		// Closing unblocks the pump goroutine's read.
		source.Close()
	}
	if wasActive {
		i.done.Wait()
	}
	if sink != nil {
		sink.Close()
	}
	i.logger.Info("keyboard interception uninstalled")
}

// pump is the per-device event loop.
func (i *Interceptor) pump(source eventSource) {
	defer i.done.Done()

	pressed := make(map[string]bool)
	for {
		e, err := source.ReadEvent()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && !isClosed(err) {
				i.logger.Error("reading input device", "device", source.Path(), "error", err)
			}
			return
		}
		if e.Type != evKey {
			i.forward(e)
			continue
		}

		name, known := keyNames[e.Code]
		if !known {
			i.forward(e)
			continue
		}

		switch e.Value {
		case keyDown, keyRepeat:
			pressed[name] = true
			if combo, reason, blocked := i.evaluate(pressed); blocked {
				// Swallowed: not forwarded. Key-up for the same key
				// is forwarded later, which is harmless because the
				// down never reached anyone.
				i.notify(Blocked{Combo: combo, Reason: reason, Device: source.Path()})
				continue
			}
		default: // key up
			delete(pressed, name)
		}
		i.forward(e)
	}
}

// evaluate decides swallow-vs-pass for a key-down with the given held
// set. Every key-down is checked, modifiers included: the lookup is
// exact, so pressing ctrl on the way to ctrl+c matches nothing unless
// the policy blocks bare ctrl — and a bare modifier can be a real
// entry (the builtin policy blocks a lone meta press, the system
// launcher key).
func (i *Interceptor) evaluate(pressed map[string]bool) (keycombo.Combo, string, bool) {
	keys := make([]string, 0, len(pressed))
	for name := range pressed {
		keys = append(keys, name)
	}
	combo := keycombo.Normalize(keys)
	reason, blocked := i.blocked.Load().Lookup(combo)
	return combo, reason, blocked
}

func (i *Interceptor) forward(e event) {
	i.mu.Lock()
	sink := i.sink
	i.mu.Unlock()
	if sink == nil {
		return
	}
	if err := sink.Emit(e); err != nil {
		i.logger.Error("forwarding event", "error", err)
	}
}

// notify hands a blocked chord to the async consumer. Drops when the
// queue is full rather than stalling the event path.
func (i *Interceptor) notify(blocked Blocked) {
	select {
	case i.notifyQ <- blocked:
	default:
		i.logger.Warn("blocked-chord queue full, dropping notification",
			"combo", string(blocked.Combo))
	}
}

func (i *Interceptor) consumeNotifications(stop <-chan struct{}) {
	defer i.done.Done()
	for {
		select {
		case blocked := <-i.notifyQ:
			if i.onBlocked != nil {
				i.onBlocked(blocked)
			}
		case <-stop:
			// Drain what is already queued before exiting.
			for {
				select {
				case blocked := <-i.notifyQ:
					if i.onBlocked != nil {
						i.onBlocked(blocked)
					}
				default:
					return
				}
			}
		}
	}
}

func isClosed(err error) bool {
	return errors.Is(err, os.ErrClosed)
}
