// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestManualAfterFuncFiresInOrder(t *testing.T) {
	manual := NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	var order []string
	manual.AfterFunc(2*time.Second, func() { order = append(order, "second") })
	manual.AfterFunc(1*time.Second, func() { order = append(order, "first") })

	manual.Advance(3 * time.Second)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("fire order = %v, want [first second]", order)
	}
}

func TestManualAfterFuncStop(t *testing.T) {
	manual := NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	fired := false
	stop := manual.AfterFunc(time.Second, func() { fired = true })

	if !stop() {
		t.Fatal("stop before deadline should report true")
	}
	manual.Advance(2 * time.Second)
	if fired {
		t.Fatal("stopped timer fired")
	}
	if stop() {
		t.Fatal("second stop should report false")
	}
}

func TestManualAfterFuncStopAfterFire(t *testing.T) {
	manual := NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	stop := manual.AfterFunc(time.Second, func() {})
	manual.Advance(time.Second)
	if stop() {
		t.Fatal("stop after firing should report false")
	}
}

func TestManualTick(t *testing.T) {
	manual := NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	ticks, stop := manual.Tick(time.Second)
	defer stop()

	manual.Advance(time.Second)
	select {
	case tick := <-ticks:
		want := time.Date(2026, 3, 1, 9, 0, 1, 0, time.UTC)
		if !tick.Equal(want) {
			t.Errorf("tick = %v, want %v", tick, want)
		}
	default:
		t.Fatal("no tick delivered after advancing one interval")
	}

	stop()
	manual.Advance(5 * time.Second)
	select {
	case <-ticks:
		t.Fatal("tick delivered after stop")
	default:
	}
}

func TestManualRescheduleFromCallback(t *testing.T) {
	manual := NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	count := 0
	var schedule func()
	schedule = func() {
		count++
		if count < 3 {
			manual.AfterFunc(time.Second, schedule)
		}
	}
	manual.AfterFunc(time.Second, schedule)

	manual.Advance(10 * time.Second)
	if count != 3 {
		t.Fatalf("callback ran %d times, want 3", count)
	}
}
