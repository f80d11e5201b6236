// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// RequireReceive and RequireClosed encapsulate the timeout safety
// valve pattern (select with a time.After fallback) so individual
// tests never hang forever on a channel that a buggy implementation
// failed to service. They are the only sanctioned use of real
// wall-clock timeouts in the test suite; everything else runs on
// clock.Manual.
package testutil

import (
	"testing"
	"time"
)

// RequireReceive reads one value from ch within timeout or fails the
// test.
func RequireReceive[T any](t *testing.T, ch <-chan T, timeout time.Duration, context string) T {
	t.Helper()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed without a value: %s", context)
		}
		return value
	case <-time.After(timeout):
		t.Fatalf("timed out after %v: %s", timeout, context)
	}
	panic("unreachable")
}

// RequireClosed waits for ch to be closed within timeout or fails the
// test. A value arriving before close is also a failure: callers use
// this to assert clean shutdown with no stragglers.
func RequireClosed[T any](t *testing.T, ch <-chan T, timeout time.Duration, context string) {
	t.Helper()
	select {
	case value, ok := <-ch:
		if ok {
			t.Fatalf("unexpected value %v before close: %s", value, context)
		}
	case <-time.After(timeout):
		t.Fatalf("timed out after %v waiting for close: %s", timeout, context)
	}
}

// RequireNoReceive asserts nothing arrives on ch within the window.
// Use sparingly: it costs real wall time.
func RequireNoReceive[T any](t *testing.T, ch <-chan T, window time.Duration, context string) {
	t.Helper()
	select {
	case value := <-ch:
		t.Fatalf("unexpected value %v: %s", value, context)
	case <-time.After(window):
	}
}
