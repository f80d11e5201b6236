// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Sink receives serialized records. Implementations do not need to be
// concurrency-safe: the trail guarantees single-goroutine delivery.
type Sink interface {
	Write(record Record) error
}

// Trail fans records out to its sinks from a single consumer
// goroutine. Submit never blocks the caller — the input hook path
// cannot afford to wait on disk or database I/O — so when the queue
// is full, records are dropped and counted rather than queued
// unboundedly.
type Trail struct {
	queue   chan Record
	sinks   []Sink
	logger  *slog.Logger
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// queueDepth bounds the submit queue. Deep enough to ride out a
// burst of keystroke blocks while the database sink catches up.
const queueDepth = 1024

// NewTrail starts the consumer goroutine. Call Close to flush and
// stop it.
func NewTrail(logger *slog.Logger, sinks ...Sink) *Trail {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	trail := &Trail{
		queue:  make(chan Record, queueDepth),
		sinks:  sinks,
		logger: logger,
		done:   make(chan struct{}),
	}
	go trail.consume()
	return trail
}

// Submit enqueues a record without blocking. Returns false when the
// record was dropped because the queue was full or the trail is
// closed.
func (t *Trail) Submit(record Record) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		t.dropped.Add(1)
		return false
	}
	select {
	case t.queue <- record:
		return true
	default:
		t.dropped.Add(1)
		return false
	}
}

// Dropped returns how many records have been discarded due to queue
// pressure since the trail started.
func (t *Trail) Dropped() uint64 {
	return t.dropped.Load()
}

// Close drains the queue, flushes every pending record to the sinks,
// and stops the consumer. Submit after Close drops silently.
func (t *Trail) Close() {
	t.mu.Lock()
	alreadyClosed := t.closed
	t.closed = true
	if !alreadyClosed {
		close(t.queue)
	}
	t.mu.Unlock()
	<-t.done
}

func (t *Trail) consume() {
	defer close(t.done)
	for record := range t.queue {
		for _, sink := range t.sinks {
			if err := sink.Write(record); err != nil {
				t.logger.Error("audit sink write failed",
					"type", record.Type,
					"name", record.Name,
					"error", err,
				)
			}
		}
	}
}
