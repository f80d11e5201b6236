// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// collectSink records everything it receives. The trail guarantees
// single-goroutine delivery, so no locking is needed inside Write;
// the mutex exists only so the test can read the slice safely after
// Close.
type collectSink struct {
	mu      sync.Mutex
	records []Record
}

func (s *collectSink) Write(record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *collectSink) snapshot() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

func TestTrailDeliversInOrder(t *testing.T) {
	sink := &collectSink{}
	trail := NewTrail(nil, sink)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		trail.Submit(Action(at, "file_read", map[string]any{"index": i}, true))
	}
	trail.Close()

	records := sink.snapshot()
	if len(records) != 10 {
		t.Fatalf("delivered = %d, want 10", len(records))
	}
	for i, record := range records {
		if record.Payload["index"] != i {
			t.Errorf("record %d has index %v, out of order", i, record.Payload["index"])
		}
	}
}

func TestTrailSubmitAfterClose(t *testing.T) {
	trail := NewTrail(nil, &collectSink{})
	trail.Close()

	if trail.Submit(Security(time.Now(), "late", nil)) {
		t.Error("Submit after Close should report a drop")
	}
	if trail.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", trail.Dropped())
	}
	trail.Close() // second close must not panic
}

func TestTrailConcurrentSubmit(t *testing.T) {
	sink := &collectSink{}
	trail := NewTrail(nil, sink)

	var wg sync.WaitGroup
	const producers, perProducer = 8, 50
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				trail.Submit(Security(time.Now(), "violation", map[string]any{"p": 1}))
			}
		}()
	}
	wg.Wait()
	trail.Close()

	delivered := uint64(len(sink.snapshot()))
	if delivered+trail.Dropped() != producers*perProducer {
		t.Errorf("delivered %d + dropped %d != submitted %d",
			delivered, trail.Dropped(), producers*perProducer)
	}
}

func TestFileSinkLineFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.jsonl")
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	defer sink.Close()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	must(sink.Write(Action(at, "file_write", map[string]any{"filePath": "/sandbox/a.txt", "operation": "write"}, true)))
	must(sink.Write(Security(at, "keyboard_blocked", map[string]any{"combo": "alt+tab"})))

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)

	if !scanner.Scan() {
		t.Fatal("missing first line")
	}
	var auditObject map[string]any
	if err := json.Unmarshal(scanner.Bytes(), &auditObject); err != nil {
		t.Fatalf("first line not JSON: %v", err)
	}
	if auditObject["type"] != "AUDIT" || auditObject["action"] != "file_write" || auditObject["success"] != true {
		t.Errorf("audit line = %v", auditObject)
	}

	if !scanner.Scan() {
		t.Fatal("missing second line")
	}
	var securityObject map[string]any
	if err := json.Unmarshal(scanner.Bytes(), &securityObject); err != nil {
		t.Fatalf("second line not JSON: %v", err)
	}
	if securityObject["type"] != "SECURITY" || securityObject["event"] != "keyboard_blocked" {
		t.Errorf("security line = %v", securityObject)
	}
	if _, hasAction := securityObject["action"]; hasAction {
		t.Error("security line must not carry an action field")
	}
}

func TestRecordRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	original := Action(at, "policy_update", map[string]any{"version": "2"}, false)

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Record
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.Type != TypeAudit || decoded.Name != "policy_update" || decoded.Success {
		t.Errorf("decoded = %+v", decoded)
	}
	if !decoded.Timestamp.Equal(at) {
		t.Errorf("timestamp = %v, want %v", decoded.Timestamp, at)
	}
}
