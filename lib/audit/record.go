// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit provides the append-only audit trail.
//
// Two record shapes flow through the trail, distinguishable by their
// "type" field for downstream filtering:
//
//	{"type":"AUDIT","action":...,"details":{...},"success":...,"timestamp":...}
//	{"type":"SECURITY","event":...,"data":{...},"timestamp":...}
//
// AUDIT records cover gated operations (file reads, policy updates);
// SECURITY records cover security-relevant events (violations, login
// failures, lockouts). Timestamps are ISO-8601.
//
// Records are produced from several goroutines (the input hook's
// deferred queue, the process guard loop, the IPC handlers) but
// written by exactly one: Trail serializes everything through a
// single consumer goroutine so sink lines never interleave.
package audit

import (
	"encoding/json"
	"time"
)

// Record is one audit trail entry.
type Record struct {
	// Type is "AUDIT" or "SECURITY".
	Type string

	// Timestamp is when the event happened (not when it was written).
	Timestamp time.Time

	// Name is the action (AUDIT) or event (SECURITY) identifier.
	Name string

	// Success is meaningful for AUDIT records only.
	Success bool

	// Payload carries the structured details (AUDIT) or data
	// (SECURITY).
	Payload map[string]any
}

const (
	TypeAudit    = "AUDIT"
	TypeSecurity = "SECURITY"
)

// Action builds an AUDIT record stamped with the given time.
func Action(at time.Time, action string, details map[string]any, success bool) Record {
	return Record{
		Type:      TypeAudit,
		Timestamp: at,
		Name:      action,
		Success:   success,
		Payload:   details,
	}
}

// Security builds a SECURITY record stamped with the given time.
func Security(at time.Time, event string, data map[string]any) Record {
	return Record{
		Type:      TypeSecurity,
		Timestamp: at,
		Name:      event,
		Payload:   data,
	}
}

// auditLine and securityLine fix the wire field names for the two
// record shapes.
type auditLine struct {
	Type      string         `json:"type"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	Success   bool           `json:"success"`
	Timestamp string         `json:"timestamp"`
}

type securityLine struct {
	Type      string         `json:"type"`
	Event     string         `json:"event"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// MarshalJSON renders the record in its wire shape.
func (r Record) MarshalJSON() ([]byte, error) {
	timestamp := r.Timestamp.UTC().Format(time.RFC3339Nano)
	if r.Type == TypeSecurity {
		return json.Marshal(securityLine{
			Type:      TypeSecurity,
			Event:     r.Name,
			Data:      r.Payload,
			Timestamp: timestamp,
		})
	}
	return json.Marshal(auditLine{
		Type:      TypeAudit,
		Action:    r.Name,
		Details:   r.Payload,
		Success:   r.Success,
		Timestamp: timestamp,
	})
}

// UnmarshalJSON accepts either wire shape.
func (r *Record) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	if probe.Type == TypeSecurity {
		var line securityLine
		if err := json.Unmarshal(data, &line); err != nil {
			return err
		}
		timestamp, err := time.Parse(time.RFC3339Nano, line.Timestamp)
		if err != nil {
			return err
		}
		*r = Record{Type: TypeSecurity, Timestamp: timestamp, Name: line.Event, Payload: line.Data}
		return nil
	}

	var line auditLine
	if err := json.Unmarshal(data, &line); err != nil {
		return err
	}
	timestamp, err := time.Parse(time.RFC3339Nano, line.Timestamp)
	if err != nil {
		return err
	}
	*r = Record{Type: TypeAudit, Timestamp: timestamp, Name: line.Action, Success: line.Success, Payload: line.Details}
	return nil
}
