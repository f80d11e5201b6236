// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink appends records as JSON lines to a single file, one object
// per line. Rotation is the deployment's concern; the sink only
// honors the line contract.
type FileSink struct {
	file *os.File
}

// NewFileSink opens (or creates) the audit log file in append mode
// with owner-only permissions.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return &FileSink{file: file}, nil
}

// Write implements Sink.
func (s *FileSink) Write(record Record) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling audit record: %w", err)
	}
	line = append(line, '\n')
	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("appending audit record: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	return s.file.Close()
}
