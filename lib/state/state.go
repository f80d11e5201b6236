// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

// Package state owns the kiosk's SQLite state database: the durable
// audit trail and the admin authentication record (credential hash,
// failed-attempt counter, lockout deadline).
//
// Lockout state lives here rather than in memory so a process restart
// cannot reset an attacker's failed-attempt counter — an in-memory
// counter turns "reboot the kiosk" into a lockout bypass.
//
// The store wraps a fixed-size connection pool with WAL pragmas.
// SQLite serializes writes internally; the extra connections serve
// concurrent readers (audit queries while the trail keeps appending).
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/MMI122/RestrictedIDE/lib/audit"
)

// Store is the kiosk state database. Safe for concurrent use;
// individual connections are not, so every operation takes and
// returns its own pooled connection.
type Store struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	recorded_at TEXT NOT NULL,
	record_type TEXT NOT NULL,
	name        TEXT NOT NULL,
	success     INTEGER NOT NULL DEFAULT 0,
	payload     TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS audit_log_recorded_at ON audit_log (recorded_at);
CREATE INDEX IF NOT EXISTS audit_log_record_type ON audit_log (record_type);

CREATE TABLE IF NOT EXISTS admin_auth (
	id              INTEGER PRIMARY KEY CHECK (id = 1),
	credential_hash TEXT NOT NULL,
	failed_attempts INTEGER NOT NULL DEFAULT 0,
	locked_until    TEXT NOT NULL DEFAULT '',
	updated_at      TEXT NOT NULL
);
`

// Open opens (or creates) the state database at path. Use ":memory:"
// with PoolSize 1 in tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	return open(path, 0, logger)
}

// OpenMemory opens an in-memory store for tests. Pool size is pinned
// to 1: each in-memory connection is an independent database.
func OpenMemory(logger *slog.Logger) (*Store, error) {
	return open("file::memory:?mode=memory&cache=shared", 1, logger)
}

func open(path string, poolSize int, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("state: path is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			pragmas := []string{
				"PRAGMA journal_mode=WAL",
				"PRAGMA synchronous=NORMAL",
				"PRAGMA busy_timeout=5000",
				"PRAGMA foreign_keys=OFF",
				"PRAGMA temp_store=MEMORY",
			}
			for _, pragma := range pragmas {
				if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
					return fmt.Errorf("state: %s: %w", pragma, err)
				}
			}
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("state: opening %s: %w", path, err)
	}

	logger.Info("state database opened", "path", path, "pool_size", poolSize)
	return &Store{pool: pool, logger: logger, path: path}, nil
}

// Close closes the pool. Blocks until borrowed connections return.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("state: closing %s: %w", s.path, err)
	}
	return nil
}

// Write implements audit.Sink: appends one record to the audit_log
// table. Called only from the trail's single consumer goroutine.
func (s *Store) Write(record audit.Record) error {
	payload, err := json.Marshal(record.Payload)
	if err != nil {
		return fmt.Errorf("state: marshaling audit payload: %w", err)
	}

	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return fmt.Errorf("state: take: %w", err)
	}
	defer s.pool.Put(conn)

	success := 0
	if record.Success {
		success = 1
	}
	err = sqlitex.Execute(conn,
		`INSERT INTO audit_log (recorded_at, record_type, name, success, payload)
		 VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				record.Timestamp.UTC().Format(time.RFC3339Nano),
				record.Type,
				record.Name,
				success,
				string(payload),
			},
		})
	if err != nil {
		return fmt.Errorf("state: inserting audit record: %w", err)
	}
	return nil
}

// RecentAudit returns up to limit records, newest first. typeFilter
// restricts to "AUDIT" or "SECURITY" when non-empty.
func (s *Store) RecentAudit(ctx context.Context, limit int, typeFilter string) ([]audit.Record, error) {
	if limit <= 0 {
		limit = 100
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("state: take: %w", err)
	}
	defer s.pool.Put(conn)

	query := `SELECT recorded_at, record_type, name, success, payload
	          FROM audit_log`
	args := []any{}
	if typeFilter != "" {
		query += ` WHERE record_type = ?`
		args = append(args, typeFilter)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	var records []audit.Record
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			record, err := scanRecord(stmt)
			if err != nil {
				return err
			}
			records = append(records, record)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("state: querying audit log: %w", err)
	}
	return records, nil
}

// ExportAudit streams every record, oldest first, to visit. Used by
// the admin CLI's export path so the whole trail never sits in
// memory at once.
func (s *Store) ExportAudit(ctx context.Context, visit func(audit.Record) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("state: take: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`SELECT recorded_at, record_type, name, success, payload
		 FROM audit_log ORDER BY id ASC`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record, err := scanRecord(stmt)
				if err != nil {
					return err
				}
				return visit(record)
			},
		})
	if err != nil {
		return fmt.Errorf("state: exporting audit log: %w", err)
	}
	return nil
}

func scanRecord(stmt *sqlite.Stmt) (audit.Record, error) {
	timestamp, err := time.Parse(time.RFC3339Nano, stmt.ColumnText(0))
	if err != nil {
		return audit.Record{}, fmt.Errorf("state: parsing recorded_at: %w", err)
	}
	var payload map[string]any
	if text := stmt.ColumnText(4); text != "" && text != "null" {
		if err := json.Unmarshal([]byte(text), &payload); err != nil {
			return audit.Record{}, fmt.Errorf("state: parsing payload: %w", err)
		}
	}
	return audit.Record{
		Type:      stmt.ColumnText(1),
		Timestamp: timestamp,
		Name:      stmt.ColumnText(2),
		Success:   stmt.ColumnInt(3) == 1,
		Payload:   payload,
	}, nil
}
