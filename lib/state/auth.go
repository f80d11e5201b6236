// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// AuthRecord is the persisted admin authentication state. There is a
// single admin credential, so the table has exactly one row.
type AuthRecord struct {
	// CredentialHash is the encoded argon2id hash, never the
	// plaintext.
	CredentialHash string

	// FailedAttempts counts consecutive failed logins since the last
	// success.
	FailedAttempts int

	// LockedUntil is the lockout deadline; zero when not locked.
	LockedUntil time.Time
}

// LoadAuth returns the admin auth record, or ok=false when no
// credential has been bootstrapped yet.
func (s *Store) LoadAuth(ctx context.Context) (record AuthRecord, ok bool, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return AuthRecord{}, false, fmt.Errorf("state: take: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`SELECT credential_hash, failed_attempts, locked_until FROM admin_auth WHERE id = 1`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record.CredentialHash = stmt.ColumnText(0)
				record.FailedAttempts = stmt.ColumnInt(1)
				if text := stmt.ColumnText(2); text != "" {
					lockedUntil, parseErr := time.Parse(time.RFC3339Nano, text)
					if parseErr != nil {
						return fmt.Errorf("state: parsing locked_until: %w", parseErr)
					}
					record.LockedUntil = lockedUntil
				}
				ok = true
				return nil
			},
		})
	if err != nil {
		return AuthRecord{}, false, fmt.Errorf("state: loading auth record: %w", err)
	}
	return record, ok, nil
}

// SaveCredential stores a new credential hash and clears the failure
// state. Used at bootstrap and on credential rotation.
func (s *Store) SaveCredential(ctx context.Context, credentialHash string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("state: take: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO admin_auth (id, credential_hash, failed_attempts, locked_until, updated_at)
		 VALUES (1, ?, 0, '', ?)
		 ON CONFLICT (id) DO UPDATE SET
		   credential_hash = excluded.credential_hash,
		   failed_attempts = 0,
		   locked_until = '',
		   updated_at = excluded.updated_at`,
		&sqlitex.ExecOptions{
			Args: []any{credentialHash, time.Now().UTC().Format(time.RFC3339Nano)},
		})
	if err != nil {
		return fmt.Errorf("state: saving credential: %w", err)
	}
	return nil
}

// SaveAuthFailure persists the failure counter and lockout deadline
// after a failed login attempt.
func (s *Store) SaveAuthFailure(ctx context.Context, failedAttempts int, lockedUntil time.Time) error {
	locked := ""
	if !lockedUntil.IsZero() {
		locked = lockedUntil.UTC().Format(time.RFC3339Nano)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("state: take: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`UPDATE admin_auth SET failed_attempts = ?, locked_until = ?, updated_at = ? WHERE id = 1`,
		&sqlitex.ExecOptions{
			Args: []any{failedAttempts, locked, time.Now().UTC().Format(time.RFC3339Nano)},
		})
	if err != nil {
		return fmt.Errorf("state: saving auth failure: %w", err)
	}
	return nil
}

// ResetAuthFailures clears the failure counter and lockout after a
// successful login.
func (s *Store) ResetAuthFailures(ctx context.Context) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("state: take: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`UPDATE admin_auth SET failed_attempts = 0, locked_until = '', updated_at = ? WHERE id = 1`,
		&sqlitex.ExecOptions{
			Args: []any{time.Now().UTC().Format(time.RFC3339Nano)},
		})
	if err != nil {
		return fmt.Errorf("state: resetting auth failures: %w", err)
	}
	return nil
}
