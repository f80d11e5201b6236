// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

// Package session owns admin authentication: credential verification,
// failed-attempt lockout, opaque session tokens, and the one-way
// exit-requested flag the enforcement layers consult before honoring
// any shutdown.
//
// Lockout state is persisted through the state store so restarting
// the daemon does not reset an attacker's counter. Tokens are held
// only as BLAKE3 hashes; the plaintext token exists in the login
// response and nowhere else.
package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/MMI122/RestrictedIDE/lib/audit"
	"github.com/MMI122/RestrictedIDE/lib/clock"
	"github.com/MMI122/RestrictedIDE/lib/state"
)

// Config holds the tunable session parameters.
type Config struct {
	// SessionTimeout is how long a login stays valid.
	SessionTimeout time.Duration

	// MaxFailedAttempts is the consecutive-failure count that
	// triggers a lockout.
	MaxFailedAttempts int

	// LockoutDuration is how long logins are refused after the
	// failure threshold is reached.
	LockoutDuration time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		SessionTimeout:    30 * time.Minute,
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
	}
}

func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = defaults.SessionTimeout
	}
	if c.MaxFailedAttempts <= 0 {
		c.MaxFailedAttempts = defaults.MaxFailedAttempts
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = defaults.LockoutDuration
	}
}

// LoginResult is the admin login response.
type LoginResult struct {
	Success           bool      `json:"success"`
	Token             string    `json:"token,omitempty"`
	ExpiresAt         time.Time `json:"expiresAt,omitzero"`
	Error             string    `json:"error,omitempty"`
	AttemptsRemaining int       `json:"attemptsRemaining,omitempty"`
}

// Session is the runtime admin session. Safe for concurrent use.
type Session struct {
	config Config
	store  *state.Store
	clock  clock.Clock
	logger *slog.Logger
	trail  *audit.Trail

	mu            sync.Mutex
	authenticated bool
	tokenHash     []byte
	expiresAt     time.Time
	stopTimer     func() bool
	exitRequested bool
}

// New creates a session manager backed by store. trail may be nil.
func New(config Config, store *state.Store, clk clock.Clock, trail *audit.Trail, logger *slog.Logger) *Session {
	config.applyDefaults()
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		config: config,
		store:  store,
		clock:  clk,
		logger: logger,
		trail:  trail,
	}
}

// Bootstrap ensures a stored credential exists. When none does it
// generates a random one, persists its hash, and returns the
// plaintext so the caller can surface it exactly once. The generated
// credential must be rotated; running on it forever is the weak spot.
func (s *Session) Bootstrap(ctx context.Context) (generated string, err error) {
	_, ok, err := s.store.LoadAuth(ctx)
	if err != nil {
		return "", fmt.Errorf("loading auth record: %w", err)
	}
	if ok {
		return "", nil
	}

	raw := make([]byte, 12)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating bootstrap credential: %w", err)
	}
	password := hex.EncodeToString(raw)

	hash, err := HashCredential(password)
	if err != nil {
		return "", fmt.Errorf("hashing bootstrap credential: %w", err)
	}
	if err := s.store.SaveCredential(ctx, hash); err != nil {
		return "", fmt.Errorf("persisting bootstrap credential: %w", err)
	}

	s.logger.Warn("no admin credential found; generated a bootstrap credential",
		"action_required", "rotate this credential immediately")
	s.record("SECURITY", "bootstrap_credential_generated", nil, true)
	return password, nil
}

// SetCredential replaces the stored credential. Requires an
// authenticated session token.
func (s *Session) SetCredential(ctx context.Context, token, newPassword string) error {
	if !s.Validate(token) {
		return fmt.Errorf("not authenticated")
	}
	if len(newPassword) < 8 {
		return fmt.Errorf("credential must be at least 8 characters")
	}
	hash, err := HashCredential(newPassword)
	if err != nil {
		return fmt.Errorf("hashing credential: %w", err)
	}
	if err := s.store.SaveCredential(ctx, hash); err != nil {
		return fmt.Errorf("persisting credential: %w", err)
	}
	s.record("AUDIT", "credential_rotated", nil, true)
	return nil
}

// Login verifies password and on success issues a fresh token. The
// hash verification runs outside the session lock; only the state
// transition is serialized.
func (s *Session) Login(ctx context.Context, password string) LoginResult {
	now := s.clock.Now()

	record, ok, err := s.store.LoadAuth(ctx)
	if err != nil {
		s.logger.Error("loading auth record", "error", err)
		return LoginResult{Error: "authentication unavailable"}
	}
	if !ok {
		return LoginResult{Error: "no admin credential configured"}
	}

	if now.Before(record.LockedUntil) {
		remaining := record.LockedUntil.Sub(now).Round(time.Second)
		s.record("SECURITY", "login_rejected_lockout", map[string]any{
			"remaining": remaining.String(),
		}, false)
		return LoginResult{Error: fmt.Sprintf("locked out; try again in %s", remaining)}
	}

	verified, err := VerifyCredential(password, record.CredentialHash)
	if err != nil {
		s.logger.Error("verifying credential", "error", err)
		return LoginResult{Error: "authentication unavailable"}
	}
	if !verified {
		return s.loginFailed(ctx, record, now)
	}

	if err := s.store.ResetAuthFailures(ctx); err != nil {
		s.logger.Error("resetting auth failures", "error", err)
	}

	token, tokenHash, err := newToken()
	if err != nil {
		s.logger.Error("generating session token", "error", err)
		return LoginResult{Error: "authentication unavailable"}
	}
	expiresAt := now.Add(s.config.SessionTimeout)

	s.mu.Lock()
	if s.stopTimer != nil {
		// A stale timer from a previous login must not fire into
		// this newer session.
		s.stopTimer()
	}
	s.authenticated = true
	s.tokenHash = tokenHash
	s.expiresAt = expiresAt
	s.stopTimer = s.clock.AfterFunc(s.config.SessionTimeout, func() {
		s.expire(tokenHash)
	})
	s.mu.Unlock()

	s.record("AUDIT", "admin_login", nil, true)
	s.logger.Info("admin session opened", "expires_at", expiresAt)
	return LoginResult{Success: true, Token: token, ExpiresAt: expiresAt}
}

func (s *Session) loginFailed(ctx context.Context, record state.AuthRecord, now time.Time) LoginResult {
	attempts := record.FailedAttempts + 1
	lockedUntil := time.Time{}
	if attempts >= s.config.MaxFailedAttempts {
		lockedUntil = now.Add(s.config.LockoutDuration)
	}
	if err := s.store.SaveAuthFailure(ctx, attempts, lockedUntil); err != nil {
		s.logger.Error("persisting auth failure", "error", err)
	}

	s.record("SECURITY", "login_failed", map[string]any{
		"failed_attempts": attempts,
	}, false)

	if !lockedUntil.IsZero() {
		s.logger.Warn("admin lockout engaged", "until", lockedUntil)
		return LoginResult{Error: fmt.Sprintf("locked out; try again in %s",
			s.config.LockoutDuration.Round(time.Second))}
	}
	return LoginResult{
		Error:             "invalid credentials",
		AttemptsRemaining: s.config.MaxFailedAttempts - attempts,
	}
}

// expire is the timer callback. tokenHash identifies which login the
// timer belongs to; a timer raced against a newer login is a no-op.
func (s *Session) expire(tokenHash []byte) {
	s.mu.Lock()
	if !s.authenticated || subtle.ConstantTimeCompare(s.tokenHash, tokenHash) != 1 {
		s.mu.Unlock()
		return
	}
	s.clearLocked()
	s.mu.Unlock()
	s.record("AUDIT", "admin_session_expired", nil, true)
	s.logger.Info("admin session expired")
}

// Logout ends the session. Returns false when no session was active.
func (s *Session) Logout() bool {
	s.mu.Lock()
	wasAuthenticated := s.authenticated
	s.clearLocked()
	s.mu.Unlock()
	if wasAuthenticated {
		s.record("AUDIT", "admin_logout", nil, true)
	}
	return wasAuthenticated
}

// clearLocked resets session state. Caller holds s.mu.
func (s *Session) clearLocked() {
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
	s.authenticated = false
	s.tokenHash = nil
	s.expiresAt = time.Time{}
}

// IsAuthenticated reports whether a session is active. An expired
// session is logged out here as a side effect: expiry is enforced on
// read, not only by the timer, so a stalled timer cannot extend a
// session.
func (s *Session) IsAuthenticated() bool {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authenticated {
		return false
	}
	if !now.Before(s.expiresAt) {
		s.clearLocked()
		return false
	}
	return true
}

// Validate reports whether token matches the active session. The
// comparison is against the stored BLAKE3 hash.
func (s *Session) Validate(token string) bool {
	if !s.IsAuthenticated() {
		return false
	}
	sum := blake3.Sum256([]byte(token))
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated && subtle.ConstantTimeCompare(sum[:], s.tokenHash) == 1
}

// RequestExit sets the one-way exit flag. Only an authenticated
// session may request exit; the flag never clears once set.
func (s *Session) RequestExit() bool {
	if !s.IsAuthenticated() {
		s.record("SECURITY", "exit_request_denied", nil, false)
		return false
	}
	s.mu.Lock()
	s.exitRequested = true
	s.mu.Unlock()
	s.record("AUDIT", "exit_requested", nil, true)
	s.logger.Info("exit requested by admin")
	return true
}

// ExitRequested reports whether an authenticated admin has approved
// shutdown. Lifecycle hooks must refuse to tear enforcement down
// while this is false.
func (s *Session) ExitRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitRequested
}

func (s *Session) record(recordType, name string, payload map[string]any, success bool) {
	if s.trail == nil {
		return
	}
	if recordType == audit.TypeSecurity {
		s.trail.Submit(audit.Security(s.clock.Now(), name, payload))
		return
	}
	s.trail.Submit(audit.Action(s.clock.Now(), name, payload, success))
}

// newToken returns a fresh opaque token and its BLAKE3 hash.
func newToken() (token string, hash []byte, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("generating token: %w", err)
	}
	token = hex.EncodeToString(raw)
	sum := blake3.Sum256([]byte(token))
	return token, sum[:], nil
}
