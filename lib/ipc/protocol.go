// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipc carries admin and UI requests between the kiosk daemon
// and its clients over a Unix socket, CBOR-encoded. Every gated
// operation returns the {success, data?, error?} shape; error holds
// the policy verdict's reason on denial, never raw internal error
// text.
package ipc

// Operation names. The daemon rejects unknown operations.
const (
	OpLogin        = "login"
	OpLogout       = "logout"
	OpCheckSession = "checkSession"
	OpRequestExit  = "requestExit"

	OpPolicyGet    = "policy.get"
	OpPolicyUpdate = "policy.update"

	OpValidateURL = "validate.url"

	OpFileRead   = "file.read"
	OpFileWrite  = "file.write"
	OpFileDelete = "file.delete"
	OpFileList   = "file.list"

	OpAuditRecent = "audit.recent"
	OpAuditExport = "audit.export"

	OpStatus = "status"
)

// Request is one client request.
type Request struct {
	// Op selects the operation.
	Op string `cbor:"op"`

	// Token is the admin session token. Required for privileged
	// operations (policy update, exit, audit access).
	Token string `cbor:"token,omitempty"`

	// Payload is the operation-specific body, decoded by the
	// handler once Op is known.
	Payload RawMessage `cbor:"payload,omitempty"`
}

// Response is the uniform reply shape.
type Response struct {
	Success bool       `cbor:"success"`
	Data    RawMessage `cbor:"data,omitempty"`
	Error   string     `cbor:"error,omitempty"`
}

// Deny builds a failure response with the given reason.
func Deny(reason string) Response {
	return Response{Error: reason}
}

// OK builds a success response carrying data. data may be nil.
func OK(data any) (Response, error) {
	if data == nil {
		return Response{Success: true}, nil
	}
	encoded, err := Marshal(data)
	if err != nil {
		return Response{}, err
	}
	return Response{Success: true, Data: encoded}, nil
}

// LoginRequest is the payload for OpLogin.
type LoginRequest struct {
	Password string `cbor:"password"`
}

// FileRequest is the payload for the file operations.
type FileRequest struct {
	Path    string `cbor:"path"`
	Content []byte `cbor:"content,omitempty"`
}

// URLRequest is the payload for OpValidateURL.
type URLRequest struct {
	URL string `cbor:"url"`
}

// AuditRequest is the payload for OpAuditRecent.
type AuditRequest struct {
	Limit int    `cbor:"limit,omitempty"`
	Type  string `cbor:"type,omitempty"`
}

// Status is the payload of a successful OpStatus response.
type Status struct {
	Environment    string `cbor:"environment"`
	PolicyName     string `cbor:"policyName"`
	PolicyVersion  string `cbor:"policyVersion"`
	Interception   string `cbor:"interception"`
	GuardRunning   bool   `cbor:"guardRunning"`
	Authenticated  bool   `cbor:"authenticated"`
	ExitRequested  bool   `cbor:"exitRequested"`
	DroppedRecords uint64 `cbor:"droppedRecords"`
}
