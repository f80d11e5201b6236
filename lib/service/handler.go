// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/klauspost/compress/zstd"

	"github.com/MMI122/RestrictedIDE/lib/audit"
	"github.com/MMI122/RestrictedIDE/lib/ipc"
	"github.com/MMI122/RestrictedIDE/lib/policy"
	"github.com/MMI122/RestrictedIDE/lib/sandbox"
)

// Handler returns the admin socket dispatch function.
func (m *Manager) Handler() ipc.Handler {
	return func(request ipc.Request) ipc.Response {
		switch request.Op {
		case ipc.OpLogin:
			return m.handleLogin(request)
		case ipc.OpLogout:
			return m.handleLogout(request)
		case ipc.OpCheckSession:
			return m.handleCheckSession(request)
		case ipc.OpRequestExit:
			return m.handleRequestExit(request)
		case ipc.OpPolicyGet:
			return m.handlePolicyGet(request)
		case ipc.OpPolicyUpdate:
			return m.handlePolicyUpdate(request)
		case ipc.OpValidateURL:
			return m.handleValidateURL(request)
		case ipc.OpFileRead, ipc.OpFileWrite, ipc.OpFileDelete, ipc.OpFileList:
			return m.handleFile(request)
		case ipc.OpAuditRecent:
			return m.handleAuditRecent(request)
		case ipc.OpAuditExport:
			return m.handleAuditExport(request)
		case ipc.OpStatus:
			return m.handleStatus()
		default:
			return ipc.Deny("unknown operation")
		}
	}
}

// requireAdmin gates privileged operations on a valid session token.
func (m *Manager) requireAdmin(request ipc.Request) (ipc.Response, bool) {
	if !m.session.Validate(request.Token) {
		return ipc.Deny("not authenticated"), false
	}
	return ipc.Response{}, true
}

func (m *Manager) handleLogin(request ipc.Request) ipc.Response {
	var payload ipc.LoginRequest
	if err := ipc.Unmarshal(request.Payload, &payload); err != nil {
		return ipc.Deny("malformed login request")
	}

	result := m.session.Login(context.Background(), payload.Password)
	response, err := ipc.OK(result)
	if err != nil {
		return ipc.Deny("encoding response")
	}
	response.Success = result.Success
	response.Error = result.Error
	return response
}

func (m *Manager) handleLogout(ipc.Request) ipc.Response {
	loggedOut := m.session.Logout()
	response, _ := ipc.OK(loggedOut)
	return response
}

func (m *Manager) handleCheckSession(request ipc.Request) ipc.Response {
	response, _ := ipc.OK(m.session.Validate(request.Token))
	return response
}

func (m *Manager) handleRequestExit(request ipc.Request) ipc.Response {
	if response, ok := m.requireAdmin(request); !ok {
		return response
	}
	if !m.session.RequestExit() {
		return ipc.Deny("exit request rejected")
	}
	response, _ := ipc.OK(nil)
	return response
}

func (m *Manager) handlePolicyGet(request ipc.Request) ipc.Response {
	if response, ok := m.requireAdmin(request); !ok {
		return response
	}
	response, err := ipc.OK(m.engine.Policy())
	if err != nil {
		return ipc.Deny("encoding policy")
	}
	return response
}

func (m *Manager) handlePolicyUpdate(request ipc.Request) ipc.Response {
	if response, ok := m.requireAdmin(request); !ok {
		return response
	}

	// The payload is the policy fragment as JSON file bytes, so the
	// admin CLI can push a policy file unmodified (comments included).
	var fragmentBytes []byte
	if err := ipc.Unmarshal(request.Payload, &fragmentBytes); err != nil {
		return ipc.Deny("malformed policy update")
	}
	fragment, err := policy.ParseOverlay(fragmentBytes)
	if err != nil {
		return ipc.Deny("invalid policy file: " + err.Error())
	}
	if err := m.engine.UpdatePolicy(fragment); err != nil {
		return ipc.Deny(err.Error())
	}

	// Re-sync the native services with the new snapshot. The guard
	// sweeps immediately instead of waiting out its interval.
	m.interceptor.SetBlockedCombinations(m.engine.BlockedCombos())
	m.guard.Sweep(nil)

	response, _ := ipc.OK(nil)
	return response
}

func (m *Manager) handleValidateURL(request ipc.Request) ipc.Response {
	var payload ipc.URLRequest
	if err := ipc.Unmarshal(request.Payload, &payload); err != nil {
		return ipc.Deny("malformed request")
	}
	if !m.engine.ValidateURL(payload.URL) {
		return ipc.Deny("URL blocked by policy")
	}
	response, _ := ipc.OK(nil)
	return response
}

func (m *Manager) handleFile(request ipc.Request) ipc.Response {
	var payload ipc.FileRequest
	if err := ipc.Unmarshal(request.Payload, &payload); err != nil {
		return ipc.Deny("malformed request")
	}

	result := m.fileOperation(request.Op, payload)
	if !result.Success {
		return ipc.Deny(result.Error)
	}
	response, err := ipc.OK(result.Data)
	if err != nil {
		return ipc.Deny("encoding response")
	}
	return response
}

func (m *Manager) fileOperation(op string, payload ipc.FileRequest) sandbox.Result {
	switch op {
	case ipc.OpFileRead:
		return m.sandbox.Read(payload.Path)
	case ipc.OpFileWrite:
		return m.sandbox.Write(payload.Path, payload.Content)
	case ipc.OpFileDelete:
		return m.sandbox.Delete(payload.Path)
	default:
		return m.sandbox.List(payload.Path)
	}
}

func (m *Manager) handleAuditRecent(request ipc.Request) ipc.Response {
	if response, ok := m.requireAdmin(request); !ok {
		return response
	}
	var payload ipc.AuditRequest
	if len(request.Payload) > 0 {
		if err := ipc.Unmarshal(request.Payload, &payload); err != nil {
			return ipc.Deny("malformed request")
		}
	}

	records, err := m.store.RecentAudit(context.Background(), payload.Limit, payload.Type)
	if err != nil {
		m.logger.Error("querying audit log", "error", err)
		return ipc.Deny("audit query failed")
	}
	lines := make([]json.RawMessage, 0, len(records))
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			continue
		}
		lines = append(lines, line)
	}
	response, err := ipc.OK(lines)
	if err != nil {
		return ipc.Deny("encoding response")
	}
	return response
}

// handleAuditExport streams the full trail, oldest first, as
// zstd-compressed JSONL.
func (m *Manager) handleAuditExport(request ipc.Request) ipc.Response {
	if response, ok := m.requireAdmin(request); !ok {
		return response
	}

	var buffer bytes.Buffer
	compressor, err := zstd.NewWriter(&buffer)
	if err != nil {
		return ipc.Deny("export failed")
	}

	exportErr := m.store.ExportAudit(context.Background(), func(record audit.Record) error {
		line, err := json.Marshal(record)
		if err != nil {
			return err
		}
		line = append(line, '\n')
		_, err = compressor.Write(line)
		return err
	})
	if closeErr := compressor.Close(); exportErr == nil {
		exportErr = closeErr
	}
	if exportErr != nil {
		m.logger.Error("exporting audit log", "error", exportErr)
		return ipc.Deny("export failed")
	}

	response, err := ipc.OK(buffer.Bytes())
	if err != nil {
		return ipc.Deny("encoding response")
	}
	return response
}

func (m *Manager) handleStatus() ipc.Response {
	active := m.engine.Policy()
	response, err := ipc.OK(ipc.Status{
		Environment:    string(m.cfg.Environment),
		PolicyName:     active.Name,
		PolicyVersion:  active.Version,
		Interception:   m.interceptor.State().String(),
		GuardRunning:   m.guard.Running(),
		Authenticated:  m.session.IsAuthenticated(),
		ExitRequested:  m.session.ExitRequested(),
		DroppedRecords: m.trail.Dropped(),
	})
	if err != nil {
		return ipc.Deny("encoding status")
	}
	return response
}
