// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/jsonc"
)

// Overlay is a partial policy layer as read from a policy file or an
// admin update request. Every field is a pointer (or a map/slice,
// which can be nil) so that "not mentioned" is distinguishable from
// "set to the zero value". Merge treats nil and empty-string fields
// as absent: cross-platform policy files ship with empty placeholder
// fields that must never clobber a resolved runtime default.
//
// Unknown top-level keys in policy files are ignored for forward
// compatibility.
type Overlay struct {
	Version     *string          `json:"version"`
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	URLs        *URLOverlay      `json:"urls"`
	Keyboard    *KeyboardOverlay `json:"keyboard"`
	Processes   *ProcessOverlay  `json:"processes"`
	FileAccess  *FileAccessOverlay `json:"fileAccess"`
	Time        *TimeOverlay     `json:"time"`
}

// URLOverlay is a partial URLRules layer.
type URLOverlay struct {
	Mode     *Mode    `json:"mode"`
	Patterns []string `json:"patterns"`
}

// KeyboardOverlay is a partial KeyboardRules layer.
type KeyboardOverlay struct {
	Mode    *Mode             `json:"mode"`
	Blocked map[string]string `json:"blocked"`
	Allowed map[string]string `json:"allowed"`
}

// ProcessOverlay is a partial ProcessRules layer.
type ProcessOverlay struct {
	Mode    *Mode    `json:"mode"`
	Allowed []string `json:"allowed"`
	Blocked []string `json:"blocked"`
}

// FileAccessOverlay is a partial FileAccessRules layer.
type FileAccessOverlay struct {
	Mode              *Mode    `json:"mode"`
	SandboxPath       *string  `json:"sandboxPath"`
	AllowedExtensions []string `json:"allowedExtensions"`
	MaxFileSize       *int64   `json:"maxFileSize"`
	AllowedPaths      []string `json:"allowedPaths"`
	DeniedPaths       []string `json:"deniedPaths"`
}

// TimeOverlay is a partial TimeRules layer.
type TimeOverlay struct {
	Enabled  *bool            `json:"enabled"`
	Schedule *ScheduleOverlay `json:"schedule"`
}

// ScheduleOverlay is a partial Schedule layer.
type ScheduleOverlay struct {
	Days      []int   `json:"days"`
	StartTime *string `json:"startTime"`
	EndTime   *string `json:"endTime"`
}

// ParseOverlay parses a policy layer from file bytes. Policy files
// may carry // and /* */ comments plus trailing commas; they are
// stripped before JSON decoding.
func ParseOverlay(data []byte) (*Overlay, error) {
	var overlay Overlay
	if err := json.Unmarshal(jsonc.ToJSON(data), &overlay); err != nil {
		return nil, fmt.Errorf("parsing policy layer: %w", err)
	}
	return &overlay, nil
}
