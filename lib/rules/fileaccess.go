// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/MMI122/RestrictedIDE/lib/pattern"
	"github.com/MMI122/RestrictedIDE/lib/policy"
)

// Operation is a file operation being gated.
type Operation string

const (
	OpRead   Operation = "read"
	OpWrite  Operation = "write"
	OpDelete Operation = "delete"
	OpList   Operation = "list"
)

// FileAccess evaluates file paths against the fileAccess policy
// section. Paths are compared case-insensitively after cleaning —
// correct for case-insensitive filesystems; on a case-sensitive
// filesystem this is strictly more restrictive for the deny list and
// slightly more permissive for the sandbox prefix, so pair it with a
// lower-cased sandbox root there.
type FileAccess struct {
	mode              policy.Mode
	sandboxRoot       string
	allowedExtensions map[string]struct{}
	maxFileSize       int64
	allowedPaths      *pattern.PrefixList
	deniedPaths       *pattern.PrefixList
}

// NewFileAccess compiles the file access evaluator.
func NewFileAccess(config policy.FileAccessRules) *FileAccess {
	extensions := make(map[string]struct{}, len(config.AllowedExtensions))
	for _, extension := range config.AllowedExtensions {
		normalized := strings.ToLower(strings.TrimSpace(extension))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		extensions[normalized] = struct{}{}
	}

	return &FileAccess{
		mode:              config.Mode,
		sandboxRoot:       pattern.CanonicalPath(config.SandboxPath),
		allowedExtensions: extensions,
		maxFileSize:       config.MaxFileSize,
		allowedPaths:      pattern.NewPrefixList(config.AllowedPaths),
		deniedPaths:       pattern.NewPrefixList(config.DeniedPaths),
	}
}

// EvaluatePath runs the path decision tree. The checks run in a fixed
// order — cheapest and most dangerous first:
//
//  1. empty input
//  2. traversal segments in the RAW input (before normalization, so
//     a "/sandbox/../etc/passwd" that normalizes back in bounds is
//     still rejected — the author's intent was escape)
//  3. normalization + case folding
//  4. deny-list prefixes (these win regardless of mode)
//  5. extension restriction (applies in every mode)
//  6. mode dispatch (sandbox / whitelist / blacklist)
func (r *FileAccess) EvaluatePath(rawPath string, operation Operation) Verdict {
	if strings.TrimSpace(rawPath) == "" {
		return Deny("Invalid file path")
	}

	if hasTraversalSegment(rawPath) {
		return Deny("Path traversal not allowed")
	}

	canonical := pattern.CanonicalPath(rawPath)

	if prefix, hit := r.deniedPaths.Contains(canonical); hit {
		return Deny("Access denied to path: " + prefix)
	}

	if extension := filepath.Ext(canonical); extension != "" && len(r.allowedExtensions) > 0 {
		if _, ok := r.allowedExtensions[extension]; !ok {
			return Deny("extension not allowed: " + extension)
		}
	}

	switch r.mode {
	case policy.SandboxMode:
		if r.sandboxRoot == "" {
			// Fail closed: a sandbox with no root confines nothing,
			// so it must allow nothing.
			return Deny("Sandbox path not configured")
		}
		if underPrefix(canonical, r.sandboxRoot) {
			return Allow()
		}
		if _, hit := r.allowedPaths.Contains(canonical); hit {
			return Allow()
		}
		return Deny("Path outside sandbox")

	case policy.Whitelist:
		if _, hit := r.allowedPaths.Contains(canonical); hit {
			return Allow()
		}
		return Deny("Path not in whitelist")

	case policy.Blacklist:
		// Deny list already checked above.
		return Allow()

	default:
		return Deny("File access rule misconfigured")
	}
}

// ValidateSize is the independent size gate applied before accepting
// written content. Not part of the path decision.
func (r *FileAccess) ValidateSize(bytes int64) Verdict {
	if bytes < 0 {
		return Deny("Invalid file size")
	}
	if r.maxFileSize > 0 && bytes > r.maxFileSize {
		return Deny(fmt.Sprintf("File size exceeds limit (%d > %d bytes)", bytes, r.maxFileSize))
	}
	return Allow()
}

// SandboxRoot returns the canonical sandbox root ("" when not
// configured).
func (r *FileAccess) SandboxRoot() string { return r.sandboxRoot }

// hasTraversalSegment reports whether the raw path contains a ".."
// segment under either separator convention. Checked on the raw
// string deliberately; see EvaluatePath.
func hasTraversalSegment(rawPath string) bool {
	for _, segment := range strings.FieldsFunc(rawPath, func(r rune) bool {
		return r == '/' || r == '\\'
	}) {
		if segment == ".." {
			return true
		}
	}
	return false
}

// underPrefix reports whether the canonical path equals the prefix or
// sits below it on a segment boundary.
func underPrefix(canonicalPath, prefix string) bool {
	if canonicalPath == prefix {
		return true
	}
	return strings.HasPrefix(canonicalPath, prefix+string(filepath.Separator))
}
