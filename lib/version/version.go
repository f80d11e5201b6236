// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the build identity of the kiosk binaries.
//
// Tagged builds are stamped by the release pipeline:
//
//	go build -ldflags "-X github.com/MMI122/RestrictedIDE/lib/version.Commit=$(git rev-parse --short HEAD)"
//
// Unstamped builds fall back to the VCS metadata the Go toolchain
// embeds, so a plain `go build` still identifies itself.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Stamped at link time; see the package comment.
var (
	// Release is the semantic version, set for tagged releases.
	Release = "0.1.0-dev"

	// Commit is the short git SHA of the build.
	Commit = ""

	// BuildTime is the UTC timestamp of the build.
	BuildTime = ""
)

// Info renders the one-line string behind --version.
func Info() string {
	parts := []string{Release}
	if commit := buildCommit(); commit != "" {
		parts = append(parts, commit)
	}
	if BuildTime != "" {
		parts = append(parts, BuildTime)
	}
	return fmt.Sprintf("%s [%s, %s/%s]",
		strings.Join(parts, " "), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// buildCommit prefers the stamped commit, then the toolchain-embedded
// VCS revision. A locally modified tree gets a "+" suffix.
func buildCommit() string {
	if Commit != "" {
		return Commit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	revision, modified := "", false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if revision == "" {
		return ""
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	if modified {
		revision += "+"
	}
	return revision
}
