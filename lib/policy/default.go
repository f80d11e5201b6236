// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package policy

// Builtin returns the built-in default policy: the layer every
// deployment starts from before the installed default file and the
// user override file are folded in. It is deliberately restrictive —
// a kiosk that loses its policy files must degrade toward denial,
// not permission.
func Builtin() Policy {
	return Policy{
		Version:     "1",
		Name:        "builtin",
		Description: "Built-in restrictive defaults",
		URLs: URLRules{
			Mode: Whitelist,
			// No patterns: whitelist mode with an empty list denies
			// every URL until a policy file grants some.
		},
		Keyboard: KeyboardRules{
			Mode: Blacklist,
			Blocked: map[string]string{
				"Alt+Tab":        "Window switching",
				"Alt+F4":         "Window close",
				"Ctrl+Alt+Del":   "Security screen",
				"Ctrl+Esc":       "System menu",
				"Meta":           "System launcher",
				"Meta+D":         "Show desktop",
				"Meta+R":         "Run dialog",
				"Ctrl+Shift+Esc": "Task manager",
				"F11":            "Fullscreen toggle",
			},
		},
		Processes: ProcessRules{
			Mode: Whitelist,
		},
		FileAccess: FileAccessRules{
			Mode: SandboxMode,
			// SandboxPath intentionally empty here: the runtime
			// resolves it from configuration. Until it does, sandbox
			// mode fails closed.
			AllowedExtensions: []string{".txt", ".md", ".py", ".js", ".html", ".css", ".json"},
			MaxFileSize:       10 << 20,
			DeniedPaths:       []string{"/etc", "/root", "/boot", "/proc", "/sys"},
		},
		Time: TimeRules{
			Enabled: false,
		},
	}
}
