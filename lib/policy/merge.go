// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package policy

// Merge folds an override layer onto a base policy and returns the
// result as a new value; neither input is modified.
//
// The rules, in order of importance:
//
//   - A nil section or nil field in the overlay leaves the base value
//     intact.
//   - A present but empty string never clobbers a populated base
//     value. Policy files ship with empty placeholder fields (an
//     empty sandboxPath, for instance) that must not wipe out a
//     correctly resolved runtime default.
//   - Arrays and maps replace wholesale — there is no element-wise
//     merge. An explicitly empty (but non-null) array clears the base
//     list; that is the documented way to drop inherited entries.
func Merge(base Policy, overlay *Overlay) Policy {
	merged := base
	if overlay == nil {
		return merged
	}

	mergeString(&merged.Version, overlay.Version)
	mergeString(&merged.Name, overlay.Name)
	mergeString(&merged.Description, overlay.Description)

	if section := overlay.URLs; section != nil {
		mergeMode(&merged.URLs.Mode, section.Mode)
		if section.Patterns != nil {
			merged.URLs.Patterns = cloneSlice(section.Patterns)
		}
	}

	if section := overlay.Keyboard; section != nil {
		mergeMode(&merged.Keyboard.Mode, section.Mode)
		if section.Blocked != nil {
			merged.Keyboard.Blocked = cloneMap(section.Blocked)
		}
		if section.Allowed != nil {
			merged.Keyboard.Allowed = cloneMap(section.Allowed)
		}
	}

	if section := overlay.Processes; section != nil {
		mergeMode(&merged.Processes.Mode, section.Mode)
		if section.Allowed != nil {
			merged.Processes.Allowed = cloneSlice(section.Allowed)
		}
		if section.Blocked != nil {
			merged.Processes.Blocked = cloneSlice(section.Blocked)
		}
	}

	if section := overlay.FileAccess; section != nil {
		mergeMode(&merged.FileAccess.Mode, section.Mode)
		mergeString(&merged.FileAccess.SandboxPath, section.SandboxPath)
		if section.AllowedExtensions != nil {
			merged.FileAccess.AllowedExtensions = cloneSlice(section.AllowedExtensions)
		}
		if section.MaxFileSize != nil {
			merged.FileAccess.MaxFileSize = *section.MaxFileSize
		}
		if section.AllowedPaths != nil {
			merged.FileAccess.AllowedPaths = cloneSlice(section.AllowedPaths)
		}
		if section.DeniedPaths != nil {
			merged.FileAccess.DeniedPaths = cloneSlice(section.DeniedPaths)
		}
	}

	if section := overlay.Time; section != nil {
		if section.Enabled != nil {
			merged.Time.Enabled = *section.Enabled
		}
		if section.Schedule != nil {
			schedule := Schedule{}
			if merged.Time.Schedule != nil {
				schedule = *merged.Time.Schedule
			}
			if section.Schedule.Days != nil {
				schedule.Days = append([]int(nil), section.Schedule.Days...)
			}
			mergeString(&schedule.StartTime, section.Schedule.StartTime)
			mergeString(&schedule.EndTime, section.Schedule.EndTime)
			merged.Time.Schedule = &schedule
		} else if merged.Time.Schedule != nil {
			// Detach from the base so the merged policy shares no
			// mutable state with it.
			schedule := *merged.Time.Schedule
			schedule.Days = append([]int(nil), schedule.Days...)
			merged.Time.Schedule = &schedule
		}
	}

	return merged
}

// mergeString applies an overlay string field: nil or empty never
// clobbers the base.
func mergeString(base *string, overlay *string) {
	if overlay != nil && *overlay != "" {
		*base = *overlay
	}
}

// mergeMode applies an overlay mode field with the same skip-empty
// rule as strings.
func mergeMode(base *Mode, overlay *Mode) {
	if overlay != nil && *overlay != "" {
		*base = *overlay
	}
}

func cloneSlice(source []string) []string {
	return append([]string(nil), source...)
}

func cloneMap(source map[string]string) map[string]string {
	clone := make(map[string]string, len(source))
	for key, value := range source {
		clone[key] = value
	}
	return clone
}
