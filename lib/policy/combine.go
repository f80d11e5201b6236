// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package policy

// Combine folds a newer overlay onto an older one, producing the
// overlay that persists as the user override layer after a runtime
// policy update. Field semantics match Merge: nil and empty-string
// fields in the newer layer leave the older layer's value, arrays and
// maps replace wholesale. Either argument may be nil.
func Combine(older, newer *Overlay) *Overlay {
	if older == nil && newer == nil {
		return nil
	}
	combined := &Overlay{}
	if older != nil {
		*combined = *older
	}
	if newer == nil {
		return combined
	}

	combineString(&combined.Version, newer.Version)
	combineString(&combined.Name, newer.Name)
	combineString(&combined.Description, newer.Description)

	if newer.URLs != nil {
		section := takeURL(combined.URLs)
		combineMode(&section.Mode, newer.URLs.Mode)
		if newer.URLs.Patterns != nil {
			section.Patterns = cloneSlice(newer.URLs.Patterns)
		}
		combined.URLs = section
	}

	if newer.Keyboard != nil {
		section := takeKeyboard(combined.Keyboard)
		combineMode(&section.Mode, newer.Keyboard.Mode)
		if newer.Keyboard.Blocked != nil {
			section.Blocked = cloneMap(newer.Keyboard.Blocked)
		}
		if newer.Keyboard.Allowed != nil {
			section.Allowed = cloneMap(newer.Keyboard.Allowed)
		}
		combined.Keyboard = section
	}

	if newer.Processes != nil {
		section := takeProcess(combined.Processes)
		combineMode(&section.Mode, newer.Processes.Mode)
		if newer.Processes.Allowed != nil {
			section.Allowed = cloneSlice(newer.Processes.Allowed)
		}
		if newer.Processes.Blocked != nil {
			section.Blocked = cloneSlice(newer.Processes.Blocked)
		}
		combined.Processes = section
	}

	if newer.FileAccess != nil {
		section := takeFileAccess(combined.FileAccess)
		combineMode(&section.Mode, newer.FileAccess.Mode)
		combineString(&section.SandboxPath, newer.FileAccess.SandboxPath)
		if newer.FileAccess.AllowedExtensions != nil {
			section.AllowedExtensions = cloneSlice(newer.FileAccess.AllowedExtensions)
		}
		if newer.FileAccess.MaxFileSize != nil {
			size := *newer.FileAccess.MaxFileSize
			section.MaxFileSize = &size
		}
		if newer.FileAccess.AllowedPaths != nil {
			section.AllowedPaths = cloneSlice(newer.FileAccess.AllowedPaths)
		}
		if newer.FileAccess.DeniedPaths != nil {
			section.DeniedPaths = cloneSlice(newer.FileAccess.DeniedPaths)
		}
		combined.FileAccess = section
	}

	if newer.Time != nil {
		section := takeTime(combined.Time)
		if newer.Time.Enabled != nil {
			enabled := *newer.Time.Enabled
			section.Enabled = &enabled
		}
		if newer.Time.Schedule != nil {
			schedule := takeSchedule(section.Schedule)
			if newer.Time.Schedule.Days != nil {
				schedule.Days = append([]int(nil), newer.Time.Schedule.Days...)
			}
			combineString(&schedule.StartTime, newer.Time.Schedule.StartTime)
			combineString(&schedule.EndTime, newer.Time.Schedule.EndTime)
			section.Schedule = schedule
		}
		combined.Time = section
	}

	return combined
}

// combineString assigns through the pointer when the newer value is
// present and non-empty.
func combineString(base **string, newer *string) {
	if newer != nil && *newer != "" {
		value := *newer
		*base = &value
	}
}

func combineMode(base **Mode, newer *Mode) {
	if newer != nil && *newer != "" {
		value := *newer
		*base = &value
	}
}

// take* return a detached copy of a section so Combine never aliases
// the inputs.

func takeURL(section *URLOverlay) *URLOverlay {
	if section == nil {
		return &URLOverlay{}
	}
	clone := *section
	return &clone
}

func takeKeyboard(section *KeyboardOverlay) *KeyboardOverlay {
	if section == nil {
		return &KeyboardOverlay{}
	}
	clone := *section
	return &clone
}

func takeProcess(section *ProcessOverlay) *ProcessOverlay {
	if section == nil {
		return &ProcessOverlay{}
	}
	clone := *section
	return &clone
}

func takeFileAccess(section *FileAccessOverlay) *FileAccessOverlay {
	if section == nil {
		return &FileAccessOverlay{}
	}
	clone := *section
	return &clone
}

func takeTime(section *TimeOverlay) *TimeOverlay {
	if section == nil {
		return &TimeOverlay{}
	}
	clone := *section
	return &clone
}

func takeSchedule(section *ScheduleOverlay) *ScheduleOverlay {
	if section == nil {
		return &ScheduleOverlay{}
	}
	clone := *section
	return &clone
}
