// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"errors"
	"fmt"
	"regexp"
)

var timeOfDayPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidTimeOfDay reports whether s is a well-formed "HH:MM" string.
func ValidTimeOfDay(s string) bool {
	return timeOfDayPattern.MatchString(s)
}

// Validate checks an overlay for structural errors before it is
// merged. A fragment with any error is rejected whole: partial
// application of a half-valid policy would leave the rule sections
// inconsistent with each other.
func Validate(overlay *Overlay) error {
	if overlay == nil {
		return errors.New("nil policy fragment")
	}

	var errs []error

	if section := overlay.URLs; section != nil {
		if err := validateListMode("urls", section.Mode); err != nil {
			errs = append(errs, err)
		}
	}
	if section := overlay.Keyboard; section != nil {
		if err := validateListMode("keyboard", section.Mode); err != nil {
			errs = append(errs, err)
		}
	}
	if section := overlay.Processes; section != nil {
		if err := validateListMode("processes", section.Mode); err != nil {
			errs = append(errs, err)
		}
	}

	if section := overlay.FileAccess; section != nil {
		if section.Mode != nil {
			switch *section.Mode {
			case "", Whitelist, Blacklist, SandboxMode:
			default:
				errs = append(errs, fmt.Errorf("fileAccess.mode: unknown mode %q", *section.Mode))
			}
		}
		if section.MaxFileSize != nil && *section.MaxFileSize < 0 {
			errs = append(errs, fmt.Errorf("fileAccess.maxFileSize: negative size %d", *section.MaxFileSize))
		}
	}

	if section := overlay.Time; section != nil && section.Schedule != nil {
		schedule := section.Schedule
		for _, day := range schedule.Days {
			if day < 0 || day > 6 {
				errs = append(errs, fmt.Errorf("time.schedule.days: day %d out of range 0-6", day))
			}
		}
		if schedule.StartTime != nil && *schedule.StartTime != "" && !ValidTimeOfDay(*schedule.StartTime) {
			errs = append(errs, fmt.Errorf("time.schedule.startTime: malformed time %q", *schedule.StartTime))
		}
		if schedule.EndTime != nil && *schedule.EndTime != "" && !ValidTimeOfDay(*schedule.EndTime) {
			errs = append(errs, fmt.Errorf("time.schedule.endTime: malformed time %q", *schedule.EndTime))
		}
	}

	return errors.Join(errs...)
}

func validateListMode(section string, mode *Mode) error {
	if mode == nil {
		return nil
	}
	switch *mode {
	case "", Whitelist, Blacklist:
		return nil
	default:
		return fmt.Errorf("%s.mode: unknown mode %q", section, *mode)
	}
}
