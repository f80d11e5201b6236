// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"fmt"
	"time"

	"github.com/MMI122/RestrictedIDE/lib/policy"
)

// Time evaluates the current instant against the time policy section.
// The caller supplies the instant (from the injected clock); the
// evaluator itself never reads the wall clock.
type Time struct {
	enabled bool
	days    map[int]struct{}
	start   string
	end     string
}

// NewTime compiles the time evaluator.
func NewTime(config policy.TimeRules) *Time {
	evaluator := &Time{enabled: config.Enabled}
	if config.Schedule == nil {
		return evaluator
	}
	if len(config.Schedule.Days) > 0 {
		evaluator.days = make(map[int]struct{}, len(config.Schedule.Days))
		for _, day := range config.Schedule.Days {
			evaluator.days[day] = struct{}{}
		}
	}
	evaluator.start = config.Schedule.StartTime
	evaluator.end = config.Schedule.EndTime
	return evaluator
}

// Evaluate checks the given instant. Disabled or unscheduled rules
// always allow. Day and window restrictions are independently
// optional; whichever are configured must all pass.
func (r *Time) Evaluate(now time.Time) Verdict {
	if !r.enabled {
		return Allow()
	}

	if r.days != nil {
		if _, ok := r.days[int(now.Weekday())]; !ok {
			return Deny("Not available on this day")
		}
	}

	if r.start != "" && r.end != "" {
		// Zero-padded HH:MM compares correctly as a string.
		current := fmt.Sprintf("%02d:%02d", now.Hour(), now.Minute())
		if current < r.start || current > r.end {
			return Deny("Outside allowed time range")
		}
	}

	return Allow()
}
