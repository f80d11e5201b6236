// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"testing"
	"time"

	"github.com/MMI122/RestrictedIDE/lib/policy"
)

func weekdaySchedule() policy.TimeRules {
	return policy.TimeRules{
		Enabled: true,
		Schedule: &policy.Schedule{
			Days:      []int{1, 2, 3, 4, 5},
			StartTime: "09:00",
			EndTime:   "17:00",
		},
	}
}

func TestTimeRuleSchedule(t *testing.T) {
	evaluator := NewTime(weekdaySchedule())

	// 2026-03-07 is a Saturday.
	saturday := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	verdict := evaluator.Evaluate(saturday)
	if verdict.Allowed || verdict.Reason != "Not available on this day" {
		t.Errorf("Saturday verdict = %+v", verdict)
	}

	// 2026-03-03 is a Tuesday.
	tuesdayEvening := time.Date(2026, 3, 3, 20, 0, 0, 0, time.UTC)
	verdict = evaluator.Evaluate(tuesdayEvening)
	if verdict.Allowed || verdict.Reason != "Outside allowed time range" {
		t.Errorf("Tuesday 20:00 verdict = %+v", verdict)
	}

	tuesdayMorning := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	if verdict := evaluator.Evaluate(tuesdayMorning); !verdict.Allowed {
		t.Errorf("Tuesday 10:00 denied: %q", verdict.Reason)
	}
}

func TestTimeRuleWindowBoundaries(t *testing.T) {
	evaluator := NewTime(weekdaySchedule())

	atOpen := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	if verdict := evaluator.Evaluate(atOpen); !verdict.Allowed {
		t.Errorf("09:00 exactly denied: %q", verdict.Reason)
	}
	atClose := time.Date(2026, 3, 3, 17, 0, 0, 0, time.UTC)
	if verdict := evaluator.Evaluate(atClose); !verdict.Allowed {
		t.Errorf("17:00 exactly denied: %q", verdict.Reason)
	}
	justAfter := time.Date(2026, 3, 3, 17, 1, 0, 0, time.UTC)
	if verdict := evaluator.Evaluate(justAfter); verdict.Allowed {
		t.Error("17:01 allowed, want denial")
	}
}

func TestTimeRuleDisabled(t *testing.T) {
	evaluator := NewTime(policy.TimeRules{Enabled: false, Schedule: &policy.Schedule{Days: []int{0}}})
	anytime := time.Date(2026, 3, 3, 3, 0, 0, 0, time.UTC)
	if verdict := evaluator.Evaluate(anytime); !verdict.Allowed {
		t.Error("disabled rule should always allow")
	}
}

func TestTimeRuleNoSchedule(t *testing.T) {
	evaluator := NewTime(policy.TimeRules{Enabled: true})
	if verdict := evaluator.Evaluate(time.Now()); !verdict.Allowed {
		t.Error("enabled rule with no schedule should allow")
	}
}

func TestTimeRuleDaysOnly(t *testing.T) {
	evaluator := NewTime(policy.TimeRules{
		Enabled:  true,
		Schedule: &policy.Schedule{Days: []int{2}},
	})
	tuesdayNight := time.Date(2026, 3, 3, 23, 30, 0, 0, time.UTC)
	if verdict := evaluator.Evaluate(tuesdayNight); !verdict.Allowed {
		t.Errorf("day-only schedule denied on an allowed day: %q", verdict.Reason)
	}
}
