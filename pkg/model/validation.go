package model

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

const (
	minHour = 0
	maxHour = 23
)

// ValidationError describes one malformed entity. The ingestion layer decides
// whether to reject the entity or annotate it.
type ValidationError struct {
	Entity string `json:"entity"`
	Id     string `json:"id,omitempty"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (err ValidationError) Error() string {
	if err.Id == "" {
		return fmt.Sprintf("%s.%s: %s", err.Entity, err.Field, err.Reason)
	}
	return fmt.Sprintf("%s %q.%s: %s", err.Entity, err.Id, err.Field, err.Reason)
}

type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	messages := lo.Map(errs, func(err ValidationError, _ int) string { return err.Error() })
	return fmt.Sprintf("%d validation error(s): %s", len(errs), strings.Join(messages, "; "))
}

type validator struct {
	errs ValidationErrors
}

func (v *validator) fail(entity, id, field, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Entity: entity, Id: id, Field: field, Reason: fmt.Sprintf(format, args...)})
}

func (v *validator) hours(entity, id, field string, hours []int) {
	for _, hour := range hours {
		if hour < minHour || hour > maxHour {
			v.fail(entity, id, field, "hour %d is outside [%d, %d]", hour, minHour, maxHour)
		}
	}
}

func (v *validator) tags(entity, id, field string, tags []string) {
	if lo.SomeBy(tags, func(tag string) bool { return strings.TrimSpace(tag) == "" }) {
		v.fail(entity, id, field, "tags must be non-empty strings")
	}
}

func (v *validator) unique(entity, field string, ids []string) {
	for _, id := range lo.FindDuplicates(ids) {
		v.fail(entity, id, field, "duplicate id")
	}
	if lo.Contains(ids, "") {
		v.fail(entity, "", field, "id must not be empty")
	}
}

// Validate checks shape and bounds of every entity and reports every violation found
func (input Input) Validate() ValidationErrors {
	v := &validator{}
	institution := input.CollegeSettings

	//** Institution
	if len(institution.DaysActive) == 0 {
		v.fail("institution", "", "days_active", "at least one active day is required")
	}
	for _, day := range lo.FindDuplicates(institution.DaysActive) {
		v.fail("institution", "", "days_active", "duplicate day %q", day)
	}
	if len(institution.TimeSlots) == 0 {
		v.fail("institution", "", "time_slots", "at least one time slot is required")
	}
	v.hours("institution", "", "time_slots", institution.TimeSlots)
	if !slices.IsSorted(institution.TimeSlots) || len(lo.Uniq(institution.TimeSlots)) != len(institution.TimeSlots) {
		v.fail("institution", "", "time_slots", "time slots must be strictly increasing")
	}
	if !lo.Contains(institution.TimeSlots, institution.LunchSlot) {
		v.fail("institution", "", "lunch_slot", "lunch slot %d is not one of the time slots", institution.LunchSlot)
	}
	if institution.MaxContinuousLectures < 0 {
		v.fail("institution", "", "max_continuous_lectures", "must not be negative")
	}
	events := lo.FlatMap(input.Faculty, func(faculty Faculty, _ int) []string {
		return lo.Map(faculty.Workload, func(workload Workload, _ int) string { return workload.Id })
	})
	for _, raw := range institution.CustomRules {
		rule, err := ParseRule(raw)
		if err != nil {
			v.fail("custom_rule", raw.Id, "action_value", "%v", err)
		} else if rule.Kind == ForcePin && !lo.Contains(events, rule.Condition.Value) {
			v.fail("custom_rule", raw.Id, "condition_value", "pin names unknown event %q", rule.Condition.Value)
		}
	}

	//** Rooms
	v.unique("room", "id", lo.Map(input.RoomsConfig.Rooms, func(room Room, _ int) string { return room.Id }))
	for _, room := range input.RoomsConfig.Rooms {
		if room.Capacity <= 0 {
			v.fail("room", room.Id, "capacity", "capacity must be positive, got %d", room.Capacity)
		}
		v.tags("room", room.Id, "tags", room.Tags)
	}

	//** Faculty and workloads
	v.unique("faculty", "id", lo.Map(input.Faculty, func(faculty Faculty, _ int) string { return faculty.Id }))
	v.unique("workload", "id", events)
	for _, faculty := range input.Faculty {
		v.hours("faculty", faculty.Id, "shift", faculty.Shift)
		if faculty.MaxLoadHrs < 0 {
			v.fail("faculty", faculty.Id, "max_load_hrs", "must not be negative")
		}
		for _, blocked := range faculty.BlockedSlots {
			if !lo.Contains(institution.DaysActive, blocked.Day) {
				v.fail("faculty", faculty.Id, "blocked_slots", "day %q is not an active day", blocked.Day)
			}
			v.hours("faculty", faculty.Id, "blocked_slots", []int{blocked.Time})
		}
		if faculty.ClassTeacherFor != nil && strings.TrimSpace(*faculty.ClassTeacherFor) == "" {
			v.fail("faculty", faculty.Id, "class_teacher_for", "group identifier must not be blank")
		}

		for _, workload := range faculty.Workload {
			validateWorkload(v, workload)
		}
	}

	return v.errs
}

func validateWorkload(v *validator, workload Workload) {
	switch workload.Kind {
	case Theory, Practical, Tutorial:
	default:
		v.fail("workload", workload.Id, "type", "unknown kind %q", workload.Kind)
	}
	if strings.TrimSpace(workload.Subject) == "" {
		v.fail("workload", workload.Id, "subject", "subject must not be empty")
	}
	if len(workload.TargetGroups) == 0 {
		v.fail("workload", workload.Id, "target_groups", "at least one target group is required")
	}
	if lo.SomeBy(workload.TargetGroups, func(group string) bool { return strings.TrimSpace(group) == "" }) {
		v.fail("workload", workload.Id, "target_groups", "group identifiers must be non-empty strings")
	}
	v.tags("workload", workload.Id, "required_tags", workload.RequiredTags)

	if workload.WeeklyHours <= 0 {
		v.fail("workload", workload.Id, "hours", "weekly hours must be positive, got %d", workload.WeeklyHours)
	}
	if workload.ConsecutiveHours <= 0 {
		v.fail("workload", workload.Id, "consecutive_hours", "consecutive hours must be positive, got %d", workload.ConsecutiveHours)
	} else if workload.WeeklyHours%workload.ConsecutiveHours != 0 {
		v.fail("workload", workload.Id, "consecutive_hours", "weekly hours %d are not a multiple of %d consecutive hours", workload.WeeklyHours, workload.ConsecutiveHours)
	}
}
