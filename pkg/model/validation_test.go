package model

import (
	"errors"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Run("Well-formed input", func(t *testing.T) {
		assert.Empty(t, fixture().Validate())
	})

	cases := []struct {
		name   string
		mutate func(input *Input)
		entity string
		field  string
	}{
		{"No active days", func(input *Input) { input.CollegeSettings.DaysActive = nil }, "institution", "days_active"},
		{"Duplicate day", func(input *Input) { input.CollegeSettings.DaysActive = []string{"Mon", "Mon"} }, "institution", "days_active"},
		{"Unsorted slots", func(input *Input) { input.CollegeSettings.TimeSlots = []int{9, 8, 10, 13} }, "institution", "time_slots"},
		{"Slot out of range", func(input *Input) { input.CollegeSettings.TimeSlots = []int{8, 13, 24} }, "institution", "time_slots"},
		{"Lunch outside slots", func(input *Input) { input.CollegeSettings.LunchSlot = 7 }, "institution", "lunch_slot"},
		{"Unknown rule action", func(input *Input) {
			input.CollegeSettings.CustomRules = []RawRule{{Id: "R1", ConditionField: "subject", ConditionValue: "DBMS", ActionType: "SHUFFLE"}}
		}, "custom_rule", "action_value"},
		{"Pin on an unknown event", func(input *Input) {
			input.CollegeSettings.CustomRules = []RawRule{{
				Id: "R2", ConditionField: "event_id", ConditionValue: "E99", ActionType: "FORCE_PIN",
				ActionValue: map[string]any{"day": "Mon", "slot": 9, "room": "D205", "faculty": "F2"},
			}}
		}, "custom_rule", "condition_value"},
		{"Duplicate room", func(input *Input) { input.RoomsConfig.Rooms[1].Id = "D201" }, "room", "id"},
		{"Zero capacity", func(input *Input) { input.RoomsConfig.Rooms[0].Capacity = 0 }, "room", "capacity"},
		{"Blank room tag", func(input *Input) { input.RoomsConfig.Rooms[0].Tags = []string{" "} }, "room", "tags"},
		{"Duplicate faculty", func(input *Input) { input.Faculty[1].Id = "F1" }, "faculty", "id"},
		{"Shift hour out of range", func(input *Input) { input.Faculty[0].Shift = []int{-1, 8} }, "faculty", "shift"},
		{"Blocked slot on inactive day", func(input *Input) {
			input.Faculty[0].BlockedSlots = []BlockedSlot{{Day: "Sun", Time: 8}}
		}, "faculty", "blocked_slots"},
		{"Blank class teacher group", func(input *Input) { input.Faculty[0].ClassTeacherFor = ptr("") }, "faculty", "class_teacher_for"},
		{"Duplicate workload", func(input *Input) { input.Faculty[1].Workload[0].Id = "E1" }, "workload", "id"},
		{"Unknown kind", func(input *Input) { input.Faculty[0].Workload[0].Kind = "Seminar" }, "workload", "type"},
		{"Empty subject", func(input *Input) { input.Faculty[0].Workload[0].Subject = "" }, "workload", "subject"},
		{"No target group", func(input *Input) { input.Faculty[0].Workload[0].TargetGroups = nil }, "workload", "target_groups"},
		{"Zero hours", func(input *Input) { input.Faculty[0].Workload[0].WeeklyHours = 0 }, "workload", "hours"},
		{"Hours not a multiple of the block length", func(input *Input) {
			input.Faculty[1].Workload[0].WeeklyHours = 4
		}, "workload", "consecutive_hours"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			//** Arrange
			input := fixture()
			c.mutate(&input)

			//** Act
			errs := input.Validate()

			//** Assert
			require.NotEmpty(t, errs)
			assert.True(t, lo.SomeBy(errs, func(err ValidationError) bool {
				return err.Entity == c.entity && err.Field == c.field
			}), "got %v", errs)
		})
	}

	t.Run("Every violation is reported", func(t *testing.T) {
		//** Arrange
		input := fixture()
		input.RoomsConfig.Rooms[0].Capacity = -1
		input.Faculty[0].Workload[0].Subject = ""
		input.Faculty[1].Workload[0].WeeklyHours = 0

		//** Act
		errs := input.Validate()

		//** Assert
		assert.Len(t, errs, 3)
	})

	t.Run("Snapshot refuses invalid input", func(t *testing.T) {
		//** Arrange
		input := fixture()
		input.RoomsConfig.Rooms[0].Capacity = 0

		//** Act
		snapshot, err := NewSnapshot(input)

		//** Assert
		assert.Nil(t, snapshot)
		var errs ValidationErrors
		require.True(t, errors.As(err, &errs))
		assert.Equal(t, "D201", errs[0].Id)
	})
}

func TestPrecheck(t *testing.T) {
	t.Run("Feasible fixture", func(t *testing.T) {
		assert.Empty(t, snapshotOf(t, fixture()).Precheck())
	})

	t.Run("Workload over contractual limit", func(t *testing.T) {
		//** Arrange
		input := fixture()
		input.Faculty[0].MaxLoadHrs = 2

		//** Act
		errs := snapshotOf(t, input).Precheck()

		//** Assert
		require.Len(t, errs, 1)
		assert.Equal(t, "F1", errs[0].Id)
		assert.Contains(t, errs[0].Reason, "exceeds the contractual limit")
	})

	t.Run("Max load over physical presence", func(t *testing.T) {
		//** Arrange
		input := fixture()
		// 2 hours a day without lunch, 5 days, minus 1 blocked slot
		input.Faculty[0].Shift = []int{8, 9, 13}
		input.Faculty[0].BlockedSlots = []BlockedSlot{{Day: "Mon", Time: 8}}
		input.Faculty[0].MaxLoadHrs = 10

		//** Act
		errs := snapshotOf(t, input).Precheck()

		//** Assert
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Reason, "9 hours of physical presence")
	})

	t.Run("Required tag missing from every room", func(t *testing.T) {
		//** Arrange
		input := fixture()
		input.Faculty[1].Workload[0].RequiredTags = []string{"Physics_Lab"}

		//** Act
		errs := snapshotOf(t, input).Precheck()

		//** Assert
		require.Len(t, errs, 1)
		assert.Equal(t, "E2", errs[0].Id)
		assert.Contains(t, errs[0].Reason, "Physics_Lab")
	})

	t.Run("Total workload over room capacity", func(t *testing.T) {
		//** Arrange
		input := fixture()
		input.CollegeSettings.DaysActive = []string{"Mon"}
		input.CollegeSettings.TimeSlots = []int{8, 9, 13}
		input.Faculty[0].Shift = []int{8, 9}
		input.Faculty[1].Shift = []int{8, 9}
		input.Faculty[0].MaxLoadHrs = 2
		input.Faculty[1].MaxLoadHrs = 2
		input.Faculty[0].Workload[0].WeeklyHours = 2
		input.Faculty[1].Workload[0] = Workload{
			Id: "E2", Kind: Practical, Subject: "DBMS-Lab", TargetGroups: []string{"SY-CSDS-A-B1"},
			WeeklyHours: 2, ConsecutiveHours: 1, RequiredTags: []string{"Computer_Lab"},
		}
		input.RoomsConfig.Rooms = input.RoomsConfig.Rooms[:1]
		input.RoomsConfig.Rooms[0].Tags = []string{"Theory_Room", "Computer_Lab"}

		//** Act
		errs := snapshotOf(t, input).Precheck()

		//** Assert
		require.Len(t, errs, 1)
		assert.Equal(t, "rooms_config", errs[0].Field)
	})
}
