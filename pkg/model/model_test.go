package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr[T any](value T) *T {
	return &value
}

func fixture() Input {
	shift := []int{8, 9, 10, 11, 12, 13, 14, 15}
	return Input{
		CollegeSettings: Institution{
			DaysActive:            []string{"Mon", "Tue", "Wed", "Thu", "Fri"},
			TimeSlots:             []int{8, 9, 10, 11, 12, 13, 14, 15},
			LunchSlot:             13,
			MaxContinuousLectures: 2,
		},
		RoomsConfig: RoomsConfig{Rooms: []Room{
			{Id: "D201", Type: "Classroom", Capacity: 60, Tags: []string{"Theory_Room"}},
			{Id: "D205", Type: "Lab", Capacity: 30, Tags: []string{"Computer_Lab"}},
		}},
		Faculty: []Faculty{
			{
				Id: "F1", Name: "Ada", Shift: shift, MaxLoadHrs: 10, ClassTeacherFor: ptr("SY-CSDS-A"),
				Workload: []Workload{{
					Id: "E1", Kind: Theory, Subject: "DBMS", TargetGroups: []string{"SY-CSDS-A"},
					WeeklyHours: 3, ConsecutiveHours: 1, RequiredTags: []string{"Theory_Room"},
				}},
			},
			{
				Id: "F2", Name: "Grace", Shift: shift, MaxLoadHrs: 10,
				Workload: []Workload{{
					Id: "E2", Kind: Practical, Subject: "DBMS-Lab", TargetGroups: []string{"SY-CSDS-A-B1"},
					WeeklyHours: 3, ConsecutiveHours: 3, RequiredTags: []string{"Computer_Lab"},
				}},
			},
		},
	}
}

func snapshotOf(t *testing.T, input Input) *Snapshot {
	t.Helper()
	snapshot, err := NewSnapshot(input)
	require.NoError(t, err)
	return snapshot
}
