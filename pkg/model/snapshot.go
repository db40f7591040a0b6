package model

import (
	"fmt"

	"github.com/samber/lo"
)

// Snapshot is an immutable, validated view of the scheduling entities. Accessors hand
// out copies; there is no way to update a snapshot once it has been taken.
type Snapshot struct {
	input       Input
	rules       []CustomRule
	rooms       map[string]Room
	faculty     map[string]Faculty
	workloads   map[string]Workload
	owners      map[string]string
	facultyName map[string]string
}

// NewSnapshot normalizes and validates the input. A non-nil error is always of type ValidationErrors.
func NewSnapshot(input Input) (*Snapshot, error) {
	input = input.clone()
	if errs := input.Validate(); len(errs) > 0 {
		return nil, errs
	}

	snapshot := &Snapshot{
		input:       input,
		rules:       make([]CustomRule, 0, len(input.CollegeSettings.CustomRules)),
		rooms:       lo.KeyBy(input.RoomsConfig.Rooms, func(room Room) string { return room.Id }),
		faculty:     lo.KeyBy(input.Faculty, func(faculty Faculty) string { return faculty.Id }),
		workloads:   make(map[string]Workload),
		owners:      make(map[string]string),
		facultyName: make(map[string]string),
	}
	for _, raw := range input.CollegeSettings.CustomRules {
		rule, _ := ParseRule(raw) // Already validated
		snapshot.rules = append(snapshot.rules, rule)
	}
	for _, faculty := range input.Faculty {
		if faculty.Name != "" {
			snapshot.facultyName[faculty.Name] = faculty.Id
		}
		for _, workload := range faculty.Workload {
			snapshot.workloads[workload.Id] = workload
			snapshot.owners[workload.Id] = faculty.Id
		}
	}

	return snapshot, nil
}

func (snapshot *Snapshot) Institution() Institution {
	return snapshot.input.clone().CollegeSettings
}

// Payload returns a copy of the normalized input, ready to be handed to an external solver
func (snapshot *Snapshot) Payload() Input {
	return snapshot.input.clone()
}

func (snapshot *Snapshot) Rooms() []Room {
	return lo.Map(snapshot.input.RoomsConfig.Rooms, func(room Room, _ int) Room { return room.clone() })
}

func (snapshot *Snapshot) Room(id string) (Room, bool) {
	room, ok := snapshot.rooms[id]
	return room.clone(), ok
}

func (snapshot *Snapshot) Faculty() []Faculty {
	return lo.Map(snapshot.input.Faculty, func(faculty Faculty, _ int) Faculty { return faculty.clone() })
}

func (snapshot *Snapshot) FacultyById(id string) (Faculty, bool) {
	faculty, ok := snapshot.faculty[id]
	return faculty.clone(), ok
}

func (snapshot *Snapshot) FacultyByName(name string) (Faculty, bool) {
	id, ok := snapshot.facultyName[name]
	if !ok {
		return Faculty{}, false
	}
	return snapshot.FacultyById(id)
}

// Workloads returns every workload in ingestion order
func (snapshot *Snapshot) Workloads() []Workload {
	return lo.FlatMap(snapshot.input.Faculty, func(faculty Faculty, _ int) []Workload {
		return lo.Map(faculty.Workload, func(workload Workload, _ int) Workload { return workload.clone() })
	})
}

func (snapshot *Snapshot) Workload(id string) (Workload, bool) {
	workload, ok := snapshot.workloads[id]
	return workload.clone(), ok
}

// Owner returns the faculty owning the workload
func (snapshot *Snapshot) Owner(workloadId string) (Faculty, bool) {
	facultyId, ok := snapshot.owners[workloadId]
	if !ok {
		return Faculty{}, false
	}
	return snapshot.FacultyById(facultyId)
}

func (snapshot *Snapshot) Rules() []CustomRule {
	return lo.Map(snapshot.rules, func(rule CustomRule, _ int) CustomRule {
		rule.Partition.Slots = cloneSlice(rule.Partition.Slots)
		return rule
	})
}

// Groups returns every group identifier mentioned by class teachers or workloads
func (snapshot *Snapshot) Groups() []string {
	groups := make([]string, 0)
	for _, faculty := range snapshot.input.Faculty {
		if faculty.ClassTeacherFor != nil {
			groups = append(groups, *faculty.ClassTeacherFor)
		}
		for _, workload := range faculty.Workload {
			groups = append(groups, workload.TargetGroups...)
		}
	}
	return lo.Uniq(groups)
}

// Precheck runs the arithmetic feasibility checks that do not require a solver:
// contractual load, physical presence, tag availability and overall room capacity
func (snapshot *Snapshot) Precheck() ValidationErrors {
	v := &validator{}
	institution := snapshot.input.CollegeSettings
	days := len(institution.DaysActive)

	availableTags := lo.Uniq(lo.FlatMap(snapshot.input.RoomsConfig.Rooms, func(room Room, _ int) []string { return room.Tags }))

	for _, faculty := range snapshot.input.Faculty {
		load := faculty.Load()

		dailyShift := len(faculty.Shift)
		if lo.Contains(faculty.Shift, institution.LunchSlot) {
			dailyShift--
		}
		presence := dailyShift*days - len(faculty.BlockedSlots)

		if load > faculty.MaxLoadHrs {
			v.fail("faculty", faculty.Id, "max_load_hrs", "target workload of %d hours exceeds the contractual limit of %d hours", load, faculty.MaxLoadHrs)
		}
		if faculty.MaxLoadHrs > presence {
			v.fail("faculty", faculty.Id, "max_load_hrs", "max load of %d hours exceeds the %d hours of physical presence", faculty.MaxLoadHrs, presence)
		}

		for _, workload := range faculty.Workload {
			for _, tag := range workload.RequiredTags {
				if !lo.Contains(availableTags, tag) {
					v.fail("workload", workload.Id, "required_tags", "no room possesses the tag %q required by %s", tag, workload.Subject)
				}
			}
		}
	}

	requested := lo.SumBy(snapshot.input.Faculty, func(faculty Faculty) int { return faculty.Load() })
	rooms := len(snapshot.input.RoomsConfig.Rooms)
	available := rooms * days * len(institution.WorkingSlots())
	if requested > available {
		v.fail("institution", "", "rooms_config", "total workload of %d hours exceeds the %d hours %d rooms can host", requested, available, rooms)
	}

	return v.errs
}

func (snapshot *Snapshot) String() string {
	return fmt.Sprintf("snapshot{rooms: %d, faculty: %d, workloads: %d, rules: %d}", len(snapshot.rooms), len(snapshot.faculty), len(snapshot.workloads), len(snapshot.rules))
}
