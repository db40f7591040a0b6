package matrix

import (
	"fmt"
	"slices"

	"github.com/limaJavier/shiftsync/pkg/model"
	"github.com/samber/lo"
)

type ResourceKind string

const (
	RoomResource    ResourceKind = "room"
	FacultyResource ResourceKind = "faculty"
	GroupResource   ResourceKind = "group"
)

type Status string

const (
	Free        Status = "free"
	Occupied    Status = "occupied"
	Lunch       Status = "lunch"
	OutOfBounds Status = "out_of_bounds"
)

// Occupancy is the answer to a single cell query. Detail is set only when the cell is
// occupied; Via names the linked group through which a group query found the occupation.
type Occupancy struct {
	Status Status `json:"status"`
	Detail *Row   `json:"detail,omitempty"`
	Via    string `json:"via,omitempty"`
}

// Query returns the occupancy of a resource at a cell. Unknown resources, days and slots
// are out of bounds.
func (matrix *Matrix) Query(kind ResourceKind, id string, day string, slot int) Occupancy {
	if !matrix.known(kind, id) || !matrix.index.days[day] || !matrix.index.slots[slot] {
		return Occupancy{Status: OutOfBounds}
	} else if slot == matrix.index.institution.LunchSlot {
		return Occupancy{Status: Lunch}
	}

	if i, ok := matrix.index.cells[cell{kind, id, day, slot}]; ok {
		return occupied(matrix.rows[i], "")
	}

	// A group is also busy while any cohort linked to it is. The earliest row wins.
	if kind == GroupResource {
		first := -1
		for _, neighbour := range matrix.links.Neighbours(id) {
			if i, ok := matrix.index.cells[cell{GroupResource, neighbour, day, slot}]; ok && (first < 0 || i < first) {
				first = i
			}
		}
		if first >= 0 {
			row := matrix.rows[first]
			via, _ := lo.Find(row.TargetGroups, func(group string) bool { return matrix.links.Linked(id, group) })
			return occupied(row, via)
		}
	}

	return Occupancy{Status: Free}
}

func occupied(row Row, via string) Occupancy {
	row.TargetGroups = slices.Clone(row.TargetGroups)
	return Occupancy{Status: Occupied, Detail: &row, Via: via}
}

func (matrix *Matrix) known(kind ResourceKind, id string) bool {
	return matrix.index.members[kind][id]
}

// Resources returns every id of the given kind
func (matrix *Matrix) Resources(kind ResourceKind) []string {
	return slices.Clone(matrix.index.resources[kind])
}

// Window is an inclusive range of slots. A nil bound leaves that side open, so the zero
// value spans the whole day.
type Window struct {
	From *int
	To   *int
}

func (window Window) contains(slot int) bool {
	return (window.From == nil || slot >= *window.From) && (window.To == nil || slot <= *window.To)
}

// Utilization returns the percentage of occupied cells over the given resources (every
// resource of the kind when ids is empty), every active day and the working slots of the
// window. The lunch slot never counts.
func (matrix *Matrix) Utilization(kind ResourceKind, ids []string, window Window) (float64, error) {
	if len(ids) == 0 {
		ids = matrix.Resources(kind)
	}
	for _, id := range ids {
		if !matrix.known(kind, id) {
			return 0, fmt.Errorf("unknown %s %q", kind, id)
		}
	}

	institution := matrix.index.institution
	slots := lo.Filter(institution.WorkingSlots(), func(slot int, _ int) bool { return window.contains(slot) })

	total, busy := 0, 0
	for _, id := range lo.Uniq(ids) {
		for _, day := range institution.DaysActive {
			for _, slot := range slots {
				total++
				if matrix.Query(kind, id, day, slot).Status == Occupied {
					busy++
				}
			}
		}
	}

	if total == 0 {
		return 0, nil
	}
	return 100 * float64(busy) / float64(total), nil
}

// Grid is the day by slot view of one resource
type Grid struct {
	Kind  ResourceKind  `json:"kind"`
	Id    string        `json:"id"`
	Days  []string      `json:"days"`
	Slots []int         `json:"slots"`
	Cells [][]Occupancy `json:"cells"`
}

func (matrix *Matrix) Grid(kind ResourceKind, id string) (Grid, error) {
	if !matrix.known(kind, id) {
		return Grid{}, fmt.Errorf("unknown %s %q", kind, id)
	}

	institution := matrix.index.institution
	grid := Grid{
		Kind:  kind,
		Id:    id,
		Days:  slices.Clone(institution.DaysActive),
		Slots: slices.Clone(institution.TimeSlots),
		Cells: make([][]Occupancy, len(institution.DaysActive)),
	}
	for i, day := range institution.DaysActive {
		grid.Cells[i] = lo.Map(institution.TimeSlots, func(slot int, _ int) Occupancy {
			return matrix.Query(kind, id, day, slot)
		})
	}
	return grid, nil
}

// Substitutes returns the faculty on shift, not blocked and free at the given cell
func (matrix *Matrix) Substitutes(day string, slot int) []model.Faculty {
	return lo.Filter(matrix.snapshot.Faculty(), func(faculty model.Faculty, _ int) bool {
		return faculty.Available(day, slot) && matrix.Query(FacultyResource, faculty.Id, day, slot).Status == Free
	})
}

// Fatigue is a run of back-to-back teaching hours longer than the institution allows
type Fatigue struct {
	FacultyId string `json:"faculty_id"`
	Day       string `json:"day"`
	StartSlot int    `json:"start_slot"`
	Hours     int    `json:"hours"`
}

// FatigueReport lists every faculty run exceeding max_continuous_lectures. Runs are
// broken by free slots and by lunch. The limit is a soft constraint: it is reported,
// never enforced.
func (matrix *Matrix) FatigueReport() []Fatigue {
	institution := matrix.index.institution
	report := make([]Fatigue, 0)

	for _, faculty := range matrix.snapshot.Faculty() {
		for _, day := range institution.DaysActive {
			run := make([]int, 0)
			flush := func() {
				if len(run) > institution.MaxContinuousLectures {
					report = append(report, Fatigue{FacultyId: faculty.Id, Day: day, StartSlot: run[0], Hours: len(run)})
				}
				run = run[:0]
			}
			for _, slot := range institution.TimeSlots {
				if matrix.Query(FacultyResource, faculty.Id, day, slot).Status == Occupied {
					run = append(run, slot)
				} else {
					flush()
				}
			}
			flush()
		}
	}
	return report
}
