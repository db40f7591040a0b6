package compiler

import (
	"fmt"

	"github.com/limaJavier/shiftsync/pkg/model"
	"github.com/samber/lo"
)

// Placement is one admissible (day, start slot) pair of a block
type Placement struct {
	Day   string
	Start int
}

// Block is one contiguous occurrence of a workload and the decision variable of the problem.
// Blocks of the same event are interchangeable; Index only orders them so that pins can be
// attached to successive occurrences.
type Block struct {
	Id           string
	EventId      string
	Index        int
	FacultyId    string
	Subject      string
	Kind         model.Kind
	Duration     int
	Groups       []string
	RequiredTags []string
	Placements   []Placement
	Rooms        []string
	Pinned       *model.Pin
}

// Span returns the slots the block covers when it starts at start
func (block Block) Span(start int) []int {
	return lo.RangeFrom(start, block.Duration)
}

// Overlaps reports whether two placements of the given durations share at least one slot
func Overlaps(day1 string, start1, duration1 int, day2 string, start2, duration2 int) bool {
	return day1 == day2 && start1 < start2+duration2 && start2 < start1+duration1
}

// Problem is the formal description handed to a solver: one Block per occurrence with its
// pruned domains, plus the cohort links the no-overlap constraints are layered on
type Problem struct {
	Snapshot *model.Snapshot
	Links    model.LinkMap
	Blocks   []Block
	Warnings []string
}

func (problem *Problem) Institution() model.Institution {
	return problem.Snapshot.Institution()
}

// Block returns the block with the given id
func (problem *Problem) Block(id string) (Block, bool) {
	return lo.Find(problem.Blocks, func(block Block) bool { return block.Id == id })
}

// EventBlocks returns every block of an event ordered by index
func (problem *Problem) EventBlocks(eventId string) []Block {
	return lo.Filter(problem.Blocks, func(block Block, _ int) bool { return block.EventId == eventId })
}

// Conflicting reports whether two blocks may never overlap in time: same faculty, or a
// shared or linked cohort. Room clashes depend on the chosen room and are checked apart.
func (problem *Problem) Conflicting(block1, block2 Block) bool {
	return block1.FacultyId == block2.FacultyId || problem.Links.Collide(block1.Groups, block2.Groups)
}

// CompileInfeasible is returned when a block is known to be unschedulable before contacting any solver
type CompileInfeasible struct {
	Block  string
	Reason string
}

func (err CompileInfeasible) Error() string {
	return fmt.Sprintf("block %s cannot be scheduled: %s", err.Block, err.Reason)
}

func blockId(eventId string, index int) string {
	return fmt.Sprintf("%s#%d", eventId, index+1)
}
