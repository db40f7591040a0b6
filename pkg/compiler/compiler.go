package compiler

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/limaJavier/shiftsync/pkg/model"
	"github.com/samber/lo"
)

// Pins are applied before any other rule so that their precedence does not depend on rule order
var rulePriority = map[model.RuleKind]int{
	model.ForcePin:     0,
	model.RestrictTime: 1,
	model.ForceRoom:    2,
}

// Compile turns a validated snapshot and the cohort links into a Problem. It fails with
// CompileInfeasible as soon as a block is known to be unschedulable on its own, or when
// the pins or the room capacity already rule out every assignment.
func Compile(snapshot *model.Snapshot, links model.LinkMap) (*Problem, error) {
	problem := &Problem{
		Snapshot: snapshot,
		Links:    links,
		Blocks:   make([]Block, 0),
		Warnings: make([]string, 0),
	}
	institution := snapshot.Institution()
	rooms := snapshot.Rooms()

	rules := snapshot.Rules()
	slices.SortStableFunc(rules, func(rule1, rule2 model.CustomRule) int {
		return cmp.Compare(rulePriority[rule1.Kind], rulePriority[rule2.Kind])
	})

	for _, faculty := range snapshot.Faculty() {
		for _, workload := range faculty.Workload {
			placements := domain(institution, faculty, workload.ConsecutiveHours)
			candidates := lo.FilterMap(rooms, func(room model.Room, _ int) (string, bool) {
				return room.Id, room.Supports(workload.RequiredTags)
			})

			for index := range workload.Blocks() {
				block := Block{
					Id:           blockId(workload.Id, index),
					EventId:      workload.Id,
					Index:        index,
					FacultyId:    faculty.Id,
					Subject:      workload.Subject,
					Kind:         workload.Kind,
					Duration:     workload.ConsecutiveHours,
					Groups:       slices.Clone(workload.TargetGroups),
					RequiredTags: slices.Clone(workload.RequiredTags),
					Placements:   slices.Clone(placements),
					Rooms:        slices.Clone(candidates),
				}

				warnings, err := prune(&block, rules, institution, faculty, workload)
				if err != nil {
					return nil, err
				}
				problem.Warnings = append(problem.Warnings, warnings...)

				if len(block.Placements) == 0 {
					return nil, CompileInfeasible{Block: block.Id, Reason: "no (day, start slot) within the faculty's shift avoids lunch, blocked slots and time restrictions"}
				} else if len(block.Rooms) == 0 {
					return nil, CompileInfeasible{Block: block.Id, Reason: fmt.Sprintf("no room satisfies the required tags %v and the room rules", workload.RequiredTags)}
				}
				problem.Blocks = append(problem.Blocks, block)
			}

			if err := checkPinCount(rules, faculty, workload); err != nil {
				return nil, err
			}
		}
	}

	if err := checkPins(problem); err != nil {
		return nil, err
	}
	if err := checkCapacity(problem); err != nil {
		return nil, err
	}

	return problem, nil
}

// domain enumerates every (day, start) such that the whole span lies within the time
// slots, avoids lunch and is covered by the faculty's shift minus its blocked slots
func domain(institution model.Institution, faculty model.Faculty, duration int) []Placement {
	placements := make([]Placement, 0)
	for _, day := range institution.DaysActive {
		for _, start := range institution.TimeSlots {
			span, ok := institution.Span(start, duration)
			if !ok {
				continue
			}
			if lo.EveryBy(span, func(hour int) bool { return faculty.Available(day, hour) }) {
				placements = append(placements, Placement{Day: day, Start: start})
			}
		}
	}
	return placements
}

// prune applies every custom rule to the block. The i-th pin of an event collapses the
// domain of the event's i-th block; restrictions narrow unpinned blocks and only raise
// warnings for pinned ones.
func prune(block *Block, rules []model.CustomRule, institution model.Institution, faculty model.Faculty, workload model.Workload) ([]string, error) {
	warnings := make([]string, 0)
	pins := 0

	for _, rule := range rules {
		if !rule.Applies(faculty, workload) {
			continue
		}

		switch rule.Kind {
		case model.ForcePin:
			index := pins
			pins++
			if index != block.Index {
				continue
			}
			if err := pin(block, rule.Pin); err != nil {
				return nil, err
			}

		case model.RestrictTime:
			allowed := rule.Partition.Allowed(institution)
			inside := func(placement Placement) bool {
				return lo.Contains(allowed, placement.Start)
			}
			if block.Pinned != nil {
				if !inside(Placement{Day: block.Pinned.Day, Start: block.Pinned.Slot}) {
					warnings = append(warnings, fmt.Sprintf("block %s is pinned at %s %d outside the %s partition required by rule %q", block.Id, block.Pinned.Day, block.Pinned.Slot, rule.Partition, rule.Id))
				}
				continue
			}
			block.Placements = lo.Filter(block.Placements, func(placement Placement, _ int) bool { return inside(placement) })

		case model.ForceRoom:
			if block.Pinned != nil {
				if block.Pinned.Room != rule.Room {
					warnings = append(warnings, fmt.Sprintf("block %s is pinned to room %s instead of %s required by rule %q", block.Id, block.Pinned.Room, rule.Room, rule.Id))
				}
				continue
			}
			block.Rooms = lo.Filter(block.Rooms, func(room string, _ int) bool { return room == rule.Room })
		}
	}

	return warnings, nil
}

// pin collapses the block's domain to the pinned tuple, which must still respect the
// hard constraints the unpinned domain was built from
func pin(block *Block, pin model.Pin) error {
	placement := Placement{Day: pin.Day, Start: pin.Slot}
	if pin.Faculty != block.FacultyId {
		return CompileInfeasible{Block: block.Id, Reason: fmt.Sprintf("pinned faculty %s does not own the event (owner %s)", pin.Faculty, block.FacultyId)}
	} else if !lo.Contains(block.Placements, placement) {
		return CompileInfeasible{Block: block.Id, Reason: fmt.Sprintf("pinned placement %s %d is outside the time slots, crosses lunch or falls outside the faculty's availability", pin.Day, pin.Slot)}
	} else if !lo.Contains(block.Rooms, pin.Room) {
		return CompileInfeasible{Block: block.Id, Reason: fmt.Sprintf("pinned room %s is unknown or lacks the required tags %v", pin.Room, block.RequiredTags)}
	}

	block.Placements = []Placement{placement}
	block.Rooms = []string{pin.Room}
	block.Pinned = &pin
	return nil
}

func checkPinCount(rules []model.CustomRule, faculty model.Faculty, workload model.Workload) error {
	pins := lo.CountBy(rules, func(rule model.CustomRule) bool {
		return rule.Kind == model.ForcePin && rule.Applies(faculty, workload)
	})
	if blocks := workload.Blocks(); pins > blocks {
		return CompileInfeasible{Block: blockId(workload.Id, blocks-1), Reason: fmt.Sprintf("%d pins given for an event of %d blocks", pins, blocks)}
	}
	return nil
}

// checkPins verifies that no two pinned blocks clash on faculty, room or cohort
func checkPins(problem *Problem) error {
	pinned := lo.Filter(problem.Blocks, func(block Block, _ int) bool { return block.Pinned != nil })

	for i := range len(pinned) - 1 {
		for j := i + 1; j < len(pinned); j++ {
			block1, block2 := pinned[i], pinned[j]
			pin1, pin2 := block1.Pinned, block2.Pinned
			if !Overlaps(pin1.Day, pin1.Slot, block1.Duration, pin2.Day, pin2.Slot, block2.Duration) {
				continue
			}

			var resource string
			switch {
			case block1.FacultyId == block2.FacultyId:
				resource = "faculty " + block1.FacultyId
			case pin1.Room == pin2.Room:
				resource = "room " + pin1.Room
			case problem.Links.Collide(block1.Groups, block2.Groups):
				resource = fmt.Sprintf("cohort %v", block1.Groups)
			default:
				continue
			}
			return CompileInfeasible{Block: block2.Id, Reason: fmt.Sprintf("pin overlaps pinned block %s on %s", block1.Id, resource)}
		}
	}
	return nil
}
