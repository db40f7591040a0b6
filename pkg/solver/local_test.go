package solver

import (
	"context"
	"errors"
	"maps"
	"testing"

	"github.com/limaJavier/shiftsync/pkg/compiler"
	"github.com/limaJavier/shiftsync/pkg/matrix"
	"github.com/limaJavier/shiftsync/pkg/model"
	"github.com/limaJavier/shiftsync/pkg/sat"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() model.Input {
	shift := []int{8, 9, 10, 11, 12, 13, 14, 15}
	return model.Input{
		CollegeSettings: model.Institution{
			DaysActive:            []string{"Mon", "Tue", "Wed", "Thu", "Fri"},
			TimeSlots:             []int{8, 9, 10, 11, 12, 13, 14, 15},
			LunchSlot:             13,
			MaxContinuousLectures: 2,
		},
		RoomsConfig: model.RoomsConfig{Rooms: []model.Room{
			{Id: "D201", Type: "Classroom", Capacity: 60, Tags: []string{"Theory_Room"}},
			{Id: "D205", Type: "Lab", Capacity: 30, Tags: []string{"Computer_Lab"}},
		}},
		Faculty: []model.Faculty{
			{
				Id: "F1", Name: "Ada", Shift: shift, MaxLoadHrs: 10,
				Workload: []model.Workload{{
					Id: "E1", Kind: model.Theory, Subject: "DBMS", TargetGroups: []string{"SY-CSDS-A"},
					WeeklyHours: 3, ConsecutiveHours: 1, RequiredTags: []string{"Theory_Room"},
				}},
			},
			{
				Id: "F2", Name: "Grace", Shift: shift, MaxLoadHrs: 10,
				Workload: []model.Workload{{
					Id: "E2", Kind: model.Practical, Subject: "DBMS-Lab", TargetGroups: []string{"SY-CSDS-A-B1"},
					WeeklyHours: 3, ConsecutiveHours: 3, RequiredTags: []string{"Computer_Lab"},
				}},
			},
		},
	}
}

func compileFixture(t *testing.T, input model.Input) (*compiler.Problem, *model.Snapshot, model.LinkMap) {
	t.Helper()
	snapshot, err := model.NewSnapshot(input)
	require.NoError(t, err)
	links, _ := model.ResolveLinks(snapshot.Groups())
	problem, err := compiler.Compile(snapshot, links)
	require.NoError(t, err)
	return problem, snapshot, links
}

// dpllSolver is an in-process SAT solver small enough for test instances
type dpllSolver struct{}

func (dpllSolver) Solve(ctx context.Context, instance sat.SAT) (sat.SATSolution, error) {
	assignment, ok := dpll(instance.Clauses, map[int64]bool{})
	if !ok {
		return nil, ctx.Err()
	}
	solution := make(sat.SATSolution, 0, instance.Variables)
	for variable := int64(1); variable <= int64(instance.Variables); variable++ {
		if assignment[variable] {
			solution = append(solution, variable)
		} else {
			solution = append(solution, -variable)
		}
	}
	return solution, ctx.Err()
}

func dpll(clauses [][]int64, assignment map[int64]bool) (map[int64]bool, bool) {
	assignment = maps.Clone(assignment)

	// Unit propagation
	for {
		unit := int64(0)
		for _, clause := range clauses {
			satisfied, unassigned, free := evaluate(clause, assignment)
			if satisfied {
				continue
			} else if unassigned == 0 {
				return nil, false
			} else if unassigned == 1 {
				unit = free
				break
			}
		}
		if unit == 0 {
			break
		}
		assignment[abs(unit)] = unit > 0
	}

	// Branch on the first free literal of the first unsatisfied clause
	for _, clause := range clauses {
		if satisfied, _, free := evaluate(clause, assignment); !satisfied {
			for _, value := range []bool{free > 0, free < 0} {
				branch := maps.Clone(assignment)
				branch[abs(free)] = value
				if result, ok := dpll(clauses, branch); ok {
					return result, true
				}
			}
			return nil, false
		}
	}
	return assignment, true
}

func evaluate(clause []int64, assignment map[int64]bool) (satisfied bool, unassigned int, free int64) {
	for _, literal := range clause {
		value, ok := assignment[abs(literal)]
		if !ok {
			unassigned++
			free = literal
			continue
		}
		if value == (literal > 0) {
			return true, unassigned, free
		}
	}
	return false, unassigned, free
}

func abs(literal int64) int64 {
	if literal < 0 {
		return -literal
	}
	return literal
}

type failingSolver struct{ err error }

func (solver failingSolver) Solve(context.Context, sat.SAT) (sat.SATSolution, error) {
	return nil, solver.err
}

func TestLocalSolver(t *testing.T) {
	t.Run("Solution passes post-solve validation", func(t *testing.T) {
		//** Arrange
		problem, snapshot, links := compileFixture(t, fixture())
		solver := NewLocalSolver(dpllSolver{}, 0, nil)

		//** Act
		entries, err := solver.Solve(context.Background(), problem)

		//** Assert
		require.NoError(t, err)
		result, err := matrix.Build(snapshot, links, entries)
		require.NoError(t, err)

		theory := lo.Filter(result.Rows(), func(row matrix.Row, _ int) bool { return row.EventId == "E1" })
		assert.Len(t, theory, 3)
		cells := lo.Uniq(lo.Map(theory, func(row matrix.Row, _ int) compiler.Placement {
			return compiler.Placement{Day: row.Day, Start: row.StartSlot}
		}))
		assert.Len(t, cells, 3)
		assert.False(t, lo.SomeBy(theory, func(row matrix.Row) bool { return row.StartSlot == 13 }))
	})

	t.Run("Pinned block is placed exactly at the pin", func(t *testing.T) {
		//** Arrange
		input := fixture()
		input.CollegeSettings.CustomRules = []model.RawRule{{
			ConditionField: "event_id", ConditionValue: "E2", ActionType: "FORCE_PIN",
			ActionValue: map[string]any{"day": "Mon", "slot": 9, "room": "D205", "faculty": "F2"},
		}}
		problem, snapshot, links := compileFixture(t, input)

		//** Act
		entries, err := NewLocalSolver(dpllSolver{}, 0, nil).Solve(context.Background(), problem)

		//** Assert
		require.NoError(t, err)
		result, err := matrix.Build(snapshot, links, entries)
		require.NoError(t, err)
		lab, ok := lo.Find(result.Rows(), func(row matrix.Row) bool { return row.EventId == "E2" })
		require.True(t, ok)
		assert.Equal(t, matrix.Row{
			EventId: "E2", Day: "Mon", StartSlot: 9, Duration: 3, RoomId: "D205", FacultyId: "F2",
			TargetGroups: []string{"SY-CSDS-A-B1"}, Subject: "DBMS-Lab", Kind: model.Practical,
		}, lab)
	})

	t.Run("Linked cohorts that cannot share the day are infeasible", func(t *testing.T) {
		//** Arrange
		input := fixture()
		input.CollegeSettings.DaysActive = []string{"Mon"}
		input.CollegeSettings.TimeSlots = []int{8, 9, 10, 11, 12}
		input.CollegeSettings.LunchSlot = 12
		problem, _, _ := compileFixture(t, input)

		//** Act
		_, err := NewLocalSolver(dpllSolver{}, 0, nil).Solve(context.Background(), problem)

		//** Assert
		var infeasible SolverInfeasible
		assert.True(t, errors.As(err, &infeasible))
	})

	t.Run("Deadline is reported as a timeout", func(t *testing.T) {
		//** Arrange
		problem, _, _ := compileFixture(t, fixture())
		solver := NewLocalSolver(failingSolver{err: context.DeadlineExceeded}, 0, nil)

		//** Act
		_, err := solver.Solve(context.Background(), problem)

		//** Assert
		var timeout SolverTimeout
		assert.True(t, errors.As(err, &timeout))
	})

	t.Run("SAT failures are protocol errors", func(t *testing.T) {
		//** Arrange
		problem, _, _ := compileFixture(t, fixture())
		solver := NewLocalSolver(failingSolver{err: errors.New("segmentation fault")}, 0, nil)

		//** Act
		_, err := solver.Solve(context.Background(), problem)

		//** Assert
		var protocol SolverProtocolError
		assert.True(t, errors.As(err, &protocol))
	})
}

func TestIndexer(t *testing.T) {
	//** Arrange
	problem, _, _ := compileFixture(t, fixture())
	indexer := newIndexer(problem.Blocks)
	seen := make(map[int64]bool)

	for i, block := range problem.Blocks {
		for p := range block.Placements {
			for r := range block.Rooms {
				//** Act
				index := indexer.Index(i, p, r)
				decodedBlock, decodedPlacement, decodedRoom, assignment := indexer.Attributes(index)

				//** Assert
				assert.False(t, seen[index])
				seen[index] = true
				assert.Equal(t, [3]int{i, p, r}, [3]int{decodedBlock, decodedPlacement, decodedRoom})
				assert.True(t, assignment)
			}

			index := indexer.PlacementIndex(i, p)
			decodedBlock, decodedPlacement, _, assignment := indexer.Attributes(index)
			assert.False(t, seen[index])
			seen[index] = true
			assert.Equal(t, [2]int{i, p}, [2]int{decodedBlock, decodedPlacement})
			assert.False(t, assignment)
		}
	}
	assert.Equal(t, uint64(len(seen)), indexer.Variables())
}
