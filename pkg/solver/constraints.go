package solver

import (
	"github.com/limaJavier/shiftsync/pkg/compiler"
	"github.com/limaJavier/shiftsync/pkg/sat"
	"github.com/samber/lo"
)

type constraintState struct {
	problem *compiler.Problem
	indexer *indexer
}

// completenessConstraints: every block starts somewhere, and a chosen placement has a room
func completenessConstraints(state constraintState) [][]int64 {
	clauses := make([][]int64, 0)
	for i, block := range state.problem.Blocks {
		// OR_p y(b, p)
		clauses = append(clauses, lo.Map(block.Placements, func(_ compiler.Placement, p int) int64 {
			return state.indexer.PlacementIndex(i, p)
		}))

		for p := range block.Placements {
			// y(b, p) => OR_r x(b, p, r)
			clause := []int64{-state.indexer.PlacementIndex(i, p)}
			for r := range block.Rooms {
				clause = append(clause, state.indexer.Index(i, p, r))
			}
			clauses = append(clauses, clause)

			// x(b, p, r) => y(b, p)
			for r := range block.Rooms {
				clauses = append(clauses, []int64{-state.indexer.Index(i, p, r), state.indexer.PlacementIndex(i, p)})
			}
		}
	}
	return clauses
}

// uniquenessConstraints: at most one placement per block and at most one room per placement
func uniquenessConstraints(state constraintState) [][]int64 {
	clauses := make([][]int64, 0)
	for i, block := range state.problem.Blocks {
		for p1 := range len(block.Placements) - 1 {
			for p2 := p1 + 1; p2 < len(block.Placements); p2++ {
				clauses = append(clauses, []int64{-state.indexer.PlacementIndex(i, p1), -state.indexer.PlacementIndex(i, p2)})
			}
		}
		for p := range block.Placements {
			for r1 := range len(block.Rooms) - 1 {
				for r2 := r1 + 1; r2 < len(block.Rooms); r2++ {
					clauses = append(clauses, []int64{-state.indexer.Index(i, p, r1), -state.indexer.Index(i, p, r2)})
				}
			}
		}
	}
	return clauses
}

// exclusionConstraints: blocks sharing a faculty or a (linked) cohort never overlap, whatever their rooms
func exclusionConstraints(state constraintState) [][]int64 {
	clauses := make([][]int64, 0)
	blocks := state.problem.Blocks
	for i := range len(blocks) - 1 {
		for j := i + 1; j < len(blocks); j++ {
			if !state.problem.Conflicting(blocks[i], blocks[j]) {
				continue
			}
			for p1, placement1 := range blocks[i].Placements {
				for p2, placement2 := range blocks[j].Placements {
					if compiler.Overlaps(placement1.Day, placement1.Start, blocks[i].Duration, placement2.Day, placement2.Start, blocks[j].Duration) {
						clauses = append(clauses, []int64{-state.indexer.PlacementIndex(i, p1), -state.indexer.PlacementIndex(j, p2)})
					}
				}
			}
		}
	}
	return clauses
}

// roomConstraints: blocks placed in the same room never overlap. Pairs already excluded
// by exclusionConstraints are skipped.
func roomConstraints(state constraintState) [][]int64 {
	clauses := make([][]int64, 0)
	blocks := state.problem.Blocks
	for i := range len(blocks) - 1 {
		for j := i + 1; j < len(blocks); j++ {
			if state.problem.Conflicting(blocks[i], blocks[j]) {
				continue
			}
			for r1, room := range blocks[i].Rooms {
				r2 := lo.IndexOf(blocks[j].Rooms, room)
				if r2 < 0 {
					continue
				}
				for p1, placement1 := range blocks[i].Placements {
					for p2, placement2 := range blocks[j].Placements {
						if compiler.Overlaps(placement1.Day, placement1.Start, blocks[i].Duration, placement2.Day, placement2.Start, blocks[j].Duration) {
							clauses = append(clauses, []int64{-state.indexer.Index(i, p1, r1), -state.indexer.Index(j, p2, r2)})
						}
					}
				}
			}
		}
	}
	return clauses
}

func buildSat(variables uint64, constraints []func(state constraintState) [][]int64, state constraintState) sat.SAT {
	satInstance := sat.SAT{
		Variables: variables,
		Clauses:   [][]int64{},
	}

	constraintsChannel := make(chan [][]int64, len(constraints)) // Channel to collect constraints

	// Execute constraints functions on different goroutines to improve performance
	for _, constraint := range constraints {
		go func(constraint func(state constraintState) [][]int64) {
			constraintsChannel <- constraint(state)
		}(constraint)
	}

	// Collect generated constraints
	for range constraints {
		satInstance.Clauses = append(satInstance.Clauses, <-constraintsChannel...)
	}

	return satInstance
}
