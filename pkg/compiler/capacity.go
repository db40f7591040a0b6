package compiler

import (
	"fmt"

	"github.com/onsi/gomega/matchers/support/goraph/bipartitegraph"
	"github.com/samber/lo"
)

// cell is one (room, day, slot) hour of room time
type cell struct {
	room string
	day  string
	slot int
}

// blockHour is the hour-th hour of a block, a left node of the capacity graph
type blockHour struct {
	block int
	hour  int
}

// checkCapacity matches every block-hour to a distinct room hour it could occupy. It is a
// relaxation of the room and exactly-one constraints: a problem failing it has no
// solution, a problem passing it may still be infeasible.
func checkCapacity(problem *Problem) error {
	reachable := make([]map[cell]bool, len(problem.Blocks))
	cellsSet := make(map[cell]bool)
	left := make([]any, 0)

	for i, block := range problem.Blocks {
		reachable[i] = make(map[cell]bool)
		for _, placement := range block.Placements {
			for _, slot := range block.Span(placement.Start) {
				for _, room := range block.Rooms {
					c := cell{room: room, day: placement.Day, slot: slot}
					reachable[i][c] = true
					cellsSet[c] = true
				}
			}
		}
		for hour := range block.Duration {
			left = append(left, blockHour{block: i, hour: hour})
		}
	}
	right := lo.Map(lo.Keys(cellsSet), func(c cell, _ int) any { return c })

	// Every block-hour can reach every hour of its block, so the hour index does not restrict edges
	neighbours := func(leftAny any, rightAny any) (bool, error) {
		node := leftAny.(blockHour)
		c := rightAny.(cell)
		return reachable[node.block][c], nil
	}

	graph, err := bipartitegraph.NewBipartiteGraph(left, right, neighbours)
	if err != nil {
		return fmt.Errorf("cannot build capacity graph: %w", err)
	}

	matching := graph.LargestMatching()
	if len(matching) == len(left) {
		return nil
	}

	matched := make(map[int]bool, len(matching))
	for _, edge := range matching {
		matched[edge.Node1] = true
	}
	for i, node := range left {
		if !matched[i] {
			block := problem.Blocks[node.(blockHour).block]
			return CompileInfeasible{
				Block:  block.Id,
				Reason: fmt.Sprintf("room capacity exhausted: only %d of %d block-hours fit into distinct room hours", len(matching), len(left)),
			}
		}
	}
	return nil
}
