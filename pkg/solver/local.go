package solver

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/limaJavier/shiftsync/pkg/compiler"
	"github.com/limaJavier/shiftsync/pkg/matrix"
	"github.com/limaJavier/shiftsync/pkg/sat"
)

type localSolver struct {
	solver  sat.SATSolver
	timeout time.Duration
	logger  *slog.Logger
}

// NewLocalSolver returns a Solver that encodes the problem into CNF and hands it to a SAT
// solver running on this machine
func NewLocalSolver(solver sat.SATSolver, timeout time.Duration, logger *slog.Logger) Solver {
	if logger == nil {
		logger = slog.Default()
	}
	return &localSolver{solver: solver, timeout: timeout, logger: logger}
}

func (solver *localSolver) Solve(ctx context.Context, problem *compiler.Problem) ([]matrix.Entry, error) {
	ctx, cancel := withTimeout(ctx, solver.timeout)
	defer cancel()

	//** Build SAT instance
	indexer := newIndexer(problem.Blocks)
	constraints := []func(state constraintState) [][]int64{
		completenessConstraints,
		uniquenessConstraints,
		exclusionConstraints,
		roomConstraints,
	}
	state := constraintState{problem: problem, indexer: indexer}
	satInstance := buildSat(indexer.Variables(), constraints, state)
	solver.logger.Debug("encoded timetabling problem", "blocks", len(problem.Blocks), "variables", satInstance.Variables, "clauses", len(satInstance.Clauses))

	//** Solve SAT instance
	solution, err := solver.solver.Solve(ctx, satInstance)
	if err != nil {
		return nil, classify(ctx, solver.timeout, SolverProtocolError{Reason: "SAT solver failed", Err: err})
	} else if solution == nil {
		return nil, SolverInfeasible{Reason: "no assignment satisfies the hard constraints"}
	}

	//** Decode assignment variables
	entries := make([]matrix.Entry, 0)
	for _, variable := range solution {
		if variable <= 0 || uint64(variable) > indexer.Variables() {
			continue
		}
		i, p, r, assignment := indexer.Attributes(variable)
		if !assignment {
			continue
		}

		block := problem.Blocks[i]
		placement := block.Placements[p]
		for _, slot := range block.Span(placement.Start) {
			entries = append(entries, matrix.Entry{
				EventId:   block.EventId,
				Day:       placement.Day,
				Slot:      slot,
				Subject:   block.Subject,
				FacultyId: block.FacultyId,
				Room:      block.Rooms[r],
				Targets:   slices.Clone(block.Groups),
				Kind:      string(block.Kind),
			})
		}
	}

	return entries, nil
}
