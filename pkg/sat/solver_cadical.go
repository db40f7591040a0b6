package sat

import "context"

type cadicalSolver struct {
	path string
}

func NewCadicalSolver() SATSolver {
	return &cadicalSolver{path: ExecutablePath("cadical")}
}

func (solver *cadicalSolver) Solve(ctx context.Context, sat SAT) (SATSolution, error) {
	dimacs := sat.ToDIMACS() // Transform SAT into DIMACS-CNF string format

	output, satisfiable, err := execute(ctx, "cadical", solver.path, []string{"-q"}, dimacs)
	if err != nil {
		return nil, err
	} else if !satisfiable {
		return nil, nil
	}
	return parseSolution(output)
}
