package sat

import "context"

type kissatSolver struct {
	path string
}

func NewKissatSolver() SATSolver {
	return &kissatSolver{path: ExecutablePath("kissat")}
}

func (solver *kissatSolver) Solve(ctx context.Context, sat SAT) (SATSolution, error) {
	dimacs := sat.ToDIMACS() // Transform SAT into DIMACS-CNF string format

	output, satisfiable, err := execute(ctx, "kissat", solver.path, []string{"-q", "--relaxed"}, dimacs)
	if err != nil {
		return nil, err
	} else if !satisfiable {
		return nil, nil
	}
	return parseSolution(output)
}
