package sat

import "context"

type cryptominisatSolver struct {
	path string
}

func NewCryptominisatSolver() SATSolver {
	return &cryptominisatSolver{path: ExecutablePath("cryptominisat")}
}

func (solver *cryptominisatSolver) Solve(ctx context.Context, sat SAT) (SATSolution, error) {
	dimacs := sat.ToDIMACS() // Transform SAT into DIMACS-CNF string format

	output, satisfiable, err := execute(ctx, "cryptominisat", solver.path, []string{"--verb", "0"}, dimacs)
	if err != nil {
		return nil, err
	} else if !satisfiable {
		return nil, nil
	}
	return parseSolution(output)
}
