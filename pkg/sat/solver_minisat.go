package sat

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type minisatSolver struct {
	path string
}

func NewMinisatSolver() SATSolver {
	return &minisatSolver{path: ExecutablePath("minisat")}
}

// Minisat reads the instance from stdin but only writes the model to a file
func (solver *minisatSolver) Solve(ctx context.Context, sat SAT) (SATSolution, error) {
	dimacs := sat.ToDIMACS() // Transform SAT into DIMACS-CNF string format

	outputTempFile, err := os.CreateTemp("", "minisat_output-*.cnf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	outputTempFile.Close()
	defer os.Remove(outputTempFile.Name()) // Ensure the file is removed after execution

	_, satisfiable, err := execute(ctx, "minisat", solver.path, []string{"-verb=0", "/dev/stdin", outputTempFile.Name()}, dimacs)
	if err != nil {
		return nil, err
	} else if !satisfiable {
		return nil, nil
	}

	output, err := os.ReadFile(outputTempFile.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to read output file: %w", err)
	}
	return solver.parseSolution(string(output))
}

// The first line is the SAT/UNSAT header, the second one holds the model
func (solver *minisatSolver) parseSolution(solverOutput string) (SATSolution, error) {
	lines := strings.Split(solverOutput, "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("unexpected minisat output: %q", solverOutput)
	}

	solution := make(SATSolution, 0)
	for _, valueStr := range strings.Fields(lines[1]) {
		value, err := strconv.ParseInt(valueStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid literal in minisat output: %w", err)
		}
		if value == 0 {
			break
		}
		solution = append(solution, value)
	}
	return solution, nil
}
