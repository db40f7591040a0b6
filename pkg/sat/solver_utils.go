package sat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
)

// ConfigPath points to a JSON file mapping "<solver>Path" keys to executables
var ConfigPath = "config.json"

var constructors = map[string]func(path string) SATSolver{
	"kissat":        func(path string) SATSolver { return &kissatSolver{path: path} },
	"cadical":       func(path string) SATSolver { return &cadicalSolver{path: path} },
	"cryptominisat": func(path string) SATSolver { return &cryptominisatSolver{path: path} },
	"minisat":       func(path string) SATSolver { return &minisatSolver{path: path} },
}

// Names returns the supported solvers
func Names() []string {
	names := lo.Keys(constructors)
	slices.Sort(names)
	return names
}

// New builds the named solver. An empty path falls back to ExecutablePath.
func New(name, path string) (SATSolver, error) {
	constructor, ok := constructors[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown SAT solver %q, expected one of %v", name, Names())
	}
	if path == "" {
		path = ExecutablePath(name)
	}
	return constructor(path), nil
}

// ExecutablePath looks the solver up in the file at ConfigPath and falls back to its
// name, which is then resolved through PATH
func ExecutablePath(solver string) string {
	bytes, err := os.ReadFile(ConfigPath)
	if err != nil {
		return solver
	}
	var inputJson map[string]any
	if err := json.Unmarshal(bytes, &inputJson); err != nil {
		return solver
	}

	var config map[string]string
	if err := mapstructure.Decode(inputJson, &config); err != nil {
		return solver
	}

	if path, ok := config[solver+"Path"]; ok && path != "" {
		return path
	}
	return solver
}

// execute feeds dimacs into the solver's standard input. Exit-code of 10 stands for
// satisfiable and exit-code 20 stands for unsatisfiable.
func execute(ctx context.Context, name string, path string, args []string, dimacs string) (stdout string, satisfiable bool, err error) {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = strings.NewReader(dimacs)

	var stdOut bytes.Buffer
	cmd.Stdout = &stdOut
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err = cmd.Run()
	if ctx.Err() != nil {
		return "", false, ctx.Err()
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return "", false, fmt.Errorf("cannot run %s: %w", name, err)
	}

	switch cmd.ProcessState.ExitCode() {
	case 10:
		return stdOut.String(), true, nil
	case 20:
		return stdOut.String(), false, nil
	}
	return "", false, fmt.Errorf("an error occurred during %s execution: %v : %v", name, err, stderr.String())
}

// parseSolution extracts the model from the "v" lines of a solver's output
func parseSolution(solverOutput string) (SATSolution, error) {
	lines := lo.Filter(strings.Split(solverOutput, "\n"), func(line string, _ int) bool {
		return len(line) > 0 && line[0] == 'v'
	})

	solution := make(SATSolution, 0)
	for _, line := range lines {
		for _, valueStr := range strings.Fields(line[1:]) {
			value, err := strconv.ParseInt(valueStr, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid literal in solver output: %w", err)
			}
			if value == 0 {
				return solution, nil
			}
			solution = append(solution, value)
		}
	}

	if len(lines) == 0 {
		return nil, fmt.Errorf("solver reported satisfiable but printed no model")
	}
	return solution, nil
}
