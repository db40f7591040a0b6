package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/limaJavier/shiftsync/pkg/compiler"
	"github.com/limaJavier/shiftsync/pkg/matrix"
	"github.com/limaJavier/shiftsync/pkg/model"
	"github.com/limaJavier/shiftsync/pkg/sat"
	"github.com/limaJavier/shiftsync/pkg/solver"
	"github.com/samber/lo"
)

// Exit codes
const (
	solved     = 10
	violated   = 15
	infeasible = 20
	timedOut   = 30
)

var validBackends = []string{"local", "http"}

type output struct {
	Schedule []matrix.Entry   `json:"schedule"`
	Rows     []matrix.Row     `json:"rows"`
	Fatigue  []matrix.Fatigue `json:"fatigue"`
	Warnings []string         `json:"warnings"`
}

func main() {
	setConfigPath()
	// Define arguments
	backendPtr := flag.String("backend", "local", `Solving backend. Allowed values are:
- "local" (the problem is encoded into CNF and solved by a SAT solver on this machine) and
- "http" (the payload is posted to an external solving service given by -url), where "local" is the default`)
	solverPtr := flag.String("solver", "kissat", fmt.Sprintf("SAT solver used by the local backend. Allowed values are: %v, where \"kissat\" is the default", sat.Names()))
	urlPtr := flag.String("url", "", "Endpoint of the external solving service used by the http backend")
	timeoutPtr := flag.Duration("timeout", 30*time.Second, "Time allotted to the solver, where 30s is the default")
	filePathPtr := flag.String("file", "", "Path to the input file")
	outFilePathPtr := flag.String("out", "", "Path to the file where the output will be written; if empty, it'll be written into the Standard Output")
	verbosePtr := flag.Bool("verbose", false, "Log encoding statistics")
	flag.Parse()
	backend := strings.ToLower(*backendPtr)
	filePath := *filePathPtr
	outFile := *outFilePathPtr

	// Validate arguments
	if !slices.Contains(validBackends, backend) {
		log.Fatalf("%v is not a valid backend", backend)
	} else if backend == "local" && !slices.Contains(sat.Names(), strings.ToLower(*solverPtr)) {
		log.Fatalf("%v is not a valid solver", *solverPtr)
	} else if backend == "http" && *urlPtr == "" {
		log.Fatal("the http backend requires an url")
	} else if filePath == "" {
		log.Fatal("an input file must be specified")
	} else if *timeoutPtr <= 0 {
		log.Fatalf("timeout must be positive: %v", *timeoutPtr)
	}

	level := slog.LevelWarn
	if *verbosePtr {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Extract input
	input, err := model.InputFromJson(filePath)
	if err != nil {
		log.Fatalf("cannot parse input file: %v", err)
	}
	snapshot, err := model.NewSnapshot(input)
	if err != nil {
		log.Fatalf("invalid input: %v", err)
	}
	if errs := snapshot.Precheck(); len(errs) > 0 {
		log.Fatalf("input cannot be scheduled: %v", errs)
	}

	// Compile problem
	links, ambiguities := model.ResolveLinks(snapshot.Groups())
	warnings := lo.Map(ambiguities, func(ambiguity model.LinkageAmbiguity, _ int) string { return ambiguity.Error() })
	problem, err := compiler.Compile(snapshot, links)
	var compileInfeasible compiler.CompileInfeasible
	if errors.As(err, &compileInfeasible) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(infeasible)
	} else if err != nil {
		log.Fatalf("an error occurred during compilation: %v", err)
	}
	warnings = append(warnings, problem.Warnings...)

	// Initialize engine
	var engine solver.Solver
	if backend == "local" {
		satSolver, err := sat.New(*solverPtr, "")
		if err != nil {
			log.Fatal(err)
		}
		engine = solver.NewLocalSolver(satSolver, *timeoutPtr, logger)
	} else {
		engine = solver.NewHTTPSolver(*urlPtr, *timeoutPtr, nil)
	}

	// Solve and verify timetable correctness
	entries, err := engine.Solve(context.Background(), problem)
	var (
		timeout    solver.SolverTimeout
		noSolution solver.SolverInfeasible
	)
	if errors.As(err, &timeout) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(timedOut)
	} else if errors.As(err, &noSolution) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(infeasible)
	} else if err != nil {
		log.Fatalf("an error occurred during timetable construction: %v", err)
	}

	timetable, err := matrix.Build(snapshot, links, entries)
	var violation matrix.PostSolveInvariantViolation
	if errors.As(err, &violation) {
		for _, message := range violation.Violations {
			fmt.Fprintln(os.Stderr, message)
		}
		os.Exit(violated)
	} else if err != nil {
		log.Fatalf("an error occurred during timetable verification: %v", err)
	}

	// Marshal output into json
	outputJson, err := json.MarshalIndent(output{
		Schedule: timetable.Entries(),
		Rows:     timetable.Rows(),
		Fatigue:  timetable.FatigueReport(),
		Warnings: warnings,
	}, "", "  ")
	if err != nil {
		log.Fatalf("an error occurred while building output json: %v", err)
	}

	// Verify outfile is empty, if so then write the results to the Standard Output
	if outFile == "" {
		fmt.Println(string(outputJson))
	} else if err := os.WriteFile(outFile, outputJson, 0666); err != nil {
		log.Fatalf("an error occurred while writing to the output file: %v", err)
	}

	fmt.Fprintf(os.Stderr, "Blocks: %v\n", len(problem.Blocks))
	fmt.Fprintf(os.Stderr, "Rows: %v\n", len(timetable.Rows()))
	os.Exit(solved)
}

// setConfigPath points the SAT layer at the config.json lying next to the executable, if any
func setConfigPath() {
	execPath, err := os.Executable()
	if err != nil {
		log.Fatalf("cannot determine executable path: %v", err)
	}
	execPath = path.Dir(execPath)

	files, err := os.ReadDir(execPath)
	if err != nil {
		log.Fatalf("cannot read executable's directory: %v", err)
	}
	fileNames := lo.Map(files, func(file os.DirEntry, _ int) string { return file.Name() })

	if slices.Contains(fileNames, "config.json") {
		sat.ConfigPath = execPath + "/config.json"
	}
}
