package main

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/limaJavier/shiftsync/pkg/compiler"
	"github.com/limaJavier/shiftsync/pkg/model"
	"github.com/limaJavier/shiftsync/pkg/sat"
	"github.com/samber/lo"
)

const (
	executablePath                     = "../../bin/shiftsync"
	satisfiableTestDirectory           = "../../test/out/satisfiable/"
	unsatisfiableTestDirectory         = "../../test/out/unsatisfiable/"
	timeout                            = "120s"
	MB                         float32 = 1024
)

type ResultType int

const (
	solved ResultType = iota
	unsatisfiable
	timedOut
)

var resultTypes = map[ResultType]string{
	solved:        "solved",
	unsatisfiable: "unsatisfiable",
	timedOut:      "timeout",
}

type TestMetadata struct {
	Name        string
	Satisfiable bool
	Faculty     int
	Workloads   int
	Blocks      int
	Rooms       int
	Groups      int
}

type BenchmarkResult struct {
	Solver        string
	Test          TestMetadata
	Duration      int64
	Memory        float32
	CpuPercentage int64
	Result        ResultType
}

// Runs the CLI under /usr/bin/time for every test input and SAT solver and writes the
// measurements to benchmark_results.csv
func main() {
	tests := getTests()
	solvers := sat.Names()
	results := make([]BenchmarkResult, 0, len(tests)*len(solvers))

	for _, test := range tests {
		for _, solver := range solvers {
			fmt.Printf("Benchmarking test \"%v\" with solver \"%v\"\n", test.Name, solver)

			duration, maxMemory, cpuPercentage, result := measure(solver, test.Name)

			results = append(results, BenchmarkResult{
				Solver:        solver,
				Test:          test,
				Duration:      duration,
				Memory:        maxMemory,
				CpuPercentage: cpuPercentage,
				Result:        result,
			})
		}
	}

	toCsv(results)
}

func getTests() []TestMetadata {
	tests := make([]TestMetadata, 0)
	for _, tuple := range lo.Zip2([]string{satisfiableTestDirectory, unsatisfiableTestDirectory}, []bool{true, false}) {
		directory, satisfiable := tuple.A, tuple.B
		testFiles, err := os.ReadDir(directory)
		if err != nil {
			log.Fatalf("cannot read directory: %v", err)
		}

		for _, file := range testFiles {
			filename := directory + file.Name()
			input, err := model.InputFromJson(filename)
			if err != nil {
				log.Fatalf("cannot parse input file: %v", err)
			}
			snapshot, err := model.NewSnapshot(input)
			if err != nil {
				log.Fatalf("invalid input file %v: %v", filename, err)
			}
			links, _ := model.ResolveLinks(snapshot.Groups())

			// Blocks stays 0 for inputs rejected before solving
			blocks := 0
			if problem, err := compiler.Compile(snapshot, links); err == nil {
				blocks = len(problem.Blocks)
			}

			tests = append(tests, TestMetadata{
				Name:        filename,
				Satisfiable: satisfiable,
				Faculty:     len(snapshot.Faculty()),
				Workloads:   len(snapshot.Workloads()),
				Blocks:      blocks,
				Rooms:       len(snapshot.Rooms()),
				Groups:      len(snapshot.Groups()),
			})
		}
	}

	return tests
}

func measure(solver string, testFile string) (duration int64, maxMemory float32, cpuPercentage int64, result ResultType) {
	cmd := exec.Command("/usr/bin/time", "-v", executablePath, "-solver", solver, "-timeout", timeout, "-file", testFile, "-out", os.DevNull)

	var stdErr bytes.Buffer
	cmd.Stderr = &stdErr

	cmd.Run()
	switch cmd.ProcessState.ExitCode() {
	case 10:
		result = solved
	case 20:
		result = unsatisfiable
	case 30:
		result = timedOut
	default:
		log.Fatalf("an error occurred during the execution of \"shiftsync\" at test \"%v\" using solver \"%v\": %v\n", testFile, solver, stdErr.String())
	}

	lines := strings.Split(stdErr.String(), "\n")
	getLine := func(substr string) string {
		line, ok := lo.Find(lines, func(line string) bool {
			return strings.Contains(strings.ToLower(line), substr)
		})
		if !ok {
			log.Fatalf("Substring \"%v\" could not be found", substr)
		}
		return line
	}

	duration = parseDurationLine(getLine("wall clock"))
	maxMemory = parseMemoryLine(getLine("maximum resident set size"))
	cpuPercentage = parseCpuPercentageLine(getLine("percent of cpu"))

	return duration, maxMemory, cpuPercentage, result
}

func toCsv(results []BenchmarkResult) {
	file, err := os.Create("benchmark_results.csv")
	if err != nil {
		log.Panicf("cannot create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Solver", "Test", "Satisfiable", "Faculty", "Workloads", "Blocks", "Rooms", "Groups", "Duration(ms)", "Memory(MB)", "CPU(%)", "Result"}
	if err := writer.Write(header); err != nil {
		log.Panicf("cannot write CSV header: %v", err)
	}

	for _, result := range results {
		record := []string{
			result.Solver,
			result.Test.Name,
			strconv.FormatBool(result.Test.Satisfiable),
			strconv.Itoa(result.Test.Faculty),
			strconv.Itoa(result.Test.Workloads),
			strconv.Itoa(result.Test.Blocks),
			strconv.Itoa(result.Test.Rooms),
			strconv.Itoa(result.Test.Groups),
			strconv.FormatInt(result.Duration, 10),
			fmt.Sprintf("%.1f", result.Memory),
			strconv.FormatInt(result.CpuPercentage, 10),
			resultTypes[result.Result],
		}
		if err := writer.Write(record); err != nil {
			log.Panicf("cannot write CSV record: %v", err)
		}
	}
}

func parseDurationLine(line string) int64 {
	_, durationStr, _ := strings.Cut(line, "(h:mm:ss or m:ss): ")
	return parseDuration(strings.TrimSpace(durationStr))
}

// parseDuration converts "h:mm:ss.cc" or "m:ss.cc" into milliseconds
func parseDuration(durationStr string) int64 {
	parts := strings.Split(durationStr, ":")
	if len(parts) != 2 && len(parts) != 3 {
		log.Fatalf("unexpected duration format: %v", durationStr)
	}

	seconds, hundredths, _ := strings.Cut(parts[len(parts)-1], ".")
	var total int64
	for _, part := range append(parts[:len(parts)-1], seconds) {
		total = total*60 + int64(lo.Must(strconv.Atoi(part)))
	}
	return total*1000 + int64(lo.Must(strconv.Atoi(hundredths)))*10
}

func parseMemoryLine(line string) float32 {
	_, memoryStr, _ := strings.Cut(line, ": ")
	return float32(lo.Must(strconv.ParseFloat(strings.TrimSpace(memoryStr), 32))) / MB
}

func parseCpuPercentageLine(line string) int64 {
	_, percentageStr, _ := strings.Cut(line, ": ")
	return int64(lo.Must(strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(percentageStr), "%"))))
}
