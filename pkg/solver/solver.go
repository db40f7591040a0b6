package solver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/limaJavier/shiftsync/pkg/compiler"
	"github.com/limaJavier/shiftsync/pkg/matrix"
)

// Solver searches an assignment for a compiled problem. The returned entries are
// candidates only: they must go through matrix.Build before being trusted.
type Solver interface {
	Solve(ctx context.Context, problem *compiler.Problem) ([]matrix.Entry, error)
}

// SolverTimeout is returned when the solver did not answer within the allotted time
type SolverTimeout struct {
	Timeout time.Duration
	Err     error
}

func (err SolverTimeout) Error() string {
	return fmt.Sprintf("solver did not answer within %v", err.Timeout)
}

func (err SolverTimeout) Unwrap() error {
	return err.Err
}

// SolverInfeasible is returned when the solver completed without finding an assignment
type SolverInfeasible struct {
	Reason string
}

func (err SolverInfeasible) Error() string {
	return fmt.Sprintf("solver found no feasible timetable: %s", err.Reason)
}

// SolverProtocolError is returned when the solver could not be reached or answered with
// an unexpected shape
type SolverProtocolError struct {
	Reason string
	Err    error
}

func (err SolverProtocolError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("solver protocol error: %s: %v", err.Reason, err.Err)
	}
	return fmt.Sprintf("solver protocol error: %s", err.Reason)
}

func (err SolverProtocolError) Unwrap() error {
	return err.Err
}

// withTimeout bounds ctx by timeout when positive
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// classify turns a context failure into a SolverTimeout and leaves other errors untouched
func classify(ctx context.Context, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return SolverTimeout{Timeout: timeout, Err: context.DeadlineExceeded}
	}
	return err
}
