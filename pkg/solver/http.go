package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/limaJavier/shiftsync/pkg/compiler"
	"github.com/limaJavier/shiftsync/pkg/matrix"
)

// Bodies larger than this are rejected as a protocol error
const maxResponseBytes = 32 << 20

type httpSolver struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
}

// NewHTTPSolver returns a Solver posting the generation payload to an external solving
// service. A nil client defaults to http.DefaultClient.
func NewHTTPSolver(endpoint string, timeout time.Duration, client *http.Client) Solver {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpSolver{endpoint: endpoint, timeout: timeout, client: client}
}

func (solver *httpSolver) Solve(ctx context.Context, problem *compiler.Problem) ([]matrix.Entry, error) {
	ctx, cancel := withTimeout(ctx, solver.timeout)
	defer cancel()

	payload, err := json.Marshal(problem.Snapshot.Payload())
	if err != nil {
		return nil, fmt.Errorf("cannot encode generation request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, solver.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("cannot build generation request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")

	httpResponse, err := solver.client.Do(request)
	if err != nil {
		return nil, classify(ctx, solver.timeout, SolverProtocolError{Reason: "cannot reach solver", Err: err})
	}
	defer httpResponse.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResponse.Body, maxResponseBytes))
	if err != nil {
		return nil, classify(ctx, solver.timeout, SolverProtocolError{Reason: "cannot read response", Err: err})
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, SolverProtocolError{Reason: fmt.Sprintf("status %d with a non-JSON body", httpResponse.StatusCode), Err: err}
	}

	switch {
	case httpResponse.StatusCode >= 200 && httpResponse.StatusCode < 300:
		return decodeResponse(body)
	case httpResponse.StatusCode == http.StatusUnprocessableEntity:
		return nil, SolverInfeasible{Reason: reasonOf(body)}
	case httpResponse.StatusCode == http.StatusBadRequest && body["validation_errors"] != nil:
		return nil, SolverInfeasible{Reason: reasonOf(body)}
	}
	return nil, SolverProtocolError{Reason: fmt.Sprintf("unexpected status %d: %s", httpResponse.StatusCode, reasonOf(body))}
}

func reasonOf(body map[string]any) string {
	var resp response
	if err := decode(body, &resp); err != nil {
		return fmt.Sprintf("%v", body)
	}
	return reason(resp)
}
