package solver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/limaJavier/shiftsync/pkg/matrix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server.URL
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

func TestHTTPSolver(t *testing.T) {
	problem, _, _ := compileFixture(t, fixture())

	t.Run("Posts the generation payload and decodes every field alias", func(t *testing.T) {
		//** Arrange
		var request map[string]any
		url := serve(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
			respond(http.StatusOK, `{"schedule": [
				{"day": "Mon", "time_slot": 8, "subject": "DBMS", "faculty_id": "F1", "room": "D201", "targets": ["SY-CSDS-A"], "type": "Theory"},
				{"day": "Tue", "slot": "09:00", "subject": "DBMS", "faculty_name": "Ada", "room": "D201", "target": "SY-CSDS-A", "type": "Theory"},
				{"event_id": "E2", "day": "Wed", "slot": "10", "faculty_id": "F2", "room": "D205", "targets": ["SY-CSDS-A-B1"]}
			]}`)(w, r)
		})

		//** Act
		entries, err := NewHTTPSolver(url, time.Second, nil).Solve(context.Background(), problem)

		//** Assert
		require.NoError(t, err)
		assert.Contains(t, request, "college_settings")
		assert.Contains(t, request, "rooms_config")
		assert.Len(t, request["faculty"], 2)
		assert.Equal(t, []matrix.Entry{
			{Day: "Mon", Slot: 8, Subject: "DBMS", FacultyId: "F1", Room: "D201", Targets: []string{"SY-CSDS-A"}, Kind: "Theory"},
			{Day: "Tue", Slot: 9, Subject: "DBMS", FacultyName: "Ada", Room: "D201", Targets: []string{"SY-CSDS-A"}, Kind: "Theory"},
			{EventId: "E2", Day: "Wed", Slot: 10, FacultyId: "F2", Room: "D205", Targets: []string{"SY-CSDS-A-B1"}},
		}, entries)
	})

	infeasible := []struct {
		name   string
		status int
		body   string
	}{
		{"Infeasible status", http.StatusOK, `{"status": "infeasible", "message": "no solution"}`},
		{"Unprocessable entity", http.StatusUnprocessableEntity, `{"detail": "Could not generate timetable"}`},
		{"Validation errors", http.StatusBadRequest, `{"validation_errors": ["F1 max load exceeds presence"]}`},
	}
	for _, c := range infeasible {
		t.Run(c.name, func(t *testing.T) {
			//** Act
			_, err := NewHTTPSolver(serve(t, respond(c.status, c.body)), time.Second, nil).Solve(context.Background(), problem)

			//** Assert
			var target SolverInfeasible
			assert.True(t, errors.As(err, &target), "got %v", err)
		})
	}

	protocol := []struct {
		name   string
		status int
		body   string
	}{
		{"Server error", http.StatusInternalServerError, `{"detail": "boom"}`},
		{"Bad request without validation errors", http.StatusBadRequest, `{"detail": "bad"}`},
		{"Non-JSON body", http.StatusOK, `<html>`},
		{"Missing schedule", http.StatusOK, `{"status": "success"}`},
		{"Schedule is not a list", http.StatusOK, `{"schedule": 3}`},
		{"Entry without room", http.StatusOK, `{"schedule": [{"day": "Mon", "time_slot": 8, "faculty_id": "F1"}]}`},
		{"Entry without faculty", http.StatusOK, `{"schedule": [{"day": "Mon", "time_slot": 8, "room": "D201"}]}`},
		{"Entry with a garbage slot", http.StatusOK, `{"schedule": [{"day": "Mon", "time_slot": "noon", "room": "D201", "faculty_id": "F1"}]}`},
	}
	for _, c := range protocol {
		t.Run(c.name, func(t *testing.T) {
			//** Act
			_, err := NewHTTPSolver(serve(t, respond(c.status, c.body)), time.Second, nil).Solve(context.Background(), problem)

			//** Assert
			var target SolverProtocolError
			assert.True(t, errors.As(err, &target), "got %v", err)
		})
	}

	t.Run("Unreachable solver", func(t *testing.T) {
		//** Arrange
		server := httptest.NewServer(respond(http.StatusOK, `{}`))
		url := server.URL
		server.Close()

		//** Act
		_, err := NewHTTPSolver(url, time.Second, nil).Solve(context.Background(), problem)

		//** Assert
		var target SolverProtocolError
		assert.True(t, errors.As(err, &target), "got %v", err)
	})

	t.Run("Slow solver times out", func(t *testing.T) {
		//** Arrange
		url := serve(t, func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		})

		//** Act
		_, err := NewHTTPSolver(url, 50*time.Millisecond, nil).Solve(context.Background(), problem)

		//** Assert
		var target SolverTimeout
		require.True(t, errors.As(err, &target), "got %v", err)
		assert.Equal(t, 50*time.Millisecond, target.Timeout)
	})
}
