package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/limaJavier/shiftsync/internal/generation"
	"github.com/limaJavier/shiftsync/internal/lease"
	"github.com/limaJavier/shiftsync/internal/store"
	"github.com/limaJavier/shiftsync/pkg/compiler"
	"github.com/limaJavier/shiftsync/pkg/matrix"
	"github.com/limaJavier/shiftsync/pkg/model"
	"github.com/limaJavier/shiftsync/pkg/solver"
)

type Handler struct {
	service *generation.Service
	logger  *slog.Logger
}

// bindInput decodes a generation payload, accepting delimiter-separated strings for lists
func bindInput(c *gin.Context) (model.Input, bool) {
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return model.Input{}, false
	}
	input, err := model.DecodeInput(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return model.Input{}, false
	}
	return input, true
}

// respondError maps domain errors onto status codes. record is the persisted failed
// generation, when there is one.
func (handler *Handler) respondError(c *gin.Context, err error, record *store.Generation) {
	var (
		validation model.ValidationErrors
		infeasible compiler.CompileInfeasible
		timeout    solver.SolverTimeout
		noSolution solver.SolverInfeasible
		protocol   solver.SolverProtocolError
		violation  matrix.PostSolveInvariantViolation
	)

	body := gin.H{"error": err.Error()}
	if record != nil {
		body["generation"] = record
	}

	switch {
	case errors.As(err, &validation):
		body["validation_errors"] = validation
		c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &infeasible):
		body["block"] = infeasible.Block
		c.JSON(http.StatusUnprocessableEntity, body)
	case errors.Is(err, lease.ErrHeld):
		c.JSON(http.StatusConflict, body)
	case errors.As(err, &timeout):
		c.JSON(http.StatusGatewayTimeout, body)
	case errors.As(err, &noSolution), errors.As(err, &violation):
		c.JSON(http.StatusUnprocessableEntity, body)
	case errors.As(err, &protocol):
		c.JSON(http.StatusBadGateway, body)
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, body)
	case errors.Is(err, store.ErrNotActivatable), errors.Is(err, generation.ErrNotReady):
		c.JSON(http.StatusConflict, body)
	default:
		handler.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func (handler *Handler) Validate(c *gin.Context) {
	input, ok := bindInput(c)
	if !ok {
		return
	}
	report := handler.service.Check(input)
	status := http.StatusOK
	if len(report.Errors) > 0 {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, report)
}

func (handler *Handler) Generate(c *gin.Context) {
	input, ok := bindInput(c)
	if !ok {
		return
	}

	result, err := handler.service.Generate(c.Request.Context(), c.Param("institution"), input)
	if err != nil {
		var record *store.Generation
		if result.Generation.Id != "" {
			record = &result.Generation
		}
		handler.respondError(c, err, record)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"generation": result.Generation,
		"warnings":   result.Warnings,
		"rows":       result.Matrix.Rows(),
		"fatigue":    result.Matrix.FatigueReport(),
	})
}

func (handler *Handler) History(c *gin.Context) {
	history, err := handler.service.History(c.Request.Context(), c.Param("institution"))
	if err != nil {
		handler.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (handler *Handler) Purge(c *gin.Context) {
	deleted, err := handler.service.Purge(c.Request.Context(), c.Param("institution"))
	if err != nil {
		handler.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (handler *Handler) Active(c *gin.Context) {
	active, err := handler.service.Active(c.Request.Context(), c.Param("institution"))
	if err != nil {
		handler.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, active)
}

func (handler *Handler) Activate(c *gin.Context) {
	if err := handler.service.Activate(c.Request.Context(), c.Param("id")); err != nil {
		handler.respondError(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

func (handler *Handler) Delete(c *gin.Context) {
	if err := handler.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handler.respondError(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

// matrixOf loads the matrix named by the :id parameter, answering the request itself on failure
func (handler *Handler) matrixOf(c *gin.Context) (*matrix.Matrix, bool) {
	result, err := handler.service.Matrix(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.respondError(c, err, nil)
		return nil, false
	}
	return result, true
}

func resourceKind(c *gin.Context) (matrix.ResourceKind, bool) {
	kind := matrix.ResourceKind(c.Query("kind"))
	switch kind {
	case matrix.RoomResource, matrix.FacultyResource, matrix.GroupResource:
		return kind, true
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be one of room, faculty or group"})
	return "", false
}

// intQuery parses a required integer query parameter
func intQuery(c *gin.Context, key string) (int, bool) {
	parsed, err := strconv.Atoi(c.Query(key))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + key})
		return 0, false
	}
	return parsed, true
}

// boundQuery parses an optional window bound. A missing bound stays open.
func boundQuery(c *gin.Context, key string) (*int, bool) {
	if _, present := c.GetQuery(key); !present {
		return nil, true
	}
	bound, ok := intQuery(c, key)
	return &bound, ok
}

func (handler *Handler) Rows(c *gin.Context) {
	result, ok := handler.matrixOf(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, result.Rows())
}

func (handler *Handler) Occupancy(c *gin.Context) {
	kind, ok := resourceKind(c)
	if !ok {
		return
	}
	slot, ok := intQuery(c, "slot")
	if !ok {
		return
	}
	result, ok := handler.matrixOf(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, result.Query(kind, c.Query("id"), c.Query("day"), slot))
}

func (handler *Handler) Utilization(c *gin.Context) {
	kind, ok := resourceKind(c)
	if !ok {
		return
	}
	from, ok := boundQuery(c, "from")
	if !ok {
		return
	}
	to, ok := boundQuery(c, "to")
	if !ok {
		return
	}
	result, ok := handler.matrixOf(c)
	if !ok {
		return
	}

	ids := model.SplitList(c.Query("ids"))
	utilization, err := result.Utilization(kind, ids, matrix.Window{From: from, To: to})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "ids": ids, "utilization": utilization})
}

func (handler *Handler) Grid(c *gin.Context) {
	kind, ok := resourceKind(c)
	if !ok {
		return
	}
	result, ok := handler.matrixOf(c)
	if !ok {
		return
	}
	grid, err := result.Grid(kind, c.Query("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, grid)
}

func (handler *Handler) Substitutes(c *gin.Context) {
	slot, ok := intQuery(c, "slot")
	if !ok {
		return
	}
	result, ok := handler.matrixOf(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, result.Substitutes(c.Query("day"), slot))
}

func (handler *Handler) Fatigue(c *gin.Context) {
	result, ok := handler.matrixOf(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, result.FatigueReport())
}
