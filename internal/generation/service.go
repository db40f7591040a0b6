package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/limaJavier/shiftsync/internal/lease"
	"github.com/limaJavier/shiftsync/internal/store"
	"github.com/limaJavier/shiftsync/pkg/compiler"
	"github.com/limaJavier/shiftsync/pkg/matrix"
	"github.com/limaJavier/shiftsync/pkg/model"
	"github.com/limaJavier/shiftsync/pkg/solver"
	"gorm.io/datatypes"
)

// Store persists generation records
type Store interface {
	Record(ctx context.Context, generation *store.Generation) error
	Publish(ctx context.Context, generation *store.Generation) error
	Activate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Purge(ctx context.Context, institutionId string) (int64, error)
	Get(ctx context.Context, id string) (store.Generation, error)
	Active(ctx context.Context, institutionId string) (store.Generation, error)
	History(ctx context.Context, institutionId string) ([]store.Generation, error)
}

// ErrNotReady is returned when asking for the matrix of a failed generation
var ErrNotReady = errors.New("generation has no matrix")

// Result is the outcome of a generation. Matrix is nil unless the generation succeeded.
type Result struct {
	Generation store.Generation `json:"generation"`
	Matrix     *matrix.Matrix   `json:"-"`
	Warnings   []string         `json:"warnings"`
}

// Report is the outcome of a dry-run validation
type Report struct {
	Errors   model.ValidationErrors `json:"errors"`
	Warnings []string               `json:"warnings"`
}

type Service struct {
	store   Store
	locker  lease.Locker
	backend solver.Solver
	logger  *slog.Logger

	mu       sync.RWMutex
	matrices map[string]*matrix.Matrix
}

func NewService(store Store, locker lease.Locker, backend solver.Solver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		locker:   locker,
		backend:  backend,
		logger:   logger,
		matrices: make(map[string]*matrix.Matrix),
	}
}

// Check validates the input and runs the arithmetic prechecks without solving
func (service *Service) Check(input model.Input) Report {
	report := Report{Errors: model.ValidationErrors{}, Warnings: make([]string, 0)}
	snapshot, err := model.NewSnapshot(input)
	var errs model.ValidationErrors
	if errors.As(err, &errs) {
		report.Errors = append(report.Errors, errs...)
		return report
	}
	report.Errors = append(report.Errors, snapshot.Precheck()...)
	_, ambiguities := model.ResolveLinks(snapshot.Groups())
	for _, ambiguity := range ambiguities {
		report.Warnings = append(report.Warnings, ambiguity.Error())
	}
	return report
}

// Generate runs one generation for the institution while holding its lease. Validation
// and compile errors are returned without persisting anything; solver and invariant
// failures are persisted as failed generations and returned alongside the record.
func (service *Service) Generate(ctx context.Context, institutionId string, input model.Input) (Result, error) {
	held, err := service.locker.Acquire(ctx, institutionId)
	if err != nil {
		return Result{}, fmt.Errorf("cannot start generation for %s: %w", institutionId, err)
	}
	defer func() {
		if err := held.Release(context.WithoutCancel(ctx)); err != nil {
			service.logger.Error("cannot release generation lease", "institution", institutionId, "error", err)
		}
	}()

	//** Validate
	snapshot, err := model.NewSnapshot(input)
	if err != nil {
		return Result{}, err
	}
	if errs := snapshot.Precheck(); len(errs) > 0 {
		return Result{}, errs
	}

	//** Compile
	links, ambiguities := model.ResolveLinks(snapshot.Groups())
	warnings := make([]string, 0)
	for _, ambiguity := range ambiguities {
		service.logger.Warn("ambiguous group linkage", "institution", institutionId, "group", ambiguity.Group, "contained", ambiguity.Contained)
		warnings = append(warnings, ambiguity.Error())
	}
	problem, err := compiler.Compile(snapshot, links)
	if err != nil {
		return Result{}, err
	}
	warnings = append(warnings, problem.Warnings...)

	//** Solve
	// A caller walking away does not abort the solve; the backend bounds it with its own timeout
	start := time.Now()
	entries, err := service.backend.Solve(context.WithoutCancel(ctx), problem)
	if err != nil {
		return service.fail(ctx, institutionId, snapshot, warnings, err)
	}
	result, err := matrix.Build(snapshot, links, entries)
	if err != nil {
		return service.fail(ctx, institutionId, snapshot, warnings, err)
	}
	service.logger.Info("timetable solved", "institution", institutionId, "blocks", len(problem.Blocks), "elapsed", time.Since(start))

	//** Persist and activate
	generation, err := record(institutionId, result.Id(), snapshot, result.Entries())
	if err != nil {
		return Result{}, err
	}
	if err := service.store.Publish(context.WithoutCancel(ctx), &generation); err != nil {
		return Result{}, err
	}
	service.cache(result)
	service.logger.Info("generation published", "institution", institutionId, "generation", generation.Id, "rows", len(result.Rows()))

	return Result{Generation: generation, Matrix: result, Warnings: warnings}, nil
}

func (service *Service) fail(ctx context.Context, institutionId string, snapshot *model.Snapshot, warnings []string, cause error) (Result, error) {
	generation, err := record(institutionId, uuid.NewString(), snapshot, nil)
	if err != nil {
		return Result{}, errors.Join(cause, err)
	}
	generation.Status = store.StatusFailed
	message := cause.Error()
	generation.ErrorMessage = &message

	if err := service.store.Record(context.WithoutCancel(ctx), &generation); err != nil {
		return Result{}, errors.Join(cause, err)
	}
	service.logger.Error("generation failed", "institution", institutionId, "generation", generation.Id, "error", cause)
	return Result{Generation: generation, Warnings: warnings}, cause
}

// schedule is the persisted form of a matrix, shaped like a solver response
type schedule struct {
	Schedule []matrix.Entry `json:"schedule"`
}

func record(institutionId, id string, snapshot *model.Snapshot, entries []matrix.Entry) (store.Generation, error) {
	generation := store.Generation{
		Id:            id,
		InstitutionId: institutionId,
		Status:        store.StatusSuccess,
		CreatedAt:     time.Now().UTC(),
	}

	snapshotData, err := json.Marshal(snapshot.Payload())
	if err != nil {
		return store.Generation{}, fmt.Errorf("cannot encode snapshot: %w", err)
	}
	generation.SnapshotData = datatypes.JSON(snapshotData)

	if entries != nil {
		matrixData, err := json.Marshal(schedule{Schedule: entries})
		if err != nil {
			return store.Generation{}, fmt.Errorf("cannot encode matrix: %w", err)
		}
		generation.MatrixData = datatypes.JSON(matrixData)
	}
	return generation, nil
}

// Matrix returns the matrix of a successful generation. Restored matrices go through the
// same validation as fresh ones and are cached afterwards.
func (service *Service) Matrix(ctx context.Context, id string) (*matrix.Matrix, error) {
	service.mu.RLock()
	cached, ok := service.matrices[id]
	service.mu.RUnlock()
	if ok {
		return cached, nil
	}

	generation, err := service.store.Get(ctx, id)
	if err != nil {
		return nil, err
	} else if generation.Status != store.StatusSuccess || len(generation.MatrixData) == 0 {
		return nil, ErrNotReady
	}

	var input model.Input
	if err := json.Unmarshal(generation.SnapshotData, &input); err != nil {
		return nil, fmt.Errorf("cannot decode snapshot of %s: %w", id, err)
	}
	snapshot, err := model.NewSnapshot(input)
	if err != nil {
		return nil, fmt.Errorf("stored snapshot of %s is invalid: %w", id, err)
	}
	var data schedule
	if err := json.Unmarshal(generation.MatrixData, &data); err != nil {
		return nil, fmt.Errorf("cannot decode matrix of %s: %w", id, err)
	}

	links, _ := model.ResolveLinks(snapshot.Groups())
	restored, err := matrix.Restore(id, snapshot, links, data.Schedule)
	if err != nil {
		return nil, fmt.Errorf("stored matrix of %s is invalid: %w", id, err)
	}
	service.cache(restored)
	return restored, nil
}

// ActiveMatrix returns the matrix currently active for the institution
func (service *Service) ActiveMatrix(ctx context.Context, institutionId string) (*matrix.Matrix, error) {
	generation, err := service.store.Active(ctx, institutionId)
	if err != nil {
		return nil, err
	}
	return service.Matrix(ctx, generation.Id)
}

func (service *Service) cache(result *matrix.Matrix) {
	service.mu.Lock()
	defer service.mu.Unlock()
	service.matrices[result.Id()] = result
}

func (service *Service) evict(ids ...string) {
	service.mu.Lock()
	defer service.mu.Unlock()
	for _, id := range ids {
		delete(service.matrices, id)
	}
}

func (service *Service) Activate(ctx context.Context, id string) error {
	if err := service.store.Activate(ctx, id); err != nil {
		return err
	}
	service.logger.Info("generation activated", "generation", id)
	return nil
}

func (service *Service) Delete(ctx context.Context, id string) error {
	if err := service.store.Delete(ctx, id); err != nil {
		return err
	}
	service.evict(id)
	service.logger.Info("generation deleted", "generation", id)
	return nil
}

// Purge deletes every generation of the institution
func (service *Service) Purge(ctx context.Context, institutionId string) (int64, error) {
	history, err := service.store.History(ctx, institutionId)
	if err != nil {
		return 0, err
	}
	deleted, err := service.store.Purge(ctx, institutionId)
	if err != nil {
		return 0, err
	}
	for _, generation := range history {
		service.evict(generation.Id)
	}
	service.logger.Info("generations purged", "institution", institutionId, "deleted", deleted)
	return deleted, nil
}

func (service *Service) History(ctx context.Context, institutionId string) ([]store.Generation, error) {
	return service.store.History(ctx, institutionId)
}

func (service *Service) Active(ctx context.Context, institutionId string) (store.Generation, error) {
	return service.store.Active(ctx, institutionId)
}
