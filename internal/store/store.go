package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

var (
	ErrNotFound       = errors.New("generation not found")
	ErrNotActivatable = errors.New("only successful generations can be activated")
)

// Generation is one persisted generation attempt. At most one row per institution has IsActive set.
type Generation struct {
	Id            string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	InstitutionId string         `gorm:"type:varchar(255);not null;index" json:"institution_id"`
	IsActive      bool           `gorm:"not null;default:false" json:"is_active"`
	Status        Status         `gorm:"type:varchar(16);not null" json:"status"`
	ErrorMessage  *string        `json:"error_message"`
	MatrixData    datatypes.JSON `json:"matrix_data,omitempty"`
	SnapshotData  datatypes.JSON `json:"snapshot_data,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;index" json:"created_at"`
}

func (Generation) TableName() string { return "generated_timetables" }

// Enforces the single active row per institution at the database level
const activeIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_generated_timetables_active ON generated_timetables (institution_id) WHERE is_active`

type Store struct {
	db *gorm.DB
}

// Open connects to a "sqlite" or "postgres" database and migrates it
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(db)
}

// New wraps an open connection and migrates it
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Generation{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := db.Exec(activeIndex).Error; err != nil {
		return nil, fmt.Errorf("failed to create active index: %w", err)
	}
	return &Store{db: db}, nil
}

func (store *Store) Close() error {
	sqlDB, err := store.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record inserts an inactive generation, typically a failed one
func (store *Store) Record(ctx context.Context, generation *Generation) error {
	generation.IsActive = false
	if err := store.db.WithContext(ctx).Create(generation).Error; err != nil {
		return fmt.Errorf("cannot record generation: %w", err)
	}
	return nil
}

// Publish inserts a successful generation and makes it the active one in a single transaction
func (store *Store) Publish(ctx context.Context, generation *Generation) error {
	generation.Status = StatusSuccess
	generation.IsActive = true
	err := store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deactivate(tx, generation.InstitutionId); err != nil {
			return err
		}
		return tx.Create(generation).Error
	})
	if err != nil {
		generation.IsActive = false
		return fmt.Errorf("cannot publish generation: %w", err)
	}
	return nil
}

// Activate swaps the active generation of the record's institution
func (store *Store) Activate(ctx context.Context, id string) error {
	return store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var generation Generation
		if err := tx.Select("id", "institution_id", "status", "is_active").First(&generation, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		if generation.Status != StatusSuccess {
			return ErrNotActivatable
		} else if generation.IsActive {
			return nil
		}

		if err := deactivate(tx, generation.InstitutionId); err != nil {
			return err
		}
		return tx.Model(&Generation{}).Where("id = ?", id).Update("is_active", true).Error
	})
}

func deactivate(tx *gorm.DB, institutionId string) error {
	return tx.Model(&Generation{}).
		Where("institution_id = ? AND is_active = ?", institutionId, true).
		Update("is_active", false).Error
}

func (store *Store) Get(ctx context.Context, id string) (Generation, error) {
	var generation Generation
	if err := store.db.WithContext(ctx).First(&generation, "id = ?", id).Error; err != nil {
		return Generation{}, notFound(err)
	}
	return generation, nil
}

// Active returns the active generation of the institution
func (store *Store) Active(ctx context.Context, institutionId string) (Generation, error) {
	var generation Generation
	err := store.db.WithContext(ctx).
		Where("institution_id = ? AND is_active = ?", institutionId, true).
		First(&generation).Error
	if err != nil {
		return Generation{}, notFound(err)
	}
	return generation, nil
}

// History lists the institution's generations, newest first, without their payloads
func (store *Store) History(ctx context.Context, institutionId string) ([]Generation, error) {
	generations := make([]Generation, 0)
	err := store.db.WithContext(ctx).
		Select("id", "institution_id", "is_active", "status", "error_message", "created_at").
		Where("institution_id = ?", institutionId).
		Order("created_at DESC").
		Find(&generations).Error
	if err != nil {
		return nil, fmt.Errorf("cannot list generations: %w", err)
	}
	return generations, nil
}

// Delete removes one generation. Deleting the active one leaves the institution without an active matrix.
func (store *Store) Delete(ctx context.Context, id string) error {
	result := store.db.WithContext(ctx).Delete(&Generation{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("cannot delete generation: %w", result.Error)
	} else if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Purge removes every generation of the institution and returns how many were removed
func (store *Store) Purge(ctx context.Context, institutionId string) (int64, error) {
	result := store.db.WithContext(ctx).Delete(&Generation{}, "institution_id = ?", institutionId)
	if result.Error != nil {
		return 0, fmt.Errorf("cannot purge generations: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
