/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store persists scheduling and comparison runs. Activities and
// KPIs are stored as serialized JSON blobs; the relational layer only
// indexes run metadata.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/friendsincode/fillline/internal/config"
	"github.com/friendsincode/fillline/internal/models"
)

// ErrNotFound wraps gorm's record-not-found for callers that do not want
// to import gorm.
var ErrNotFound = errors.New("store: not found")

// Store wraps the gorm handle with run-level operations.
type Store struct {
	db *gorm.DB
}

// Connect establishes a gorm DB connection for the configured backend
// and applies migrations.
func Connect(cfg *config.Config) (*Store, error) {
	var dialector gorm.Dialector

	switch cfg.DBBackend {
	case config.DatabasePostgres:
		dialector = postgres.Open(cfg.DBDSN)
	case config.DatabaseMySQL:
		dialector = mysql.Open(cfg.DBDSN)
	case config.DatabaseSQLite:
		dialector = sqlite.Open(cfg.DBDSN)
	default:
		return nil, fmt.Errorf("unknown database backend: %s", cfg.DBBackend)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an already opened gorm handle. Used by tests.
func NewWithDB(db *gorm.DB) (*Store, error) {
	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ScheduleRun{},
		&models.ScheduleResult{},
		&models.ComparisonRun{},
	)
}

// Close releases database resources.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func wrapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// CreateScheduleRun inserts a new run in pending state.
func (s *Store) CreateScheduleRun(ctx context.Context, run *models.ScheduleRun) error {
	return s.db.WithContext(ctx).Create(run).Error
}

// GetScheduleRun loads one run with its result, if any.
func (s *Store) GetScheduleRun(ctx context.Context, id string) (*models.ScheduleRun, error) {
	var run models.ScheduleRun
	err := s.db.WithContext(ctx).Preload("Result").First(&run, "id = ?", id).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &run, nil
}

// ListScheduleRuns returns runs newest-first.
func (s *Store) ListScheduleRuns(ctx context.Context, limit int) ([]models.ScheduleRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []models.ScheduleRun
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// MarkScheduleRunRunning transitions a run to running.
func (s *Store) MarkScheduleRunRunning(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return s.updateRun(ctx, id, map[string]any{
		"status":     models.RunStatusRunning,
		"started_at": &now,
	})
}

// CompleteScheduleRun stores the result and transitions the run to
// completed.
func (s *Store) CompleteScheduleRun(ctx context.Context, id string, result *models.ScheduleResult) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(result).Error; err != nil {
			return err
		}
		return tx.Model(&models.ScheduleRun{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"status":      models.RunStatusCompleted,
				"finished_at": &now,
			}).Error
	})
}

// FailScheduleRun records the planning error.
func (s *Store) FailScheduleRun(ctx context.Context, id string, cause error) error {
	now := time.Now().UTC()
	return s.updateRun(ctx, id, map[string]any{
		"status":      models.RunStatusFailed,
		"error":       cause.Error(),
		"finished_at": &now,
	})
}

func (s *Store) updateRun(ctx context.Context, id string, fields map[string]any) error {
	res := s.db.WithContext(ctx).
		Model(&models.ScheduleRun{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteScheduleRun removes a run and its result.
func (s *Store) DeleteScheduleRun(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.ScheduleResult{}, "run_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.ScheduleRun{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// CreateComparisonRun inserts a new comparison in pending state.
func (s *Store) CreateComparisonRun(ctx context.Context, run *models.ComparisonRun) error {
	return s.db.WithContext(ctx).Create(run).Error
}

// GetComparisonRun loads one comparison.
func (s *Store) GetComparisonRun(ctx context.Context, id string) (*models.ComparisonRun, error) {
	var run models.ComparisonRun
	err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &run, nil
}

// ListComparisonRuns returns comparisons newest-first.
func (s *Store) ListComparisonRuns(ctx context.Context, limit int) ([]models.ComparisonRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []models.ComparisonRun
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// UpdateComparisonRun persists status, report, and error fields.
func (s *Store) UpdateComparisonRun(ctx context.Context, run *models.ComparisonRun) error {
	res := s.db.WithContext(ctx).
		Model(&models.ComparisonRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]any{
			"status": run.Status,
			"report": run.Report,
			"error":  run.Error,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
