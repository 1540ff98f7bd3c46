package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"golang-news-aggregator/internal/aggregator/dto"
	"golang-news-aggregator/internal/entity"

	"gorm.io/gorm"
)

// FetchLogRepository defines the interface for cycle report persistence.
type FetchLogRepository interface {
	CreateFromReport(ctx context.Context, report *dto.CycleReport) error
	FindRecent(ctx context.Context, limit int) ([]entity.FetchLog, error)
}

// NewFetchLogRepository creates a new GORM-based fetch log repository.
func NewFetchLogRepository(db *gorm.DB) FetchLogRepository {
	return &fetchLogRepository{db: db}
}

type fetchLogRepository struct {
	db *gorm.DB
}

// CreateFromReport stores one run cycle outcome.
func (r *fetchLogRepository) CreateFromReport(ctx context.Context, report *dto.CycleReport) error {
	stats, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal cycle report: %w", err)
	}
	log := entity.FetchLog{
		Stats:      stats,
		Errors:     report.Errors,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	}
	return r.db.WithContext(ctx).Create(&log).Error
}

// FindRecent retrieves the most recent cycle logs.
func (r *fetchLogRepository) FindRecent(ctx context.Context, limit int) ([]entity.FetchLog, error) {
	var logs []entity.FetchLog
	if err := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
