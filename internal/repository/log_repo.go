package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/clipforge/clipforge/internal/models"
)

// processingLogRepo implements ProcessingLogRepository using GORM.
type processingLogRepo struct {
	db *gorm.DB
}

// NewProcessingLogRepository creates a new ProcessingLogRepository.
func NewProcessingLogRepository(db *gorm.DB) *processingLogRepo {
	return &processingLogRepo{db: db}
}

var _ ProcessingLogRepository = (*processingLogRepo)(nil)

// Append writes one audit row. Rows are never updated afterwards.
func (r *processingLogRepo) Append(ctx context.Context, entry *models.ProcessingLog) error {
	return withLockRetry(ctx, func() error {
		if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
			return fmt.Errorf("appending processing log: %w", err)
		}
		return nil
	})
}

// ListByEpisode retrieves log rows for an episode, newest first.
func (r *processingLogRepo) ListByEpisode(ctx context.Context, episodeID string, limit int) ([]*models.ProcessingLog, error) {
	q := r.db.WithContext(ctx).Where("episode_id = ?", episodeID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var entries []*models.ProcessingLog
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("listing processing log: %w", err)
	}
	return entries, nil
}
