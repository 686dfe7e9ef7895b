package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/clipforge/clipforge/internal/models"
)

// clipRepo implements ClipRepository using GORM.
type clipRepo struct {
	db *gorm.DB
}

// NewClipRepository creates a new ClipRepository.
func NewClipRepository(db *gorm.DB) *clipRepo {
	return &clipRepo{db: db}
}

var _ ClipRepository = (*clipRepo)(nil)

// Create creates a new clip.
func (r *clipRepo) Create(ctx context.Context, clip *models.Clip) error {
	return withLockRetry(ctx, func() error {
		if err := r.db.WithContext(ctx).Create(clip).Error; err != nil {
			return fmt.Errorf("creating clip: %w", err)
		}
		return nil
	})
}

// CreateBatch creates multiple clips in a single transaction.
func (r *clipRepo) CreateBatch(ctx context.Context, clips []*models.Clip) error {
	if len(clips) == 0 {
		return nil
	}
	return withLockRetry(ctx, func() error {
		if err := r.db.WithContext(ctx).Create(clips).Error; err != nil {
			return fmt.Errorf("creating clip batch: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a clip by ID including its assets.
func (r *clipRepo) GetByID(ctx context.Context, id models.ULID) (*models.Clip, error) {
	var clip models.Clip
	err := r.db.WithContext(ctx).Preload("Assets").Where("id = ?", id).First(&clip).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrClipNotFound
		}
		return nil, fmt.Errorf("getting clip by ID: %w", err)
	}
	return &clip, nil
}

// ListByEpisode retrieves all clips for an episode, highest score first.
func (r *clipRepo) ListByEpisode(ctx context.Context, episodeID string) ([]*models.Clip, error) {
	var clips []*models.Clip
	err := r.db.WithContext(ctx).Preload("Assets").
		Where("episode_id = ?", episodeID).
		Order("score DESC, start_ms ASC").
		Find(&clips).Error
	if err != nil {
		return nil, fmt.Errorf("listing clips: %w", err)
	}
	return clips, nil
}

// Update updates an existing clip.
func (r *clipRepo) Update(ctx context.Context, clip *models.Clip) error {
	return withLockRetry(ctx, func() error {
		if err := r.db.WithContext(ctx).Save(clip).Error; err != nil {
			return fmt.Errorf("updating clip: %w", err)
		}
		return nil
	})
}

// ReplaceForEpisode deletes existing candidate clips for the episode and
// inserts the new set in one transaction. Rendered clips are kept.
func (r *clipRepo) ReplaceForEpisode(ctx context.Context, episodeID string, clips []*models.Clip) error {
	return withLockRetry(ctx, func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var staleIDs []models.ULID
			if err := tx.Model(&models.Clip{}).
				Where("episode_id = ? AND status = ?", episodeID, models.ClipStatusCandidate).
				Pluck("id", &staleIDs).Error; err != nil {
				return fmt.Errorf("collecting stale clips: %w", err)
			}
			if len(staleIDs) > 0 {
				if err := tx.Where("clip_id IN ?", staleIDs).Delete(&models.ClipAsset{}).Error; err != nil {
					return fmt.Errorf("deleting stale clip assets: %w", err)
				}
				if err := tx.Where("id IN ?", staleIDs).Delete(&models.Clip{}).Error; err != nil {
					return fmt.Errorf("deleting stale clips: %w", err)
				}
			}
			if len(clips) == 0 {
				return nil
			}
			if err := tx.Create(clips).Error; err != nil {
				return fmt.Errorf("creating replacement clips: %w", err)
			}
			return nil
		})
	})
}

// UpsertAsset creates the asset or updates the existing row for the same
// (clip, variant, aspect ratio) combination.
func (r *clipRepo) UpsertAsset(ctx context.Context, asset *models.ClipAsset) error {
	return withLockRetry(ctx, func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var existing models.ClipAsset
			err := tx.Where("clip_id = ? AND variant = ? AND aspect_ratio = ?",
				asset.ClipID, asset.Variant, asset.AspectRatio).First(&existing).Error
			switch {
			case err == nil:
				existing.OutputPath = asset.OutputPath
				existing.FileSize = asset.FileSize
				existing.Status = asset.Status
				if err := tx.Save(&existing).Error; err != nil {
					return fmt.Errorf("updating clip asset: %w", err)
				}
				asset.ID = existing.ID
				return nil
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(asset).Error; err != nil {
					return fmt.Errorf("creating clip asset: %w", err)
				}
				return nil
			default:
				return fmt.Errorf("checking clip asset: %w", err)
			}
		})
	})
}

// ListAssets retrieves all assets for a clip.
func (r *clipRepo) ListAssets(ctx context.Context, clipID models.ULID) ([]*models.ClipAsset, error) {
	var assets []*models.ClipAsset
	err := r.db.WithContext(ctx).
		Where("clip_id = ?", clipID).
		Order("variant ASC, aspect_ratio ASC").
		Find(&assets).Error
	if err != nil {
		return nil, fmt.Errorf("listing clip assets: %w", err)
	}
	return assets, nil
}
