package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gorm.io/gorm"

	"github.com/clipforge/clipforge/internal/models"
)

// episodeRepo implements EpisodeRepository using GORM.
type episodeRepo struct {
	db *gorm.DB
}

// NewEpisodeRepository creates a new EpisodeRepository.
func NewEpisodeRepository(db *gorm.DB) *episodeRepo {
	return &episodeRepo{db: db}
}

var _ EpisodeRepository = (*episodeRepo)(nil)

// RegisterEpisode inserts the episode or resolves a content hash
// collision. When a row with the same hash exists its source path is
// updated to the new location (move detection) and the existing row is
// returned with models.ErrDuplicateHash.
func (r *episodeRepo) RegisterEpisode(ctx context.Context, episode *models.Episode) (*models.Episode, error) {
	var existing *models.Episode
	err := withLockRetry(ctx, func() error {
		existing = nil
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var found models.Episode
			err := tx.Where("content_hash = ?", episode.ContentHash).First(&found).Error
			switch {
			case err == nil:
				if found.SourcePath != episode.SourcePath {
					found.SourcePath = episode.SourcePath
					found.LastModified = episode.LastModified
					if err := tx.Save(&found).Error; err != nil {
						return fmt.Errorf("updating moved episode source: %w", err)
					}
				}
				existing = &found
				return nil
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(episode).Error; err != nil {
					return fmt.Errorf("creating episode: %w", err)
				}
				return nil
			default:
				return fmt.Errorf("checking content hash: %w", err)
			}
		})
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, models.ErrDuplicateHash
	}
	return episode, nil
}

// GetByID retrieves an episode by its canonical ID.
func (r *episodeRepo) GetByID(ctx context.Context, id string) (*models.Episode, error) {
	var episode models.Episode
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&episode).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrEpisodeNotFound
		}
		return nil, fmt.Errorf("getting episode by ID: %w", err)
	}
	return &episode, nil
}

// FindByHash retrieves an episode by its content hash.
func (r *episodeRepo) FindByHash(ctx context.Context, contentHash string) (*models.Episode, error) {
	var episode models.Episode
	if err := r.db.WithContext(ctx).Where("content_hash = ?", contentHash).First(&episode).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrEpisodeNotFound
		}
		return nil, fmt.Errorf("finding episode by hash: %w", err)
	}
	return &episode, nil
}

// FindByFilename retrieves an episode whose source path ends in the
// given base name. Used as a fallback when callers supply stale IDs.
func (r *episodeRepo) FindByFilename(ctx context.Context, name string) (*models.Episode, error) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var episode models.Episode
	err := r.db.WithContext(ctx).
		Where("source_path = ? OR source_path LIKE ?", base, "%/"+base).
		First(&episode).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrEpisodeNotFound
		}
		return nil, fmt.Errorf("finding episode by filename: %w", err)
	}
	return &episode, nil
}

// List retrieves episodes matching the filter, newest first.
func (r *episodeRepo) List(ctx context.Context, filter EpisodeFilter) ([]*models.Episode, error) {
	q := r.db.WithContext(ctx).Model(&models.Episode{})
	if filter.Stage != "" {
		q = q.Where("stage = ?", filter.Stage)
	}
	if filter.Show != "" {
		// Underscore is a LIKE wildcard; escape it so the show prefix
		// matches literally. ESCAPE is spelled out because sqlite has
		// no default escape character.
		q = q.Where("id LIKE ? ESCAPE '!'", escapeLike(filter.Show)+"!_%")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	var episodes []*models.Episode
	if err := q.Order("created_at DESC").Find(&episodes).Error; err != nil {
		return nil, fmt.Errorf("listing episodes: %w", err)
	}
	return episodes, nil
}

// escapeLike escapes LIKE wildcards in a literal, using '!' as the
// escape character.
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

// Update persists the full episode row.
func (r *episodeRepo) Update(ctx context.Context, episode *models.Episode) error {
	return withLockRetry(ctx, func() error {
		if err := r.db.WithContext(ctx).Save(episode).Error; err != nil {
			return fmt.Errorf("updating episode: %w", err)
		}
		return nil
	})
}

// Rename rewrites the episode primary key and cascades foreign keys on
// clips and processing log rows inside one transaction.
func (r *episodeRepo) Rename(ctx context.Context, oldID, newID string) error {
	if oldID == newID {
		return nil
	}
	return withLockRetry(ctx, func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&models.Episode{}).Where("id = ?", newID).Count(&count).Error; err != nil {
				return fmt.Errorf("checking rename target: %w", err)
			}
			if count > 0 {
				return models.ErrRenameCollision
			}

			res := tx.Model(&models.Episode{}).Where("id = ?", oldID).Update("id", newID)
			if res.Error != nil {
				return fmt.Errorf("renaming episode: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return models.ErrEpisodeNotFound
			}
			if err := tx.Model(&models.Clip{}).Where("episode_id = ?", oldID).
				Update("episode_id", newID).Error; err != nil {
				return fmt.Errorf("cascading rename to clips: %w", err)
			}
			if err := tx.Model(&models.ProcessingLog{}).Where("episode_id = ?", oldID).
				Update("episode_id", newID).Error; err != nil {
				return fmt.Errorf("cascading rename to processing log: %w", err)
			}
			return nil
		})
	})
}

// Delete removes the episode row and cascades to clips, clip assets,
// and processing log rows.
func (r *episodeRepo) Delete(ctx context.Context, id string) error {
	return withLockRetry(ctx, func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var clipIDs []models.ULID
			if err := tx.Model(&models.Clip{}).Where("episode_id = ?", id).
				Pluck("id", &clipIDs).Error; err != nil {
				return fmt.Errorf("collecting clip IDs: %w", err)
			}
			if len(clipIDs) > 0 {
				if err := tx.Where("clip_id IN ?", clipIDs).
					Delete(&models.ClipAsset{}).Error; err != nil {
					return fmt.Errorf("deleting clip assets: %w", err)
				}
			}
			if err := tx.Where("episode_id = ?", id).Delete(&models.Clip{}).Error; err != nil {
				return fmt.Errorf("deleting clips: %w", err)
			}
			if err := tx.Where("episode_id = ?", id).Delete(&models.ProcessingLog{}).Error; err != nil {
				return fmt.Errorf("deleting processing log: %w", err)
			}
			res := tx.Where("id = ?", id).Delete(&models.Episode{})
			if res.Error != nil {
				return fmt.Errorf("deleting episode: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return models.ErrEpisodeNotFound
			}
			return nil
		})
	})
}
