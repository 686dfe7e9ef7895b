// Package repository provides data access for the episode registry.
package repository

import (
	"context"

	"github.com/clipforge/clipforge/internal/models"
)

// EpisodeFilter narrows ListEpisodes results. Zero values match all.
type EpisodeFilter struct {
	Stage  models.Stage
	Show   string
	Limit  int
	Offset int
}

// EpisodeRepository manages episode rows, the dedup index, and the
// rename cascade.
type EpisodeRepository interface {
	// RegisterEpisode inserts the episode, or, when an episode with the
	// same content hash already exists, updates that episode's source
	// path and returns it together with models.ErrDuplicateHash.
	RegisterEpisode(ctx context.Context, episode *models.Episode) (*models.Episode, error)

	GetByID(ctx context.Context, id string) (*models.Episode, error)
	FindByHash(ctx context.Context, contentHash string) (*models.Episode, error)
	FindByFilename(ctx context.Context, name string) (*models.Episode, error)
	List(ctx context.Context, filter EpisodeFilter) ([]*models.Episode, error)

	// Update persists the full episode row and advances updated_at.
	Update(ctx context.Context, episode *models.Episode) error

	// Rename rewrites the episode primary key and cascades the foreign
	// keys on clips and the processing log in one transaction. Fails
	// with models.ErrRenameCollision when newID is taken.
	Rename(ctx context.Context, oldID, newID string) error

	// Delete removes the episode and cascades to clips, assets, and
	// processing log rows. On-disk artifacts are not touched here.
	Delete(ctx context.Context, id string) error
}

// ClipRepository manages clip and clip asset rows.
type ClipRepository interface {
	Create(ctx context.Context, clip *models.Clip) error
	CreateBatch(ctx context.Context, clips []*models.Clip) error
	GetByID(ctx context.Context, id models.ULID) (*models.Clip, error)
	ListByEpisode(ctx context.Context, episodeID string) ([]*models.Clip, error)
	Update(ctx context.Context, clip *models.Clip) error
	ReplaceForEpisode(ctx context.Context, episodeID string, clips []*models.Clip) error

	UpsertAsset(ctx context.Context, asset *models.ClipAsset) error
	ListAssets(ctx context.Context, clipID models.ULID) ([]*models.ClipAsset, error)
}

// ProcessingLogRepository appends and reads per-stage audit rows.
type ProcessingLogRepository interface {
	Append(ctx context.Context, entry *models.ProcessingLog) error
	ListByEpisode(ctx context.Context, episodeID string, limit int) ([]*models.ProcessingLog, error)
}
