package artifacts

import (
	"context"
	"log/slog"

	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/repository"
)

// CleanupManager coordinates cache invalidation around failures, forced
// re-runs, and episode deletion. Everything here is best effort; the
// registry row is the source of truth and file removal failures only
// produce warnings.
type CleanupManager struct {
	store    *Store
	episodes repository.EpisodeRepository
	logger   *slog.Logger
}

// NewCleanupManager creates a CleanupManager.
func NewCleanupManager(store *Store, episodes repository.EpisodeRepository, logger *slog.Logger) *CleanupManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupManager{store: store, episodes: episodes, logger: logger}
}

// PrepareForce clears artifacts at or after the stage about to be
// forced, so a re-run cannot serve stale outputs.
func (m *CleanupManager) PrepareForce(episode *models.Episode, from models.Stage) {
	m.logger.Info("clearing artifacts before forced re-run",
		slog.String("episode_id", episode.ID),
		slog.String("from_stage", from.String()))
	m.store.CleanupFrom(episode, from)
}

// HandleFailure removes partial outputs of the failed stage. Outputs of
// earlier, completed stages are kept so the retry resumes where it left off.
func (m *CleanupManager) HandleFailure(episode *models.Episode, failed models.Stage) {
	m.store.CleanupFrom(episode, failed)
}

// DeleteEpisode removes the registry row with its cascades and then the
// artifact tree, transcripts included.
func (m *CleanupManager) DeleteEpisode(ctx context.Context, episode *models.Episode) error {
	if err := m.episodes.Delete(ctx, episode.ID); err != nil {
		return err
	}
	m.store.CleanupEpisode(episode, false)
	return nil
}
