package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clipforge/clipforge/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.Episode{}, &models.Clip{}, &models.ClipAsset{}, &models.ProcessingLog{})
	require.NoError(t, err)

	return db
}

func testHash(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

func newTestEpisode(id, hashSeed, sourcePath string) *models.Episode {
	return &models.Episode{
		ID:           id,
		ContentHash:  testHash(hashSeed),
		SourcePath:   sourcePath,
		FileSize:     1024,
		LastModified: time.Now().UTC(),
		Stage:        models.StageDiscovered,
	}
}

func TestRegisterEpisode(t *testing.T) {
	repo := NewEpisodeRepository(setupTestDB(t))
	ctx := context.Background()

	ep := newTestEpisode("tech-talk_ep001_2026-01-05", "a", "library/ep1.mp4")
	created, err := repo.RegisterEpisode(ctx, ep)
	require.NoError(t, err)
	assert.Equal(t, ep.ID, created.ID)

	got, err := repo.GetByID(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageDiscovered, got.Stage)
}

func TestRegisterEpisodeDuplicateHashUpdatesPath(t *testing.T) {
	repo := NewEpisodeRepository(setupTestDB(t))
	ctx := context.Background()

	first := newTestEpisode("tech-talk_ep001_2026-01-05", "same", "library/ep1.mp4")
	_, err := repo.RegisterEpisode(ctx, first)
	require.NoError(t, err)

	// Same bytes discovered at a new location: no second row, the
	// existing episode follows the file.
	moved := newTestEpisode("would-be-new-id", "same", "library/moved/ep1.mp4")
	existing, err := repo.RegisterEpisode(ctx, moved)
	assert.ErrorIs(t, err, models.ErrDuplicateHash)
	require.NotNil(t, existing)
	assert.Equal(t, first.ID, existing.ID)
	assert.Equal(t, "library/moved/ep1.mp4", existing.SourcePath)

	episodes, err := repo.List(ctx, EpisodeFilter{})
	require.NoError(t, err)
	assert.Len(t, episodes, 1)
}

func TestGetByIDNotFound(t *testing.T) {
	repo := NewEpisodeRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrEpisodeNotFound)
}

func TestFindByHash(t *testing.T) {
	repo := NewEpisodeRepository(setupTestDB(t))
	ctx := context.Background()

	ep := newTestEpisode("tech-talk_ep001_2026-01-05", "a", "library/ep1.mp4")
	_, err := repo.RegisterEpisode(ctx, ep)
	require.NoError(t, err)

	got, err := repo.FindByHash(ctx, ep.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, ep.ID, got.ID)

	_, err = repo.FindByHash(ctx, testHash("other"))
	assert.ErrorIs(t, err, models.ErrEpisodeNotFound)
}

func TestFindByFilename(t *testing.T) {
	repo := NewEpisodeRepository(setupTestDB(t))
	ctx := context.Background()

	ep := newTestEpisode("tech-talk_ep001_2026-01-05", "a", "library/shows/ep1.mp4")
	_, err := repo.RegisterEpisode(ctx, ep)
	require.NoError(t, err)

	got, err := repo.FindByFilename(ctx, "ep1.mp4")
	require.NoError(t, err)
	assert.Equal(t, ep.ID, got.ID)

	got, err = repo.FindByFilename(ctx, "/data/anywhere/ep1.mp4")
	require.NoError(t, err)
	assert.Equal(t, ep.ID, got.ID)

	_, err = repo.FindByFilename(ctx, "nope.mp4")
	assert.ErrorIs(t, err, models.ErrEpisodeNotFound)
}

func TestListEpisodesFilter(t *testing.T) {
	repo := NewEpisodeRepository(setupTestDB(t))
	ctx := context.Background()

	a := newTestEpisode("tech-talk_ep001_2026-01-05", "a", "library/a.mp4")
	b := newTestEpisode("tech-talk_ep002_2026-01-12", "b", "library/b.mp4")
	b.Stage = models.StageEnriched
	c := newTestEpisode("morning-brew_ep001_2026-01-06", "c", "library/c.mp4")
	// One character where the show separator sits; must not match the
	// tech-talk filter via the LIKE underscore wildcard.
	d := newTestEpisode("tech-talkxep001_2026-01-07", "d", "library/d.mp4")

	for _, ep := range []*models.Episode{a, b, c, d} {
		_, err := repo.RegisterEpisode(ctx, ep)
		require.NoError(t, err)
	}

	byStage, err := repo.List(ctx, EpisodeFilter{Stage: models.StageEnriched})
	require.NoError(t, err)
	require.Len(t, byStage, 1)
	assert.Equal(t, b.ID, byStage[0].ID)

	byShow, err := repo.List(ctx, EpisodeFilter{Show: "tech-talk"})
	require.NoError(t, err)
	require.Len(t, byShow, 2)
	for _, ep := range byShow {
		assert.Contains(t, ep.ID, "tech-talk_")
	}

	limited, err := repo.List(ctx, EpisodeFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestUpdateEpisode(t *testing.T) {
	repo := NewEpisodeRepository(setupTestDB(t))
	ctx := context.Background()

	ep := newTestEpisode("tech-talk_ep001_2026-01-05", "a", "library/ep1.mp4")
	_, err := repo.RegisterEpisode(ctx, ep)
	require.NoError(t, err)

	ep.Stage = models.StageTranscribed
	ep.Transcription = &models.Transcription{Text: "hello world", Language: "en"}
	require.NoError(t, repo.Update(ctx, ep))

	got, err := repo.GetByID(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageTranscribed, got.Stage)
	require.NotNil(t, got.Transcription)
	assert.Equal(t, "hello world", got.Transcription.Text)
}

func TestRenameEpisodeCascades(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEpisodeRepository(db)
	clips := NewClipRepository(db)
	logs := NewProcessingLogRepository(db)
	ctx := context.Background()

	ep := newTestEpisode("fallback-name_1742000000", "a", "library/ep1.mp4")
	_, err := repo.RegisterEpisode(ctx, ep)
	require.NoError(t, err)

	clip := &models.Clip{EpisodeID: ep.ID, StartMs: 1000, EndMs: 31000, Score: 0.9}
	require.NoError(t, clips.Create(ctx, clip))
	require.NoError(t, logs.Append(ctx, &models.ProcessingLog{
		EpisodeID: ep.ID,
		Stage:     models.StageTranscribed,
		Event:     models.LogEventCompleted,
	}))

	newID := "tech-talk_ep001_2026-01-05"
	require.NoError(t, repo.Rename(ctx, ep.ID, newID))

	_, err = repo.GetByID(ctx, ep.ID)
	assert.ErrorIs(t, err, models.ErrEpisodeNotFound)

	got, err := repo.GetByID(ctx, newID)
	require.NoError(t, err)
	assert.Equal(t, newID, got.ID)

	movedClips, err := clips.ListByEpisode(ctx, newID)
	require.NoError(t, err)
	assert.Len(t, movedClips, 1)

	movedLogs, err := logs.ListByEpisode(ctx, newID, 0)
	require.NoError(t, err)
	assert.Len(t, movedLogs, 1)
}

func TestRenameEpisodeCollision(t *testing.T) {
	repo := NewEpisodeRepository(setupTestDB(t))
	ctx := context.Background()

	a := newTestEpisode("tech-talk_ep001_2026-01-05", "a", "library/a.mp4")
	b := newTestEpisode("tech-talk_ep002_2026-01-12", "b", "library/b.mp4")
	for _, ep := range []*models.Episode{a, b} {
		_, err := repo.RegisterEpisode(ctx, ep)
		require.NoError(t, err)
	}

	err := repo.Rename(ctx, a.ID, b.ID)
	assert.ErrorIs(t, err, models.ErrRenameCollision)

	// Source row is untouched after the failed rename.
	_, err = repo.GetByID(ctx, a.ID)
	assert.NoError(t, err)
}

func TestRenameEpisodeNoop(t *testing.T) {
	repo := NewEpisodeRepository(setupTestDB(t))
	assert.NoError(t, repo.Rename(context.Background(), "same-id", "same-id"))
}

func TestDeleteEpisodeCascades(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEpisodeRepository(db)
	clips := NewClipRepository(db)
	logs := NewProcessingLogRepository(db)
	ctx := context.Background()

	ep := newTestEpisode("tech-talk_ep001_2026-01-05", "a", "library/ep1.mp4")
	_, err := repo.RegisterEpisode(ctx, ep)
	require.NoError(t, err)

	clip := &models.Clip{EpisodeID: ep.ID, StartMs: 0, EndMs: 45000, Score: 0.7}
	require.NoError(t, clips.Create(ctx, clip))
	require.NoError(t, clips.UpsertAsset(ctx, &models.ClipAsset{
		ClipID:      clip.ID,
		Variant:     models.VariantClean,
		AspectRatio: "9:16",
	}))
	require.NoError(t, logs.Append(ctx, &models.ProcessingLog{
		EpisodeID: ep.ID,
		Stage:     models.StageDiscovered,
		Event:     models.LogEventCompleted,
	}))

	require.NoError(t, repo.Delete(ctx, ep.ID))

	_, err = repo.GetByID(ctx, ep.ID)
	assert.ErrorIs(t, err, models.ErrEpisodeNotFound)

	remaining, err := clips.ListByEpisode(ctx, ep.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	var assetCount int64
	require.NoError(t, db.Model(&models.ClipAsset{}).Count(&assetCount).Error)
	assert.Zero(t, assetCount)

	entries, err := logs.ListByEpisode(ctx, ep.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDeleteEpisodeNotFound(t *testing.T) {
	repo := NewEpisodeRepository(setupTestDB(t))
	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrEpisodeNotFound)
}
