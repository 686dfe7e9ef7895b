package discovery

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clipforge/clipforge/internal/dedup"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/naming"
	"github.com/clipforge/clipforge/internal/paths"
	"github.com/clipforge/clipforge/internal/repository"
)

func newTestScanner(t *testing.T) (*Scanner, repository.EpisodeRepository, string) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Episode{}, &models.Clip{}, &models.ClipAsset{}, &models.ProcessingLog{}))

	root := t.TempDir()
	library := filepath.Join(root, "library")
	require.NoError(t, os.MkdirAll(library, 0o755))

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	episodes := repository.NewEpisodeRepository(db)
	index := dedup.NewIndex(episodes, log)
	namer := naming.NewService(nil)
	resolver := paths.NewResolver(root, nil, episodes)

	scanner := NewScanner(library, Options{
		Extensions:  []string{".mp4", ".MKV"},
		MinFileSize: 10,
	}, episodes, index, namer, resolver, log)

	return scanner, episodes, library
}

func writeVideo(t *testing.T, dir, name string, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestScanRegistersNewEpisodes(t *testing.T) {
	scanner, _, library := newTestScanner(t)

	writeVideo(t, library, "show-a/episode-one.mp4", "aaaaaaaaaaaaaaaa")
	writeVideo(t, library, "show-b/episode-two.mkv", "bbbbbbbbbbbbbbbb")
	writeVideo(t, library, "notes.txt", "not a video file")
	writeVideo(t, library, "stub.mp4", "tiny")

	result, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.NewEpisodes, 2)
	assert.Equal(t, 2, result.Skipped, "wrong extension and undersized file")
	assert.Zero(t, result.Known)

	for _, ep := range result.NewEpisodes {
		assert.Equal(t, models.StageDiscovered, ep.Stage)
		assert.Len(t, ep.ContentHash, 64)
		assert.NotContains(t, ep.SourcePath, "\\")
	}
}

func TestScanIsIdempotent(t *testing.T) {
	scanner, _, library := newTestScanner(t)
	writeVideo(t, library, "episode-one.mp4", "aaaaaaaaaaaaaaaa")

	first, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, first.NewEpisodes, 1)

	second, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second.NewEpisodes)
	assert.Equal(t, 1, second.Known)
}

func TestScanDetectsMovedFile(t *testing.T) {
	scanner, episodes, library := newTestScanner(t)
	old := writeVideo(t, library, "episode-one.mp4", "aaaaaaaaaaaaaaaa")

	first, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, first.NewEpisodes, 1)
	id := first.NewEpisodes[0].ID

	// Rename the file; the hash is unchanged.
	require.NoError(t, os.Rename(old, filepath.Join(library, "renamed.mp4")))

	second, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second.NewEpisodes, "no duplicate row for renamed file")
	assert.Equal(t, 1, second.Moved)

	ep, err := episodes.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "library/renamed.mp4", ep.SourcePath)
}

func TestScanReplacedFileIsNewEpisode(t *testing.T) {
	scanner, _, library := newTestScanner(t)
	path := writeVideo(t, library, "episode-one.mp4", "aaaaaaaaaaaaaaaa")

	first, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, first.NewEpisodes, 1)

	// Same path, new bytes.
	require.NoError(t, os.WriteFile(path, []byte("cccccccccccccccc"), 0o644))

	second, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, second.NewEpisodes, 1, "replaced content registers as a new episode")
}

func TestScanMissingLibraryRoot(t *testing.T) {
	scanner, _, library := newTestScanner(t)
	require.NoError(t, os.RemoveAll(library))

	_, err := scanner.Scan(context.Background())
	assert.Error(t, err)
}

func TestScanCancelled(t *testing.T) {
	scanner, _, library := newTestScanner(t)
	writeVideo(t, library, "episode-one.mp4", "aaaaaaaaaaaaaaaa")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := scanner.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
