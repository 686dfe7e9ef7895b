package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/repository"
)

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "source.mp4")

	// Larger than one hash chunk to exercise the streaming loop.
	data := make([]byte, 200*1024)
	for i := range data {
		data[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := HashFile(context.Background(), path)
	require.NoError(t, err)

	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
}

func TestHashFileUnreadable(t *testing.T) {
	_, err := HashFile(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	assert.ErrorIs(t, err, models.ErrSourceUnreadable)
}

func TestHashFileCancelled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "source.mp4")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := HashFile(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

type stubEpisodes struct {
	repository.EpisodeRepository
	byHash map[string]*models.Episode
}

func (s *stubEpisodes) FindByHash(_ context.Context, hash string) (*models.Episode, error) {
	if ep, ok := s.byHash[hash]; ok {
		return ep, nil
	}
	return nil, models.ErrEpisodeNotFound
}

func TestIndexCheck(t *testing.T) {
	hash := func(seed string) string {
		sum := sha256.Sum256([]byte(seed))
		return hex.EncodeToString(sum[:])
	}

	known := &models.Episode{ID: "tech-talk_ep001_2026-01-05", ContentHash: hash("a"), SourcePath: "library/ep1.mp4"}
	idx := NewIndex(&stubEpisodes{byHash: map[string]*models.Episode{known.ContentHash: known}}, nil)
	ctx := context.Background()

	outcome, ep, err := idx.Check(ctx, known.ContentHash, "library/ep1.mp4")
	require.NoError(t, err)
	assert.Equal(t, OutcomeKnown, outcome)
	assert.Equal(t, known.ID, ep.ID)

	outcome, ep, err = idx.Check(ctx, known.ContentHash, "library/renamed.mp4")
	require.NoError(t, err)
	assert.Equal(t, OutcomeMoved, outcome, "same bytes, new path")
	assert.Equal(t, known.ID, ep.ID)

	// Different bytes at an existing path are a new episode.
	outcome, ep, err = idx.Check(ctx, hash("replaced"), "library/ep1.mp4")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNew, outcome)
	assert.Nil(t, ep)
}
