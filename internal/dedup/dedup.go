// Package dedup enforces content-hash uniqueness across the library:
// the same bytes under a new name stay one episode, a replaced file
// under the same name becomes a new one.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/repository"
)

// hashChunkSize is the streaming read size for content hashing.
const hashChunkSize = 64 * 1024

// HashFile computes the SHA-256 of the file's bytes, streaming in
// 64 KiB chunks so large videos never load into memory.
func HashFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", models.ErrSourceUnreadable, path)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Outcome describes what the index decided about a checked file.
type Outcome string

const (
	// OutcomeNew means no episode carries this hash.
	OutcomeNew Outcome = "new"
	// OutcomeKnown means the hash and source path both match.
	OutcomeKnown Outcome = "known"
	// OutcomeMoved means the hash exists under a different source path.
	OutcomeMoved Outcome = "moved"
)

// Index consults the registry to classify discovered files.
type Index struct {
	episodes repository.EpisodeRepository
	logger   *slog.Logger
}

// NewIndex creates a dedup index over the episode repository.
func NewIndex(episodes repository.EpisodeRepository, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{episodes: episodes, logger: logger}
}

// Check classifies a (hash, portable source path) pair. For moved files
// the returned episode still holds its old source path; registration
// through the repository records the move.
func (i *Index) Check(ctx context.Context, contentHash, sourcePath string) (Outcome, *models.Episode, error) {
	existing, err := i.episodes.FindByHash(ctx, contentHash)
	if err != nil {
		if errors.Is(err, models.ErrEpisodeNotFound) {
			return OutcomeNew, nil, nil
		}
		return "", nil, err
	}
	if existing.SourcePath == sourcePath {
		return OutcomeKnown, existing, nil
	}
	i.logger.Info("source file moved",
		slog.String("episode_id", existing.ID),
		slog.String("old_path", existing.SourcePath),
		slog.String("new_path", sourcePath))
	return OutcomeMoved, existing, nil
}
