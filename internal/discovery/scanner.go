// Package discovery finds source video files in the library tree and
// registers them with the episode registry.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/clipforge/clipforge/internal/dedup"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/naming"
	"github.com/clipforge/clipforge/internal/paths"
	"github.com/clipforge/clipforge/internal/repository"
)

// Options configures a library scan.
type Options struct {
	// Extensions lists accepted file extensions, lowercased with dots.
	Extensions []string
	// MinFileSize excludes files below this size in bytes.
	MinFileSize int64
}

// ScanResult summarizes one scan.
type ScanResult struct {
	// NewEpisodes are episodes registered during this scan.
	NewEpisodes []*models.Episode
	// Moved counts existing episodes whose source path was updated.
	Moved int
	// Known counts files already registered at their current path.
	Known int
	// Skipped counts files rejected by extension or size.
	Skipped int
}

// Scanner walks the library root and registers discovered episodes.
// Scans are idempotent: the same bytes never produce a second episode.
type Scanner struct {
	libraryRoot string
	opts        Options
	episodes    repository.EpisodeRepository
	index       *dedup.Index
	namer       *naming.Service
	resolver    *paths.Resolver
	logger      *slog.Logger
}

// NewScanner creates a scanner over libraryRoot.
func NewScanner(
	libraryRoot string,
	opts Options,
	episodes repository.EpisodeRepository,
	index *dedup.Index,
	namer *naming.Service,
	resolver *paths.Resolver,
	logger *slog.Logger,
) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	normalized := make([]string, 0, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		normalized = append(normalized, strings.ToLower(ext))
	}
	opts.Extensions = normalized
	return &Scanner{
		libraryRoot: libraryRoot,
		opts:        opts,
		episodes:    episodes,
		index:       index,
		namer:       namer,
		resolver:    resolver,
		logger:      logger,
	}
}

// Scan walks the library once. Unreadable files are logged and skipped;
// only a failed walk or registry write aborts the scan.
func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	result := &ScanResult{}

	err := filepath.WalkDir(s.libraryRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == s.libraryRoot {
				return fmt.Errorf("library root missing: %w", err)
			}
			s.logger.Warn("skipping unreadable entry", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() {
			return nil
		}
		if !s.accepted(path, d) {
			result.Skipped++
			return nil
		}
		return s.register(ctx, path, result)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("library scan finished",
		slog.Int("new", len(result.NewEpisodes)),
		slog.Int("moved", result.Moved),
		slog.Int("known", result.Known),
		slog.Int("skipped", result.Skipped))
	return result, nil
}

func (s *Scanner) accepted(path string, d fs.DirEntry) bool {
	ext := strings.ToLower(filepath.Ext(path))
	found := false
	for _, allowed := range s.opts.Extensions {
		if ext == allowed {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	info, err := d.Info()
	if err != nil {
		return false
	}
	return info.Size() >= s.opts.MinFileSize
}

func (s *Scanner) register(ctx context.Context, path string, result *ScanResult) error {
	hash, err := dedup.HashFile(ctx, path)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		s.logger.Warn("hashing failed, skipping file", slog.String("path", path), slog.String("error", err.Error()))
		return nil
	}

	portable := s.resolver.Portable(path)
	outcome, _, err := s.index.Check(ctx, hash, portable)
	if err != nil {
		return err
	}
	if outcome == dedup.OutcomeKnown {
		result.Known++
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		s.logger.Warn("stat failed, skipping file", slog.String("path", path), slog.String("error", err.Error()))
		return nil
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	episode := &models.Episode{
		ID:           s.namer.FallbackEpisodeID(base, time.Now()),
		ContentHash:  hash,
		SourcePath:   portable,
		FileSize:     info.Size(),
		LastModified: info.ModTime().UTC(),
		Stage:        models.StageDiscovered,
		Metadata:     models.EpisodeMetadata{Title: base},
	}

	registered, err := s.episodes.RegisterEpisode(ctx, episode)
	switch {
	case errors.Is(err, models.ErrDuplicateHash):
		// Same bytes, new location: the registry recorded the move.
		result.Moved++
		_ = registered
		return nil
	case err != nil:
		return err
	default:
		result.NewEpisodes = append(result.NewEpisodes, registered)
		return nil
	}
}

// Schedule registers a periodic scan on the cron runner. The returned
// entry ID can be used to remove the schedule. An empty spec is a no-op.
func (s *Scanner) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	if spec == "" {
		return 0, nil
	}
	id, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := s.Scan(ctx); err != nil {
			s.logger.Error("scheduled scan failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return 0, fmt.Errorf("scheduling scan: %w", err)
	}
	return id, nil
}
