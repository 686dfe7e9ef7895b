// Package artifacts manages the on-disk artifact tree for episodes:
// rendered HTML, clip files, social exports, and transcripts. All path
// decisions are delegated to the naming service.
package artifacts

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/naming"
)

// TranscriptFormats lists the formats written per transcription run.
var TranscriptFormats = []string{"txt", "json", "vtt"}

// Paths is the set of folders holding one episode's artifacts.
type Paths struct {
	// Root is the episode folder under the output tree.
	Root string
	// HTML holds the rendered episode page tree.
	HTML string
	// Clips holds rendered clip video files, one folder per clip.
	Clips string
	// Social holds per-platform export variants of clips.
	Social string
	// Transcripts maps format to the transcript file path. Transcript
	// files live under the transcript root, not the episode folder, so
	// they can be preserved across artifact cleanup.
	Transcripts map[string]string
}

// ClipAssetPath returns the output file for one rendered clip asset,
// {clips}/{clip_id}/{aspect}_{variant}.mp4 with ":" folded to "x" so
// the aspect ratio is filename-safe.
func (p Paths) ClipAssetPath(clipID, aspectRatio string, variant models.AssetVariant) string {
	name := strings.ReplaceAll(aspectRatio, ":", "x") + "_" + string(variant) + ".mp4"
	return filepath.Join(p.Clips, clipID, name)
}

// Store lays out and maintains episode artifact trees.
type Store struct {
	namer          *naming.Service
	outputRoot     string
	transcriptRoot string
	logger         *slog.Logger
}

// NewStore creates a Store writing under outputRoot, with transcripts
// under transcriptRoot.
func NewStore(namer *naming.Service, outputRoot, transcriptRoot string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		namer:          namer,
		outputRoot:     outputRoot,
		transcriptRoot: transcriptRoot,
		logger:         logger,
	}
}

// PathsFor returns the artifact folders for an episode. No directories
// are created; writers create them on demand.
func (s *Store) PathsFor(episode *models.Episode) Paths {
	root := s.namer.EpisodeFolder(s.outputRoot, episode.Metadata.ShowName, episode.Metadata.AirDate, episode.ID)
	transcripts := make(map[string]string, len(TranscriptFormats))
	for _, format := range TranscriptFormats {
		transcripts[format] = filepath.Join(s.transcriptRoot, format, episode.ID+"."+format)
	}
	return Paths{
		Root:        root,
		HTML:        filepath.Join(root, "html"),
		Clips:       filepath.Join(root, "clips"),
		Social:      filepath.Join(root, "social"),
		Transcripts: transcripts,
	}
}

// WriteFile writes data to path atomically: the bytes go to a sibling
// temp file which is renamed over the target on success. Parent
// directories are created as needed.
func (s *Store) WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing artifact temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming artifact into place: %w", err)
	}
	return nil
}

// RelocateEpisode moves the artifact tree and transcript files written
// under a previous episode ID to the paths of the episode's current ID.
// Called after a registry rename so later lookups and cleanup see one
// consistent tree. Move failures are logged and never returned; the
// registry rename has already committed.
func (s *Store) RelocateEpisode(episode *models.Episode, oldID string) {
	previous := *episode
	previous.ID = oldID
	from := s.PathsFor(&previous)
	to := s.PathsFor(episode)

	s.moveTree(episode.ID, from.Root, to.Root)
	for _, format := range TranscriptFormats {
		s.moveTree(episode.ID, from.Transcripts[format], to.Transcripts[format])
	}
}

func (s *Store) moveTree(episodeID, from, to string) {
	if from == to {
		return
	}
	if _, err := os.Stat(from); err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		s.logger.Warn("artifact relocation failed",
			slog.String("episode_id", episodeID),
			slog.String("to", to),
			slog.String("error", err.Error()))
		return
	}
	if err := os.Rename(from, to); err != nil {
		s.logger.Warn("artifact relocation failed",
			slog.String("episode_id", episodeID),
			slog.String("from", from),
			slog.String("to", to),
			slog.String("error", err.Error()))
	}
}

// CleanupEpisode removes the episode's artifact tree. Transcripts are
// preserved when keepTranscripts is set. Removal failures are logged
// and never returned; cleanup is best effort.
func (s *Store) CleanupEpisode(episode *models.Episode, keepTranscripts bool) {
	p := s.PathsFor(episode)
	s.removeTree(episode.ID, p.Root)
	if !keepTranscripts {
		s.removeTranscripts(episode.ID, p)
	}
}

// CleanupFrom removes artifacts produced at or after the given stage,
// ahead of a forced re-run. Best effort like CleanupEpisode.
func (s *Store) CleanupFrom(episode *models.Episode, stage models.Stage) {
	p := s.PathsFor(episode)
	if models.StageTranscribed.AtLeast(stage) {
		s.removeTranscripts(episode.ID, p)
	}
	if models.StageRendered.AtLeast(stage) {
		s.removeTree(episode.ID, p.HTML)
	}
	if models.StageClipsDiscovered.AtLeast(stage) {
		s.removeTree(episode.ID, p.Clips)
		s.removeTree(episode.ID, p.Social)
	}
}

func (s *Store) removeTranscripts(episodeID string, p Paths) {
	for _, path := range p.Transcripts {
		s.removeTree(episodeID, path)
	}
}

func (s *Store) removeTree(episodeID, path string) {
	if path == "" || path == "/" {
		return
	}
	if err := os.RemoveAll(path); err != nil {
		s.logger.Warn("artifact cleanup failed",
			slog.String("episode_id", episodeID),
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}
