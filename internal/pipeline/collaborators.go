// Package pipeline drives episodes through their processing stages.
// The heavy lifting happens in external collaborators; this package
// owns sequencing, skip logic, progress, and registry bookkeeping.
package pipeline

import (
	"context"

	"github.com/clipforge/clipforge/internal/models"
)

// ProgressFunc receives a stage-local completion fraction in [0,1].
// Implementations must tolerate frequent calls; rate limiting happens
// at the job queue.
type ProgressFunc func(fraction float64)

// MediaInfo is the probed technical metadata of a source file.
type MediaInfo struct {
	DurationSeconds float64
	Width           int
	Height          int
	VideoCodec      string
	AudioCodec      string
}

// Prober inspects a source video file, in the manner of ffprobe.
type Prober interface {
	Probe(ctx context.Context, sourcePath string) (*MediaInfo, error)
}

// Transcriber is the speech-to-text engine.
type Transcriber interface {
	Transcribe(ctx context.Context, sourcePath, language string, progress ProgressFunc) (*models.Transcription, error)
}

// Enricher is the LLM engine producing summaries and identity fields.
type Enricher interface {
	Enrich(ctx context.Context, transcript string, hint models.EpisodeMetadata, progress ProgressFunc) (*models.Enrichment, error)
}

// SegmentParams tunes clip discovery.
type SegmentParams struct {
	MaxClips       int
	MinDurationMs  int64
	MaxDurationMs  int64
	ScoreThreshold float64
}

// ClipCandidate is one proposed highlight from the segmentation engine.
type ClipCandidate struct {
	StartMs  int64
	EndMs    int64
	Score    float64
	Title    string
	Caption  string
	Hashtags []string
}

// ClipSegmenter is the embedding-based clip discovery engine.
type ClipSegmenter interface {
	DiscoverClips(ctx context.Context, transcription *models.Transcription, params SegmentParams, progress ProgressFunc) ([]ClipCandidate, error)
}

// RenderRequest describes one clip asset render.
type RenderRequest struct {
	SourcePath  string
	StartMs     int64
	EndMs       int64
	Variant     models.AssetVariant
	AspectRatio string
	OutputPath  string
	// Words supplies subtitle timing for the subtitled and branded variants.
	Words []models.WordTiming
}

// Encoder is the external video encoder, an ffmpeg-like process.
type Encoder interface {
	Render(ctx context.Context, req RenderRequest, progress ProgressFunc) error
}

// PageRenderer produces the episode HTML page from the enriched episode
// and its clips. The templating layer itself lives outside the core.
type PageRenderer interface {
	RenderPage(ctx context.Context, episode *models.Episode, clips []*models.Clip) ([]byte, error)
}

// Collaborators bundles every external engine the pipeline consumes.
// All implementations must be safe for concurrent use and must honor
// context cancellation.
type Collaborators struct {
	Prober      Prober
	Transcriber Transcriber
	Enricher    Enricher
	Segmenter   ClipSegmenter
	Encoder     Encoder
	Pages       PageRenderer
}
