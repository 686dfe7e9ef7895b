package pipeline

import (
	"context"
	"fmt"

	"github.com/clipforge/clipforge/internal/models"
)

// UnconfiguredCollaborators returns a collaborator set whose members all
// fail with a clear error. The server wires these by default; deployments
// replace individual members with real engine adapters. A job running
// against an unconfigured collaborator fails cleanly at its first stage
// instead of crashing the worker.
func UnconfiguredCollaborators() Collaborators {
	return Collaborators{
		Prober:      unconfigured{"prober"},
		Transcriber: unconfigured{"transcriber"},
		Enricher:    unconfigured{"enricher"},
		Segmenter:   unconfigured{"clip segmenter"},
		Encoder:     unconfigured{"encoder"},
		Pages:       unconfigured{"page renderer"},
	}
}

type unconfigured struct {
	name string
}

var (
	_ Prober        = unconfigured{}
	_ Transcriber   = unconfigured{}
	_ Enricher      = unconfigured{}
	_ ClipSegmenter = unconfigured{}
	_ Encoder       = unconfigured{}
	_ PageRenderer  = unconfigured{}
)

func (u unconfigured) err() error {
	return fmt.Errorf("%s is not configured", u.name)
}

func (u unconfigured) Probe(context.Context, string) (*MediaInfo, error) {
	return nil, u.err()
}

func (u unconfigured) Transcribe(context.Context, string, string, ProgressFunc) (*models.Transcription, error) {
	return nil, u.err()
}

func (u unconfigured) Enrich(context.Context, string, models.EpisodeMetadata, ProgressFunc) (*models.Enrichment, error) {
	return nil, u.err()
}

func (u unconfigured) DiscoverClips(context.Context, *models.Transcription, SegmentParams, ProgressFunc) ([]ClipCandidate, error) {
	return nil, u.err()
}

func (u unconfigured) Render(context.Context, RenderRequest, ProgressFunc) error {
	return u.err()
}

func (u unconfigured) RenderPage(context.Context, *models.Episode, []*models.Clip) ([]byte, error) {
	return nil, u.err()
}
