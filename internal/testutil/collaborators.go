// Package testutil provides in-memory collaborator doubles and sample
// data for pipeline and queue tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/pipeline"
)

// FakeProber returns fixed media info.
type FakeProber struct {
	Info *pipeline.MediaInfo
	Err  error

	Calls atomic.Int32
}

func (p *FakeProber) Probe(_ context.Context, _ string) (*pipeline.MediaInfo, error) {
	p.Calls.Add(1)
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Info != nil {
		return p.Info, nil
	}
	return &pipeline.MediaInfo{DurationSeconds: 1800, Width: 1920, Height: 1080}, nil
}

// FakeTranscriber returns a fixed transcription and reports progress in
// a few steps so coalescing paths get exercised.
type FakeTranscriber struct {
	Result *models.Transcription
	Err    error
	// Block, when non-nil, is closed by the test to release Transcribe.
	Block chan struct{}

	Calls atomic.Int32
}

func (t *FakeTranscriber) Transcribe(ctx context.Context, _, _ string, progress pipeline.ProgressFunc) (*models.Transcription, error) {
	t.Calls.Add(1)
	if t.Block != nil {
		select {
		case <-t.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if t.Err != nil {
		return nil, t.Err
	}
	for _, f := range []float64{0.25, 0.5, 0.75} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		progress(f)
	}
	if t.Result != nil {
		return t.Result, nil
	}
	return SampleTranscription(), nil
}

// FakeEnricher returns a fixed enrichment.
type FakeEnricher struct {
	Result *models.Enrichment
	Err    error

	Calls atomic.Int32
}

func (e *FakeEnricher) Enrich(ctx context.Context, _ string, _ models.EpisodeMetadata, progress pipeline.ProgressFunc) (*models.Enrichment, error) {
	e.Calls.Add(1)
	if e.Err != nil {
		return nil, e.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	progress(0.5)
	if e.Result != nil {
		return e.Result, nil
	}
	return SampleEnrichment(), nil
}

// FakeSegmenter returns fixed clip candidates.
type FakeSegmenter struct {
	Candidates []pipeline.ClipCandidate
	Err        error

	Calls atomic.Int32
	// LastParams records the parameters of the most recent call.
	mu         sync.Mutex
	lastParams pipeline.SegmentParams
}

func (s *FakeSegmenter) DiscoverClips(ctx context.Context, _ *models.Transcription, params pipeline.SegmentParams, progress pipeline.ProgressFunc) ([]pipeline.ClipCandidate, error) {
	s.Calls.Add(1)
	s.mu.Lock()
	s.lastParams = params
	s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	progress(1)
	if s.Candidates != nil {
		return s.Candidates, nil
	}
	return SampleCandidates(), nil
}

// LastParams returns the parameters of the most recent call.
func (s *FakeSegmenter) LastParams() pipeline.SegmentParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastParams
}

// FakeEncoder writes a small placeholder file to the output path.
type FakeEncoder struct {
	Err error

	Calls atomic.Int32
}

func (e *FakeEncoder) Render(ctx context.Context, req pipeline.RenderRequest, progress pipeline.ProgressFunc) error {
	e.Calls.Add(1)
	if e.Err != nil {
		return e.Err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	progress(0.5)
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return err
	}
	content := fmt.Sprintf("%s %s %d-%d", req.AspectRatio, req.Variant, req.StartMs, req.EndMs)
	return os.WriteFile(req.OutputPath, []byte(content), 0o644)
}

// FakePageRenderer returns a minimal HTML page.
type FakePageRenderer struct {
	Err error

	Calls atomic.Int32
}

func (p *FakePageRenderer) RenderPage(_ context.Context, episode *models.Episode, clips []*models.Clip) ([]byte, error) {
	p.Calls.Add(1)
	if p.Err != nil {
		return nil, p.Err
	}
	return []byte(fmt.Sprintf("<html><h1>%s</h1><p>%d clips</p></html>", episode.ID, len(clips))), nil
}

// Collaborators bundles one fake of each engine.
func Collaborators() (pipeline.Collaborators, *FakeProber, *FakeTranscriber, *FakeEnricher, *FakeSegmenter, *FakeEncoder, *FakePageRenderer) {
	prober := &FakeProber{}
	transcriber := &FakeTranscriber{}
	enricher := &FakeEnricher{}
	segmenter := &FakeSegmenter{}
	encoder := &FakeEncoder{}
	pages := &FakePageRenderer{}
	return pipeline.Collaborators{
		Prober:      prober,
		Transcriber: transcriber,
		Enricher:    enricher,
		Segmenter:   segmenter,
		Encoder:     encoder,
		Pages:       pages,
	}, prober, transcriber, enricher, segmenter, encoder, pages
}
