package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/clipforge/clipforge/internal/artifacts"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/paths"
	"github.com/clipforge/clipforge/internal/repository"
)

// Runner executes exactly one stage for one episode.
//
// Protocol per run: skip when the output already exists and force is
// unset; otherwise call the collaborator, write artifacts atomically,
// update the registry, and append a log row. On failure the error lands
// on the episode row and earlier artifacts stay untouched.
type Runner struct {
	episodes repository.EpisodeRepository
	clips    repository.ClipRepository
	logs     repository.ProcessingLogRepository
	store    *artifacts.Store
	resolver *paths.Resolver
	collab   Collaborators
	logger   *slog.Logger
}

// NewRunner creates a stage runner.
func NewRunner(
	episodes repository.EpisodeRepository,
	clips repository.ClipRepository,
	logs repository.ProcessingLogRepository,
	store *artifacts.Store,
	resolver *paths.Resolver,
	collab Collaborators,
	logger *slog.Logger,
) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		episodes: episodes,
		clips:    clips,
		logs:     logs,
		store:    store,
		resolver: resolver,
		collab:   collab,
		logger:   logger,
	}
}

// RunStage runs one stage against the episode, mutating it in place on
// success. params only applies to clip discovery.
func (r *Runner) RunStage(ctx context.Context, episode *models.Episode, stage models.Stage, force bool, params SegmentParams, progress ProgressFunc) Result {
	if progress == nil {
		progress = func(float64) {}
	}
	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}
	if episode.HasOutput(stage) && !force {
		r.appendLog(ctx, episode.ID, stage, models.LogEventSkipped, 0, "")
		return skipped()
	}

	r.appendLog(ctx, episode.ID, stage, models.LogEventStarted, 0, "")
	started := time.Now()

	var err error
	switch stage {
	case models.StagePrepared:
		err = r.runPrep(ctx, episode)
	case models.StageTranscribed:
		err = r.runTranscription(ctx, episode, progress)
	case models.StageEnriched:
		err = r.runEnrichment(ctx, episode, progress)
	case models.StageRendered:
		err = r.runRendering(ctx, episode)
	case models.StageClipsDiscovered:
		err = r.runClipDiscovery(ctx, episode, params, progress)
	default:
		err = fmt.Errorf("%w: %s has no runner", models.ErrUnknownStage, stage)
	}

	elapsed := time.Since(started)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return cancelled(err)
		}
		episode.Error = err.Error()
		if uerr := r.episodes.Update(ctx, episode); uerr != nil {
			r.logger.Error("recording stage failure",
				slog.String("episode_id", episode.ID),
				slog.String("stage", stage.String()),
				slog.String("error", uerr.Error()))
		}
		r.appendLog(ctx, episode.ID, stage, models.LogEventFailed, elapsed.Milliseconds(), err.Error())
		return failed(err)
	}

	episode.AdvanceStage(stage)
	episode.Error = ""
	if uerr := r.episodes.Update(ctx, episode); uerr != nil {
		r.appendLog(ctx, episode.ID, stage, models.LogEventFailed, elapsed.Milliseconds(), uerr.Error())
		return failed(fmt.Errorf("persisting stage result: %w", uerr))
	}
	r.appendLog(ctx, episode.ID, stage, models.LogEventCompleted, elapsed.Milliseconds(), "")
	progress(1)
	return completed()
}

func (r *Runner) runPrep(ctx context.Context, episode *models.Episode) error {
	source := r.resolver.Resolve(episode.SourcePath)
	if _, err := os.Stat(source); err != nil {
		return fmt.Errorf("%w: %s", models.ErrSourceUnreadable, source)
	}
	info, err := r.collab.Prober.Probe(ctx, source)
	if err != nil {
		return fmt.Errorf("probing source: %w", err)
	}
	episode.DurationSeconds = info.DurationSeconds
	return nil
}

func (r *Runner) runTranscription(ctx context.Context, episode *models.Episode, progress ProgressFunc) error {
	source := r.resolver.Resolve(episode.SourcePath)
	transcription, err := r.collab.Transcriber.Transcribe(ctx, source, episode.Metadata.Language, progress)
	if err != nil {
		return fmt.Errorf("transcribing: %w", err)
	}

	p := r.store.PathsFor(episode)
	if err := r.store.WriteFile(p.Transcripts["txt"], []byte(transcription.Text)); err != nil {
		return err
	}
	asJSON, err := json.MarshalIndent(transcription, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding transcript: %w", err)
	}
	if err := r.store.WriteFile(p.Transcripts["json"], asJSON); err != nil {
		return err
	}
	if err := r.store.WriteFile(p.Transcripts["vtt"], buildVTT(transcription)); err != nil {
		return err
	}

	episode.Transcription = transcription
	if transcription.Language != "" {
		episode.Metadata.Language = transcription.Language
	}
	return nil
}

func (r *Runner) runEnrichment(ctx context.Context, episode *models.Episode, progress ProgressFunc) error {
	if episode.Transcription == nil {
		return fmt.Errorf("%w: transcription required before enrichment", models.ErrStageNotReached)
	}
	enrichment, err := r.collab.Enricher.Enrich(ctx, episode.Transcription.Text, episode.Metadata, progress)
	if err != nil {
		return fmt.Errorf("enriching: %w", err)
	}

	episode.Enrichment = enrichment
	if enrichment.ShowName != "" {
		episode.Metadata.ShowName = enrichment.ShowName
	}
	if enrichment.HostName != "" {
		episode.Metadata.HostName = enrichment.HostName
	}
	if enrichment.EpisodeNumber > 0 {
		episode.Metadata.EpisodeNumber = enrichment.EpisodeNumber
	}
	if enrichment.AirDate != "" {
		episode.Metadata.AirDate = enrichment.AirDate
	}
	return nil
}

func (r *Runner) runRendering(ctx context.Context, episode *models.Episode) error {
	clips, err := r.clips.ListByEpisode(ctx, episode.ID)
	if err != nil {
		return err
	}
	page, err := r.collab.Pages.RenderPage(ctx, episode, clips)
	if err != nil {
		return fmt.Errorf("rendering episode page: %w", err)
	}
	p := r.store.PathsFor(episode)
	return r.store.WriteFile(p.HTML+"/index.html", page)
}

func (r *Runner) runClipDiscovery(ctx context.Context, episode *models.Episode, params SegmentParams, progress ProgressFunc) error {
	if episode.Transcription == nil {
		return fmt.Errorf("%w: transcription required before clip discovery", models.ErrStageNotReached)
	}
	candidates, err := r.collab.Segmenter.DiscoverClips(ctx, episode.Transcription, params, progress)
	if err != nil {
		return fmt.Errorf("discovering clips: %w", err)
	}

	clips := make([]*models.Clip, 0, len(candidates))
	for _, c := range candidates {
		clips = append(clips, &models.Clip{
			EpisodeID: episode.ID,
			StartMs:   c.StartMs,
			EndMs:     c.EndMs,
			Score:     c.Score,
			Status:    models.ClipStatusCandidate,
			Metadata: models.ClipMetadata{
				Title:    c.Title,
				Caption:  c.Caption,
				Hashtags: c.Hashtags,
			},
		})
	}
	return r.clips.ReplaceForEpisode(ctx, episode.ID, clips)
}

func (r *Runner) appendLog(ctx context.Context, episodeID string, stage models.Stage, event models.LogEvent, durationMs int64, errMsg string) {
	entry := &models.ProcessingLog{
		EpisodeID:  episodeID,
		Stage:      stage,
		Event:      event,
		DurationMs: durationMs,
		Error:      errMsg,
	}
	if err := r.logs.Append(ctx, entry); err != nil {
		r.logger.Warn("appending processing log failed",
			slog.String("episode_id", episodeID),
			slog.String("stage", stage.String()),
			slog.String("error", err.Error()))
	}
}
