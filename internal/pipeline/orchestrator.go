package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/clipforge/clipforge/internal/artifacts"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/naming"
	"github.com/clipforge/clipforge/internal/repository"
)

// ProcessProgress receives overall job progress in [0,100] together
// with the stage currently running and a short human message.
type ProcessProgress func(overall float64, stage models.Stage, message string)

// configStageNames maps configuration weight/timeout keys to stages.
var configStageNames = map[string]models.Stage{
	"prep":           models.StagePrepared,
	"transcription":  models.StageTranscribed,
	"enrichment":     models.StageEnriched,
	"rendering":      models.StageRendered,
	"clip_discovery": models.StageClipsDiscovered,
}

// StageWeightsFromConfig converts configured stage weight keys into
// stage-keyed weights. Unknown keys are ignored.
func StageWeightsFromConfig(weights map[string]float64) map[models.Stage]float64 {
	out := make(map[models.Stage]float64, len(weights))
	for name, w := range weights {
		if stage, ok := configStageNames[name]; ok && w > 0 {
			out[stage] = w
		}
	}
	return out
}

// Orchestrator drives an episode from its current stage to a target
// stage, and renders clip assets.
type Orchestrator struct {
	runner   *Runner
	episodes repository.EpisodeRepository
	clips    repository.ClipRepository
	store    *artifacts.Store
	cleanup  *artifacts.CleanupManager
	namer    *naming.Service
	encoder  Encoder
	resolver PathResolver
	weights  map[models.Stage]float64
	logger   *slog.Logger
}

// PathResolver is the path translation the orchestrator needs for
// encoder sources.
type PathResolver interface {
	Resolve(input string) string
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(
	runner *Runner,
	episodes repository.EpisodeRepository,
	clips repository.ClipRepository,
	store *artifacts.Store,
	cleanup *artifacts.CleanupManager,
	namer *naming.Service,
	encoder Encoder,
	resolver PathResolver,
	weights map[models.Stage]float64,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		runner:   runner,
		episodes: episodes,
		clips:    clips,
		store:    store,
		cleanup:  cleanup,
		namer:    namer,
		encoder:  encoder,
		resolver: resolver,
		weights:  weights,
		logger:   logger,
	}
}

// Process drives the episode to target. Skipped stages contribute their
// full weight immediately; a failed or cancelled stage stops the run.
// The returned episode reflects all mutations, including a
// post-enrichment rename.
func (o *Orchestrator) Process(ctx context.Context, episodeID string, target models.Stage, force bool, params SegmentParams, sink ProcessProgress) (*models.Episode, Result) {
	if sink == nil {
		sink = func(float64, models.Stage, string) {}
	}

	episode, err := o.episodes.GetByID(ctx, episodeID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx.Err())
		}
		return nil, failed(err)
	}

	if force {
		o.cleanup.PrepareForce(episode, models.StagePrepared)
		episode.Stage = models.StageDiscovered
		if err := o.episodes.Update(ctx, episode); err != nil {
			return episode, failed(fmt.Errorf("resetting stage for forced run: %w", err))
		}
	}

	plan := o.planStages(episode.Stage, target)
	if len(plan) == 0 {
		sink(100, episode.Stage, "nothing to do")
		return episode, completed()
	}

	total := 0.0
	for _, stage := range plan {
		total += o.stageWeight(stage)
	}

	done := 0.0
	for _, stage := range plan {
		if err := ctx.Err(); err != nil {
			return episode, cancelled(err)
		}
		w := o.stageWeight(stage)
		stageProgress := func(fraction float64) {
			if fraction < 0 {
				fraction = 0
			} else if fraction > 1 {
				fraction = 1
			}
			sink(100*(done+w*fraction)/total, stage, "running "+stage.String())
		}
		sink(100*done/total, stage, "starting "+stage.String())

		res := o.runner.RunStage(ctx, episode, stage, force, params, stageProgress)
		switch res.Outcome {
		case OutcomeCompleted:
			if stage == models.StageEnriched {
				o.maybeRename(ctx, episode)
			}
		case OutcomeSkipped:
			// Full weight immediately.
		case OutcomeFailed, OutcomeCancelled:
			return episode, res
		}
		done += w
		sink(100*done/total, stage, stage.String()+" "+string(res.Outcome))
	}
	return episode, completed()
}

// planStages enumerates (current, target] in declared order.
func (o *Orchestrator) planStages(current, target models.Stage) []models.Stage {
	var plan []models.Stage
	for _, stage := range models.Stages() {
		if stage.Index() > current.Index() && stage.Index() <= target.Index() {
			plan = append(plan, stage)
		}
	}
	return plan
}

// stageWeight returns the configured weight for the stage. Unweighted
// stages get a small floor so cheap stages still move the bar.
func (o *Orchestrator) stageWeight(stage models.Stage) float64 {
	if w, ok := o.weights[stage]; ok {
		return w
	}
	return 0.01
}

// maybeRename recomputes the canonical episode ID from enrichment output
// and renames the registry row when it changed. A collision keeps the
// old ID; processing continues either way.
func (o *Orchestrator) maybeRename(ctx context.Context, episode *models.Episode) {
	md := episode.Metadata
	if md.ShowName == "" || md.EpisodeNumber <= 0 {
		return
	}
	if _, err := time.Parse("2006-01-02", md.AirDate); err != nil {
		return
	}
	newID := o.namer.EpisodeID(md.ShowName, md.EpisodeNumber, md.AirDate)
	if newID == episode.ID {
		return
	}
	if err := o.episodes.Rename(ctx, episode.ID, newID); err != nil {
		if errors.Is(err, models.ErrRenameCollision) {
			o.logger.Warn("canonical ID already taken, keeping current ID",
				slog.String("episode_id", episode.ID),
				slog.String("wanted_id", newID))
			return
		}
		o.logger.Error("post-enrichment rename failed",
			slog.String("episode_id", episode.ID),
			slog.String("new_id", newID),
			slog.String("error", err.Error()))
		return
	}
	oldID := episode.ID
	episode.ID = newID
	o.store.RelocateEpisode(episode, oldID)
	o.logger.Info("episode renamed to canonical ID",
		slog.String("old_id", oldID),
		slog.String("new_id", newID))
}

// DiscoverClips runs clip segmentation inline and returns the resulting
// candidate set. The episode must have been transcribed.
func (o *Orchestrator) DiscoverClips(ctx context.Context, episodeID string, params SegmentParams, sink ProcessProgress) ([]*models.Clip, Result) {
	if sink == nil {
		sink = func(float64, models.Stage, string) {}
	}
	episode, err := o.episodes.GetByID(ctx, episodeID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx.Err())
		}
		return nil, failed(err)
	}
	if !episode.Stage.AtLeast(models.StageTranscribed) {
		return nil, failed(fmt.Errorf("%w: clip discovery needs a transcript", models.ErrStageNotReached))
	}

	res := o.runner.RunStage(ctx, episode, models.StageClipsDiscovered, true, params, func(fraction float64) {
		sink(100*fraction, models.StageClipsDiscovered, "segmenting")
	})
	if res.Outcome != OutcomeCompleted {
		return nil, res
	}
	clips, err := o.clips.ListByEpisode(ctx, episodeID)
	if err != nil {
		return nil, failed(err)
	}
	return clips, completed()
}

// RenderSelection names the clip assets to render.
type RenderSelection struct {
	ClipIDs      []models.ULID
	Variants     []models.AssetVariant
	AspectRatios []string
	Force        bool
}

// RenderSummary reports what a render run produced.
type RenderSummary struct {
	Rendered int `json:"rendered"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// RenderClips renders every requested (clip, variant, aspect ratio)
// combination. Existing rendered assets are skipped unless Force is
// set. One asset failing fails the run after the remaining assets have
// been attempted.
func (o *Orchestrator) RenderClips(ctx context.Context, episodeID string, sel RenderSelection, sink ProcessProgress) (RenderSummary, Result) {
	if sink == nil {
		sink = func(float64, models.Stage, string) {}
	}
	var summary RenderSummary

	episode, err := o.episodes.GetByID(ctx, episodeID)
	if err != nil {
		if ctx.Err() != nil {
			return summary, cancelled(ctx.Err())
		}
		return summary, failed(err)
	}
	clips, err := o.selectClips(ctx, episodeID, sel.ClipIDs)
	if err != nil {
		return summary, failed(err)
	}

	variants := sel.Variants
	if len(variants) == 0 {
		variants = models.AssetVariants()
	}
	ratios := sel.AspectRatios
	if len(ratios) == 0 {
		ratios = models.AspectRatios()
	}

	p := o.store.PathsFor(episode)
	source := o.resolver.Resolve(episode.SourcePath)
	totalAssets := len(clips) * len(variants) * len(ratios)
	if totalAssets == 0 {
		return summary, completed()
	}

	var words []models.WordTiming
	if episode.Transcription != nil {
		words = episode.Transcription.Words
	}

	var firstErr error
	doneAssets := 0
	for _, clip := range clips {
		clipRendered := false
		for _, variant := range variants {
			for _, ratio := range ratios {
				if err := ctx.Err(); err != nil {
					return summary, cancelled(err)
				}
				outcome, err := o.renderAsset(ctx, clip, variant, ratio, source, p, words, sel.Force, func(fraction float64) {
					sink(100*(float64(doneAssets)+fraction)/float64(totalAssets), models.StageClipsDiscovered, "rendering clip assets")
				})
				doneAssets++
				switch {
				case err != nil:
					summary.Failed++
					if firstErr == nil {
						firstErr = err
					}
				case outcome == OutcomeSkipped:
					summary.Skipped++
					clipRendered = true
				default:
					summary.Rendered++
					clipRendered = true
				}
				sink(100*float64(doneAssets)/float64(totalAssets), models.StageClipsDiscovered, "rendering clip assets")
			}
		}
		if clipRendered && clip.Status != models.ClipStatusRendered {
			clip.Status = models.ClipStatusRendered
			if err := o.clips.Update(ctx, clip); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return summary, failed(firstErr)
	}
	return summary, completed()
}

func (o *Orchestrator) selectClips(ctx context.Context, episodeID string, ids []models.ULID) ([]*models.Clip, error) {
	if len(ids) == 0 {
		clips, err := o.clips.ListByEpisode(ctx, episodeID)
		if err != nil {
			return nil, err
		}
		selected := clips[:0]
		for _, c := range clips {
			if c.Status != models.ClipStatusRejected {
				selected = append(selected, c)
			}
		}
		return selected, nil
	}
	clips := make([]*models.Clip, 0, len(ids))
	for _, id := range ids {
		clip, err := o.clips.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if clip.EpisodeID != episodeID {
			return nil, fmt.Errorf("%w: clip %s belongs to %s", models.ErrClipNotFound, id, clip.EpisodeID)
		}
		clips = append(clips, clip)
	}
	return clips, nil
}

func (o *Orchestrator) renderAsset(ctx context.Context, clip *models.Clip, variant models.AssetVariant, ratio, source string, p artifacts.Paths, words []models.WordTiming, force bool, progress ProgressFunc) (Outcome, error) {
	outputPath := p.ClipAssetPath(clip.ID.String(), ratio, variant)

	if !force {
		for _, existing := range clip.Assets {
			if existing.Variant == variant && existing.AspectRatio == ratio && existing.Status == models.AssetStatusRendered {
				return OutcomeSkipped, nil
			}
		}
	}

	asset := &models.ClipAsset{
		ClipID:      clip.ID,
		Variant:     variant,
		AspectRatio: ratio,
		OutputPath:  outputPath,
		Status:      models.AssetStatusPending,
	}

	err := o.encoder.Render(ctx, RenderRequest{
		SourcePath:  source,
		StartMs:     clip.StartMs,
		EndMs:       clip.EndMs,
		Variant:     variant,
		AspectRatio: ratio,
		OutputPath:  outputPath,
		Words:       clipWords(words, clip.StartMs, clip.EndMs),
	}, progress)
	if err != nil {
		asset.Status = models.AssetStatusFailed
		if uerr := o.clips.UpsertAsset(ctx, asset); uerr != nil {
			o.logger.Warn("recording failed asset",
				slog.String("clip_id", clip.ID.String()),
				slog.String("error", uerr.Error()))
		}
		return OutcomeFailed, fmt.Errorf("rendering %s %s for clip %s: %w", ratio, variant, clip.ID, err)
	}

	asset.Status = models.AssetStatusRendered
	if info, statErr := statSize(outputPath); statErr == nil {
		asset.FileSize = info
	}
	if err := o.clips.UpsertAsset(ctx, asset); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeCompleted, nil
}

func statSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// clipWords returns the word timings falling inside the clip window,
// rebased so subtitles start at zero.
func clipWords(words []models.WordTiming, startMs, endMs int64) []models.WordTiming {
	var out []models.WordTiming
	for _, w := range words {
		if w.StartMs >= startMs && w.EndMs <= endMs {
			out = append(out, models.WordTiming{
				StartMs: w.StartMs - startMs,
				EndMs:   w.EndMs - startMs,
				Token:   w.Token,
			})
		}
	}
	return out
}
