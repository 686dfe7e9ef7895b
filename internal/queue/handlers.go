package queue

import (
	"context"
	"fmt"

	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/pipeline"
)

// RegisterPipelineHandlers binds the three job types to the pipeline
// orchestrator.
func RegisterPipelineHandlers(q *JobQueue, orch *pipeline.Orchestrator) {
	q.RegisterHandler(models.JobTypeProcessEpisode, processEpisodeHandler(orch))
	q.RegisterHandler(models.JobTypeDiscoverClips, discoverClipsHandler(orch))
	q.RegisterHandler(models.JobTypeRenderClips, renderClipsHandler(orch))
}

func segmentParams(p models.JobParams) pipeline.SegmentParams {
	return pipeline.SegmentParams{
		MaxClips:       p.MaxClips,
		MinDurationMs:  p.MinDurationMs,
		MaxDurationMs:  p.MaxDurationMs,
		ScoreThreshold: p.ScoreThreshold,
	}
}

func resultError(res pipeline.Result) error {
	if res.Err != nil {
		return res.Err
	}
	return fmt.Errorf("pipeline reported %s", res.Outcome)
}

func processEpisodeHandler(orch *pipeline.Orchestrator) Handler {
	return func(ctx context.Context, params models.JobParams, progress ProgressReporter) (map[string]any, error) {
		target := params.TargetStage
		if target == "" {
			target = models.StageRendered
		}
		episode, res := orch.Process(ctx, params.EpisodeID, target, params.Force,
			segmentParams(params), pipeline.ProcessProgress(progress))
		switch res.Outcome {
		case pipeline.OutcomeCompleted:
			return map[string]any{
				"episode_id": episode.ID,
				"stage":      episode.Stage,
			}, nil
		case pipeline.OutcomeCancelled:
			return nil, context.Canceled
		default:
			return nil, resultError(res)
		}
	}
}

func discoverClipsHandler(orch *pipeline.Orchestrator) Handler {
	return func(ctx context.Context, params models.JobParams, progress ProgressReporter) (map[string]any, error) {
		clips, res := orch.DiscoverClips(ctx, params.EpisodeID, segmentParams(params),
			pipeline.ProcessProgress(progress))
		switch res.Outcome {
		case pipeline.OutcomeCompleted:
			ids := make([]string, len(clips))
			for i, c := range clips {
				ids[i] = c.ID.String()
			}
			return map[string]any{
				"episode_id": params.EpisodeID,
				"clip_count": len(clips),
				"clip_ids":   ids,
			}, nil
		case pipeline.OutcomeCancelled:
			return nil, context.Canceled
		default:
			return nil, resultError(res)
		}
	}
}

func renderClipsHandler(orch *pipeline.Orchestrator) Handler {
	return func(ctx context.Context, params models.JobParams, progress ProgressReporter) (map[string]any, error) {
		sel := pipeline.RenderSelection{
			Variants:     params.Variants,
			AspectRatios: params.AspectRatios,
			Force:        params.Force,
		}
		for _, raw := range params.ClipIDs {
			id, err := models.ParseULID(raw)
			if err != nil {
				return nil, models.ErrValidation{Field: "clip_ids", Message: err.Error()}
			}
			sel.ClipIDs = append(sel.ClipIDs, id)
		}

		summary, res := orch.RenderClips(ctx, params.EpisodeID, sel, pipeline.ProcessProgress(progress))
		switch res.Outcome {
		case pipeline.OutcomeCompleted:
			return map[string]any{
				"episode_id": params.EpisodeID,
				"rendered":   summary.Rendered,
				"skipped":    summary.Skipped,
			}, nil
		case pipeline.OutcomeCancelled:
			return nil, context.Canceled
		default:
			return nil, resultError(res)
		}
	}
}
