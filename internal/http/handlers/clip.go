package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/pipeline"
	"github.com/clipforge/clipforge/internal/queue"
	"github.com/clipforge/clipforge/internal/repository"
)

// ClipHandler handles clip API endpoints.
type ClipHandler struct {
	clips    repository.ClipRepository
	episodes repository.EpisodeRepository
	orch     *pipeline.Orchestrator
	queue    *queue.JobQueue
}

// NewClipHandler creates a new clip handler.
func NewClipHandler(
	clips repository.ClipRepository,
	episodes repository.EpisodeRepository,
	orch *pipeline.Orchestrator,
	q *queue.JobQueue,
) *ClipHandler {
	return &ClipHandler{
		clips:    clips,
		episodes: episodes,
		orch:     orch,
		queue:    q,
	}
}

// Register registers the clip routes with the API.
func (h *ClipHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listClips",
		Method:      "GET",
		Path:        "/api/v1/episodes/{id}/clips",
		Summary:     "List clips",
		Description: "Returns an episode's clips ordered by score, with rendered assets",
		Tags:        []string{"Clips"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "discoverClips",
		Method:      "POST",
		Path:        "/api/v1/episodes/{id}/clips/discover",
		Summary:     "Discover clips",
		Description: "Runs clip segmentation synchronously and replaces unrendered candidates",
		Tags:        []string{"Clips"},
	}, h.Discover)

	huma.Register(api, huma.Operation{
		OperationID:   "submitRenderClipsJob",
		Method:        "POST",
		Path:          "/api/v1/episodes/{id}/clips/render",
		Summary:       "Submit clip render job",
		Description:   "Queues an asynchronous job that renders clip assets",
		Tags:          []string{"Clips"},
		DefaultStatus: http.StatusAccepted,
	}, h.SubmitRender)
}

// ListClipsInput is the input for listing clips.
type ListClipsInput struct {
	ID string `path:"id" doc:"Canonical episode ID"`
}

// ListClipsOutput is the output for listing clips.
type ListClipsOutput struct {
	Body struct {
		Clips []*models.Clip `json:"clips"`
	}
}

// List returns an episode's clips.
func (h *ClipHandler) List(ctx context.Context, input *ListClipsInput) (*ListClipsOutput, error) {
	if _, err := h.episodes.GetByID(ctx, input.ID); err != nil {
		return nil, domainError(fmt.Sprintf("episode %s", input.ID), err)
	}

	clips, err := h.clips.ListByEpisode(ctx, input.ID)
	if err != nil {
		return nil, domainError("failed to list clips", err)
	}

	resp := &ListClipsOutput{}
	resp.Body.Clips = clips
	if resp.Body.Clips == nil {
		resp.Body.Clips = []*models.Clip{}
	}
	return resp, nil
}

// DiscoverClipsInput is the input for running clip segmentation.
type DiscoverClipsInput struct {
	ID   string `path:"id" doc:"Canonical episode ID"`
	Body struct {
		MaxClips       int     `json:"max_clips,omitempty" doc:"Maximum number of clips to propose"`
		MinDurationMs  int64   `json:"min_duration_ms,omitempty" doc:"Minimum clip duration in milliseconds"`
		MaxDurationMs  int64   `json:"max_duration_ms,omitempty" doc:"Maximum clip duration in milliseconds"`
		ScoreThreshold float64 `json:"score_threshold,omitempty" doc:"Minimum clip score"`
	}
}

// DiscoverClipsOutput is the output for running clip segmentation.
type DiscoverClipsOutput struct {
	Body struct {
		Clips []*models.Clip `json:"clips"`
	}
}

// Discover runs clip segmentation inline and returns the clips.
func (h *ClipHandler) Discover(ctx context.Context, input *DiscoverClipsInput) (*DiscoverClipsOutput, error) {
	params := pipeline.SegmentParams{
		MaxClips:       input.Body.MaxClips,
		MinDurationMs:  input.Body.MinDurationMs,
		MaxDurationMs:  input.Body.MaxDurationMs,
		ScoreThreshold: input.Body.ScoreThreshold,
	}

	clips, result := h.orch.DiscoverClips(ctx, input.ID, params, nil)
	if result.Err != nil {
		return nil, domainError("clip discovery failed", result.Err)
	}

	resp := &DiscoverClipsOutput{}
	resp.Body.Clips = clips
	if resp.Body.Clips == nil {
		resp.Body.Clips = []*models.Clip{}
	}
	return resp, nil
}

// SubmitRenderClipsInput is the input for submitting a render job.
type SubmitRenderClipsInput struct {
	ID   string `path:"id" doc:"Canonical episode ID"`
	Body struct {
		ClipIDs      []string `json:"clip_ids,omitempty" doc:"Clips to render; empty renders all non-rejected clips"`
		Variants     []string `json:"variants,omitempty" doc:"Asset variants to render" enum:"clean,subtitled,branded"`
		AspectRatios []string `json:"aspect_ratios,omitempty" doc:"Aspect ratios to render" enum:"16:9,9:16,1:1"`
		Force        bool     `json:"force_reprocess,omitempty" doc:"Re-render assets that already exist"`
		WebhookURL   string   `json:"webhook_url,omitempty" format:"uri" doc:"URL notified when the job reaches a terminal state"`
	}
}

// SubmitRenderClipsOutput is the output for submitting a render job.
type SubmitRenderClipsOutput struct {
	Body models.Job
}

// SubmitRender queues a render_clips job for the episode.
func (h *ClipHandler) SubmitRender(ctx context.Context, input *SubmitRenderClipsInput) (*SubmitRenderClipsOutput, error) {
	variants := make([]models.AssetVariant, 0, len(input.Body.Variants))
	for _, v := range input.Body.Variants {
		variant := models.AssetVariant(v)
		if !variant.Valid() {
			return nil, huma.Error400BadRequest(fmt.Sprintf("unknown variant %q", v))
		}
		variants = append(variants, variant)
	}
	for _, ar := range input.Body.AspectRatios {
		if !models.ValidAspectRatio(ar) {
			return nil, huma.Error400BadRequest(fmt.Sprintf("unknown aspect ratio %q", ar))
		}
	}

	// Reject unknown episodes at submission time instead of letting the
	// job fail asynchronously.
	if _, err := h.episodes.GetByID(ctx, input.ID); err != nil {
		return nil, domainError(fmt.Sprintf("episode %s", input.ID), err)
	}

	params := models.JobParams{
		EpisodeID:    input.ID,
		Force:        input.Body.Force,
		ClipIDs:      input.Body.ClipIDs,
		Variants:     variants,
		AspectRatios: input.Body.AspectRatios,
	}

	job, err := h.queue.Submit(models.JobTypeRenderClips, params, input.Body.WebhookURL)
	if err != nil {
		return nil, domainError("failed to submit job", err)
	}

	return &SubmitRenderClipsOutput{Body: *job}, nil
}
