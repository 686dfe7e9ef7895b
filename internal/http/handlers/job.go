package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/queue"
	"github.com/clipforge/clipforge/internal/repository"
)

// JobHandler handles job queue API endpoints.
type JobHandler struct {
	queue    *queue.JobQueue
	episodes repository.EpisodeRepository
}

// NewJobHandler creates a new job handler.
func NewJobHandler(q *queue.JobQueue, episodes repository.EpisodeRepository) *JobHandler {
	return &JobHandler{queue: q, episodes: episodes}
}

// Register registers the job routes with the API.
func (h *JobHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "submitProcessJob",
		Method:        "POST",
		Path:          "/api/v1/episodes/{id}/process",
		Summary:       "Submit processing job",
		Description:   "Queues an asynchronous job that drives the episode through the pipeline",
		Tags:          []string{"Jobs"},
		DefaultStatus: http.StatusAccepted,
	}, h.SubmitProcess)

	huma.Register(api, huma.Operation{
		OperationID: "listJobs",
		Method:      "GET",
		Path:        "/api/v1/jobs",
		Summary:     "List jobs",
		Description: "Returns jobs newest first, optionally filtered by status",
		Tags:        []string{"Jobs"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getJob",
		Method:      "GET",
		Path:        "/api/v1/jobs/{id}",
		Summary:     "Get job",
		Description: "Returns a job by ID with progress and ETA",
		Tags:        []string{"Jobs"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID:   "cancelJob",
		Method:        "POST",
		Path:          "/api/v1/jobs/{id}/cancel",
		Summary:       "Cancel job",
		Description:   "Cancels a queued or running job; cancelling a cancelled job is a no-op",
		Tags:          []string{"Jobs"},
		DefaultStatus: http.StatusNoContent,
	}, h.Cancel)

	huma.Register(api, huma.Operation{
		OperationID: "getQueueStats",
		Method:      "GET",
		Path:        "/api/v1/jobs/stats",
		Summary:     "Get queue statistics",
		Description: "Returns job counts by status and queue limits",
		Tags:        []string{"Jobs"},
	}, h.GetStats)
}

// SubmitProcessJobInput is the input for submitting a processing job.
type SubmitProcessJobInput struct {
	ID   string `path:"id" doc:"Canonical episode ID"`
	Body struct {
		TargetStage string `json:"target_stage,omitempty" doc:"Stage to process up to (default: rendered)" enum:"prepared,transcribed,enriched,rendered,clips_discovered,"`
		Force       bool   `json:"force_reprocess,omitempty" doc:"Re-run stages whose output already exists"`
		WebhookURL  string `json:"webhook_url,omitempty" format:"uri" doc:"URL notified when the job reaches a terminal state"`

		MaxClips       int     `json:"max_clips,omitempty" doc:"Maximum clips for the clip discovery stage"`
		MinDurationMs  int64   `json:"min_duration_ms,omitempty" doc:"Minimum clip duration in milliseconds"`
		MaxDurationMs  int64   `json:"max_duration_ms,omitempty" doc:"Maximum clip duration in milliseconds"`
		ScoreThreshold float64 `json:"score_threshold,omitempty" doc:"Minimum clip score"`
	}
}

// SubmitProcessJobOutput is the output for submitting a processing job.
type SubmitProcessJobOutput struct {
	Body models.Job
}

// SubmitProcess queues a process_episode job for the episode.
func (h *JobHandler) SubmitProcess(ctx context.Context, input *SubmitProcessJobInput) (*SubmitProcessJobOutput, error) {
	params := models.JobParams{
		EpisodeID:      input.ID,
		Force:          input.Body.Force,
		MaxClips:       input.Body.MaxClips,
		MinDurationMs:  input.Body.MinDurationMs,
		MaxDurationMs:  input.Body.MaxDurationMs,
		ScoreThreshold: input.Body.ScoreThreshold,
	}
	if input.Body.TargetStage != "" {
		stage, err := models.ParseStage(input.Body.TargetStage)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid target stage", err)
		}
		params.TargetStage = stage
	}

	// Reject unknown episodes at submission time instead of letting the
	// job fail asynchronously.
	if _, err := h.episodes.GetByID(ctx, input.ID); err != nil {
		return nil, domainError(fmt.Sprintf("episode %s", input.ID), err)
	}

	job, err := h.queue.Submit(models.JobTypeProcessEpisode, params, input.Body.WebhookURL)
	if err != nil {
		return nil, domainError("failed to submit job", err)
	}

	return &SubmitProcessJobOutput{Body: *job}, nil
}

// ListJobsInput is the input for listing jobs.
type ListJobsInput struct {
	Status string `query:"status" doc:"Filter by job status" enum:"queued,running,completed,failed,cancelled,"`
	Limit  int    `query:"limit" default:"50" minimum:"1" maximum:"1000" doc:"Maximum number of jobs to return"`
}

// ListJobsOutput is the output for listing jobs.
type ListJobsOutput struct {
	Body struct {
		Jobs []*models.Job `json:"jobs"`
	}
}

// List returns jobs, newest first.
func (h *JobHandler) List(ctx context.Context, input *ListJobsInput) (*ListJobsOutput, error) {
	jobs := h.queue.List(models.JobStatus(input.Status), input.Limit)

	resp := &ListJobsOutput{}
	resp.Body.Jobs = jobs
	if resp.Body.Jobs == nil {
		resp.Body.Jobs = []*models.Job{}
	}
	return resp, nil
}

// GetJobInput is the input for getting a job.
type GetJobInput struct {
	ID string `path:"id" doc:"Job ID (UUID)"`
}

// GetJobOutput is the output for getting a job.
type GetJobOutput struct {
	Body models.Job
}

// GetByID returns a job by ID.
func (h *JobHandler) GetByID(ctx context.Context, input *GetJobInput) (*GetJobOutput, error) {
	job, err := h.queue.Get(input.ID)
	if err != nil {
		return nil, domainError(fmt.Sprintf("job %s", input.ID), err)
	}

	return &GetJobOutput{Body: *job}, nil
}

// CancelJobInput is the input for cancelling a job.
type CancelJobInput struct {
	ID string `path:"id" doc:"Job ID (UUID)"`
}

// CancelJobOutput is the output for cancelling a job.
type CancelJobOutput struct{}

// Cancel cancels a queued or running job.
func (h *JobHandler) Cancel(ctx context.Context, input *CancelJobInput) (*CancelJobOutput, error) {
	if err := h.queue.Cancel(input.ID); err != nil {
		return nil, domainError(fmt.Sprintf("job %s", input.ID), err)
	}
	return &CancelJobOutput{}, nil
}

// GetQueueStatsInput is the input for queue statistics.
type GetQueueStatsInput struct{}

// GetQueueStatsOutput is the output for queue statistics.
type GetQueueStatsOutput struct {
	Body queue.Stats
}

// GetStats returns queue counters.
func (h *JobHandler) GetStats(ctx context.Context, input *GetQueueStatsInput) (*GetQueueStatsOutput, error) {
	return &GetQueueStatsOutput{Body: h.queue.Stats()}, nil
}
