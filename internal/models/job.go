package models

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job to execute.
type JobType string

const (
	// JobTypeProcessEpisode drives an episode through the stage pipeline.
	JobTypeProcessEpisode JobType = "process_episode"
	// JobTypeRenderClips renders clip assets for an episode.
	JobTypeRenderClips JobType = "render_clips"
	// JobTypeDiscoverClips runs clip segmentation for an episode.
	JobTypeDiscoverClips JobType = "discover_clips"
)

// ParseJobType validates and returns a job type.
func ParseJobType(s string) (JobType, error) {
	t := JobType(s)
	switch t {
	case JobTypeProcessEpisode, JobTypeRenderClips, JobTypeDiscoverClips:
		return t, nil
	}
	return "", ErrUnknownJobType
}

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusQueued indicates the job is waiting for a worker.
	JobStatusQueued JobStatus = "queued"
	// JobStatusRunning indicates a worker is executing the job.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job finished with an error.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates the job was cancelled by the submitter.
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is final. A terminal job never
// transitions back to a non-terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobParams carries the submitter-provided parameters of a job.
type JobParams struct {
	EpisodeID   string `json:"episode_id"`
	TargetStage Stage  `json:"target_stage,omitempty"`
	Force       bool   `json:"force_reprocess,omitempty"`

	// Render parameters (render_clips jobs).
	ClipIDs      []string       `json:"clip_ids,omitempty"`
	Variants     []AssetVariant `json:"variants,omitempty"`
	AspectRatios []string       `json:"aspect_ratios,omitempty"`

	// Segmentation parameters (discover_clips jobs).
	MaxClips       int     `json:"max_clips,omitempty"`
	MinDurationMs  int64   `json:"min_duration_ms,omitempty"`
	MaxDurationMs  int64   `json:"max_duration_ms,omitempty"`
	ScoreThreshold float64 `json:"score_threshold,omitempty"`
}

// Job is an in-memory record of one queued pipeline execution.
// Jobs live in the queue's job table and are cleared on restart;
// episodes persist independently in the registry.
//
// All mutation goes through the queue's mutex; the Mark* helpers do not
// lock and must only be called with that mutex held.
type Job struct {
	ID     string    `json:"job_id"`
	Type   JobType   `json:"job_type"`
	Params JobParams `json:"parameters"`

	Status JobStatus `json:"status"`

	// Progress is 0..100 and monotonically non-decreasing.
	Progress     float64 `json:"progress"`
	CurrentStage Stage   `json:"current_stage,omitempty"`
	Message      string  `json:"message,omitempty"`

	// Stuck is set by the stuck detector when progress has stalled past
	// the stage timeout. Informational only; the job keeps running.
	Stuck bool `json:"stuck,omitempty"`

	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	LastProgressAt time.Time  `json:"last_progress_at"`

	// ETASeconds is nil until at least two progress samples exist.
	ETASeconds *float64 `json:"eta_seconds,omitempty"`

	// WebhookURL may embed caller tokens; it is redacted from logs.
	WebhookURL string `json:"webhook_url,omitempty" masq:"secret"`

	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// NewJob creates a queued job with a fresh UUID.
func NewJob(jobType JobType, params JobParams) *Job {
	now := time.Now()
	return &Job{
		ID:             uuid.New().String(),
		Type:           jobType,
		Params:         params,
		Status:         JobStatusQueued,
		CreatedAt:      now,
		LastProgressAt: now,
	}
}

// Terminal reports whether the job is in a final state.
func (j *Job) Terminal() bool {
	return j.Status.Terminal()
}

// MarkRunning transitions the job to running on worker pickup.
func (j *Job) MarkRunning() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.LastProgressAt = now
}

// MarkCompleted transitions the job to completed with a result payload.
func (j *Job) MarkCompleted(result map[string]any) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.LastProgressAt = now
	j.Progress = 100
	j.Result = result
	j.Error = ""
	j.ETASeconds = nil
	j.Stuck = false
}

// MarkFailed transitions the job to failed with an error message.
func (j *Job) MarkFailed(err error) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.LastProgressAt = now
	if err != nil {
		j.Error = err.Error()
	}
	j.ETASeconds = nil
}

// MarkCancelled transitions the job to cancelled.
func (j *Job) MarkCancelled() {
	now := time.Now()
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
	j.LastProgressAt = now
	j.ETASeconds = nil
}

// Clone returns a copy safe to hand to readers outside the queue mutex.
func (j *Job) Clone() *Job {
	cp := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	if j.ETASeconds != nil {
		v := *j.ETASeconds
		cp.ETASeconds = &v
	}
	if j.Result != nil {
		cp.Result = make(map[string]any, len(j.Result))
		for k, v := range j.Result {
			cp.Result[k] = v
		}
	}
	if j.Params.ClipIDs != nil {
		cp.Params.ClipIDs = append([]string(nil), j.Params.ClipIDs...)
	}
	if j.Params.Variants != nil {
		cp.Params.Variants = append([]AssetVariant(nil), j.Params.Variants...)
	}
	if j.Params.AspectRatios != nil {
		cp.Params.AspectRatios = append([]string(nil), j.Params.AspectRatios...)
	}
	return &cp
}
