// Package queue is the concurrency core: a bounded FIFO job queue with
// a fixed worker pool, in-memory job records, coalesced progress, ETA
// estimation, stuck detection, and webhook dispatch.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/clipforge/clipforge/internal/models"
)

// Handler executes one job type. It receives the job's parameters, a
// job-scoped context cancelled on job cancellation or shutdown, and a
// progress reporter. The returned map becomes the job result.
type Handler func(ctx context.Context, params models.JobParams, progress ProgressReporter) (map[string]any, error)

// ProgressReporter delivers overall progress in [0,100] with the stage
// currently running and a short message. Calls are coalesced and
// clamped monotonic by the queue.
type ProgressReporter func(overall float64, stage models.Stage, message string)

// Options configures a JobQueue.
type Options struct {
	MaxWorkers       int
	Capacity         int
	ProgressInterval time.Duration
	JobRetention     time.Duration
	SweepInterval    time.Duration
}

// Stats is a point-in-time view of the queue.
type Stats struct {
	Queued     int `json:"queued"`
	Running    int `json:"running"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
	MaxWorkers int `json:"max_workers"`
	Capacity   int `json:"capacity"`
}

type progressSample struct {
	at       time.Time
	progress float64
}

type jobEntry struct {
	job *models.Job
	// cancel tears down the per-job context once the job is running.
	cancel context.CancelFunc
	// samples is the sliding window feeding the ETA estimate.
	samples []progressSample
	// lastEmit is the last time a progress update was accepted.
	lastEmit time.Time
}

// JobQueue owns all in-memory job state. Every mutation of a job record
// goes through the single mutex; workers, the HTTP surface, the stuck
// detector, and the retention sweep all share it.
type JobQueue struct {
	opts     Options
	handlers map[models.JobType]Handler
	webhooks *WebhookDispatcher
	logger   *slog.Logger

	mu   sync.Mutex
	jobs map[string]*jobEntry

	pending chan string

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// etaWindow is the sliding window over which progress rate is averaged.
const etaWindow = 30 * time.Second

// NewJobQueue creates a queue. Handlers are registered before Start.
func NewJobQueue(opts Options, webhooks *WebhookDispatcher, logger *slog.Logger) *JobQueue {
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 2
	}
	if opts.Capacity < 1 {
		opts.Capacity = 32
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 250 * time.Millisecond
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &JobQueue{
		opts:     opts,
		handlers: make(map[models.JobType]Handler),
		webhooks: webhooks,
		logger:   logger,
		jobs:     make(map[string]*jobEntry),
		pending:  make(chan string, opts.Capacity),
		baseCtx:  ctx,
		stop:     cancel,
	}
}

// RegisterHandler binds a handler to a job type. Must be called before
// Start.
func (q *JobQueue) RegisterHandler(jobType models.JobType, handler Handler) {
	q.handlers[jobType] = handler
}

// Start launches the worker pool and the retention sweep.
func (q *JobQueue) Start() {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	for i := 0; i < q.opts.MaxWorkers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.wg.Add(1)
	go q.sweepLoop()
	q.logger.Info("job queue started",
		slog.Int("workers", q.opts.MaxWorkers),
		slog.Int("capacity", q.opts.Capacity))
}

// Stop cancels running jobs and waits for workers to drain.
func (q *JobQueue) Stop() {
	q.stop()
	q.wg.Wait()
}

// Submit validates and enqueues a job. A non-terminal job for the same
// episode and type is a conflict; a full queue is a rejection. The
// returned record is a snapshot.
func (q *JobQueue) Submit(jobType models.JobType, params models.JobParams, webhookURL string) (*models.Job, error) {
	if _, ok := q.handlers[jobType]; !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownJobType, jobType)
	}
	if params.EpisodeID == "" {
		return nil, models.ErrValidation{Field: "episode_id", Message: "must not be empty"}
	}

	job := models.NewJob(jobType, params)
	job.WebhookURL = webhookURL

	q.mu.Lock()
	for _, entry := range q.jobs {
		if entry.job.Params.EpisodeID == params.EpisodeID &&
			entry.job.Type == jobType &&
			!entry.job.Terminal() {
			q.mu.Unlock()
			return nil, models.ErrJobConflict
		}
	}
	q.jobs[job.ID] = &jobEntry{job: job}
	q.mu.Unlock()

	select {
	case q.pending <- job.ID:
	default:
		q.mu.Lock()
		delete(q.jobs, job.ID)
		q.mu.Unlock()
		return nil, models.ErrQueueFull
	}

	q.logger.Info("job submitted",
		slog.String("job_id", job.ID),
		slog.String("job_type", string(jobType)),
		slog.String("episode_id", params.EpisodeID))
	return job.Clone(), nil
}

// Get returns a snapshot of the job.
func (q *JobQueue) Get(jobID string) (*models.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.jobs[jobID]
	if !ok {
		return nil, models.ErrJobNotFound
	}
	return entry.job.Clone(), nil
}

// List returns snapshots of all jobs, optionally filtered by status,
// newest first.
func (q *JobQueue) List(status models.JobStatus, limit int) []*models.Job {
	q.mu.Lock()
	out := make([]*models.Job, 0, len(q.jobs))
	for _, entry := range q.jobs {
		if status != "" && entry.job.Status != status {
			continue
		}
		out = append(out, entry.job.Clone())
	}
	q.mu.Unlock()

	sortJobsNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Cancel cancels a job. Queued jobs become cancelled immediately and
// never run. Running jobs get their context cancelled and finish
// cooperatively at the next stage boundary. Cancelling an already
// cancelled job is a no-op; other terminal states are a conflict.
func (q *JobQueue) Cancel(jobID string) error {
	q.mu.Lock()
	entry, ok := q.jobs[jobID]
	if !ok {
		q.mu.Unlock()
		return models.ErrJobNotFound
	}
	job := entry.job

	switch job.Status {
	case models.JobStatusCancelled:
		q.mu.Unlock()
		return nil
	case models.JobStatusCompleted, models.JobStatusFailed:
		q.mu.Unlock()
		return models.ErrJobTerminal
	case models.JobStatusQueued:
		job.MarkCancelled()
		snapshot := job.Clone()
		q.mu.Unlock()
		q.notify(snapshot)
		return nil
	default: // running
		if entry.cancel != nil {
			entry.cancel()
		}
		q.mu.Unlock()
		return nil
	}
}

// Stats returns current queue counters.
func (q *JobQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := Stats{MaxWorkers: q.opts.MaxWorkers, Capacity: q.opts.Capacity}
	for _, entry := range q.jobs {
		switch entry.job.Status {
		case models.JobStatusQueued:
			s.Queued++
		case models.JobStatusRunning:
			s.Running++
		case models.JobStatusCompleted:
			s.Completed++
		case models.JobStatusFailed:
			s.Failed++
		case models.JobStatusCancelled:
			s.Cancelled++
		}
	}
	return s
}

// ActiveCount returns queued plus running jobs, for health reporting.
func (q *JobQueue) ActiveCount() int {
	s := q.Stats()
	return s.Queued + s.Running
}

func (q *JobQueue) worker(id int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.baseCtx.Done():
			return
		case jobID := <-q.pending:
			q.runJob(id, jobID)
		}
	}
}

func (q *JobQueue) runJob(workerID int, jobID string) {
	q.mu.Lock()
	entry, ok := q.jobs[jobID]
	if !ok || entry.job.Status != models.JobStatusQueued {
		// Cancelled (or swept) before pickup.
		q.mu.Unlock()
		return
	}
	job := entry.job
	handler := q.handlers[job.Type]
	params := job.Params

	jobCtx, cancel := context.WithCancel(q.baseCtx)
	entry.cancel = cancel
	job.MarkRunning()
	q.mu.Unlock()
	defer cancel()

	q.logger.Info("job started",
		slog.String("job_id", job.ID),
		slog.String("job_type", string(job.Type)),
		slog.Int("worker", workerID))

	result, err := handler(jobCtx, params, q.progressReporter(jobID))

	q.mu.Lock()
	switch {
	case err != nil && (errors.Is(err, context.Canceled) || jobCtx.Err() != nil):
		job.MarkCancelled()
	case err != nil:
		job.MarkFailed(err)
	default:
		job.MarkCompleted(result)
	}
	snapshot := job.Clone()
	q.mu.Unlock()

	q.logger.Info("job finished",
		slog.String("job_id", job.ID),
		slog.String("status", string(snapshot.Status)))

	// Strictly after the terminal status write.
	q.notify(snapshot)
}

// progressReporter builds the coalescing, clamping progress sink for a
// job. Updates arriving faster than ProgressInterval are dropped;
// progress never regresses; terminal jobs ignore late updates.
func (q *JobQueue) progressReporter(jobID string) ProgressReporter {
	return func(overall float64, stage models.Stage, message string) {
		now := time.Now()

		q.mu.Lock()
		defer q.mu.Unlock()
		entry, ok := q.jobs[jobID]
		if !ok || entry.job.Terminal() {
			return
		}
		job := entry.job

		if overall < job.Progress {
			overall = job.Progress
		}
		if overall > 100 {
			overall = 100
		}

		final := overall >= 100
		if !final && now.Sub(entry.lastEmit) < q.opts.ProgressInterval {
			return
		}
		entry.lastEmit = now

		job.Progress = overall
		job.LastProgressAt = now
		job.Stuck = false
		if stage != "" {
			job.CurrentStage = stage
		}
		if message != "" {
			job.Message = message
		}

		entry.samples = append(entry.samples, progressSample{at: now, progress: overall})
		q.trimSamples(entry, now)
		job.ETASeconds = estimateETA(entry.samples, overall)
	}
}

func (q *JobQueue) trimSamples(entry *jobEntry, now time.Time) {
	cutoff := now.Add(-etaWindow)
	idx := 0
	for idx < len(entry.samples) && entry.samples[idx].at.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		entry.samples = entry.samples[idx:]
	}
}

// estimateETA returns remaining seconds from the average progress rate
// over the sample window, or nil with fewer than two samples or a
// non-advancing rate.
func estimateETA(samples []progressSample, progress float64) *float64 {
	if len(samples) < 2 {
		return nil
	}
	first, last := samples[0], samples[len(samples)-1]
	elapsed := last.at.Sub(first.at).Seconds()
	if elapsed <= 0 {
		return nil
	}
	rate := (last.progress - first.progress) / elapsed
	if rate <= 0 {
		return nil
	}
	eta := (100 - progress) / rate
	if eta < 0 {
		eta = 0
	}
	return &eta
}

func (q *JobQueue) notify(job *models.Job) {
	if q.webhooks == nil || job.WebhookURL == "" {
		return
	}
	q.webhooks.Dispatch(job)
}

func (q *JobQueue) sweepLoop() {
	defer q.wg.Done()
	ticker := time.NewTicker(q.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-q.baseCtx.Done():
			return
		case <-ticker.C:
			q.SweepExpired(time.Now())
		}
	}
}

// SweepExpired removes terminal jobs past the retention window.
func (q *JobQueue) SweepExpired(now time.Time) int {
	if q.opts.JobRetention <= 0 {
		return 0
	}
	cutoff := now.Add(-q.opts.JobRetention)

	q.mu.Lock()
	defer q.mu.Unlock()
	removed := 0
	for id, entry := range q.jobs {
		job := entry.job
		if job.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(q.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		q.logger.Debug("purged expired jobs", slog.Int("count", removed))
	}
	return removed
}

func sortJobsNewestFirst(jobs []*models.Job) {
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}
