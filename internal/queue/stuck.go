package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/clipforge/clipforge/internal/models"
)

// StuckDetector periodically scans running jobs and flags those whose
// progress has not advanced within the soft timeout of their current
// stage. Flagging is informational; the job is never killed. Operators
// cancel explicitly when they decide a stuck job is dead.
type StuckDetector struct {
	queue    *JobQueue
	timeouts map[models.Stage]time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// StageTimeoutsFromConfig converts configured timeout keys into
// stage-keyed durations. "clip_render" governs the clip stage for both
// discovery and render jobs. Unknown keys are ignored.
func StageTimeoutsFromConfig(timeouts map[string]time.Duration) map[models.Stage]time.Duration {
	names := map[string]models.Stage{
		"prep":           models.StagePrepared,
		"transcription":  models.StageTranscribed,
		"enrichment":     models.StageEnriched,
		"rendering":      models.StageRendered,
		"clip_discovery": models.StageClipsDiscovered,
	}
	out := make(map[models.Stage]time.Duration, len(timeouts))
	for name, d := range timeouts {
		if stage, ok := names[name]; ok && d > 0 {
			out[stage] = d
		}
	}
	// clip_render governs the clip stage and wins over clip_discovery.
	if d, ok := timeouts["clip_render"]; ok && d > 0 {
		out[models.StageClipsDiscovered] = d
	}
	return out
}

// NewStuckDetector creates a detector scanning every interval.
func NewStuckDetector(queue *JobQueue, timeouts map[models.Stage]time.Duration, interval time.Duration, logger *slog.Logger) *StuckDetector {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StuckDetector{
		queue:    queue,
		timeouts: timeouts,
		interval: interval,
		logger:   logger,
	}
}

// Run scans until the context is cancelled.
func (d *StuckDetector) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Scan(time.Now())
		}
	}
}

// Scan flags stalled running jobs and returns how many were flagged.
func (d *StuckDetector) Scan(now time.Time) int {
	q := d.queue
	q.mu.Lock()
	defer q.mu.Unlock()

	flagged := 0
	for _, entry := range q.jobs {
		job := entry.job
		if job.Status != models.JobStatusRunning || job.Stuck {
			continue
		}
		timeout, ok := d.timeouts[job.CurrentStage]
		if !ok {
			continue
		}
		if now.Sub(job.LastProgressAt) > timeout {
			job.Stuck = true
			flagged++
			d.logger.Warn("job appears stuck",
				slog.String("job_id", job.ID),
				slog.String("stage", job.CurrentStage.String()),
				slog.Duration("since_progress", now.Sub(job.LastProgressAt)))
		}
	}
	return flagged
}
