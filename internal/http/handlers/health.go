package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"gorm.io/gorm"

	"github.com/clipforge/clipforge/internal/queue"
)

// HealthHandler handles the health check endpoint.
type HealthHandler struct {
	version   string
	startTime time.Time
	queue     *queue.JobQueue
	db        *gorm.DB
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
	}
}

// WithQueue sets the job queue used for active job reporting.
func (h *HealthHandler) WithQueue(q *queue.JobQueue) *HealthHandler {
	h.queue = q
	return h
}

// WithDB sets the database connection for health checks.
func (h *HealthHandler) WithDB(db *gorm.DB) *HealthHandler {
	h.db = db
	return h
}

// HealthResponse is the body of the health check endpoint.
type HealthResponse struct {
	Status        string  `json:"status" doc:"Overall service status"`
	Timestamp     string  `json:"timestamp" doc:"Current server time, RFC 3339"`
	Version       string  `json:"version" doc:"Build version"`
	Uptime        string  `json:"uptime" doc:"Service uptime"`
	UptimeSeconds float64 `json:"uptime_seconds" doc:"Service uptime in seconds"`

	ActiveJobs int    `json:"active_jobs" doc:"Queued plus running jobs"`
	QueueSize  int    `json:"queue_size" doc:"Maximum queued jobs"`
	Database   string `json:"database" doc:"Database status: ok, error, or unknown"`
}

// HealthInput is the input for the health check endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service including queue and database state",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// GetHealth returns the health status of the service.
func (h *HealthHandler) GetHealth(ctx context.Context, input *HealthInput) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	resp := HealthResponse{
		Status:        "healthy",
		Timestamp:     now.UTC().Format(time.RFC3339),
		Version:       h.version,
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
		Database:      h.databaseStatus(ctx),
	}

	if h.queue != nil {
		stats := h.queue.Stats()
		resp.ActiveJobs = stats.Queued + stats.Running
		resp.QueueSize = stats.Capacity
	}
	if resp.Database == "error" {
		resp.Status = "degraded"
	}

	return &HealthOutput{Body: resp}, nil
}

func (h *HealthHandler) databaseStatus(ctx context.Context) string {
	if h.db == nil {
		return "unknown"
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return "error"
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return "error"
	}
	return "ok"
}
