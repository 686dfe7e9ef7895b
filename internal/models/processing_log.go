package models

// LogEvent classifies a processing log row.
type LogEvent string

const (
	// LogEventStarted marks the beginning of a stage run.
	LogEventStarted LogEvent = "started"
	// LogEventCompleted marks a successful stage run.
	LogEventCompleted LogEvent = "completed"
	// LogEventSkipped marks a stage that already had its output.
	LogEventSkipped LogEvent = "skipped"
	// LogEventFailed marks a stage that returned an error.
	LogEventFailed LogEvent = "failed"
)

// ProcessingLog is an append-only audit row for per-stage events.
// Rows are never updated; each stage run appends start and end rows.
type ProcessingLog struct {
	BaseModel

	EpisodeID string `gorm:"size:255;index;not null" json:"episode_id"`

	Stage Stage    `gorm:"size:32;not null" json:"stage"`
	Event LogEvent `gorm:"size:20;not null" json:"event"`

	DurationMs int64  `json:"duration_ms,omitempty"`
	Error      string `gorm:"size:4096" json:"error,omitempty"`
}

// TableName returns the table name for ProcessingLog.
func (ProcessingLog) TableName() string {
	return "processing_log"
}
