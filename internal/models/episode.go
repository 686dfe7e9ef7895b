package models

import (
	"time"

	"gorm.io/gorm"
)

// EpisodeMetadata holds structured attributes extracted for an episode.
// Fields are filled in progressively: filename heuristics at discovery,
// then overwritten by enrichment output.
type EpisodeMetadata struct {
	ShowName      string `json:"show_name,omitempty"`
	Title         string `json:"title,omitempty"`
	EpisodeNumber int    `json:"episode_number,omitempty"`
	HostName      string `json:"host_name,omitempty"`
	// AirDate is the episode air date in YYYY-MM-DD form.
	AirDate  string `json:"air_date,omitempty"`
	Language string `json:"language,omitempty"`
}

// WordTiming is a single word-level timestamp from transcription.
type WordTiming struct {
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Token   string `json:"token"`
}

// Transcription is the output of the speech-to-text collaborator.
// The core stores it opaquely and never interprets the text.
type Transcription struct {
	Text       string       `json:"text"`
	Words      []WordTiming `json:"words,omitempty"`
	Language   string       `json:"language,omitempty"`
	Confidence float64      `json:"confidence,omitempty"`
}

// ScoredPerson is a person mentioned in the episode with a relevance score.
type ScoredPerson struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Enrichment is the output of the LLM enrichment collaborator.
// ShowName, HostName, EpisodeNumber, and AirDate feed the canonical
// episode ID recomputation; the rest is opaque to the core.
type Enrichment struct {
	ShowName      string         `json:"show_name,omitempty"`
	HostName      string         `json:"host_name,omitempty"`
	EpisodeNumber int            `json:"episode_number,omitempty"`
	AirDate       string         `json:"air_date,omitempty"`
	Summary       string         `json:"summary,omitempty"`
	Takeaways     []string       `json:"takeaways,omitempty"`
	Topics        []string       `json:"topics,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
	People        []ScoredPerson `json:"people,omitempty"`
}

// Episode represents one source video and all state derived from it.
// The primary key is the canonical episode ID produced by the naming
// service; it is rewritten once, after enrichment.
type Episode struct {
	ID string `gorm:"primarykey;size:255" json:"episode_id"`

	// ContentHash is the SHA-256 of the source file bytes. Unique across
	// the registry; the dedup index relies on this constraint.
	ContentHash string `gorm:"uniqueIndex;size:64;not null" json:"content_hash"`

	// SourcePath is the resolved source location in portable form
	// (relative to the project root when possible, forward slashes).
	SourcePath string `gorm:"size:1024;not null" json:"source_path"`

	FileSize        int64     `json:"file_size"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	LastModified    time.Time `json:"last_modified"`

	// Stage is the furthest processing stage completed for this episode.
	Stage Stage `gorm:"size:32;index;not null;default:'discovered'" json:"stage"`

	Metadata      EpisodeMetadata `gorm:"serializer:json" json:"metadata"`
	Transcription *Transcription  `gorm:"serializer:json" json:"transcription,omitempty"`
	Enrichment    *Enrichment     `gorm:"serializer:json" json:"enrichment,omitempty"`

	// Error holds the last stage failure message; cleared on a
	// successful re-run of the failed stage.
	Error string `gorm:"size:4096" json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Clips []Clip `gorm:"foreignKey:EpisodeID;constraint:OnDelete:CASCADE" json:"clips,omitempty"`
}

// TableName returns the table name for Episode.
func (Episode) TableName() string {
	return "episodes"
}

// Validate performs basic validation on the episode.
func (e *Episode) Validate() error {
	if e.ID == "" {
		return ErrValidation{Field: "episode_id", Message: "must not be empty"}
	}
	if len(e.ContentHash) != 64 {
		return ErrValidation{Field: "content_hash", Message: "must be a hex SHA-256 digest"}
	}
	if e.SourcePath == "" {
		return ErrValidation{Field: "source_path", Message: "must not be empty"}
	}
	if !e.Stage.Valid() {
		return ErrValidation{Field: "stage", Message: "unknown stage " + string(e.Stage)}
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the episode.
func (e *Episode) BeforeCreate(_ *gorm.DB) error {
	return e.Validate()
}

// HasOutput reports whether the episode already carries the output of the
// given stage. The stage runner uses this for skip-if-present semantics.
func (e *Episode) HasOutput(stage Stage) bool {
	switch stage {
	case StageDiscovered:
		return e.ContentHash != ""
	case StagePrepared:
		return e.DurationSeconds > 0
	case StageTranscribed:
		return e.Transcription != nil && e.Transcription.Text != ""
	case StageEnriched:
		return e.Enrichment != nil
	case StageRendered:
		return e.Stage.AtLeast(StageRendered)
	case StageClipsDiscovered:
		return e.Stage.AtLeast(StageClipsDiscovered)
	default:
		return false
	}
}

// AdvanceStage raises the stage watermark if the given stage is further
// along. Episode stage never regresses outside an explicit force-reset.
func (e *Episode) AdvanceStage(stage Stage) {
	if stage.Index() > e.Stage.Index() {
		e.Stage = stage
	}
}

// ShowFolderYear returns the year component used in artifact paths,
// preferring the enriched air date and falling back to creation time.
func (e *Episode) ShowFolderYear() int {
	if e.Metadata.AirDate != "" {
		if t, err := time.Parse("2006-01-02", e.Metadata.AirDate); err == nil {
			return t.Year()
		}
	}
	return e.CreatedAt.Year()
}
