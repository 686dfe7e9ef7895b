package models

import "gorm.io/gorm"

// ClipStatus represents the lifecycle state of a discovered clip.
type ClipStatus string

const (
	// ClipStatusCandidate indicates the clip was proposed by segmentation.
	ClipStatusCandidate ClipStatus = "candidate"
	// ClipStatusRendered indicates at least one asset has been rendered.
	ClipStatusRendered ClipStatus = "rendered"
	// ClipStatusRejected indicates the clip was manually discarded.
	ClipStatusRejected ClipStatus = "rejected"
)

// AssetVariant identifies the treatment applied to a rendered clip file.
type AssetVariant string

const (
	// VariantClean is the raw cut with no overlays.
	VariantClean AssetVariant = "clean"
	// VariantSubtitled burns word-timed subtitles into the video.
	VariantSubtitled AssetVariant = "subtitled"
	// VariantBranded adds subtitles plus show branding.
	VariantBranded AssetVariant = "branded"
)

// AssetVariants returns all supported variants.
func AssetVariants() []AssetVariant {
	return []AssetVariant{VariantClean, VariantSubtitled, VariantBranded}
}

// Valid reports whether the variant is supported.
func (v AssetVariant) Valid() bool {
	switch v {
	case VariantClean, VariantSubtitled, VariantBranded:
		return true
	}
	return false
}

// AspectRatios returns all supported output aspect ratios.
func AspectRatios() []string {
	return []string{"16:9", "9:16", "1:1"}
}

// ValidAspectRatio reports whether the aspect ratio is supported.
func ValidAspectRatio(ar string) bool {
	switch ar {
	case "16:9", "9:16", "1:1":
		return true
	}
	return false
}

// ClipMetadata holds presentation attributes for a clip.
type ClipMetadata struct {
	Title    string   `json:"title,omitempty"`
	Caption  string   `json:"caption,omitempty"`
	Hashtags []string `json:"hashtags,omitempty"`
}

// Clip is a scored highlight segment of an episode, proposed by the
// segmentation collaborator. Deleted when its episode is deleted.
type Clip struct {
	BaseModel

	EpisodeID string `gorm:"size:255;index;not null" json:"episode_id"`

	StartMs    int64   `gorm:"not null" json:"start_ms"`
	EndMs      int64   `gorm:"not null" json:"end_ms"`
	DurationMs int64   `json:"duration_ms"`
	Score      float64 `gorm:"index" json:"score"`

	Status   ClipStatus   `gorm:"size:20;not null;default:'candidate'" json:"status"`
	Metadata ClipMetadata `gorm:"serializer:json" json:"metadata"`

	Assets []ClipAsset `gorm:"foreignKey:ClipID;constraint:OnDelete:CASCADE" json:"assets,omitempty"`
}

// TableName returns the table name for Clip.
func (Clip) TableName() string {
	return "clips"
}

// Validate performs basic validation on the clip.
func (c *Clip) Validate() error {
	if c.EpisodeID == "" {
		return ErrValidation{Field: "episode_id", Message: "must not be empty"}
	}
	if c.EndMs <= c.StartMs {
		return ErrValidation{Field: "end_ms", Message: "must be after start_ms"}
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the clip and fills derived fields.
func (c *Clip) BeforeCreate(tx *gorm.DB) error {
	if err := c.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if c.DurationMs == 0 {
		c.DurationMs = c.EndMs - c.StartMs
	}
	if c.Status == "" {
		c.Status = ClipStatusCandidate
	}
	return c.Validate()
}

// AssetStatus represents the render state of a clip asset.
type AssetStatus string

const (
	// AssetStatusPending indicates the asset render has not started.
	AssetStatusPending AssetStatus = "pending"
	// AssetStatusRendered indicates the output file exists on disk.
	AssetStatusRendered AssetStatus = "rendered"
	// AssetStatusFailed indicates the encoder reported an error.
	AssetStatusFailed AssetStatus = "failed"
)

// ClipAsset is one rendered file for a clip: a (variant, aspect ratio)
// combination produced by the video encoder.
type ClipAsset struct {
	BaseModel

	ClipID ULID `gorm:"type:varchar(26);index;not null" json:"clip_id"`

	Variant     AssetVariant `gorm:"size:20;not null" json:"variant"`
	AspectRatio string       `gorm:"size:10;not null" json:"aspect_ratio"`

	OutputPath string      `gorm:"size:1024" json:"output_path"`
	FileSize   int64       `json:"file_size"`
	Status     AssetStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
}

// TableName returns the table name for ClipAsset.
func (ClipAsset) TableName() string {
	return "clip_assets"
}

// Validate performs basic validation on the asset.
func (a *ClipAsset) Validate() error {
	if a.ClipID.IsZero() {
		return ErrValidation{Field: "clip_id", Message: "must not be empty"}
	}
	if !a.Variant.Valid() {
		return ErrValidation{Field: "variant", Message: "unknown variant " + string(a.Variant)}
	}
	if !ValidAspectRatio(a.AspectRatio) {
		return ErrValidation{Field: "aspect_ratio", Message: "unknown aspect ratio " + a.AspectRatio}
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the asset.
func (a *ClipAsset) BeforeCreate(tx *gorm.DB) error {
	if err := a.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if a.Status == "" {
		a.Status = AssetStatusPending
	}
	return a.Validate()
}
