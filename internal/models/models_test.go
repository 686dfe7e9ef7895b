package models

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStage(t *testing.T) {
	for _, s := range Stages() {
		t.Run(string(s), func(t *testing.T) {
			parsed, err := ParseStage(string(s))
			require.NoError(t, err)
			assert.Equal(t, s, parsed)
		})
	}

	_, err := ParseStage("mastered")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownStage)
	assert.Contains(t, err.Error(), "mastered")
}

func TestStage_Ordering(t *testing.T) {
	assert.True(t, StageDiscovered.Before(StageTranscribed))
	assert.True(t, StageRendered.AtLeast(StageEnriched))
	assert.True(t, StageEnriched.AtLeast(StageEnriched))
	assert.False(t, StagePrepared.AtLeast(StageTranscribed))
	assert.False(t, Stage("bogus").Before(StageRendered))
	assert.Equal(t, -1, Stage("bogus").Index())
}

func TestParseJobType(t *testing.T) {
	for _, jt := range []JobType{JobTypeProcessEpisode, JobTypeRenderClips, JobTypeDiscoverClips} {
		parsed, err := ParseJobType(string(jt))
		require.NoError(t, err)
		assert.Equal(t, jt, parsed)
	}

	_, err := ParseJobType("reticulate_splines")
	assert.ErrorIs(t, err, ErrUnknownJobType)
}

func TestJob_Lifecycle(t *testing.T) {
	job := NewJob(JobTypeProcessEpisode, JobParams{EpisodeID: "ep-1"})
	require.NotEmpty(t, job.ID)
	assert.Equal(t, JobStatusQueued, job.Status)
	assert.False(t, job.Terminal())
	assert.Nil(t, job.StartedAt)

	job.MarkRunning()
	assert.Equal(t, JobStatusRunning, job.Status)
	require.NotNil(t, job.StartedAt)
	assert.False(t, job.Terminal())

	job.MarkCompleted(map[string]any{"clips": 3})
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.True(t, job.Terminal())
	assert.Equal(t, float64(100), job.Progress)
	assert.Empty(t, job.Error)
	require.NotNil(t, job.CompletedAt)
}

func TestJob_MarkFailed(t *testing.T) {
	job := NewJob(JobTypeRenderClips, JobParams{EpisodeID: "ep-1"})
	job.MarkRunning()
	job.MarkFailed(errors.New("encoder exploded"))

	assert.Equal(t, JobStatusFailed, job.Status)
	assert.True(t, job.Terminal())
	assert.Equal(t, "encoder exploded", job.Error)
}

func TestJob_Clone(t *testing.T) {
	job := NewJob(JobTypeRenderClips, JobParams{
		EpisodeID: "ep-1",
		ClipIDs:   []string{"a", "b"},
		Variants:  []AssetVariant{VariantClean},
	})
	job.MarkCompleted(map[string]any{"rendered": 2})

	cp := job.Clone()
	cp.Result["rendered"] = 99
	cp.Params.ClipIDs[0] = "mutated"

	assert.Equal(t, 2, job.Result["rendered"])
	assert.Equal(t, "a", job.Params.ClipIDs[0])
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobStatusQueued.Terminal())
	assert.False(t, JobStatusRunning.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.True(t, JobStatusCancelled.Terminal())
}

func TestEpisode_Validate(t *testing.T) {
	valid := func() *Episode {
		return &Episode{
			ID:          "tech-talk-2025-001",
			ContentHash: strings.Repeat("a", 64),
			SourcePath:  "library/tech-talk/ep1.mp4",
			Stage:       StageDiscovered,
		}
	}

	assert.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		modify func(*Episode)
		field  string
	}{
		{"empty id", func(e *Episode) { e.ID = "" }, "episode_id"},
		{"short hash", func(e *Episode) { e.ContentHash = "abc" }, "content_hash"},
		{"empty source", func(e *Episode) { e.SourcePath = "" }, "source_path"},
		{"bad stage", func(e *Episode) { e.Stage = "bogus" }, "stage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid()
			tt.modify(e)
			err := e.Validate()
			require.Error(t, err)

			var verr ErrValidation
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestEpisode_HasOutput(t *testing.T) {
	e := &Episode{
		ContentHash: strings.Repeat("a", 64),
		Stage:       StageDiscovered,
	}

	assert.True(t, e.HasOutput(StageDiscovered))
	assert.False(t, e.HasOutput(StagePrepared))
	assert.False(t, e.HasOutput(StageTranscribed))

	e.DurationSeconds = 3600
	e.Transcription = &Transcription{Text: "hello world"}
	assert.True(t, e.HasOutput(StagePrepared))
	assert.True(t, e.HasOutput(StageTranscribed))

	assert.False(t, e.HasOutput(StageRendered))
	e.Stage = StageRendered
	assert.True(t, e.HasOutput(StageRendered))
}

func TestEpisode_AdvanceStage(t *testing.T) {
	e := &Episode{Stage: StageTranscribed}

	e.AdvanceStage(StageEnriched)
	assert.Equal(t, StageEnriched, e.Stage)

	// Never regresses
	e.AdvanceStage(StageDiscovered)
	assert.Equal(t, StageEnriched, e.Stage)
}

func TestEpisode_ShowFolderYear(t *testing.T) {
	e := &Episode{CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, 2024, e.ShowFolderYear())

	e.Metadata.AirDate = "2023-11-15"
	assert.Equal(t, 2023, e.ShowFolderYear())

	e.Metadata.AirDate = "not a date"
	assert.Equal(t, 2024, e.ShowFolderYear())
}

func TestClip_Validate(t *testing.T) {
	c := &Clip{EpisodeID: "ep-1", StartMs: 1000, EndMs: 5000}
	assert.NoError(t, c.Validate())

	c.EndMs = 1000
	err := c.Validate()
	require.Error(t, err)
	var verr ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "end_ms", verr.Field)

	c = &Clip{StartMs: 0, EndMs: 1000}
	err = c.Validate()
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "episode_id", verr.Field)
}

func TestAssetVariant_Valid(t *testing.T) {
	for _, v := range AssetVariants() {
		assert.True(t, v.Valid(), string(v))
	}
	assert.False(t, AssetVariant("sepia").Valid())
}

func TestValidAspectRatio(t *testing.T) {
	for _, ar := range AspectRatios() {
		assert.True(t, ValidAspectRatio(ar), ar)
	}
	assert.False(t, ValidAspectRatio("4:3"))
}

func TestClipAsset_Validate(t *testing.T) {
	a := &ClipAsset{
		ClipID:      NewULID(),
		Variant:     VariantSubtitled,
		AspectRatio: "9:16",
	}
	assert.NoError(t, a.Validate())

	a.Variant = "sepia"
	err := a.Validate()
	var verr ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "variant", verr.Field)

	a.Variant = VariantClean
	a.AspectRatio = "4:3"
	err = a.Validate()
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "aspect_ratio", verr.Field)
}

func TestULID_RoundTrip(t *testing.T) {
	id := NewULID()
	require.False(t, id.IsZero())

	parsed, err := ParseULID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseULID("not-a-ulid")
	assert.Error(t, err)
}

func TestNewULID_Ordering(t *testing.T) {
	// IDs minted back to back land in the same millisecond; they must
	// still sort in creation order.
	prev := NewULID().String()
	for i := 0; i < 1000; i++ {
		next := NewULID().String()
		require.Greater(t, next, prev)
		prev = next
	}
}

func TestULID_ScanValue(t *testing.T) {
	id := NewULID()

	v, err := id.Value()
	require.NoError(t, err)
	assert.Equal(t, id.String(), v)

	var scanned ULID
	require.NoError(t, scanned.Scan(id.String()))
	assert.Equal(t, id, scanned)

	require.NoError(t, scanned.Scan(nil))
	assert.True(t, scanned.IsZero())

	var zero ULID
	v, err = zero.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}
