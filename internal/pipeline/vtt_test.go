package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clipforge/clipforge/internal/models"
)

func TestBuildVTTGroupsWordsIntoCues(t *testing.T) {
	tr := &models.Transcription{
		Words: []models.WordTiming{
			{StartMs: 0, EndMs: 400, Token: "hello"},
			{StartMs: 400, EndMs: 800, Token: "there"},
			// Long silence forces a cue break.
			{StartMs: 5000, EndMs: 5400, Token: "again"},
		},
	}

	out := string(buildVTT(tr))
	assert.True(t, strings.HasPrefix(out, "WEBVTT\n"))
	assert.Contains(t, out, "00:00:00.000 --> 00:00:00.800\nhello there")
	assert.Contains(t, out, "00:00:05.000 --> 00:00:05.400\nagain")
}

func TestBuildVTTWithoutWordTimings(t *testing.T) {
	tr := &models.Transcription{Text: "just a plain transcript"}

	out := string(buildVTT(tr))
	assert.Contains(t, out, "just a plain transcript")
	assert.Contains(t, out, "-->")
}

func TestVTTTimestampFormatsHours(t *testing.T) {
	assert.Equal(t, "01:02:03.456", vttTimestamp(3723456))
}
