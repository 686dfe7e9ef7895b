package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/pipeline"
)

// Hash returns a deterministic hex SHA-256 for test fixtures.
func Hash(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// SampleEpisode returns a discovered episode ready for registration.
func SampleEpisode(id, hashSeed string) *models.Episode {
	return &models.Episode{
		ID:           id,
		ContentHash:  Hash(hashSeed),
		SourcePath:   "library/" + id + ".mp4",
		FileSize:     5 * 1024 * 1024,
		LastModified: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		Stage:        models.StageDiscovered,
	}
}

// SampleTranscription returns a short transcript with word timings.
func SampleTranscription() *models.Transcription {
	return &models.Transcription{
		Text:     "welcome back to the show today we talk about pipelines",
		Language: "en",
		Words: []models.WordTiming{
			{StartMs: 0, EndMs: 400, Token: "welcome"},
			{StartMs: 400, EndMs: 700, Token: "back"},
			{StartMs: 700, EndMs: 900, Token: "to"},
			{StartMs: 900, EndMs: 1100, Token: "the"},
			{StartMs: 1100, EndMs: 1500, Token: "show"},
			{StartMs: 3200, EndMs: 3600, Token: "today"},
			{StartMs: 3600, EndMs: 3800, Token: "we"},
			{StartMs: 3800, EndMs: 4200, Token: "talk"},
			{StartMs: 4200, EndMs: 4500, Token: "about"},
			{StartMs: 4500, EndMs: 5200, Token: "pipelines"},
		},
		Confidence: 0.94,
	}
}

// SampleEnrichment returns enrichment output carrying the identity
// fields the rename path needs.
func SampleEnrichment() *models.Enrichment {
	return &models.Enrichment{
		ShowName:      "Tech Talk",
		HostName:      "Jordan Reyes",
		EpisodeNumber: 1,
		AirDate:       "2026-01-05",
		Summary:       "A conversation about media pipelines.",
		Takeaways:     []string{"hash everything", "never block the request path"},
		Topics:        []string{"pipelines", "media"},
		Tags:          []string{"tech"},
		People:        []models.ScoredPerson{{Name: "Jordan Reyes", Score: 0.99}},
	}
}

// SampleCandidates returns two scored clip candidates.
func SampleCandidates() []pipeline.ClipCandidate {
	return []pipeline.ClipCandidate{
		{StartMs: 0, EndMs: 30000, Score: 0.91, Title: "Cold open", Hashtags: []string{"#tech"}},
		{StartMs: 60000, EndMs: 95000, Score: 0.72, Title: "Pipelines deep dive"},
	}
}
