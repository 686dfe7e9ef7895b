package artifacts

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/naming"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	namer := naming.NewService(map[string]string{"Tech Talk": "tech-talk"})
	store := NewStore(namer, filepath.Join(root, "outputs"), filepath.Join(root, "transcripts"),
		slog.New(slog.NewTextHandler(os.Stderr, nil)))
	return store, root
}

func testEpisode() *models.Episode {
	return &models.Episode{
		ID: "tech-talk_ep001_2026-01-05",
		Metadata: models.EpisodeMetadata{
			ShowName: "Tech Talk",
			AirDate:  "2026-01-05",
		},
	}
}

func TestPathsFor(t *testing.T) {
	store, root := newTestStore(t)
	p := store.PathsFor(testEpisode())

	episodeRoot := filepath.Join(root, "outputs", "tech-talk", "2026", "tech-talk_ep001_2026-01-05")
	assert.Equal(t, episodeRoot, p.Root)
	assert.Equal(t, filepath.Join(episodeRoot, "html"), p.HTML)
	assert.Equal(t, filepath.Join(episodeRoot, "clips"), p.Clips)
	assert.Equal(t, filepath.Join(episodeRoot, "social"), p.Social)
	assert.Equal(t,
		filepath.Join(root, "transcripts", "json", "tech-talk_ep001_2026-01-05.json"),
		p.Transcripts["json"])
	assert.Equal(t,
		filepath.Join(root, "transcripts", "vtt", "tech-talk_ep001_2026-01-05.vtt"),
		p.Transcripts["vtt"])
}

func TestPathsForUncategorized(t *testing.T) {
	store, root := newTestStore(t)
	ep := &models.Episode{ID: "mystery_1742000000"}

	p := store.PathsFor(ep)
	assert.Equal(t, filepath.Join(root, "outputs", "_uncategorized", "mystery_1742000000"), p.Root)
}

func TestClipAssetPath(t *testing.T) {
	store, _ := newTestStore(t)
	p := store.PathsFor(testEpisode())

	got := p.ClipAssetPath("01JB0000000000000000000000", "9:16", models.VariantSubtitled)
	assert.Equal(t, filepath.Join(p.Clips, "01JB0000000000000000000000", "9x16_subtitled.mp4"), got)
}

func TestWriteFileAtomic(t *testing.T) {
	store, root := newTestStore(t)
	target := filepath.Join(root, "outputs", "deep", "nested", "index.html")

	require.NoError(t, store.WriteFile(target, []byte("<html>v1</html>")))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "<html>v1</html>", string(data))

	// Overwrite replaces content and leaves no temp files behind.
	require.NoError(t, store.WriteFile(target, []byte("<html>v2</html>")))
	data, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "<html>v2</html>", string(data))

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRelocateEpisode(t *testing.T) {
	store, _ := newTestStore(t)
	ep := testEpisode()
	provisional := "techtalk-episode-1_1742000000"

	before := *ep
	before.ID = provisional
	old := store.PathsFor(&before)
	require.NoError(t, store.WriteFile(filepath.Join(old.HTML, "index.html"), []byte("x")))
	require.NoError(t, store.WriteFile(old.Transcripts["txt"], []byte("transcript")))
	require.NoError(t, store.WriteFile(old.Transcripts["vtt"], []byte("WEBVTT")))

	store.RelocateEpisode(ep, provisional)

	p := store.PathsFor(ep)
	assert.FileExists(t, filepath.Join(p.HTML, "index.html"))
	assert.FileExists(t, p.Transcripts["txt"])
	assert.FileExists(t, p.Transcripts["vtt"])
	assert.NoDirExists(t, old.Root)
	assert.NoFileExists(t, old.Transcripts["txt"])

	// Renaming onto itself or from a never-written ID is a no-op.
	store.RelocateEpisode(ep, ep.ID)
	store.RelocateEpisode(ep, "never-written_123")
	assert.FileExists(t, p.Transcripts["txt"])
}

func TestCleanupEpisode(t *testing.T) {
	store, _ := newTestStore(t)
	ep := testEpisode()
	p := store.PathsFor(ep)

	require.NoError(t, store.WriteFile(filepath.Join(p.HTML, "index.html"), []byte("x")))
	require.NoError(t, store.WriteFile(filepath.Join(p.Clips, "c1", "9x16_clean.mp4"), []byte("x")))
	require.NoError(t, store.WriteFile(p.Transcripts["json"], []byte("x")))

	store.CleanupEpisode(ep, true)

	assert.NoDirExists(t, p.Root)
	assert.FileExists(t, p.Transcripts["json"])

	store.CleanupEpisode(ep, false)
	assert.NoFileExists(t, p.Transcripts["json"])
}

func TestCleanupFrom(t *testing.T) {
	store, _ := newTestStore(t)
	ep := testEpisode()
	p := store.PathsFor(ep)

	seed := func() {
		require.NoError(t, store.WriteFile(filepath.Join(p.HTML, "index.html"), []byte("x")))
		require.NoError(t, store.WriteFile(filepath.Join(p.Clips, "c1", "9x16_clean.mp4"), []byte("x")))
		require.NoError(t, store.WriteFile(filepath.Join(p.Social, "youtube", "c1.mp4"), []byte("x")))
		require.NoError(t, store.WriteFile(p.Transcripts["txt"], []byte("x")))
	}

	seed()
	store.CleanupFrom(ep, models.StageRendered)
	assert.NoDirExists(t, p.HTML)
	assert.NoDirExists(t, p.Clips)
	assert.NoDirExists(t, p.Social)
	assert.FileExists(t, p.Transcripts["txt"], "transcripts predate the rendered stage")

	seed()
	store.CleanupFrom(ep, models.StageTranscribed)
	assert.NoFileExists(t, p.Transcripts["txt"])
	assert.NoDirExists(t, p.HTML)

	seed()
	store.CleanupFrom(ep, models.StageClipsDiscovered)
	assert.NoDirExists(t, p.Clips)
	assert.NoDirExists(t, p.Social)
	assert.FileExists(t, filepath.Join(p.HTML, "index.html"))
}

func TestCleanupMissingTreeIsSilentSuccess(t *testing.T) {
	store, _ := newTestStore(t)
	// Nothing written; cleanup of absent trees must not panic or error.
	store.CleanupEpisode(testEpisode(), false)
}
