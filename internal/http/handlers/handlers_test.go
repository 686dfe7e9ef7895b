package handlers

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clipforge/clipforge/internal/artifacts"
	"github.com/clipforge/clipforge/internal/dedup"
	"github.com/clipforge/clipforge/internal/discovery"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/naming"
	"github.com/clipforge/clipforge/internal/paths"
	"github.com/clipforge/clipforge/internal/pipeline"
	"github.com/clipforge/clipforge/internal/queue"
	"github.com/clipforge/clipforge/internal/repository"
	"github.com/clipforge/clipforge/internal/testutil"
)

// env wires the full stack behind the handlers against an in-memory
// database and fake collaborators.
type env struct {
	db       *gorm.DB
	episodes repository.EpisodeRepository
	clips    repository.ClipRepository
	logs     repository.ProcessingLogRepository
	orch     *pipeline.Orchestrator
	queue    *queue.JobQueue
	scanner  *discovery.Scanner
	cleanup  *artifacts.CleanupManager
	root     string

	transcriber *testutil.FakeTranscriber
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Episode{}, &models.Clip{}, &models.ClipAsset{}, &models.ProcessingLog{}))

	root := t.TempDir()
	library := filepath.Join(root, "library")
	require.NoError(t, os.MkdirAll(library, 0o755))
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	episodes := repository.NewEpisodeRepository(db)
	clips := repository.NewClipRepository(db)
	logs := repository.NewProcessingLogRepository(db)

	namer := naming.NewService(map[string]string{"Tech Talk": "tech-talk"})
	store := artifacts.NewStore(namer, filepath.Join(root, "outputs"), filepath.Join(root, "transcripts"), log)
	cleanup := artifacts.NewCleanupManager(store, episodes, log)
	resolver := paths.NewResolver(root, nil, episodes)
	index := dedup.NewIndex(episodes, log)

	collab, _, transcriber, _, _, _, _ := testutil.Collaborators()
	runner := pipeline.NewRunner(episodes, clips, logs, store, resolver, collab, log)
	weights := pipeline.StageWeightsFromConfig(map[string]float64{"transcription": 1})
	orch := pipeline.NewOrchestrator(runner, episodes, clips, store, cleanup, namer, collab.Encoder, resolver, weights, log)

	q := queue.NewJobQueue(queue.Options{MaxWorkers: 1, Capacity: 2}, nil, log)
	queue.RegisterPipelineHandlers(q, orch)
	q.Start()
	t.Cleanup(q.Stop)

	scanner := discovery.NewScanner(library, discovery.Options{
		Extensions:  []string{".mp4"},
		MinFileSize: 1,
	}, episodes, index, namer, resolver, log)

	return &env{
		db:          db,
		episodes:    episodes,
		clips:       clips,
		logs:        logs,
		orch:        orch,
		queue:       q,
		scanner:     scanner,
		cleanup:     cleanup,
		root:        root,
		transcriber: transcriber,
	}
}

func (e *env) seedEpisode(t *testing.T, id string) *models.Episode {
	t.Helper()
	ep := testutil.SampleEpisode(id, id)
	source := filepath.Join(e.root, ep.SourcePath)
	require.NoError(t, os.MkdirAll(filepath.Dir(source), 0o755))
	require.NoError(t, os.WriteFile(source, []byte("video bytes"), 0o644))
	_, err := e.episodes.RegisterEpisode(context.Background(), ep)
	require.NoError(t, err)
	return ep
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var se huma.StatusError
	require.ErrorAs(t, err, &se)
	return se.GetStatus()
}

func TestEpisodeHandlerGetByID(t *testing.T) {
	e := newEnv(t)
	h := NewEpisodeHandler(e.episodes, e.logs, e.scanner, e.cleanup)
	ep := e.seedEpisode(t, "ep-one")

	out, err := h.GetByID(context.Background(), &GetEpisodeInput{ID: ep.ID})
	require.NoError(t, err)
	assert.Equal(t, ep.ID, out.Body.ID)

	_, err = h.GetByID(context.Background(), &GetEpisodeInput{ID: "missing"})
	assert.Equal(t, 404, statusOf(t, err))
}

func TestEpisodeHandlerList(t *testing.T) {
	e := newEnv(t)
	h := NewEpisodeHandler(e.episodes, e.logs, e.scanner, e.cleanup)
	e.seedEpisode(t, "ep-one")
	e.seedEpisode(t, "ep-two")

	out, err := h.List(context.Background(), &ListEpisodesInput{Limit: 50})
	require.NoError(t, err)
	assert.Len(t, out.Body.Episodes, 2)

	out, err = h.List(context.Background(), &ListEpisodesInput{Stage: "rendered", Limit: 50})
	require.NoError(t, err)
	assert.Empty(t, out.Body.Episodes)

	_, err = h.List(context.Background(), &ListEpisodesInput{Stage: "bogus", Limit: 50})
	assert.Equal(t, 400, statusOf(t, err))
}

func TestEpisodeHandlerDelete(t *testing.T) {
	e := newEnv(t)
	h := NewEpisodeHandler(e.episodes, e.logs, e.scanner, e.cleanup)
	ep := e.seedEpisode(t, "ep-one")

	_, err := h.Delete(context.Background(), &DeleteEpisodeInput{ID: ep.ID})
	require.NoError(t, err)

	_, err = e.episodes.GetByID(context.Background(), ep.ID)
	assert.ErrorIs(t, err, models.ErrEpisodeNotFound)

	_, err = h.Delete(context.Background(), &DeleteEpisodeInput{ID: ep.ID})
	assert.Equal(t, 404, statusOf(t, err))
}

func TestEpisodeHandlerDiscover(t *testing.T) {
	e := newEnv(t)
	h := NewEpisodeHandler(e.episodes, e.logs, e.scanner, e.cleanup)

	path := filepath.Join(e.root, "library", "fresh-upload.mp4")
	require.NoError(t, os.WriteFile(path, []byte("new video bytes"), 0o644))

	out, err := h.Discover(context.Background(), &DiscoverEpisodesInput{})
	require.NoError(t, err)
	assert.Len(t, out.Body.NewEpisodes, 1)

	out, err = h.Discover(context.Background(), &DiscoverEpisodesInput{})
	require.NoError(t, err)
	assert.Empty(t, out.Body.NewEpisodes)
	assert.Equal(t, 1, out.Body.Known)
}

func TestEpisodeHandlerGetLog(t *testing.T) {
	e := newEnv(t)
	h := NewEpisodeHandler(e.episodes, e.logs, e.scanner, e.cleanup)
	ep := e.seedEpisode(t, "ep-one")

	require.NoError(t, e.logs.Append(context.Background(), &models.ProcessingLog{
		EpisodeID: ep.ID,
		Stage:     models.StageTranscribed,
		Event:     models.LogEventStarted,
	}))

	out, err := h.GetLog(context.Background(), &GetEpisodeLogInput{ID: ep.ID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, out.Body.Entries, 1)
	assert.Equal(t, models.LogEventStarted, out.Body.Entries[0].Event)

	_, err = h.GetLog(context.Background(), &GetEpisodeLogInput{ID: "missing", Limit: 10})
	assert.Equal(t, 404, statusOf(t, err))
}

func TestJobHandlerSubmitAndGet(t *testing.T) {
	e := newEnv(t)
	h := NewJobHandler(e.queue, e.episodes)
	ep := e.seedEpisode(t, "ep-one")

	in := &SubmitProcessJobInput{ID: ep.ID}
	in.Body.TargetStage = "transcribed"
	out, err := h.SubmitProcess(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, models.JobTypeProcessEpisode, out.Body.Type)
	assert.NotEmpty(t, out.Body.ID)

	got, err := h.GetByID(context.Background(), &GetJobInput{ID: out.Body.ID})
	require.NoError(t, err)
	assert.Equal(t, out.Body.ID, got.Body.ID)

	require.Eventually(t, func() bool {
		got, err := h.GetByID(context.Background(), &GetJobInput{ID: out.Body.ID})
		return err == nil && got.Body.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
}

func TestJobHandlerSubmitInvalidStage(t *testing.T) {
	e := newEnv(t)
	h := NewJobHandler(e.queue, e.episodes)

	in := &SubmitProcessJobInput{ID: "ep-one"}
	in.Body.TargetStage = "bogus"
	_, err := h.SubmitProcess(context.Background(), in)
	assert.Equal(t, 400, statusOf(t, err))
}

func TestJobHandlerSubmitUnknownEpisode(t *testing.T) {
	e := newEnv(t)
	h := NewJobHandler(e.queue, e.episodes)

	in := &SubmitProcessJobInput{ID: "never-registered"}
	_, err := h.SubmitProcess(context.Background(), in)
	assert.Equal(t, 404, statusOf(t, err))

	// Nothing was queued for the unknown episode.
	stats := e.queue.Stats()
	assert.Zero(t, stats.Queued)
	assert.Zero(t, stats.Running)
}

func TestJobHandlerConflict(t *testing.T) {
	e := newEnv(t)
	h := NewJobHandler(e.queue, e.episodes)
	ep := e.seedEpisode(t, "ep-one")

	// Hold the worker so the first job stays running.
	e.transcriber.Block = make(chan struct{})
	defer close(e.transcriber.Block)

	first := &SubmitProcessJobInput{ID: ep.ID}
	_, err := h.SubmitProcess(context.Background(), first)
	require.NoError(t, err)

	second := &SubmitProcessJobInput{ID: ep.ID}
	_, err = h.SubmitProcess(context.Background(), second)
	assert.Equal(t, 409, statusOf(t, err))
}

func TestJobHandlerGetMissing(t *testing.T) {
	e := newEnv(t)
	h := NewJobHandler(e.queue, e.episodes)

	_, err := h.GetByID(context.Background(), &GetJobInput{ID: "nope"})
	assert.Equal(t, 404, statusOf(t, err))
}

func TestJobHandlerCancel(t *testing.T) {
	e := newEnv(t)
	h := NewJobHandler(e.queue, e.episodes)
	ep := e.seedEpisode(t, "ep-one")

	e.transcriber.Block = make(chan struct{})
	in := &SubmitProcessJobInput{ID: ep.ID}
	out, err := h.SubmitProcess(context.Background(), in)
	require.NoError(t, err)

	_, err = h.Cancel(context.Background(), &CancelJobInput{ID: out.Body.ID})
	require.NoError(t, err)
	close(e.transcriber.Block)

	require.Eventually(t, func() bool {
		got, err := h.GetByID(context.Background(), &GetJobInput{ID: out.Body.ID})
		return err == nil && got.Body.Status == models.JobStatusCancelled
	}, 5*time.Second, 10*time.Millisecond)

	// Cancelling a cancelled job stays a no-op.
	_, err = h.Cancel(context.Background(), &CancelJobInput{ID: out.Body.ID})
	assert.NoError(t, err)
}

func TestJobHandlerStats(t *testing.T) {
	e := newEnv(t)
	h := NewJobHandler(e.queue, e.episodes)

	out, err := h.GetStats(context.Background(), &GetQueueStatsInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Body.MaxWorkers)
	assert.Equal(t, 2, out.Body.Capacity)
}

func TestClipHandlerDiscoverAndList(t *testing.T) {
	e := newEnv(t)
	h := NewClipHandler(e.clips, e.episodes, e.orch, e.queue)
	ep := e.seedEpisode(t, "ep-one")

	// Discovery needs a transcript first.
	_, err := h.Discover(context.Background(), &DiscoverClipsInput{ID: ep.ID})
	assert.Equal(t, 409, statusOf(t, err))

	ep.Transcription = testutil.SampleTranscription()
	ep.Stage = models.StageTranscribed
	require.NoError(t, e.episodes.Update(context.Background(), ep))

	in := &DiscoverClipsInput{ID: ep.ID}
	in.Body.MaxClips = 5
	out, err := h.Discover(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, out.Body.Clips, 2)

	list, err := h.List(context.Background(), &ListClipsInput{ID: ep.ID})
	require.NoError(t, err)
	assert.Len(t, list.Body.Clips, 2)

	_, err = h.List(context.Background(), &ListClipsInput{ID: "missing"})
	assert.Equal(t, 404, statusOf(t, err))
}

func TestClipHandlerSubmitRender(t *testing.T) {
	e := newEnv(t)
	h := NewClipHandler(e.clips, e.episodes, e.orch, e.queue)
	ep := e.seedEpisode(t, "ep-one")

	in := &SubmitRenderClipsInput{ID: ep.ID}
	in.Body.Variants = []string{"clean"}
	in.Body.AspectRatios = []string{"9:16"}
	out, err := h.SubmitRender(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, models.JobTypeRenderClips, out.Body.Type)

	bad := &SubmitRenderClipsInput{ID: ep.ID}
	bad.Body.Variants = []string{"sepia"}
	_, err = h.SubmitRender(context.Background(), bad)
	assert.Equal(t, 400, statusOf(t, err))

	bad = &SubmitRenderClipsInput{ID: ep.ID}
	bad.Body.AspectRatios = []string{"4:3"}
	_, err = h.SubmitRender(context.Background(), bad)
	assert.Equal(t, 400, statusOf(t, err))

	missing := &SubmitRenderClipsInput{ID: "never-registered"}
	_, err = h.SubmitRender(context.Background(), missing)
	assert.Equal(t, 404, statusOf(t, err))
}

func TestHealthHandler(t *testing.T) {
	e := newEnv(t)
	h := NewHealthHandler("1.0.0").WithQueue(e.queue).WithDB(e.db)

	out, err := h.GetHealth(context.Background(), &HealthInput{})
	require.NoError(t, err)
	assert.Equal(t, "healthy", out.Body.Status)
	assert.Equal(t, "1.0.0", out.Body.Version)
	assert.Equal(t, "ok", out.Body.Database)
	assert.Equal(t, 2, out.Body.QueueSize)
}

func TestHealthHandlerWithoutDB(t *testing.T) {
	h := NewHealthHandler("1.0.0")

	out, err := h.GetHealth(context.Background(), &HealthInput{})
	require.NoError(t, err)
	assert.Equal(t, "unknown", out.Body.Database)
}
