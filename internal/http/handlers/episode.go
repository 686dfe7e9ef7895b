package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipforge/clipforge/internal/artifacts"
	"github.com/clipforge/clipforge/internal/discovery"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/repository"
)

// EpisodeHandler handles episode registry API endpoints.
type EpisodeHandler struct {
	episodes repository.EpisodeRepository
	logs     repository.ProcessingLogRepository
	scanner  *discovery.Scanner
	cleanup  *artifacts.CleanupManager
}

// NewEpisodeHandler creates a new episode handler.
func NewEpisodeHandler(
	episodes repository.EpisodeRepository,
	logs repository.ProcessingLogRepository,
	scanner *discovery.Scanner,
	cleanup *artifacts.CleanupManager,
) *EpisodeHandler {
	return &EpisodeHandler{
		episodes: episodes,
		logs:     logs,
		scanner:  scanner,
		cleanup:  cleanup,
	}
}

// Register registers the episode routes with the API.
func (h *EpisodeHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "discoverEpisodes",
		Method:      "POST",
		Path:        "/api/v1/episodes/discover",
		Summary:     "Discover episodes",
		Description: "Scans the library for new source files and registers them",
		Tags:        []string{"Episodes"},
	}, h.Discover)

	huma.Register(api, huma.Operation{
		OperationID: "listEpisodes",
		Method:      "GET",
		Path:        "/api/v1/episodes",
		Summary:     "List episodes",
		Description: "Returns episodes, optionally filtered by stage or show",
		Tags:        []string{"Episodes"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getEpisode",
		Method:      "GET",
		Path:        "/api/v1/episodes/{id}",
		Summary:     "Get episode",
		Description: "Returns an episode by ID",
		Tags:        []string{"Episodes"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID:   "deleteEpisode",
		Method:        "DELETE",
		Path:          "/api/v1/episodes/{id}",
		Summary:       "Delete episode",
		Description:   "Deletes an episode, its clips, and all on-disk artifacts",
		Tags:          []string{"Episodes"},
		DefaultStatus: http.StatusNoContent,
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "getEpisodeLog",
		Method:      "GET",
		Path:        "/api/v1/episodes/{id}/log",
		Summary:     "Get episode processing log",
		Description: "Returns the per-stage audit trail for an episode, newest first",
		Tags:        []string{"Episodes"},
	}, h.GetLog)
}

// DiscoverEpisodesInput is the input for triggering a library scan.
type DiscoverEpisodesInput struct{}

// DiscoverEpisodesOutput is the output for triggering a library scan.
type DiscoverEpisodesOutput struct {
	Body struct {
		NewEpisodes []*models.Episode `json:"new_episodes"`
		Moved       int               `json:"moved"`
		Known       int               `json:"known"`
		Skipped     int               `json:"skipped"`
	}
}

// Discover runs a library scan synchronously and returns the result.
func (h *EpisodeHandler) Discover(ctx context.Context, input *DiscoverEpisodesInput) (*DiscoverEpisodesOutput, error) {
	result, err := h.scanner.Scan(ctx)
	if err != nil {
		return nil, domainError("library scan failed", err)
	}

	resp := &DiscoverEpisodesOutput{}
	resp.Body.NewEpisodes = result.NewEpisodes
	if resp.Body.NewEpisodes == nil {
		resp.Body.NewEpisodes = []*models.Episode{}
	}
	resp.Body.Moved = result.Moved
	resp.Body.Known = result.Known
	resp.Body.Skipped = result.Skipped
	return resp, nil
}

// ListEpisodesInput is the input for listing episodes.
type ListEpisodesInput struct {
	Stage  string `query:"stage" doc:"Filter by processing stage" enum:"discovered,prepared,transcribed,enriched,rendered,clips_discovered,"`
	Show   string `query:"show" doc:"Filter by canonical show folder name"`
	Limit  int    `query:"limit" default:"50" minimum:"1" maximum:"1000" doc:"Maximum number of episodes to return"`
	Offset int    `query:"offset" default:"0" minimum:"0" doc:"Offset for pagination"`
}

// ListEpisodesOutput is the output for listing episodes.
type ListEpisodesOutput struct {
	Body struct {
		Episodes []*models.Episode `json:"episodes"`
	}
}

// List returns episodes matching the filter.
func (h *EpisodeHandler) List(ctx context.Context, input *ListEpisodesInput) (*ListEpisodesOutput, error) {
	filter := repository.EpisodeFilter{
		Show:   input.Show,
		Limit:  input.Limit,
		Offset: input.Offset,
	}
	if input.Stage != "" {
		stage, err := models.ParseStage(input.Stage)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid stage", err)
		}
		filter.Stage = stage
	}

	episodes, err := h.episodes.List(ctx, filter)
	if err != nil {
		return nil, domainError("failed to list episodes", err)
	}

	resp := &ListEpisodesOutput{}
	resp.Body.Episodes = episodes
	if resp.Body.Episodes == nil {
		resp.Body.Episodes = []*models.Episode{}
	}
	return resp, nil
}

// GetEpisodeInput is the input for getting an episode.
type GetEpisodeInput struct {
	ID string `path:"id" doc:"Canonical episode ID"`
}

// GetEpisodeOutput is the output for getting an episode.
type GetEpisodeOutput struct {
	Body models.Episode
}

// GetByID returns an episode by ID.
func (h *EpisodeHandler) GetByID(ctx context.Context, input *GetEpisodeInput) (*GetEpisodeOutput, error) {
	episode, err := h.episodes.GetByID(ctx, input.ID)
	if err != nil {
		return nil, domainError(fmt.Sprintf("episode %s", input.ID), err)
	}

	return &GetEpisodeOutput{Body: *episode}, nil
}

// DeleteEpisodeInput is the input for deleting an episode.
type DeleteEpisodeInput struct {
	ID string `path:"id" doc:"Canonical episode ID"`
}

// DeleteEpisodeOutput is the output for deleting an episode.
type DeleteEpisodeOutput struct{}

// Delete deletes an episode together with its artifacts.
func (h *EpisodeHandler) Delete(ctx context.Context, input *DeleteEpisodeInput) (*DeleteEpisodeOutput, error) {
	episode, err := h.episodes.GetByID(ctx, input.ID)
	if err != nil {
		return nil, domainError(fmt.Sprintf("episode %s", input.ID), err)
	}

	if err := h.cleanup.DeleteEpisode(ctx, episode); err != nil {
		return nil, domainError("failed to delete episode", err)
	}

	return &DeleteEpisodeOutput{}, nil
}

// GetEpisodeLogInput is the input for reading the processing log.
type GetEpisodeLogInput struct {
	ID    string `path:"id" doc:"Canonical episode ID"`
	Limit int    `query:"limit" default:"100" minimum:"1" maximum:"1000" doc:"Maximum number of log rows to return"`
}

// GetEpisodeLogOutput is the output for reading the processing log.
type GetEpisodeLogOutput struct {
	Body struct {
		Entries []*models.ProcessingLog `json:"entries"`
	}
}

// GetLog returns the processing log for an episode.
func (h *EpisodeHandler) GetLog(ctx context.Context, input *GetEpisodeLogInput) (*GetEpisodeLogOutput, error) {
	if _, err := h.episodes.GetByID(ctx, input.ID); err != nil {
		return nil, domainError(fmt.Sprintf("episode %s", input.ID), err)
	}

	entries, err := h.logs.ListByEpisode(ctx, input.ID, input.Limit)
	if err != nil {
		return nil, domainError("failed to read processing log", err)
	}

	resp := &GetEpisodeLogOutput{}
	resp.Body.Entries = entries
	if resp.Body.Entries == nil {
		resp.Body.Entries = []*models.ProcessingLog{}
	}
	return resp, nil
}
