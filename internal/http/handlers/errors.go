// Package handlers provides HTTP API handlers for clipforge.
package handlers

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipforge/clipforge/internal/models"
)

// domainError maps the pipeline error taxonomy onto HTTP status codes.
// Handlers call this for any error coming from below the HTTP layer.
func domainError(msg string, err error) error {
	var validation models.ErrValidation
	switch {
	case errors.Is(err, models.ErrEpisodeNotFound),
		errors.Is(err, models.ErrJobNotFound),
		errors.Is(err, models.ErrClipNotFound):
		return huma.Error404NotFound(msg, err)
	case errors.Is(err, models.ErrJobConflict),
		errors.Is(err, models.ErrDuplicateHash),
		errors.Is(err, models.ErrRenameCollision),
		errors.Is(err, models.ErrJobTerminal),
		errors.Is(err, models.ErrStageNotReached):
		return huma.Error409Conflict(msg, err)
	case errors.Is(err, models.ErrQueueFull):
		return huma.Error429TooManyRequests(msg, err)
	case errors.Is(err, models.ErrLockTimeout):
		return huma.Error503ServiceUnavailable(msg, err)
	case errors.As(err, &validation),
		errors.Is(err, models.ErrUnknownStage),
		errors.Is(err, models.ErrUnknownJobType):
		return huma.Error400BadRequest(msg, err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}
