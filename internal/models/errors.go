package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Sentinel errors forming the error taxonomy of the pipeline core.
// The HTTP layer maps these onto status codes; nothing below the HTTP
// layer inspects status codes.
var (
	// ErrEpisodeNotFound indicates the requested episode does not exist.
	ErrEpisodeNotFound = errors.New("episode not found")

	// ErrJobNotFound indicates the requested job does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrClipNotFound indicates the requested clip does not exist.
	ErrClipNotFound = errors.New("clip not found")

	// ErrDuplicateHash indicates an episode with the same content hash
	// already exists. The existing episode is returned alongside.
	ErrDuplicateHash = errors.New("episode with identical content hash already registered")

	// ErrJobConflict indicates a non-terminal job already exists for the
	// same episode and job type.
	ErrJobConflict = errors.New("a non-terminal job already exists for this episode")

	// ErrRenameCollision indicates the target episode ID of a rename is taken.
	ErrRenameCollision = errors.New("target episode id already exists")

	// ErrLockTimeout indicates registry write retries were exhausted.
	ErrLockTimeout = errors.New("registry lock timeout")

	// ErrQueueFull indicates the job queue rejected a submission.
	ErrQueueFull = errors.New("job queue is full")

	// ErrJobTerminal indicates an operation targeted a job already in a
	// terminal state.
	ErrJobTerminal = errors.New("job is already in a terminal state")

	// ErrUnknownStage indicates an unrecognized stage name.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrUnknownJobType indicates an unrecognized job type.
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrSourceUnreadable indicates the source video file cannot be read.
	ErrSourceUnreadable = errors.New("source file is not readable")

	// ErrStageNotReached indicates an operation requires a stage the
	// episode has not reached yet.
	ErrStageNotReached = errors.New("episode has not reached the required stage")
)
