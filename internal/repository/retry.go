package repository

import (
	"context"
	"strings"
	"time"

	"github.com/clipforge/clipforge/internal/models"
)

// lockBackoff is the wait schedule between write attempts when the
// embedded store reports lock contention.
var lockBackoff = []time.Duration{
	500 * time.Millisecond,
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
}

// isBusyError reports whether the error is transient sqlite lock
// contention worth retrying.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

// withLockRetry runs fn, retrying on sqlite busy errors with
// exponential backoff. After the schedule is exhausted it surfaces
// models.ErrLockTimeout. Non-busy errors return immediately.
func withLockRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < len(lockBackoff); attempt++ {
		err = fn()
		if err == nil || !isBusyError(err) {
			return err
		}
		if attempt == len(lockBackoff)-1 {
			break
		}
		select {
		case <-time.After(lockBackoff[attempt]):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return models.ErrLockTimeout
}
