package data

import (
	"context"
	"log/slog"
	"time"

	apperrors "github.com/commercekit/orderworker/internal/errors"
)

const (
	storeRetryAttempts = 3
	storeRetryBaseWait = 100 * time.Millisecond
)

// retryStore runs op, retrying with linear backoff while the error maps to
// store_unavailable. Statement failures, not-found, and every other category
// return immediately: only a lost or exhausted connection is worth retrying.
func retryStore(ctx context.Context, logger *slog.Logger, name string, op func() error) error {
	var err error
	for attempt := range storeRetryAttempts {
		err = op()
		if err == nil || !apperrors.Is(err, apperrors.ErrCodeStoreUnavailable) {
			return err
		}
		if attempt == storeRetryAttempts-1 {
			break
		}

		wait := storeRetryBaseWait * time.Duration(attempt+1)
		logger.WarnContext(ctx, "store unavailable, retrying",
			"operation", name, "attempt", attempt+1, "wait", wait, "error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
