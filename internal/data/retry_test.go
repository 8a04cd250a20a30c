package data

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/commercekit/orderworker/internal/errors"
)

func TestRetryStoreRetriesUnavailable(t *testing.T) {
	calls := 0
	err := retryStore(context.Background(), slog.Default(), "write", func() error {
		calls++
		if calls < 3 {
			return apperrors.StoreUnavailable("connection lost", errors.New("dial tcp: refused"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStoreGivesUpAfterBudget(t *testing.T) {
	calls := 0
	err := retryStore(context.Background(), slog.Default(), "write", func() error {
		calls++
		return apperrors.StoreUnavailable("connection lost", nil)
	})
	require.Error(t, err)
	assert.Equal(t, storeRetryAttempts, calls)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeStoreUnavailable))
}

func TestRetryStoreDoesNotRetryStatementErrors(t *testing.T) {
	calls := 0
	err := retryStore(context.Background(), slog.Default(), "write", func() error {
		calls++
		return apperrors.Statement("unique constraint violated", nil)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryStoreStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retryStore(ctx, slog.Default(), "write", func() error {
		calls++
		return apperrors.StoreUnavailable("connection lost", nil)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
