package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/commercekit/orderworker/internal/errors"
	"github.com/commercekit/orderworker/internal/domain/model"
	"github.com/commercekit/orderworker/internal/testutil"
)

func TestResultStoreRoundTrip(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	t.Cleanup(func() { _ = client.Close() })

	store := NewResultStore(client, time.Hour)
	ctx := context.Background()
	id := uuid.NewString()

	want := &model.TaskResult{Status: model.JobStatusCompleted, OrderID: 42, JobID: 7}
	require.NoError(t, store.Store(ctx, id, want))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResultStoreOverwrite(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	t.Cleanup(func() { _ = client.Close() })

	store := NewResultStore(client, time.Hour)
	ctx := context.Background()
	id := uuid.NewString()

	require.NoError(t, store.Store(ctx, id, &model.TaskResult{Status: model.JobStatusFailed, OrderID: 1, JobID: 1}))
	require.NoError(t, store.Store(ctx, id, &model.TaskResult{Status: model.JobStatusCompleted, OrderID: 1, JobID: 2}))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Equal(t, int64(2), got.JobID)
}

func TestResultStoreMissing(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	t.Cleanup(func() { _ = client.Close() })

	store := NewResultStore(client, time.Hour)

	_, err := store.Get(context.Background(), uuid.NewString())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
}

func TestResultStoreTTLApplied(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	t.Cleanup(func() { _ = client.Close() })

	store := NewResultStore(client, time.Hour)
	ctx := context.Background()
	id := uuid.NewString()

	require.NoError(t, store.Store(ctx, id, &model.TaskResult{Status: model.JobStatusCompleted, OrderID: 5, JobID: 3}))

	ttl, err := client.TTL(ctx, resultKeyPrefix+id).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)
}
