package data_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercekit/orderworker/internal/data"
	apperrors "github.com/commercekit/orderworker/internal/errors"
	"github.com/commercekit/orderworker/internal/domain/model"
	"github.com/commercekit/orderworker/internal/testutil"
)

func TestJobRepoCreate(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := data.NewJobRepo(db, data.RepoConfig{})
		orderID := testutil.SeedOrder(t, db, "u-100", 49.99)

		payload, err := json.Marshal(model.OrderReceiptPayload{UserID: "u-100", OrderID: orderID})
		require.NoError(t, err)

		jobID, err := repo.Create(ctx, orderID, model.JobTypeOrderReceipt, payload)
		require.NoError(t, err)
		require.NotZero(t, jobID)

		job, err := repo.Get(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, orderID, job.OrderID)
		assert.Equal(t, model.JobTypeOrderReceipt, job.Type)
		assert.Equal(t, model.JobStatusProcessing, job.Status)
		assert.JSONEq(t, string(payload), string(job.Payload))
		assert.Nil(t, job.Result)
		assert.Nil(t, job.ErrorMessage)
		assert.Nil(t, job.CompletedAt)
	})
}

func TestJobRepoCreateInvalidType(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := data.NewJobRepo(db, data.RepoConfig{})

		_, err := repo.Create(context.Background(), 1, model.JobType("bogus"), nil)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeValidation))
	})
}

func TestJobRepoCreateEmptyPayloadDefaults(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := data.NewJobRepo(db, data.RepoConfig{})
		orderID := testutil.SeedOrder(t, db, "u-101", 10)

		jobID, err := repo.Create(ctx, orderID, model.JobTypeInvoiceGenerate, nil)
		require.NoError(t, err)

		job, err := repo.Get(ctx, jobID)
		require.NoError(t, err)
		assert.JSONEq(t, `{}`, string(job.Payload))
	})
}

func TestJobRepoComplete(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		fixed := data.NewFixedTimeProvider(testutil.TestTime())
		repo := data.NewJobRepo(db, data.RepoConfig{TimeProvider: fixed})
		orderID := testutil.SeedOrder(t, db, "u-102", 25)

		jobID, err := repo.Create(ctx, orderID, model.JobTypeInvoiceGenerate, json.RawMessage(`{"order_id":1}`))
		require.NoError(t, err)

		result, err := json.Marshal(model.InvoiceGenerateResult{
			InvoiceGenerated: true,
			InvoiceID:        model.InvoiceID(orderID),
			Timestamp:        testutil.TestTime().Unix(),
		})
		require.NoError(t, err)
		require.NoError(t, repo.Complete(ctx, jobID, result))

		job, err := repo.Get(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, job.Status)
		assert.JSONEq(t, string(result), string(job.Result))
		require.NotNil(t, job.CompletedAt)
		assert.WithinDuration(t, testutil.TestTime(), *job.CompletedAt, time.Second)
		assert.Nil(t, job.ErrorMessage)
	})
}

func TestJobRepoCompleteOverwritesTerminalStatus(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := data.NewJobRepo(db, data.RepoConfig{})
		orderID := testutil.SeedOrder(t, db, "u-103", 5)

		jobID, err := repo.Create(ctx, orderID, model.JobTypeOrderReceipt, json.RawMessage(`{}`))
		require.NoError(t, err)

		require.NoError(t, repo.Fail(ctx, &jobID, "first attempt failed"))
		require.NoError(t, repo.Complete(ctx, jobID, json.RawMessage(`{"email_sent":true}`)))

		job, err := repo.Get(ctx, jobID)
		require.NoError(t, err)
		// No status guard on terminal writes; the later write wins.
		assert.Equal(t, model.JobStatusCompleted, job.Status)
	})
}

func TestJobRepoFail(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := data.NewJobRepo(db, data.RepoConfig{})
		orderID := testutil.SeedOrder(t, db, "u-104", 15)

		jobID, err := repo.Create(ctx, orderID, model.JobTypeOrderReceipt, json.RawMessage(`{}`))
		require.NoError(t, err)

		require.NoError(t, repo.Fail(ctx, &jobID, "smtp connect refused"))

		job, err := repo.Get(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, job.Status)
		require.NotNil(t, job.ErrorMessage)
		assert.Equal(t, "smtp connect refused", *job.ErrorMessage)
		assert.NotNil(t, job.CompletedAt)
	})
}

func TestJobRepoFailNilIDIsNoOp(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := data.NewJobRepo(db, data.RepoConfig{})
		require.NoError(t, repo.Fail(context.Background(), nil, "never recorded"))
	})
}

func TestJobRepoFailUnknownIDIsNoOp(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := data.NewJobRepo(db, data.RepoConfig{})
		require.NoError(t, repo.Fail(context.Background(), testutil.Int64Ptr(999999), "gone"))
	})
}

func TestJobRepoGetNotFound(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := data.NewJobRepo(db, data.RepoConfig{})

		_, err := repo.Get(context.Background(), 999999)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
	})
}

func TestJobRepoStats(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := data.NewJobRepo(db, data.RepoConfig{})
		orderID := testutil.SeedOrder(t, db, "u-105", 30)

		first, err := repo.Create(ctx, orderID, model.JobTypeOrderReceipt, json.RawMessage(`{}`))
		require.NoError(t, err)
		second, err := repo.Create(ctx, orderID, model.JobTypeInvoiceGenerate, json.RawMessage(`{}`))
		require.NoError(t, err)
		_, err = repo.Create(ctx, orderID, model.JobTypeOrderReceipt, json.RawMessage(`{}`))
		require.NoError(t, err)

		require.NoError(t, repo.Complete(ctx, first, json.RawMessage(`{}`)))
		require.NoError(t, repo.Fail(ctx, &second, "boom"))

		stats, err := repo.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Processing)
		assert.Equal(t, 1, stats.Completed)
		assert.Equal(t, 1, stats.Failed)
	})
}

func TestJobRepoListRecent(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := data.NewJobRepo(db, data.RepoConfig{})
		orderID := testutil.SeedOrder(t, db, "u-106", 12)

		var ids []int64
		for range 3 {
			id, err := repo.Create(ctx, orderID, model.JobTypeOrderReceipt, json.RawMessage(`{}`))
			require.NoError(t, err)
			ids = append(ids, id)
		}

		jobs, err := repo.ListRecent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		assert.Equal(t, ids[2], jobs[0].ID)
		assert.Equal(t, ids[1], jobs[1].ID)
	})
}

// The id lookup is scoped to the producer's (order_id, job_type). When no
// other producer shares the key, concurrent creation across distinct orders
// must hand every producer its own row back, never a row inserted for a
// different order.
func TestJobRepoCreateLookupScopedToOrderAndType(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := data.NewJobRepo(db, data.RepoConfig{})

		const producers = 8
		types := []model.JobType{model.JobTypeOrderReceipt, model.JobTypeInvoiceGenerate}

		type created struct {
			orderID int64
			jobType model.JobType
			jobID   int64
		}

		orderIDs := make([]int64, producers)
		for i := range producers {
			orderIDs[i] = testutil.SeedOrder(t, db, fmt.Sprintf("u-scope-%d", i), float64(i)+1)
		}

		var wg sync.WaitGroup
		createdCh := make(chan created, producers)
		errCh := make(chan error, producers)

		for i := range producers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				jobType := types[i%len(types)]
				id, err := repo.Create(ctx, orderIDs[i], jobType, json.RawMessage(`{}`))
				if err != nil {
					errCh <- err
					return
				}
				createdCh <- created{orderID: orderIDs[i], jobType: jobType, jobID: id}
			}()
		}
		wg.Wait()
		close(createdCh)
		close(errCh)

		for err := range errCh {
			require.NoError(t, err)
		}

		for c := range createdCh {
			job, err := repo.Get(ctx, c.jobID)
			require.NoError(t, err)
			assert.Equal(t, c.orderID, job.OrderID)
			assert.Equal(t, c.jobType, job.Type)
		}
	})
}

// Create reads the latest id in a second statement rather than RETURNING.
// Serialized producers always get their own row back; the test pins that
// baseline and documents the concurrent behavior without asserting which
// producer observes which id.
func TestJobRepoCreateIDRace(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := data.NewJobRepo(db, data.RepoConfig{})
		orderID := testutil.SeedOrder(t, db, "u-107", 99)

		const producers = 8
		var wg sync.WaitGroup
		idCh := make(chan int64, producers)
		errCh := make(chan error, producers)

		for range producers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id, err := repo.Create(ctx, orderID, model.JobTypeOrderReceipt, json.RawMessage(`{}`))
				if err != nil {
					errCh <- err
					return
				}
				idCh <- id
			}()
		}
		wg.Wait()
		close(idCh)
		close(errCh)

		for err := range errCh {
			require.NoError(t, err)
		}

		// Every returned id refers to a real row; duplicates are possible.
		for id := range idCh {
			_, err := repo.Get(ctx, id)
			require.NoError(t, err)
		}

		stats, err := repo.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, producers, stats.Processing)
	})
}
