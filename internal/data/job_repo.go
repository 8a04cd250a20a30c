package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/commercekit/orderworker/internal/errors"
	"github.com/commercekit/orderworker/internal/data/pgxutil"
	"github.com/commercekit/orderworker/internal/domain/model"
)

// RepoConfig holds shared repository dependencies.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo records task execution attempts in the jobs table. Every statement
// runs on its own exclusive pooled connection, released on both the success
// and error paths.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a JobRepo backed by the given pool.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobRepo{DB: db, timeProvider: tp, logger: logger}
}

const jobColumns = `
  id,
  order_id,
  job_type,
  status,
  payload,
  result,
  error_message,
  completed_at,
  created_at
`

// Create inserts a job row with status=processing and returns the id of the
// most recently inserted row for the same (order_id, job_type). The insert
// and the id read are two separate statements on separately acquired
// connections; under concurrent creation for the same key the returned id
// can belong to another producer's row.
func (r *JobRepo) Create(
	ctx context.Context,
	orderID int64,
	jobType model.JobType,
	payload json.RawMessage,
) (int64, error) {
	if !jobType.Valid() {
		return 0, apperrors.Validation(fmt.Sprintf("invalid job type %q", jobType))
	}
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	insertErr := pgxutil.WithConn(ctx, r.DB, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO jobs (order_id, job_type, status, payload)
			VALUES ($1, $2, $3, $4)
		`, orderID, jobType, model.JobStatusProcessing, []byte(payload))
		return err
	})
	if insertErr != nil {
		return 0, apperrors.MapDBError(insertErr)
	}

	var id int64
	selectErr := pgxutil.WithConn(ctx, r.DB, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, `
			SELECT id FROM jobs
			WHERE order_id = $1 AND job_type = $2
			ORDER BY id DESC
			LIMIT 1
		`, orderID, jobType).Scan(&id)
	})
	if selectErr != nil {
		return 0, apperrors.MapDBError(selectErr)
	}

	return id, nil
}

// Complete marks the job completed and stores the result payload. The write
// is unconditional; if the row already carries a terminal status the last
// write wins.
func (r *JobRepo) Complete(ctx context.Context, id int64, result json.RawMessage) error {
	return retryStore(ctx, r.logger, "complete job", func() error {
		err := pgxutil.WithConn(ctx, r.DB, func(conn *sql.Conn) error {
			_, execErr := conn.ExecContext(ctx, `
				UPDATE jobs
				SET status = $2, result = $3, completed_at = $4
				WHERE id = $1
			`, id, model.JobStatusCompleted, []byte(result), r.timeProvider.Now().UTC())
			return execErr
		})
		if err != nil {
			return apperrors.MapDBError(err)
		}
		return nil
	})
}

// Fail marks the job failed and records the error message. A nil id is a
// no-op: failures can happen before a job row exists. An id that matches no
// row is also a no-op.
func (r *JobRepo) Fail(ctx context.Context, id *int64, message string) error {
	if id == nil {
		return nil
	}

	var affected int64
	err := retryStore(ctx, r.logger, "fail job", func() error {
		execErr := pgxutil.WithConn(ctx, r.DB, func(conn *sql.Conn) error {
			res, updateErr := conn.ExecContext(ctx, `
				UPDATE jobs
				SET status = $2, error_message = $3, completed_at = $4
				WHERE id = $1
			`, *id, model.JobStatusFailed, message, r.timeProvider.Now().UTC())
			if updateErr != nil {
				return updateErr
			}
			affected, updateErr = res.RowsAffected()
			return updateErr
		})
		if execErr != nil {
			return apperrors.MapDBError(execErr)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		r.logger.DebugContext(ctx, "fail skipped, job row not found", "job_id", *id)
	}
	return nil
}

// Get returns the job with the given id.
func (r *JobRepo) Get(ctx context.Context, id int64) (*model.Job, error) {
	var job *model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM jobs
			WHERE id = $1
		`, id)
		if queryErr != nil {
			return fmt.Errorf("query job: %w", queryErr)
		}
		defer rows.Close()

		collected, collectErr := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Job])
		if collectErr != nil {
			return collectErr
		}
		job = collected
		return nil
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return job, nil
}

// ListRecent returns the most recently created jobs, newest first.
func (r *JobRepo) ListRecent(ctx context.Context, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}

	var jobs []*model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM jobs
			ORDER BY created_at DESC, id DESC
			LIMIT $1
		`, limit)
		if queryErr != nil {
			return fmt.Errorf("query recent jobs: %w", queryErr)
		}
		defer rows.Close()

		collected, collectErr := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Job])
		if collectErr != nil {
			return fmt.Errorf("collect recent jobs: %w", collectErr)
		}
		jobs = collected
		return nil
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return jobs, nil
}

// Stats returns the count of jobs per status.
func (r *JobRepo) Stats(ctx context.Context) (*model.JobStats, error) {
	stats := &model.JobStats{}
	err := pgxutil.WithConn(ctx, r.DB, func(conn *sql.Conn) error {
		rows, queryErr := conn.QueryContext(ctx, `
			SELECT status, COUNT(*) FROM jobs GROUP BY status
		`)
		if queryErr != nil {
			return fmt.Errorf("query job stats: %w", queryErr)
		}
		defer rows.Close()

		for rows.Next() {
			var status model.JobStatus
			var count int
			if scanErr := rows.Scan(&status, &count); scanErr != nil {
				return fmt.Errorf("scan job stats: %w", scanErr)
			}
			switch status {
			case model.JobStatusProcessing:
				stats.Processing = count
			case model.JobStatusCompleted:
				stats.Completed = count
			case model.JobStatusFailed:
				stats.Failed = count
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return stats, nil
}
