package errors

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MapDBError maps database errors to AppError instances:
//   - connection-level failures (dial errors, dropped connections,
//     admin shutdown) → StoreUnavailable
//   - pgx.ErrNoRows → NotFound
//   - statement-level failures (constraint, syntax, data errors) → Statement
//   - context timeouts/cancellations → Timeout/Canceled
//
// Unrecognized errors are returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{Code: ErrCodeTimeout, Message: "database operation timed out", Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &AppError{Code: ErrCodeCanceled, Message: "database operation canceled", Cause: err}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &AppError{Code: ErrCodeNotFound, Message: "row not found", Cause: err}
	}
	if errors.Is(err, driver.ErrBadConn) {
		return StoreUnavailable("database connection is unusable", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return StoreUnavailable("database is unreachable", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}
	if pgconn.SafeToRetry(err) {
		// pgconn reports connect-phase errors as safe to retry.
		return StoreUnavailable("database connection failed", err)
	}

	return err
}

// mapPgError classifies server-reported errors. Connection exceptions mean
// the session is gone; everything else is a statement-level failure.
func mapPgError(pgErr *pgconn.PgError) error {
	switch {
	case pgerrcode.IsConnectionException(pgErr.Code),
		pgErr.Code == pgerrcode.AdminShutdown,
		pgErr.Code == pgerrcode.CrashShutdown,
		pgErr.Code == pgerrcode.CannotConnectNow,
		pgErr.Code == pgerrcode.TooManyConnections:
		return StoreUnavailable("database connection lost", pgErr)
	default:
		return Statement(statementMessage(pgErr), pgErr)
	}
}

func statementMessage(pgErr *pgconn.PgError) string {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return "unique constraint violated"
	case pgerrcode.ForeignKeyViolation:
		return "foreign key constraint violated"
	case pgerrcode.CheckViolation:
		return "check constraint violated"
	case pgerrcode.NotNullViolation:
		return "not-null constraint violated"
	default:
		return "statement failed"
	}
}
