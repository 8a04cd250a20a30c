// Package pgxutil bridges the database/sql pool to pgx-native connections
// and provides transaction helpers.
package pgxutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// WithConn checks an exclusive connection out of the pool, runs fn with it,
// and returns the connection on both the success and error paths.
func WithConn(ctx context.Context, db *sql.DB, fn func(*sql.Conn) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()
	return fn(conn)
}

// WithPgxConn checks out an exclusive connection and exposes the underlying
// *pgx.Conn through the stdlib bridge, for code that wants pgx-native
// querying (CollectRows and friends).
func WithPgxConn(ctx context.Context, db *sql.DB, fn func(*pgx.Conn) error) error {
	return WithConn(ctx, db, func(conn *sql.Conn) error {
		return conn.Raw(func(dc any) error {
			std, ok := dc.(*stdlib.Conn)
			if !ok {
				return errors.New("driver connection is not *stdlib.Conn")
			}
			return fn(std.Conn())
		})
	})
}

// WithSQLTx runs fn inside a database/sql transaction, committing on success
// and rolling back on error.
func WithSQLTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rerr))
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
