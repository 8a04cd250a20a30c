package data

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/commercekit/orderworker/internal/errors"
	"github.com/commercekit/orderworker/internal/data/pgxutil"
	"github.com/commercekit/orderworker/internal/domain/model"
)

// OrderRepo reads and advances orders, the business entities tasks act upon.
type OrderRepo struct {
	DB     *sql.DB
	logger *slog.Logger
}

// NewOrderRepo creates an OrderRepo backed by the given pool.
func NewOrderRepo(db *sql.DB, cfg RepoConfig) *OrderRepo {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderRepo{DB: db, logger: logger}
}

// Create inserts an order and returns it. Used by seeding and tests;
// production orders arrive through the storefront.
func (r *OrderRepo) Create(ctx context.Context, userID string, total float64) (*model.Order, error) {
	var order *model.Order
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx, `
			INSERT INTO orders (user_id, status, total)
			VALUES ($1, $2, $3)
			RETURNING id, user_id, status, total, created_at
		`, userID, model.OrderStatusPending, total)
		if queryErr != nil {
			return fmt.Errorf("insert order: %w", queryErr)
		}
		defer rows.Close()

		collected, collectErr := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Order])
		if collectErr != nil {
			return collectErr
		}
		order = collected
		return nil
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return order, nil
}

// Get returns the order with the given id.
func (r *OrderRepo) Get(ctx context.Context, id int64) (*model.Order, error) {
	var order *model.Order
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx, `
			SELECT id, user_id, status, total, created_at
			FROM orders
			WHERE id = $1
		`, id)
		if queryErr != nil {
			return fmt.Errorf("query order: %w", queryErr)
		}
		defer rows.Close()

		collected, collectErr := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Order])
		if collectErr != nil {
			return collectErr
		}
		order = collected
		return nil
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return order, nil
}

// UpdateStatus overwrites the order's status unconditionally. There is no
// status precondition and no row lock; concurrent tasks on the same order
// race and the last write wins. An unknown order id is a no-op.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id int64, status model.OrderStatus) error {
	var affected int64
	err := retryStore(ctx, r.logger, "update order status", func() error {
		execErr := pgxutil.WithConn(ctx, r.DB, func(conn *sql.Conn) error {
			res, updateErr := conn.ExecContext(ctx, `
				UPDATE orders SET status = $2 WHERE id = $1
			`, id, status)
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
		r.logger.DebugContext(ctx, "order status update matched no rows", "order_id", id, "status", status)
	}
	return nil
}
