// Package devseed populates a development database with sample orders so
// enqueued tasks have rows to act on.
package devseed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/commercekit/orderworker/internal/data/pgxutil"
	"github.com/commercekit/orderworker/internal/domain/model"
)

// Services bundles the dependencies needed for development seeding.
type Services struct {
	DB *sql.DB
}

// NewServices constructs the seeding dependencies against the provided DB.
func NewServices(db *sql.DB) Services {
	return Services{DB: db}
}

type seedOrder struct {
	UserID string
	Total  float64
}

func defaultOrders() []seedOrder {
	return []seedOrder{
		{UserID: "dev-alice", Total: 42.50},
		{UserID: "dev-bob", Total: 129.99},
		{UserID: "dev-carol", Total: 7.25},
		{UserID: "dev-dave", Total: 310.00},
	}
}

// Run executes the development seeding workflow against the provided DB.
// The existence check and the inserts share one transaction, so seeding is
// all-or-nothing and repeated runs do not pile up duplicate rows.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	return pgxutil.WithSQLTx(ctx, svcs.DB, nil, func(tx *sql.Tx) error {
		var existing int
		if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM orders`).Scan(&existing); err != nil {
			return fmt.Errorf("count orders: %w", err)
		}
		if existing > 0 {
			logger.InfoContext(ctx, "orders already present, skipping seed", "count", existing)
			return nil
		}

		for _, seed := range defaultOrders() {
			var id int64
			err := tx.QueryRowContext(ctx, `
				INSERT INTO orders (user_id, status, total)
				VALUES ($1, $2, $3)
				RETURNING id
			`, seed.UserID, model.OrderStatusPending, seed.Total).Scan(&id)
			if err != nil {
				return fmt.Errorf("seed order for %s: %w", seed.UserID, err)
			}
			logger.InfoContext(ctx, "created order", "order_id", id, "user_id", seed.UserID, "total", seed.Total)
		}
		return nil
	})
}
