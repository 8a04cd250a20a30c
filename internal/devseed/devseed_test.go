package devseed_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercekit/orderworker/internal/devseed"
	"github.com/commercekit/orderworker/internal/testutil"
)

func countOrders(t *testing.T, db *sql.DB, status string) int {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT count(*) FROM orders WHERE status = $1`, status).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestRunSeedsPendingOrders(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		svcs := devseed.NewServices(db)

		require.NoError(t, devseed.Run(context.Background(), svcs, nil))
		assert.Equal(t, 4, countOrders(t, db, "pending"))
	})
}

func TestRunSkipsWhenOrdersExist(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		testutil.SeedOrder(t, db, "existing-user", 10)
		svcs := devseed.NewServices(db)

		require.NoError(t, devseed.Run(context.Background(), svcs, nil))

		var total int
		require.NoError(t, db.QueryRow(`SELECT count(*) FROM orders`).Scan(&total))
		assert.Equal(t, 1, total)
	})
}
