package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openmerce/promo-engine/internal/domain/discount"
)

const hasCompletedOrderSQL = `SELECT EXISTS (
	SELECT 1 FROM orders WHERE user_id = $1 AND status = 'completed'
)`

var _ discount.OrderRepository = (*OrderRepository)(nil)

// OrderRepository implements discount.OrderRepository backed by PostgreSQL.
// Order persistence itself belongs to the checkout system; this repository
// only answers the first-order eligibility question.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// HasCompletedOrder reports whether the user has at least one completed order.
func (r *OrderRepository) HasCompletedOrder(ctx context.Context, userID string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, hasCompletedOrderSQL, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking completed orders for %q: %w", userID, err)
	}
	return exists, nil
}
