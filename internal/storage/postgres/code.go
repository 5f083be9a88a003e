package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openmerce/promo-engine/internal/domain/discount"
)

const (
	findCodeSQL = `SELECT id, discount_id, code, expires_at, max_uses, usage_count
		FROM discount_codes WHERE UPPER(code) = UPPER($1)`

	// The guard is what keeps usage_count <= max_uses under concurrent
	// redemption: the increment and the bound check happen in one statement,
	// so losing callers see zero affected rows instead of over-redeeming.
	tryRedeemSQL = `UPDATE discount_codes
		SET usage_count = usage_count + 1
		WHERE id = $1 AND (max_uses IS NULL OR usage_count < max_uses)`
)

var _ discount.CodeRepository = (*CodeRepository)(nil)

// CodeRepository implements discount.CodeRepository backed by PostgreSQL.
type CodeRepository struct {
	pool *pgxpool.Pool
}

// NewCodeRepository returns a CodeRepository that uses the given pool.
func NewCodeRepository(pool *pgxpool.Pool) *CodeRepository {
	return &CodeRepository{pool: pool}
}

// FindByCode looks up a discount code case-insensitively.
// Returns discount.ErrCodeNotFound when no such code exists.
func (r *CodeRepository) FindByCode(ctx context.Context, code string) (*discount.DiscountCode, error) {
	rows, err := r.pool.Query(ctx, findCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding code %q: %w", code, err)
	}

	dc, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (discount.DiscountCode, error) {
		var dc discount.DiscountCode
		err := row.Scan(&dc.ID, &dc.DiscountID, &dc.Code, &dc.ExpiresAt, &dc.MaxUses, &dc.UsageCount)
		return dc, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrCodeNotFound
		}
		return nil, fmt.Errorf("finding code %q: %w", code, err)
	}
	return &dc, nil
}

// TryRedeem atomically increments the code's usage counter while it is below
// the usage limit. It returns false when the conditional update matched no
// row, i.e. a concurrent redemption consumed the last use.
func (r *CodeRepository) TryRedeem(ctx context.Context, codeID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, tryRedeemSQL, codeID)
	if err != nil {
		return false, fmt.Errorf("redeeming code %q: %w", codeID, err)
	}
	return tag.RowsAffected() == 1, nil
}
