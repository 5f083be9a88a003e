package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openmerce/promo-engine/internal/domain/discount"
)

const discountColumns = `id, discount_type, value, max_discount, status, stacking_policy,
	first_order_only, applies_to_shipping, priority, apply_to, target_ids,
	min_required, eligibility, group_id, weekday_mask,
	window_start_secs, window_end_secs, channels, currencies, starts_at, ends_at`

const findActiveCandidatesSQL = `SELECT ` + discountColumns + `
	FROM discounts d
	WHERE d.status = 'active'
	  AND (d.starts_at IS NULL OR d.starts_at <= $3)
	  AND (d.ends_at IS NULL OR d.ends_at >= $3)
	  AND (cardinality(d.channels) = 0 OR $1 = ANY(d.channels))
	  AND (cardinality(d.currencies) = 0 OR $2 = ANY(d.currencies))
	  AND NOT EXISTS (SELECT 1 FROM discount_codes c WHERE c.discount_id = d.id)
	ORDER BY d.priority, d.id`

const findDiscountByIDSQL = `SELECT ` + discountColumns + `
	FROM discounts d WHERE d.id = $1`

var _ discount.DiscountRepository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.DiscountRepository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// FindActiveCandidates returns active automatic discounts for the channel,
// currency, and instant. Discounts with attached codes are excluded; they
// enter evaluation only through their code.
func (r *DiscountRepository) FindActiveCandidates(ctx context.Context, channelID, currencyCode string, now time.Time) ([]discount.Discount, error) {
	rows, err := r.pool.Query(ctx, findActiveCandidatesSQL, channelID, currencyCode, now)
	if err != nil {
		return nil, fmt.Errorf("finding active discounts: %w", err)
	}

	discounts, err := pgx.CollectRows(rows, scanDiscount)
	if err != nil {
		return nil, fmt.Errorf("finding active discounts: %w", err)
	}
	return discounts, nil
}

// FindByID returns discount.ErrDiscountNotFound for unknown ids.
func (r *DiscountRepository) FindByID(ctx context.Context, id string) (*discount.Discount, error) {
	rows, err := r.pool.Query(ctx, findDiscountByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("finding discount %q: %w", id, err)
	}

	d, err := pgx.CollectExactlyOneRow(rows, scanDiscount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrDiscountNotFound
		}
		return nil, fmt.Errorf("finding discount %q: %w", id, err)
	}
	return &d, nil
}

func scanDiscount(row pgx.CollectableRow) (discount.Discount, error) {
	var (
		d           discount.Discount
		weekdayMask int16
		windowStart *int32
		windowEnd   *int32
	)
	err := row.Scan(
		&d.ID, &d.Type, &d.Value, &d.MaxDiscount, &d.Status, &d.Stacking,
		&d.FirstOrderOnly, &d.AppliesToShipping, &d.Priority,
		&d.Scope.ApplyTo, &d.Scope.TargetIDs,
		&d.MinRequired, &d.Eligibility, &d.GroupID, &weekdayMask,
		&windowStart, &windowEnd, &d.Channels, &d.Currencies,
		&d.StartsAt, &d.EndsAt,
	)
	d.Weekdays = discount.WeekdayMask(weekdayMask)
	if windowStart != nil && windowEnd != nil {
		d.Window = &discount.TimeWindow{
			Start: time.Duration(*windowStart) * time.Second,
			End:   time.Duration(*windowEnd) * time.Second,
		}
	}
	return d, err
}
