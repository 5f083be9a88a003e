// Command seed-db loads discounts, discount codes, and completed orders from
// a JSON fixture into the database for local development.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/openmerce/promo-engine/internal/storage/postgres"
)

type discountJSON struct {
	ID                string          `json:"id"`
	Type              string          `json:"type"`
	Value             decimal.Decimal `json:"value"`
	MaxDiscount       decimal.Decimal `json:"maxDiscount"`
	Status            string          `json:"status"`
	StackingPolicy    string          `json:"stackingPolicy"`
	FirstOrderOnly    bool            `json:"firstOrderOnly"`
	AppliesToShipping bool            `json:"appliesToShipping"`
	Priority          int             `json:"priority"`
	ApplyTo           string          `json:"applyTo"`
	TargetIDs         []string        `json:"targetIds"`
	MinRequired       decimal.Decimal `json:"minRequired"`
	Eligibility       string          `json:"eligibility"`
	GroupID           string          `json:"groupId"`
	WeekdayMask       int             `json:"weekdayMask"`
	WindowStartSecs   *int            `json:"windowStartSecs"`
	WindowEndSecs     *int            `json:"windowEndSecs"`
	Channels          []string        `json:"channels"`
	Currencies        []string        `json:"currencies"`
	StartsAt          *time.Time      `json:"startsAt"`
	EndsAt            *time.Time      `json:"endsAt"`
}

type codeJSON struct {
	ID         string     `json:"id"`
	DiscountID string     `json:"discountId"`
	Code       string     `json:"code"`
	ExpiresAt  *time.Time `json:"expiresAt"`
	MaxUses    *int       `json:"maxUses"`
}

type orderJSON struct {
	ID     string          `json:"id"`
	UserID string          `json:"userId"`
	Status string          `json:"status"`
	Total  decimal.Decimal `json:"total"`
}

type fixture struct {
	Discounts []discountJSON `json:"discounts"`
	Codes     []codeJSON     `json:"codes"`
	Orders    []orderJSON    `json:"orders"`
}

func main() {
	var (
		databaseURL string
		fixtureFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&fixtureFile, "fixture-file", "db/seed/fixture.json", "path to seed fixture JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, fixtureFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, fixtureFile string) error {
	raw, err := os.ReadFile(fixtureFile)
	if err != nil {
		return errors.Wrap(err, "read fixture")
	}

	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		return errors.Wrap(err, "parse fixture")
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedDiscounts(ctx, pool, fx.Discounts); err != nil {
		return err
	}
	if err := seedCodes(ctx, pool, fx.Codes); err != nil {
		return err
	}
	if err := seedOrders(ctx, pool, fx.Orders); err != nil {
		return err
	}

	slog.Info("seeded",
		slog.Int("discounts", len(fx.Discounts)),
		slog.Int("codes", len(fx.Codes)),
		slog.Int("orders", len(fx.Orders)),
	)
	return nil
}

const insertDiscountSQL = `INSERT INTO discounts (
	id, discount_type, value, max_discount, status, stacking_policy,
	first_order_only, applies_to_shipping, priority, apply_to, target_ids,
	min_required, eligibility, group_id, weekday_mask,
	window_start_secs, window_end_secs, channels, currencies, starts_at, ends_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
ON CONFLICT (id) DO NOTHING`

func seedDiscounts(ctx context.Context, pool *pgxpool.Pool, discounts []discountJSON) error {
	for _, d := range discounts {
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		if d.WeekdayMask == 0 {
			d.WeekdayMask = 0x7F
		}
		if d.TargetIDs == nil {
			d.TargetIDs = []string{}
		}
		if d.Channels == nil {
			d.Channels = []string{}
		}
		if d.Currencies == nil {
			d.Currencies = []string{}
		}

		_, err := pool.Exec(ctx, insertDiscountSQL,
			d.ID, d.Type, d.Value, d.MaxDiscount, d.Status, d.StackingPolicy,
			d.FirstOrderOnly, d.AppliesToShipping, d.Priority, d.ApplyTo, d.TargetIDs,
			d.MinRequired, d.Eligibility, d.GroupID, d.WeekdayMask,
			d.WindowStartSecs, d.WindowEndSecs, d.Channels, d.Currencies, d.StartsAt, d.EndsAt,
		)
		if err != nil {
			return errors.Wrapf(err, "insert discount %s", d.ID)
		}
	}
	return nil
}

const insertCodeSQL = `INSERT INTO discount_codes (id, discount_id, code, expires_at, max_uses)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`

func seedCodes(ctx context.Context, pool *pgxpool.Pool, codes []codeJSON) error {
	for _, c := range codes {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if _, err := pool.Exec(ctx, insertCodeSQL, c.ID, c.DiscountID, c.Code, c.ExpiresAt, c.MaxUses); err != nil {
			return errors.Wrapf(err, "insert code %s", c.Code)
		}
	}
	return nil
}

const insertOrderSQL = `INSERT INTO orders (id, user_id, status, total)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO NOTHING`

func seedOrders(ctx context.Context, pool *pgxpool.Pool, orders []orderJSON) error {
	for _, o := range orders {
		if o.ID == "" {
			o.ID = uuid.New().String()
		}
		if _, err := pool.Exec(ctx, insertOrderSQL, o.ID, o.UserID, o.Status, o.Total); err != nil {
			return errors.Wrapf(err, "insert order %s", o.ID)
		}
	}
	return nil
}
