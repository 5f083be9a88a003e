package discount

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockOrderRepo struct {
	hasOrder bool
	err      error
	calls    int
}

func (m *mockOrderRepo) HasCompletedOrder(_ context.Context, _ string) (bool, error) {
	m.calls++
	return m.hasOrder, m.err
}

func TestEligibilityEvaluator_Eligible(t *testing.T) {
	// A Monday at 12:00 UTC.
	fixedNow := time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)
	past := fixedNow.Add(-24 * time.Hour)
	future := fixedNow.Add(24 * time.Hour)

	base := func() Discount {
		return Discount{
			ID:       "d1",
			Type:     TypePercentage,
			Value:    decimal.NewFromInt(10),
			Status:   StatusActive,
			Stacking: StackingStack,
			Scope:    Scope{ApplyTo: ApplyToCart},
			Weekdays: AllWeekdays,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Discount)
		ec     EvaluationContext
		orders mockOrderRepo
		scoped decimal.Decimal
		want   bool
	}{
		{
			name:   "unrestricted discount is eligible",
			mutate: func(*Discount) {},
			ec:     EvaluationContext{CurrencyCode: "USD", Now: fixedNow},
			scoped: decimal.NewFromInt(100),
			want:   true,
		},
		{
			name:   "inactive status fails",
			mutate: func(d *Discount) { d.Status = StatusInactive },
			ec:     EvaluationContext{CurrencyCode: "USD", Now: fixedNow},
			scoped: decimal.NewFromInt(100),
			want:   false,
		},
		{
			name:   "not yet started fails",
			mutate: func(d *Discount) { d.StartsAt = &future },
			ec:     EvaluationContext{CurrencyCode: "USD", Now: fixedNow},
			scoped: decimal.NewFromInt(100),
			want:   false,
		},
		{
			name:   "already ended fails",
			mutate: func(d *Discount) { d.EndsAt = &past },
			ec:     EvaluationContext{CurrencyCode: "USD", Now: fixedNow},
			scoped: decimal.NewFromInt(100),
			want:   false,
		},
		{
			name:   "inclusive window boundary passes",
			mutate: func(d *Discount) { d.StartsAt = &fixedNow; d.EndsAt = &fixedNow },
			ec:     EvaluationContext{CurrencyCode: "USD", Now: fixedNow},
			scoped: decimal.NewFromInt(100),
			want:   true,
		},
		{
			name:   "scoped subtotal below minimum fails",
			mutate: func(d *Discount) { d.MinRequired = decimal.NewFromInt(50) },
			ec:     EvaluationContext{CurrencyCode: "USD", Now: fixedNow},
			scoped: decimal.NewFromInt(49),
			want:   false,
		},
		{
			name:   "scoped subtotal at minimum passes",
			mutate: func(d *Discount) { d.MinRequired = decimal.NewFromInt(50) },
			ec:     EvaluationContext{CurrencyCode: "USD", Now: fixedNow},
			scoped: decimal.NewFromInt(50),
			want:   true,
		},
		{
			name:   "weekday bit unset fails",
			mutate: func(d *Discount) { d.Weekdays = 1 << uint(time.Sunday) },
			ec:     EvaluationContext{CurrencyCode: "USD", Now: fixedNow},
			scoped: decimal.NewFromInt(100),
			want:   false,
		},
		{
			name:   "weekday bit set passes",
			mutate: func(d *Discount) { d.Weekdays = 1 << uint(time.Monday) },
			ec:     EvaluationContext{CurrencyCode: "USD", Now: fixedNow},
			scoped: decimal.NewFromInt(100),
			want:   true,
		},
		{
			name: "time window excludes noon",
			mutate: func(d *Discount) {
				d.Window = &TimeWindow{Start: 17 * time.Hour, End: 19 * time.Hour}
			},
			ec:     EvaluationContext{CurrencyCode: "USD", Now: fixedNow},
			scoped: decimal.NewFromInt(100),
			want:   false,
		},
		{
			name: "time window includes noon",
			mutate: func(d *Discount) {
				d.Window = &TimeWindow{Start: 9 * time.Hour, End: 18 * time.Hour}
			},
			ec:     EvaluationContext{CurrencyCode: "USD", Now: fixedNow},
			scoped: decimal.NewFromInt(100),
			want:   true,
		},
		{
			name:   "channel restriction mismatch fails",
			mutate: func(d *Discount) { d.Channels = []string{"pos"} },
			ec:     EvaluationContext{CurrencyCode: "USD", ChannelID: "web", Now: fixedNow},
			scoped: decimal.NewFromInt(100),
			want:   false,
		},
		{
			name:   "currency restriction match passes",
			mutate: func(d *Discount) { d.Currencies = []string{"USD", "EUR"} },
			ec:     EvaluationContext{CurrencyCode: "USD", Now: fixedNow},
			scoped: decimal.NewFromInt(100),
			want:   true,
		},
		{
			name:   "group eligibility without membership fails",
			mutate: func(d *Discount) { d.Eligibility = EligibilityGroup; d.GroupID = "vip" },
			ec:     EvaluationContext{CurrencyCode: "USD", Now: fixedNow},
			scoped: decimal.NewFromInt(100),
			want:   false,
		},
		{
			name:   "group eligibility with membership passes",
			mutate: func(d *Discount) { d.Eligibility = EligibilityGroup; d.GroupID = "vip" },
			ec:     EvaluationContext{CurrencyCode: "USD", GroupIDs: []string{"vip"}, Now: fixedNow},
			scoped: decimal.NewFromInt(100),
			want:   true,
		},
		{
			name:   "first order only with no prior order passes",
			mutate: func(d *Discount) { d.FirstOrderOnly = true },
			ec:     EvaluationContext{CurrencyCode: "USD", UserID: "u1", Now: fixedNow},
			orders: mockOrderRepo{hasOrder: false},
			scoped: decimal.NewFromInt(100),
			want:   true,
		},
		{
			name:   "first order only with prior order fails",
			mutate: func(d *Discount) { d.FirstOrderOnly = true },
			ec:     EvaluationContext{CurrencyCode: "USD", UserID: "u1", Now: fixedNow},
			orders: mockOrderRepo{hasOrder: true},
			scoped: decimal.NewFromInt(100),
			want:   false,
		},
		{
			name:   "first order only anonymous cart passes",
			mutate: func(d *Discount) { d.FirstOrderOnly = true },
			ec:     EvaluationContext{CurrencyCode: "USD", Now: fixedNow},
			orders: mockOrderRepo{hasOrder: true},
			scoped: decimal.NewFromInt(100),
			want:   true,
		},
		{
			name:   "new customers eligibility uses order history",
			mutate: func(d *Discount) { d.Eligibility = EligibilityNewCustomers },
			ec:     EvaluationContext{CurrencyCode: "USD", UserID: "u1", Now: fixedNow},
			orders: mockOrderRepo{hasOrder: true},
			scoped: decimal.NewFromInt(100),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base()
			tt.mutate(&d)

			e := NewEligibilityEvaluator(&tt.orders)
			got, err := e.Eligible(context.Background(), &d, &tt.ec, tt.scoped)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEligibilityEvaluator_AnonymousSkipsOrderLookup(t *testing.T) {
	orders := &mockOrderRepo{hasOrder: true}
	e := NewEligibilityEvaluator(orders)

	d := Discount{
		ID:             "d1",
		Status:         StatusActive,
		FirstOrderOnly: true,
		Scope:          Scope{ApplyTo: ApplyToCart},
		Weekdays:       AllWeekdays,
	}
	ec := EvaluationContext{CurrencyCode: "USD", Now: time.Now()}

	ok, err := e.Eligible(context.Background(), &d, &ec, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, orders.calls)
}
