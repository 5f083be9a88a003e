package discount

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(discounts *mockDiscountRepo, codes *mockCodeRepo, orders *mockOrderRepo) *Engine {
	if discounts == nil {
		discounts = &mockDiscountRepo{}
	}
	if codes == nil {
		codes = &mockCodeRepo{codes: map[string]*DiscountCode{}}
	}
	if orders == nil {
		orders = &mockOrderRepo{}
	}
	e := NewEngine(discounts, codes, orders)
	e.now = func() time.Time { return time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC) }
	return e
}

func cartContext(subtotal int64) *EvaluationContext {
	return &EvaluationContext{
		CurrencyCode: "USD",
		ChannelID:    "web",
		Subtotal:     decimal.NewFromInt(subtotal),
		Items: []CartItem{
			{ProductID: "p1", Quantity: 1, UnitPrice: decimal.NewFromInt(subtotal)},
		},
	}
}

func TestEngine_Evaluate_ContextValidation(t *testing.T) {
	e := newTestEngine(nil, nil, nil)

	tests := []struct {
		name string
		ec   *EvaluationContext
	}{
		{
			name: "missing currency",
			ec:   &EvaluationContext{Subtotal: decimal.NewFromInt(10)},
		},
		{
			name: "negative subtotal",
			ec:   &EvaluationContext{CurrencyCode: "USD", Subtotal: decimal.NewFromInt(-1)},
		},
		{
			name: "zero quantity item",
			ec: &EvaluationContext{
				CurrencyCode: "USD",
				Subtotal:     decimal.NewFromInt(10),
				Items:        []CartItem{{ProductID: "p1", Quantity: 0, UnitPrice: decimal.NewFromInt(10)}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Evaluate(context.Background(), tt.ec, false)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestEngine_Evaluate_CodeDiscount(t *testing.T) {
	// A 10% discount applied via code TEST10 to a subtotal of 100 yields 10.
	discounts := &mockDiscountRepo{byID: map[string]Discount{
		"d1": {
			ID:       "d1",
			Type:     TypePercentage,
			Value:    decimal.NewFromInt(10),
			Status:   StatusActive,
			Stacking: StackingStack,
			Scope:    Scope{ApplyTo: ApplyToCart},
			Weekdays: AllWeekdays,
		},
	}}
	codes := &mockCodeRepo{codes: map[string]*DiscountCode{
		"c1": {ID: "c1", DiscountID: "d1", Code: "TEST10"},
	}}
	e := newTestEngine(discounts, codes, nil)

	ec := cartContext(100)
	ec.Code = "TEST10"

	res, err := e.Evaluate(context.Background(), ec, false)

	require.NoError(t, err)
	assert.Equal(t, RedemptionApplied, res.CodeStatus)
	assert.True(t, decimal.NewFromInt(10).Equal(res.DiscountTotal),
		"expected 10, got %s", res.DiscountTotal)
	require.Len(t, res.AppliedDiscounts, 1)
	assert.Equal(t, "d1", res.AppliedDiscounts[0].DiscountID)
}

func TestEngine_Evaluate_FirstOrderOnly(t *testing.T) {
	auto := Discount{
		ID:             "d1",
		Type:           TypeFixed,
		Value:          decimal.NewFromInt(5),
		Status:         StatusActive,
		Stacking:       StackingStack,
		FirstOrderOnly: true,
		Scope:          Scope{ApplyTo: ApplyToCart},
		Weekdays:       AllWeekdays,
	}
	discounts := &mockDiscountRepo{active: []Discount{auto}}

	ec := cartContext(20)
	ec.UserID = "u1"

	// No completed orders: the discount applies.
	e := newTestEngine(discounts, nil, &mockOrderRepo{hasOrder: false})
	res, err := e.Evaluate(context.Background(), ec, false)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5).Equal(res.DiscountTotal))

	// Same cart after the user's first order: nothing applies.
	e = newTestEngine(discounts, nil, &mockOrderRepo{hasOrder: true})
	res, err = e.Evaluate(context.Background(), ec, false)
	require.NoError(t, err)
	assert.True(t, res.DiscountTotal.IsZero())
	assert.Empty(t, res.AppliedDiscounts)
}

func TestEngine_Evaluate_PreviewIsIdempotent(t *testing.T) {
	discounts := &mockDiscountRepo{byID: map[string]Discount{
		"d1": {
			ID:       "d1",
			Type:     TypePercentage,
			Value:    decimal.NewFromInt(10),
			Status:   StatusActive,
			Stacking: StackingStack,
			Scope:    Scope{ApplyTo: ApplyToCart},
			Weekdays: AllWeekdays,
		},
	}}
	codes := &mockCodeRepo{codes: map[string]*DiscountCode{
		"c1": {ID: "c1", DiscountID: "d1", Code: "TEST10", MaxUses: intPtr(1)},
	}}
	e := newTestEngine(discounts, codes, nil)

	ec := cartContext(100)
	ec.Code = "TEST10"

	first, err := e.Evaluate(context.Background(), ec, false)
	require.NoError(t, err)

	for range 5 {
		res, err := e.Evaluate(context.Background(), ec, false)
		require.NoError(t, err)
		assert.Equal(t, first, res)
	}
	assert.Zero(t, codes.codes["c1"].UsageCount, "preview must never consume uses")
}

func TestEngine_Evaluate_ConcurrentRedemption(t *testing.T) {
	discounts := &mockDiscountRepo{byID: map[string]Discount{
		"d1": {
			ID:       "d1",
			Type:     TypePercentage,
			Value:    decimal.NewFromInt(10),
			Status:   StatusActive,
			Stacking: StackingStack,
			Scope:    Scope{ApplyTo: ApplyToCart},
			Weekdays: AllWeekdays,
		},
	}}
	codes := &mockCodeRepo{codes: map[string]*DiscountCode{
		"c1": {ID: "c1", DiscountID: "d1", Code: "ONCE", MaxUses: intPtr(1)},
	}}
	e := newTestEngine(discounts, codes, nil)

	const callers = 2
	results := make([]*EvaluationResult, callers)

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ec := cartContext(100)
			ec.Code = "ONCE"
			res, err := e.Evaluate(context.Background(), ec, true)
			if !assert.NoError(t, err) {
				return
			}
			results[i] = res
		}()
	}
	wg.Wait()

	appliedCount := 0
	for _, res := range results {
		require.NotNil(t, res)
		switch res.CodeStatus {
		case RedemptionApplied:
			appliedCount++
		case RedemptionRaceLost, RedemptionExhaustedCode:
			assert.True(t, res.DiscountTotal.IsZero())
		default:
			t.Fatalf("unexpected code status %q", res.CodeStatus)
		}
	}
	assert.Equal(t, 1, appliedCount, "exactly one caller wins the last use")
	assert.Equal(t, 1, codes.codes["c1"].UsageCount)
}

func TestEngine_Evaluate_AutomaticAndCodeStack(t *testing.T) {
	// Two stack discounts (10% automatic and a fixed 5 via code) on 100 -> 15.
	discounts := &mockDiscountRepo{
		active: []Discount{{
			ID:       "auto",
			Type:     TypePercentage,
			Value:    decimal.NewFromInt(10),
			Status:   StatusActive,
			Stacking: StackingStack,
			Priority: 1,
			Scope:    Scope{ApplyTo: ApplyToCart},
			Weekdays: AllWeekdays,
		}},
		byID: map[string]Discount{
			"coded": {
				ID:       "coded",
				Type:     TypeFixed,
				Value:    decimal.NewFromInt(5),
				Status:   StatusActive,
				Stacking: StackingStack,
				Priority: 2,
				Scope:    Scope{ApplyTo: ApplyToCart},
				Weekdays: AllWeekdays,
			},
		},
	}
	codes := &mockCodeRepo{codes: map[string]*DiscountCode{
		"c1": {ID: "c1", DiscountID: "coded", Code: "FIVER"},
	}}
	e := newTestEngine(discounts, codes, nil)

	ec := cartContext(100)
	ec.Code = "FIVER"

	res, err := e.Evaluate(context.Background(), ec, false)

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(15).Equal(res.DiscountTotal),
		"expected 15, got %s", res.DiscountTotal)
	require.Len(t, res.AppliedDiscounts, 2)
	assert.Equal(t, "auto", res.AppliedDiscounts[0].DiscountID)
	assert.Equal(t, "coded", res.AppliedDiscounts[1].DiscountID)
}

func TestEngine_Evaluate_ExclusiveBeatsStack(t *testing.T) {
	discounts := &mockDiscountRepo{active: []Discount{
		{
			ID:       "excl",
			Type:     TypePercentage,
			Value:    decimal.NewFromInt(20),
			Status:   StatusActive,
			Stacking: StackingExclusive,
			Priority: 1,
			Scope:    Scope{ApplyTo: ApplyToCart},
			Weekdays: AllWeekdays,
		},
		{
			ID:       "stack",
			Type:     TypeFixed,
			Value:    decimal.NewFromInt(5),
			Status:   StatusActive,
			Stacking: StackingStack,
			Priority: 2,
			Scope:    Scope{ApplyTo: ApplyToCart},
			Weekdays: AllWeekdays,
		},
	}}
	e := newTestEngine(discounts, nil, nil)

	res, err := e.Evaluate(context.Background(), cartContext(100), false)

	require.NoError(t, err)
	require.Len(t, res.AppliedDiscounts, 1)
	assert.Equal(t, "excl", res.AppliedDiscounts[0].DiscountID)
	assert.True(t, decimal.NewFromInt(20).Equal(res.DiscountTotal))
}

func TestEngine_Evaluate_ZeroScopedSubtotalDropsDiscount(t *testing.T) {
	discounts := &mockDiscountRepo{active: []Discount{{
		ID:       "d1",
		Type:     TypePercentage,
		Value:    decimal.NewFromInt(10),
		Status:   StatusActive,
		Stacking: StackingStack,
		Scope:    Scope{ApplyTo: ApplyToProduct, TargetIDs: []string{"other"}},
		Weekdays: AllWeekdays,
	}}}
	e := newTestEngine(discounts, nil, nil)

	res, err := e.Evaluate(context.Background(), cartContext(100), false)

	require.NoError(t, err)
	assert.Empty(t, res.AppliedDiscounts)
	assert.True(t, res.DiscountTotal.IsZero())
	assert.Equal(t, RedemptionNone, res.CodeStatus)
}

func TestEngine_Evaluate_IneligibleCartDoesNotRedeem(t *testing.T) {
	discounts := &mockDiscountRepo{byID: map[string]Discount{
		"d1": {
			ID:          "d1",
			Type:        TypePercentage,
			Value:       decimal.NewFromInt(10),
			Status:      StatusActive,
			Stacking:    StackingStack,
			MinRequired: decimal.NewFromInt(500),
			Scope:       Scope{ApplyTo: ApplyToCart},
			Weekdays:    AllWeekdays,
		},
	}}
	codes := &mockCodeRepo{codes: map[string]*DiscountCode{
		"c1": {ID: "c1", DiscountID: "d1", Code: "BIG", MaxUses: intPtr(10)},
	}}
	e := newTestEngine(discounts, codes, nil)

	ec := cartContext(100)
	ec.Code = "BIG"

	res, err := e.Evaluate(context.Background(), ec, true)

	require.NoError(t, err)
	assert.Equal(t, RedemptionInvalidCode, res.CodeStatus)
	assert.Zero(t, codes.codes["c1"].UsageCount,
		"a cart that does not qualify must not consume a use")
}

func TestEngine_Evaluate_CodeFailureKeepsAutomaticDiscounts(t *testing.T) {
	discounts := &mockDiscountRepo{active: []Discount{{
		ID:       "auto",
		Type:     TypeFixed,
		Value:    decimal.NewFromInt(5),
		Status:   StatusActive,
		Stacking: StackingStack,
		Scope:    Scope{ApplyTo: ApplyToCart},
		Weekdays: AllWeekdays,
	}}}
	e := newTestEngine(discounts, nil, nil)

	ec := cartContext(100)
	ec.Code = "UNKNOWN"

	res, err := e.Evaluate(context.Background(), ec, false)

	require.NoError(t, err)
	assert.Equal(t, RedemptionInvalidCode, res.CodeStatus)
	require.Len(t, res.AppliedDiscounts, 1)
	assert.True(t, decimal.NewFromInt(5).Equal(res.DiscountTotal))
}
