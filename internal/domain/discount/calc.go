package discount

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// zeroDecimalCurrencies lists ISO 4217 currencies without a minor unit.
var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "ISK": {}, "JPY": {},
	"KMF": {}, "KRW": {}, "PYG": {}, "RWF": {}, "UGX": {}, "VND": {},
	"VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// MinorUnit returns the number of minor-unit digits for a currency code.
func MinorUnit(currencyCode string) int32 {
	if _, ok := zeroDecimalCurrencies[currencyCode]; ok {
		return 0
	}
	return 2
}

// Calculate computes the monetary amount of each applied discount against its
// scoped subtotal and aggregates the total, clamped to [0, cartSubtotal].
// Free-shipping discounts contribute nothing to the total; they only raise
// the freeShipping flag.
func Calculate(applied []Candidate, cartSubtotal decimal.Decimal, currencyCode string) (total decimal.Decimal, breakdown []AppliedDiscount, freeShipping bool) {
	exp := MinorUnit(currencyCode)

	total = decimal.Zero
	breakdown = make([]AppliedDiscount, 0, len(applied))
	for _, c := range applied {
		amount := amountFor(&c.Discount, c.ScopedSubtotal, exp)
		if c.Discount.Type == TypeFreeShipping {
			freeShipping = true
		}
		total = total.Add(amount)
		breakdown = append(breakdown, AppliedDiscount{
			DiscountID: c.Discount.ID,
			Amount:     amount,
			Scope:      c.Discount.Scope.Description(),
		})
	}

	total = decimal.Min(total, cartSubtotal)
	total = floorAtZero(total)
	return total, breakdown, freeShipping
}

// amountFor computes a single discount's amount against its scoped subtotal.
func amountFor(d *Discount, scoped decimal.Decimal, exp int32) decimal.Decimal {
	switch d.Type {
	case TypePercentage:
		amount := scoped.Mul(d.Value).Div(hundred).Round(exp)
		if d.MaxDiscount.IsPositive() {
			amount = decimal.Min(amount, d.MaxDiscount)
		}
		return floorAtZero(amount)
	case TypeFixed:
		// A fixed discount cannot reduce more than the subtotal it applies to.
		return floorAtZero(decimal.Min(d.Value, scoped)).Round(exp)
	case TypeFreeShipping:
		return decimal.Zero
	default:
		return decimal.Zero
	}
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
