package discount

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// EligibilityEvaluator checks the customer- and time-based preconditions of a
// discount against an evaluation context. All checks are pure predicates over
// the context except the first-order lookup, which consults the order history.
type EligibilityEvaluator struct {
	orders OrderRepository
}

// NewEligibilityEvaluator creates an evaluator backed by the given order history.
func NewEligibilityEvaluator(orders OrderRepository) *EligibilityEvaluator {
	return &EligibilityEvaluator{orders: orders}
}

// Eligible reports whether the discount's preconditions hold for the context.
// scopedSubtotal is the subtotal already matched by the discount's scope.
// An ineligible discount is not an error; the error return is for repository
// failures only.
func (e *EligibilityEvaluator) Eligible(
	ctx context.Context,
	d *Discount,
	ec *EvaluationContext,
	scopedSubtotal decimal.Decimal,
) (bool, error) {
	if !d.ActiveAt(ec.Now) {
		return false, nil
	}
	if scopedSubtotal.LessThan(d.MinRequired) {
		return false, nil
	}
	if !d.Weekdays.Allows(ec.Now) {
		return false, nil
	}
	if d.Window != nil && !d.Window.Contains(ec.Now) {
		return false, nil
	}
	if len(d.Channels) > 0 && !slices.Contains(d.Channels, ec.ChannelID) {
		return false, nil
	}
	if len(d.Currencies) > 0 && !slices.Contains(d.Currencies, ec.CurrencyCode) {
		return false, nil
	}
	if d.Eligibility == EligibilityGroup && !slices.Contains(ec.GroupIDs, d.GroupID) {
		return false, nil
	}

	if d.FirstOrderOnly || d.Eligibility == EligibilityNewCustomers {
		// Anonymous carts pass: first-order status cannot be enforced without
		// a user id.
		if ec.UserID == "" {
			return true, nil
		}
		ordered, err := e.orders.HasCompletedOrder(ctx, ec.UserID)
		if err != nil {
			return false, errors.Wrap(err, "check completed orders")
		}
		return !ordered, nil
	}

	return true, nil
}
