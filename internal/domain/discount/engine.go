package discount

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// ValidationError indicates a malformed evaluation context. It is fatal to
// the call: no evaluation happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid context: %s %s", e.Field, e.Reason)
}

// Engine is the evaluation facade. A single Evaluate call fetches candidate
// discounts, filters them by scope and eligibility, handles an optional
// coupon code, resolves stacking, and computes the discount breakdown.
//
// Preview evaluations (redeem=false) are pure and safe to repeat; redeeming
// evaluations consume one use of the supplied code and are performed once per
// checkout. The usage counter is the only state the engine ever mutates.
type Engine struct {
	discounts   DiscountRepository
	codes       *CodeValidator
	eligibility *EligibilityEvaluator
	now         func() time.Time
}

// NewEngine creates an Engine over the given repositories.
func NewEngine(discounts DiscountRepository, codes CodeRepository, orders OrderRepository) *Engine {
	return &Engine{
		discounts:   discounts,
		codes:       NewCodeValidator(discounts, codes),
		eligibility: NewEligibilityEvaluator(orders),
		now:         time.Now,
	}
}

// Evaluate computes the discount breakdown for the context. Code failures
// (invalid, expired, exhausted, lost race) are reported via the result's
// CodeStatus while automatic discounts still apply; only a malformed context
// or a repository failure returns an error.
func (e *Engine) Evaluate(ctx context.Context, ec *EvaluationContext, redeem bool) (*EvaluationResult, error) {
	if err := validateContext(ec); err != nil {
		return nil, err
	}
	// Work on a copy so the caller's context stays untouched.
	ecc := *ec
	if ecc.Now.IsZero() {
		ecc.Now = e.now()
	}
	ec = &ecc

	active, err := e.discounts.FindActiveCandidates(ctx, ec.ChannelID, ec.CurrencyCode, ec.Now)
	if err != nil {
		return nil, errors.Wrap(err, "find active discounts")
	}

	candidates := make([]Candidate, 0, len(active)+1)
	for _, d := range active {
		c, ok, err := e.qualify(ctx, d, ec)
		if err != nil {
			return nil, err
		}
		if ok {
			candidates = append(candidates, c)
		}
	}

	status := RedemptionNone
	if ec.Code != "" {
		var codeCandidate *Candidate
		codeCandidate, status, err = e.handleCode(ctx, ec, redeem)
		if err != nil {
			return nil, err
		}
		if codeCandidate != nil {
			candidates = append(candidates, *codeCandidate)
		}
	}

	applied := ResolveStacking(candidates)
	total, breakdown, freeShipping := Calculate(applied, ec.Subtotal, ec.CurrencyCode)

	return &EvaluationResult{
		DiscountTotal:    total,
		AppliedDiscounts: breakdown,
		FreeShipping:     freeShipping,
		CodeStatus:       status,
	}, nil
}

// qualify runs the scope matcher and eligibility evaluator for one discount.
// A zero scoped subtotal drops the discount from further consideration.
func (e *Engine) qualify(ctx context.Context, d Discount, ec *EvaluationContext) (Candidate, bool, error) {
	scoped := ScopedSubtotal(d.Scope, ec.Subtotal, ec.Items)
	if !scoped.IsPositive() {
		return Candidate{}, false, nil
	}
	ok, err := e.eligibility.Eligible(ctx, &d, ec, scoped)
	if err != nil {
		return Candidate{}, false, err
	}
	if !ok {
		return Candidate{}, false, nil
	}
	return Candidate{Discount: d, ScopedSubtotal: scoped}, true, nil
}

// handleCode validates the context's coupon code and, when the cart fully
// qualifies for its discount, redeems it on redeeming evaluations. Scope and
// eligibility run before the redemption so an ineligible cart never consumes
// a use.
func (e *Engine) handleCode(ctx context.Context, ec *EvaluationContext, redeem bool) (*Candidate, RedemptionStatus, error) {
	claim, status, err := e.codes.Lookup(ctx, ec.Code, ec.Now)
	if err != nil {
		return nil, RedemptionNone, err
	}
	if status != RedemptionApplied {
		return nil, status, nil
	}

	c, ok, err := e.qualify(ctx, *claim.Discount, ec)
	if err != nil {
		return nil, RedemptionNone, err
	}
	if !ok {
		return nil, RedemptionInvalidCode, nil
	}

	if redeem {
		redeemed, err := e.codes.Redeem(ctx, claim)
		if err != nil {
			return nil, RedemptionNone, err
		}
		if !redeemed {
			return nil, RedemptionRaceLost, nil
		}
	}

	return &c, RedemptionApplied, nil
}

func validateContext(ec *EvaluationContext) error {
	if ec.CurrencyCode == "" {
		return &ValidationError{Field: "currencyCode", Reason: "is required"}
	}
	if ec.Subtotal.IsNegative() {
		return &ValidationError{Field: "cart.subtotal", Reason: "must not be negative"}
	}
	for i, it := range ec.Items {
		if it.Quantity <= 0 {
			return &ValidationError{Field: fmt.Sprintf("cart.items[%d].quantity", i), Reason: "must be greater than 0"}
		}
		if it.UnitPrice.IsNegative() {
			return &ValidationError{Field: fmt.Sprintf("cart.items[%d].unitPrice", i), Reason: "must not be negative"}
		}
	}
	return nil
}
