package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// CodeClaim is a validated but not yet redeemed coupon code together with its
// parent discount.
type CodeClaim struct {
	Code     *DiscountCode
	Discount *Discount
}

// CodeValidator validates coupon codes against expiry, parent-discount
// candidacy, and usage limits. Redemption itself is a separate step so the
// engine can finish scope and eligibility checks before consuming a use.
type CodeValidator struct {
	discounts DiscountRepository
	codes     CodeRepository
}

// NewCodeValidator creates a CodeValidator backed by the given repositories.
func NewCodeValidator(discounts DiscountRepository, codes CodeRepository) *CodeValidator {
	return &CodeValidator{discounts: discounts, codes: codes}
}

// Lookup resolves a code and checks everything short of redemption. The
// returned status is RedemptionApplied when the code's discount may enter the
// candidate set; any other status carries a nil claim. The error return is
// for repository failures only.
func (v *CodeValidator) Lookup(ctx context.Context, code string, now time.Time) (*CodeClaim, RedemptionStatus, error) {
	dc, err := v.codes.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return nil, RedemptionInvalidCode, nil
		}
		return nil, RedemptionNone, errors.Wrap(err, "lookup code")
	}

	parent, err := v.discounts.FindByID(ctx, dc.DiscountID)
	if err != nil {
		if errors.Is(err, ErrDiscountNotFound) {
			return nil, RedemptionInvalidCode, nil
		}
		return nil, RedemptionNone, errors.Wrap(err, "lookup code discount")
	}
	if !parent.ActiveAt(now) {
		return nil, RedemptionInvalidCode, nil
	}

	if dc.ExpiresAt != nil && now.After(*dc.ExpiresAt) {
		return nil, RedemptionExpiredCode, nil
	}
	if dc.MaxUses != nil && dc.UsageCount >= *dc.MaxUses {
		return nil, RedemptionExhaustedCode, nil
	}

	return &CodeClaim{Code: dc, Discount: parent}, RedemptionApplied, nil
}

// Redeem consumes one use of the claimed code via the repository's guarded
// increment. A false return means a concurrent redemption won the last use;
// the caller must surface this as RedemptionRaceLost, never retry silently.
func (v *CodeValidator) Redeem(ctx context.Context, claim *CodeClaim) (bool, error) {
	ok, err := v.codes.TryRedeem(ctx, claim.Code.ID)
	if err != nil {
		return false, errors.Wrap(err, "redeem code")
	}
	return ok, nil
}
