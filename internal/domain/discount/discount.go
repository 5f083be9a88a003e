// Package discount implements the discount evaluation and coupon-redemption
// engine: matching discount scopes to cart items, checking eligibility,
// validating and atomically redeeming coupon codes, resolving stacking
// conflicts, and computing the final discount amount.
package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported discount strategies.
type Type string

const (
	// TypePercentage reduces the scoped subtotal by a percentage.
	TypePercentage Type = "percentage"
	// TypeFixed reduces the scoped subtotal by a fixed amount, capped at the subtotal.
	TypeFixed Type = "fixed"
	// TypeFreeShipping zeroes the shipping charge; it contributes no monetary amount.
	TypeFreeShipping Type = "free_shipping"
)

// Status enumerates discount lifecycle states.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// StackingPolicy controls whether a discount combines with others.
type StackingPolicy string

const (
	// StackingStack allows the discount to combine with other applied discounts.
	StackingStack StackingPolicy = "stack"
	// StackingExclusive requires the discount to be applied alone.
	StackingExclusive StackingPolicy = "exclusive"
)

// ApplyTo selects which part of the cart a discount's scope covers.
type ApplyTo string

const (
	ApplyToCart       ApplyTo = "cart"
	ApplyToProduct    ApplyTo = "product"
	ApplyToCategory   ApplyTo = "category"
	ApplyToCollection ApplyTo = "collection"
	ApplyToBrand      ApplyTo = "brand"
)

// Eligibility restricts which customers a discount applies to.
type Eligibility string

const (
	EligibilityAll Eligibility = "all"
	// EligibilityNewCustomers limits the discount to users without a completed order.
	EligibilityNewCustomers Eligibility = "new_customers"
	// EligibilityGroup limits the discount to members of a specific customer group.
	EligibilityGroup Eligibility = "group"
)

// RedemptionStatus reports the outcome of coupon code handling for an evaluation.
type RedemptionStatus string

const (
	// RedemptionNone means no code was supplied.
	RedemptionNone RedemptionStatus = "none"
	// RedemptionApplied means the code's discount entered the candidate set.
	RedemptionApplied RedemptionStatus = "applied"
	// RedemptionInvalidCode means the code is unknown, its parent discount is
	// not a valid candidate, or the cart does not qualify for it.
	RedemptionInvalidCode RedemptionStatus = "invalid_code"
	// RedemptionExpiredCode means the code itself is past its expiry.
	RedemptionExpiredCode RedemptionStatus = "expired_code"
	// RedemptionExhaustedCode means the code has no uses left.
	RedemptionExhaustedCode RedemptionStatus = "exhausted_code"
	// RedemptionRaceLost means a concurrent redemption consumed the last use
	// between validation and the guarded increment.
	RedemptionRaceLost RedemptionStatus = "race_lost"
)

var (
	// ErrCodeNotFound is returned by CodeRepository lookups for unknown codes.
	ErrCodeNotFound = errors.New("discount code not found")
	// ErrDiscountNotFound is returned by DiscountRepository.FindByID for unknown ids.
	ErrDiscountNotFound = errors.New("discount not found")
)

// WeekdayMask is a 7-bit set of allowed weekdays. Bit 0 is Sunday, matching
// time.Weekday ordering.
type WeekdayMask uint8

// AllWeekdays has every weekday bit set.
const AllWeekdays WeekdayMask = 0x7F

// Allows reports whether the mask permits t's weekday.
func (m WeekdayMask) Allows(t time.Time) bool {
	return m&(1<<uint(t.Weekday())) != 0
}

// TimeWindow is a daily time-of-day window, expressed as offsets from
// midnight in the evaluation timestamp's location.
type TimeWindow struct {
	Start time.Duration
	End   time.Duration
}

// Contains reports whether t's time of day falls inside the window (inclusive).
func (w TimeWindow) Contains(t time.Time) bool {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := t.Sub(midnight)
	return offset >= w.Start && offset <= w.End
}

// Scope describes the subset of a cart a discount may reduce.
type Scope struct {
	ApplyTo   ApplyTo
	TargetIDs []string
}

// Discount is a promotional rule.
type Discount struct {
	ID                string
	Type              Type
	Value             decimal.Decimal
	MaxDiscount       decimal.Decimal // cap for percentage discounts; zero = uncapped
	Status            Status
	Stacking          StackingPolicy
	FirstOrderOnly    bool
	AppliesToShipping bool
	Priority          int // lower value = applied first
	Scope             Scope
	MinRequired       decimal.Decimal
	Eligibility       Eligibility
	GroupID           string
	Weekdays          WeekdayMask
	Window            *TimeWindow
	Channels          []string // empty = unrestricted
	Currencies        []string // empty = unrestricted
	StartsAt          *time.Time
	EndsAt            *time.Time
}

// ActiveAt reports whether the discount is a candidate at the given instant:
// status is active and now falls inside the validity window (inclusive).
func (d *Discount) ActiveAt(now time.Time) bool {
	if d.Status != StatusActive {
		return false
	}
	if d.StartsAt != nil && now.Before(*d.StartsAt) {
		return false
	}
	if d.EndsAt != nil && now.After(*d.EndsAt) {
		return false
	}
	return true
}

// DiscountCode is a redeemable code bound to a discount. MaxUses is nil for
// unlimited codes; UsageCount never exceeds MaxUses, even under concurrent
// redemption (enforced by CodeRepository.TryRedeem).
type DiscountCode struct {
	ID         string
	DiscountID string
	Code       string
	ExpiresAt  *time.Time
	MaxUses    *int
	UsageCount int
}

// CartItem is a cart line with catalog membership ids pre-resolved by the
// caller; the engine never queries the catalog itself.
type CartItem struct {
	ProductID     string
	CategoryIDs   []string
	CollectionIDs []string
	BrandID       string
	Quantity      int
	UnitPrice     decimal.Decimal
}

// LineTotal returns quantity * unit price.
func (it CartItem) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// EvaluationContext is the immutable input of a single evaluation.
type EvaluationContext struct {
	CurrencyCode string
	ChannelID    string
	Code         string
	Now          time.Time
	UserID       string   // empty for anonymous carts
	GroupIDs     []string // customer group memberships, pre-resolved by the caller
	Subtotal     decimal.Decimal
	Items        []CartItem
}

// AppliedDiscount is one entry of the evaluation result's breakdown.
type AppliedDiscount struct {
	DiscountID string
	Amount     decimal.Decimal
	Scope      string
}

// EvaluationResult is the discount breakdown for one evaluation.
type EvaluationResult struct {
	DiscountTotal    decimal.Decimal
	AppliedDiscounts []AppliedDiscount
	FreeShipping     bool
	CodeStatus       RedemptionStatus
}

// Candidate pairs a discount with the subtotal its scope matched.
type Candidate struct {
	Discount       Discount
	ScopedSubtotal decimal.Decimal
}

// DiscountRepository provides read access to discount rules.
type DiscountRepository interface {
	// FindActiveCandidates returns active automatic discounts compatible with
	// the channel, currency, and instant. Discounts bound to codes are not
	// returned; they enter evaluation only through their code.
	FindActiveCandidates(ctx context.Context, channelID, currencyCode string, now time.Time) ([]Discount, error)
	// FindByID returns ErrDiscountNotFound for unknown ids.
	FindByID(ctx context.Context, id string) (*Discount, error)
}

// CodeRepository provides lookup and atomic redemption of discount codes.
type CodeRepository interface {
	// FindByCode matches case-insensitively and returns ErrCodeNotFound for
	// unknown codes.
	FindByCode(ctx context.Context, code string) (*DiscountCode, error)
	// TryRedeem increments the code's usage count with a conditional write
	// guarded by usage_count < max_uses (unconditional for unlimited codes).
	// It returns false when the guard rejected the increment.
	TryRedeem(ctx context.Context, codeID string) (bool, error)
}

// OrderRepository exposes the order history lookup needed by first-order
// eligibility checks.
type OrderRepository interface {
	HasCompletedOrder(ctx context.Context, userID string) (bool, error)
}
