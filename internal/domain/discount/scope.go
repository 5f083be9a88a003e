package discount

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// ScopedSubtotal returns the portion of the cart the scope covers: the whole
// cart subtotal for cart scope, otherwise the sum of line totals over items
// whose product/category/collection/brand id is in the target set.
func ScopedSubtotal(s Scope, cartSubtotal decimal.Decimal, items []CartItem) decimal.Decimal {
	if s.ApplyTo == ApplyToCart {
		return cartSubtotal
	}

	sum := decimal.Zero
	for _, it := range items {
		if s.matches(it) {
			sum = sum.Add(it.LineTotal())
		}
	}
	return sum
}

// matches reports whether the scope covers the given cart item.
func (s Scope) matches(it CartItem) bool {
	switch s.ApplyTo {
	case ApplyToProduct:
		return slices.Contains(s.TargetIDs, it.ProductID)
	case ApplyToCategory:
		return anyOverlap(s.TargetIDs, it.CategoryIDs)
	case ApplyToCollection:
		return anyOverlap(s.TargetIDs, it.CollectionIDs)
	case ApplyToBrand:
		return it.BrandID != "" && slices.Contains(s.TargetIDs, it.BrandID)
	default:
		return false
	}
}

// Description renders the scope for result breakdowns, e.g. "cart" or
// "category:shoes,boots".
func (s Scope) Description() string {
	if s.ApplyTo == ApplyToCart {
		return string(ApplyToCart)
	}
	return string(s.ApplyTo) + ":" + strings.Join(s.TargetIDs, ",")
}

func anyOverlap(targets, ids []string) bool {
	for _, id := range ids {
		if slices.Contains(targets, id) {
			return true
		}
	}
	return false
}
