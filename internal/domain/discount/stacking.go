package discount

import (
	"cmp"
	"slices"
)

// ResolveStacking orders the candidates deterministically and resolves
// stack-vs-exclusive conflicts. Candidates are sorted by priority ascending
// with id as the tie-break, then walked in order:
//
//   - A Stack candidate is always applied.
//   - An Exclusive candidate is applied only when nothing has been applied
//     yet, and then locks the list; an Exclusive candidate behind already
//     applied discounts is skipped, never retroactively clears them.
//
// The returned slice preserves application order.
func ResolveStacking(candidates []Candidate) []Candidate {
	sorted := slices.Clone(candidates)
	slices.SortStableFunc(sorted, func(a, b Candidate) int {
		if c := cmp.Compare(a.Discount.Priority, b.Discount.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.Discount.ID, b.Discount.ID)
	})

	applied := make([]Candidate, 0, len(sorted))
	for _, c := range sorted {
		if c.Discount.Stacking == StackingExclusive {
			if len(applied) > 0 {
				continue
			}
			return append(applied, c)
		}
		applied = append(applied, c)
	}
	return applied
}
