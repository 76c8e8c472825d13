package service

import "math"

// ComputeTotal derives the amount payable from a base price and the discount
// snapshot. A custom discount, when present, replaces the course discount
// entirely rather than stacking with it. The result is rounded half to even
// at two decimals and never negative.
func ComputeTotal(basePrice, courseDiscountPct float64, customDiscountPct *float64) float64 {
	pct := courseDiscountPct
	if customDiscountPct != nil {
		pct = *customDiscountPct
	}
	total := basePrice * (1 - pct/100)
	total = math.RoundToEven(total*100) / 100
	if total < 0 {
		return 0
	}
	return total
}
