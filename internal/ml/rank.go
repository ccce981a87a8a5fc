package ml

import (
	"cmp"
	"math"
	"slices"
)

// Rank returns a copy of preds ordered by probability, highest first. Equal
// probabilities keep their incoming order, so ties follow the model's class
// order.
func Rank(preds []Prediction) []Prediction {
	out := slices.Clone(preds)
	slices.SortStableFunc(out, func(a, b Prediction) int {
		return cmp.Compare(b.Probability, a.Probability)
	})
	return out
}

// Round rounds x to the given number of decimal digits. Apply it only after
// ranking.
func Round(x float64, digits int) float64 {
	pow := math.Pow(10, float64(digits))
	return math.Round(x*pow) / pow
}
