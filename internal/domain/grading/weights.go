// Package grading holds the pure arithmetic of the gradebook: weighted totals,
// pass/fail decisions, weight sums, descriptive statistics and histograms.
package grading

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrWeightSum is returned when weights do not add up to one.
var ErrWeightSum = errors.New("weights must sum to 1.0")

// ErrInvalidWeight is returned for a weight that is not a non-negative number.
var ErrInvalidWeight = errors.New("invalid weight")

var one = decimal.NewFromInt(1)

// WeightedTotal sums score*weight over the keys present in both maps.
// Keys without a weight contribute nothing.
func WeightedTotal(scores, weights map[string]float64) float64 {
	var total float64
	for name, score := range scores {
		w, ok := weights[name]
		if !ok {
			continue
		}
		total += score * w
	}
	return total
}

// IsPassing reports whether total reaches the threshold. The boundary passes.
func IsPassing(total, threshold float64) bool {
	return total >= threshold
}

// ParseWeight parses a stored weight string.
func ParseWeight(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidWeight, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %q is negative", ErrInvalidWeight, s)
	}
	return d, nil
}

// SumWeights adds weights in decimal arithmetic.
func SumWeights(weights []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, w := range weights {
		sum = sum.Add(w)
	}
	return sum
}

// CheckWeightSum fails with ErrWeightSum unless the weights sum to 1.0 within
// tolerance. A zero tolerance requires exact decimal equality.
func CheckWeightSum(weights []decimal.Decimal, tolerance decimal.Decimal) error {
	if len(weights) == 0 {
		return fmt.Errorf("%w: no weights", ErrWeightSum)
	}
	sum := SumWeights(weights)
	if sum.Sub(one).Abs().GreaterThan(tolerance.Abs()) {
		return fmt.Errorf("%w: got %s", ErrWeightSum, sum.String())
	}
	return nil
}

// RoundScore renders v rounded to two decimals, without trailing zeros.
// A non-finite v renders as the empty (unset) score.
func RoundScore(v float64) string {
	if !finite(v) {
		return ""
	}
	return decimal.NewFromFloat(v).Round(2).String()
}

// Round2 rounds v to two decimals. A non-finite v yields 0.
func Round2(v float64) float64 {
	if !finite(v) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
