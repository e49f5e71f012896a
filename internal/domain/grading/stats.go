package grading

import (
	"errors"

	"github.com/montanaflynn/stats"

	"github.com/calculus-oom/gradebook/internal/domain/shared"
)

// ErrEmptySample is returned by Average and Median for an empty input.
var ErrEmptySample = errors.New("empty sample")

// Average returns the arithmetic mean of values.
func Average(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptySample
	}
	return stats.Mean(stats.Float64Data(values))
}

// Median returns the median of values; even-sized samples average the two
// middle values.
func Median(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptySample
	}
	return stats.Median(stats.Float64Data(values))
}

// FilterValid keeps the values that parse as scores in [0, 100].
// Empty, non-numeric and out-of-range strings are dropped.
func FilterValid(raw []string) []float64 {
	values := make([]float64, 0, len(raw))
	for _, s := range raw {
		if s == "" {
			continue
		}
		if v, ok := shared.ParseScore(s); ok {
			values = append(values, v)
		}
	}
	return values
}
