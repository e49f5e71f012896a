package grading

import (
	"math"
	"strconv"

	"github.com/calculus-oom/gradebook/internal/domain/shared"
)

// Histogram domain bounds.
const (
	HistogramMin = 0
	HistogramMax = 100
)

// Bucket is one histogram bin covering [Lower, Upper].
type Bucket struct {
	Label string `json:"label"`
	Lower int    `json:"lower"`
	Upper int    `json:"upper"`
	Count int    `json:"count"`
}

// Histogram is the ordered list of buckets over [0, 100].
type Histogram []Bucket

// Counts returns the bucket counts keyed by label.
func (h Histogram) Counts() map[string]int {
	m := make(map[string]int, len(h))
	for _, b := range h {
		m[b.Label] = b.Count
	}
	return m
}

// NewHistogram counts values into buckets of binWidth. Every bucket is
// present even when empty, and the last bucket's upper bound is capped at 100
// so a value of 100 lands there. Values outside [0, 100] are ignored.
func NewHistogram(values []float64, binWidth int) (Histogram, error) {
	if binWidth <= 0 {
		return nil, shared.NewValidationError("grading", "Histogram", "bin width must be positive", "bin_width")
	}

	n := int(math.Ceil(float64(HistogramMax) / float64(binWidth)))
	h := make(Histogram, n)
	for k := range h {
		lower := k * binWidth
		upper := lower + binWidth - 1
		if upper > HistogramMax || k == n-1 {
			upper = HistogramMax
		}
		h[k] = Bucket{
			Label: strconv.Itoa(lower) + "-" + strconv.Itoa(upper),
			Lower: lower,
			Upper: upper,
		}
	}

	for _, v := range values {
		if math.IsNaN(v) || v < HistogramMin || v > HistogramMax {
			continue
		}
		idx := int(math.Floor(v / float64(binWidth)))
		if idx >= n {
			idx = n - 1
		}
		h[idx].Count++
	}
	return h, nil
}
