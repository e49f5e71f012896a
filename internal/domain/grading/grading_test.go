package grading

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightedTotal(t *testing.T) {
	scores := map[string]float64{"Quiz 1": 80, "Midterm": 90, "Quiz 2": 70, "Final Exam": 85}
	weights := map[string]float64{"Quiz 1": .2, "Midterm": .3, "Quiz 2": .2, "Final Exam": .3}

	assert.InDelta(t, 82.5, WeightedTotal(scores, weights), 1e-9)
}

func TestWeightedTotal_SkipsMissingWeights(t *testing.T) {
	scores := map[string]float64{"Quiz 1": 80, "Midterm": 90}
	weights := map[string]float64{"Quiz 1": .5, "Bonus": .5}

	assert.InDelta(t, 40.0, WeightedTotal(scores, weights), 1e-9)
	assert.Zero(t, WeightedTotal(scores, nil))
}

func TestIsPassing_InclusiveBoundary(t *testing.T) {
	assert.False(t, IsPassing(59.999, 60))
	assert.True(t, IsPassing(60.0, 60))
	assert.True(t, IsPassing(100, 60))
}

func TestCheckWeightSum(t *testing.T) {
	d := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }

	t.Run("exact decimal sum", func(t *testing.T) {
		err := CheckWeightSum([]decimal.Decimal{d("0.1"), d("0.2"), d("0.7")}, decimal.Zero)
		assert.NoError(t, err)
	})

	t.Run("off by a little fails exact check", func(t *testing.T) {
		err := CheckWeightSum([]decimal.Decimal{d("0.2"), d("0.3"), d("0.2"), d("0.2999")}, decimal.Zero)
		assert.ErrorIs(t, err, ErrWeightSum)
	})

	t.Run("within tolerance", func(t *testing.T) {
		err := CheckWeightSum([]decimal.Decimal{d("0.2"), d("0.3"), d("0.2"), d("0.2999")}, d("0.001"))
		assert.NoError(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		assert.ErrorIs(t, CheckWeightSum(nil, d("0.001")), ErrWeightSum)
	})
}

func TestParseWeight(t *testing.T) {
	w, err := ParseWeight("0.25")
	require.NoError(t, err)
	assert.Equal(t, "0.25", w.String())

	_, err = ParseWeight("abc")
	assert.ErrorIs(t, err, ErrInvalidWeight)

	_, err = ParseWeight("-0.1")
	assert.ErrorIs(t, err, ErrInvalidWeight)
}

func TestRoundScore(t *testing.T) {
	assert.Equal(t, "81.5", RoundScore(81.5))
	assert.Equal(t, "66.67", RoundScore(66.6666))
	assert.Equal(t, "100", RoundScore(100))
	assert.Equal(t, 66.67, Round2(66.6666))
}

func TestRoundScore_NonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.NotPanics(t, func() {
			assert.Equal(t, "", RoundScore(v))
			assert.Equal(t, 0.0, Round2(v))
		})
	}
}

func TestAverageAndMedian_EmptySample(t *testing.T) {
	_, err := Average(nil)
	assert.ErrorIs(t, err, ErrEmptySample)

	_, err = Median([]float64{})
	assert.ErrorIs(t, err, ErrEmptySample)
}

func TestAverageAndMedian(t *testing.T) {
	avg, err := Average([]float64{60, 70, 80, 90})
	require.NoError(t, err)
	assert.InDelta(t, 75.0, avg, 1e-9)

	med, err := Median([]float64{90, 60, 80, 70})
	require.NoError(t, err)
	assert.InDelta(t, 75.0, med, 1e-9)

	med, err = Median([]float64{3, 1, 2})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, med, 1e-9)
}

func TestFilterValid(t *testing.T) {
	got := FilterValid([]string{"80", "", "abc", "101", "-1", "0", "100", "55.5"})
	assert.Equal(t, []float64{80, 0, 100, 55.5}, got)
}

func TestHistogram_TenBuckets(t *testing.T) {
	h, err := NewHistogram([]float64{5, 15, 25, 100}, 10)
	require.NoError(t, err)
	require.Len(t, h, 10)

	assert.Equal(t, "0-9", h[0].Label)
	assert.Equal(t, "90-100", h[9].Label)
	assert.Equal(t, 100, h[9].Upper)

	counts := h.Counts()
	assert.Equal(t, 1, counts["0-9"])
	assert.Equal(t, 1, counts["10-19"])
	assert.Equal(t, 1, counts["20-29"])
	assert.Equal(t, 1, counts["90-100"])
	for _, label := range []string{"30-39", "40-49", "50-59", "60-69", "70-79", "80-89"} {
		assert.Zero(t, counts[label], label)
	}
}

func TestHistogram_BucketCount(t *testing.T) {
	tests := []struct {
		width     int
		wantLen   int
		wantLabel string
	}{
		{width: 10, wantLen: 10, wantLabel: "90-100"},
		{width: 30, wantLen: 4, wantLabel: "90-100"},
		{width: 7, wantLen: 15, wantLabel: "98-100"},
		{width: 100, wantLen: 1, wantLabel: "0-100"},
	}
	for _, tt := range tests {
		h, err := NewHistogram(nil, tt.width)
		require.NoError(t, err)
		assert.Len(t, h, tt.wantLen)
		assert.Equal(t, tt.wantLabel, h[len(h)-1].Label)
	}
}

func TestHistogram_IgnoresOutOfDomain(t *testing.T) {
	h, err := NewHistogram([]float64{-5, 150, 50}, 10)
	require.NoError(t, err)

	total := 0
	for _, b := range h {
		total += b.Count
	}
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, h.Counts()["50-59"])
}

func TestHistogram_InvalidWidth(t *testing.T) {
	_, err := NewHistogram([]float64{1}, 0)
	assert.Error(t, err)
}
