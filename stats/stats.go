// Package stats reduces a price pool to outlier-resistant summary statistics
package stats

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/sig-0/cardprice/storage/types"
)

// fenceFactor is the Tukey multiplier applied to the IQR
const fenceFactor = 1.5

// Percentile returns the q-quantile (0 <= q <= 1) of the sorted values,
// linearly interpolating between the two nearest ranks (R-7 / Excel PERCENTILE.INC)
func Percentile(sorted []float64, q float64) float64 {
	n := len(sorted)

	switch {
	case n == 0:
		return 0
	case n == 1:
		return sorted[0]
	}

	q = math.Max(0, math.Min(1, q))

	var (
		pos  = q * float64(n-1)
		lo   = int(math.Floor(pos))
		hi   = int(math.Ceil(pos))
		frac = pos - float64(lo)
	)

	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// FilterIQR drops the values outside [Q1-1.5*IQR, Q3+1.5*IQR].
// The returned slice is sorted, and the fence is unrounded.
// Fewer than two values are returned as-is
func FilterIQR(prices []float64) ([]float64, types.Fence) {
	sorted := clean(prices)

	if len(sorted) == 0 {
		return nil, types.Fence{}
	}

	var (
		q1  = Percentile(sorted, 0.25)
		q3  = Percentile(sorted, 0.75)
		iqr = q3 - q1
	)

	fence := types.Fence{
		Q1:   q1,
		Q3:   q3,
		IQR:  iqr,
		Low:  q1 - fenceFactor*iqr,
		High: q3 + fenceFactor*iqr,
	}

	if len(sorted) < 2 {
		return sorted, fence
	}

	kept := make([]float64, 0, len(sorted))

	for _, p := range sorted {
		if p < fence.Low || p > fence.High {
			continue
		}

		kept = append(kept, p)
	}

	return kept, fence
}

// Summarize filters the prices and computes the summary statistics over the
// retained set. Monetary fields are rounded to 2 decimals, an empty pool
// yields zero statistics
func Summarize(prices []float64) ([]float64, *types.Stats) {
	kept, fence := FilterIQR(prices)

	summary := &types.Stats{
		Count:    len(kept),
		RawCount: len(clean(prices)),
	}

	if len(kept) == 0 {
		return kept, summary
	}

	summary.Median = Round(Percentile(kept, 0.5))
	summary.P25 = Round(Percentile(kept, 0.25))
	summary.P75 = Round(Percentile(kept, 0.75))
	summary.Low3Avg = Round(stat.Mean(kept[:min(3, len(kept))], nil))
	summary.Filters = types.Fence{
		Q1:   Round(fence.Q1),
		Q3:   Round(fence.Q3),
		IQR:  Round(fence.IQR),
		Low:  Round(fence.Low),
		High: Round(fence.High),
	}

	return kept, summary
}

// Within reports whether the price lies inside the fence
func Within(f types.Fence, price float64) bool {
	return price >= f.Low && price <= f.High
}

// Round rounds to cents
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

// clean returns a sorted copy holding only positive, finite values
func clean(prices []float64) []float64 {
	out := make([]float64, 0, len(prices))

	for _, p := range prices {
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			continue
		}

		out = append(out, p)
	}

	slices.Sort(out)

	return out
}
