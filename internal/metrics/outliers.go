package metrics

import (
	"math"
	"sort"

	"github.com/hurttlocker/lendgraph/internal/loan"
)

// OutlierStrategy flags outliers in a value slice. The returned mask is
// parallel to the input.
type OutlierStrategy func(values []float64, threshold float64) []bool

// StdDevOutliers flags values more than threshold standard deviations from
// the mean. A zero standard deviation flags nothing.
func StdDevOutliers(values []float64, threshold float64) []bool {
	mask := make([]bool, len(values))
	if len(values) == 0 {
		return mask
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(values)))
	if std == 0 {
		return mask
	}

	lower := mean - threshold*std
	upper := mean + threshold*std
	for i, v := range values {
		mask[i] = v < lower || v > upper
	}
	return mask
}

// ModifiedZScoreOutliers flags values whose modified z-score
// 0.6745*(v-median)/MAD exceeds the threshold in magnitude. A zero MAD
// flags nothing.
func ModifiedZScoreOutliers(values []float64, threshold float64) []bool {
	mask := make([]bool, len(values))
	if len(values) == 0 {
		return mask
	}

	med := median(values)
	dev := make([]float64, len(values))
	for i, v := range values {
		dev[i] = math.Abs(v - med)
	}
	mad := median(dev)
	if mad == 0 {
		return mask
	}

	for i, v := range values {
		score := 0.6745 * (v - med) / mad
		mask[i] = math.Abs(score) > threshold
	}
	return mask
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// FilterOutliers drops records flagged as amount outliers by the strategy.
// Records whose amount does not parse are dropped first, before the
// strategy runs, matching the data-prep pipeline: outlier statistics must
// never see the 0 sentinel.
func FilterOutliers(records []loan.Record, strategy OutlierStrategy, threshold float64) []loan.Record {
	kept := make([]loan.Record, 0, len(records))
	values := make([]float64, 0, len(records))
	for _, rec := range records {
		v, ok := loan.ParseAmount(rec.Amount)
		if !ok {
			continue
		}
		kept = append(kept, rec)
		values = append(values, v)
	}

	mask := strategy(values, threshold)
	out := make([]loan.Record, 0, len(kept))
	for i, rec := range kept {
		if mask[i] {
			continue
		}
		out = append(out, rec)
	}
	return out
}
