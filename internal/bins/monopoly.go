package bins

import (
	"math"
	"sort"

	"github.com/hurttlocker/lendgraph/internal/loan"
)

const (
	// DefaultMinCityLoans drops cities too small to segment.
	DefaultMinCityLoans = 20
	// DefaultMinBinLoans drops (city, bin) segments too thin to score.
	DefaultMinBinLoans = 10
)

// MonopolyOptions bounds which market segments get scored.
type MonopolyOptions struct {
	MinCityLoans int
	MinBinLoans  int
}

// Normalize fills zero fields with defaults.
func (o *MonopolyOptions) Normalize() {
	if o.MinCityLoans <= 0 {
		o.MinCityLoans = DefaultMinCityLoans
	}
	if o.MinBinLoans <= 0 {
		o.MinBinLoans = DefaultMinBinLoans
	}
}

// SegmentScore is the lender-concentration score for one (city, amount bin)
// market segment. Score is the sample standard deviation of the lenders'
// percent shares of the segment's loans: high spread means one or two
// lenders dominate, low spread means share is evenly divided.
type SegmentScore struct {
	City     string  `json:"city"`
	Bin      string  `json:"bin"`
	BinLoans int     `json:"bin_loans"`
	Lenders  int     `json:"lenders"`
	Score    float64 `json:"score"`
}

// MonopolyScores computes concentration scores for every (city, bin)
// segment that clears the population thresholds. All cities share the full
// fixed ladder so segment scores are comparable across cities.
//
// Segments with a single lender are skipped: share spread needs at least
// two participants. Output is sorted city then bin order.
func MonopolyScores(records []loan.Record, opts MonopolyOptions) []SegmentScore {
	opts.Normalize()
	ladder := Ladder()
	rank := ladder.LabelRank()

	byCity := make(map[string][]loan.Record)
	for _, rec := range records {
		if rec.City == "" {
			continue
		}
		byCity[rec.City] = append(byCity[rec.City], rec)
	}

	var scores []SegmentScore
	for city, cityRecords := range byCity {
		if len(cityRecords) < opts.MinCityLoans {
			continue
		}

		rows := Assign(cityRecords, ladder)

		binTotals := make(map[string]int)
		binLenders := make(map[string][]int)
		for _, row := range rows {
			binTotals[row.Bin] += row.Count
			binLenders[row.Bin] = append(binLenders[row.Bin], row.Count)
		}

		for bin, total := range binTotals {
			if total < opts.MinBinLoans {
				continue
			}
			lenderCounts := binLenders[bin]
			if len(lenderCounts) < 2 {
				continue
			}
			shares := make([]float64, len(lenderCounts))
			for i, n := range lenderCounts {
				shares[i] = float64(n) / float64(total) * 100
			}
			scores = append(scores, SegmentScore{
				City:     city,
				Bin:      bin,
				BinLoans: total,
				Lenders:  len(lenderCounts),
				Score:    sampleStdDev(shares),
			})
		}
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].City != scores[j].City {
			return scores[i].City < scores[j].City
		}
		return rank[scores[i].Bin] < rank[scores[j].Bin]
	})
	return scores
}

// TopMonopolized returns the n segments with the highest concentration.
func TopMonopolized(scores []SegmentScore, n int) []SegmentScore {
	return topByScore(scores, n, true)
}

// TopDiverse returns the n segments with the most evenly divided share.
func TopDiverse(scores []SegmentScore, n int) []SegmentScore {
	return topByScore(scores, n, false)
}

func topByScore(scores []SegmentScore, n int, desc bool) []SegmentScore {
	out := append([]SegmentScore(nil), scores...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			if desc {
				return out[i].Score > out[j].Score
			}
			return out[i].Score < out[j].Score
		}
		if out[i].City != out[j].City {
			return out[i].City < out[j].City
		}
		return out[i].Bin < out[j].Bin
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
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
	return math.Sqrt(sq / float64(len(values)-1))
}
