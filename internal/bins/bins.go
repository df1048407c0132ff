// Package bins derives adaptive loan-amount bins and the per-lender counts
// within them.
//
// Bin boundaries come from a fixed candidate ladder, but which ladder rungs
// survive depends on data density: an edge only becomes a bin boundary when
// enough observations fall on its thin side, so sparse tails collapse into
// "Under $X" and "Over $X" extreme bins instead of rendering as noisy
// near-empty chart rows.
package bins

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hurttlocker/lendgraph/internal/loan"
)

// DefaultCandidates is the domain ladder of candidate bin edges.
var DefaultCandidates = []int64{
	100_000,
	250_000,
	500_000,
	1_000_000,
	2_500_000,
	5_000_000,
	10_000_000,
}

// Binning is a derived set of bin boundaries and labels.
//
// Edges are ascending. Labels has len(Edges)+1 entries: Labels[0] covers
// (-inf, Edges[0]), Labels[i] covers [Edges[i-1], Edges[i]), and the last
// label covers [Edges[last], +inf). Bins are half-open, lower-inclusive, so
// every numeric amount lands in exactly one bin.
type Binning struct {
	Edges  []int64  `json:"edges"`
	Labels []string `json:"labels"`
}

// Derive selects bin edges from the candidate ladder so that the extreme
// bins are populated: the lowest candidate with more than minPopulation
// values below it becomes the "Under $X" bin, and the highest candidate
// with more than minPopulation values at or above it becomes the "Over $X"
// bin. Candidates strictly between the two keep plain range labels.
//
// When no candidate satisfies the constraint the most extreme candidate is
// used anyway: thin data produces a coarse binning, never an error. The
// only rejected inputs are a negative minPopulation and an empty ladder.
func Derive(values []float64, candidates []int64, minPopulation int) (Binning, error) {
	if minPopulation < 0 {
		return Binning{}, fmt.Errorf("minPopulation must be >= 0, got %d", minPopulation)
	}
	ladder := dedupeSorted(candidates)
	if len(ladder) == 0 {
		return Binning{}, fmt.Errorf("no candidate edges")
	}

	minEdge := ladder[len(ladder)-1] // fallback: coarsest under bin
	for _, edge := range ladder {
		if countBelow(values, edge) > minPopulation {
			minEdge = edge
			break
		}
	}

	maxEdge := ladder[0] // fallback: coarsest over bin
	for i := len(ladder) - 1; i >= 0; i-- {
		if countAtOrAbove(values, ladder[i]) > minPopulation {
			maxEdge = ladder[i]
			break
		}
	}

	// Independent fallbacks can cross on thin data; never emit an
	// inverted range.
	if maxEdge < minEdge {
		maxEdge = minEdge
	}

	var edges []int64
	for _, edge := range ladder {
		if edge >= minEdge && edge <= maxEdge {
			edges = append(edges, edge)
		}
	}

	labels := make([]string, 0, len(edges)+1)
	labels = append(labels, "Under "+abbrevDollars(edges[0]))
	for i := 1; i < len(edges); i++ {
		labels = append(labels, rangeLabel(edges[i-1], edges[i]))
	}
	labels = append(labels, "Over "+abbrevDollars(edges[len(edges)-1]))

	return Binning{Edges: edges, Labels: labels}, nil
}

// Ladder is the full default ladder with no adaptive collapsing, used where
// segments must share identical bins (market monopoly scoring). The bottom
// bin reads "$0 - $100K" and the top "Over $10M".
func Ladder() Binning {
	edges := append([]int64(nil), DefaultCandidates...)
	labels := make([]string, 0, len(edges)+1)
	labels = append(labels, rangeLabel(0, edges[0]))
	for i := 1; i < len(edges); i++ {
		labels = append(labels, rangeLabel(edges[i-1], edges[i]))
	}
	labels = append(labels, "Over "+abbrevDollars(edges[len(edges)-1]))
	return Binning{Edges: edges, Labels: labels}
}

// BinFor returns the label of the bin containing the amount.
func (b Binning) BinFor(amount float64) string {
	i := sort.Search(len(b.Edges), func(i int) bool {
		return amount < float64(b.Edges[i])
	})
	return b.Labels[i]
}

// LabelRank maps each label to its position, lowest bin first, for
// order-sensitive chart rendering.
func (b Binning) LabelRank() map[string]int {
	rank := make(map[string]int, len(b.Labels))
	for i, label := range b.Labels {
		rank[label] = i
	}
	return rank
}

// ShareCount is the loan count for one (lender, bin) pair, the row shape a
// stacked or 100%-normalized bar chart consumes directly.
type ShareCount struct {
	Lender string `json:"lender"`
	Bin    string `json:"bin"`
	Count  int    `json:"count"`
}

// Assign buckets every record with a parseable amount into exactly one bin
// and tallies loan counts per (lender, bin). Records with unparsable
// amounts or a missing lender are excluded from binning only; they remain
// part of the dataset for other computations.
//
// Rows come back sorted by bin order, then lender, independent of map
// iteration order.
func Assign(records []loan.Record, b Binning) []ShareCount {
	type key struct {
		lender string
		bin    int
	}
	counts := make(map[key]int)
	for _, rec := range records {
		if rec.Lender == "" {
			continue
		}
		amount, ok := loan.ParseAmount(rec.Amount)
		if !ok {
			continue
		}
		i := sort.Search(len(b.Edges), func(i int) bool {
			return amount < float64(b.Edges[i])
		})
		counts[key{rec.Lender, i}]++
	}

	rows := make([]ShareCount, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, ShareCount{Lender: k.lender, Bin: b.Labels[k.bin], Count: n})
	}
	rank := b.LabelRank()
	sort.Slice(rows, func(i, j int) bool {
		if rank[rows[i].Bin] != rank[rows[j].Bin] {
			return rank[rows[i].Bin] < rank[rows[j].Bin]
		}
		return rows[i].Lender < rows[j].Lender
	})
	return rows
}

func countBelow(values []float64, edge int64) int {
	n := 0
	for _, v := range values {
		if v < float64(edge) {
			n++
		}
	}
	return n
}

func countAtOrAbove(values []float64, edge int64) int {
	n := 0
	for _, v := range values {
		if v >= float64(edge) {
			n++
		}
	}
	return n
}

func dedupeSorted(candidates []int64) []int64 {
	out := append([]int64(nil), candidates...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	dst := out[:0]
	var prev int64 = -1
	for _, e := range out {
		if e <= 0 || e == prev {
			continue
		}
		dst = append(dst, e)
		prev = e
	}
	return dst
}

func rangeLabel(lo, hi int64) string {
	return abbrevDollars(lo) + " - " + abbrevDollars(hi)
}

// abbrevDollars renders an edge the way the chart labels read: $0, $100K,
// $2.5M.
func abbrevDollars(v int64) string {
	switch {
	case v >= 1_000_000:
		return "$" + trimZeros(float64(v)/1_000_000) + "M"
	case v >= 1_000:
		return "$" + trimZeros(float64(v)/1_000) + "K"
	default:
		return "$" + strconv.FormatInt(v, 10)
	}
}

func trimZeros(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
