// Package metrics computes per-party loan counts, dollar volume, and the
// descriptive aggregates the dashboard headline numbers come from.
//
// Two amount-coercion policies coexist on purpose. Sum-style aggregates
// (volume, totals) coerce unparsable amounts to 0 so a dirty row still
// counts as a loan; averages and outlier detection exclude such rows
// entirely so the 0 sentinel cannot drag the mean toward zero.
package metrics

import (
	"sort"

	"github.com/hurttlocker/lendgraph/internal/loan"
)

// BorrowerVolume sums loan amounts per borrower across all lenders.
func BorrowerVolume(records []loan.Record) map[string]int64 {
	return partyVolume(records, loan.RoleBorrower)
}

// LenderVolume sums loan amounts per lender.
func LenderVolume(records []loan.Record) map[string]int64 {
	return partyVolume(records, loan.RoleLender)
}

func partyVolume(records []loan.Record, role loan.Role) map[string]int64 {
	volume := make(map[string]int64)
	for _, rec := range records {
		name := role.PartyName(rec)
		if name == "" {
			continue
		}
		volume[name] += int64(rec.AmountOrZero())
	}
	return volume
}

// LoanCounts counts loans per party for the given role.
func LoanCounts(records []loan.Record, role loan.Role) map[string]int {
	counts := make(map[string]int)
	for _, rec := range records {
		if name := role.PartyName(rec); name != "" {
			counts[name]++
		}
	}
	return counts
}

// BorrowerCountsForLender counts loans per borrower restricted to a single
// lender.
func BorrowerCountsForLender(records []loan.Record, lender string) map[string]int {
	counts := make(map[string]int)
	for _, rec := range records {
		if rec.Lender != lender || rec.Borrower == "" {
			continue
		}
		counts[rec.Borrower]++
	}
	return counts
}

// BorrowerVolumeForLender sums loan amounts per borrower restricted to a
// single lender.
func BorrowerVolumeForLender(records []loan.Record, lender string) map[string]int64 {
	volume := make(map[string]int64)
	for _, rec := range records {
		if rec.Lender != lender || rec.Borrower == "" {
			continue
		}
		volume[rec.Borrower] += int64(rec.AmountOrZero())
	}
	return volume
}

// TotalVolume sums all loan amounts, with unparsable amounts contributing 0.
func TotalVolume(records []loan.Record) int64 {
	var total int64
	for _, rec := range records {
		total += int64(rec.AmountOrZero())
	}
	return total
}

// AverageAmount returns the mean loan amount over records whose amount
// parses. Unparsable amounts are excluded from both the numerator and the
// denominator; an input with no valid amounts yields 0.
func AverageAmount(records []loan.Record) float64 {
	var sum float64
	var n int
	for _, rec := range records {
		v, ok := loan.ParseAmount(rec.Amount)
		if !ok {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Amounts extracts the parseable loan amounts in encounter order.
func Amounts(records []loan.Record) []float64 {
	var values []float64
	for _, rec := range records {
		if v, ok := loan.ParseAmount(rec.Amount); ok {
			values = append(values, v)
		}
	}
	return values
}

// MonthlyCounts buckets loans into calendar months by their date field.
// Index 0 is January. Records with missing or malformed dates are skipped.
func MonthlyCounts(records []loan.Record) [12]int {
	var counts [12]int
	for _, rec := range records {
		t, ok := loan.ParseDate(rec.Date)
		if !ok {
			continue
		}
		counts[int(t.Month())-1]++
	}
	return counts
}

// TopByCount returns the records belonging to the n parties with the most
// loans. Ties are broken by encounter order, and the result preserves the
// input's record order: this is a filter by membership, not a projection.
func TopByCount(records []loan.Record, role loan.Role, n int) []loan.Record {
	counts := LoanCounts(records, role)
	metric := make(map[string]int64, len(counts))
	for name, c := range counts {
		metric[name] = int64(c)
	}
	return filterTopParties(records, role, metric, n)
}

// TopByVolume returns the records belonging to the n parties with the
// largest total loan volume.
func TopByVolume(records []loan.Record, role loan.Role, n int) []loan.Record {
	return filterTopParties(records, role, partyVolume(records, role), n)
}

func filterTopParties(records []loan.Record, role loan.Role, metric map[string]int64, n int) []loan.Record {
	if n <= 0 || len(metric) == 0 {
		return nil
	}

	// Rank by first appearance so equal metrics keep encounter order.
	firstSeen := make(map[string]int, len(metric))
	order := make([]string, 0, len(metric))
	for i, rec := range records {
		name := role.PartyName(rec)
		if name == "" {
			continue
		}
		if _, ok := firstSeen[name]; !ok {
			firstSeen[name] = i
			order = append(order, name)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return metric[order[i]] > metric[order[j]]
	})
	if n > len(order) {
		n = len(order)
	}

	selected := make(map[string]bool, n)
	for _, name := range order[:n] {
		selected[name] = true
	}

	var out []loan.Record
	for _, rec := range records {
		if selected[role.PartyName(rec)] {
			out = append(out, rec)
		}
	}
	return out
}
