package relation

import (
	"sort"

	"github.com/hurttlocker/lendgraph/internal/loan"
)

// LostBorrowers returns, per lender, the borrowers they served whose most
// recent loan went to a different lender. Lenders who lost nobody are
// omitted from the result.
func LostBorrowers(idx Indices) map[string]map[string]bool {
	lost := make(map[string]map[string]bool)
	for lender, borrowers := range idx.LenderBorrowers {
		for borrower := range borrowers {
			if idx.LastLender[borrower] == lender {
				continue
			}
			set := lost[lender]
			if set == nil {
				set = make(map[string]bool)
				lost[lender] = set
			}
			set[borrower] = true
		}
	}
	return lost
}

// GainedBorrowers returns, per lender, the borrowers whose most recent loan
// is with that lender and who have borrowed from at least one other lender
// at some point. A borrower whose only lender ever is L is never gained by
// L, regardless of loan count.
func GainedBorrowers(idx Indices) map[string]map[string]bool {
	gained := make(map[string]map[string]bool)
	for borrower, last := range idx.LastLender {
		if last == "" {
			continue
		}
		if len(idx.BorrowerLenders[borrower]) < 2 {
			continue
		}
		set := gained[last]
		if set == nil {
			set = make(map[string]bool)
			gained[last] = set
		}
		set[borrower] = true
	}
	return gained
}

// RepeatBorrowers returns, per lender, the borrowers with more than one loan
// from that lender. Lenders with no repeat borrowers are omitted.
func RepeatBorrowers(records []loan.Record) map[string]map[string]bool {
	counts := make(map[string]map[string]int)
	for _, rec := range records {
		if rec.Lender == "" || rec.Borrower == "" {
			continue
		}
		byBorrower := counts[rec.Lender]
		if byBorrower == nil {
			byBorrower = make(map[string]int)
			counts[rec.Lender] = byBorrower
		}
		byBorrower[rec.Borrower]++
	}

	repeat := make(map[string]map[string]bool)
	for lender, byBorrower := range counts {
		for borrower, n := range byBorrower {
			if n <= 1 {
				continue
			}
			set := repeat[lender]
			if set == nil {
				set = make(map[string]bool)
				repeat[lender] = set
			}
			set[borrower] = true
		}
	}
	return repeat
}

// SortedMembers flattens a name set into a sorted slice for order-sensitive
// consumers (display, JSON payloads).
func SortedMembers(set map[string]bool) []string {
	members := make([]string, 0, len(set))
	for name := range set {
		members = append(members, name)
	}
	sort.Strings(members)
	return members
}
