// Package relation derives borrower/lender relationship indices and the
// churn and migration analytics built on top of them.
//
// Everything here is a pure function of the input record slice: no I/O, no
// retained state, and no dependence on map iteration order in any output.
// Record-level data problems (missing party names, missing dates) exclude
// the record from the affected index and nothing else.
package relation

import (
	"github.com/hurttlocker/lendgraph/internal/loan"
)

// Indices holds the three foundational relationship indices every other
// computation consumes.
type Indices struct {
	// LastLender maps each borrower to the lender of their chronologically
	// latest loan.
	LastLender map[string]string

	// BorrowerLenders maps each borrower to the set of lenders they have
	// ever used.
	BorrowerLenders map[string]map[string]bool

	// LenderBorrowers maps each lender to the set of borrowers they have
	// ever served.
	LenderBorrowers map[string]map[string]bool
}

// BuildIndices computes the relationship indices in a single pass over the
// records. Records missing a borrower, lender, or date are skipped.
//
// Last-lender comparison is a strictly-greater string comparison over ISO
// dates, so when two loans share the identical latest date the first record
// seen wins. The tie-break is deliberate: input order is the dataset's
// encounter order, and keeping the first matches stable-sort behavior.
func BuildIndices(records []loan.Record) Indices {
	idx := Indices{
		LastLender:      make(map[string]string),
		BorrowerLenders: make(map[string]map[string]bool),
		LenderBorrowers: make(map[string]map[string]bool),
	}

	latestDate := make(map[string]string)

	for _, rec := range records {
		if rec.Borrower == "" || rec.Lender == "" || rec.Date == "" {
			continue
		}

		if prev, ok := latestDate[rec.Borrower]; !ok || rec.Date > prev {
			latestDate[rec.Borrower] = rec.Date
			idx.LastLender[rec.Borrower] = rec.Lender
		}

		lenders := idx.BorrowerLenders[rec.Borrower]
		if lenders == nil {
			lenders = make(map[string]bool)
			idx.BorrowerLenders[rec.Borrower] = lenders
		}
		lenders[rec.Lender] = true

		borrowers := idx.LenderBorrowers[rec.Lender]
		if borrowers == nil {
			borrowers = make(map[string]bool)
			idx.LenderBorrowers[rec.Lender] = borrowers
		}
		borrowers[rec.Borrower] = true
	}

	return idx
}
