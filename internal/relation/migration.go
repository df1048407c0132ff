package relation

import (
	"sort"

	"github.com/hurttlocker/lendgraph/internal/loan"
)

// Migration records one churned borrower moving between two lenders.
type Migration struct {
	Borrower string `json:"borrower"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// Flow is a directed, weighted lender-to-lender edge: the number of distinct
// churned borrowers who moved from From to To.
type Flow struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int    `json:"count"`
}

// MigrationTriples lists, per churned borrower, the (borrower, from, to)
// movement implied by the lost-borrower and last-lender indices. The
// from != to check is implied by the lost definition but verified anyway,
// so a self-transition can never leak into flow counts.
//
// Output order is deterministic: sorted by from, then to, then borrower.
func MigrationTriples(idx Indices) []Migration {
	lost := LostBorrowers(idx)

	var triples []Migration
	for from, borrowers := range lost {
		for borrower := range borrowers {
			to, ok := idx.LastLender[borrower]
			if !ok || to == "" || to == from {
				continue
			}
			triples = append(triples, Migration{Borrower: borrower, From: from, To: to})
		}
	}

	sort.Slice(triples, func(i, j int) bool {
		if triples[i].From != triples[j].From {
			return triples[i].From < triples[j].From
		}
		if triples[i].To != triples[j].To {
			return triples[i].To < triples[j].To
		}
		return triples[i].Borrower < triples[j].Borrower
	})
	return triples
}

// MigrationFlows aggregates migration triples into per-(from, to) counts.
// Flows are sorted by descending count, then from, then to, so callers can
// render the heaviest movements first without re-sorting.
func MigrationFlows(records []loan.Record) []Flow {
	return FlowsFromIndices(BuildIndices(records))
}

// FlowsFromIndices is MigrationFlows for callers who already built indices.
func FlowsFromIndices(idx Indices) []Flow {
	counts := make(map[[2]string]int)
	for _, m := range MigrationTriples(idx) {
		counts[[2]string{m.From, m.To}]++
	}

	flows := make([]Flow, 0, len(counts))
	for pair, n := range counts {
		flows = append(flows, Flow{From: pair[0], To: pair[1], Count: n})
	}

	sort.Slice(flows, func(i, j int) bool {
		if flows[i].Count != flows[j].Count {
			return flows[i].Count > flows[j].Count
		}
		if flows[i].From != flows[j].From {
			return flows[i].From < flows[j].From
		}
		return flows[i].To < flows[j].To
	})
	return flows
}
