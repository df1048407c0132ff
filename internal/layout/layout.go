// Package layout converts a selected slice of loan records into plain
// node/edge graph descriptions for the relationship and timeline network
// views.
//
// Positions must be stable: the dashboard re-queries on every interaction,
// and a node that jumps between renders makes the graph unusable. Nothing
// here uses a random source; one-time parties are jittered by hashing
// their display name, so identical inputs always produce identical
// coordinates.
package layout

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"

	"github.com/hurttlocker/lendgraph/internal/loan"
)

// Node colors. Lost/current one-time and repeat parties share colors with
// their current counterparts; the distinction is positional.
const (
	colorBlack      = "#0F1116"
	colorGreen      = "#00C853"
	colorGreenLight = "#B9F6CA"
	colorPurple     = "#AA00FF"
	colorRed        = "#FF5252"
	colorYellow     = "#FFD600"
)

// Fixed x anchors for the timeline view.
const (
	xRepeatParty  = 0
	xOneTimeParty = 50
	xMonthAnchor  = 400
)

const monthAnchorCount = 12

// Node is a rendering-library-agnostic graph node. Zero X/Y with FixedX and
// FixedY unset means the renderer's physics engine may place it freely.
type Node struct {
	ID         string  `json:"id"`
	Label      string  `json:"label,omitempty"`
	Title      string  `json:"title,omitempty"`
	Shape      string  `json:"shape,omitempty"`
	Color      string  `json:"color"`
	LabelColor string  `json:"label_color,omitempty"`
	Size       int     `json:"size,omitempty"`
	Mass       float64 `json:"mass,omitempty"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	FixedX     bool    `json:"fixed_x,omitempty"`
	FixedY     bool    `json:"fixed_y,omitempty"`
	NoPhysics  bool    `json:"no_physics,omitempty"`
}

// Edge is a directed connection between two node IDs.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Color  string `json:"color"`
	Width  int    `json:"width"`
}

// Graph is the full layout payload.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Timeline builds the party/loan/month graph for the selected records: one
// deduplicated node per party, one node per loan, and fixed month anchors
// covering the trailing twelve months ending at the latest date observed in
// the subset.
//
// A record with no party name contributes no party node or party edge; its
// loan node and month edge still appear. A record whose date does not parse
// simply has no month edge. One bad record never aborts the batch.
func Timeline(records []loan.Record, role loan.Role) (Graph, error) {
	if !role.Valid() {
		return Graph{}, fmt.Errorf("unknown party role %q", role)
	}

	var g Graph
	partyCounts := countPartyLoans(records, role)
	unique := len(partyCounts)
	mass := scaledMass(unique)
	spacing := yearSpacing(unique)

	// Party and loan nodes.
	partyNodeID := make(map[string]string)
	for _, rec := range records {
		name := role.PartyName(rec)
		loanID := "loan_" + rec.ID

		if name != "" {
			id, seen := partyNodeID[name]
			if !seen {
				id = string(role) + "_" + rec.ID
				partyNodeID[name] = id
				repeat := partyCounts[name] > 1
				node := Node{
					ID:         id,
					Title:      partyTitle(role, name),
					Color:      colorRed,
					LabelColor: colorBlack,
					Size:       20,
					Mass:       mass,
					X:          partyX(name, partyCounts[name], unique),
					FixedX:     true,
				}
				if repeat {
					node.Color = colorPurple
					node.Label = name
				}
				g.Nodes = append(g.Nodes, node)
			}
			g.Edges = append(g.Edges, Edge{Source: id, Target: loanID, Color: colorGreenLight, Width: 5})
		}

		g.Nodes = append(g.Nodes, Node{
			ID:         loanID,
			Title:      loanTitle(rec),
			Color:      colorYellow,
			LabelColor: colorBlack,
			Size:       20,
		})
	}

	// Month anchors, newest at the top, evenly spaced.
	months := trailingMonths(latestDate(records))
	monthNodeID := make(map[time.Time]string, len(months))
	for i, first := range months {
		id := fmt.Sprintf("month_%d", i+1)
		monthNodeID[first] = id
		label := monthLabel(first)
		g.Nodes = append(g.Nodes, Node{
			ID:         id,
			Label:      "  " + label + "  ",
			Title:      label,
			Shape:      "circle",
			Color:      colorGreen,
			LabelColor: colorBlack,
			X:          xMonthAnchor,
			Y:          i * spacing,
			FixedX:     true,
			FixedY:     true,
			NoPhysics:  true,
		})
	}

	// Loan-to-month edges for dates that parse into the window.
	for _, rec := range records {
		t, ok := loan.ParseDate(rec.Date)
		if !ok {
			continue
		}
		first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		id, ok := monthNodeID[first]
		if !ok {
			continue
		}
		g.Edges = append(g.Edges, Edge{Source: "loan_" + rec.ID, Target: id, Color: colorGreenLight, Width: 5})
	}

	return g, nil
}

// Relationship builds the simpler party-to-loan view with no time axis:
// parties in yellow, loans in green sized by amount, labels hidden below a
// per-role activity threshold to keep large graphs readable.
func Relationship(records []loan.Record, role loan.Role) (Graph, error) {
	if !role.Valid() {
		return Graph{}, fmt.Errorf("unknown party role %q", role)
	}

	var g Graph
	partyCounts := countPartyLoans(records, role)
	hideBelow := hideLabelThreshold(role, partyCounts)
	sizes := amountSizes(records, 10, 40)

	partyNodeID := make(map[string]string)
	for _, rec := range records {
		name := role.PartyName(rec)
		loanID := "loan_" + rec.ID

		if name != "" {
			id, seen := partyNodeID[name]
			if !seen {
				id = string(role) + "_" + rec.ID
				partyNodeID[name] = id
				node := Node{
					ID:         id,
					Title:      partyTitle(role, name),
					Color:      colorYellow,
					LabelColor: colorBlack,
					Size:       20,
				}
				if partyCounts[name] > hideBelow {
					node.Label = name
				}
				g.Nodes = append(g.Nodes, node)
			}
			g.Edges = append(g.Edges, Edge{Source: id, Target: loanID, Color: colorGreenLight, Width: 5})
		}

		counterparty := role.Counterparty().PartyName(rec)
		association := "loan to"
		if role == loan.RoleBorrower {
			association = "loan by"
		}
		g.Nodes = append(g.Nodes, Node{
			ID:         loanID,
			Title:      fmt.Sprintf("%s %s %s\nProperty: %s", loan.FormatCurrency(rec.Amount), association, counterparty, rec.Address),
			Color:      colorGreen,
			LabelColor: colorBlack,
			Size:       sizes[rec.ID],
		})
	}

	return g, nil
}

func countPartyLoans(records []loan.Record, role loan.Role) map[string]int {
	counts := make(map[string]int)
	for _, rec := range records {
		if name := role.PartyName(rec); name != "" {
			counts[name]++
		}
	}
	return counts
}

func partyTitle(role loan.Role, name string) string {
	return strings.ToUpper(string(role)[:1]) + string(role)[1:] + ": " + name
}

func loanTitle(rec loan.Record) string {
	return fmt.Sprintf("Loan Amount: %s\nDate: %s\nProperty: %s",
		loan.FormatCurrency(rec.Amount), rec.Date, rec.Address)
}

// partyX anchors repeat parties and jitters one-time parties within a
// spread band. The band widens with crowd size, and the offset is the FNV
// hash of the display name so the same party lands on the same x across
// re-renders.
func partyX(name string, numLoans, uniqueParties int) int {
	base := xOneTimeParty
	spread := 0
	if numLoans > 1 {
		base = xRepeatParty
		if uniqueParties > 10 {
			spread = 25
		}
	} else {
		switch {
		case uniqueParties > 100:
			spread = 75
		case uniqueParties > 20:
			spread = 50
		}
	}
	if spread == 0 {
		return base
	}
	return base + nameOffset(name, spread)
}

// nameOffset maps a display name into [0, spread].
func nameOffset(name string, spread int) int {
	h := fnv.New64a()
	h.Write([]byte(name))
	return int(h.Sum64() % uint64(spread+1))
}

// scaledMass lowers repulsion as the graph grows so big graphs settle
// instead of exploding.
func scaledMass(uniqueParties int) float64 {
	switch {
	case uniqueParties > 100:
		return 0.25
	case uniqueParties > 50:
		return 0.5
	case uniqueParties > 20:
		return 0.7
	default:
		return 1.0
	}
}

// yearSpacing widens the vertical gap between month anchors as the party
// count grows.
func yearSpacing(uniqueParties int) int {
	switch {
	case uniqueParties > 100:
		return 400
	case uniqueParties > 80:
		return 250
	case uniqueParties > 60:
		return 200
	case uniqueParties > 40:
		return 150
	case uniqueParties > 20:
		return 125
	default:
		return 100
	}
}

// hideLabelThreshold is the loan count above which a party's label shows.
// Lenders use a fixed cutoff; borrowers scale with the busiest borrower in
// the subset, with a floor of 1 so one-time borrowers stay unlabeled.
func hideLabelThreshold(role loan.Role, partyCounts map[string]int) int {
	if role == loan.RoleLender {
		return 4
	}
	max := 0
	for _, n := range partyCounts {
		if n > max {
			max = n
		}
	}
	threshold := int(float64(max) * 0.4)
	if threshold < 1 {
		threshold = 1
	}
	return threshold
}

// amountSizes linearly scales each record's amount into [minSize, maxSize].
// Records whose amount does not parse, and degenerate subsets where all
// amounts are equal, fall back to the midpoint.
func amountSizes(records []loan.Record, minSize, maxSize int) map[string]int {
	sizes := make(map[string]int, len(records))
	mid := (minSize + maxSize) / 2

	lo, hi := 0.0, 0.0
	seen := false
	for _, rec := range records {
		v, ok := loan.ParseAmount(rec.Amount)
		if !ok {
			continue
		}
		if !seen || v < lo {
			lo = v
		}
		if !seen || v > hi {
			hi = v
		}
		seen = true
	}

	for _, rec := range records {
		v, ok := loan.ParseAmount(rec.Amount)
		if !ok || !seen || lo == hi {
			sizes[rec.ID] = mid
			continue
		}
		sizes[rec.ID] = minSize + int(float64(maxSize-minSize)*(v-lo)/(hi-lo))
	}
	return sizes
}

// latestDate returns the maximum parseable date string in the subset, or ""
// when none parses.
func latestDate(records []loan.Record) string {
	latest := ""
	for _, rec := range records {
		if _, ok := loan.ParseDate(rec.Date); !ok {
			continue
		}
		if rec.Date > latest {
			latest = rec.Date
		}
	}
	return latest
}

// trailingMonths lists the first-of-month dates for the twelve months
// ending at the anchor date, newest first. An empty or unparseable anchor
// falls back to the current month so the axis still renders.
func trailingMonths(anchor string) []time.Time {
	t, ok := loan.ParseDate(anchor)
	if !ok {
		now := time.Now().UTC()
		t = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	months := make([]time.Time, 0, monthAnchorCount)
	cur := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < monthAnchorCount; i++ {
		months = append(months, cur)
		cur = cur.AddDate(0, -1, 0)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].After(months[j]) })
	return months
}

// monthLabel renders a month anchor like "DEC '25".
func monthLabel(t time.Time) string {
	return strings.ToUpper(t.Format("Jan '06"))
}
