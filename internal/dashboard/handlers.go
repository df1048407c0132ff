package dashboard

import (
	"net/http"
	"sort"

	"github.com/hurttlocker/lendgraph/internal/bins"
	"github.com/hurttlocker/lendgraph/internal/layout"
	"github.com/hurttlocker/lendgraph/internal/loan"
	"github.com/hurttlocker/lendgraph/internal/metrics"
	"github.com/hurttlocker/lendgraph/internal/relation"
	"github.com/hurttlocker/lendgraph/internal/store"
)

// statsResponse is the /api/stats payload.
type statsResponse struct {
	Loans         int64   `json:"loans"`
	Lenders       int64   `json:"lenders"`
	SourceFiles   int64   `json:"source_files"`
	EarliestDate  string  `json:"earliest_date,omitempty"`
	LatestDate    string  `json:"latest_date,omitempty"`
	DBSizeBytes   int64   `json:"db_size_bytes"`
	TotalVolume   int64   `json:"total_volume"`
	AverageAmount float64 `json:"average_amount"`
}

func handleStats(w http.ResponseWriter, r *http.Request, st store.Store) {
	stats, err := st.Stats(r.Context())
	if err != nil {
		writeJSON(w, 500, map[string]string{"error": err.Error()})
		return
	}
	records, err := loadRecords(r, st)
	if err != nil {
		writeJSON(w, 500, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, 200, statsResponse{
		Loans:         stats.LoanCount,
		Lenders:       stats.LenderCount,
		SourceFiles:   stats.SourceFiles,
		EarliestDate:  stats.EarliestDate,
		LatestDate:    stats.LatestDate,
		DBSizeBytes:   stats.DBSizeBytes,
		TotalVolume:   metrics.TotalVolume(records),
		AverageAmount: metrics.AverageAmount(records),
	})
}

// churnResponse reports borrower churn for one lender.
type churnResponse struct {
	Lender string   `json:"lender"`
	Lost   []string `json:"lost"`
	Gained []string `json:"gained"`
	Repeat []string `json:"repeat"`
}

func handleChurn(w http.ResponseWriter, r *http.Request, st store.Store) {
	// Last-lender semantics need the full dataset even when reporting a
	// single lender, so no lender filter on the load.
	records, err := loadRecords(r, st)
	if err != nil {
		writeJSON(w, 500, map[string]string{"error": err.Error()})
		return
	}

	idx := relation.BuildIndices(records)
	lost := relation.LostBorrowers(idx)
	gained := relation.GainedBorrowers(idx)
	repeat := relation.RepeatBorrowers(records)

	if lender := r.URL.Query().Get("lender"); lender != "" {
		if _, served := idx.LenderBorrowers[lender]; !served {
			writeJSON(w, 404, map[string]string{"error": "unknown lender: " + lender})
			return
		}
		writeJSON(w, 200, churnResponse{
			Lender: lender,
			Lost:   relation.SortedMembers(lost[lender]),
			Gained: relation.SortedMembers(gained[lender]),
			Repeat: relation.SortedMembers(repeat[lender]),
		})
		return
	}

	var all []churnResponse
	for _, lender := range sortedKeys(idx.LenderBorrowers) {
		all = append(all, churnResponse{
			Lender: lender,
			Lost:   relation.SortedMembers(lost[lender]),
			Gained: relation.SortedMembers(gained[lender]),
			Repeat: relation.SortedMembers(repeat[lender]),
		})
	}
	writeJSON(w, 200, all)
}

func handleMigration(w http.ResponseWriter, r *http.Request, st store.Store) {
	records, err := loadRecords(r, st)
	if err != nil {
		writeJSON(w, 500, map[string]string{"error": err.Error()})
		return
	}

	flows := relation.MigrationFlows(records)
	limit := intParam(r, "limit", len(flows), 1, 10000)
	if limit < len(flows) {
		flows = flows[:limit]
	}
	writeJSON(w, 200, flows)
}

// shareResponse is the /api/share payload: the derived binning plus the
// per-lender counts inside each bin.
type shareResponse struct {
	Binning bins.Binning      `json:"binning"`
	Rows    []bins.ShareCount `json:"rows"`
}

func handleShare(w http.ResponseWriter, r *http.Request, st store.Store) {
	records, err := loadRecords(r, st)
	if err != nil {
		writeJSON(w, 500, map[string]string{"error": err.Error()})
		return
	}

	minPop := intParam(r, "min_population", 10, 0, 100000)
	b, err := bins.Derive(metrics.Amounts(records), bins.DefaultCandidates, minPop)
	if err != nil {
		writeJSON(w, 400, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, 200, shareResponse{Binning: b, Rows: bins.Assign(records, b)})
}

// monopolyResponse is the /api/monopoly payload.
type monopolyResponse struct {
	Monopolized []bins.SegmentScore `json:"monopolized"`
	Diverse     []bins.SegmentScore `json:"diverse"`
}

func handleMonopoly(w http.ResponseWriter, r *http.Request, st store.Store) {
	records, err := loadRecords(r, st)
	if err != nil {
		writeJSON(w, 500, map[string]string{"error": err.Error()})
		return
	}

	opts := bins.MonopolyOptions{
		MinCityLoans: intParam(r, "min_city_loans", bins.DefaultMinCityLoans, 1, 100000),
		MinBinLoans:  intParam(r, "min_bin_loans", bins.DefaultMinBinLoans, 1, 100000),
	}
	scores := bins.MonopolyScores(records, opts)
	n := intParam(r, "n", 10, 1, 1000)
	writeJSON(w, 200, monopolyResponse{
		Monopolized: bins.TopMonopolized(scores, n),
		Diverse:     bins.TopDiverse(scores, n),
	})
}

func handleLayout(w http.ResponseWriter, r *http.Request, st store.Store) {
	role := loan.Role(r.URL.Query().Get("role"))
	if !role.Valid() {
		writeJSON(w, 400, map[string]string{"error": "role parameter must be borrower or lender"})
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSON(w, 400, map[string]string{"error": "name parameter required"})
		return
	}

	// The view shows one party's counterparties: selecting a lender lays
	// out its borrowers, so the records filter on the selected party and
	// the layout keys on the opposite role.
	opts := store.ListOpts{}
	if role == loan.RoleLender {
		opts.Lender = name
	} else {
		opts.Borrower = name
	}
	loans, err := st.ListLoans(r.Context(), opts)
	if err != nil {
		writeJSON(w, 500, map[string]string{"error": err.Error()})
		return
	}
	records := store.Records(loans)

	var g layout.Graph
	switch view := r.URL.Query().Get("view"); view {
	case "", "timeline":
		g, err = layout.Timeline(records, role.Counterparty())
	case "relationship":
		g, err = layout.Relationship(records, role.Counterparty())
	default:
		writeJSON(w, 400, map[string]string{"error": "unknown view: " + view})
		return
	}
	if err != nil {
		writeJSON(w, 400, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, 200, g)
}

// topRow is one ranked party in the /api/top payload.
type topRow struct {
	Name   string `json:"name"`
	Loans  int    `json:"loans"`
	Volume int64  `json:"volume"`
}

func handleTop(w http.ResponseWriter, r *http.Request, st store.Store) {
	role := loan.Role(r.URL.Query().Get("role"))
	if !role.Valid() {
		writeJSON(w, 400, map[string]string{"error": "role parameter must be borrower or lender"})
		return
	}

	records, err := loadRecords(r, st)
	if err != nil {
		writeJSON(w, 500, map[string]string{"error": err.Error()})
		return
	}

	counts := metrics.LoanCounts(records, role)
	var volume map[string]int64
	if role == loan.RoleLender {
		volume = metrics.LenderVolume(records)
	} else {
		volume = metrics.BorrowerVolume(records)
	}

	rows := make([]topRow, 0, len(counts))
	for name, n := range counts {
		rows = append(rows, topRow{Name: name, Loans: n, Volume: volume[name]})
	}

	by := r.URL.Query().Get("by")
	sort.Slice(rows, func(i, j int) bool {
		if by == "volume" {
			if rows[i].Volume != rows[j].Volume {
				return rows[i].Volume > rows[j].Volume
			}
		} else if rows[i].Loans != rows[j].Loans {
			return rows[i].Loans > rows[j].Loans
		}
		return rows[i].Name < rows[j].Name
	})

	n := intParam(r, "n", 10, 1, 1000)
	if n < len(rows) {
		rows = rows[:n]
	}
	writeJSON(w, 200, rows)
}

// loadRecords loads the record slice an endpoint computes over, honoring
// the shared city/after/before filters.
func loadRecords(r *http.Request, st store.Store) ([]loan.Record, error) {
	q := r.URL.Query()
	opts := store.ListOpts{
		City:   q.Get("city"),
		After:  q.Get("after"),
		Before: q.Get("before"),
	}
	loans, err := st.ListLoans(r.Context(), opts)
	if err != nil {
		return nil, err
	}
	return store.Records(loans), nil
}

func sortedKeys(m map[string]map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
