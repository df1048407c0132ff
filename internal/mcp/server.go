// Package mcp provides a Model Context Protocol server for lendgraph.
//
// It exposes the analytics engine as read-only MCP tools over stdio so an
// agent can query lender churn, borrower migration, market share, and graph
// layouts without shelling out to the CLI.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/lendgraph/internal/bins"
	"github.com/hurttlocker/lendgraph/internal/layout"
	"github.com/hurttlocker/lendgraph/internal/loan"
	"github.com/hurttlocker/lendgraph/internal/metrics"
	"github.com/hurttlocker/lendgraph/internal/relation"
	"github.com/hurttlocker/lendgraph/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store   store.Store
	Version string
}

// dbMu serializes all MCP tool calls that touch the database.
// The mcp-go library dispatches handlers concurrently via goroutines, and
// the analytics load full record slices per call; a global mutex keeps the
// loads ordered against any concurrent import.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all lendgraph tools.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"lendgraph",
		ver,
		server.WithToolCapabilities(false),
	)

	registerStatsTool(s, cfg.Store)
	registerChurnTool(s, cfg.Store)
	registerMigrationTool(s, cfg.Store)
	registerShareTool(s, cfg.Store)
	registerMonopolyTool(s, cfg.Store)
	registerTopTool(s, cfg.Store)
	registerLayoutTool(s, cfg.Store)

	return s
}

func loadAll(ctx context.Context, st store.Store) ([]loan.Record, error) {
	loans, err := st.ListLoans(ctx, store.ListOpts{})
	if err != nil {
		return nil, err
	}
	return store.Records(loans), nil
}

func jsonResult(v interface{}) *mcp.CallToolResult {
	data, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(data))
}

func registerStatsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("loan_stats",
		mcp.WithDescription("Summarize the loan dataset: record count, distinct lenders, date range, total volume, and average amount."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats error: %v", err)), nil
		}
		records, err := loadAll(ctx, st)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("loading records: %v", err)), nil
		}

		return jsonResult(map[string]interface{}{
			"loans":          stats.LoanCount,
			"lenders":        stats.LenderCount,
			"earliest_date":  stats.EarliestDate,
			"latest_date":    stats.LatestDate,
			"total_volume":   metrics.TotalVolume(records),
			"average_amount": metrics.AverageAmount(records),
		}), nil
	})
}

func registerChurnTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("lender_churn",
		mcp.WithDescription("Report borrower churn for a lender: borrowers lost to other lenders, borrowers gained from them, and repeat borrowers."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("lender",
			mcp.Required(),
			mcp.Description("Exact lender name as it appears in the dataset"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		lender, err := req.RequireString("lender")
		if err != nil {
			return mcp.NewToolResultError("lender is required"), nil
		}

		records, err := loadAll(ctx, st)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("loading records: %v", err)), nil
		}

		idx := relation.BuildIndices(records)
		if _, served := idx.LenderBorrowers[lender]; !served {
			return mcp.NewToolResultError(fmt.Sprintf("unknown lender: %s", lender)), nil
		}

		return jsonResult(map[string]interface{}{
			"lender": lender,
			"lost":   relation.SortedMembers(relation.LostBorrowers(idx)[lender]),
			"gained": relation.SortedMembers(relation.GainedBorrowers(idx)[lender]),
			"repeat": relation.SortedMembers(relation.RepeatBorrowers(records)[lender]),
		}), nil
	})
}

func registerMigrationTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("migration_flows",
		mcp.WithDescription("Aggregate borrower migration between lenders: how many borrowers moved from each lender to each other lender, heaviest flows first."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of flows to return (default: all)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		records, err := loadAll(ctx, st)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("loading records: %v", err)), nil
		}

		flows := relation.MigrationFlows(records)
		if limitVal, err := req.RequireFloat("limit"); err == nil {
			if limit := int(limitVal); limit > 0 && limit < len(flows) {
				flows = flows[:limit]
			}
		}
		return jsonResult(flows), nil
	})
}

func registerShareTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("market_share",
		mcp.WithDescription("Bucket loans into adaptive amount bins and count each lender's loans per bin, the input for a market share chart."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("min_population",
			mcp.Description("Minimum observations beyond a bin edge before it is used (default: 10)"),
		),
		mcp.WithString("city",
			mcp.Description("Restrict to loans in one city"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		opts := store.ListOpts{}
		if city, err := req.RequireString("city"); err == nil {
			opts.City = city
		}
		loans, err := st.ListLoans(ctx, opts)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("loading records: %v", err)), nil
		}
		records := store.Records(loans)

		minPop := 10
		if v, err := req.RequireFloat("min_population"); err == nil && int(v) >= 0 {
			minPop = int(v)
		}

		b, err := bins.Derive(metrics.Amounts(records), bins.DefaultCandidates, minPop)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("deriving bins: %v", err)), nil
		}
		return jsonResult(map[string]interface{}{
			"binning": b,
			"rows":    bins.Assign(records, b),
		}), nil
	})
}

func registerMonopolyTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("market_monopoly",
		mcp.WithDescription("Score lender concentration per (city, amount bin) market segment and list the most monopolized and most diverse segments."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("n",
			mcp.Description("How many segments to list per direction (default: 10)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		records, err := loadAll(ctx, st)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("loading records: %v", err)), nil
		}

		n := 10
		if v, err := req.RequireFloat("n"); err == nil && int(v) > 0 {
			n = int(v)
		}

		scores := bins.MonopolyScores(records, bins.MonopolyOptions{})
		return jsonResult(map[string]interface{}{
			"monopolized": bins.TopMonopolized(scores, n),
			"diverse":     bins.TopDiverse(scores, n),
		}), nil
	})
}

func registerTopTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("top_parties",
		mcp.WithDescription("Rank lenders or borrowers by loan count or total volume."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("role",
			mcp.Required(),
			mcp.Description("Which party to rank: borrower or lender"),
			mcp.Enum("borrower", "lender"),
		),
		mcp.WithString("by",
			mcp.Description("Ranking metric: count (default) or volume"),
			mcp.Enum("count", "volume"),
		),
		mcp.WithNumber("n",
			mcp.Description("How many parties to return (default: 10)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		roleStr, err := req.RequireString("role")
		if err != nil {
			return mcp.NewToolResultError("role is required"), nil
		}
		role := loan.Role(roleStr)
		if !role.Valid() {
			return mcp.NewToolResultError(fmt.Sprintf("unknown role: %s", roleStr)), nil
		}

		records, err := loadAll(ctx, st)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("loading records: %v", err)), nil
		}

		n := 10
		if v, err := req.RequireFloat("n"); err == nil && int(v) > 0 {
			n = int(v)
		}

		by := "count"
		if b, err := req.RequireString("by"); err == nil && b != "" {
			by = b
		}

		var top []loan.Record
		if by == "volume" {
			top = metrics.TopByVolume(records, role, n)
		} else {
			top = metrics.TopByCount(records, role, n)
		}

		counts := metrics.LoanCounts(top, role)
		var volume map[string]int64
		if role == loan.RoleLender {
			volume = metrics.LenderVolume(top)
		} else {
			volume = metrics.BorrowerVolume(top)
		}

		type row struct {
			Name   string `json:"name"`
			Loans  int    `json:"loans"`
			Volume int64  `json:"volume"`
		}
		seen := make(map[string]bool)
		var rows []row
		for _, rec := range top {
			name := role.PartyName(rec)
			if seen[name] {
				continue
			}
			seen[name] = true
			rows = append(rows, row{Name: name, Loans: counts[name], Volume: volume[name]})
		}
		return jsonResult(rows), nil
	})
}

func registerLayoutTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("party_layout",
		mcp.WithDescription("Build the node/edge graph layout for one lender's or borrower's loans: timeline view with month anchors, or plain relationship view."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("role",
			mcp.Required(),
			mcp.Description("Role of the selected party: borrower or lender"),
			mcp.Enum("borrower", "lender"),
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Exact party name as it appears in the dataset"),
		),
		mcp.WithString("view",
			mcp.Description("Layout view: timeline (default) or relationship"),
			mcp.Enum("timeline", "relationship"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		roleStr, err := req.RequireString("role")
		if err != nil {
			return mcp.NewToolResultError("role is required"), nil
		}
		role := loan.Role(roleStr)
		if !role.Valid() {
			return mcp.NewToolResultError(fmt.Sprintf("unknown role: %s", roleStr)), nil
		}

		name, err := req.RequireString("name")
		if err != nil || name == "" {
			return mcp.NewToolResultError("name is required"), nil
		}

		opts := store.ListOpts{}
		if role == loan.RoleLender {
			opts.Lender = name
		} else {
			opts.Borrower = name
		}
		loans, err := st.ListLoans(ctx, opts)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("loading records: %v", err)), nil
		}
		records := store.Records(loans)

		view := "timeline"
		if v, err := req.RequireString("view"); err == nil && v != "" {
			view = v
		}

		var g layout.Graph
		switch view {
		case "timeline":
			g, err = layout.Timeline(records, role.Counterparty())
		case "relationship":
			g, err = layout.Relationship(records, role.Counterparty())
		default:
			return mcp.NewToolResultError(fmt.Sprintf("unknown view: %s", view)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("layout error: %v", err)), nil
		}
		return jsonResult(g), nil
	})
}
