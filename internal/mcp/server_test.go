package mcp

import (
	"context"
	"encoding/json"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/lendgraph/internal/layout"
	"github.com/hurttlocker/lendgraph/internal/loan"
	"github.com/hurttlocker/lendgraph/internal/relation"
	"github.com/hurttlocker/lendgraph/internal/store"
)

func setupTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewStore(store.Config{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	records := []loan.Record{
		{ID: "1", Borrower: "ACME", Lender: "FIRST BANK", Amount: "250000", Date: "2026-01-10", City: "Dover"},
		{ID: "2", Borrower: "ACME", Lender: "SECOND BANK", Amount: "400000", Date: "2026-03-15", City: "Dover"},
		{ID: "3", Borrower: "BLUE", Lender: "FIRST BANK", Amount: "150000", Date: "2026-02-20", City: "Lewes"},
	}
	loans := make([]*store.Loan, len(records))
	for i := range records {
		loans[i] = &store.Loan{Record: records[i], SourceFile: "test.csv"}
	}
	if _, err := s.AddLoanBatch(context.Background(), loans); err != nil {
		t.Fatalf("seeding store: %v", err)
	}
	return s
}

func TestNewServer(t *testing.T) {
	srv := NewServer(ServerConfig{Store: setupTestStore(t)})
	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
}

// callTool invokes an MCP tool through the server's JSON-RPC entry point.
func callTool(t *testing.T, srv *server.MCPServer, name string, args map[string]interface{}) *mcplib.CallToolResult {
	t.Helper()

	result := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      name,
			"arguments": args,
		},
	}))

	respBytes, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}

	var resp struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, string(respBytes))
	}
	if resp.Error != nil {
		t.Fatalf("JSON-RPC error: %d %s", resp.Error.Code, resp.Error.Message)
	}

	callResult := &mcplib.CallToolResult{IsError: resp.Result.IsError}
	for _, c := range resp.Result.Content {
		if c.Type == "text" {
			callResult.Content = append(callResult.Content, mcplib.NewTextContent(c.Text))
		}
	}
	return callResult
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func getTextContent(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content found")
	return ""
}

func TestStatsTool(t *testing.T) {
	srv := NewServer(ServerConfig{Store: setupTestStore(t)})

	result := callTool(t, srv, "loan_stats", map[string]interface{}{})
	if result.IsError {
		t.Fatalf("loan_stats errored: %s", getTextContent(t, result))
	}

	var got map[string]interface{}
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &got); err != nil {
		t.Fatalf("parsing stats: %v", err)
	}
	if got["loans"].(float64) != 3 || got["lenders"].(float64) != 2 {
		t.Errorf("unexpected stats: %v", got)
	}
	if got["total_volume"].(float64) != 800000 {
		t.Errorf("expected total volume 800000, got %v", got["total_volume"])
	}
}

func TestChurnTool(t *testing.T) {
	srv := NewServer(ServerConfig{Store: setupTestStore(t)})

	result := callTool(t, srv, "lender_churn", map[string]interface{}{
		"lender": "FIRST BANK",
	})
	if result.IsError {
		t.Fatalf("lender_churn errored: %s", getTextContent(t, result))
	}

	var got struct {
		Lender string   `json:"lender"`
		Lost   []string `json:"lost"`
		Gained []string `json:"gained"`
	}
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &got); err != nil {
		t.Fatalf("parsing churn: %v", err)
	}
	if len(got.Lost) != 1 || got.Lost[0] != "ACME" {
		t.Errorf("expected FIRST BANK to have lost ACME, got %v", got.Lost)
	}

	unknown := callTool(t, srv, "lender_churn", map[string]interface{}{
		"lender": "NOBODY",
	})
	if !unknown.IsError {
		t.Error("expected error for unknown lender")
	}
}

func TestMigrationTool(t *testing.T) {
	srv := NewServer(ServerConfig{Store: setupTestStore(t)})

	result := callTool(t, srv, "migration_flows", map[string]interface{}{})
	if result.IsError {
		t.Fatalf("migration_flows errored: %s", getTextContent(t, result))
	}

	var flows []relation.Flow
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &flows); err != nil {
		t.Fatalf("parsing flows: %v", err)
	}
	if len(flows) != 1 || flows[0].From != "FIRST BANK" || flows[0].To != "SECOND BANK" {
		t.Errorf("unexpected flows: %v", flows)
	}
}

func TestShareTool(t *testing.T) {
	srv := NewServer(ServerConfig{Store: setupTestStore(t)})

	result := callTool(t, srv, "market_share", map[string]interface{}{
		"min_population": float64(0),
	})
	if result.IsError {
		t.Fatalf("market_share errored: %s", getTextContent(t, result))
	}

	var got struct {
		Rows []struct {
			Lender string `json:"lender"`
			Count  int    `json:"count"`
		} `json:"rows"`
	}
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &got); err != nil {
		t.Fatalf("parsing share: %v", err)
	}
	total := 0
	for _, row := range got.Rows {
		total += row.Count
	}
	if total != 3 {
		t.Errorf("expected 3 binned loans, got %d (%v)", total, got.Rows)
	}
}

func TestTopTool(t *testing.T) {
	srv := NewServer(ServerConfig{Store: setupTestStore(t)})

	result := callTool(t, srv, "top_parties", map[string]interface{}{
		"role": "lender",
		"by":   "count",
	})
	if result.IsError {
		t.Fatalf("top_parties errored: %s", getTextContent(t, result))
	}

	var rows []struct {
		Name  string `json:"name"`
		Loans int    `json:"loans"`
	}
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &rows); err != nil {
		t.Fatalf("parsing top: %v", err)
	}
	if len(rows) != 2 || rows[0].Name != "FIRST BANK" || rows[0].Loans != 2 {
		t.Errorf("unexpected ranking: %v", rows)
	}

	bad := callTool(t, srv, "top_parties", map[string]interface{}{
		"role": "broker",
	})
	if !bad.IsError {
		t.Error("expected error for unknown role")
	}
}

func TestLayoutTool(t *testing.T) {
	srv := NewServer(ServerConfig{Store: setupTestStore(t)})

	result := callTool(t, srv, "party_layout", map[string]interface{}{
		"role": "lender",
		"name": "FIRST BANK",
	})
	if result.IsError {
		t.Fatalf("party_layout errored: %s", getTextContent(t, result))
	}

	var g layout.Graph
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &g); err != nil {
		t.Fatalf("parsing layout: %v", err)
	}
	loanNodes := 0
	for _, n := range g.Nodes {
		if len(n.ID) > 5 && n.ID[:5] == "loan_" {
			loanNodes++
		}
	}
	if loanNodes != 2 {
		t.Errorf("expected 2 loan nodes for FIRST BANK, got %d", loanNodes)
	}

	missing := callTool(t, srv, "party_layout", map[string]interface{}{
		"role": "lender",
	})
	if !missing.IsError {
		t.Error("expected error for missing name")
	}
}
