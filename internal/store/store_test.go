package store

import (
	"context"
	"testing"

	"github.com/hurttlocker/lendgraph/internal/loan"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewStore(Config{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testLoan(id, borrower, lender, amount, date, city string) *Loan {
	return &Loan{
		Record: loan.Record{
			ID:       id,
			Borrower: borrower,
			Lender:   lender,
			Amount:   amount,
			Date:     date,
			City:     city,
		},
		SourceFile: "loans.csv",
	}
}

func TestAddAndGetLoan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	l := testLoan("r1", "ACME HOLDINGS", "FIRST BANK", "250000", "2026-03-10", "Dover")
	l.Record.Raw = map[string]string{"propertyUse": "RESIDENTIAL"}

	id, err := s.AddLoan(ctx, l)
	if err != nil {
		t.Fatalf("adding loan: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero row id")
	}
	if l.ContentHash == "" {
		t.Error("content hash not computed")
	}

	got, err := s.GetLoan(ctx, id)
	if err != nil {
		t.Fatalf("getting loan: %v", err)
	}
	if got == nil {
		t.Fatal("loan not found")
	}
	if got.Record.Borrower != "ACME HOLDINGS" || got.Record.Lender != "FIRST BANK" {
		t.Errorf("unexpected record %+v", got.Record)
	}
	if got.Record.Raw["propertyUse"] != "RESIDENTIAL" {
		t.Errorf("raw column not round-tripped: %v", got.Record.Raw)
	}
	if got.ImportedAt.IsZero() {
		t.Error("imported_at not set")
	}
}

func TestGetLoan_NotFound(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetLoan(context.Background(), 999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing loan, got %+v", got)
	}
}

func TestAddLoan_EmptyID(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.AddLoan(context.Background(), &Loan{}); err == nil {
		t.Fatal("expected error for empty record id")
	}
}

func TestFindByHash_Dedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	l := testLoan("r1", "ACME", "FIRST BANK", "250000", "2026-03-10", "Dover")
	if _, err := s.AddLoan(ctx, l); err != nil {
		t.Fatalf("adding loan: %v", err)
	}

	dup := testLoan("r2", "ACME", "FIRST BANK", "250000", "2026-03-10", "Dover")
	dup.ContentHash = recordHash(dup.Record)

	found, err := s.FindByHash(ctx, dup.ContentHash)
	if err != nil {
		t.Fatalf("finding by hash: %v", err)
	}
	if found == nil {
		t.Fatal("expected hash hit for identical analytic fields")
	}

	// The UNIQUE constraint rejects a second insert of the same content.
	if _, err := s.AddLoan(ctx, dup); err == nil {
		t.Error("expected unique constraint violation")
	}
}

func TestAddLoanBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	loans := []*Loan{
		testLoan("r1", "B1", "L1", "100000", "2026-01-05", "Dover"),
		testLoan("r2", "B2", "L1", "200000", "2026-02-05", "Dover"),
		testLoan("r3", "B3", "L2", "300000", "2026-03-05", "Lewes"),
	}
	ids, err := s.AddLoanBatch(ctx, loans)
	if err != nil {
		t.Fatalf("batch insert: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(ids))
	}

	n, err := s.CountLoans(ctx, ListOpts{})
	if err != nil {
		t.Fatalf("counting: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 loans, got %d", n)
	}
}

func TestListLoans_FiltersAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	loans := []*Loan{
		testLoan("r1", "B1", "L1", "100000", "2026-03-05", "Dover"),
		testLoan("r2", "B2", "L1", "200000", "2026-01-05", "Dover"),
		testLoan("r3", "B3", "L2", "300000", "2026-02-05", "Lewes"),
	}
	if _, err := s.AddLoanBatch(ctx, loans); err != nil {
		t.Fatalf("batch insert: %v", err)
	}

	// Unfiltered list comes back oldest date first.
	all, err := s.ListLoans(ctx, ListOpts{})
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 loans, got %d", len(all))
	}
	if all[0].Record.ID != "r2" || all[2].Record.ID != "r1" {
		t.Errorf("unexpected order: %s, %s, %s", all[0].Record.ID, all[1].Record.ID, all[2].Record.ID)
	}

	byLender, err := s.ListLoans(ctx, ListOpts{Lender: "L1"})
	if err != nil {
		t.Fatalf("listing by lender: %v", err)
	}
	if len(byLender) != 2 {
		t.Errorf("expected 2 L1 loans, got %d", len(byLender))
	}

	byCity, err := s.ListLoans(ctx, ListOpts{City: "Lewes"})
	if err != nil {
		t.Fatalf("listing by city: %v", err)
	}
	if len(byCity) != 1 || byCity[0].Record.ID != "r3" {
		t.Errorf("unexpected city filter result: %v", byCity)
	}

	// Date window: [2026-01-05, 2026-03-05) excludes r1.
	windowed, err := s.ListLoans(ctx, ListOpts{After: "2026-01-05", Before: "2026-03-05"})
	if err != nil {
		t.Fatalf("listing by window: %v", err)
	}
	if len(windowed) != 2 {
		t.Errorf("expected 2 loans in window, got %d", len(windowed))
	}

	paged, err := s.ListLoans(ctx, ListOpts{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("listing with pagination: %v", err)
	}
	if len(paged) != 1 || paged[0].Record.ID != "r3" {
		t.Errorf("unexpected page: %v", paged)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	loans := []*Loan{
		testLoan("r1", "B1", "L1", "100000", "2026-01-05", "Dover"),
		testLoan("r2", "B2", "L2", "200000", "2026-06-05", "Dover"),
		testLoan("r3", "B3", "", "300000", "", "Lewes"),
	}
	if _, err := s.AddLoanBatch(ctx, loans); err != nil {
		t.Fatalf("batch insert: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.LoanCount != 3 {
		t.Errorf("expected 3 loans, got %d", stats.LoanCount)
	}
	if stats.LenderCount != 2 {
		t.Errorf("expected 2 lenders, got %d", stats.LenderCount)
	}
	if stats.SourceFiles != 1 {
		t.Errorf("expected 1 source file, got %d", stats.SourceFiles)
	}
	if stats.EarliestDate != "2026-01-05" || stats.LatestDate != "2026-06-05" {
		t.Errorf("unexpected date range %q..%q", stats.EarliestDate, stats.LatestDate)
	}
}

func TestRecords(t *testing.T) {
	loans := []*Loan{
		testLoan("r1", "B1", "L1", "100000", "2026-01-05", "Dover"),
		testLoan("r2", "B2", "L2", "200000", "2026-06-05", "Dover"),
	}
	records := Records(loans)
	if len(records) != 2 || records[0].ID != "r1" || records[1].Lender != "L2" {
		t.Errorf("unexpected records: %v", records)
	}
}

func TestVacuum(t *testing.T) {
	s := newTestStore(t)
	if err := s.Vacuum(context.Background()); err != nil {
		t.Fatalf("vacuum: %v", err)
	}
}
