// Package store provides the SQLite cache for imported loan records.
//
// Imports are idempotent: every record carries a content hash, and a
// re-imported file inserts only rows the cache has not seen. Analytics never
// query SQL directly; they load a filtered slice of records and run in
// memory.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hurttlocker/lendgraph/internal/loan"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.lendgraph/lendgraph.db"

// DefaultBatchSize is the default batch size for bulk inserts.
const DefaultBatchSize = 500

// Loan is a stored loan record with cache provenance.
type Loan struct {
	RowID       int64
	Record      loan.Record
	SourceFile  string
	ContentHash string
	ImportedAt  time.Time
}

// ListOpts filters and pages ListLoans. Empty string fields are ignored.
// After and Before bound the loan date (inclusive lower, exclusive upper)
// as ISO date strings.
type ListOpts struct {
	Lender   string
	Borrower string
	City     string
	After    string
	Before   string
	Limit    int
	Offset   int
}

// Stats summarizes the cache for the stats surfaces.
type Stats struct {
	LoanCount    int64
	LenderCount  int64
	SourceFiles  int64
	EarliestDate string
	LatestDate   string
	DBSizeBytes  int64
}

// Config holds configuration for NewStore.
type Config struct {
	DBPath    string
	BatchSize int
}

// Store is the loan cache interface.
type Store interface {
	AddLoan(ctx context.Context, l *Loan) (int64, error)
	AddLoanBatch(ctx context.Context, loans []*Loan) ([]int64, error)
	GetLoan(ctx context.Context, rowID int64) (*Loan, error)
	ListLoans(ctx context.Context, opts ListOpts) ([]*Loan, error)
	CountLoans(ctx context.Context, opts ListOpts) (int64, error)
	FindByHash(ctx context.Context, hash string) (*Loan, error)
	Stats(ctx context.Context) (*Stats, error)
	Vacuum(ctx context.Context) error
	Close() error
}

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db        *sql.DB
	dbPath    string
	batchSize int
}

// NewStore opens (creating if needed) the loan cache.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg Config) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = ExpandPath(DefaultDBPath)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{
		db:        db,
		dbPath:    cfg.DBPath,
		batchSize: cfg.BatchSize,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Vacuum runs VACUUM on the database. Manual only, never auto-vacuum.
func (s *SQLiteStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
