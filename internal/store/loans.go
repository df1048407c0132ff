package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hurttlocker/lendgraph/internal/loan"
)

const loanColumns = `rowid, record_id, borrower, lender, amount, date, address, city, property_type, raw, source_file, content_hash, imported_at`

// AddLoan inserts a single loan record. Computes content_hash automatically
// when unset. Returns the new row ID.
func (s *SQLiteStore) AddLoan(ctx context.Context, l *Loan) (int64, error) {
	if l.Record.ID == "" {
		return 0, fmt.Errorf("loan record id cannot be empty")
	}
	if l.ContentHash == "" {
		l.ContentHash = recordHash(l.Record)
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO loans (record_id, borrower, lender, amount, date, address, city, property_type, raw, source_file, content_hash, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.Record.ID, l.Record.Borrower, l.Record.Lender, l.Record.Amount, l.Record.Date,
		l.Record.Address, l.Record.City, l.Record.PropertyType, marshalRaw(l.Record.Raw),
		l.SourceFile, l.ContentHash, now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting loan: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	l.RowID = id
	l.ImportedAt = now
	return id, nil
}

// AddLoanBatch inserts multiple loans in chunked transactions using the
// configured batch size.
func (s *SQLiteStore) AddLoanBatch(ctx context.Context, loans []*Loan) ([]int64, error) {
	ids := make([]int64, 0, len(loans))

	for i := 0; i < len(loans); i += s.batchSize {
		end := i + s.batchSize
		if end > len(loans) {
			end = len(loans)
		}
		chunkIDs, err := s.insertBatch(ctx, loans[i:end])
		if err != nil {
			return ids, fmt.Errorf("batch insert chunk %d-%d: %w", i, end, err)
		}
		ids = append(ids, chunkIDs...)
	}
	return ids, nil
}

func (s *SQLiteStore) insertBatch(ctx context.Context, loans []*Loan) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO loans (record_id, borrower, lender, amount, date, address, city, property_type, raw, source_file, content_hash, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	ids := make([]int64, 0, len(loans))

	for _, l := range loans {
		if l.ContentHash == "" {
			l.ContentHash = recordHash(l.Record)
		}
		result, err := stmt.ExecContext(ctx,
			l.Record.ID, l.Record.Borrower, l.Record.Lender, l.Record.Amount, l.Record.Date,
			l.Record.Address, l.Record.City, l.Record.PropertyType, marshalRaw(l.Record.Raw),
			l.SourceFile, l.ContentHash, now,
		)
		if err != nil {
			return nil, fmt.Errorf("inserting loan in batch: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("getting last insert id: %w", err)
		}
		l.RowID = id
		l.ImportedAt = now
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing batch: %w", err)
	}
	return ids, nil
}

// GetLoan retrieves a loan by row ID. Returns nil if not found.
func (s *SQLiteStore) GetLoan(ctx context.Context, rowID int64) (*Loan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE rowid = ?`, rowID)
	l, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting loan %d: %w", rowID, err)
	}
	return l, nil
}

// FindByHash looks up a loan by its content hash for deduplication.
// Returns nil if not found.
func (s *SQLiteStore) FindByHash(ctx context.Context, hash string) (*Loan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE content_hash = ?`, hash)
	l, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding loan by hash: %w", err)
	}
	return l, nil
}

// ListLoans returns loans matching the filters, oldest date first so a
// single pass can rebuild the relationship indices deterministically.
// Limit <= 0 means no limit.
func (s *SQLiteStore) ListLoans(ctx context.Context, opts ListOpts) ([]*Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans`
	where, args := buildFilter(opts)
	query += where + " ORDER BY date ASC, rowid ASC"
	if opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing loans: %w", err)
	}
	defer rows.Close()

	var loans []*Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning loan row: %w", err)
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

// CountLoans counts loans matching the filters, ignoring pagination.
func (s *SQLiteStore) CountLoans(ctx context.Context, opts ListOpts) (int64, error) {
	where, args := buildFilter(opts)
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM loans`+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting loans: %w", err)
	}
	return n, nil
}

// Stats summarizes the cache.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	queries := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM loans", &stats.LoanCount},
		{"SELECT COUNT(DISTINCT lender) FROM loans WHERE lender != ''", &stats.LenderCount},
		{"SELECT COUNT(DISTINCT source_file) FROM loans WHERE source_file != ''", &stats.SourceFiles},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("querying stats (%s): %w", q.query, err)
		}
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MIN(date), ''), COALESCE(MAX(date), '') FROM loans WHERE date != ''`,
	).Scan(&stats.EarliestDate, &stats.LatestDate)
	if err != nil {
		return nil, fmt.Errorf("querying date range: %w", err)
	}

	if s.dbPath != ":memory:" {
		var pageCount, pageSize int64
		s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
		s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.DBSizeBytes = pageCount * pageSize
	}

	return stats, nil
}

// Records unwraps ListLoans results into the engine's input slice.
func Records(loans []*Loan) []loan.Record {
	records := make([]loan.Record, len(loans))
	for i, l := range loans {
		records[i] = l.Record
	}
	return records
}

func buildFilter(opts ListOpts) (string, []interface{}) {
	where := ""
	args := []interface{}{}
	add := func(clause string, arg interface{}) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, arg)
	}

	if opts.Lender != "" {
		add("lender = ?", opts.Lender)
	}
	if opts.Borrower != "" {
		add("borrower = ?", opts.Borrower)
	}
	if opts.City != "" {
		add("city = ?", opts.City)
	}
	if opts.After != "" {
		add("date >= ?", opts.After)
	}
	if opts.Before != "" {
		add("date < ?", opts.Before)
	}
	return where, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLoan(row rowScanner) (*Loan, error) {
	l := &Loan{}
	var raw sql.NullString
	err := row.Scan(&l.RowID, &l.Record.ID, &l.Record.Borrower, &l.Record.Lender,
		&l.Record.Amount, &l.Record.Date, &l.Record.Address, &l.Record.City,
		&l.Record.PropertyType, &raw, &l.SourceFile, &l.ContentHash, &l.ImportedAt)
	if err != nil {
		return nil, err
	}
	l.Record.Raw = unmarshalRaw(raw)
	return l, nil
}

func recordHash(r loan.Record) string {
	return HashLoanRecord(r.Borrower, r.Lender, r.Amount, r.Date, r.Address)
}

func marshalRaw(raw map[string]string) interface{} {
	if len(raw) == 0 {
		return nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	return string(b)
}

func unmarshalRaw(s sql.NullString) map[string]string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var raw map[string]string
	if err := json.Unmarshal([]byte(s.String), &raw); err != nil {
		return nil
	}
	return raw
}
