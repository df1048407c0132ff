// Package ingest provides the CSV import engine for lendgraph.
//
// Loan exports arrive as CSV or TSV files with a header row. The engine maps
// the canonical analytic columns onto loan records, keeps every other column
// as raw metadata, and writes batches into the store with content-hash
// deduplication so re-importing the same export is a no-op.
package ingest

import (
	"fmt"

	"github.com/hurttlocker/lendgraph/internal/loan"
)

// ImportResult summarizes an import operation.
type ImportResult struct {
	FilesScanned   int
	FilesImported  int
	FilesSkipped   int
	LoansNew       int
	LoansDuplicate int
	Errors         []ImportError
}

// Add merges another ImportResult into this one.
func (r *ImportResult) Add(other *ImportResult) {
	r.FilesScanned += other.FilesScanned
	r.FilesImported += other.FilesImported
	r.FilesSkipped += other.FilesSkipped
	r.LoansNew += other.LoansNew
	r.LoansDuplicate += other.LoansDuplicate
	r.Errors = append(r.Errors, other.Errors...)
}

// ImportError records a non-fatal error during import. A bad row is
// reported and skipped; the rest of the file still imports.
type ImportError struct {
	File    string
	Line    int
	Message string
}

// ImportOptions configures an import operation.
type ImportOptions struct {
	// DateField selects which export column populates the record date:
	// loan.FieldSaleDate (default) or loan.FieldRecordingDate.
	DateField   string
	Recursive   bool
	DryRun      bool
	MaxFileSize int64 // bytes, default 50MB
	ProgressFn  func(current, total int, file string)
}

// DefaultMaxFileSize is 50MB. Loan exports are wide but rarely huge.
const DefaultMaxFileSize = 50 * 1024 * 1024

// Normalize fills defaults and validates the date field.
func (o *ImportOptions) Normalize() error {
	if o.DateField == "" {
		o.DateField = loan.FieldSaleDate
	}
	if o.DateField != loan.FieldSaleDate && o.DateField != loan.FieldRecordingDate {
		return fmt.Errorf("unknown date field %q (want %s or %s)",
			o.DateField, loan.FieldSaleDate, loan.FieldRecordingDate)
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	return nil
}
