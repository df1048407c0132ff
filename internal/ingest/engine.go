package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hurttlocker/lendgraph/internal/store"
)

// Engine imports loan export files into a store.
type Engine struct {
	store store.Store
}

// NewEngine creates an import engine backed by the given store.
func NewEngine(s store.Store) *Engine {
	return &Engine{store: s}
}

// Import imports a file or directory. Directories scan their immediate
// children unless opts.Recursive is set.
func (e *Engine) Import(ctx context.Context, path string, opts ImportOptions) (*ImportResult, error) {
	if err := opts.Normalize(); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return e.importDir(ctx, path, opts)
	}
	return e.importFile(ctx, path, info.Size(), opts)
}

func (e *Engine) importDir(ctx context.Context, dir string, opts ImportOptions) (*ImportResult, error) {
	var files []string
	walk := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if CanHandle(path) {
			files = append(files, path)
		}
		return nil
	}
	if err := filepath.WalkDir(dir, walk); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}

	total := &ImportResult{}
	for i, file := range files {
		if opts.ProgressFn != nil {
			opts.ProgressFn(i+1, len(files), file)
		}
		info, err := os.Stat(file)
		if err != nil {
			total.Errors = append(total.Errors, ImportError{File: file, Message: err.Error()})
			continue
		}
		result, err := e.importFile(ctx, file, info.Size(), opts)
		if err != nil {
			total.Errors = append(total.Errors, ImportError{File: file, Message: err.Error()})
			continue
		}
		total.Add(result)
	}
	return total, nil
}

func (e *Engine) importFile(ctx context.Context, path string, size int64, opts ImportOptions) (*ImportResult, error) {
	result := &ImportResult{FilesScanned: 1}

	if !CanHandle(path) {
		result.FilesSkipped = 1
		return result, nil
	}
	if size > opts.MaxFileSize {
		result.FilesSkipped = 1
		result.Errors = append(result.Errors, ImportError{
			File:    path,
			Message: fmt.Sprintf("file too large (%d bytes, max %d)", size, opts.MaxFileSize),
		})
		return result, nil
	}

	records, parseErrs, err := ParseFile(path, opts.DateField)
	if err != nil {
		return nil, err
	}
	result.Errors = append(result.Errors, parseErrs...)

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	var fresh []*store.Loan
	seen := make(map[string]bool) // in-file duplicates
	for _, rec := range records {
		l := &store.Loan{
			Record:      rec,
			SourceFile:  absPath,
			ContentHash: store.HashLoanRecord(rec.Borrower, rec.Lender, rec.Amount, rec.Date, rec.Address),
		}
		if seen[l.ContentHash] {
			result.LoansDuplicate++
			continue
		}
		seen[l.ContentHash] = true
		existing, err := e.store.FindByHash(ctx, l.ContentHash)
		if err != nil {
			return nil, fmt.Errorf("checking duplicate: %w", err)
		}
		if existing != nil {
			result.LoansDuplicate++
			continue
		}
		fresh = append(fresh, l)
	}

	result.LoansNew = len(fresh)
	if !opts.DryRun && len(fresh) > 0 {
		if _, err := e.store.AddLoanBatch(ctx, fresh); err != nil {
			return nil, fmt.Errorf("storing loans from %s: %w", path, err)
		}
	}

	result.FilesImported = 1
	return result, nil
}

// FormatImportResult renders an ImportResult for the CLI.
func FormatImportResult(r *ImportResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Files scanned:   %d\n", r.FilesScanned)
	fmt.Fprintf(&b, "Files imported:  %d\n", r.FilesImported)
	if r.FilesSkipped > 0 {
		fmt.Fprintf(&b, "Files skipped:   %d\n", r.FilesSkipped)
	}
	fmt.Fprintf(&b, "Loans added:     %d\n", r.LoansNew)
	fmt.Fprintf(&b, "Duplicates:      %d\n", r.LoansDuplicate)
	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "Errors:          %d\n", len(r.Errors))
		for _, e := range r.Errors {
			if e.Line > 0 {
				fmt.Fprintf(&b, "  %s:%d: %s\n", e.File, e.Line, e.Message)
			} else {
				fmt.Fprintf(&b, "  %s: %s\n", e.File, e.Message)
			}
		}
	}
	return b.String()
}
