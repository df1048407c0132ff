package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hurttlocker/lendgraph/internal/loan"
)

// idColumn is the export's stable row identifier. Rows without one get a
// synthetic id from the file name and line number.
const idColumn = "id"

// CanHandle returns true for CSV/TSV file extensions.
func CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".csv" || ext == ".tsv"
}

// ParseFile parses one export file into loan records. Structural CSV errors
// abort the file; a row with the wrong field count is reported in the
// returned errors and skipped.
func ParseFile(path, dateField string) ([]loan.Record, []ImportError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if strings.ToLower(filepath.Ext(path)) == ".tsv" {
		reader.Comma = '\t'
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading header of %s: %w", path, err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	base := filepath.Base(path)
	var records []loan.Record
	var importErrs []ImportError

	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			importErrs = append(importErrs, ImportError{File: path, Line: line, Message: err.Error()})
			continue
		}
		if len(row) != len(headers) {
			importErrs = append(importErrs, ImportError{
				File: path, Line: line,
				Message: fmt.Sprintf("expected %d fields, got %d", len(headers), len(row)),
			})
			continue
		}

		rec := rowToRecord(headers, row, dateField)
		if rec.ID == "" {
			rec.ID = fmt.Sprintf("%s:%d", base, line)
		}
		if rec.Borrower == "" && rec.Lender == "" && rec.Amount == "" {
			continue // blank or all-descriptive row
		}
		records = append(records, rec)
	}

	return records, importErrs, nil
}

// rowToRecord maps the canonical columns into record fields and keeps the
// rest under Raw. Party names are identity keys, so only surrounding
// whitespace is trimmed; case variants stay distinct.
func rowToRecord(headers, row []string, dateField string) loan.Record {
	var rec loan.Record
	for i, val := range row {
		val = strings.TrimSpace(val)
		if val == "" {
			continue
		}
		switch headers[i] {
		case idColumn:
			rec.ID = val
		case loan.FieldBorrower:
			rec.Borrower = val
		case loan.FieldLender:
			rec.Lender = val
		case loan.FieldAmount:
			rec.Amount = val
		case dateField:
			rec.Date = val
		case "address":
			rec.Address = val
		case "city":
			rec.City = val
		case "propertyType":
			rec.PropertyType = val
		default:
			if rec.Raw == nil {
				rec.Raw = make(map[string]string)
			}
			rec.Raw[headers[i]] = val
		}
	}
	return rec
}
