package store

import (
	"crypto/sha256"
	"fmt"
)

// HashLoanRecord computes the dedup hash for one loan record: SHA-256 over
// the analytic fields with NUL separators. Descriptive Raw columns are
// excluded so a re-export that only reorders extras does not duplicate rows.
//
// Note: SQLite DATE() cannot parse Go's time format. Use SUBSTR(col, 1, 10)
// for imported_at date comparisons.
func HashLoanRecord(borrower, lender, amount, date, address string) string {
	h := sha256.New()
	for _, field := range []string{borrower, lender, amount, date, address} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
