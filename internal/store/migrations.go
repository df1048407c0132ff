package store

import "fmt"

// migrate creates all tables and indexes if they don't exist. The schema is
// deliberately flat: one row per loan record, descriptive extras in a JSON
// column, no foreign keys.
func (s *SQLiteStore) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS loans (
			rowid         INTEGER PRIMARY KEY AUTOINCREMENT,
			record_id     TEXT NOT NULL,
			borrower      TEXT NOT NULL DEFAULT '',
			lender        TEXT NOT NULL DEFAULT '',
			amount        TEXT NOT NULL DEFAULT '',
			date          TEXT NOT NULL DEFAULT '',
			address       TEXT NOT NULL DEFAULT '',
			city          TEXT NOT NULL DEFAULT '',
			property_type TEXT NOT NULL DEFAULT '',
			raw           TEXT,
			source_file   TEXT NOT NULL DEFAULT '',
			content_hash  TEXT UNIQUE NOT NULL,
			imported_at   DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// The churn and migration scans filter by lender, the monopoly scan
		// by city, and the timeline by date range.
		`CREATE INDEX IF NOT EXISTS idx_loans_lender ON loans(lender)`,
		`CREATE INDEX IF NOT EXISTS idx_loans_borrower ON loans(borrower)`,
		`CREATE INDEX IF NOT EXISTS idx_loans_city ON loans(city)`,
		`CREATE INDEX IF NOT EXISTS idx_loans_date ON loans(date)`,
		`CREATE INDEX IF NOT EXISTS idx_loans_source ON loans(source_file)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}
	return nil
}
