// Package loan defines the loan record model shared by every analytics
// component.
//
// Records arrive from CSV exports whose numeric and date columns are
// string-encoded and frequently dirty. The coercion helpers here encode the
// two tolerated policies: zero-sentinel for sum aggregation, and strict
// parse-or-exclude for averages, binning, and outlier detection.
package loan

import (
	"strconv"
	"strings"
	"time"
)

// Canonical dataset column names. Party names double as identity keys; no
// normalization is applied, so case or whitespace variants are distinct
// parties.
const (
	FieldBorrower      = "buyerName"
	FieldLender        = "lenderName"
	FieldAmount        = "loanAmount"
	FieldSaleDate      = "saleDate"
	FieldRecordingDate = "recordingDate"
)

// DateLayout is the only accepted date format. ISO dates in this exact
// layout sort chronologically under plain string comparison, which the
// last-lender scan relies on.
const DateLayout = "2006-01-02"

// Record is a single flat loan record.
//
// Amount and Date stay raw strings: which coercion policy applies is decided
// per consuming computation, not unified here. Descriptive fields are used
// for display only.
type Record struct {
	ID           string `json:"id"`
	Borrower     string `json:"buyerName"`
	Lender       string `json:"lenderName"`
	Amount       string `json:"loanAmount"`
	Date         string `json:"date"`
	Address      string `json:"address,omitempty"`
	City         string `json:"city,omitempty"`
	PropertyType string `json:"propertyType,omitempty"`

	// Raw carries descriptive columns that are not analytics inputs.
	Raw map[string]string `json:"raw,omitempty"`
}

// ParseAmount coerces a raw loan amount. The boolean reports whether the
// value was a usable number; callers computing averages or bins skip the
// record when it is false.
func ParseAmount(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// AmountOrZero returns the record's amount with unparsable values coerced to
// the 0 sentinel. Sum-based volume aggregation uses this so a dirty row
// still counts as a loan.
func (r Record) AmountOrZero() float64 {
	v, ok := ParseAmount(r.Amount)
	if !ok {
		return 0
	}
	return v
}

// ParseDate strictly parses the record's date string.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Role selects which party a symmetric computation keys on.
type Role string

const (
	RoleBorrower Role = "borrower"
	RoleLender   Role = "lender"
)

// Valid reports whether the role is one of the two known parties.
func (p Role) Valid() bool {
	return p == RoleBorrower || p == RoleLender
}

// Counterparty returns the opposite role.
func (p Role) Counterparty() Role {
	if p == RoleBorrower {
		return RoleLender
	}
	return RoleBorrower
}

// PartyName returns the record field the role keys on.
func (p Role) PartyName(r Record) string {
	if p == RoleLender {
		return r.Lender
	}
	return r.Borrower
}
