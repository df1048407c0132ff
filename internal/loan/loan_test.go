package loan

import "testing"

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"250000", 250000, true},
		{"250000.50", 250000.50, true},
		{" 1000 ", 1000, true},
		{"0", 0, true},
		{"", 0, false},
		{"N/A", 0, false},
		{"$250,000", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseAmount(tt.raw)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseAmount(%q) = %v, %v; want %v, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAmountOrZero(t *testing.T) {
	if got := (Record{Amount: "bad"}).AmountOrZero(); got != 0 {
		t.Errorf("unparsable amount: expected 0, got %v", got)
	}
	if got := (Record{Amount: "42.5"}).AmountOrZero(); got != 42.5 {
		t.Errorf("expected 42.5, got %v", got)
	}
}

func TestParseDate(t *testing.T) {
	d, ok := ParseDate("2026-03-10")
	if !ok {
		t.Fatal("expected 2026-03-10 to parse")
	}
	if d.Year() != 2026 || d.Month() != 3 || d.Day() != 10 {
		t.Errorf("unexpected date %v", d)
	}
	for _, raw := range []string{"", "03/10/2026", "2026-3-10", "2026-03-10T00:00:00Z"} {
		if _, ok := ParseDate(raw); ok {
			t.Errorf("ParseDate(%q) should fail", raw)
		}
	}
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"1234567", "$1,234,567"},
		{"999", "$999"},
		{"1000", "$1,000"},
		{"250000.75", "$250,001"},
		{"-5000", "-$5,000"},
		{"garbled", "N/A"},
		{"", "N/A"},
	}
	for _, tt := range tests {
		if got := FormatCurrency(tt.raw); got != tt.want {
			t.Errorf("FormatCurrency(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestRole(t *testing.T) {
	if !RoleBorrower.Valid() || !RoleLender.Valid() || Role("broker").Valid() {
		t.Error("role validity misclassified")
	}
	if RoleBorrower.Counterparty() != RoleLender || RoleLender.Counterparty() != RoleBorrower {
		t.Error("counterparty mapping wrong")
	}
	r := Record{Borrower: "B", Lender: "L"}
	if RoleBorrower.PartyName(r) != "B" || RoleLender.PartyName(r) != "L" {
		t.Error("party name selection wrong")
	}
}
