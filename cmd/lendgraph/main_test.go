package main

import (
	"strings"
	"testing"
)

// ==================== parseFlags ====================

func TestParseFlags_ValueFlags(t *testing.T) {
	fs, err := parseFlags(
		[]string{"--db", "/tmp/test.db", "data/loans.csv", "--date-field", "recordingDate"},
		map[string]string{"--db": "db", "--date-field": "date-field"},
		nil,
	)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if fs.Values["db"] != "/tmp/test.db" {
		t.Errorf("db = %q, want /tmp/test.db", fs.Values["db"])
	}
	if fs.Values["date-field"] != "recordingDate" {
		t.Errorf("date-field = %q, want recordingDate", fs.Values["date-field"])
	}
	if len(fs.Args) != 1 || fs.Args[0] != "data/loans.csv" {
		t.Errorf("Args = %v, want [data/loans.csv]", fs.Args)
	}
}

func TestParseFlags_BoolAliases(t *testing.T) {
	boolFlags := map[string]string{
		"--recursive": "recursive", "-r": "recursive",
		"--dry-run": "dry-run", "-n": "dry-run",
	}

	fs, err := parseFlags([]string{"-r", "--dry-run", "exports"}, nil, boolFlags)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if !fs.Bools["recursive"] {
		t.Error("recursive should be set via -r alias")
	}
	if !fs.Bools["dry-run"] {
		t.Error("dry-run should be set")
	}
	if len(fs.Args) != 1 || fs.Args[0] != "exports" {
		t.Errorf("Args = %v, want [exports]", fs.Args)
	}
}

func TestParseFlags_MissingValue(t *testing.T) {
	_, err := parseFlags([]string{"--db"}, map[string]string{"--db": "db"}, nil)
	if err == nil {
		t.Fatal("expected error for flag without value")
	}
	if !strings.Contains(err.Error(), "requires a value") {
		t.Errorf("error = %v, want mention of missing value", err)
	}
}

func TestParseFlags_UnknownFlag(t *testing.T) {
	_, err := parseFlags([]string{"--bogus"}, map[string]string{"--db": "db"}, nil)
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
	if !strings.Contains(err.Error(), "--bogus") {
		t.Errorf("error = %v, want it to name the flag", err)
	}
}

func TestParseFlags_NoFlags(t *testing.T) {
	fs, err := parseFlags([]string{"stats"}, commonValueFlags, nil)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if len(fs.Values) != 0 || len(fs.Bools) != 0 {
		t.Errorf("expected empty flag maps, got %v %v", fs.Values, fs.Bools)
	}
	if len(fs.Args) != 1 || fs.Args[0] != "stats" {
		t.Errorf("Args = %v, want [stats]", fs.Args)
	}
}

// ==================== command argument validation ====================

func TestRunTop_RejectsUnknownRole(t *testing.T) {
	err := runTop([]string{"appraiser"})
	if err == nil {
		t.Fatal("expected error for unknown role")
	}
	if !strings.Contains(err.Error(), "appraiser") {
		t.Errorf("error = %v, want it to name the role", err)
	}
}

func TestRunChurn_RequiresLenderArg(t *testing.T) {
	err := runChurn(nil)
	if err == nil {
		t.Fatal("expected usage error when no lender is given")
	}
	if !strings.Contains(err.Error(), "usage:") {
		t.Errorf("error = %v, want usage message", err)
	}
}

func TestRunChurn_UnknownLender(t *testing.T) {
	err := runChurn([]string{"NOBODY BANK", "--db", ":memory:"})
	if err == nil {
		t.Fatal("expected error for lender absent from the dataset")
	}
	if !strings.Contains(err.Error(), "unknown lender") {
		t.Errorf("error = %v, want unknown lender", err)
	}
}
