package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveConfig_Precedence_ConfigEnvCLI(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	yaml := `db_path: ~/.lendgraph/from-config.db
date_field: recordingDate
bins:
  min_population: 25
server:
  port: 9000
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("LENDGRAPH_DB", "~/from-env.db")
	t.Setenv("LENDGRAPH_PORT", "9100")

	resolved, err := ResolveConfig(ResolveOptions{
		ConfigPath: cfgPath,
		CLIDBPath:  "~/from-cli.db",
	})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}

	if resolved.DBPath.Source != SourceCLI {
		t.Fatalf("expected db path source cli, got %s", resolved.DBPath.Source)
	}
	if resolved.ServerPort.Source != SourceEnv || resolved.ServerPort.Value != "9100" {
		t.Fatalf("expected port from env, got %+v", resolved.ServerPort)
	}
	if resolved.DateField.Source != SourceConfig || resolved.DateField.Value != "recordingDate" {
		t.Fatalf("expected date field from config, got %+v", resolved.DateField)
	}
	if resolved.BinMinPopulation.Value != "25" {
		t.Fatalf("expected min population 25, got %+v", resolved.BinMinPopulation)
	}
}

func TestResolveConfig_Defaults(t *testing.T) {
	resolved, err := ResolveConfig(ResolveOptions{
		ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"),
	})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}

	if resolved.DateField.Value != DefaultDateField || resolved.DateField.Source != SourceDefault {
		t.Fatalf("expected built-in date field, got %+v", resolved.DateField)
	}
	if resolved.ServerPort.Value != DefaultServerPort {
		t.Fatalf("expected default port, got %+v", resolved.ServerPort)
	}
	if resolved.DBPath.Value != "" {
		t.Fatalf("db path has no built-in default here, got %+v", resolved.DBPath)
	}
}

func TestResolveConfig_ExpandsUserPaths(t *testing.T) {
	resolved, err := ResolveConfig(ResolveOptions{
		ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"),
		CLIDBPath:  "~/data/loans.db",
	})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	home, _ := os.UserHomeDir()
	if resolved.DBPath.Value != filepath.Join(home, "data", "loans.db") {
		t.Fatalf("expected expanded home path, got %q", resolved.DBPath.Value)
	}
}

func TestResolveConfig_MalformedFile(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("{not yaml: ["), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := ResolveConfig(ResolveOptions{ConfigPath: cfgPath}); err == nil {
		t.Fatal("expected parse error for malformed config")
	}
}
