// Package config resolves lendgraph settings from the YAML config file,
// environment variables, and CLI flags, in that precedence order. Every
// resolved value records where it came from so `lendgraph config` can show
// why a setting has the value it does.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// ResolvedValue is a setting plus its provenance. From names the config
// file, env var, or flag that supplied it.
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries the CLI flag values into resolution. Empty strings
// mean the flag was not passed.
type ResolveOptions struct {
	ConfigPath string
	CLIDBPath  string
	CLIDataDir string
	CLIDate    string
	CLIMinPop  string
	CLIOutlier string
	CLIPort    string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath           ResolvedValue `json:"db_path"`
	DataDir          ResolvedValue `json:"data_dir"`
	DateField        ResolvedValue `json:"date_field"`
	BinMinPopulation ResolvedValue `json:"bin_min_population"`
	OutlierThreshold ResolvedValue `json:"outlier_threshold"`
	ServerPort       ResolvedValue `json:"server_port"`
}

type fileConfig struct {
	DBPath    string `yaml:"db_path"`
	DataDir   string `yaml:"data_dir"`
	DateField string `yaml:"date_field"`
	Bins      struct {
		MinPopulation string `yaml:"min_population"`
	} `yaml:"bins"`
	Outliers struct {
		Threshold string `yaml:"threshold"`
	} `yaml:"outliers"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
}

// Built-in defaults applied when nothing else sets a value.
const (
	DefaultDateField        = "saleDate"
	DefaultBinMinPopulation = "10"
	DefaultOutlierThreshold = "3"
	DefaultServerPort       = "8600"
)

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".lendgraph", "config.yaml")
}

// ResolveConfig resolves every setting. A missing config file is fine; a
// malformed one is an error.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{
		ConfigPath:       path,
		DateField:        ResolvedValue{Value: DefaultDateField, Source: SourceDefault, From: "built-in default"},
		BinMinPopulation: ResolvedValue{Value: DefaultBinMinPopulation, Source: SourceDefault, From: "built-in default"},
		OutlierThreshold: ResolvedValue{Value: DefaultOutlierThreshold, Source: SourceDefault, From: "built-in default"},
		ServerPort:       ResolvedValue{Value: DefaultServerPort, Source: SourceDefault, From: "built-in default"},
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.DataDir, cfg.DataDir, SourceConfig, path)
		apply(&out.DateField, cfg.DateField, SourceConfig, path)
		apply(&out.BinMinPopulation, cfg.Bins.MinPopulation, SourceConfig, path)
		apply(&out.OutlierThreshold, cfg.Outliers.Threshold, SourceConfig, path)
		apply(&out.ServerPort, cfg.Server.Port, SourceConfig, path)
	}

	applyEnv(&out.DBPath, "LENDGRAPH_DB")
	applyEnv(&out.DataDir, "LENDGRAPH_DATA_DIR")
	applyEnv(&out.DateField, "LENDGRAPH_DATE_FIELD")
	applyEnv(&out.BinMinPopulation, "LENDGRAPH_BIN_MIN_POPULATION")
	applyEnv(&out.OutlierThreshold, "LENDGRAPH_OUTLIER_THRESHOLD")
	applyEnv(&out.ServerPort, "LENDGRAPH_PORT")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.DataDir, opts.CLIDataDir, SourceCLI, "--data")
	apply(&out.DateField, opts.CLIDate, SourceCLI, "--date-field")
	apply(&out.BinMinPopulation, opts.CLIMinPop, SourceCLI, "--min-population")
	apply(&out.OutlierThreshold, opts.CLIOutlier, SourceCLI, "--outlier-threshold")
	apply(&out.ServerPort, opts.CLIPort, SourceCLI, "--port")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}
	if out.DataDir.Value != "" {
		out.DataDir.Value = expandUserPath(out.DataDir.Value)
	}

	return out, nil
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
