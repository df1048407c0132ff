package main

import (
	"fmt"
	"os"

	"github.com/hurttlocker/lendgraph/internal/config"
	"github.com/hurttlocker/lendgraph/internal/store"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch os.Args[1] {
	case "import":
		err = runImport(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "churn":
		err = runChurn(os.Args[2:])
	case "migration":
		err = runMigration(os.Args[2:])
	case "share":
		err = runShare(os.Args[2:])
	case "monopoly":
		err = runMonopoly(os.Args[2:])
	case "top":
		err = runTop(os.Args[2:])
	case "outliers":
		err = runOutliers(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "mcp":
		err = runMCP(os.Args[2:])
	case "config":
		err = runConfig(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("lendgraph %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openStore resolves configuration and opens the loan cache.
func openStore(resolved config.ResolvedConfig) (store.Store, error) {
	return store.NewStore(store.Config{DBPath: resolved.DBPath.Value})
}

func printUsage() {
	fmt.Printf(`lendgraph %s - lender relationship and churn analytics for loan exports

Usage:
  lendgraph <command> [arguments]

Commands:
  import <path>        Import loan CSV/TSV exports into the local cache
  stats                Show dataset statistics
  churn <lender>       Show lost, gained, and repeat borrowers for a lender
  migration            Show borrower migration flows between lenders
  share                Show per-lender loan counts by amount bin
  monopoly             Show the most monopolized and most diverse market segments
  top <role>           Rank lenders or borrowers by loans or volume
  outliers             Flag loans with anomalous amounts
  serve                Start the dashboard JSON API server
  mcp                  Start the MCP server on stdio
  config               Show resolved configuration and where each value came from
  version              Print version

Import Flags:
  -r, --recursive      Recursively import from directories
  -n, --dry-run        Show what would be imported without writing
  --date-field <name>  Export column for the loan date: saleDate or recordingDate
  --data <dir>         Directory imported when no path argument is given

Common Flags:
  --db <path>          SQLite cache path (default ~/.lendgraph/lendgraph.db)
  --config <path>      Config file path (default ~/.lendgraph/config.yaml)
  -h, --help           Show this help message

Documentation:
  https://github.com/hurttlocker/lendgraph
`, version)
}
