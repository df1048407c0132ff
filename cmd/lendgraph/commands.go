package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/lendgraph/internal/bins"
	"github.com/hurttlocker/lendgraph/internal/config"
	"github.com/hurttlocker/lendgraph/internal/dashboard"
	"github.com/hurttlocker/lendgraph/internal/ingest"
	"github.com/hurttlocker/lendgraph/internal/loan"
	"github.com/hurttlocker/lendgraph/internal/mcp"
	"github.com/hurttlocker/lendgraph/internal/metrics"
	"github.com/hurttlocker/lendgraph/internal/relation"
	"github.com/hurttlocker/lendgraph/internal/store"
)

// flagSet is the shared hand-rolled parser: boolean flags and flags that
// consume the next argument. Positional arguments collect in Args.
type flagSet struct {
	Args   []string
	Values map[string]string
	Bools  map[string]bool
}

// parseFlags splits args into positionals, value flags, and boolean flags.
// valueFlags maps accepted flag names (including aliases) to a canonical
// name; boolFlags likewise.
func parseFlags(args []string, valueFlags, boolFlags map[string]string) (flagSet, error) {
	fs := flagSet{Values: map[string]string{}, Bools: map[string]bool{}}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			fs.Args = append(fs.Args, arg)
			continue
		}
		if canonical, ok := boolFlags[arg]; ok {
			fs.Bools[canonical] = true
			continue
		}
		if canonical, ok := valueFlags[arg]; ok {
			if i+1 >= len(args) {
				return fs, fmt.Errorf("flag %s requires a value", arg)
			}
			i++
			fs.Values[canonical] = args[i]
			continue
		}
		return fs, fmt.Errorf("unknown flag: %s", arg)
	}
	return fs, nil
}

var commonValueFlags = map[string]string{
	"--db":     "db",
	"--config": "config",
}

func resolve(fs flagSet) (config.ResolvedConfig, error) {
	return config.ResolveConfig(config.ResolveOptions{
		ConfigPath: fs.Values["config"],
		CLIDBPath:  fs.Values["db"],
		CLIDataDir: fs.Values["data"],
		CLIDate:    fs.Values["date-field"],
		CLIMinPop:  fs.Values["min-population"],
		CLIOutlier: fs.Values["outlier-threshold"],
		CLIPort:    fs.Values["port"],
	})
}

// loadRecords opens the store and loads every cached record, oldest first.
func loadRecords(resolved config.ResolvedConfig) ([]loan.Record, error) {
	s, err := openStore(resolved)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	loans, err := s.ListLoans(context.Background(), store.ListOpts{})
	if err != nil {
		return nil, fmt.Errorf("loading loans: %w", err)
	}
	return store.Records(loans), nil
}

func runImport(args []string) error {
	flags := map[string]string{"--date-field": "date-field", "--data": "data"}
	for k, v := range commonValueFlags {
		flags[k] = v
	}
	fs, err := parseFlags(args, flags, map[string]string{
		"--recursive": "recursive", "-r": "recursive",
		"--dry-run": "dry-run", "-n": "dry-run",
	})
	if err != nil {
		return err
	}

	resolved, err := resolve(fs)
	if err != nil {
		return err
	}
	if len(fs.Args) == 0 {
		if resolved.DataDir.Value == "" {
			return fmt.Errorf("usage: lendgraph import <path> [--recursive] [--dry-run] [--date-field saleDate|recordingDate]")
		}
		fs.Args = []string{resolved.DataDir.Value}
	}

	s, err := openStore(resolved)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	engine := ingest.NewEngine(s)
	opts := ingest.ImportOptions{
		DateField: resolved.DateField.Value,
		Recursive: fs.Bools["recursive"],
		DryRun:    fs.Bools["dry-run"],
	}

	if opts.DryRun {
		fmt.Println("Dry run mode - no changes will be written")
		fmt.Println()
	}

	ctx := context.Background()
	total := &ingest.ImportResult{}
	for _, path := range fs.Args {
		fmt.Printf("Importing %s...\n", path)
		opts.ProgressFn = func(current, totalFiles int, file string) {
			fmt.Printf("  [%d/%d] %s\n", current, totalFiles, file)
		}
		result, err := engine.Import(ctx, path, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
			continue
		}
		total.Add(result)
	}

	fmt.Println()
	fmt.Print(ingest.FormatImportResult(total))
	return nil
}

func runStats(args []string) error {
	fs, err := parseFlags(args, commonValueFlags, nil)
	if err != nil {
		return err
	}
	resolved, err := resolve(fs)
	if err != nil {
		return err
	}

	s, err := openStore(resolved)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	ctx := context.Background()
	stats, err := s.Stats(ctx)
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	loans, err := s.ListLoans(ctx, store.ListOpts{})
	if err != nil {
		return fmt.Errorf("loading loans: %w", err)
	}
	records := store.Records(loans)

	fmt.Printf("Loans:          %d\n", stats.LoanCount)
	fmt.Printf("Lenders:        %d\n", stats.LenderCount)
	fmt.Printf("Source files:   %d\n", stats.SourceFiles)
	if stats.EarliestDate != "" {
		fmt.Printf("Date range:     %s to %s\n", stats.EarliestDate, stats.LatestDate)
	}
	fmt.Printf("Total volume:   %s\n", loan.FormatCurrency(strconv.FormatInt(metrics.TotalVolume(records), 10)))
	avg := metrics.AverageAmount(records)
	fmt.Printf("Average amount: %s\n", loan.FormatCurrency(strconv.FormatFloat(avg, 'f', -1, 64)))
	if stats.DBSizeBytes > 0 {
		fmt.Printf("Cache size:     %.1f MB\n", float64(stats.DBSizeBytes)/(1024*1024))
	}
	return nil
}

func runChurn(args []string) error {
	fs, err := parseFlags(args, commonValueFlags, nil)
	if err != nil {
		return err
	}
	if len(fs.Args) != 1 {
		return fmt.Errorf("usage: lendgraph churn <lender>")
	}
	lender := fs.Args[0]

	resolved, err := resolve(fs)
	if err != nil {
		return err
	}
	records, err := loadRecords(resolved)
	if err != nil {
		return err
	}

	idx := relation.BuildIndices(records)
	if _, served := idx.LenderBorrowers[lender]; !served {
		return fmt.Errorf("unknown lender: %s", lender)
	}

	lost := relation.SortedMembers(relation.LostBorrowers(idx)[lender])
	gained := relation.SortedMembers(relation.GainedBorrowers(idx)[lender])
	repeat := relation.SortedMembers(relation.RepeatBorrowers(records)[lender])

	fmt.Printf("Churn for %s\n\n", lender)
	printNameList("Lost borrowers", lost, idx.LastLender)
	printNameList("Gained borrowers", gained, nil)
	printNameList("Repeat borrowers", repeat, nil)
	return nil
}

// printNameList prints a churn section. When lastLender is set, each name
// shows where the borrower went.
func printNameList(title string, names []string, lastLender map[string]string) {
	fmt.Printf("%s (%d):\n", title, len(names))
	for _, name := range names {
		if lastLender != nil {
			fmt.Printf("  %s -> %s\n", name, lastLender[name])
		} else {
			fmt.Printf("  %s\n", name)
		}
	}
	fmt.Println()
}

func runMigration(args []string) error {
	flags := map[string]string{"--limit": "limit"}
	for k, v := range commonValueFlags {
		flags[k] = v
	}
	fs, err := parseFlags(args, flags, nil)
	if err != nil {
		return err
	}
	resolved, err := resolve(fs)
	if err != nil {
		return err
	}
	records, err := loadRecords(resolved)
	if err != nil {
		return err
	}

	flows := relation.MigrationFlows(records)
	if raw, ok := fs.Values["limit"]; ok {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return fmt.Errorf("invalid --limit: %s", raw)
		}
		if limit < len(flows) {
			flows = flows[:limit]
		}
	}

	if len(flows) == 0 {
		fmt.Println("No borrower migrations found.")
		return nil
	}
	fmt.Printf("%-40s %-40s %s\n", "FROM", "TO", "BORROWERS")
	for _, f := range flows {
		fmt.Printf("%-40s %-40s %d\n", f.From, f.To, f.Count)
	}
	return nil
}

func runShare(args []string) error {
	flags := map[string]string{"--min-population": "min-population", "--city": "city"}
	for k, v := range commonValueFlags {
		flags[k] = v
	}
	fs, err := parseFlags(args, flags, nil)
	if err != nil {
		return err
	}
	resolved, err := resolve(fs)
	if err != nil {
		return err
	}

	minPop, err := strconv.Atoi(resolved.BinMinPopulation.Value)
	if err != nil {
		return fmt.Errorf("invalid bin min population %q", resolved.BinMinPopulation.Value)
	}

	s, err := openStore(resolved)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	loans, err := s.ListLoans(context.Background(), store.ListOpts{City: fs.Values["city"]})
	if err != nil {
		return fmt.Errorf("loading loans: %w", err)
	}
	records := store.Records(loans)

	b, err := bins.Derive(metrics.Amounts(records), bins.DefaultCandidates, minPop)
	if err != nil {
		return err
	}

	fmt.Printf("%-20s %-40s %s\n", "BIN", "LENDER", "LOANS")
	for _, row := range bins.Assign(records, b) {
		fmt.Printf("%-20s %-40s %d\n", row.Bin, row.Lender, row.Count)
	}
	return nil
}

func runMonopoly(args []string) error {
	flags := map[string]string{"--n": "n"}
	for k, v := range commonValueFlags {
		flags[k] = v
	}
	fs, err := parseFlags(args, flags, nil)
	if err != nil {
		return err
	}
	resolved, err := resolve(fs)
	if err != nil {
		return err
	}
	records, err := loadRecords(resolved)
	if err != nil {
		return err
	}

	n := 10
	if raw, ok := fs.Values["n"]; ok {
		n, err = strconv.Atoi(raw)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid --n: %s", raw)
		}
	}

	scores := bins.MonopolyScores(records, bins.MonopolyOptions{})
	if len(scores) == 0 {
		fmt.Println("No market segments large enough to score.")
		return nil
	}

	fmt.Println("Most monopolized segments:")
	printSegments(bins.TopMonopolized(scores, n))
	fmt.Println()
	fmt.Println("Most diverse segments:")
	printSegments(bins.TopDiverse(scores, n))
	return nil
}

func printSegments(segments []bins.SegmentScore) {
	fmt.Printf("  %-25s %-15s %6s %8s %8s\n", "CITY", "BIN", "LOANS", "LENDERS", "SCORE")
	for _, seg := range segments {
		fmt.Printf("  %-25s %-15s %6d %8d %8.1f\n", seg.City, seg.Bin, seg.BinLoans, seg.Lenders, seg.Score)
	}
}

func runTop(args []string) error {
	flags := map[string]string{"--by": "by", "--n": "n"}
	for k, v := range commonValueFlags {
		flags[k] = v
	}
	fs, err := parseFlags(args, flags, nil)
	if err != nil {
		return err
	}
	if len(fs.Args) != 1 {
		return fmt.Errorf("usage: lendgraph top <borrower|lender> [--by count|volume] [--n 10]")
	}
	role := loan.Role(fs.Args[0])
	if !role.Valid() {
		return fmt.Errorf("unknown role %q (want borrower or lender)", fs.Args[0])
	}

	resolved, err := resolve(fs)
	if err != nil {
		return err
	}
	records, err := loadRecords(resolved)
	if err != nil {
		return err
	}

	n := 10
	if raw, ok := fs.Values["n"]; ok {
		n, err = strconv.Atoi(raw)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid --n: %s", raw)
		}
	}

	by := fs.Values["by"]
	var top []loan.Record
	switch by {
	case "", "count":
		top = metrics.TopByCount(records, role, n)
	case "volume":
		top = metrics.TopByVolume(records, role, n)
	default:
		return fmt.Errorf("invalid --by %q (want count or volume)", by)
	}

	counts := metrics.LoanCounts(top, role)
	var volume map[string]int64
	if role == loan.RoleLender {
		volume = metrics.LenderVolume(top)
	} else {
		volume = metrics.BorrowerVolume(top)
	}

	fmt.Printf("%-40s %6s %s\n", strings.ToUpper(string(role)), "LOANS", "VOLUME")
	seen := make(map[string]bool)
	for _, rec := range top {
		name := role.PartyName(rec)
		if seen[name] {
			continue
		}
		seen[name] = true
		fmt.Printf("%-40s %6d %s\n", name, counts[name],
			loan.FormatCurrency(strconv.FormatInt(volume[name], 10)))
	}
	return nil
}

func runOutliers(args []string) error {
	flags := map[string]string{"--method": "method", "--threshold": "outlier-threshold"}
	for k, v := range commonValueFlags {
		flags[k] = v
	}
	fs, err := parseFlags(args, flags, nil)
	if err != nil {
		return err
	}
	resolved, err := resolve(fs)
	if err != nil {
		return err
	}

	threshold, err := strconv.ParseFloat(resolved.OutlierThreshold.Value, 64)
	if err != nil || threshold <= 0 {
		return fmt.Errorf("invalid outlier threshold %q", resolved.OutlierThreshold.Value)
	}

	var strategy metrics.OutlierStrategy
	switch fs.Values["method"] {
	case "", "zscore":
		strategy = metrics.ModifiedZScoreOutliers
	case "stddev":
		strategy = metrics.StdDevOutliers
	default:
		return fmt.Errorf("invalid --method %q (want zscore or stddev)", fs.Values["method"])
	}

	records, err := loadRecords(resolved)
	if err != nil {
		return err
	}

	// Unparsable amounts never feed the statistics.
	kept := make([]loan.Record, 0, len(records))
	values := make([]float64, 0, len(records))
	for _, rec := range records {
		if v, ok := loan.ParseAmount(rec.Amount); ok {
			kept = append(kept, rec)
			values = append(values, v)
		}
	}

	mask := strategy(values, threshold)
	flagged := 0
	for i, rec := range kept {
		if !mask[i] {
			continue
		}
		if flagged == 0 {
			fmt.Printf("%-12s %-40s %-40s %s\n", "DATE", "BORROWER", "LENDER", "AMOUNT")
		}
		flagged++
		fmt.Printf("%-12s %-40s %-40s %s\n", rec.Date, rec.Borrower, rec.Lender, loan.FormatCurrency(rec.Amount))
	}

	fmt.Printf("\n%d of %d loans flagged (threshold %.2f)\n", flagged, len(kept), threshold)
	return nil
}

func runServe(args []string) error {
	flags := map[string]string{"--port": "port"}
	for k, v := range commonValueFlags {
		flags[k] = v
	}
	fs, err := parseFlags(args, flags, nil)
	if err != nil {
		return err
	}
	resolved, err := resolve(fs)
	if err != nil {
		return err
	}

	port, err := strconv.Atoi(resolved.ServerPort.Value)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %q", resolved.ServerPort.Value)
	}

	s, err := openStore(resolved)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	return dashboard.Serve(dashboard.ServerConfig{Store: s, Port: port})
}

func runMCP(args []string) error {
	fs, err := parseFlags(args, commonValueFlags, nil)
	if err != nil {
		return err
	}
	resolved, err := resolve(fs)
	if err != nil {
		return err
	}

	s, err := openStore(resolved)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	srv := mcp.NewServer(mcp.ServerConfig{Store: s, Version: version})
	return mcpserver.ServeStdio(srv)
}

func runConfig(args []string) error {
	flags := map[string]string{
		"--date-field":        "date-field",
		"--min-population":    "min-population",
		"--outlier-threshold": "outlier-threshold",
		"--port":              "port",
	}
	for k, v := range commonValueFlags {
		flags[k] = v
	}
	fs, err := parseFlags(args, flags, nil)
	if err != nil {
		return err
	}
	resolved, err := resolve(fs)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(resolved, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
