package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"project-cleanup/internal/database"
	"project-cleanup/internal/exitcodes"
)

type options struct {
	dbPath  string
	recent  int
	runs    int
	outcome string
	target  string
	stats   bool
	days    int
	json    bool

	pruneDays int
	vacuum    bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := pflag.NewFlagSet("project-cleanup-history", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.dbPath, "db", "cleanup-history.db", "Path to the cleanup history database")
	fs.IntVar(&opts.recent, "recent", 0, "Show N most recent target results")
	fs.IntVar(&opts.runs, "runs", 0, "Show N most recent runs")
	fs.StringVar(&opts.outcome, "outcome", "", "Filter results by outcome (removed, absent, error)")
	fs.StringVar(&opts.target, "target", "", "Filter results by target name (SQL LIKE syntax)")
	fs.BoolVar(&opts.stats, "stats", false, "Show cleanup statistics")
	fs.IntVar(&opts.days, "days", 30, "Number of days for statistics")
	fs.BoolVar(&opts.json, "json", false, "Output in JSON format")
	fs.IntVar(&opts.pruneDays, "prune-days", 0, "Delete runs older than N days")
	fs.BoolVar(&opts.vacuum, "vacuum", false, "Compact the database file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitcodes.Success
		}
		return exitcodes.InvalidConfig
	}
	if opts.pruneDays < 0 {
		fmt.Fprintln(stderr, "--prune-days must not be negative")
		return exitcodes.InvalidConfig
	}

	logger := log.New()
	logger.SetOutput(stderr)
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true, DisableColors: true})

	if _, err := os.Stat(opts.dbPath); err != nil {
		logger.WithError(err).WithField("db", opts.dbPath).Error("history database not found")
		return exitcodes.RuntimeError
	}

	db, err := database.NewHistoryDB(opts.dbPath)
	if err != nil {
		logger.WithError(err).WithField("db", opts.dbPath).Error("failed to open database")
		return exitcodes.RuntimeError
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Error("failed to close database")
		}
	}()

	if opts.pruneDays > 0 || opts.vacuum {
		if err := maintain(db, stdout, opts.pruneDays, opts.vacuum); err != nil {
			logger.WithError(err).Error("maintenance failed")
			return exitcodes.RuntimeError
		}
		return exitcodes.Success
	}

	q := &querier{db: db, out: stdout, json: opts.json}

	switch {
	case opts.stats:
		err = q.showStats(opts.days)
	case opts.runs > 0:
		err = q.showRuns(opts.runs)
	case opts.recent > 0:
		err = q.showResults("", func() ([]database.ResultRecord, error) {
			return db.GetRecentResults(opts.recent)
		})
	case opts.outcome != "":
		err = q.showResults(fmt.Sprintf("Results with outcome: %s", opts.outcome), func() ([]database.ResultRecord, error) {
			return db.GetResultsByOutcome(opts.outcome)
		})
	case opts.target != "":
		err = q.showResults(fmt.Sprintf("Results matching target: %s", opts.target), func() ([]database.ResultRecord, error) {
			return db.GetResultsByTarget(opts.target)
		})
	default:
		fmt.Fprintln(stderr, "Usage of project-cleanup-history:")
		fs.PrintDefaults()
		fmt.Fprintln(stderr, "\nExamples:")
		fmt.Fprintln(stderr, "  project-cleanup-history --db history.db --runs 5            # Show the last 5 runs")
		fmt.Fprintln(stderr, "  project-cleanup-history --db history.db --recent 20         # Show the last 20 target results")
		fmt.Fprintln(stderr, "  project-cleanup-history --db history.db --outcome error     # Show failed targets")
		fmt.Fprintf(stderr, "  project-cleanup-history --db history.db --target '%%.db'     # Show results for .db files\n")
		fmt.Fprintln(stderr, "  project-cleanup-history --db history.db --stats --days 7    # Show weekly statistics")
		fmt.Fprintln(stderr, "  project-cleanup-history --db history.db --prune-days 90 --vacuum  # Drop old runs and compact")
		return exitcodes.InvalidConfig
	}

	if err != nil {
		logger.WithError(err).Error("query failed")
		return exitcodes.RuntimeError
	}
	return exitcodes.Success
}

// maintain prunes runs older than pruneDays (when positive), then optionally vacuums
func maintain(db *database.HistoryDB, out io.Writer, pruneDays int, vacuum bool) error {
	if pruneDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -pruneDays)
		n, err := db.Prune(cutoff)
		if err != nil {
			return fmt.Errorf("prune history: %w", err)
		}
		fmt.Fprintf(out, "Pruned %d runs older than %d days\n", n, pruneDays)
	}
	if vacuum {
		if err := db.Vacuum(); err != nil {
			return fmt.Errorf("vacuum database: %w", err)
		}
		fmt.Fprintln(out, "Database vacuumed")
	}
	return nil
}

type querier struct {
	db   *database.HistoryDB
	out  io.Writer
	json bool
}

func (q *querier) writeJSON(v interface{}) error {
	enc := json.NewEncoder(q.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (q *querier) showStats(days int) error {
	stats, err := q.db.GetHistoryStats(days)
	if err != nil {
		return fmt.Errorf("get statistics: %w", err)
	}

	if q.json {
		return q.writeJSON(stats)
	}

	fmt.Fprintf(q.out, "Cleanup Statistics (Last %d days)\n", days)
	fmt.Fprintf(q.out, "Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Fprintf(q.out, "Runs:         %d\n", stats.TotalRuns)
	fmt.Fprintf(q.out, "Removed:      %d\n", stats.TotalRemoved)
	fmt.Fprintf(q.out, "Absent:       %d\n", stats.TotalAbsent)
	fmt.Fprintf(q.out, "Errors:       %d\n", stats.TotalErrors)
	fmt.Fprintf(q.out, "Space Freed:  %s\n", formatBytes(stats.TotalBytesFreed))

	if len(stats.ByTarget) > 0 {
		fmt.Fprintln(q.out, "\nRemovals by target:")
		names := make([]string, 0, len(stats.ByTarget))
		for name := range stats.ByTarget {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(q.out, "  %-20s %d\n", name, stats.ByTarget[name])
		}
	}
	return nil
}

func (q *querier) showRuns(limit int) error {
	runs, err := q.db.GetRecentRuns(limit)
	if err != nil {
		return fmt.Errorf("get recent runs: %w", err)
	}

	if q.json {
		return q.writeJSON(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(q.out, "No runs found")
		return nil
	}

	w := tabwriter.NewWriter(q.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tStarted\tRemoved\tAbsent\tErrors\tFreed\tRoot")
	_, _ = fmt.Fprintln(w, "--\t-------\t-------\t------\t------\t-----\t----")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Removed, r.Absent, r.Errors, formatBytes(r.BytesFreed), r.Root)
	}
	return w.Flush()
}

func (q *querier) showResults(title string, fetch func() ([]database.ResultRecord, error)) error {
	records, err := fetch()
	if err != nil {
		return fmt.Errorf("query results: %w", err)
	}

	if q.json {
		return q.writeJSON(records)
	}

	if title != "" {
		fmt.Fprintf(q.out, "%s\n\n", title)
	}
	printResults(q.out, records)
	return nil
}

func printResults(out io.Writer, records []database.ResultRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No records found")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tRun\tTimestamp\tOutcome\tKind\tSize\tPath\tError")
	_, _ = fmt.Fprintln(w, "--\t---\t---------\t-------\t----\t----\t----\t-----")

	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.RunID, r.Timestamp.Local().Format("2006-01-02 15:04:05"),
			r.Outcome, r.Kind, formatBytes(r.Size), r.Path, r.ErrorMessage)
	}
	_ = w.Flush()
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
