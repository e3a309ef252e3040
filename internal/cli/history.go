package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/pdatrace/internal/ir"
	"github.com/roach88/pdatrace/internal/store"
)

// StoreOptions holds the database flag shared by stats and history.
type StoreOptions struct {
	*RootOptions
	Database string
}

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	StoreOptions
	Program     string
	Address     string
	Pattern     string
	DerivedOnly bool
	Limit       int
}

// StatsOutput is the data of the stats command.
type StatsOutput struct {
	Totals      store.Stats          `json:"totals"`
	SuccessRate float64              `json:"success_rate"`
	Patterns    []store.PatternCount `json:"patterns"`
	Programs    []store.Program      `json:"programs"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise recorded analyses",
		Long: `Show totals, the success rate and the pattern distribution of every
analysis recorded in a database.

Example:
  pdatrace stats --db ./pdatrace.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{StoreOptions: StoreOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded analyses",
		Long: `List recorded analyses, newest first.

Examples:
  pdatrace history --db ./pdatrace.db
  pdatrace history --db ./pdatrace.db --program <program-id> --derived
  pdatrace history --db ./pdatrace.db --pattern associated_token --limit 20
  pdatrace history --db ./pdatrace.db --program <program-id> --address <address>`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Program, "program", "", "only analyses of this program id")
	cmd.Flags().StringVar(&opts.Address, "address", "", "show the latest analysis of this address (needs --program)")
	cmd.Flags().StringVar(&opts.Pattern, "pattern", "", "only analyses matched by this pattern")
	cmd.Flags().BoolVar(&opts.DerivedOnly, "derived", false, "only derived analyses")
	cmd.Flags().IntVar(&opts.Limit, "limit", store.DefaultLimit, "maximum rows")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// openExisting opens a database that must already exist, so a typo in
// --db does not silently create an empty one.
func openExisting(f *OutputFormatter, path string) (*store.Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fail(f, ExitCommandError, CodeStore, fmt.Sprintf("database not found: %s", path), nil)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fail(f, ExitCommandError, CodeStore, "failed to open database", err)
	}
	return st, nil
}

func runStats(ctx context.Context, opts *StoreOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	st, err := openExisting(f, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Stats(ctx)
	if err != nil {
		return fail(f, ExitCommandError, CodeStore, "failed to read stats", err)
	}
	patterns, err := st.PatternDistribution(ctx, nil)
	if err != nil {
		return fail(f, ExitCommandError, CodeStore, "failed to read pattern distribution", err)
	}
	programs, err := st.ListPrograms(ctx)
	if err != nil {
		return fail(f, ExitCommandError, CodeStore, "failed to read programs", err)
	}

	out := StatsOutput{
		Totals:      stats,
		SuccessRate: stats.SuccessRate(),
		Patterns:    patterns,
		Programs:    programs,
	}
	if f.JSON() {
		return f.Success(out)
	}

	f.Printf("Analyses:        %d\n", stats.Analyses)
	f.Printf("Derived:         %d (%.1f%%)\n", stats.Derived, out.SuccessRate*100)
	f.Printf("Programs:        %d\n", stats.Programs)
	f.Printf("Avg confidence:  %.2f\n", stats.AvgConfidence)
	f.Printf("Avg duration:    %s\n", stats.AvgDuration)
	if len(patterns) > 0 {
		f.Printf("\nPatterns:\n")
		for _, p := range patterns {
			f.Printf("  %-22s %-22s %d\n", p.Pattern, p.Family, p.Count)
		}
	}
	return nil
}

func runHistory(ctx context.Context, opts *HistoryOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	filter := store.Filter{
		Pattern:     opts.Pattern,
		DerivedOnly: opts.DerivedOnly,
		Limit:       opts.Limit,
	}
	if opts.Limit < 0 {
		return fail(f, ExitCommandError, CodeInvalidInput, fmt.Sprintf("invalid limit %d", opts.Limit), nil)
	}
	if opts.Program != "" {
		program, err := ir.ParsePublicKey(opts.Program)
		if err != nil {
			return fail(f, ExitCommandError, CodeInvalidInput, "invalid program id", err)
		}
		filter.ProgramID = &program
	}

	var address *ir.PublicKey
	if opts.Address != "" {
		if filter.ProgramID == nil {
			return fail(f, ExitCommandError, CodeInvalidInput, "--address requires --program", nil)
		}
		a, err := ir.ParsePublicKey(opts.Address)
		if err != nil {
			return fail(f, ExitCommandError, CodeInvalidInput, "invalid address", err)
		}
		address = &a
	}

	st, err := openExisting(f, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if address != nil {
		return lookupAnalysis(ctx, f, st, *address, *filter.ProgramID)
	}

	rows, err := st.ListAnalyses(ctx, filter)
	if err != nil {
		return fail(f, ExitCommandError, CodeStore, "failed to list analyses", err)
	}

	if f.JSON() {
		return f.Success(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(f.Writer, "No analyses recorded.")
		return nil
	}
	for _, a := range rows {
		printHistoryRow(f, a)
	}
	return nil
}

// lookupAnalysis prints the latest analysis of address under program.
// A missing row exits with ExitFailure.
func lookupAnalysis(ctx context.Context, f *OutputFormatter, st *store.Store, address, program ir.PublicKey) error {
	a, found, err := st.FindAnalysis(ctx, address, program)
	if err != nil {
		return fail(f, ExitCommandError, CodeStore, "failed to find analysis", err)
	}
	if !found {
		return fail(f, ExitFailure, CodeNotFound, fmt.Sprintf("no analysis recorded for %s", address), nil)
	}

	if f.JSON() {
		return f.Success(a)
	}
	printHistoryRow(f, a)
	if a.Derived {
		f.Printf("    seeds: %s\n", strings.Join(a.Seeds.Strings(), ", "))
	}
	return nil
}

func printHistoryRow(f *OutputFormatter, a store.Analysis) {
	f.Printf("#%d  %s  %s  ", a.Seq, a.RecordedAt.Format(time.RFC3339), a.Address)
	if a.Derived {
		f.Printf("%s (%.2f) bump %d\n", a.Pattern, a.Confidence, a.Bump)
	} else {
		f.Printf("not derived\n")
	}
}
