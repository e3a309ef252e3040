package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pdatrace/internal/engine"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	*RootOptions
	Context     []string // role=key bindings
	Database    string   // record the result here when set
	PatternsDir string   // extra CUE patterns
	NoCache     bool
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analyze <address> <program-id>",
		Short: "Recover the seeds of a program derived address",
		Long: `Search the pattern library for the seeds and bump that derive <address>
under <program-id>.

Keys the seeds may contain, such as the wallet of an associated token
account, are passed as --context role=key bindings.

Exit codes:
  0 - Address derived
  1 - No pattern matched
  2 - Command error (invalid input, unreadable patterns, store errors)

Examples:
  pdatrace analyze <ata> ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL \
    --context wallet=<wallet> --context mint=<mint>
  pdatrace analyze <address> <program> --db ./pdatrace.db --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Context, "context", nil, "context binding role=key (repeatable)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the result in this SQLite database")
	cmd.Flags().StringVar(&opts.PatternsDir, "patterns", "", "directory of extra CUE pattern definitions")
	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "search directly without the result cache")

	return cmd
}

func runAnalyze(ctx context.Context, opts *AnalyzeOptions, address, programID string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	cfg, err := opts.Config()
	if err != nil {
		return fail(f, ExitCommandError, CodeConfig, "failed to load config", err)
	}

	bindings, err := parseContext(opts.Context)
	if err != nil {
		return fail(f, ExitCommandError, CodeInvalidInput, "invalid context", err)
	}
	in := engine.RequestInput{Address: address, ProgramID: programID, Context: bindings}
	req, err := in.Parse()
	if err != nil {
		return fail(f, ExitCommandError, CodeInvalidInput, "invalid input", err)
	}

	analyzer, err := newAnalyzer(cfg, opts.PatternsDir)
	if err != nil {
		return fail(f, ExitCommandError, CodePatterns, "failed to build pattern library", err)
	}

	var m *engine.PdaMatch
	if opts.NoCache {
		m = analyzer.AnalyzeUncached(req)
	} else if m, err = analyzer.AnalyzeRequest(ctx, req); err != nil {
		return fail(f, ExitCommandError, CodeInternal, "analysis failed", err)
	}

	if opts.Database != "" {
		rec, st, err := openRecorder(ctx, opts.Database)
		if err != nil {
			return fail(f, ExitCommandError, CodeStore, "failed to open database", err)
		}
		defer st.Close()

		a, err := rec.Record(ctx, req, m)
		if err != nil {
			return fail(f, ExitCommandError, CodeStore, "failed to record analysis", err)
		}
		f.VerboseLog("recorded %s at seq %d", a.ID, a.Seq)
	}

	f.TraceID = req.ID()
	if !m.Derived {
		msg := noMatchMessage(m)
		if f.JSON() {
			if err := f.Failure(CodeNoMatch, msg, nil, m); err != nil {
				return err
			}
		} else {
			printMatch(f, m)
		}
		return ReportedError(ExitFailure, msg, nil)
	}

	if f.JSON() {
		return f.Success(m)
	}
	printMatch(f, m)
	return nil
}

// parseContext turns role=key flags into a context map.
func parseContext(bindings []string) (map[string]string, error) {
	if len(bindings) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(bindings))
	for _, b := range bindings {
		role, key, ok := strings.Cut(b, "=")
		role = strings.TrimSpace(role)
		if !ok || role == "" {
			return nil, fmt.Errorf("%q: want role=key", b)
		}
		if _, dup := out[role]; dup {
			return nil, fmt.Errorf("role %q bound twice", role)
		}
		out[role] = strings.TrimSpace(key)
	}
	return out, nil
}

func noMatchMessage(m *engine.PdaMatch) string {
	if m.Exhausted {
		return fmt.Sprintf("search budget exhausted after %d candidates", m.Candidates)
	}
	return "no pattern matched"
}

// printMatch renders a match as aligned text.
func printMatch(f *OutputFormatter, m *engine.PdaMatch) {
	f.Printf("Address:     %s\n", m.Address)
	f.Printf("Program:     %s\n", m.ProgramID)
	if m.Derived {
		f.Printf("Derived:     yes\n")
		f.Printf("Pattern:     %s (%s)\n", m.Pattern, m.Family)
		f.Printf("Confidence:  %.2f\n", m.Confidence)
		f.Printf("Seeds:       %s\n", strings.Join(m.Seeds.Strings(), ", "))
		f.Printf("Bump:        %d\n", m.Bump)
	} else {
		f.Printf("Derived:     no (%s)\n", noMatchMessage(m))
	}
	f.Printf("Candidates:  %d\n", m.Candidates)
	f.Printf("Duration:    %s\n", m.Duration)
}
