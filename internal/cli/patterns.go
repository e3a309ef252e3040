package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pdatrace/internal/compiler"
	"github.com/roach88/pdatrace/internal/pattern"
)

// PatternsOptions holds flags for the patterns command.
type PatternsOptions struct {
	*RootOptions
	Dir string
}

// NewPatternsCommand creates the patterns command.
func NewPatternsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PatternsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List the pattern library",
		Long: `List every pattern in search order: most specific first, then by
confidence.

--dir adds the CUE pattern definitions in a directory to the built-in
library, which also validates them.

Examples:
  pdatrace patterns
  pdatrace patterns --dir ./patterns --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatterns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "", "directory of extra CUE pattern definitions")

	return cmd
}

func runPatterns(opts *PatternsOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	cfg, err := opts.Config()
	if err != nil {
		return fail(f, ExitCommandError, CodeConfig, "failed to load config", err)
	}
	dir := opts.Dir
	if dir == "" {
		dir = cfg.Search.PatternsDir
	}

	lib, err := compiler.Library(dir)
	if err != nil {
		return fail(f, ExitCommandError, CodePatterns, "failed to load patterns", err)
	}

	infos := make([]pattern.Info, 0, lib.Len())
	for p := range lib.All() {
		infos = append(infos, p.Info())
	}

	if f.JSON() {
		return f.Success(infos)
	}
	for _, info := range infos {
		f.Printf("%-22s %-22s %.2f  %s\n",
			info.Name, info.Family, info.Confidence, strings.Join(info.Layout, " "))
	}
	f.Printf("\n%d patterns\n", len(infos))
	return nil
}
