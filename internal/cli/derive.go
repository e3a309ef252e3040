package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pdatrace/internal/derive"
	"github.com/roach88/pdatrace/internal/ir"
)

// DeriveOptions holds flags for the derive command.
type DeriveOptions struct {
	*RootOptions
	Bump uint8
}

// Derivation is the result of the derive command.
type Derivation struct {
	Address   ir.PublicKey `json:"address"`
	ProgramID ir.PublicKey `json:"program_id"`
	Seeds     ir.SeedList  `json:"seeds"`
	Bump      uint8        `json:"bump"`
}

// NewDeriveCommand creates the derive command.
func NewDeriveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeriveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "derive <program-id> <seed>...",
		Short: "Derive an address from known seeds",
		Long: `Compute the program derived address for the given seeds.

Seeds are written kind:value, where kind is one of string, bytes (hex),
u8, u16, u32, u64, u128 or pubkey. Without --bump the canonical bump is
found by scanning down from 255.

Exit codes:
  0 - Address derived
  1 - The pinned bump puts the address on the curve, or no bump is valid
  2 - Command error (malformed seeds or program id)

Examples:
  pdatrace derive <program> string:state
  pdatrace derive <program> string:round u64:17 --bump 254`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDerive(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().Uint8Var(&opts.Bump, "bump", 255, "use this bump instead of searching for one")

	return cmd
}

func runDerive(opts *DeriveOptions, programID string, seedArgs []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	program, err := ir.ParsePublicKey(programID)
	if err != nil {
		return fail(f, ExitCommandError, CodeInvalidInput, "invalid program id", err)
	}

	seeds := make([]ir.Seed, len(seedArgs))
	for i, text := range seedArgs {
		s, err := ir.ParseSeed(text)
		if err != nil {
			return fail(f, ExitCommandError, CodeInvalidInput, fmt.Sprintf("invalid seed %d", i), err)
		}
		seeds[i] = s
	}

	d := Derivation{ProgramID: program, Seeds: ir.SeedList(seeds)}
	if cmd.Flags().Changed("bump") {
		d.Bump = opts.Bump
		d.Address, err = derive.Derive(seeds, opts.Bump, program)
	} else {
		d.Address, d.Bump, err = derive.FindBump(seeds, program)
	}

	switch {
	case derive.IsLimitError(err):
		return fail(f, ExitCommandError, CodeInvalidInput, "invalid seeds", err)
	case errors.Is(err, derive.ErrOnCurve), errors.Is(err, derive.ErrNoValidBump):
		return fail(f, ExitFailure, CodeOnCurve, "no valid address", err)
	case err != nil:
		return fail(f, ExitCommandError, CodeInternal, "derivation failed", err)
	}

	if f.JSON() {
		return f.Success(d)
	}
	f.Printf("Address:  %s\n", d.Address)
	f.Printf("Program:  %s\n", d.ProgramID)
	f.Printf("Seeds:    %s\n", strings.Join(d.Seeds.Strings(), ", "))
	f.Printf("Bump:     %d\n", d.Bump)
	return nil
}
