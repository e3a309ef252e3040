// Command pdatrace recovers the seeds behind Solana program derived
// addresses.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/roach88/pdatrace/internal/cli"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code. Failures the
// command already wrote to its output are not printed again.
func run(args []string, stdout, stderr io.Writer) int {
	cmd := cli.NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintln(stderr, "pdatrace:", err)
		}
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
