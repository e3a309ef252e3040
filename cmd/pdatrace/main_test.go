package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pdatrace/internal/cli"
)

const testProgram = "GovER5Lthms3bLBqWub97yVrMmEogzX7xNjdXpPPCVZw"

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRunReportsFailureOnce(t *testing.T) {
	code, stdout, stderr := runCLI(t, "--format", "json", "analyze", "not-a-key", testProgram)

	assert.Equal(t, cli.ExitCommandError, code)
	assert.Contains(t, stdout, `"status":"error"`)
	assert.Equal(t, 1, strings.Count(stdout, "malformed request"), stdout)
	assert.Empty(t, stderr, "envelope already carries the error")
}

func TestRunPrintsUnreportedErrors(t *testing.T) {
	code, stdout, stderr := runCLI(t, "analyze", "only-one")

	assert.Equal(t, cli.ExitFailure, code)
	assert.Empty(t, stdout)
	require.NotEmpty(t, stderr)
	assert.True(t, strings.HasPrefix(stderr, "pdatrace: "), stderr)
	assert.Contains(t, stderr, "accepts 2 arg")
}

func TestRunSuccess(t *testing.T) {
	code, stdout, stderr := runCLI(t, "--version")

	assert.Equal(t, cli.ExitSuccess, code)
	assert.Contains(t, stdout, "pdatrace version")
	assert.Empty(t, stderr)
}
