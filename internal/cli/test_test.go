package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pdatrace/internal/harness"
)

const stateScenario = `name: singleton-state
description: program state singleton
program_id: GovER5Lthms3bLBqWub97yVrMmEogzX7xNjdXpPPCVZw
derive:
  seeds: ["string:state"]
expect:
  derived: true
  pattern: string_singleton
  family: STRING_SINGLETON
`

const wrongPatternScenario = `name: wrong-pattern
description: expects the wrong pattern
program_id: GovER5Lthms3bLBqWub97yVrMmEogzX7xNjdXpPPCVZw
derive:
  seeds: ["string:state"]
expect:
  derived: true
  pattern: string_index
`

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, NewTestCommand(textOpts()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := execute(t, NewTestCommand(textOpts()), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandNoScenarios(t *testing.T) {
	out, err := execute(t, NewTestCommand(textOpts()), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")

	out, err = execute(t, NewTestCommand(jsonOpts()), t.TempDir())
	require.NoError(t, err)
	var result TestResult
	require.NoError(t, json.Unmarshal(decode(t, out).Data, &result))
	assert.Equal(t, 0, result.Total)
}

func TestTestCommandPasses(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "singleton-state.yaml", stateScenario)

	out, err := execute(t, NewTestCommand(textOpts()), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ singleton-state")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "singleton-state.yaml", stateScenario)
	writeFile(t, dir, "wrong-pattern.yml", wrongPatternScenario)

	t.Run("text", func(t *testing.T) {
		out, err := execute(t, NewTestCommand(textOpts()), dir)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "✗ wrong-pattern")
		assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, NewTestCommand(jsonOpts()), dir)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))

		resp := decode(t, out)
		assert.Equal(t, "error", resp.Status)
		assert.Equal(t, CodeTestFailed, resp.Error.Code)

		var result TestResult
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		assert.Equal(t, 1, result.Failed)
		assert.Equal(t, 2, result.Total)
		for _, s := range result.Scenarios {
			if s.Name == "wrong-pattern" {
				assert.False(t, s.Pass)
				assert.NotEmpty(t, s.Errors)
			}
		}
	})
}

func TestTestCommandFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "singleton-state.yaml", stateScenario)
	writeFile(t, dir, "wrong-pattern.yml", wrongPatternScenario)

	out, err := execute(t, NewTestCommand(textOpts()), dir, "--filter", "singleton-*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 total")
	assert.NotContains(t, out, "wrong-pattern")

	_, err = execute(t, NewTestCommand(textOpts()), dir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\n")

	out, err := execute(t, NewTestCommand(textOpts()), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandGolden(t *testing.T) {
	dir := t.TempDir()
	scenarioFile := writeFile(t, dir, "singleton-state.yaml", stateScenario)
	goldenPath := harness.GoldenPath(scenarioFile)

	out, err := execute(t, NewTestCommand(textOpts()), dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ singleton-state (golden updated)")
	require.FileExists(t, goldenPath)

	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"pattern": "string_singleton"`)

	// The fresh golden file matches.
	_, err = execute(t, NewTestCommand(textOpts()), dir)
	require.NoError(t, err)

	// A stale one does not.
	require.NoError(t, os.WriteFile(goldenPath, []byte("{}\n"), 0o644))
	out, err = execute(t, NewTestCommand(textOpts()), dir)
	require.Error(t, err)
	assert.Contains(t, out, "snapshot does not match golden file")
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	dir := filepath.Join("..", "harness", "testdata", "scenarios")

	out, err := execute(t, NewTestCommand(jsonOpts()), dir)
	require.NoError(t, err, out)

	var result TestResult
	require.NoError(t, json.Unmarshal(decode(t, out).Data, &result))
	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 4, result.Passed)
}
