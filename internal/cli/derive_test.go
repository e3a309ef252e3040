package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pdatrace/internal/derive"
	"github.com/roach88/pdatrace/internal/ir"
)

func TestDeriveCommandMissingArgs(t *testing.T) {
	_, err := execute(t, NewDeriveCommand(textOpts()), testProgram.String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 2 arg")
}

func TestDeriveFindsCanonicalBump(t *testing.T) {
	target, bump := stateAddress()

	out, err := execute(t, NewDeriveCommand(textOpts()), testProgram.String(), "string:state")
	require.NoError(t, err)
	assert.Contains(t, out, "Address:  "+target.String())
	assert.Contains(t, out, "Seeds:    string:state")
	assert.Contains(t, out, fmt.Sprintf("Bump:     %d", bump))
}

func TestDeriveJSON(t *testing.T) {
	seeds := []ir.Seed{ir.StringSeed("round"), ir.U64Seed(17)}
	want, bump, err := derive.FindBump(seeds, testProgram)
	require.NoError(t, err)

	out, err := execute(t, NewDeriveCommand(jsonOpts()), testProgram.String(), "string:round", "u64:17")
	require.NoError(t, err)

	resp := decode(t, out)
	assert.Equal(t, "ok", resp.Status)

	var d Derivation
	require.NoError(t, json.Unmarshal(resp.Data, &d))
	assert.Equal(t, want, d.Address)
	assert.Equal(t, bump, d.Bump)
	assert.Equal(t, testProgram, d.ProgramID)
	assert.Equal(t, ir.SeedList(seeds), d.Seeds)
}

func TestDerivePinnedBump(t *testing.T) {
	target, bump := stateAddress()

	out, err := execute(t, NewDeriveCommand(textOpts()),
		testProgram.String(), "string:state", "--bump", fmt.Sprint(bump))
	require.NoError(t, err)
	assert.Contains(t, out, "Address:  "+target.String())

	// Every bump above the canonical one is on the curve.
	if bump < 255 {
		out, err = execute(t, NewDeriveCommand(jsonOpts()),
			testProgram.String(), "string:state", "--bump", "255")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Equal(t, CodeOnCurve, decode(t, out).Error.Code)
	}
}

func TestDeriveErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad program", []string{"not-a-key", "string:state"}},
		{"bad seed", []string{testProgram.String(), "state"}},
		{"bad seed value", []string{testProgram.String(), "u8:256"}},
		{"seed too long", []string{testProgram.String(), "string:" + strings.Repeat("x", 33)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewDeriveCommand(jsonOpts()), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Equal(t, CodeInvalidInput, decode(t, out).Error.Code)
		})
	}
}
