package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pdatrace/internal/ir"
	"github.com/roach88/pdatrace/internal/pattern"
)

func compileOne(t *testing.T, src, path string) (*pattern.Pattern, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src, cue.Filename("patterns.cue"))
	require.NoError(t, v.Err())
	return CompilePattern(v.LookupPath(cue.ParsePath(path)))
}

func TestCompilePatternAllSlotKinds(t *testing.T) {
	p, err := compileOne(t, `
		pattern: vault_by_owner: {
			family:      "STRING_AUTHORITY"
			description: "vault keyed by owner"
			confidence:  0.9
			slots: [
				{literal: "string:vault"},
				{context: "owner"},
				{context: "token_program", fallback: "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"},
				{index: {width: 8, lo: 0, hi: 3}},
				{choice: ["string:a", "string:b"]},
				{context: "authority", fallback: "program"},
			]
		}
	`, "pattern.vault_by_owner")
	require.NoError(t, err)

	assert.Equal(t, "vault_by_owner", p.Name)
	assert.Equal(t, "STRING_AUTHORITY", p.Family)
	assert.Equal(t, "vault keyed by owner", p.Description)
	assert.Equal(t, 0.9, p.Confidence)

	require.Len(t, p.Slots, 6)
	assert.Equal(t, pattern.Str("vault"), p.Slots[0])
	assert.Equal(t, pattern.Context("owner"), p.Slots[1])
	assert.Equal(t, pattern.ContextOr("token_program", ir.TokenProgramID), p.Slots[2])
	assert.Equal(t, pattern.Index(8, 0, 3), p.Slots[3])
	assert.Equal(t, pattern.Words("a", "b"), p.Slots[4])
	assert.Equal(t, pattern.ContextOrProgram("authority"), p.Slots[5])

	// owner is required; the two fallbacks score one each.
	assert.Equal(t, 4, p.Specificity())
}

func TestCompilePatternDefaultFamily(t *testing.T) {
	p, err := compileOne(t, `
		pattern: counter: {
			confidence: 1
			slots: [{literal: "string:counter"}]
		}
	`, "pattern.counter")
	require.NoError(t, err)

	assert.Equal(t, DefaultFamily, p.Family)
	assert.Empty(t, p.Description)
	assert.Equal(t, 1.0, p.Confidence)
}

func TestCompilePatternErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{
			name:  "missing confidence",
			body:  `slots: [{literal: "string:x"}]`,
			field: "confidence",
		},
		{
			name:  "missing slots",
			body:  `confidence: 0.5`,
			field: "slots",
		},
		{
			name:  "two slot kinds",
			body:  `confidence: 0.5, slots: [{literal: "string:x", context: "owner"}]`,
			field: "slots[0]",
		},
		{
			name:  "empty slot",
			body:  `confidence: 0.5, slots: [{}]`,
			field: "slots[0]",
		},
		{
			name:  "bad seed kind",
			body:  `confidence: 0.5, slots: [{literal: "float:1.5"}]`,
			field: "slots[0].literal",
		},
		{
			name:  "bad choice seed",
			body:  `confidence: 0.5, slots: [{choice: ["string:a", "nocolon"]}]`,
			field: "slots[0].choice[1]",
		},
		{
			name:  "bad fallback",
			body:  `confidence: 0.5, slots: [{context: "owner", fallback: "not-a-key"}]`,
			field: "slots[0].fallback",
		},
		{
			name:  "index missing hi",
			body:  `confidence: 0.5, slots: [{index: {width: 8, lo: 0}}]`,
			field: "slots[0].index.hi",
		},
		{
			name:  "confidence out of range",
			body:  `confidence: 1.5, slots: [{literal: "string:x"}]`,
			field: "pattern",
		},
		{
			name:  "bad index width",
			body:  `confidence: 0.5, slots: [{index: {width: 12, lo: 0, hi: 3}}]`,
			field: "pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileOne(t, "pattern: bad: {"+tt.body+"}", "pattern.bad")
			require.Error(t, err)

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCompileErrorIncludesPosition(t *testing.T) {
	_, err := compileOne(t, `
pattern: bad: {
	slots: [{literal: "string:x"}]
}
`, "pattern.bad")
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	require.True(t, ce.Pos.IsValid())
	assert.Contains(t, err.Error(), "patterns.cue:")
	assert.Contains(t, err.Error(), "confidence is required")
}

func TestCompileErrorWithoutPosition(t *testing.T) {
	err := &CompileError{Field: "slots", Message: "slots is required"}
	assert.Equal(t, "slots: slots is required", err.Error())
}
