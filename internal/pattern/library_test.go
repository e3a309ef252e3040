package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pdatrace/internal/ir"
)

func names(lib *Library) []string {
	var out []string
	for p := range lib.All() {
		out = append(out, p.Name)
	}
	return out
}

func TestNewLibraryOrdersBySpecificityThenConfidence(t *testing.T) {
	lib, err := NewLibrary(
		Pattern{Name: "generic_low", Slots: []Slot{Str("a")}, Confidence: 0.5},
		Pattern{Name: "generic_high", Slots: []Slot{Str("b")}, Confidence: 0.9},
		Pattern{Name: "bound", Slots: []Slot{Context("owner")}, Confidence: 0.1},
		Pattern{Name: "fallback", Slots: []Slot{ContextOrProgram("owner")}, Confidence: 0.1},
		Pattern{Name: "generic_high_second", Slots: []Slot{Str("c")}, Confidence: 0.9},
	)
	require.NoError(t, err)

	// Ties keep registration order.
	assert.Equal(t, []string{
		"bound", "fallback", "generic_high", "generic_high_second", "generic_low",
	}, names(lib))
}

func TestNewLibraryRejectsInvalid(t *testing.T) {
	_, err := NewLibrary(
		Pattern{Name: "ok", Slots: []Slot{Str("a")}, Confidence: 0.5},
		Pattern{Name: "ok", Slots: []Slot{Str("b")}, Confidence: 0.5},
		Pattern{Name: "bad", Confidence: 0.5},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate name")
	assert.Contains(t, err.Error(), `pattern "bad"`)
}

func TestLibraryIsImmutable(t *testing.T) {
	src := []Pattern{{Name: "p", Slots: []Slot{Str("a")}, Confidence: 0.5}}
	lib := MustLibrary(src...)

	src[0].Slots[0] = Str("changed")
	got, ok := lib.Lookup("p")
	require.True(t, ok)
	assert.Equal(t, "string:a", got.Slots[0].String())

	out := lib.Patterns()
	out[0].Name = "renamed"
	_, ok = lib.Lookup("p")
	assert.True(t, ok)
	assert.Equal(t, "p", lib.Patterns()[0].Name)
}

func TestDefaultLibrary(t *testing.T) {
	lib := DefaultLibrary()
	require.Equal(t, len(DefaultPatterns()), lib.Len())

	assert.Equal(t, []string{
		"associated_token",
		"string_pubkey_pubkey",
		"metadata_edition",
		"token_metadata",
		"pubkey_u64",
		"string_authority",
		"pubkey_u8",
		"string_pubkey_u64",
		"string_singleton",
		"string_index",
		"string_wellknown",
	}, names(lib))

	ata, ok := lib.Lookup("associated_token")
	require.True(t, ok)
	assert.Equal(t, 0.98, ata.Confidence)
	assert.Equal(t, "WALLET_TOKEN_MINT", ata.Family)

	singleton, ok := lib.Lookup("string_singleton")
	require.True(t, ok)
	assert.Equal(t, 0.92, singleton.Confidence)

	_, ok = lib.Lookup("missing")
	assert.False(t, ok)
}

func TestDefaultLibraryBoundedWithFullContext(t *testing.T) {
	req := Request{
		ProgramID: testProgram,
		Context: map[string]ir.PublicKey{
			RoleWallet:    testWallet,
			RoleMint:      testMint,
			RoleAuthority: testWallet,
		},
	}

	var total uint64
	for p := range DefaultLibrary().All() {
		total += p.CandidateCount(req)
	}
	assert.Less(t, total, uint64(4096), "default library must fit the default search budget")
}

func TestDefaultLibraryWithoutContext(t *testing.T) {
	req := Request{ProgramID: testProgram}
	var active []string
	for p := range DefaultLibrary().All() {
		if p.CandidateCount(req) > 0 {
			active = append(active, p.Name)
		}
	}
	assert.Equal(t, []string{"string_singleton", "string_index", "string_wellknown"}, active)
}
