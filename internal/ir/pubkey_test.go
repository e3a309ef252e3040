package ir

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParsePublicKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"token program", "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA", false},
		{"system program", "11111111111111111111111111111111", false},
		{"hex", strings.Repeat("ab", 32), false},
		{"surrounding whitespace", "  TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA\n", false},
		{"empty", "", true},
		{"invalid base58 character", "0OIl" + strings.Repeat("1", 28), true},
		{"too short", "abc", true},
		{"too long", strings.Repeat("z", 60), true},
		{"short hex", strings.Repeat("ab", 31), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePublicKey(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidPublicKey)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSystemProgramIsZero(t *testing.T) {
	assert.True(t, SystemProgramID.IsZero())
	assert.False(t, TokenProgramID.IsZero())
}

func TestProgramName(t *testing.T) {
	name, ok := ProgramName(AssociatedTokenProgramID)
	assert.True(t, ok)
	assert.Equal(t, "SPL Associated Token Account", name)

	name, ok = ProgramName(SystemProgramID)
	assert.True(t, ok)
	assert.Equal(t, "System Program", name)

	_, ok = ProgramName(MustPublicKey("GovER5Lthms3bLBqWub97yVrMmEogzX7xNjdXpPPCVZw"))
	assert.False(t, ok)
}

func TestPublicKeyHexAndBase58Agree(t *testing.T) {
	fromHex, err := ParsePublicKey(TokenProgramID.Hex())
	require.NoError(t, err)
	assert.Equal(t, TokenProgramID, fromHex)
	assert.Equal(t, "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA", fromHex.String())
}

func TestPublicKeyJSON(t *testing.T) {
	data, err := json.Marshal(TokenMetadataProgramID)
	require.NoError(t, err)
	assert.Equal(t, `"metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"`, string(data))

	var back PublicKey
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, TokenMetadataProgramID, back)

	assert.Error(t, json.Unmarshal([]byte(`42`), &back))
	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &back))
}

func TestPublicKeyFromBytes(t *testing.T) {
	_, err := PublicKeyFromBytes(make([]byte, 31))
	assert.ErrorIs(t, err, ErrInvalidPublicKey)

	pk, err := PublicKeyFromBytes(TokenProgramID.Bytes())
	require.NoError(t, err)
	assert.True(t, pk.Equal(TokenProgramID))
}

func TestPublicKeyTextRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.SliceOfN(rapid.Byte(), PublicKeySize, PublicKeySize).Draw(t, "key")
		pk, err := PublicKeyFromBytes(raw)
		require.NoError(t, err)

		fromB58, err := ParsePublicKey(pk.String())
		require.NoError(t, err)
		assert.Equal(t, pk, fromB58)

		fromHex, err := ParsePublicKey(pk.Hex())
		require.NoError(t, err)
		assert.Equal(t, pk, fromHex)
	})
}
