package derive

import (
	"crypto/ed25519"
	"crypto/sha256"
	"strings"
	"testing"

	solana "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/roach88/pdatrace/internal/ir"
)

func TestIsOnCurve(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	assert.True(t, IsOnCurve(pub), "ed25519 public keys are curve points")

	assert.False(t, IsOnCurve(pub[:31]), "wrong length is never on curve")
	assert.False(t, IsOnCurve(nil))
}

func TestFindBumpMatchesSolanaGo(t *testing.T) {
	wallet := ir.MustPublicKey("4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T")
	mint := ir.MustPublicKey("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	addr, bump, err := FindBump([]ir.Seed{
		ir.PubkeySeed(wallet),
		ir.PubkeySeed(ir.TokenProgramID),
		ir.PubkeySeed(mint),
	}, ir.AssociatedTokenProgramID)
	require.NoError(t, err)

	want, wantBump, err := solana.FindAssociatedTokenAddress(
		solana.PublicKeyFromBytes(wallet[:]),
		solana.PublicKeyFromBytes(mint[:]),
	)
	require.NoError(t, err)

	assert.Equal(t, want.String(), addr.String())
	assert.Equal(t, wantBump, bump)
}

func TestFindBumpMetadataMatchesSolanaGo(t *testing.T) {
	mint := ir.MustPublicKey("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	addr, bump, err := FindBump([]ir.Seed{
		ir.StringSeed("metadata"),
		ir.PubkeySeed(ir.TokenMetadataProgramID),
		ir.PubkeySeed(mint),
	}, ir.TokenMetadataProgramID)
	require.NoError(t, err)

	want, wantBump, err := solana.FindTokenMetadataAddress(solana.PublicKeyFromBytes(mint[:]))
	require.NoError(t, err)

	assert.Equal(t, want.String(), addr.String())
	assert.Equal(t, wantBump, bump)
}

func TestDeriveKnownDigest(t *testing.T) {
	// Build the digest by hand and check Derive agrees whenever the bump is
	// usable.
	program := ir.TokenProgramID
	addr, bump, err := FindBump([]ir.Seed{ir.StringSeed("state")}, program)
	require.NoError(t, err)

	h := sha256.New()
	h.Write([]byte("state"))
	h.Write([]byte{bump})
	h.Write(program[:])
	h.Write([]byte("ProgramDerivedAddress"))
	assert.Equal(t, h.Sum(nil), addr[:])

	again, err := Derive([]ir.Seed{ir.StringSeed("state")}, bump, program)
	require.NoError(t, err)
	assert.Equal(t, addr, again)
}

func TestDeriveLimits(t *testing.T) {
	program := ir.TokenProgramID

	t.Run("seed too long", func(t *testing.T) {
		_, err := Derive([]ir.Seed{ir.StringSeed(strings.Repeat("x", 33))}, 255, program)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSeedTooLong)
		assert.True(t, IsLimitError(err))

		var se *SeedError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, 0, se.Index)
		assert.Equal(t, 33, se.Length)
	})

	t.Run("exactly 32 bytes is allowed", func(t *testing.T) {
		_, _, err := FindBump([]ir.Seed{ir.StringSeed(strings.Repeat("x", 32))}, program)
		assert.NoError(t, err)
	})

	t.Run("too many seeds", func(t *testing.T) {
		seeds := make([]ir.Seed, MaxSeeds)
		for i := range seeds {
			seeds[i] = ir.U8Seed(i)
		}
		_, _, err := FindBump(seeds, program)
		assert.ErrorIs(t, err, ErrTooManySeeds)
	})

	t.Run("fifteen seeds plus bump is allowed", func(t *testing.T) {
		seeds := make([]ir.Seed, MaxSeeds-1)
		for i := range seeds {
			seeds[i] = ir.U8Seed(i)
		}
		_, _, err := FindBump(seeds, program)
		assert.NoError(t, err)
	})
}

func TestDeriveReportsOnCurve(t *testing.T) {
	// Scan bumps for a fixed seed list until one lands on the curve. About
	// half of all digests decode as points, so this terminates quickly.
	program := ir.SystemProgramID
	seeds := []ir.Seed{ir.StringSeed("on-curve-scan")}

	found := false
	for b := 255; b >= 0; b-- {
		_, err := Derive(seeds, uint8(b), program)
		if err != nil {
			assert.ErrorIs(t, err, ErrOnCurve)
			found = true
			break
		}
	}
	assert.True(t, found, "expected at least one on-curve bump")
}

func drawKey(t *rapid.T, label string) ir.PublicKey {
	var pk ir.PublicKey
	copy(pk[:], rapid.SliceOfN(rapid.Byte(), ir.PublicKeySize, ir.PublicKeySize).Draw(t, label))
	return pk
}

func drawSeeds(t *rapid.T) []ir.Seed {
	n := rapid.IntRange(0, 4).Draw(t, "n")
	seeds := make([]ir.Seed, n)
	for i := range seeds {
		if rapid.Bool().Draw(t, "is_key") {
			seeds[i] = ir.PubkeySeed(drawKey(t, "key"))
		} else {
			seeds[i] = ir.BytesSeed(rapid.SliceOfN(rapid.Byte(), 0, MaxSeedLength).Draw(t, "bytes"))
		}
	}
	return seeds
}

// TestFindBumpRoundTrip checks that Derive at the returned bump reproduces
// the address and that the address is off-curve.
func TestFindBumpRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seeds := drawSeeds(t)
		program := drawKey(t, "program")

		addr, bump, err := FindBump(seeds, program)
		require.NoError(t, err)
		assert.False(t, IsOnCurve(addr[:]), "accepted address must be off-curve")

		again, err := Derive(seeds, bump, program)
		require.NoError(t, err)
		assert.Equal(t, addr, again)
	})
}

// TestFindBumpIsHighest checks that every bump above the returned one is
// on-curve.
func TestFindBumpIsHighest(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seeds := drawSeeds(t)
		program := drawKey(t, "program")

		_, bump, err := FindBump(seeds, program)
		require.NoError(t, err)

		for b := 255; b > int(bump); b-- {
			_, err := Derive(seeds, uint8(b), program)
			assert.ErrorIs(t, err, ErrOnCurve, "bump %d is higher and must be on-curve", b)
		}
	})
}

// TestFindBumpDeterministic checks identical inputs give identical output.
func TestFindBumpDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seeds := drawSeeds(t)
		program := drawKey(t, "program")

		a1, b1, err1 := FindBump(seeds, program)
		a2, b2, err2 := FindBump(seeds, program)
		assert.Equal(t, err1, err2)
		assert.Equal(t, a1, a2)
		assert.Equal(t, b1, b2)
	})
}
