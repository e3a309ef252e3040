package engine

import (
	"testing"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/roach88/pdatrace/internal/derive"
	"github.com/roach88/pdatrace/internal/ir"
	"github.com/roach88/pdatrace/internal/pattern"
)

var (
	testProgram = ir.MustPublicKey("GovER5Lthms3bLBqWub97yVrMmEogzX7xNjdXpPPCVZw")
	testWallet  = ir.MustPublicKey("4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T")
	testMint    = ir.MustPublicKey("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
)

// newTestMatcher builds a matcher over the default library with a frozen
// clock so Duration is always zero.
func newTestMatcher(opts ...MatcherOption) *Matcher {
	opts = append([]MatcherOption{WithClock(clock.NewTestClock(time.Unix(0, 0)))}, opts...)
	return NewMatcher(pattern.DefaultLibrary(), opts...)
}

func mustFindBump(t require.TestingT, seeds []ir.Seed, program ir.PublicKey) (ir.PublicKey, uint8) {
	addr, bump, err := derive.FindBump(seeds, program)
	require.NoError(t, err)
	return addr, bump
}

func TestMatchAssociatedTokenAccount(t *testing.T) {
	want, wantBump, err := solana.FindAssociatedTokenAddress(
		solana.PublicKeyFromBytes(testWallet[:]),
		solana.PublicKeyFromBytes(testMint[:]),
	)
	require.NoError(t, err)

	target, err := ir.PublicKeyFromBytes(want[:])
	require.NoError(t, err)

	m := newTestMatcher()
	got := m.Match(AnalysisRequest{
		Address:   target,
		ProgramID: ir.AssociatedTokenProgramID,
		Context:   map[string]ir.PublicKey{"wallet": testWallet, "mint": testMint},
	})

	require.True(t, got.Derived)
	assert.Equal(t, "associated_token", got.Pattern)
	assert.Equal(t, "WALLET_TOKEN_MINT", got.Family)
	assert.Equal(t, 0.98, got.Confidence)
	assert.Equal(t, wantBump, got.Bump)
	assert.Equal(t, ir.SeedList{
		ir.PubkeySeed(testWallet),
		ir.PubkeySeed(ir.TokenProgramID),
		ir.PubkeySeed(testMint),
	}, got.Seeds)
	assert.Equal(t, 1, got.Candidates, "most specific pattern is tried first")
	assert.False(t, got.Exhausted)
}

func TestMatchTokenMetadata(t *testing.T) {
	want, wantBump, err := solana.FindTokenMetadataAddress(solana.PublicKeyFromBytes(testMint[:]))
	require.NoError(t, err)
	target, err := ir.PublicKeyFromBytes(want[:])
	require.NoError(t, err)

	got := newTestMatcher().Match(AnalysisRequest{
		Address:   target,
		ProgramID: ir.TokenMetadataProgramID,
		Context:   map[string]ir.PublicKey{"mint": testMint},
	})

	require.True(t, got.Derived)
	assert.Equal(t, "token_metadata", got.Pattern)
	assert.Equal(t, 0.95, got.Confidence)
	assert.Equal(t, wantBump, got.Bump)
}

func TestMatchSingletonWithoutContext(t *testing.T) {
	seeds := []ir.Seed{ir.StringSeed("state")}
	target, bump := mustFindBump(t, seeds, testProgram)

	got := newTestMatcher().Match(AnalysisRequest{Address: target, ProgramID: testProgram})

	require.True(t, got.Derived)
	assert.Equal(t, "string_singleton", got.Pattern)
	assert.Equal(t, "STRING_SINGLETON", got.Family)
	assert.Equal(t, 0.92, got.Confidence)
	assert.Equal(t, bump, got.Bump)
	assert.Equal(t, ir.SeedList(seeds), got.Seeds)
	assert.Equal(t, "string", got.Signature())
}

func TestMatchStringIndex(t *testing.T) {
	seeds := []ir.Seed{ir.StringSeed("round"), ir.U64Seed(17)}
	target, _ := mustFindBump(t, seeds, testProgram)

	got := newTestMatcher().Match(AnalysisRequest{Address: target, ProgramID: testProgram})

	require.True(t, got.Derived)
	assert.Equal(t, "string_index", got.Pattern)
	assert.Equal(t, 0.85, got.Confidence)
	assert.Equal(t, ir.SeedList(seeds), got.Seeds)

	// All ten singleton words, three full words of 256 indices, then
	// indices 0 through 17 of "round".
	assert.Equal(t, 10+3*256+18, got.Candidates)
}

func TestMatchPrefersMoreSpecificPattern(t *testing.T) {
	// "vault" + SPL Token id is reachable both through string_authority
	// (authority bound to the Token program) and string_wellknown.
	seeds := []ir.Seed{ir.StringSeed("vault"), ir.PubkeySeed(ir.TokenProgramID)}
	target, _ := mustFindBump(t, seeds, testProgram)

	withAuthority := newTestMatcher().Match(AnalysisRequest{
		Address:   target,
		ProgramID: testProgram,
		Context:   map[string]ir.PublicKey{"authority": ir.TokenProgramID},
	})
	require.True(t, withAuthority.Derived)
	assert.Equal(t, "string_authority", withAuthority.Pattern)
	assert.Equal(t, 0.90, withAuthority.Confidence)

	bare := newTestMatcher().Match(AnalysisRequest{Address: target, ProgramID: testProgram})
	require.True(t, bare.Derived)
	assert.Equal(t, "string_wellknown", bare.Pattern)
	assert.Equal(t, 0.80, bare.Confidence)
}

func TestMatchNoPattern(t *testing.T) {
	// Program ids are ed25519 keys on the curve, so no derivation can
	// produce one.
	target := ir.TokenProgramID
	require.True(t, derive.IsOnCurve(target[:]))

	got := newTestMatcher().Match(AnalysisRequest{Address: target, ProgramID: testProgram})

	assert.False(t, got.Derived)
	assert.Empty(t, got.Pattern)
	assert.Zero(t, got.Confidence)
	assert.Zero(t, got.Bump)
	require.NotNil(t, got.Seeds)
	assert.Empty(t, got.Seeds)
	assert.False(t, got.Exhausted)
	assert.Equal(t, 10+4*256+4*2, got.Candidates, "every context-free candidate tried")
	assert.Equal(t, target, got.Address)
	assert.Equal(t, testProgram, got.ProgramID)
}

func TestMatchBudgetExhausted(t *testing.T) {
	m := newTestMatcher(WithBudget(5))
	assert.Equal(t, 5, m.Budget())

	got := m.Match(AnalysisRequest{Address: testWallet, ProgramID: testProgram})

	assert.False(t, got.Derived)
	assert.True(t, got.Exhausted)
	assert.Equal(t, 5, got.Candidates)
	assert.NotNil(t, got.Seeds)

	// A budget larger than the search never marks it exhausted.
	full := newTestMatcher(WithBudget(1 << 20)).Match(AnalysisRequest{Address: testWallet, ProgramID: testProgram})
	assert.False(t, full.Exhausted)
	assert.Less(t, full.Candidates, 1<<20)
}

func TestMatchBudgetStopsBeforeLaterMatch(t *testing.T) {
	seeds := []ir.Seed{ir.StringSeed("round"), ir.U64Seed(200)}
	target, _ := mustFindBump(t, seeds, testProgram)

	got := newTestMatcher(WithBudget(100)).Match(AnalysisRequest{Address: target, ProgramID: testProgram})

	assert.False(t, got.Derived)
	assert.True(t, got.Exhausted)
}

func TestMatchRecordsDuration(t *testing.T) {
	tc := clock.NewTestClock(time.Unix(0, 0))
	m := NewMatcher(pattern.DefaultLibrary(), WithClock(tc))

	got := m.Match(AnalysisRequest{Address: testWallet, ProgramID: testProgram})
	assert.Equal(t, time.Duration(0), got.Duration)

	// With a real clock some time always passes.
	wall := NewMatcher(pattern.DefaultLibrary())
	got = wall.Match(AnalysisRequest{Address: testWallet, ProgramID: testProgram})
	assert.Positive(t, got.Duration)
}

func TestMatchDeterministic(t *testing.T) {
	seeds := []ir.Seed{ir.StringSeed("pool"), ir.U64Seed(3)}
	target, _ := mustFindBump(t, seeds, testProgram)
	req := AnalysisRequest{Address: target, ProgramID: testProgram}

	m := newTestMatcher()
	first := m.Match(req)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, m.Match(req))
	}
}

// TestMatchRoundTripProperty derives a target from a random candidate of
// a random default pattern and checks the matcher recovers exactly it.
func TestMatchRoundTripProperty(t *testing.T) {
	lib := pattern.DefaultLibrary()
	m := newTestMatcher()

	rapid.Check(t, func(t *rapid.T) {
		p := rapid.SampledFrom(lib.Patterns()).Draw(t, "pattern")
		program := ir.PublicKey(rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, "program"))

		ctx := make(map[string]ir.PublicKey)
		for _, role := range p.RequiredRoles() {
			ctx[role] = ir.PublicKey(rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, role))
		}
		req := pattern.Request{ProgramID: program, Context: ctx}

		count := p.CandidateCount(req)
		require.Positive(t, count)
		k := rapid.Uint64Range(0, count-1).Draw(t, "candidate")

		var seeds []ir.Seed
		var i uint64
		for c := range p.Candidates(req) {
			if i == k {
				seeds = c
				break
			}
			i++
		}
		require.NotNil(t, seeds)

		target, bump, err := derive.FindBump(seeds, program)
		if err != nil {
			t.Skip("no valid bump")
		}

		got := m.Match(AnalysisRequest{Address: target, ProgramID: program, Context: ctx})
		require.True(t, got.Derived)
		require.Equal(t, p.Name, got.Pattern)
		require.Equal(t, p.Confidence, got.Confidence)
		require.Equal(t, bump, got.Bump)
		require.Equal(t, ir.SeedList(seeds), got.Seeds)

		again, err := derive.Derive(got.Seeds, got.Bump, program)
		require.NoError(t, err)
		require.Equal(t, target, again)
		require.False(t, derive.IsOnCurve(target[:]))
	})
}
