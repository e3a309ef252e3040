package ir

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSeedEncoding(t *testing.T) {
	tests := []struct {
		name string
		seed Seed
		want []byte
	}{
		{"string", StringSeed("vault"), []byte("vault")},
		{"empty string", StringSeed(""), []byte{}},
		{"bytes", BytesSeed{0xde, 0xad}, []byte{0xde, 0xad}},
		{"u8", U8Seed(7), []byte{7}},
		{"u16 little-endian", U16Seed(0x0102), []byte{0x02, 0x01}},
		{"u32 little-endian", U32Seed(0x01020304), []byte{0x04, 0x03, 0x02, 0x01}},
		{"u64 little-endian", U64Seed(1), []byte{1, 0, 0, 0, 0, 0, 0, 0}},
		{"u128 lo first", U128Seed{Lo: 1, Hi: 2}, []byte{1, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0}},
		{"pubkey", PubkeySeed(TokenProgramID), TokenProgramID.Bytes()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.seed.Bytes()
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBytesSeedReturnsCopy(t *testing.T) {
	s := BytesSeed{1, 2, 3}
	b := s.Bytes()
	b[0] = 9
	assert.Equal(t, byte(1), s[0], "mutating encoding must not alter the seed")
}

func TestParseSeed(t *testing.T) {
	tests := []struct {
		input   string
		want    Seed
		wantErr bool
	}{
		{input: "string:vault", want: StringSeed("vault")},
		{input: "string:a:b", want: StringSeed("a:b")},
		{input: "string:", want: StringSeed("")},
		{input: "bytes:dead", want: BytesSeed{0xde, 0xad}},
		{input: "bytes:0xbeef", want: BytesSeed{0xbe, 0xef}},
		{input: "u8:255", want: U8Seed(255)},
		{input: "u16:65535", want: U16Seed(65535)},
		{input: "u32:7", want: U32Seed(7)},
		{input: "u64:18446744073709551615", want: U64Seed(18446744073709551615)},
		{input: "u128:18446744073709551616", want: U128Seed{Lo: 0, Hi: 1}},
		{input: "pubkey:TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA", want: PubkeySeed(TokenProgramID)},
		{input: "u8:256", wantErr: true},
		{input: "u8:-1", wantErr: true},
		{input: "u128:340282366920938463463374607431768211456", wantErr: true},
		{input: "bytes:xyz", wantErr: true},
		{input: "pubkey:short", wantErr: true},
		{input: "float:1.5", wantErr: true},
		{input: "novalue", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSeed(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSignature(t *testing.T) {
	seeds := []Seed{StringSeed("vault"), PubkeySeed(TokenProgramID), U64Seed(3)}
	assert.Equal(t, "string:pubkey:u64", Signature(seeds))
	assert.Equal(t, "", Signature(nil))
}

func TestSeedListJSON(t *testing.T) {
	list := SeedList{StringSeed("vault"), U64Seed(18446744073709551615), PubkeySeed(TokenProgramID)}

	data, err := json.Marshal(list)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"type":"string","value":"vault"},
		{"type":"u64","value":"18446744073709551615"},
		{"type":"pubkey","value":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"}
	]`, string(data))

	var back SeedList
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, list, back)

	empty, err := json.Marshal(SeedList(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))

	assert.Error(t, json.Unmarshal([]byte(`[{"type":"f32","value":"1"}]`), &back))
}

var allKinds = []SeedKind{
	KindString, KindBytes, KindU8, KindU16, KindU32, KindU64, KindU128, KindPubkey,
}

// drawSeed generates an arbitrary seed of a random variant.
func drawSeed(t *rapid.T, label string) Seed {
	return drawSeedOfKind(t, rapid.SampledFrom(allKinds).Draw(t, label+"_kind"), label)
}

// drawSeedOfKind generates an arbitrary seed of the given variant.
func drawSeedOfKind(t *rapid.T, kind SeedKind, label string) Seed {
	switch kind {
	case KindString:
		return StringSeed(rapid.String().Draw(t, label))
	case KindBytes:
		return BytesSeed(rapid.SliceOf(rapid.Byte()).Draw(t, label))
	case KindU8:
		return U8Seed(rapid.Uint8().Draw(t, label))
	case KindU16:
		return U16Seed(rapid.Uint16().Draw(t, label))
	case KindU32:
		return U32Seed(rapid.Uint32().Draw(t, label))
	case KindU64:
		return U64Seed(rapid.Uint64().Draw(t, label))
	case KindU128:
		return U128Seed{Lo: rapid.Uint64().Draw(t, label+"_lo"), Hi: rapid.Uint64().Draw(t, label+"_hi")}
	default:
		var pk PublicKey
		copy(pk[:], rapid.SliceOfN(rapid.Byte(), PublicKeySize, PublicKeySize).Draw(t, label))
		return PubkeySeed(pk)
	}
}

// TestSeedEncodingInjective checks that two seeds of the same variant
// encode identically only when they are the same value.
func TestSeedEncodingInjective(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		kind := rapid.SampledFrom(allKinds).Draw(t, "kind")
		a := drawSeedOfKind(t, kind, "a")
		b := drawSeedOfKind(t, kind, "b")
		if bytes.Equal(a.Bytes(), b.Bytes()) {
			assert.Equal(t, FormatSeed(a), FormatSeed(b))
		} else {
			assert.NotEqual(t, FormatSeed(a), FormatSeed(b))
		}
	})
}

// TestSeedTextRoundTrip checks FormatSeed and ParseSeed are inverses.
func TestSeedTextRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := drawSeed(t, "seed")
		back, err := ParseSeed(FormatSeed(s))
		require.NoError(t, err)
		assert.Equal(t, s.Kind(), back.Kind())
		assert.Equal(t, s.Bytes(), back.Bytes())
	})
}
