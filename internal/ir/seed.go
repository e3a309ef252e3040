package ir

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// SeedKind names a Seed variant. The names double as the prefix of the
// seed text form ("u64:7") and the "type" field of its JSON form.
type SeedKind string

const (
	KindString SeedKind = "string"
	KindBytes  SeedKind = "bytes"
	KindU8     SeedKind = "u8"
	KindU16    SeedKind = "u16"
	KindU32    SeedKind = "u32"
	KindU64    SeedKind = "u64"
	KindU128   SeedKind = "u128"
	KindPubkey SeedKind = "pubkey"
)

// Seed is a sealed interface representing one typed derivation input.
// Only the variants in this file implement it.
type Seed interface {
	seed() // Sealed

	// Kind returns the variant tag.
	Kind() SeedKind

	// Bytes returns the canonical encoding fed to the hash.
	Bytes() []byte

	// Value returns the variant's value in text form, without the kind
	// prefix.
	Value() string
}

// StringSeed is a UTF-8 string literal. Encoded as its raw bytes.
type StringSeed string

// BytesSeed is a raw byte sequence.
type BytesSeed []byte

// U8Seed is an 8-bit unsigned integer.
type U8Seed uint8

// U16Seed is a 16-bit unsigned integer, little-endian.
type U16Seed uint16

// U32Seed is a 32-bit unsigned integer, little-endian.
type U32Seed uint32

// U64Seed is a 64-bit unsigned integer, little-endian.
type U64Seed uint64

// U128Seed is a 128-bit unsigned integer split into halves.
// Encoded as 16 bytes little-endian with Lo first.
type U128Seed struct {
	Lo uint64
	Hi uint64
}

// PubkeySeed is a 32-byte public key.
type PubkeySeed PublicKey

func (StringSeed) seed() {}
func (BytesSeed) seed()  {}
func (U8Seed) seed()     {}
func (U16Seed) seed()    {}
func (U32Seed) seed()    {}
func (U64Seed) seed()    {}
func (U128Seed) seed()   {}
func (PubkeySeed) seed() {}

func (StringSeed) Kind() SeedKind { return KindString }
func (BytesSeed) Kind() SeedKind  { return KindBytes }
func (U8Seed) Kind() SeedKind     { return KindU8 }
func (U16Seed) Kind() SeedKind    { return KindU16 }
func (U32Seed) Kind() SeedKind    { return KindU32 }
func (U64Seed) Kind() SeedKind    { return KindU64 }
func (U128Seed) Kind() SeedKind   { return KindU128 }
func (PubkeySeed) Kind() SeedKind { return KindPubkey }

func (s StringSeed) Bytes() []byte { return []byte(s) }

func (s BytesSeed) Bytes() []byte {
	out := make([]byte, len(s))
	copy(out, s)
	return out
}

func (s U8Seed) Bytes() []byte { return []byte{byte(s)} }

func (s U16Seed) Bytes() []byte {
	return binary.LittleEndian.AppendUint16(nil, uint16(s))
}

func (s U32Seed) Bytes() []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(s))
}

func (s U64Seed) Bytes() []byte {
	return binary.LittleEndian.AppendUint64(nil, uint64(s))
}

func (s U128Seed) Bytes() []byte {
	b := binary.LittleEndian.AppendUint64(nil, s.Lo)
	return binary.LittleEndian.AppendUint64(b, s.Hi)
}

func (s PubkeySeed) Bytes() []byte { return PublicKey(s).Bytes() }

func (s StringSeed) Value() string { return string(s) }
func (s BytesSeed) Value() string  { return hex.EncodeToString(s) }
func (s U8Seed) Value() string     { return strconv.FormatUint(uint64(s), 10) }
func (s U16Seed) Value() string    { return strconv.FormatUint(uint64(s), 10) }
func (s U32Seed) Value() string    { return strconv.FormatUint(uint64(s), 10) }
func (s U64Seed) Value() string    { return strconv.FormatUint(uint64(s), 10) }
func (s U128Seed) Value() string   { return s.big().String() }
func (s PubkeySeed) Value() string { return PublicKey(s).String() }

func (s U128Seed) big() *big.Int {
	v := new(big.Int).SetUint64(s.Hi)
	v.Lsh(v, 64)
	return v.Or(v, new(big.Int).SetUint64(s.Lo))
}

// U128FromUint64 returns a U128Seed holding v.
func U128FromUint64(v uint64) U128Seed {
	return U128Seed{Lo: v}
}

// FormatSeed renders a seed in "kind:value" form.
func FormatSeed(s Seed) string {
	return string(s.Kind()) + ":" + s.Value()
}

// ParseSeed parses the "kind:value" text form. The value of a string
// seed may itself contain colons.
func ParseSeed(text string) (Seed, error) {
	kind, value, ok := strings.Cut(text, ":")
	if !ok {
		return nil, fmt.Errorf("seed %q: expected kind:value", text)
	}
	s, err := NewSeed(SeedKind(kind), value)
	if err != nil {
		return nil, fmt.Errorf("seed %q: %w", text, err)
	}
	return s, nil
}

// NewSeed builds a seed of the given kind from its text value.
func NewSeed(kind SeedKind, value string) (Seed, error) {
	switch kind {
	case KindString:
		return StringSeed(value), nil
	case KindBytes:
		raw, err := hex.DecodeString(strings.TrimPrefix(value, "0x"))
		if err != nil {
			return nil, fmt.Errorf("bytes value must be hex: %w", err)
		}
		return BytesSeed(raw), nil
	case KindU8:
		n, err := strconv.ParseUint(value, 10, 8)
		if err != nil {
			return nil, err
		}
		return U8Seed(n), nil
	case KindU16:
		n, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return nil, err
		}
		return U16Seed(n), nil
	case KindU32:
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return nil, err
		}
		return U32Seed(n), nil
	case KindU64:
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return nil, err
		}
		return U64Seed(n), nil
	case KindU128:
		return parseU128(value)
	case KindPubkey:
		pk, err := ParsePublicKey(value)
		if err != nil {
			return nil, err
		}
		return PubkeySeed(pk), nil
	default:
		return nil, fmt.Errorf("unknown seed kind %q", kind)
	}
}

var maxU128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

func parseU128(value string) (Seed, error) {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok || v.Sign() < 0 || v.Cmp(maxU128) > 0 {
		return nil, fmt.Errorf("invalid u128 %q", value)
	}
	mask := new(big.Int).SetUint64(^uint64(0))
	lo := new(big.Int).And(v, mask).Uint64()
	hi := new(big.Int).Rsh(v, 64).Uint64()
	return U128Seed{Lo: lo, Hi: hi}, nil
}

// EncodeSeeds returns the canonical encoding of each seed, in order.
func EncodeSeeds(seeds []Seed) [][]byte {
	out := make([][]byte, len(seeds))
	for i, s := range seeds {
		out[i] = s.Bytes()
	}
	return out
}

// Signature joins the kinds of seeds with ":", e.g. "string:pubkey:u64".
// An empty list yields "".
func Signature(seeds []Seed) string {
	kinds := make([]string, len(seeds))
	for i, s := range seeds {
		kinds[i] = string(s.Kind())
	}
	return strings.Join(kinds, ":")
}

// SeedList is an ordered seed sequence with a tagged JSON form:
//
//	[{"type":"string","value":"vault"},{"type":"u64","value":"7"}]
//
// Integers are carried as decimal strings so u64 and u128 survive JSON
// decoders that use float64.
type SeedList []Seed

type seedJSON struct {
	Type  SeedKind `json:"type"`
	Value string   `json:"value"`
}

// MarshalJSON implements json.Marshaler. A nil list encodes as [].
func (l SeedList) MarshalJSON() ([]byte, error) {
	out := make([]seedJSON, len(l))
	for i, s := range l {
		out[i] = seedJSON{Type: s.Kind(), Value: s.Value()}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *SeedList) UnmarshalJSON(data []byte) error {
	var raw []seedJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("seed list: %w", err)
	}
	out := make(SeedList, len(raw))
	for i, r := range raw {
		s, err := NewSeed(r.Type, r.Value)
		if err != nil {
			return fmt.Errorf("seed list[%d]: %w", i, err)
		}
		out[i] = s
	}
	*l = out
	return nil
}

// Strings renders every seed in "kind:value" form.
func (l SeedList) Strings() []string {
	out := make([]string, len(l))
	for i, s := range l {
		out[i] = FormatSeed(s)
	}
	return out
}
