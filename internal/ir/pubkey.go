package ir

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// PublicKeySize is the length of an account address in bytes.
const PublicKeySize = 32

// ErrInvalidPublicKey is returned when text cannot be decoded into a
// 32-byte key.
var ErrInvalidPublicKey = errors.New("invalid public key")

// PublicKey is a 32-byte account address or program id.
// The zero value is the System program address.
type PublicKey [PublicKeySize]byte

// Well-known program ids.
var (
	SystemProgramID          = MustPublicKey("11111111111111111111111111111111")
	TokenProgramID           = MustPublicKey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgramID = MustPublicKey("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	TokenMetadataProgramID   = MustPublicKey("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")
)

var programNames = map[PublicKey]string{
	SystemProgramID:          "System Program",
	TokenProgramID:           "SPL Token",
	AssociatedTokenProgramID: "SPL Associated Token Account",
	TokenMetadataProgramID:   "Metaplex Token Metadata",
}

// ProgramName returns the display name of a well-known program.
func ProgramName(pk PublicKey) (string, bool) {
	name, ok := programNames[pk]
	return name, ok
}

// ParsePublicKey decodes a base58 or 64-character hex string.
// Hex is only attempted when the input is exactly 64 hex digits, so a
// valid base58 key is never misread.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	s = strings.TrimSpace(s)
	if s == "" {
		return pk, fmt.Errorf("%w: empty", ErrInvalidPublicKey)
	}

	if len(s) == 2*PublicKeySize {
		if raw, err := hex.DecodeString(s); err == nil {
			copy(pk[:], raw)
			return pk, nil
		}
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %q: %v", ErrInvalidPublicKey, s, err)
	}
	if len(raw) != PublicKeySize {
		return pk, fmt.Errorf("%w: %q decodes to %d bytes, want %d",
			ErrInvalidPublicKey, s, len(raw), PublicKeySize)
	}
	copy(pk[:], raw)
	return pk, nil
}

// MustPublicKey is like ParsePublicKey but panics on error.
// Use only for constants and in tests.
func MustPublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PublicKeyFromBytes copies b into a PublicKey. b must be 32 bytes.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidPublicKey, len(b), PublicKeySize)
	}
	copy(pk[:], b)
	return pk, nil
}

// String returns the base58 form.
func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

// Hex returns the lowercase hex form.
func (pk PublicKey) Hex() string {
	return hex.EncodeToString(pk[:])
}

// Bytes returns a copy of the key bytes.
func (pk PublicKey) Bytes() []byte {
	out := make([]byte, PublicKeySize)
	copy(out, pk[:])
	return out
}

// IsZero reports whether pk is all zero bytes.
func (pk PublicKey) IsZero() bool {
	return pk == PublicKey{}
}

// Equal compares two keys byte for byte.
func (pk PublicKey) Equal(other PublicKey) bool {
	return bytes.Equal(pk[:], other[:])
}

// MarshalJSON encodes the key as a base58 string.
func (pk PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(pk.String())
}

// UnmarshalJSON accepts base58 or hex strings.
func (pk *PublicKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("public key must be a string: %w", err)
	}
	parsed, err := ParsePublicKey(s)
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler so keys work as map keys
// and in YAML.
func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (pk *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}
