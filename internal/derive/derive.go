// Package derive implements forward Program-Derived Address derivation
// and the canonical bump search.
//
// An address is SHA-256(seed_1 || ... || seed_n || bump || program_id ||
// "ProgramDerivedAddress"), accepted only when the digest does not decode
// as an ed25519 curve point. Both entry points are pure and safe for
// concurrent use.
package derive

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"github.com/roach88/pdatrace/internal/ir"
)

// Chain limits. MaxSeeds counts the bump byte.
const (
	MaxSeeds      = 16
	MaxSeedLength = 32
)

// Marker is the domain-separation constant appended after the program id.
const Marker = "ProgramDerivedAddress"

var (
	// ErrOnCurve means the digest for one bump is a valid curve point.
	// It only signals "try the next bump".
	ErrOnCurve = errors.New("derived address lies on the ed25519 curve")

	// ErrNoValidBump means every bump from 255 down to 0 was on-curve.
	ErrNoValidBump = errors.New("no bump yields an off-curve address")

	// ErrTooManySeeds is returned when seeds plus the bump exceed MaxSeeds.
	ErrTooManySeeds = errors.New("too many seeds")

	// ErrSeedTooLong is returned when one encoded seed exceeds MaxSeedLength.
	ErrSeedTooLong = errors.New("seed exceeds maximum length")
)

// SeedError reports which seed violated a limit.
type SeedError struct {
	Index  int
	Length int
	Err    error
}

func (e *SeedError) Error() string {
	if errors.Is(e.Err, ErrTooManySeeds) {
		return fmt.Sprintf("%v: %d seeds plus bump, max %d", e.Err, e.Length, MaxSeeds)
	}
	return fmt.Sprintf("%v: seed %d is %d bytes, max %d", e.Err, e.Index, e.Length, MaxSeedLength)
}

func (e *SeedError) Unwrap() error { return e.Err }

// IsLimitError reports whether err is a seed count or length violation.
func IsLimitError(err error) bool {
	return errors.Is(err, ErrTooManySeeds) || errors.Is(err, ErrSeedTooLong)
}

// IsOnCurve reports whether b decodes as a point on the ed25519 curve.
// Inputs that are not 32 bytes are never on the curve.
func IsOnCurve(b []byte) bool {
	if len(b) != ir.PublicKeySize {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// Derive computes the address for seeds at one bump.
// Returns ErrOnCurve when the digest is a valid curve point.
func Derive(seeds []ir.Seed, bump uint8, programID ir.PublicKey) (ir.PublicKey, error) {
	return DeriveRaw(ir.EncodeSeeds(seeds), bump, programID)
}

// DeriveRaw is Derive for seeds that are already encoded.
func DeriveRaw(seeds [][]byte, bump uint8, programID ir.PublicKey) (ir.PublicKey, error) {
	if err := checkLimits(seeds); err != nil {
		return ir.PublicKey{}, err
	}
	addr := digest(seeds, bump, programID)
	if IsOnCurve(addr[:]) {
		return ir.PublicKey{}, ErrOnCurve
	}
	return addr, nil
}

// FindBump scans bumps from 255 down to 0 and returns the first
// off-curve address with its bump. This is the canonical bump.
func FindBump(seeds []ir.Seed, programID ir.PublicKey) (ir.PublicKey, uint8, error) {
	return FindBumpRaw(ir.EncodeSeeds(seeds), programID)
}

// FindBumpRaw is FindBump for seeds that are already encoded.
func FindBumpRaw(seeds [][]byte, programID ir.PublicKey) (ir.PublicKey, uint8, error) {
	if err := checkLimits(seeds); err != nil {
		return ir.PublicKey{}, 0, err
	}

	for b := 255; b >= 0; b-- {
		addr := digest(seeds, uint8(b), programID)
		if !IsOnCurve(addr[:]) {
			return addr, uint8(b), nil
		}
	}
	return ir.PublicKey{}, 0, ErrNoValidBump
}

// digest computes the raw hash without the curve check.
func digest(seeds [][]byte, bump uint8, programID ir.PublicKey) ir.PublicKey {
	h := sha256.New()
	for _, s := range seeds {
		h.Write(s)
	}
	h.Write([]byte{bump})
	h.Write(programID[:])
	h.Write([]byte(Marker))

	var out ir.PublicKey
	h.Sum(out[:0])
	return out
}

func checkLimits(seeds [][]byte) error {
	if len(seeds)+1 > MaxSeeds {
		return &SeedError{Index: -1, Length: len(seeds), Err: ErrTooManySeeds}
	}
	for i, s := range seeds {
		if len(s) > MaxSeedLength {
			return &SeedError{Index: i, Length: len(s), Err: ErrSeedTooLong}
		}
	}
	return nil
}
