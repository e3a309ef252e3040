package testutil

import (
	"crypto/sha256"

	"github.com/roach88/pdatrace/internal/derive"
	"github.com/roach88/pdatrace/internal/ir"
)

// Key returns a stable public key for label: the SHA-256 of the label.
// Use it for context bindings such as wallets and mints.
func Key(label string) ir.PublicKey {
	return ir.PublicKey(sha256.Sum256([]byte(label)))
}

// OnCurveKey returns a stable key for label that lies on the ed25519
// curve, so no PDA search can ever produce it. It rehashes until the
// point decodes.
func OnCurveKey(label string) ir.PublicKey {
	k := Key(label)
	for !derive.IsOnCurve(k[:]) {
		k = ir.PublicKey(sha256.Sum256(k[:]))
	}
	return k
}

// PDA derives the address and canonical bump of seeds under program and
// panics if none exists. Test fixtures only.
func PDA(program ir.PublicKey, seeds ...ir.Seed) (ir.PublicKey, uint8) {
	addr, bump, err := derive.FindBump(seeds, program)
	if err != nil {
		panic(err)
	}
	return addr, bump
}
