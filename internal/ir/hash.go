package ir

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"slices"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainContext  = "pdatrace/context/v1"
	DomainAnalysis = "pdatrace/analysis/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + part_1 + ... + part_n)
// The null byte separator prevents domain/data boundary ambiguity.
// Callers must length-prefix or fix the width of variable-length parts.
func hashWithDomain(domain string, parts ...[]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// ContextDigest hashes a role → key map into a fixed 32-byte digest.
// Roles are visited in sorted order, each written as a uvarint length, the
// role name, then the 32 key bytes. An empty or nil map always yields
// the same digest.
func ContextDigest(ctx map[string]PublicKey) [32]byte {
	roles := make([]string, 0, len(ctx))
	for role := range ctx {
		roles = append(roles, role)
	}
	slices.Sort(roles)

	parts := make([][]byte, 0, 3*len(roles))
	for _, role := range roles {
		key := ctx[role]
		parts = append(parts, binary.AppendUvarint(nil, uint64(len(role))), []byte(role), key[:])
	}
	return hashWithDomain(DomainContext, parts...)
}

// AnalysisID computes the content-addressed id of one analysis request.
// The id is stable across restarts given the same inputs.
func AnalysisID(address, programID PublicKey, contextDigest [32]byte) string {
	sum := hashWithDomain(DomainAnalysis, address[:], programID[:], contextDigest[:])
	return hex.EncodeToString(sum[:])
}
