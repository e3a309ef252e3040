// Package ir provides the value types shared by every pdatrace package:
// 32-byte public keys, the sealed Seed variants and their canonical
// encodings, and domain-separated digests used for identity.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Seed is a closed set of variants, dispatched by exhaustive type switch
//   - Each variant's canonical encoding is injective within that variant
//   - Integer seeds are little-endian and fixed width
//   - All JSON tags use snake_case
package ir
