// Package compiler turns CUE pattern definitions into pattern.Pattern
// values.
//
// A definition looks like:
//
//	pattern: vault_by_owner: {
//		family:      "STRING_AUTHORITY"
//		description: "vault keyed by owner"
//		confidence:  0.9
//		slots: [
//			{literal: "string:vault"},
//			{context: "owner"},
//			{context: "token_program", fallback: "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"},
//			{index: {width: 8, lo: 0, hi: 3}},
//		]
//	}
//
// Literal and choice seeds use the "kind:value" text form. A context
// fallback is either "program" or a public key.
package compiler
