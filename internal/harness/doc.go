// Package harness runs analysis scenarios written in YAML and compares
// their results against golden snapshots.
//
// # Scenario Format
//
//	name: ata-basic
//	description: associated token account for a wallet and mint
//	program_id: ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL
//	derive:                 # or address: <literal target>
//	  seeds: ["pubkey:<wallet>", "pubkey:<token program>", "pubkey:<mint>"]
//	context: {wallet: <wallet>, mint: <mint>}
//	expect:
//	  derived: true
//	  pattern: associated_token
//	  confidence: 0.98
//	  bump: 254             # optional
//
// A scenario that derives its target and expects a match must also
// recover the exact seeds it was derived from.
//
// # Golden Files
//
// In Go tests, RunWithGolden uses goldie with fixtures under
// testdata/golden. The CLI test command keeps golden files in a golden/
// directory beside the scenarios and rewrites them with --update.
package harness
