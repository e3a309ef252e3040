package pattern

import "github.com/roach88/pdatrace/internal/ir"

// Context roles understood by the default library.
const (
	RoleWallet          = "wallet"
	RoleMint            = "mint"
	RoleAuthority       = "authority"
	RoleTokenProgram    = "token_program"
	RoleMetadataProgram = "metadata_program"
)

// CommonWords are the string literals most often seen as leading seeds.
var CommonWords = []string{
	"metadata", "vault", "authority", "config", "state",
	"pool", "mint", "escrow", "treasury", "market",
}

// DefaultPatterns returns the built-in pattern families in registration
// order. Callers may append their own before building a Library.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:        "associated_token",
			Family:      "WALLET_TOKEN_MINT",
			Description: "associated token account for a wallet and mint",
			Slots: []Slot{
				Context(RoleWallet),
				ContextOr(RoleTokenProgram, ir.TokenProgramID),
				Context(RoleMint),
			},
			Confidence: 0.98,
		},
		{
			Name:        "string_pubkey_pubkey",
			Family:      "STRING_PUBKEY_PUBKEY",
			Description: "literal prefix keyed by an authority and a mint",
			Slots: []Slot{
				Words(CommonWords...),
				Context(RoleAuthority),
				Context(RoleMint),
			},
			Confidence: 0.90,
		},
		{
			Name:        "metadata_edition",
			Family:      "STRING_PROGRAM_MINT_EDITION",
			Description: "token metadata master edition for a mint",
			Slots: []Slot{
				Str("metadata"),
				ContextOr(RoleMetadataProgram, ir.TokenMetadataProgramID),
				Context(RoleMint),
				Str("edition"),
			},
			Confidence: 0.96,
		},
		{
			Name:        "token_metadata",
			Family:      "STRING_PROGRAM_MINT",
			Description: "token metadata account for a mint",
			Slots: []Slot{
				Str("metadata"),
				ContextOr(RoleMetadataProgram, ir.TokenMetadataProgramID),
				Context(RoleMint),
			},
			Confidence: 0.95,
		},
		{
			Name:        "pubkey_u64",
			Family:      "PUBKEY_U64",
			Description: "per-authority account with a 64-bit counter",
			Slots: []Slot{
				Context(RoleAuthority),
				Index(64, 0, 255),
			},
			Confidence: 0.92,
		},
		{
			Name:        "string_authority",
			Family:      "STRING_AUTHORITY",
			Description: "literal prefix keyed by an authority",
			Slots: []Slot{
				Words(CommonWords...),
				Context(RoleAuthority),
			},
			Confidence: 0.90,
		},
		{
			Name:        "pubkey_u8",
			Family:      "PUBKEY_U8",
			Description: "per-authority account with an 8-bit counter",
			Slots: []Slot{
				Context(RoleAuthority),
				Index(8, 0, 255),
			},
			Confidence: 0.88,
		},
		{
			Name:        "string_pubkey_u64",
			Family:      "STRING_PUBKEY_U64",
			Description: "literal prefix keyed by an authority and a small counter",
			Slots: []Slot{
				Words(CommonWords...),
				Context(RoleAuthority),
				Index(64, 0, 15),
			},
			Confidence: 0.86,
		},
		{
			Name:        "string_singleton",
			Family:      "STRING_SINGLETON",
			Description: "global singleton keyed by one literal",
			Slots: []Slot{
				Words(CommonWords...),
			},
			Confidence: 0.92,
		},
		{
			Name:        "string_index",
			Family:      "STRING_INDEX",
			Description: "literal prefix with a sequential index",
			Slots: []Slot{
				Words("index", "pool", "vault", "round"),
				Index(64, 0, 255),
			},
			Confidence: 0.85,
		},
		{
			Name:        "string_wellknown",
			Family:      "STRING_WELLKNOWN",
			Description: "literal prefix with a well-known program id",
			Slots: []Slot{
				Words("metadata", "vault", "authority", "config"),
				Keys(ir.SystemProgramID, ir.TokenProgramID),
			},
			Confidence: 0.80,
		},
	}
}

// DefaultLibrary returns a Library of DefaultPatterns.
func DefaultLibrary() *Library {
	return MustLibrary(DefaultPatterns()...)
}
