package pattern

import (
	"fmt"
	"math"

	"github.com/roach88/pdatrace/internal/ir"
)

// SlotKind is the closed set of ways a slot produces seeds.
type SlotKind int

const (
	// SlotLiteral produces exactly one fixed seed.
	SlotLiteral SlotKind = iota + 1
	// SlotChoice produces one candidate per listed seed.
	SlotChoice
	// SlotContext binds to a caller-supplied role in the request context.
	SlotContext
	// SlotIndex produces every integer in an inclusive range.
	SlotIndex
)

func (k SlotKind) String() string {
	switch k {
	case SlotLiteral:
		return "literal"
	case SlotChoice:
		return "choice"
	case SlotContext:
		return "context"
	case SlotIndex:
		return "index"
	default:
		return fmt.Sprintf("SlotKind(%d)", int(k))
	}
}

// Fallback says what a context slot uses when its role is absent.
type Fallback int

const (
	// FallbackNone skips the whole pattern when the role is absent.
	FallbackNone Fallback = iota
	// FallbackProgram substitutes the request's program id.
	FallbackProgram
	// FallbackKey substitutes the slot's fixed Key.
	FallbackKey
)

// MaxIndexSpan bounds the number of values one index slot may expand to.
// Wider ranges must be split into several patterns.
const MaxIndexSpan = 1 << 16

// Slot describes how to produce one seed of a candidate sequence.
// Which fields are meaningful depends on Kind.
type Slot struct {
	Kind SlotKind

	// Seeds holds the single literal (SlotLiteral) or the alternatives
	// (SlotChoice).
	Seeds []ir.Seed

	// Role, Fallback and Key apply to SlotContext.
	Role     string
	Fallback Fallback
	Key      ir.PublicKey

	// Width, Lo and Hi apply to SlotIndex. Width is 8, 16, 32, 64 or 128.
	Width int
	Lo    uint64
	Hi    uint64
}

// Literal returns a slot producing exactly s.
func Literal(s ir.Seed) Slot {
	return Slot{Kind: SlotLiteral, Seeds: []ir.Seed{s}}
}

// Str returns a literal string slot.
func Str(s string) Slot {
	return Literal(ir.StringSeed(s))
}

// Choice returns a slot producing each of seeds in order.
func Choice(seeds ...ir.Seed) Slot {
	return Slot{Kind: SlotChoice, Seeds: seeds}
}

// Words returns a choice slot over string literals.
func Words(words ...string) Slot {
	seeds := make([]ir.Seed, len(words))
	for i, w := range words {
		seeds[i] = ir.StringSeed(w)
	}
	return Choice(seeds...)
}

// Keys returns a choice slot over fixed public keys.
func Keys(keys ...ir.PublicKey) Slot {
	seeds := make([]ir.Seed, len(keys))
	for i, k := range keys {
		seeds[i] = ir.PubkeySeed(k)
	}
	return Choice(seeds...)
}

// Context returns a slot bound to role. The pattern is skipped when the
// request does not supply role.
func Context(role string) Slot {
	return Slot{Kind: SlotContext, Role: role, Fallback: FallbackNone}
}

// ContextOr returns a slot bound to role that falls back to key.
func ContextOr(role string, key ir.PublicKey) Slot {
	return Slot{Kind: SlotContext, Role: role, Fallback: FallbackKey, Key: key}
}

// ContextOrProgram returns a slot bound to role that falls back to the
// request's program id.
func ContextOrProgram(role string) Slot {
	return Slot{Kind: SlotContext, Role: role, Fallback: FallbackProgram}
}

// Index returns a slot producing every integer in [lo, hi] as a
// width-bit seed.
func Index(width int, lo, hi uint64) Slot {
	return Slot{Kind: SlotIndex, Width: width, Lo: lo, Hi: hi}
}

// SeedKind returns the kind of seed this slot produces.
func (s Slot) SeedKind() ir.SeedKind {
	switch s.Kind {
	case SlotLiteral, SlotChoice:
		if len(s.Seeds) > 0 {
			return s.Seeds[0].Kind()
		}
		return ""
	case SlotContext:
		return ir.KindPubkey
	case SlotIndex:
		return ir.SeedKind(fmt.Sprintf("u%d", s.Width))
	default:
		return ""
	}
}

// String renders the slot compactly, e.g. "string:vault",
// "ctx:wallet", "ctx:token_program|Tokenkeg...", "u64[0..255]".
func (s Slot) String() string {
	switch s.Kind {
	case SlotLiteral:
		if len(s.Seeds) == 1 {
			return ir.FormatSeed(s.Seeds[0])
		}
		return "literal(?)"
	case SlotChoice:
		return fmt.Sprintf("choice(%d %s)", len(s.Seeds), s.SeedKind())
	case SlotContext:
		switch s.Fallback {
		case FallbackProgram:
			return "ctx:" + s.Role + "|program"
		case FallbackKey:
			return "ctx:" + s.Role + "|" + s.Key.String()
		default:
			return "ctx:" + s.Role
		}
	case SlotIndex:
		return fmt.Sprintf("u%d[%d..%d]", s.Width, s.Lo, s.Hi)
	default:
		return s.Kind.String()
	}
}

// validate checks one slot. i is the slot position, used in messages.
func (s Slot) validate(i int) error {
	switch s.Kind {
	case SlotLiteral:
		if len(s.Seeds) != 1 {
			return fmt.Errorf("slot %d: literal needs exactly one seed, has %d", i, len(s.Seeds))
		}
		return checkSeedLen(i, s.Seeds[0])
	case SlotChoice:
		if len(s.Seeds) == 0 {
			return fmt.Errorf("slot %d: choice needs at least one seed", i)
		}
		kind := s.Seeds[0].Kind()
		for _, seed := range s.Seeds {
			if seed.Kind() != kind {
				return fmt.Errorf("slot %d: choice mixes %s and %s seeds", i, kind, seed.Kind())
			}
			if err := checkSeedLen(i, seed); err != nil {
				return err
			}
		}
		return nil
	case SlotContext:
		if s.Role == "" {
			return fmt.Errorf("slot %d: context slot needs a role", i)
		}
		if s.Fallback < FallbackNone || s.Fallback > FallbackKey {
			return fmt.Errorf("slot %d: unknown fallback %d", i, s.Fallback)
		}
		return nil
	case SlotIndex:
		if s.Lo > s.Hi {
			return fmt.Errorf("slot %d: index range %d..%d is empty", i, s.Lo, s.Hi)
		}
		if s.Hi-s.Lo >= MaxIndexSpan {
			return fmt.Errorf("slot %d: index range %d..%d exceeds %d values", i, s.Lo, s.Hi, MaxIndexSpan)
		}
		var max uint64
		switch s.Width {
		case 8:
			max = math.MaxUint8
		case 16:
			max = math.MaxUint16
		case 32:
			max = math.MaxUint32
		case 64, 128:
			max = math.MaxUint64
		default:
			return fmt.Errorf("slot %d: unsupported index width %d", i, s.Width)
		}
		if s.Hi > max {
			return fmt.Errorf("slot %d: %d does not fit in u%d", i, s.Hi, s.Width)
		}
		return nil
	default:
		return fmt.Errorf("slot %d: unknown slot kind %d", i, int(s.Kind))
	}
}

// maxSeedBytes mirrors the chain's per-seed limit.
const maxSeedBytes = 32

func checkSeedLen(i int, seed ir.Seed) error {
	if n := len(seed.Bytes()); n > maxSeedBytes {
		return fmt.Errorf("slot %d: seed %q is %d bytes, max %d", i, ir.FormatSeed(seed), n, maxSeedBytes)
	}
	return nil
}

// resolve returns how many values the slot yields for req and a function
// producing the i-th. ok is false when a required role is missing.
func (s Slot) resolve(req Request) (n uint64, at func(uint64) ir.Seed, ok bool) {
	switch s.Kind {
	case SlotLiteral, SlotChoice:
		seeds := s.Seeds
		return uint64(len(seeds)), func(i uint64) ir.Seed { return seeds[i] }, true
	case SlotContext:
		key, found := req.Context[s.Role]
		if !found {
			switch s.Fallback {
			case FallbackProgram:
				key = req.ProgramID
			case FallbackKey:
				key = s.Key
			default:
				return 0, nil, false
			}
		}
		seed := ir.PubkeySeed(key)
		return 1, func(uint64) ir.Seed { return seed }, true
	case SlotIndex:
		lo, width := s.Lo, s.Width
		return s.Hi - s.Lo + 1, func(i uint64) ir.Seed { return indexSeed(width, lo+i) }, true
	default:
		return 0, nil, false
	}
}

func indexSeed(width int, v uint64) ir.Seed {
	switch width {
	case 8:
		return ir.U8Seed(v)
	case 16:
		return ir.U16Seed(v)
	case 32:
		return ir.U32Seed(v)
	case 128:
		return ir.U128FromUint64(v)
	default:
		return ir.U64Seed(v)
	}
}
