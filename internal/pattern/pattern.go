package pattern

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"strings"

	"github.com/roach88/pdatrace/internal/ir"
)

// MaxSlots is the most slots a pattern may have; the bump takes the
// sixteenth seed position.
const MaxSlots = 15

// Request is what a pattern resolves against: the program that owns the
// target and the caller-supplied role → key bindings.
type Request struct {
	ProgramID ir.PublicKey
	Context   map[string]ir.PublicKey
}

// Pattern is an immutable seed template with a fixed confidence score.
type Pattern struct {
	// Name uniquely identifies the pattern within a library.
	Name string `json:"name"`

	// Family is the display label of the pattern family,
	// e.g. "WALLET_TOKEN_MINT".
	Family string `json:"family"`

	// Description explains what accounts the pattern derives.
	Description string `json:"description,omitempty"`

	// Slots produce the seed sequence, in order.
	Slots []Slot `json:"-"`

	// Confidence is the base score reported on a match, in [0, 1].
	Confidence float64 `json:"confidence"`
}

// Validate checks the pattern's structure.
func (p Pattern) Validate() error {
	var errs []error
	if p.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if len(p.Slots) == 0 {
		errs = append(errs, errors.New("at least one slot is required"))
	}
	if len(p.Slots) > MaxSlots {
		errs = append(errs, fmt.Errorf("%d slots exceeds max %d", len(p.Slots), MaxSlots))
	}
	if math.IsNaN(p.Confidence) || p.Confidence < 0 || p.Confidence > 1 {
		errs = append(errs, fmt.Errorf("confidence %v outside [0, 1]", p.Confidence))
	}
	for i, s := range p.Slots {
		if err := s.validate(i); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("pattern %q: %w", p.Name, errors.Join(errs...))
	}
	return nil
}

// Specificity scores how much caller context the pattern binds: two
// points per required context slot, one per context slot with a
// fallback. Higher is less ambiguous and is tried first.
func (p Pattern) Specificity() int {
	score := 0
	for _, s := range p.Slots {
		if s.Kind != SlotContext {
			continue
		}
		if s.Fallback == FallbackNone {
			score += 2
		} else {
			score++
		}
	}
	return score
}

// RequiredRoles lists context roles without a fallback, in slot order.
func (p Pattern) RequiredRoles() []string {
	var roles []string
	for _, s := range p.Slots {
		if s.Kind == SlotContext && s.Fallback == FallbackNone {
			roles = append(roles, s.Role)
		}
	}
	return roles
}

// Signature joins the seed kinds of the slots, e.g. "string:pubkey:u64".
func (p Pattern) Signature() string {
	kinds := make([]string, len(p.Slots))
	for i, s := range p.Slots {
		kinds[i] = string(s.SeedKind())
	}
	return strings.Join(kinds, ":")
}

// Layout renders every slot, e.g. ["ctx:wallet", "string:vault"].
func (p Pattern) Layout() []string {
	out := make([]string, len(p.Slots))
	for i, s := range p.Slots {
		out[i] = s.String()
	}
	return out
}

// Info is the listing form of a pattern used by the API and the CLI.
type Info struct {
	Name          string   `json:"name"`
	Family        string   `json:"family"`
	Description   string   `json:"description,omitempty"`
	Confidence    float64  `json:"confidence"`
	Specificity   int      `json:"specificity"`
	Signature     string   `json:"signature"`
	Layout        []string `json:"layout"`
	RequiredRoles []string `json:"required_roles"`
}

// Info describes p. RequiredRoles is never nil.
func (p Pattern) Info() Info {
	roles := p.RequiredRoles()
	if roles == nil {
		roles = []string{}
	}
	return Info{
		Name:          p.Name,
		Family:        p.Family,
		Description:   p.Description,
		Confidence:    p.Confidence,
		Specificity:   p.Specificity(),
		Signature:     p.Signature(),
		Layout:        p.Layout(),
		RequiredRoles: roles,
	}
}

// CandidateCount returns how many seed sequences Candidates would yield
// for req, saturating at math.MaxUint64. Zero means the pattern is
// skipped.
func (p Pattern) CandidateCount(req Request) uint64 {
	total := uint64(1)
	for _, s := range p.Slots {
		n, _, ok := s.resolve(req)
		if !ok || n == 0 {
			return 0
		}
		if total > math.MaxUint64/n {
			return math.MaxUint64
		}
		total *= n
	}
	return total
}

// Candidates lazily yields the cartesian product of the slot values, with
// the last slot varying fastest. Nothing is yielded when a required
// context role is missing. Each yielded slice is freshly allocated.
func (p Pattern) Candidates(req Request) iter.Seq[[]ir.Seed] {
	return func(yield func([]ir.Seed) bool) {
		if len(p.Slots) == 0 {
			return
		}

		sizes := make([]uint64, len(p.Slots))
		gens := make([]func(uint64) ir.Seed, len(p.Slots))
		for i, s := range p.Slots {
			n, at, ok := s.resolve(req)
			if !ok || n == 0 {
				return
			}
			sizes[i], gens[i] = n, at
		}

		// Mixed-radix counter over slot positions.
		idx := make([]uint64, len(p.Slots))
		for {
			seeds := make([]ir.Seed, len(p.Slots))
			for i := range seeds {
				seeds[i] = gens[i](idx[i])
			}
			if !yield(seeds) {
				return
			}

			pos := len(idx) - 1
			for pos >= 0 {
				idx[pos]++
				if idx[pos] < sizes[pos] {
					break
				}
				idx[pos] = 0
				pos--
			}
			if pos < 0 {
				return
			}
		}
	}
}
