package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/pdatrace/internal/ir"
	"github.com/roach88/pdatrace/internal/pattern"
)

// DefaultFamily labels patterns that do not name a family.
const DefaultFamily = "CUSTOM"

// fallbackProgram in a context slot means "use the request program id".
const fallbackProgram = "program"

// CompilePattern parses a CUE value into a pattern.Pattern.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the pattern struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`pattern: vault: { ... }`)
//	p, err := CompilePattern(v.LookupPath(cue.ParsePath("pattern.vault")))
//
// The result has passed pattern.Validate.
func CompilePattern(v cue.Value) (*pattern.Pattern, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	p := &pattern.Pattern{Family: DefaultFamily}

	// Pattern name is the struct label (the path selector)
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		p.Name = strings.Trim(labels[len(labels)-1].String(), `"`)
	}

	var err error
	if p.Family, err = optionalString(v, "family", DefaultFamily); err != nil {
		return nil, err
	}
	if p.Description, err = optionalString(v, "description", ""); err != nil {
		return nil, err
	}

	confVal := v.LookupPath(cue.ParsePath("confidence"))
	if !confVal.Exists() {
		return nil, &CompileError{
			Field:   "confidence",
			Message: "confidence is required",
			Pos:     v.Pos(),
		}
	}
	if p.Confidence, err = confVal.Float64(); err != nil {
		return nil, formatCUEError(err)
	}

	p.Slots, err = parseSlots(v)
	if err != nil {
		return nil, err
	}

	if err := p.Validate(); err != nil {
		return nil, &CompileError{
			Field:   "pattern",
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}
	return p, nil
}

func optionalString(v cue.Value, field, def string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return def, nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// parseSlots parses the required slots list.
func parseSlots(v cue.Value) ([]pattern.Slot, error) {
	slotsVal := v.LookupPath(cue.ParsePath("slots"))
	if !slotsVal.Exists() {
		return nil, &CompileError{
			Field:   "slots",
			Message: "slots is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := slotsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var slots []pattern.Slot
	for i := 0; iter.Next(); i++ {
		slot, err := parseSlot(iter.Value(), fmt.Sprintf("slots[%d]", i))
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// parseSlot parses one slot. Exactly one of literal, choice, context or
// index must be set.
func parseSlot(v cue.Value, field string) (pattern.Slot, error) {
	var kinds []string
	for _, k := range []string{"literal", "choice", "context", "index"} {
		if v.LookupPath(cue.ParsePath(k)).Exists() {
			kinds = append(kinds, k)
		}
	}
	if len(kinds) != 1 {
		return pattern.Slot{}, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("slot must set exactly one of literal, choice, context, index (got %d)", len(kinds)),
			Pos:     v.Pos(),
		}
	}

	switch kinds[0] {
	case "literal":
		seed, err := parseSeedValue(v.LookupPath(cue.ParsePath("literal")), field+".literal")
		if err != nil {
			return pattern.Slot{}, err
		}
		return pattern.Literal(seed), nil

	case "choice":
		iter, err := v.LookupPath(cue.ParsePath("choice")).List()
		if err != nil {
			return pattern.Slot{}, formatCUEError(err)
		}
		var seeds []ir.Seed
		for i := 0; iter.Next(); i++ {
			seed, err := parseSeedValue(iter.Value(), fmt.Sprintf("%s.choice[%d]", field, i))
			if err != nil {
				return pattern.Slot{}, err
			}
			seeds = append(seeds, seed)
		}
		return pattern.Choice(seeds...), nil

	case "context":
		return parseContextSlot(v, field)

	default:
		return parseIndexSlot(v.LookupPath(cue.ParsePath("index")), field+".index")
	}
}

func parseSeedValue(v cue.Value, field string) (ir.Seed, error) {
	s, err := v.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	seed, err := ir.ParseSeed(s)
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return seed, nil
}

func parseContextSlot(v cue.Value, field string) (pattern.Slot, error) {
	roleVal := v.LookupPath(cue.ParsePath("context"))
	role, err := roleVal.String()
	if err != nil {
		return pattern.Slot{}, formatCUEError(err)
	}

	fbVal := v.LookupPath(cue.ParsePath("fallback"))
	if !fbVal.Exists() {
		return pattern.Context(role), nil
	}
	fb, err := fbVal.String()
	if err != nil {
		return pattern.Slot{}, formatCUEError(err)
	}
	if fb == fallbackProgram {
		return pattern.ContextOrProgram(role), nil
	}

	key, err := ir.ParsePublicKey(fb)
	if err != nil {
		return pattern.Slot{}, &CompileError{
			Field:   field + ".fallback",
			Message: fmt.Sprintf("fallback must be %q or a public key: %v", fallbackProgram, err),
			Pos:     fbVal.Pos(),
		}
	}
	return pattern.ContextOr(role, key), nil
}

func parseIndexSlot(v cue.Value, field string) (pattern.Slot, error) {
	width, err := requiredUint(v, "width", field)
	if err != nil {
		return pattern.Slot{}, err
	}
	lo, err := requiredUint(v, "lo", field)
	if err != nil {
		return pattern.Slot{}, err
	}
	hi, err := requiredUint(v, "hi", field)
	if err != nil {
		return pattern.Slot{}, err
	}
	return pattern.Index(int(width), lo, hi), nil
}

func requiredUint(v cue.Value, name, field string) (uint64, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return 0, &CompileError{
			Field:   field + "." + name,
			Message: name + " is required",
			Pos:     v.Pos(),
		}
	}
	n, err := fv.Uint64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}

// CompileError represents a pattern compilation error with location info.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
