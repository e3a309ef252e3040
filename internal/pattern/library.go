package pattern

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"slices"
)

// Library is an ordered, immutable catalog of patterns.
//
// INVARIANTS:
//   - Order is specificity descending, then confidence descending, then
//     registration order, and never changes after construction
//   - Names are unique
type Library struct {
	patterns []Pattern
	byName   map[string]int
}

// NewLibrary validates and orders patterns. The input slice is copied.
func NewLibrary(patterns ...Pattern) (*Library, error) {
	var errs []error
	seen := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("pattern %q: duplicate name", p.Name))
			continue
		}
		seen[p.Name] = true
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	sorted := make([]Pattern, len(patterns))
	for i, p := range patterns {
		p.Slots = slices.Clone(p.Slots)
		sorted[i] = p
	}
	slices.SortStableFunc(sorted, func(a, b Pattern) int {
		if c := cmp.Compare(b.Specificity(), a.Specificity()); c != 0 {
			return c
		}
		return cmp.Compare(b.Confidence, a.Confidence)
	})

	byName := make(map[string]int, len(sorted))
	for i, p := range sorted {
		byName[p.Name] = i
	}
	return &Library{patterns: sorted, byName: byName}, nil
}

// MustLibrary is like NewLibrary but panics on error.
// Use only for built-in pattern sets and in tests.
func MustLibrary(patterns ...Pattern) *Library {
	lib, err := NewLibrary(patterns...)
	if err != nil {
		panic(err)
	}
	return lib
}

// Patterns returns the patterns in search order. The slice is a copy.
func (l *Library) Patterns() []Pattern {
	return slices.Clone(l.patterns)
}

// All iterates the patterns in search order without copying.
func (l *Library) All() iter.Seq[Pattern] {
	return func(yield func(Pattern) bool) {
		for _, p := range l.patterns {
			if !yield(p) {
				return
			}
		}
	}
}

// Lookup returns the pattern with the given name.
func (l *Library) Lookup(name string) (Pattern, bool) {
	i, ok := l.byName[name]
	if !ok {
		return Pattern{}, false
	}
	return l.patterns[i], true
}

// Len returns the number of patterns.
func (l *Library) Len() int {
	return len(l.patterns)
}
