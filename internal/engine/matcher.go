package engine

import (
	"errors"
	"log/slog"

	"github.com/lightningnetwork/lnd/clock"

	"github.com/roach88/pdatrace/internal/derive"
	"github.com/roach88/pdatrace/internal/ir"
	"github.com/roach88/pdatrace/internal/pattern"
)

// Matcher searches a pattern library for the seeds behind a target
// address.
//
// Thread-safety: a Matcher holds no mutable state after construction and
// may be used from any number of goroutines.
type Matcher struct {
	lib    *pattern.Library
	budget int
	clock  clock.Clock
	logger *slog.Logger
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithBudget sets the maximum (pattern, candidate) pairs per search.
//
// Default: 4096 (DefaultBudget). Values below 1 are ignored.
func WithBudget(n int) MatcherOption {
	return func(m *Matcher) {
		if n > 0 {
			m.budget = n
		}
	}
}

// WithClock sets the clock used to time searches.
func WithClock(c clock.Clock) MatcherOption {
	return func(m *Matcher) {
		m.clock = c
	}
}

// WithLogger sets the logger for search diagnostics.
func WithLogger(l *slog.Logger) MatcherOption {
	return func(m *Matcher) {
		m.logger = l
	}
}

// NewMatcher creates a Matcher over lib.
func NewMatcher(lib *pattern.Library, opts ...MatcherOption) *Matcher {
	m := &Matcher{
		lib:    lib,
		budget: DefaultBudget,
		clock:  clock.NewDefaultClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Library returns the pattern library searched by m.
func (m *Matcher) Library() *pattern.Library {
	return m.lib
}

// Budget returns the per-search candidate budget.
func (m *Matcher) Budget() int {
	return m.budget
}

// Match runs the search for req and always returns a result.
//
// Patterns are visited in library order and candidates in the order the
// pattern yields them. For each candidate the canonical bump is found and
// the derived address compared with the target; the first exact match
// stops the search. Candidates with no valid bump, or whose seeds break
// the chain limits, are skipped.
func (m *Matcher) Match(req AnalysisRequest) *PdaMatch {
	start := m.clock.Now()
	budget := NewBudget(m.budget)
	preq := req.patternRequest()

	result := noMatch(req)

search:
	for p := range m.lib.All() {
		for seeds := range p.Candidates(preq) {
			if err := budget.Check(p.Name); IsBudgetExceededError(err) {
				result.Exhausted = true
				m.logger.Debug("search budget exhausted",
					"address", req.Address, "program", req.ProgramID,
					"limit", budget.Limit(), "error", err)
				break search
			}

			addr, bump, err := derive.FindBump(seeds, req.ProgramID)
			switch {
			case err == nil:
			case errors.Is(err, derive.ErrNoValidBump), derive.IsLimitError(err):
				continue
			default:
				m.logger.Warn("derivation failed", "pattern", p.Name, "error", err)
				continue
			}

			if addr == req.Address {
				result = &PdaMatch{
					Address:    req.Address,
					ProgramID:  req.ProgramID,
					Derived:    true,
					Seeds:      ir.SeedList(seeds),
					Bump:       bump,
					Pattern:    p.Name,
					Family:     p.Family,
					Confidence: p.Confidence,
				}
				break search
			}
		}
	}

	result.Candidates = budget.Used()
	result.Duration = m.clock.Now().Sub(start)

	m.logger.Debug("search finished",
		"address", req.Address,
		"derived", result.Derived,
		"pattern", result.Pattern,
		"candidates", result.Candidates,
		"duration", result.Duration)

	return result
}
