package harness

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/roach88/pdatrace/internal/derive"
	"github.com/roach88/pdatrace/internal/engine"
	"github.com/roach88/pdatrace/internal/ir"
	"github.com/roach88/pdatrace/internal/store"
	"github.com/roach88/pdatrace/internal/testutil"
)

// confidenceTolerance absorbs float noise in YAML-written confidences.
const confidenceTolerance = 1e-9

// Analyzer analyzes one request. *engine.Analyzer implements it.
type Analyzer interface {
	Analyze(ctx context.Context, in engine.RequestInput) (*engine.PdaMatch, error)
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Resolve the target, deriving it from seeds if asked
//  2. Analyze it with a
//  3. Check every expectation, plus the derivation invariant on a match
//  4. Record the match in a fresh in-memory store with a frozen clock and
//     check it reads back unchanged
//
// Failed expectations land in Result.Errors. An error return means the
// scenario could not run at all.
func Run(ctx context.Context, s *Scenario, a Analyzer) (*Result, error) {
	in, err := s.Input()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	req, err := in.Parse()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	m, err := a.Analyze(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: analyze: %w", s.Name, err)
	}

	result := NewResult(s.Name)
	result.Input = in
	result.Match = m

	if err := checkExpectations(s, m, result); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	stored, err := recordAndReadBack(ctx, req, m)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	result.Analysis = stored
	if stored.Derived != m.Derived || stored.Pattern != m.Pattern || !slices.EqualFunc(stored.Seeds, m.Seeds, seedEqual) {
		result.AddError("stored analysis differs from match")
	}
	return result, nil
}

func checkExpectations(s *Scenario, m *engine.PdaMatch, result *Result) error {
	e := s.Expect

	if m.Derived != e.Derived {
		result.AddError(fmt.Sprintf("derived: expected %v, got %v", e.Derived, m.Derived))
	}
	if e.Pattern != "" && m.Pattern != e.Pattern {
		result.AddError(fmt.Sprintf("pattern: expected %q, got %q", e.Pattern, m.Pattern))
	}
	if e.Family != "" && m.Family != e.Family {
		result.AddError(fmt.Sprintf("family: expected %q, got %q", e.Family, m.Family))
	}
	if e.Confidence != nil && math.Abs(m.Confidence-*e.Confidence) > confidenceTolerance {
		result.AddError(fmt.Sprintf("confidence: expected %v, got %v", *e.Confidence, m.Confidence))
	}
	if e.Bump != nil && m.Bump != *e.Bump {
		result.AddError(fmt.Sprintf("bump: expected %d, got %d", *e.Bump, m.Bump))
	}
	if e.Exhausted != nil && m.Exhausted != *e.Exhausted {
		result.AddError(fmt.Sprintf("exhausted: expected %v, got %v", *e.Exhausted, m.Exhausted))
	}

	// Explicit seeds win; otherwise a derived scenario must recover the
	// seeds it was built from.
	var want []string
	switch {
	case len(e.Seeds) > 0:
		want = e.Seeds
	case s.Derive != nil && e.Derived:
		want = s.Derive.Seeds
	}
	if want != nil {
		wantSeeds, err := parseSeeds("expect.seeds", want)
		if err != nil {
			return err
		}
		if !slices.EqualFunc(m.Seeds, wantSeeds, seedEqual) {
			result.AddError(fmt.Sprintf("seeds: expected %v, got %v",
				ir.SeedList(wantSeeds).Strings(), m.Seeds.Strings()))
		}
	}

	if m.Derived {
		got, err := derive.Derive(m.Seeds, m.Bump, m.ProgramID)
		switch {
		case err != nil:
			result.AddError(fmt.Sprintf("match does not re-derive: %v", err))
		case got != m.Address:
			result.AddError(fmt.Sprintf("match re-derives to %s, not %s", got, m.Address))
		}
	}
	return nil
}

// recordAndReadBack writes m to a fresh in-memory store and reads it back.
func recordAndReadBack(ctx context.Context, req engine.AnalysisRequest, m *engine.PdaMatch) (*store.Analysis, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	rec, err := engine.NewRecorder(ctx, st, testutil.NewClock())
	if err != nil {
		return nil, err
	}
	written, err := rec.Record(ctx, req, m)
	if err != nil {
		return nil, err
	}

	got, ok, err := st.ReadAnalysis(ctx, written.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("analysis %s missing after write", written.ID)
	}
	return &got, nil
}

func seedEqual(a, b ir.Seed) bool {
	return ir.FormatSeed(a) == ir.FormatSeed(b)
}
