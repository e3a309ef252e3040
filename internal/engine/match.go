package engine

import (
	"time"

	"github.com/roach88/pdatrace/internal/ir"
)

// PdaMatch is the outcome of one analysis.
//
// INVARIANT: when Derived is true, derive.Derive(Seeds, Bump, ProgramID)
// reproduces Address and Address is off-curve. When Derived is false,
// Seeds is empty (not nil), Pattern is "" and Bump/Confidence are zero.
//
// A PdaMatch is immutable once returned. Cached matches are shared
// between callers, so never modify one in place.
type PdaMatch struct {
	Address    ir.PublicKey  `json:"address"`
	ProgramID  ir.PublicKey  `json:"program_id"`
	Derived    bool          `json:"derived_successfully"`
	Seeds      ir.SeedList   `json:"seeds"`
	Bump       uint8         `json:"bump"`
	Pattern    string        `json:"pattern,omitempty"`
	Family     string        `json:"family,omitempty"`
	Confidence float64       `json:"confidence"`
	Duration   time.Duration `json:"duration_ns"`

	// Candidates is the number of (pattern, candidate) pairs tried.
	Candidates int `json:"candidates"`

	// Exhausted is set when the search stopped on its budget rather than
	// after trying every pattern.
	Exhausted bool `json:"exhausted,omitempty"`
}

// Signature returns the seed kind signature of a match, e.g.
// "string:pubkey". Empty for a non-match.
func (m *PdaMatch) Signature() string {
	return ir.Signature(m.Seeds)
}

// noMatch builds the non-match result for req.
func noMatch(req AnalysisRequest) *PdaMatch {
	return &PdaMatch{
		Address:   req.Address,
		ProgramID: req.ProgramID,
		Seeds:     ir.SeedList{},
	}
}
