package store

import (
	"time"

	"github.com/roach88/pdatrace/internal/ir"
)

// Analysis is one stored analysis result.
type Analysis struct {
	// ID is ir.AnalysisID(Address, ProgramID, digest of Context).
	ID         string                  `json:"id"`
	Address    ir.PublicKey            `json:"address"`
	ProgramID  ir.PublicKey            `json:"program_id"`
	Context    map[string]ir.PublicKey `json:"context,omitempty"`
	Derived    bool                    `json:"derived_successfully"`
	Pattern    string                  `json:"pattern,omitempty"`
	Family     string                  `json:"family,omitempty"`
	Seeds      ir.SeedList             `json:"seeds"`
	Bump       uint8                   `json:"bump"`
	Confidence float64                 `json:"confidence"`
	Duration   time.Duration           `json:"duration_ns"`
	Candidates int                     `json:"candidates"`
	Exhausted  bool                    `json:"exhausted,omitempty"`
	Seq        int64                   `json:"seq"`
	RecordedAt time.Time               `json:"recorded_at"`
}

// Program is a program id with its analysis counts.
type Program struct {
	ProgramID ir.PublicKey `json:"program_id"`
	Name      string       `json:"name,omitempty"`
	FirstSeq  int64        `json:"first_seq"`
	CreatedAt time.Time    `json:"created_at"`
	Analyses  int          `json:"analyses"`
	Derived   int          `json:"derived"`
}

// PatternCount is one row of a pattern distribution.
type PatternCount struct {
	Pattern string `json:"pattern"`
	Family  string `json:"family"`
	Count   int    `json:"count"`
}

// Filter narrows ListAnalyses. Zero fields match everything.
type Filter struct {
	ProgramID   *ir.PublicKey
	Pattern     string
	DerivedOnly bool

	// Limit caps the rows returned; 0 means DefaultLimit.
	Limit  int
	Offset int
}

// DefaultLimit is the page size used when Filter.Limit is 0.
const DefaultLimit = 100

// Stats summarises the whole store.
type Stats struct {
	Analyses      int           `json:"analyses"`
	Derived       int           `json:"derived"`
	Programs      int           `json:"programs"`
	AvgConfidence float64       `json:"avg_confidence"`
	AvgDuration   time.Duration `json:"avg_duration_ns"`
}

// SuccessRate returns Derived / Analyses, or 0 for an empty store.
func (s Stats) SuccessRate() float64 {
	if s.Analyses == 0 {
		return 0
	}
	return float64(s.Derived) / float64(s.Analyses)
}
