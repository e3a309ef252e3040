package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"

	"github.com/roach88/pdatrace/internal/ir"
	"github.com/roach88/pdatrace/internal/store"
)

// Recorder persists finished analyses, stamping each with the next value
// of a logical sequence.
//
// Well-known programs (see ir.ProgramName) get their display name the
// first time this recorder writes an analysis under them.
//
// Thread-safety: Recorder is safe for concurrent use. The store
// serialises writes on its single connection.
type Recorder struct {
	store *store.Store
	seq   *Sequence
	clock clock.Clock

	named sync.Map // ir.PublicKey -> struct{}
}

// NewRecorder creates a Recorder whose sequence resumes after the highest
// seq already in st.
func NewRecorder(ctx context.Context, st *store.Store, c clock.Clock) (*Recorder, error) {
	last, err := st.MaxSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("new recorder: %w", err)
	}
	if c == nil {
		c = clock.NewDefaultClock()
	}
	return &Recorder{store: st, seq: NewSequenceAt(last), clock: c}, nil
}

// Record writes the outcome of req. Recording the same request again
// replaces the earlier row.
func (r *Recorder) Record(ctx context.Context, req AnalysisRequest, m *PdaMatch) (store.Analysis, error) {
	a := store.Analysis{
		ID:         req.ID(),
		Address:    m.Address,
		ProgramID:  m.ProgramID,
		Context:    req.Context,
		Derived:    m.Derived,
		Pattern:    m.Pattern,
		Family:     m.Family,
		Seeds:      m.Seeds,
		Bump:       m.Bump,
		Confidence: m.Confidence,
		Duration:   m.Duration,
		Candidates: m.Candidates,
		Exhausted:  m.Exhausted,
		Seq:        r.seq.Next(),
		RecordedAt: r.clock.Now().UTC().Truncate(time.Millisecond),
	}
	if err := r.store.WriteAnalysis(ctx, a); err != nil {
		return store.Analysis{}, fmt.Errorf("record %s: %w", req.Address, err)
	}
	if err := r.nameProgram(ctx, a); err != nil {
		return store.Analysis{}, fmt.Errorf("record %s: %w", req.Address, err)
	}
	return a, nil
}

func (r *Recorder) nameProgram(ctx context.Context, a store.Analysis) error {
	name, ok := ir.ProgramName(a.ProgramID)
	if !ok {
		return nil
	}
	if _, done := r.named.LoadOrStore(a.ProgramID, struct{}{}); done {
		return nil
	}
	if err := r.store.UpsertProgram(ctx, a.ProgramID, name, a.Seq, a.RecordedAt); err != nil {
		r.named.Delete(a.ProgramID)
		return err
	}
	return nil
}

// Sequence returns the recorder's logical clock.
func (r *Recorder) Sequence() *Sequence {
	return r.seq
}

// Store returns the underlying store.
func (r *Recorder) Store() *store.Store {
	return r.store
}
