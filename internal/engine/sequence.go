package engine

import "sync/atomic"

// Sequence is a monotonic logical clock for ordering recorded analyses.
//
// Every analysis written to the store is stamped with a strictly
// increasing seq. Listing by seq gives a stable history order that does
// not depend on wall-clock resolution.
//
// Thread-safety: Sequence is safe for concurrent use. Batch workers and
// HTTP handlers share one instance.
type Sequence struct {
	seq atomic.Int64
}

// NewSequence creates a sequence starting at 0.
func NewSequence() *Sequence {
	return &Sequence{}
}

// NewSequenceAt creates a sequence that resumes after start, typically
// the highest seq already in the store.
func NewSequenceAt(start int64) *Sequence {
	s := &Sequence{}
	s.seq.Store(start)
	return s
}

// Next returns the next value. Each call returns a unique, increasing value.
func (s *Sequence) Next() int64 {
	return s.seq.Add(1)
}

// Current returns the last value handed out.
func (s *Sequence) Current() int64 {
	return s.seq.Load()
}
