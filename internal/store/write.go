package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/pdatrace/internal/ir"
)

// WriteAnalysis records an analysis, replacing any earlier row with the
// same id. The program row is created first if it does not exist.
//
// Upserting keeps one row per (address, program, context): re-running an
// analysis refreshes its result and seq instead of appending a duplicate.
func (s *Store) WriteAnalysis(ctx context.Context, a Analysis) error {
	if a.ID == "" {
		a.ID = ir.AnalysisID(a.Address, a.ProgramID, ir.ContextDigest(a.Context))
	}

	ctxJSON, err := marshalContext(a.Context)
	if err != nil {
		return fmt.Errorf("write analysis: %w", err)
	}
	seedsJSON, err := marshalSeeds(a.Seeds)
	if err != nil {
		return fmt.Errorf("write analysis: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write analysis: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO programs (program_id, name, first_seq, created_at)
		VALUES (?, '', ?, ?)
		ON CONFLICT(program_id) DO NOTHING
	`, a.ProgramID.String(), a.Seq, a.RecordedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("write analysis: program: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analyses
		(id, address, program_id, context, derived, pattern, family, seeds, bump,
		 confidence, duration_us, candidates, exhausted, seq, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			derived     = excluded.derived,
			pattern     = excluded.pattern,
			family      = excluded.family,
			seeds       = excluded.seeds,
			bump        = excluded.bump,
			confidence  = excluded.confidence,
			duration_us = excluded.duration_us,
			candidates  = excluded.candidates,
			exhausted   = excluded.exhausted,
			seq         = excluded.seq,
			recorded_at = excluded.recorded_at
	`,
		a.ID,
		a.Address.String(),
		a.ProgramID.String(),
		ctxJSON,
		boolToInt(a.Derived),
		a.Pattern,
		a.Family,
		seedsJSON,
		int(a.Bump),
		a.Confidence,
		a.Duration.Microseconds(),
		a.Candidates,
		boolToInt(a.Exhausted),
		a.Seq,
		a.RecordedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("write analysis: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write analysis: commit: %w", err)
	}
	return nil
}

// UpsertProgram creates a program row or updates its display name.
// seq and at are only used when the row is new.
func (s *Store) UpsertProgram(ctx context.Context, programID ir.PublicKey, name string, seq int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO programs (program_id, name, first_seq, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(program_id) DO UPDATE SET name = excluded.name
	`, programID.String(), name, seq, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert program: %w", err)
	}
	return nil
}
