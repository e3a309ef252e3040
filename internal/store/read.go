package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/pdatrace/internal/ir"
)

const analysisColumns = `id, address, program_id, context, derived, pattern, family, seeds,
	bump, confidence, duration_us, candidates, exhausted, seq, recorded_at`

// ReadAnalysis returns the analysis with the given id.
// The bool is false when no such row exists.
func (s *Store) ReadAnalysis(ctx context.Context, id string) (Analysis, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+analysisColumns+` FROM analyses WHERE id = ?`, id)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, false, nil
	}
	if err != nil {
		return Analysis{}, false, fmt.Errorf("read analysis %s: %w", id, err)
	}
	return a, true, nil
}

// FindAnalysis returns the most recent analysis of address under
// programID, whatever context it was run with.
func (s *Store) FindAnalysis(ctx context.Context, address, programID ir.PublicKey) (Analysis, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+analysisColumns+`
		FROM analyses
		WHERE address = ? AND program_id = ?
		ORDER BY seq DESC, id ASC
		LIMIT 1
	`, address.String(), programID.String())
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, false, nil
	}
	if err != nil {
		return Analysis{}, false, fmt.Errorf("find analysis: %w", err)
	}
	return a, true, nil
}

// ListAnalyses returns analyses matching f, newest first
// (ORDER BY seq DESC, id ASC).
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListAnalyses(ctx context.Context, f Filter) ([]Analysis, error) {
	var (
		where []string
		args  []any
	)
	if f.ProgramID != nil {
		where = append(where, "program_id = ?")
		args = append(args, f.ProgramID.String())
	}
	if f.Pattern != "" {
		where = append(where, "pattern = ?")
		args = append(args, f.Pattern)
	}
	if f.DerivedOnly {
		where = append(where, "derived = 1")
	}

	query := `SELECT ` + analysisColumns + ` FROM analyses`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC, id ASC LIMIT ? OFFSET ?"

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	args = append(args, limit, max(f.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	analyses := []Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return analyses, nil
}

// ListPrograms returns every known program with its analysis counts,
// ordered by first_seq then program id.
func (s *Store) ListPrograms(ctx context.Context) ([]Program, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.program_id, p.name, p.first_seq, p.created_at,
		       COUNT(a.id), COALESCE(SUM(a.derived), 0)
		FROM programs p
		LEFT JOIN analyses a ON a.program_id = p.program_id
		GROUP BY p.program_id
		ORDER BY p.first_seq ASC, p.program_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query programs: %w", err)
	}
	defer rows.Close()

	programs := []Program{}
	for rows.Next() {
		var (
			p         Program
			programID string
			created   int64
		)
		if err := rows.Scan(&programID, &p.Name, &p.FirstSeq, &created, &p.Analyses, &p.Derived); err != nil {
			return nil, fmt.Errorf("scan program: %w", err)
		}
		if p.ProgramID, err = ir.ParsePublicKey(programID); err != nil {
			return nil, fmt.Errorf("scan program: %w", err)
		}
		p.CreatedAt = time.UnixMilli(created).UTC()
		programs = append(programs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate programs: %w", err)
	}
	return programs, nil
}

// PatternDistribution counts derived analyses per pattern, most common
// first. A nil programID covers every program.
func (s *Store) PatternDistribution(ctx context.Context, programID *ir.PublicKey) ([]PatternCount, error) {
	query := `
		SELECT pattern, family, COUNT(*)
		FROM analyses
		WHERE derived = 1`
	var args []any
	if programID != nil {
		query += " AND program_id = ?"
		args = append(args, programID.String())
	}
	query += `
		GROUP BY pattern, family
		ORDER BY COUNT(*) DESC, pattern ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pattern distribution: %w", err)
	}
	defer rows.Close()

	counts := []PatternCount{}
	for rows.Next() {
		var pc PatternCount
		if err := rows.Scan(&pc.Pattern, &pc.Family, &pc.Count); err != nil {
			return nil, fmt.Errorf("scan pattern count: %w", err)
		}
		counts = append(counts, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pattern distribution: %w", err)
	}
	return counts, nil
}

// Stats summarises every stored analysis.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var (
		st     Stats
		avgDur float64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(derived), 0),
		       COUNT(DISTINCT program_id),
		       COALESCE(AVG(CASE WHEN derived = 1 THEN confidence END), 0),
		       COALESCE(AVG(duration_us), 0)
		FROM analyses
	`).Scan(&st.Analyses, &st.Derived, &st.Programs, &st.AvgConfidence, &avgDur)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	st.AvgDuration = time.Duration(avgDur * float64(time.Microsecond))
	return st, nil
}

// MaxSeq returns the highest seq stored, or 0 for an empty store.
// The engine's sequence resumes from here on startup.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM analyses`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query max seq: %w", err)
	}
	return seq, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var (
		a                    Analysis
		address, programID   string
		ctxJSON, seedsJSON   string
		derived, exhausted   int
		bump                 int
		durationUS, recorded int64
	)
	err := row.Scan(&a.ID, &address, &programID, &ctxJSON, &derived, &a.Pattern, &a.Family,
		&seedsJSON, &bump, &a.Confidence, &durationUS, &a.Candidates, &exhausted, &a.Seq, &recorded)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, err
		}
		return a, fmt.Errorf("scan analysis: %w", err)
	}

	if a.Address, err = ir.ParsePublicKey(address); err != nil {
		return a, fmt.Errorf("scan analysis %s: address: %w", a.ID, err)
	}
	if a.ProgramID, err = ir.ParsePublicKey(programID); err != nil {
		return a, fmt.Errorf("scan analysis %s: program: %w", a.ID, err)
	}
	if a.Context, err = unmarshalContext(ctxJSON); err != nil {
		return a, fmt.Errorf("scan analysis %s: %w", a.ID, err)
	}
	if a.Seeds, err = unmarshalSeeds(seedsJSON); err != nil {
		return a, fmt.Errorf("scan analysis %s: %w", a.ID, err)
	}

	a.Derived = derived != 0
	a.Exhausted = exhausted != 0
	a.Bump = uint8(bump)
	a.Duration = time.Duration(durationUS) * time.Microsecond
	a.RecordedAt = time.UnixMilli(recorded).UTC()
	return a, nil
}
