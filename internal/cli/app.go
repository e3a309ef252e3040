package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/pdatrace/internal/cache"
	"github.com/roach88/pdatrace/internal/compiler"
	"github.com/roach88/pdatrace/internal/config"
	"github.com/roach88/pdatrace/internal/engine"
	"github.com/roach88/pdatrace/internal/store"
)

// newAnalyzer builds a cached analyzer over the default library plus any
// CUE patterns in patternsDir, falling back to search.patterns_dir.
func newAnalyzer(cfg config.Config, patternsDir string) (*engine.Analyzer, error) {
	if patternsDir == "" {
		patternsDir = cfg.Search.PatternsDir
	}
	lib, err := compiler.Library(patternsDir)
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	slog.Debug("pattern library loaded", "patterns", lib.Len(), "dir", patternsDir)

	m := engine.NewMatcher(lib,
		engine.WithBudget(cfg.Search.Budget),
		engine.WithLogger(slog.Default()))
	c := cache.New[*engine.PdaMatch](cache.Config{
		Capacity: cfg.Cache.MaxSize,
		TTL:      cfg.Cache.TTL.Std(),
	})
	return engine.NewAnalyzer(m, c), nil
}

// openRecorder opens the store at path and a recorder on it. The caller
// closes the returned store.
func openRecorder(ctx context.Context, path string) (*engine.Recorder, *store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, nil, err
	}
	rec, err := engine.NewRecorder(ctx, st, nil)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	slog.Debug("store opened", "path", path, "seq", rec.Sequence().Current())
	return rec, st, nil
}

// fail writes an error envelope and returns the matching ExitError.
func fail(f *OutputFormatter, exit int, code, msg string, err error) error {
	text := msg
	if err != nil {
		text = fmt.Sprintf("%s: %v", msg, err)
	}
	if werr := f.Error(code, text, errorDetails(err)); werr != nil {
		return werr
	}
	return ReportedError(exit, msg, err)
}

// errorDetails exposes the offending field of an invalid input error.
func errorDetails(err error) map[string]string {
	var re *engine.RuntimeError
	if !errors.As(err, &re) || re.Field == "" {
		return nil
	}
	details := map[string]string{"field": re.Field}
	for k, v := range re.Details {
		details[k] = v
	}
	return details
}
