package engine

import (
	"context"

	"github.com/roach88/pdatrace/internal/cache"
	"github.com/roach88/pdatrace/internal/pattern"
)

// Analyzer runs analyses through the result cache.
//
// Thread-safety: Analyzer is safe for concurrent use. Identical requests
// arriving together share one search through the cache's single-flight.
type Analyzer struct {
	matcher *Matcher
	cache   *cache.Cache[*PdaMatch]
}

// NewAnalyzer creates an Analyzer. A nil cache disables caching.
func NewAnalyzer(m *Matcher, c *cache.Cache[*PdaMatch]) *Analyzer {
	return &Analyzer{matcher: m, cache: c}
}

// Analyze parses in and returns the match for it.
//
// Malformed input fails with an INVALID_INPUT RuntimeError before any
// derivation is attempted. "No pattern matched" is not an error.
func (a *Analyzer) Analyze(ctx context.Context, in RequestInput) (*PdaMatch, error) {
	req, err := in.Parse()
	if err != nil {
		return nil, err
	}
	return a.AnalyzeRequest(ctx, req)
}

// AnalyzeRequest returns the match for an already parsed request.
func (a *Analyzer) AnalyzeRequest(ctx context.Context, req AnalysisRequest) (*PdaMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.cache == nil {
		return a.matcher.Match(req), nil
	}

	key := cache.NewKey(req.Address, req.ProgramID, req.Context)
	return a.cache.Get(key, func() (*PdaMatch, error) {
		return a.matcher.Match(req), nil
	})
}

// Cached returns the fresh cached match for req without searching.
func (a *Analyzer) Cached(req AnalysisRequest) (*PdaMatch, bool) {
	if a.cache == nil {
		return nil, false
	}
	return a.cache.Peek(cache.NewKey(req.Address, req.ProgramID, req.Context))
}

// Forget drops the cached match for req, so the next analysis searches
// again. It reports whether anything was cached.
func (a *Analyzer) Forget(req AnalysisRequest) bool {
	if a.cache == nil {
		return false
	}
	return a.cache.Delete(cache.NewKey(req.Address, req.ProgramID, req.Context))
}

// AnalyzeUncached runs the search directly, neither reading nor filling
// the cache.
func (a *Analyzer) AnalyzeUncached(req AnalysisRequest) *PdaMatch {
	return a.matcher.Match(req)
}

// Library returns the pattern library the analyzer searches.
func (a *Analyzer) Library() *pattern.Library {
	return a.matcher.Library()
}

// Matcher returns the underlying matcher.
func (a *Analyzer) Matcher() *Matcher {
	return a.matcher
}

// Cache returns the result cache, or nil when caching is disabled.
func (a *Analyzer) Cache() *cache.Cache[*PdaMatch] {
	return a.cache
}
