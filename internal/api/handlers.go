package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/roach88/pdatrace/internal/batch"
	"github.com/roach88/pdatrace/internal/cache"
	"github.com/roach88/pdatrace/internal/engine"
	"github.com/roach88/pdatrace/internal/ir"
	"github.com/roach88/pdatrace/internal/pattern"
	"github.com/roach88/pdatrace/internal/store"
)

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Store   bool   `json:"store"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Version: s.version}
	if s.recorder != nil {
		if err := s.recorder.Store().Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			s.logger.Warn("store ping failed", "error", err)
		} else {
			resp.Store = true
		}
	}

	body, err := marshal(resp)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, CodeInternal, err.Error(), nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// handleAnalyze runs one analysis. ?refresh=true drops any cached result
// first. With caching on, X-Cache reports whether the match was served
// from the cache.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var refresh bool
	if v := r.URL.Query().Get("refresh"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeAnalysisError(w, r, engine.NewInvalidInput("refresh", err))
			return
		}
		refresh = b
	}

	var in engine.RequestInput
	if err := decodeBody(w, r, s.maxBody, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidInput, err.Error(), nil)
		return
	}

	m, hit, err := s.analyze(r.Context(), in, refresh)
	if err != nil {
		s.writeAnalysisError(w, r, err)
		return
	}
	if s.analyzer.Cache() != nil {
		if hit {
			w.Header().Set("X-Cache", "hit")
		} else {
			w.Header().Set("X-Cache", "miss")
		}
	}
	writeOK(w, r, m)
}

// BatchRequest is the body of the batch endpoint.
type BatchRequest struct {
	Requests []engine.RequestInput `json:"requests"`
}

// BatchItem is one result of a batch. Exactly one of Match and Error is
// set.
type BatchItem struct {
	Index   int                 `json:"index"`
	Input   engine.RequestInput `json:"input"`
	Match   *engine.PdaMatch    `json:"match,omitempty"`
	Error   *Error              `json:"error,omitempty"`
	Elapsed int64               `json:"elapsed_ns"`
}

// BatchResponse is the data of a batch response.
type BatchResponse struct {
	Results []BatchItem `json:"results"`
	Stats   batch.Stats `json:"stats"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decodeBody(w, r, s.maxBody, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidInput, err.Error(), nil)
		return
	}

	res, err := s.batch.Run(r.Context(), req.Requests)
	switch {
	case errors.Is(err, batch.ErrTooManyItems):
		writeError(w, r, http.StatusBadRequest, CodeBatchTooLarge, err.Error(), nil)
		return
	case err != nil:
		writeError(w, r, http.StatusInternalServerError, CodeInternal, err.Error(), nil)
		return
	}

	out := BatchResponse{Results: make([]BatchItem, len(res.Items)), Stats: res.Stats}
	for i, it := range res.Items {
		out.Results[i] = BatchItem{
			Index:   it.Index,
			Input:   it.Input,
			Match:   it.Match,
			Elapsed: int64(it.Elapsed),
		}
		if it.Err != nil {
			out.Results[i].Error = errorBody(it.Err)
		}
	}
	writeOK(w, r, out)
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	lib := s.analyzer.Library()
	out := make([]pattern.Info, 0, lib.Len())
	for p := range lib.All() {
		out = append(out, p.Info())
	}
	writeOK(w, r, out)
}

// CacheInfo is the data of the cache endpoint.
type CacheInfo struct {
	Enabled bool         `json:"enabled"`
	Stats   *cache.Stats `json:"stats,omitempty"`
	HitRate float64      `json:"hit_rate"`
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	c := s.analyzer.Cache()
	if c == nil {
		writeOK(w, r, CacheInfo{})
		return
	}
	st := c.Stats()
	writeOK(w, r, CacheInfo{Enabled: true, Stats: &st, HitRate: st.HitRate()})
}

func (s *Server) handleCachePurge(w http.ResponseWriter, r *http.Request) {
	purged := 0
	if c := s.analyzer.Cache(); c != nil {
		purged = c.Purge()
	}
	s.logger.Info("cache purged", "entries", purged)
	writeOK(w, r, map[string]int{"purged": purged})
}

func (s *Server) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	st, ok := s.requireStore(w, r)
	if !ok {
		return
	}

	f, err := parseFilter(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidInput, err.Error(), nil)
		return
	}

	rows, err := st.ListAnalyses(r.Context(), f)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, CodeInternal, err.Error(), nil)
		return
	}
	writeOK(w, r, rows)
}

// handleAnalysis returns the latest stored analysis of one address.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	st, ok := s.requireStore(w, r)
	if !ok {
		return
	}

	address, err := ir.ParsePublicKey(r.PathValue("address"))
	if err != nil {
		s.writeAnalysisError(w, r, engine.NewInvalidInput("address", err))
		return
	}
	program, err := ir.ParsePublicKey(r.URL.Query().Get("program_id"))
	if err != nil {
		s.writeAnalysisError(w, r, engine.NewInvalidInput("program_id", err))
		return
	}

	a, found, err := st.FindAnalysis(r.Context(), address, program)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, CodeInternal, err.Error(), nil)
		return
	}
	if !found {
		writeError(w, r, http.StatusNotFound, CodeNotFound, "no analysis recorded for "+address.String(), nil)
		return
	}
	writeOK(w, r, a)
}

func (s *Server) handlePrograms(w http.ResponseWriter, r *http.Request) {
	st, ok := s.requireStore(w, r)
	if !ok {
		return
	}

	programs, err := st.ListPrograms(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, CodeInternal, err.Error(), nil)
		return
	}
	writeOK(w, r, programs)
}

func (s *Server) handleProgramPatterns(w http.ResponseWriter, r *http.Request) {
	st, ok := s.requireStore(w, r)
	if !ok {
		return
	}

	program, err := ir.ParsePublicKey(r.PathValue("program_id"))
	if err != nil {
		s.writeAnalysisError(w, r, engine.NewInvalidInput("program_id", err))
		return
	}

	dist, err := st.PatternDistribution(r.Context(), &program)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, CodeInternal, err.Error(), nil)
		return
	}
	writeOK(w, r, dist)
}

// StatsResponse is the data of the stats endpoint.
type StatsResponse struct {
	store.Stats
	SuccessRate float64 `json:"success_rate"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, ok := s.requireStore(w, r)
	if !ok {
		return
	}

	stats, err := st.Stats(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, CodeInternal, err.Error(), nil)
		return
	}
	writeOK(w, r, StatsResponse{Stats: stats, SuccessRate: stats.SuccessRate()})
}

func (s *Server) requireStore(w http.ResponseWriter, r *http.Request) (*store.Store, bool) {
	if s.recorder == nil {
		writeError(w, r, http.StatusServiceUnavailable, CodeStoreDisabled, "no result store configured", nil)
		return nil, false
	}
	return s.recorder.Store(), true
}

// writeAnalysisError maps an analysis error to a status and code.
func (s *Server) writeAnalysisError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody(err)
	status := http.StatusInternalServerError
	if body.Code == CodeInvalidInput {
		status = http.StatusBadRequest
	} else {
		s.logger.Error("analysis failed", "error", err, "request_id", requestID(r.Context()))
	}
	writeError(w, r, status, body.Code, body.Message, body.Details)
}

// errorBody converts err to an envelope error.
func errorBody(err error) *Error {
	var re *engine.RuntimeError
	if errors.As(err, &re) && re.Code == engine.ErrCodeInvalidInput {
		details := map[string]string{"field": re.Field}
		for k, v := range re.Details {
			details[k] = v
		}
		return &Error{Code: CodeInvalidInput, Message: err.Error(), Details: details}
	}
	return &Error{Code: CodeInternal, Message: err.Error()}
}

func parseFilter(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	var f store.Filter

	if v := q.Get("program_id"); v != "" {
		program, err := ir.ParsePublicKey(v)
		if err != nil {
			return f, engine.NewInvalidInput("program_id", err)
		}
		f.ProgramID = &program
	}
	f.Pattern = q.Get("pattern")

	if v := q.Get("derived"); v != "" {
		derived, err := strconv.ParseBool(v)
		if err != nil {
			return f, engine.NewInvalidInput("derived", err)
		}
		f.DerivedOnly = derived
	}

	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, engine.NewInvalidInput(name, errors.New("must be a non-negative integer"))
		}
		*dst = n
	}
	return f, nil
}
