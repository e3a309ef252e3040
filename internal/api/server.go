package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"golang.org/x/time/rate"

	"github.com/roach88/pdatrace/internal/batch"
	"github.com/roach88/pdatrace/internal/engine"
	"github.com/roach88/pdatrace/internal/metrics"
)

const (
	// DefaultMaxBodyBytes caps request bodies.
	DefaultMaxBodyBytes = 4 << 20

	shutdownTimeout = 10 * time.Second
)

// Server serves the analysis API over HTTP.
//
// Thread-safety: Server is immutable after New. Handler and Serve may be
// used from any goroutine.
type Server struct {
	analyzer *engine.Analyzer
	batch    *batch.Orchestrator
	recorder *engine.Recorder
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
	ids      engine.IDGenerator
	clock    clock.Clock
	logger   *slog.Logger
	version  string
	maxBody  int64

	batchOpts []batch.Option
}

// Option configures a Server.
type Option func(*Server)

// WithRecorder persists every completed analysis and enables the history
// endpoints. Without it those endpoints answer 503.
func WithRecorder(r *engine.Recorder) Option {
	return func(s *Server) {
		s.recorder = r
	}
}

// WithMetrics sets the metrics registry. New creates one when omitted.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithRateLimit allows rps requests per second with the given burst.
// rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithIDGenerator sets the request id source.
func WithIDGenerator(g engine.IDGenerator) Option {
	return func(s *Server) {
		s.ids = g
	}
}

// WithClock sets the clock used to time requests.
func WithClock(c clock.Clock) Option {
	return func(s *Server) {
		s.clock = c
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithBatchOptions configures the batch endpoint's orchestrator.
func WithBatchOptions(opts ...batch.Option) Option {
	return func(s *Server) {
		s.batchOpts = append(s.batchOpts, opts...)
	}
}

// WithMaxBodyBytes caps request bodies at n bytes.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// New creates a Server around a.
func New(a *engine.Analyzer, opts ...Option) *Server {
	s := &Server{
		analyzer: a,
		ids:      engine.UUIDv7Generator{},
		clock:    clock.NewDefaultClock(),
		logger:   slog.Default(),
		version:  "dev",
		maxBody:  DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if c := a.Cache(); c != nil {
		if err := s.metrics.RegisterCache(c); err != nil {
			s.logger.Warn("cache metrics not registered", "error", err)
		}
	}

	batchAnalyze := func(ctx context.Context, in engine.RequestInput) (*engine.PdaMatch, error) {
		m, _, err := s.analyze(ctx, in, false)
		return m, err
	}
	s.batch = batch.New(analyzeFunc(batchAnalyze),
		append([]batch.Option{batch.WithLogger(s.logger)}, s.batchOpts...)...)
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.handle(mux, "GET /health", false, s.handleHealth)
	s.handle(mux, "POST /api/v1/analyze", true, s.handleAnalyze)
	s.handle(mux, "POST /api/v1/analyze/batch", true, s.handleBatch)
	s.handle(mux, "GET /api/v1/patterns", true, s.handlePatterns)
	s.handle(mux, "GET /api/v1/cache", true, s.handleCacheStats)
	s.handle(mux, "DELETE /api/v1/cache", true, s.handleCachePurge)
	s.handle(mux, "GET /api/v1/analyses", true, s.handleAnalyses)
	s.handle(mux, "GET /api/v1/analyses/{address}", true, s.handleAnalysis)
	s.handle(mux, "GET /api/v1/programs", true, s.handlePrograms)
	s.handle(mux, "GET /api/v1/programs/{program_id}/patterns", true, s.handleProgramPatterns)
	s.handle(mux, "GET /api/v1/stats", true, s.handleStats)
	mux.Handle("GET /metrics", s.metrics.Handler())

	return mux
}

func (s *Server) handle(mux *http.ServeMux, pattern string, limited bool, h http.HandlerFunc) {
	mux.Handle(pattern, s.instrument(pattern, limited, h))
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	s.logger.Info("server listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// analyze runs one request, records the outcome and updates metrics. It
// is the single path for both the analyze and batch endpoints.
func (s *Server) analyze(ctx context.Context, in engine.RequestInput, refresh bool) (*engine.PdaMatch, bool, error) {
	req, err := in.Parse()
	if err != nil {
		s.metrics.ObserveAnalysis(nil)
		return nil, false, err
	}

	var prev *engine.PdaMatch
	if refresh {
		s.analyzer.Forget(req)
	} else {
		prev, _ = s.analyzer.Cached(req)
	}

	m, err := s.analyzer.AnalyzeRequest(ctx, req)
	if err != nil {
		return nil, false, err
	}
	s.metrics.ObserveAnalysis(m)

	if s.recorder != nil {
		if _, err := s.recorder.Record(ctx, req, m); err != nil {
			// A failed write does not fail the analysis.
			s.logger.Warn("analysis not recorded", "address", req.Address, "error", err)
		}
	}
	return m, prev != nil && prev == m, nil
}

// analyzeFunc adapts a function to batch.Analyzer.
type analyzeFunc func(ctx context.Context, in engine.RequestInput) (*engine.PdaMatch, error)

func (f analyzeFunc) Analyze(ctx context.Context, in engine.RequestInput) (*engine.PdaMatch, error) {
	return f(ctx, in)
}
