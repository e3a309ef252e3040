// Package metrics wires pdatrace's Prometheus instrumentation.
//
// Everything is registered on a private registry rather than the global
// default, so tests and multiple servers in one process do not collide.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/pdatrace/internal/cache"
	"github.com/roach88/pdatrace/internal/engine"
)

const namespace = "pdatrace"

// outcome label values for analyses.
const (
	OutcomeDerived    = "derived"
	OutcomeNotMatched = "not_matched"
	OutcomeExhausted  = "exhausted"
	OutcomeInvalid    = "invalid"
)

// Metrics holds the registry and the instruments updated by the API and
// CLI.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	analyses        *prometheus.CounterVec
	searchDuration  prometheus.Histogram
	candidates      prometheus.Histogram
}

// New creates a registry with Go runtime and process collectors plus the
// pdatrace instruments.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status code.",
			},
			[]string{"route", "code"}),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"}),
		analyses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyses_total",
				Help:      "Analyses by outcome and matched pattern.",
			},
			[]string{"outcome", "pattern"}),
		searchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "Time spent searching the pattern library.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
			}),
		candidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_candidates",
				Help:      "Candidates tried per search.",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
			}),
	}

	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.analyses,
		m.searchDuration,
		m.candidates,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterCache exports the counters of a result cache.
func (m *Metrics) RegisterCache(src cache.StatsSource) error {
	return m.registry.Register(cache.NewCollector(src))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route string, code int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveAnalysis records the outcome of one analysis. A nil match counts
// as invalid input.
func (m *Metrics) ObserveAnalysis(match *engine.PdaMatch) {
	if match == nil {
		m.analyses.WithLabelValues(OutcomeInvalid, "").Inc()
		return
	}

	switch {
	case match.Derived:
		m.analyses.WithLabelValues(OutcomeDerived, match.Pattern).Inc()
	case match.Exhausted:
		m.analyses.WithLabelValues(OutcomeExhausted, "").Inc()
	default:
		m.analyses.WithLabelValues(OutcomeNotMatched, "").Inc()
	}
	m.searchDuration.Observe(match.Duration.Seconds())
	m.candidates.Observe(float64(match.Candidates))
}
