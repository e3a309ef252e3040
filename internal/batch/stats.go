package batch

import (
	"slices"
	"time"
)

// Stats aggregates a batch.
type Stats struct {
	Total int `json:"total"`

	// Succeeded counts items whose target was derived.
	Succeeded int `json:"succeeded"`

	// NotMatched counts items analysed without a pattern match.
	NotMatched int `json:"not_matched"`

	// Failed counts items that returned an error.
	Failed int `json:"failed"`

	// SuccessRate is Succeeded / Total, or 0 for an empty batch.
	SuccessRate float64 `json:"success_rate"`

	PatternCounts map[string]int `json:"pattern_counts"`
	Latency       Latency        `json:"latency"`
}

// Latency summarises per-item elapsed time. Percentiles use the
// nearest-rank method.
type Latency struct {
	Min  time.Duration `json:"min_ns"`
	Mean time.Duration `json:"mean_ns"`
	P50  time.Duration `json:"p50_ns"`
	P90  time.Duration `json:"p90_ns"`
	P95  time.Duration `json:"p95_ns"`
	P99  time.Duration `json:"p99_ns"`
	Max  time.Duration `json:"max_ns"`
}

// ComputeStats aggregates items. Latency covers every item that produced
// a match, derived or not.
func ComputeStats(items []Item) Stats {
	s := Stats{
		Total:         len(items),
		PatternCounts: make(map[string]int),
	}

	var elapsed []time.Duration
	for _, it := range items {
		switch {
		case it.Err != nil:
			s.Failed++
			continue
		case it.Match == nil:
			continue
		case it.Match.Derived:
			s.Succeeded++
			s.PatternCounts[it.Match.Pattern]++
		default:
			s.NotMatched++
		}
		elapsed = append(elapsed, it.Elapsed)
	}

	if s.Total > 0 {
		s.SuccessRate = float64(s.Succeeded) / float64(s.Total)
	}
	s.Latency = computeLatency(elapsed)
	return s
}

func computeLatency(d []time.Duration) Latency {
	if len(d) == 0 {
		return Latency{}
	}
	slices.Sort(d)

	var sum time.Duration
	for _, v := range d {
		sum += v
	}

	return Latency{
		Min:  d[0],
		Mean: sum / time.Duration(len(d)),
		P50:  percentile(d, 50),
		P90:  percentile(d, 90),
		P95:  percentile(d, 95),
		P99:  percentile(d, 99),
		Max:  d[len(d)-1],
	}
}

// percentile returns the nearest-rank p-th percentile of sorted:
// the value at rank ceil(p/100 * n).
func percentile(sorted []time.Duration, p int) time.Duration {
	rank := (p*len(sorted) + 99) / 100
	rank = max(rank, 1)
	return sorted[min(rank, len(sorted))-1]
}
