package cache

import "github.com/prometheus/client_golang/prometheus"

// StatsSource is anything that reports cache Stats. Every Cache
// instantiation satisfies it.
type StatsSource interface {
	Stats() Stats
}

// collector exports cache counters to Prometheus. It reads a fresh
// snapshot on every scrape instead of mirroring each update into
// registered metrics.
type collector struct {
	src StatsSource

	sizeDesc        *prometheus.Desc
	capacityDesc    *prometheus.Desc
	hitsDesc        *prometheus.Desc
	missesDesc      *prometheus.Desc
	evictionsDesc   *prometheus.Desc
	expirationsDesc *prometheus.Desc
	coalescedDesc   *prometheus.Desc
	inFlightDesc    *prometheus.Desc
}

// NewCollector returns a prometheus.Collector for src.
func NewCollector(src StatsSource) prometheus.Collector {
	return &collector{
		src: src,
		sizeDesc: prometheus.NewDesc(
			"pdatrace_cache_entries",
			"Number of cached analyses.",
			nil,
			nil),
		capacityDesc: prometheus.NewDesc(
			"pdatrace_cache_capacity",
			"Maximum number of cached analyses.",
			nil,
			nil),
		hitsDesc: prometheus.NewDesc(
			"pdatrace_cache_hits_total",
			"Lookups answered from the cache.",
			nil,
			nil),
		missesDesc: prometheus.NewDesc(
			"pdatrace_cache_misses_total",
			"Lookups that had to compute.",
			nil,
			nil),
		evictionsDesc: prometheus.NewDesc(
			"pdatrace_cache_evictions_total",
			"Entries evicted to make room.",
			nil,
			nil),
		expirationsDesc: prometheus.NewDesc(
			"pdatrace_cache_expirations_total",
			"Entries dropped after their TTL.",
			nil,
			nil),
		coalescedDesc: prometheus.NewDesc(
			"pdatrace_cache_coalesced_total",
			"Misses that joined an in-flight computation.",
			nil,
			nil),
		inFlightDesc: prometheus.NewDesc(
			"pdatrace_cache_in_flight",
			"Computations currently running.",
			nil,
			nil),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sizeDesc
	ch <- c.capacityDesc
	ch <- c.hitsDesc
	ch <- c.missesDesc
	ch <- c.evictionsDesc
	ch <- c.expirationsDesc
	ch <- c.coalescedDesc
	ch <- c.inFlightDesc
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()

	ch <- prometheus.MustNewConstMetric(c.sizeDesc, prometheus.GaugeValue, float64(s.Size))
	ch <- prometheus.MustNewConstMetric(c.capacityDesc, prometheus.GaugeValue, float64(s.Capacity))
	ch <- prometheus.MustNewConstMetric(c.hitsDesc, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(c.missesDesc, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(c.evictionsDesc, prometheus.CounterValue, float64(s.Evictions))
	ch <- prometheus.MustNewConstMetric(c.expirationsDesc, prometheus.CounterValue, float64(s.Expirations))
	ch <- prometheus.MustNewConstMetric(c.coalescedDesc, prometheus.CounterValue, float64(s.Coalesced))
	ch <- prometheus.MustNewConstMetric(c.inFlightDesc, prometheus.GaugeValue, float64(s.InFlight))
}
