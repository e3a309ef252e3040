package cache

import "time"

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Size        int           `json:"size"`
	Capacity    int           `json:"capacity"`
	TTL         time.Duration `json:"ttl_ns"`
	Hits        uint64        `json:"hits"`
	Misses      uint64        `json:"misses"`
	Evictions   uint64        `json:"evictions"`
	Expirations uint64        `json:"expirations"`

	// Coalesced counts misses that waited on another caller's
	// computation instead of running their own.
	Coalesced uint64 `json:"coalesced"`

	// InFlight is the number of computations running right now.
	InFlight int64 `json:"in_flight"`
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
