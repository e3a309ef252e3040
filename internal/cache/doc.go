// Package cache memoizes analysis results.
//
// Entries are keyed by (address, program id, context digest), bounded by
// an LRU of fixed entry count and expired after a TTL. Concurrent misses
// on one key are collapsed into a single computation with
// golang.org/x/sync/singleflight.
package cache
