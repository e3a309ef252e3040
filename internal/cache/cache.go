package cache

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lightninglabs/neutrino/cache"
	"github.com/lightninglabs/neutrino/cache/lru"
	"github.com/lightningnetwork/lnd/clock"
	"golang.org/x/sync/singleflight"

	"github.com/roach88/pdatrace/internal/ir"
)

const (
	// DefaultCapacity is the default maximum number of cached entries.
	DefaultCapacity = 10_000

	// DefaultTTL is the default entry lifetime.
	DefaultTTL = time.Hour
)

// Key identifies one analysis: the target, its program, and the digest of
// the caller's context bindings.
type Key struct {
	Address   ir.PublicKey
	ProgramID ir.PublicKey
	Context   [32]byte
}

// NewKey builds a key from its parts, digesting ctx with ir.ContextDigest.
func NewKey(address, programID ir.PublicKey, ctx map[string]ir.PublicKey) Key {
	return Key{Address: address, ProgramID: programID, Context: ir.ContextDigest(ctx)}
}

// String renders a short form of the key for logs. It is not unique.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%x", k.ProgramID, k.Address, k.Context[:8])
}

// flightKey is the single-flight group key: all 96 key bytes, so distinct
// keys never share a computation.
func (k Key) flightKey() string {
	b := make([]byte, 0, 3*32)
	b = append(b, k.Address[:]...)
	b = append(b, k.ProgramID[:]...)
	b = append(b, k.Context[:]...)
	return string(b)
}

// Config sizes the cache.
type Config struct {
	// Capacity is the maximum number of entries. Values below 1 use
	// DefaultCapacity.
	Capacity int

	// TTL is how long an entry stays fresh after it was computed. Values
	// below or equal to zero use DefaultTTL.
	TTL time.Duration
}

// entry is one cached value and the time it was computed.
type entry[V any] struct {
	value   V
	created time.Time
}

// Size implements cache.Value. Every entry weighs one, so the LRU capacity
// is an entry count.
func (e *entry[V]) Size() (uint64, error) {
	return 1, nil
}

// Cache is a bounded LRU of computed results with TTL expiry and
// single-flight computation.
//
// A fresh hit returns the stored value without recomputing. An expired
// entry is dropped and treated as a miss. Concurrent misses on the same
// key share one computation and all receive the same value. Errors from
// the compute function are returned to every waiter and never stored.
//
// Thread-safety: Cache is safe for concurrent use. The LRU locks
// internally and the counters are atomics.
type Cache[V any] struct {
	lru      *lru.Cache[Key, *entry[V]]
	group    singleflight.Group
	clock    clock.Clock
	capacity int
	ttl      time.Duration

	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64
	coalesced   atomic.Uint64
	inFlight    atomic.Int64
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	clock clock.Clock
}

// WithClock sets the clock used for TTL checks. Tests pass a
// clock.TestClock to move time by hand.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// New creates a cache sized by cfg.
func New[V any](cfg Config, opts ...Option) *Cache[V] {
	o := options{clock: clock.NewDefaultClock()}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.Capacity < 1 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	return &Cache[V]{
		lru:      lru.NewCache[Key, *entry[V]](uint64(cfg.Capacity)),
		clock:    o.clock,
		capacity: cfg.Capacity,
		ttl:      cfg.TTL,
	}
}

// Get returns the cached value for key, or computes, stores and returns
// it on a miss.
func (c *Cache[V]) Get(key Key, compute func() (V, error)) (V, error) {
	if e, fresh := c.lookup(key); fresh {
		c.hits.Add(1)
		return e.value, nil
	}
	c.misses.Add(1)

	ran := false
	res, err, shared := c.group.Do(key.flightKey(), func() (any, error) {
		ran = true
		c.inFlight.Add(1)
		defer c.inFlight.Add(-1)

		// A flight that finished between our lookup and Do has already
		// stored the value. Only one flight per key runs at a time, so an
		// expired entry seen here is still the one to drop.
		e, fresh := c.lookup(key)
		if fresh {
			return e.value, nil
		}
		if e != nil {
			c.lru.Delete(key)
			c.expirations.Add(1)
		}

		v, err := compute()
		if err != nil {
			return v, err
		}
		c.store(key, v)
		return v, nil
	})
	if shared && !ran {
		c.coalesced.Add(1)
	}
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Peek returns the fresh cached value for key without computing and
// without touching the hit or miss counters. Expired entries are left for
// the next Get to drop.
func (c *Cache[V]) Peek(key Key) (V, bool) {
	if e, fresh := c.lookup(key); fresh {
		return e.value, true
	}
	var zero V
	return zero, false
}

// Delete drops the entry for key. It reports whether one was present.
func (c *Cache[V]) Delete(key Key) bool {
	_, err := c.lru.Get(key)
	if err != nil {
		return false
	}
	c.lru.Delete(key)
	return true
}

// Purge drops every entry and returns how many were removed.
func (c *Cache[V]) Purge() int {
	var keys []Key
	c.lru.Range(func(k Key, _ *entry[V]) bool {
		keys = append(keys, k)
		return true
	})
	for _, k := range keys {
		c.lru.Delete(k)
	}
	return len(keys)
}

// Len returns the number of stored entries, fresh or not yet swept.
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Size:        c.lru.Len(),
		Capacity:    c.capacity,
		TTL:         c.ttl,
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
		Coalesced:   c.coalesced.Load(),
		InFlight:    c.inFlight.Load(),
	}
}

// lookup returns the stored entry for key, or nil, and whether it is
// still fresh. It never removes anything.
func (c *Cache[V]) lookup(key Key) (*entry[V], bool) {
	e, err := c.lru.Get(key)
	switch {
	case errors.Is(err, cache.ErrElementNotFound):
		return nil, false
	case err != nil:
		return nil, false
	}
	return e, c.clock.Now().Sub(e.created) < c.ttl
}

func (c *Cache[V]) store(key Key, v V) {
	evicted, err := c.lru.Put(key, &entry[V]{value: v, created: c.clock.Now()})
	if err != nil {
		// Only possible if an entry outweighs the whole cache.
		return
	}
	if evicted {
		c.evictions.Add(1)
	}
}
