// Package cache memoizes evaluation results by content digest.
//
// A Cache maps the digest of an evaluation key to the value it produced.
// Because evaluation is referentially transparent, a stored value is valid
// for as long as its digest can be looked up; there is no invalidation,
// only optional eviction under a capacity bound.
package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/singleflight"

	"github.com/chazu/covariant/hash"
)

var log = commonlog.GetLogger("covariant.cache")

// ---------------------------------------------------------------------------
// Cache: digest-keyed result store
// ---------------------------------------------------------------------------

// Cache stores values of type V keyed by digest. It is safe for concurrent
// use. A Cache belongs to one session; there is no process-wide instance.
type Cache[V any] struct {
	name     string
	capacity int // 0 means unbounded

	mu    sync.Mutex
	items map[hash.Digest]*list.Element
	order *list.List // Front = most recent, Back = least recent

	group singleflight.Group

	tier  Tier
	codec Codec[V]

	hits         atomic.Int64
	misses       atomic.Int64
	computations atomic.Int64
	evictions    atomic.Int64
	tierHits     atomic.Int64
}

type entry[V any] struct {
	key   hash.Digest
	value V
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits         int64
	Misses       int64
	Computations int64
	Evictions    int64
	TierHits     int64
	Len          int
}

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithCapacity bounds the number of in-memory entries; the least recently
// used entry is evicted when the bound is reached. Zero means unbounded.
func WithCapacity[V any](n int) Option[V] {
	return func(c *Cache[V]) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithTier adds a persistent second level. Values the codec cannot encode
// live in memory only.
func WithTier[V any](t Tier, codec Codec[V]) Option[V] {
	return func(c *Cache[V]) {
		c.tier = t
		c.codec = codec
	}
}

// WithName labels the cache in logs and metrics.
func WithName[V any](name string) Option[V] {
	return func(c *Cache[V]) {
		c.name = name
	}
}

// New creates an empty cache.
func New[V any](opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		name:  "default",
		items: make(map[hash.Digest]*list.Element),
		order: list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrInsert returns the value stored for key. On a miss it runs compute,
// stores the result and returns it. Concurrent callers asking for the same
// key share one computation.
//
// Nothing is stored when compute fails or ctx is cancelled before compute
// returns: an entry is either the complete result or absent.
func (c *Cache[V]) GetOrInsert(ctx context.Context, key hash.Digest, compute func(context.Context) (V, error)) (V, error) {
	if v, ok := c.lookup(key); ok {
		c.hits.Add(1)
		recordHit(ctx, c.name)
		return v, nil
	}
	c.misses.Add(1)
	recordMiss(ctx, c.name)

	res, err, _ := c.group.Do(string(key[:]), func() (any, error) {
		// Another caller may have committed while we waited for the group.
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		if v, ok := c.loadTier(ctx, key); ok {
			c.insert(ctx, key, v)
			return v, nil
		}

		c.computations.Add(1)
		recordComputation(ctx, c.name)
		v, err := compute(ctx)
		if err != nil {
			return v, err
		}
		if err := ctx.Err(); err != nil {
			return v, err
		}
		c.insert(ctx, key, v)
		c.storeTier(ctx, key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	v, _ := res.(V)
	return v, nil
}

// Insert stores v under key, replacing any existing value. Inserting the
// same key twice is harmless since equal keys always carry equal values.
func (c *Cache[V]) Insert(key hash.Digest, v V) {
	c.insert(context.Background(), key, v)
}

// Lookup returns the value stored for key without computing anything.
func (c *Cache[V]) Lookup(key hash.Digest) (V, bool) {
	return c.lookup(key)
}

// Contains reports whether key has an in-memory entry. It does not touch
// recency.
func (c *Cache[V]) Contains(key hash.Digest) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Stored reports whether key is held in memory or in the persistent tier,
// that is, whether GetOrInsert would return it without computing.
func (c *Cache[V]) Stored(ctx context.Context, key hash.Digest) bool {
	if c.Contains(key) {
		return true
	}
	if c.tier == nil {
		return false
	}
	_, ok, err := c.tier.Get(ctx, key)
	if err != nil {
		log.Warningf("cache %s: tier read %s: %s", c.name, key.Short(), err)
		return false
	}
	return ok
}

// Len returns the number of in-memory entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns the current counters.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Computations: c.computations.Load(),
		Evictions:    c.evictions.Load(),
		TierHits:     c.tierHits.Load(),
		Len:          c.Len(),
	}
}

// Purge drops every in-memory entry. The persistent tier is untouched.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[hash.Digest]*list.Element)
	c.order.Init()
}

func (c *Cache[V]) lookup(key hash.Digest) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*entry[V]).value, true
	}
	var zero V
	return zero, false
}

func (c *Cache[V]) insert(ctx context.Context, key hash.Digest, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*entry[V]).value = v
		return
	}
	if c.capacity > 0 && c.order.Len() >= c.capacity {
		c.evictOldest(ctx)
	}
	c.items[key] = c.order.PushFront(&entry[V]{key: key, value: v})
}

// evictOldest removes the least recently used entry. Caller holds c.mu.
func (c *Cache[V]) evictOldest(ctx context.Context) {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	e := c.order.Remove(elem).(*entry[V])
	delete(c.items, e.key)
	c.evictions.Add(1)
	recordEviction(ctx, c.name)
	log.Debugf("cache %s: evicted %s", c.name, e.key.Short())
}

func (c *Cache[V]) loadTier(ctx context.Context, key hash.Digest) (V, bool) {
	var zero V
	if c.tier == nil {
		return zero, false
	}
	data, ok, err := c.tier.Get(ctx, key)
	if err != nil {
		log.Warningf("cache %s: tier read %s: %s", c.name, key.Short(), err)
		return zero, false
	}
	if !ok {
		return zero, false
	}
	v, err := c.codec.Decode(data)
	if err != nil {
		log.Warningf("cache %s: decode %s: %s", c.name, key.Short(), err)
		return zero, false
	}
	c.tierHits.Add(1)
	return v, true
}

func (c *Cache[V]) storeTier(ctx context.Context, key hash.Digest, v V) {
	if c.tier == nil {
		return
	}
	data, ok, err := c.codec.Encode(v)
	if err != nil {
		log.Warningf("cache %s: encode %s: %s", c.name, key.Short(), err)
		return
	}
	if !ok {
		return
	}
	if err := c.tier.Put(ctx, key, data); err != nil {
		log.Warningf("cache %s: tier write %s: %s", c.name, key.Short(), err)
	}
}

// String describes the cache for logs.
func (c *Cache[V]) String() string {
	if c.capacity == 0 {
		return fmt.Sprintf("cache %s (%d entries)", c.name, c.Len())
	}
	return fmt.Sprintf("cache %s (%d/%d entries)", c.name, c.Len(), c.capacity)
}
