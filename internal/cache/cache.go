// Package cache implements the shared, TTL-indexed record cache. A key
// (owner, qtype) maps to an unordered multiset of (record, absolute
// expiry) pairs: duplicate records are never deduplicated and expire
// independently. The concurrency pattern -- an RWMutex-guarded map
// plus a background sweep ticker -- follows the teacher's
// cache/query_cache.go and cache/ns_cache.go.
package cache

import (
	"sync"
	"time"

	"github.com/miekg/dns"
)

// Clock lets tests substitute a fake time source; production code
// leaves it at time.Now.
type Clock func() time.Time

type record struct {
	rr     dns.RR
	expiry time.Time
}

type bucket struct {
	mu      sync.Mutex
	records []record
}

// Cache is the shared RR cache. The zero value is not usable; use New.
type Cache struct {
	mu sync.RWMutex
	m  map[uint64]*bucket

	now Clock

	stop chan struct{}
}

// New returns a Cache with a background sweep goroutine running at the
// given interval. Passing a zero interval disables the background
// sweep; callers are still protected because Get and Sweep always
// drop expired entries on access.
func New(sweepInterval time.Duration) *Cache {
	c := &Cache{
		m:    make(map[uint64]*bucket),
		now:  time.Now,
		stop: make(chan struct{}),
	}

	if sweepInterval > 0 {
		go c.run(sweepInterval)
	}

	return c
}

func (c *Cache) run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.stop:
			return
		}
	}
}

// Close stops the background sweep goroutine.
func (c *Cache) Close() {
	close(c.stop)
}

// Put inserts a copy of rr under key (owner, qtype), expiring at
// now+ttl. No deduplication: inserting the same record twice keeps two
// independent entries.
func (c *Cache) Put(rr dns.RR) {
	hdr := rr.Header()
	key := hashKey(hdr.Name, hdr.Rrtype)

	b := c.bucketFor(key)

	b.mu.Lock()
	b.records = append(b.records, record{
		rr:     dns.Copy(rr),
		expiry: c.now().Add(time.Duration(hdr.Ttl) * time.Second),
	})
	b.mu.Unlock()
}

// Get returns copies of every non-expired record stored under
// (owner, qtype), each with its TTL rewritten to the remaining time
// until expiry, rounded up to whole seconds (clamped to zero). Get
// implicitly sweeps the queried key.
func (c *Cache) Get(owner string, qtype uint16) []dns.RR {
	key := hashKey(owner, qtype)

	c.mu.RLock()
	b, ok := c.m[key]
	c.mu.RUnlock()

	if !ok {
		return nil
	}

	now := c.now()

	b.mu.Lock()
	live := b.records[:0]
	var out []dns.RR
	for _, rec := range b.records {
		if rec.expiry.After(now) {
			live = append(live, rec)

			rr := dns.Copy(rec.rr)
			remaining := rec.expiry.Sub(now)
			if remaining < 0 {
				remaining = 0
			}
			rr.Header().Ttl = uint32((remaining + time.Second - 1) / time.Second)
			out = append(out, rr)
		}
	}
	b.records = live
	empty := len(b.records) == 0
	b.mu.Unlock()

	if empty {
		c.removeIfEmpty(key)
	}

	return out
}

// Sweep removes every expired entry from the cache; buckets left
// empty are deleted. Sweep is idempotent.
func (c *Cache) Sweep() {
	now := c.now()

	c.mu.RLock()
	keys := make([]uint64, 0, len(c.m))
	for k := range c.m {
		keys = append(keys, k)
	}
	c.mu.RUnlock()

	for _, key := range keys {
		c.mu.RLock()
		b, ok := c.m[key]
		c.mu.RUnlock()
		if !ok {
			continue
		}

		b.mu.Lock()
		live := b.records[:0]
		for _, rec := range b.records {
			if rec.expiry.After(now) {
				live = append(live, rec)
			}
		}
		b.records = live
		empty := len(b.records) == 0
		b.mu.Unlock()

		if empty {
			c.removeIfEmpty(key)
		}
	}
}

func (c *Cache) bucketFor(key uint64) *bucket {
	c.mu.RLock()
	b, ok := c.m[key]
	c.mu.RUnlock()
	if ok {
		return b
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.m[key]; ok {
		return b
	}
	b = &bucket{}
	c.m[key] = b
	return b
}

func (c *Cache) removeIfEmpty(key uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.m[key]; ok && len(b.records) == 0 {
		delete(c.m, key)
	}
}
