// Package attrcache implements SPEC_FULL.md component 4.F, the attribute
// cache: a bounded hashed cache keyed by object-ref holding core attributes
// plus a fixed whitelist of cached keyval entries, with random-victim
// eviction when full.
package attrcache

import (
	"math/rand"
	"sync"

	"github.com/dreamware/pvfsmeta/internal/hashchain"
)

// ObjectRef mirrors lockmgr's identifier shape: a filesystem id plus a
// 128-bit object handle, per spec.md §3.
type ObjectRef struct {
	FSID uint32
	OID  [16]byte
}

// Attrs is the cached core attribute block (ds_attrs in the legacy source),
// per spec.md §3 "Attr cache entry".
type Attrs struct {
	Size       int64
	BlockCount int64
}

// KeyvalPair is one whitelisted cached keyval entry: the name is fixed at
// cache construction, the value is optional (absent means "not cached",
// not "empty").
type KeyvalPair struct {
	Value   []byte
	Present bool
}

// DefaultWhitelist is the fixed set of cacheable keyval names. It reserves
// the four mirror-administration xattr keys named in spec.md §6 even
// though mirror administration itself is a CLI-collaborator concern
// (SPEC_FULL.md §3), so a server wiring that CLI up has cache slots ready.
var DefaultWhitelist = []string{
	"user.pvfs2.mirror.handles",
	"user.pvfs2.mirror.copies",
	"user.pvfs2.mirror.status",
	"user.pvfs2.mirror.mode",
}

type entry struct {
	ref        ObjectRef
	attrs      Attrs
	keyvals    map[string]KeyvalPair
	bucketHint int
}

// Cache is the bounded attribute cache of spec.md §4.F.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	whitelist  map[string]struct{}
	table      *hashchain.Table[ObjectRef, *entry]
	buckets    int
	rng        *rand.Rand
}

func hashRef(r ObjectRef) uint64 {
	h := uint64(r.FSID)
	for _, b := range r.OID {
		h = h*1099511628211 ^ uint64(b)
	}
	return h
}

func equalRef(a, b ObjectRef) bool { return a == b }

// New creates a cache bounded to maxEntries, caching the keyval names in
// whitelist (DefaultWhitelist if nil).
func New(maxEntries int, whitelist []string) *Cache {
	if whitelist == nil {
		whitelist = DefaultWhitelist
	}
	wl := make(map[string]struct{}, len(whitelist))
	for _, name := range whitelist {
		wl[name] = struct{}{}
	}
	buckets := maxEntries
	if buckets <= 0 {
		buckets = 16
	}
	return &Cache{
		maxEntries: maxEntries,
		whitelist:  wl,
		table:      hashchain.New[ObjectRef, *entry](buckets, hashRef, equalRef),
		buckets:    buckets,
		rng:        rand.New(rand.NewSource(1)),
	}
}

// Get returns the cached attributes and whitelisted keyval pairs for ref.
func (c *Cache) Get(ref ObjectRef) (Attrs, map[string]KeyvalPair, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.table.Search(ref)
	if !ok {
		return Attrs{}, nil, false
	}
	out := make(map[string]KeyvalPair, len(e.keyvals))
	for k, v := range e.keyvals {
		out[k] = v
	}
	return e.attrs, out, true
}

// Put inserts or updates ref's cached attributes. Per spec.md §4.F, cache
// updates must happen after the underlying store commit — callers are
// responsible for sequencing this call after a successful write.
func (c *Cache) Put(ref ObjectRef, attrs Attrs) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.table.Search(ref); ok {
		e.attrs = attrs
		return
	}
	c.evictIfFull()
	c.table.InsertAtHead(ref, &entry{ref: ref, attrs: attrs, keyvals: make(map[string]KeyvalPair)})
}

// PutKeyval updates one whitelisted keyval pair's cached value, if the name
// is on the whitelist; otherwise it is a silent no-op, matching the
// "cacheable names fixed at init" invariant.
func (c *Cache) PutKeyval(ref ObjectRef, name string, value []byte) {
	if _, ok := c.whitelist[name]; !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.table.Search(ref)
	if !ok {
		c.evictIfFull()
		e = &entry{ref: ref, keyvals: make(map[string]KeyvalPair)}
		c.table.InsertAtHead(ref, e)
	}
	e.keyvals[name] = KeyvalPair{Value: append([]byte(nil), value...), Present: true}
}

// Invalidate removes ref from the cache entirely.
func (c *Cache) Invalidate(ref ObjectRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table.SearchAndRemove(ref)
}

// Len reports the number of cached objects.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table.Len()
}

// evictIfFull implements spec.md §4.F's random-victim eviction: a
// uniformly random existing entry is chosen and removed. The legacy
// algorithm picks a random bucket index and scans forward to the first
// non-empty chain; hashchain.Table doesn't expose bucket internals, so
// this instead picks a random ordinal among live entries, which is the
// same "uniformly random victim" distribution. Callers must hold c.mu.
func (c *Cache) evictIfFull() {
	n := c.table.Len()
	if c.maxEntries <= 0 || n < c.maxEntries || n == 0 {
		return
	}
	target := c.rng.Intn(n)
	i := 0
	var victim ObjectRef
	c.table.ForEach(func(key ObjectRef, val *entry) (remove, cont bool) {
		if i == target {
			victim = key
			return false, false
		}
		i++
		return false, true
	})
	c.table.SearchAndRemove(victim)
}
