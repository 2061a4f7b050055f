package keyval

import (
	"bytes"
	"sync"

	"github.com/dreamware/pvfsmeta/internal/errs"
)

// Start and End bracket the position range of spec.md §4.E.3.
const (
	Start uint64 = 0
	End   uint64 = ^uint64(0)
)

func sessionOf(pos uint64) uint32 { return uint32(pos >> 32) }
func indexOf(pos uint64) uint32   { return uint32(pos) }
func makePosition(session, index uint32) uint64 {
	return uint64(session)<<32 | uint64(index)
}

// pcacheKey identifies one recorded iteration checkpoint, per spec.md
// §4.E.3 step 3: "(OID, session, index)".
type pcacheKey struct {
	oid     OID
	typ     EntryType
	session uint32
	index   uint32
}

// pcache is the bounded position cache backing resumable iteration. Per
// spec.md §9's open question it implements "hard cap, reject new on
// overflow" rather than LRU eviction, matching the legacy behavior.
type pcache struct {
	mu      sync.Mutex
	limit   int
	entries map[pcacheKey][]byte
}

func newPcache(limit int) *pcache {
	return &pcache{limit: limit, entries: make(map[pcacheKey][]byte)}
}

func (p *pcache) put(k pcacheKey, lastKey []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.entries[k]; !exists && len(p.entries) >= p.limit {
		return
	}
	p.entries[k] = append([]byte(nil), lastKey...)
}

func (p *pcache) get(k pcacheKey) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.entries[k]
	return v, ok
}

// Clear discards every recorded checkpoint, simulating a server restart
// for tests exercising the skip-to-position fallback (spec.md §8.12, S4).
func (s *Store) Clear() { s.pc.entries = make(map[pcacheKey][]byte) }

// sessions assigns a nonce to the first Start call for a given (oid,typ)
// stream, per spec.md §9 "Readdir session IDs".
type sessionTable struct {
	mu   sync.Mutex
	next uint32
	live map[[17]byte]uint32
}

func newSessionTable() *sessionTable {
	return &sessionTable{next: 1, live: make(map[[17]byte]uint32)}
}

func (t *sessionTable) sessionFor(oid OID, typ EntryType) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var k [17]byte
	copy(k[:16], oid[:])
	k[16] = byte(typ)
	if s, ok := t.live[k]; ok {
		return s
	}
	s := t.next
	t.next++
	t.live[k] = s
	return s
}

var globalSessions = newSessionTable()

// prefixLanded reports whether key still belongs to the (oid,typ) range.
func prefixLanded(oid OID, typ EntryType, key []byte) bool {
	prefix := physicalKey(oid, typ, nil)
	return len(key) >= len(prefix) && bytes.Equal(key[:len(prefix)], prefix)
}

// seekFirst positions cur at the first user entry of (oid,typ), skipping
// the handle-info count record per spec.md §9's "counter record empty-key
// collision".
func (s *Store) seekFirst(oid OID, typ EntryType) (key, val []byte, ok bool) {
	c := s.engine.NewCursor()
	pfx := physicalKey(oid, typ, nil)
	k, v, landed := c.SetRange(pfx)
	if !landed || !prefixLanded(oid, typ, k) {
		return nil, nil, false
	}
	if bytes.Equal(k, pfx) {
		k, v, landed = c.Next()
		if !landed || !prefixLanded(oid, typ, k) {
			return nil, nil, false
		}
	}
	return k, v, true
}

// iterateFrom scans entries of (oid,typ) starting strictly after afterKey
// (or from the beginning if afterKey is nil), collecting up to count
// entries and reporting whether more remain.
func (s *Store) iterateFrom(oid OID, typ EntryType, afterKey []byte, count int) (keys, vals [][]byte, more bool) {
	var k, v []byte
	var ok bool
	c := s.engine.NewCursor()

	if afterKey == nil {
		k, v, ok = s.seekFirst(oid, typ)
	} else {
		if _, gotVal := c.Set(afterKey); gotVal {
			k, v, ok = c.Next()
		} else {
			k, v, ok = c.SetRange(afterKey)
		}
		if ok && !prefixLanded(oid, typ, k) {
			ok = false
		}
	}

	for ok && len(keys) < count {
		keys = append(keys, k)
		vals = append(vals, v)
		k, v, ok = c.Next()
		if ok && !prefixLanded(oid, typ, k) {
			ok = false
		}
	}
	return keys, vals, ok
}

// iterateSkip replays from the beginning, discarding skip entries, for the
// pcache-miss fallback of spec.md §4.E.3 step 4.
func (s *Store) iterateSkip(oid OID, typ EntryType, skip, count int) (keys, vals [][]byte, more bool) {
	k, v, ok := s.seekFirst(oid, typ)
	c := s.engine.NewCursor()
	if ok {
		c.Set(k)
	}
	for i := 0; i < skip && ok; i++ {
		k, v, ok = c.Next()
		if ok && !prefixLanded(oid, typ, k) {
			ok = false
		}
	}
	for ok && len(keys) < count {
		keys = append(keys, k)
		vals = append(vals, v)
		k, v, ok = c.Next()
		if ok && !prefixLanded(oid, typ, k) {
			ok = false
		}
	}
	return keys, vals, ok
}

// Iterate implements spec.md 4.E.1/4.E.3 `iterate`: returns up to count
// (key,value) pairs starting at position, plus the position to resume
// from, and whether entries remain. Keys are the caller's user keys,
// without the (oid, type) prefix of the physical key.
func (s *Store) Iterate(oid OID, typ EntryType, position uint64, count int) (keys, vals [][]byte, next uint64, hasMore bool, err error) {
	if position == Start {
		session := globalSessions.sessionFor(oid, typ)
		keys, vals, hasMore = s.iterateFrom(oid, typ, nil, count)
		idx := uint32(len(keys))
		if len(keys) > 0 {
			s.pc.put(pcacheKey{oid, typ, session, idx}, keys[len(keys)-1])
		}
		return userKeys(keys), vals, makePosition(session, idx), hasMore, nil
	}

	session := sessionOf(position)
	priorIdx := indexOf(position)
	if lastKey, ok := s.pc.get(pcacheKey{oid, typ, session, priorIdx}); ok {
		keys, vals, hasMore = s.iterateFrom(oid, typ, lastKey, count)
	} else {
		keys, vals, hasMore = s.iterateSkip(oid, typ, int(priorIdx), count)
	}
	idx := priorIdx + uint32(len(keys))
	if len(keys) > 0 {
		s.pc.put(pcacheKey{oid, typ, session, idx}, keys[len(keys)-1])
	}
	return userKeys(keys), vals, makePosition(session, idx), hasMore, nil
}

// userKeys strips the 17-byte (oid, type) prefix from physical keys.
func userKeys(keys [][]byte) [][]byte {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = k[17:]
	}
	return out
}

// IterateKeys implements spec.md 4.E.1 `iterate_keys`: identical to
// Iterate but returns keys only.
func (s *Store) IterateKeys(oid OID, typ EntryType, position uint64, count int) (keys [][]byte, next uint64, hasMore bool, err error) {
	keys, _, next, hasMore, err = s.Iterate(oid, typ, position, count)
	return keys, next, hasMore, err
}

// IterateRemove implements the IterateRemove flag of spec.md §4.E.2: each
// yielded key is atomically removed and, if hc is set, its handle count is
// decremented.
func (s *Store) IterateRemove(oid OID, typ EntryType, position uint64, count int, hc bool) (keys [][]byte, next uint64, hasMore bool, err error) {
	keys, _, next, hasMore, err = s.Iterate(oid, typ, position, count)
	if err != nil {
		return nil, 0, false, err
	}
	flags := Flags(0)
	if hc {
		flags |= HandleCount
	}
	for _, k := range keys {
		if rmErr := s.Remove(oid, typ, k, flags); rmErr != nil && errs.Of(rmErr) != errs.NotFound {
			return keys, next, hasMore, rmErr
		}
	}
	return keys, next, hasMore, nil
}
