// Package storage implements the embedded ordered key-value engine named as
// an external collaborator in spec.md §6: get/put/put_once/del/sync plus a
// cursor with first/next/set/set_range/current semantics. The keyval store
// (internal/keyval) builds its indexes on top of a Store; the SID cache
// (internal/sidcache) keeps its catalog in in-memory maps instead.
//
// Keys are raw bytes compared lexicographically, matching spec.md §6 ("key
// comparison is lexicographic over raw bytes"). The engine is backed by
// google/btree, an in-memory B-tree, standing in for the on-disk engine the
// legacy source calls Trove/DBPF — persistence is out of scope (spec.md §1
// non-goals exclude the exact on-disk byte layout).
package storage

import (
	"bytes"
	"sync"

	"github.com/google/btree"

	"github.com/dreamware/pvfsmeta/internal/errs"
)

const btreeDegree = 32

// item is the btree.Item implementation backing every Store.
type item struct {
	key, val []byte
}

func (a *item) Less(than btree.Item) bool {
	return bytes.Compare(a.key, than.(*item).key) < 0
}

// Store is an ordered key-value engine with a snapshot-free cursor
// protocol. All methods are safe for concurrent use; cursors are not —
// a Cursor must not be shared across goroutines, matching spec.md §5's
// "no user code holds a storage cursor across calls to the manager" note
// extended to cursor ownership in general.
type Store struct {
	mu   sync.RWMutex
	tree *btree.BTree
}

// New creates an empty Store.
func New() *Store {
	return &Store{tree: btree.New(btreeDegree)}
}

// Get returns the value stored at key, or a NotFound error.
func (s *Store) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it := s.tree.Get(&item{key: key})
	if it == nil {
		return nil, errs.New(errs.NotFound, "key not found")
	}
	v := it.(*item).val
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put inserts or overwrites key with value.
func (s *Store) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	s.tree.ReplaceOrInsert(&item{key: k, val: v})
	return nil
}

// PutOnce inserts key only if it does not already exist, returning Exists
// otherwise. This is the primitive behind keyval's NoOverwrite flag.
func (s *Store) PutOnce(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree.Has(&item{key: key}) {
		return errs.New(errs.Exists, "key already exists")
	}
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	s.tree.ReplaceOrInsert(&item{key: k, val: v})
	return nil
}

// Del removes key, reporting whether it was present. It is idempotent:
// deleting an absent key is not an error, matching the storage engine's
// role as a plain ordered map.
func (s *Store) Del(key []byte) (existed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.tree.Delete(&item{key: key})
	return removed != nil, nil
}

// Sync is a no-op for the in-memory engine; it exists so callers that set
// keyval's Sync flag have something to call, matching the collaborator
// contract of spec.md §6.
func (s *Store) Sync() error { return nil }

// Len returns the number of keys currently stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}

// Cursor is a single-threaded ordered iterator over a Store, implementing
// spec.md §9's contract: set_range seeks to the least key >= the probe, and
// next advances in key order.
type Cursor struct {
	s       *Store
	current *item
	valid   bool
}

// NewCursor creates a cursor positioned before the first key.
func (s *Store) NewCursor() *Cursor {
	return &Cursor{s: s}
}

// First positions the cursor at the smallest key in the store.
func (c *Cursor) First() (key, val []byte, ok bool) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	var found *item
	c.s.tree.Ascend(func(i btree.Item) bool {
		found = i.(*item)
		return false
	})
	return c.land(found)
}

// Next advances the cursor to the next key strictly greater than the
// current position.
func (c *Cursor) Next() (key, val []byte, ok bool) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	if !c.valid {
		return nil, nil, false
	}
	var found *item
	cur := c.current
	c.s.tree.AscendGreaterOrEqual(&item{key: cur.key}, func(i btree.Item) bool {
		cand := i.(*item)
		if bytes.Equal(cand.key, cur.key) {
			return true
		}
		found = cand
		return false
	})
	return c.land(found)
}

// Set positions the cursor exactly at key, failing if it is absent.
func (c *Cursor) Set(key []byte) (val []byte, ok bool) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	it := c.s.tree.Get(&item{key: key})
	if it == nil {
		c.valid = false
		return nil, false
	}
	_, v, found := c.land(it.(*item))
	return v, found
}

// SetRange positions the cursor at the least key >= key, per spec.md §9.
func (c *Cursor) SetRange(key []byte) (rkey, val []byte, ok bool) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	var found *item
	c.s.tree.AscendGreaterOrEqual(&item{key: key}, func(i btree.Item) bool {
		found = i.(*item)
		return false
	})
	return c.land(found)
}

// Current returns the cursor's current position without moving it.
func (c *Cursor) Current() (key, val []byte, ok bool) {
	if !c.valid {
		return nil, nil, false
	}
	return append([]byte(nil), c.current.key...), append([]byte(nil), c.current.val...), true
}

func (c *Cursor) land(it *item) (key, val []byte, ok bool) {
	if it == nil {
		c.valid = false
		return nil, nil, false
	}
	c.current = it
	c.valid = true
	return append([]byte(nil), it.key...), append([]byte(nil), it.val...), true
}
