// Package hashchain implements SPEC_FULL.md component 4.C: a closed-address
// hash table with per-bucket linked chains, safe for-each-with-removal, and
// user-supplied hash/equality functions. It backs both the lock manager's
// object table and the attribute cache (internal/attrcache).
package hashchain

// Table is a hash table with separate chaining. K must be comparable; hash
// and equal are supplied by the caller the way the legacy table took a
// methods vtable.
type Table[K comparable, V any] struct {
	buckets [][]entry[K, V]
	hash    func(K) uint64
	equal   func(a, b K) bool
	size    int
}

type entry[K comparable, V any] struct {
	key K
	val V
}

// New creates a table with nbuckets buckets (rounded up to a power of two
// isn't required; any positive count works).
func New[K comparable, V any](nbuckets int, hash func(K) uint64, equal func(a, b K) bool) *Table[K, V] {
	if nbuckets <= 0 {
		nbuckets = 16
	}
	return &Table[K, V]{
		buckets: make([][]entry[K, V], nbuckets),
		hash:    hash,
		equal:   equal,
	}
}

func (t *Table[K, V]) bucketOf(k K) int {
	return int(t.hash(k) % uint64(len(t.buckets)))
}

// Len returns the number of entries in the table.
func (t *Table[K, V]) Len() int { return t.size }

// InsertAtHead prepends key->val to its bucket's chain, allowing duplicate
// keys (the caller's equal function governs what "duplicate" means).
func (t *Table[K, V]) InsertAtHead(key K, val V) {
	b := t.bucketOf(key)
	t.buckets[b] = append([]entry[K, V]{{key: key, val: val}}, t.buckets[b]...)
	t.size++
}

// Search returns the first value whose key compares equal to key.
func (t *Table[K, V]) Search(key K) (V, bool) {
	b := t.bucketOf(key)
	for _, e := range t.buckets[b] {
		if t.equal(e.key, key) {
			return e.val, true
		}
	}
	var zero V
	return zero, false
}

// SearchAndRemove removes and returns the first value whose key compares
// equal to key.
func (t *Table[K, V]) SearchAndRemove(key K) (V, bool) {
	b := t.bucketOf(key)
	chain := t.buckets[b]
	for i, e := range chain {
		if t.equal(e.key, key) {
			return t.removeAtIndex(b, i), true
		}
	}
	var zero V
	return zero, false
}

// SearchAndRemoveAtIndex removes the nth match (0-based) for key in its
// chain, for callers that need to disambiguate duplicate keys.
func (t *Table[K, V]) SearchAndRemoveAtIndex(key K, occurrence int) (V, bool) {
	b := t.bucketOf(key)
	seen := 0
	for i, e := range t.buckets[b] {
		if t.equal(e.key, key) {
			if seen == occurrence {
				return t.removeAtIndex(b, i), true
			}
			seen++
		}
	}
	var zero V
	return zero, false
}

func (t *Table[K, V]) removeAtIndex(bucket, idx int) V {
	chain := t.buckets[bucket]
	v := chain[idx].val
	t.buckets[bucket] = append(chain[:idx], chain[idx+1:]...)
	t.size--
	return v
}

// ForEach visits every entry. fn may return remove=true to delete the
// current entry safely mid-iteration (the legacy "safe for-each with
// deletion" contract), and cont=false to stop early.
func (t *Table[K, V]) ForEach(fn func(key K, val V) (remove, cont bool)) {
	for b := range t.buckets {
		chain := t.buckets[b]
		i := 0
		for i < len(chain) {
			remove, cont := fn(chain[i].key, chain[i].val)
			if remove {
				chain = append(chain[:i], chain[i+1:]...)
				t.buckets[b] = chain
				t.size--
			} else {
				i++
			}
			if !cont {
				return
			}
		}
	}
}
