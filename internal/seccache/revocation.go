package seccache

import (
	"hash/fnv"
	"time"
)

// Revocation is an entry in the revocation list of spec.md §4.G, keyed by
// (Server, CapabilityID). Unlike capability/credential entries, its
// expiration is the revocation's own expiry rather than a timeout-from-now
// ("entry expiration is the revocation expiry itself"), since once a
// capability's own lifetime has elapsed there is nothing left to revoke.
type Revocation struct {
	Server       string
	CapabilityID [16]byte
	Expiration   time.Time
}

func revocationExpired(r Revocation, now time.Time) bool { return !now.Before(r.Expiration) }

// revocationSetExpired is a no-op: the revocation's expiry is fixed at
// insert time, not extended by lookups.
func revocationSetExpired(r *Revocation, timeout time.Duration, now func() time.Time) {}

func revocationIndexOf(r Revocation, hashLimit int) int {
	h := fnv.New64a()
	h.Write([]byte(r.Server))
	h.Write(r.CapabilityID[:])
	return int(h.Sum64() % uint64(hashLimit))
}

func revocationCompare(a, b Revocation) bool {
	return a.Server == b.Server && a.CapabilityID == b.CapabilityID
}

// RevocationList is the concrete cache of spec.md §4.G "Revocation list".
type RevocationList struct {
	cache *Cache[Revocation]
}

// NewRevocationList creates a revocation list with the given tunables.
func NewRevocationList(props Properties, now func() time.Time) *RevocationList {
	return &RevocationList{
		cache: New(Methods[Revocation]{
			Expired:    revocationExpired,
			SetExpired: revocationSetExpired,
			IndexOf:    revocationIndexOf,
			Compare:    revocationCompare,
		}, props, now),
	}
}

// IsRevoked reports whether probe (matched by server+capability id) is
// present and not yet expired.
func (r *RevocationList) IsRevoked(probe Revocation) bool {
	_, ok := r.cache.Lookup(probe)
	return ok
}

// Insert adds a revocation record.
func (r *RevocationList) Insert(rev Revocation) { r.cache.Insert(rev) }

// Remove evicts the revocation matching probe's server+capability id.
func (r *RevocationList) Remove(probe Revocation) bool { return r.cache.Remove(probe) }
