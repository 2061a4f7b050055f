package seccache

import (
	"bytes"
	"hash/fnv"
	"time"
)

// Credential mirrors the GLOSSARY's "signed identity token (user + groups)
// with an expiration", keyed by (Issuer, Signature) per spec.md §4.G.
type Credential struct {
	Issuer     string
	UserID     uint32
	GroupIDs   []uint32
	Signature  []byte
	Expiration time.Time
}

func credentialExpired(c Credential, now time.Time) bool { return !now.Before(c.Expiration) }

// credentialSetExpired is a no-op: unlike capability's local cache hold, a
// credential's Expiration is the issuer's own signed value and is never
// extended by a cache hit.
func credentialSetExpired(c *Credential, timeout time.Duration, now func() time.Time) {}

func credentialIndexOf(c Credential, hashLimit int) int {
	h := fnv.New64a()
	h.Write([]byte(c.Issuer))
	h.Write(c.Signature)
	return int(h.Sum64() % uint64(hashLimit))
}

func credentialCompare(a, b Credential) bool {
	return a.Issuer == b.Issuer && bytes.Equal(a.Signature, b.Signature)
}

// CredentialCache is the concrete cache of spec.md §4.G "Credential cache".
type CredentialCache struct {
	cache *Cache[Credential]
}

// NewCredentialCache creates a credential cache with the given tunables.
func NewCredentialCache(props Properties, now func() time.Time) *CredentialCache {
	return &CredentialCache{
		cache: New(Methods[Credential]{
			Expired:    credentialExpired,
			SetExpired: credentialSetExpired,
			IndexOf:    credentialIndexOf,
			Compare:    credentialCompare,
		}, props, now),
	}
}

// Lookup returns the cached credential matching probe's issuer+signature.
func (c *CredentialCache) Lookup(probe Credential) (Credential, bool) {
	return c.cache.Lookup(probe)
}

// Insert adds a credential to the cache.
func (c *CredentialCache) Insert(cred Credential) { c.cache.Insert(cred) }

// Remove evicts the credential matching probe's issuer+signature.
func (c *CredentialCache) Remove(probe Credential) bool { return c.cache.Remove(probe) }
