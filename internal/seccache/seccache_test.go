package seccache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilityLookupHitsBeforeExpiration(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	c := NewCapabilityCache(Properties{EntryLimit: 10, HashLimit: 8, Timeout: time.Minute}, clock)

	cap := Capability{Issuer: "x", FSID: 1, Signature: []byte("sig1"), Expiration: now.Add(time.Hour)}
	c.Insert(cap)

	got, ok := c.Lookup(Capability{Issuer: "x", FSID: 1, Signature: []byte("sig1")})
	require.True(t, ok)
	assert.Equal(t, "x", got.Issuer)
}

func TestCapabilityLookupMissAfterExpiration(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	c := NewCapabilityCache(Properties{EntryLimit: 10, HashLimit: 8, Timeout: time.Minute}, clock)

	cap := Capability{Issuer: "x", Signature: []byte("sig1"), Expiration: now.Add(time.Second)}
	c.Insert(cap)

	now = now.Add(2 * time.Second)
	_, ok := c.Lookup(Capability{Issuer: "x", Signature: []byte("sig1")})
	assert.False(t, ok)
}

func TestCapabilityCacheUntilRollsForwardFromInjectedClockNotWallClock(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	c := NewCapabilityCache(Properties{EntryLimit: 10, HashLimit: 8, Timeout: time.Minute}, clock)

	cap := Capability{Issuer: "x", Signature: []byte("sig1"), Expiration: now.Add(time.Hour)}
	c.Insert(cap)

	got, ok := c.Lookup(Capability{Issuer: "x", Signature: []byte("sig1")})
	require.True(t, ok)
	assert.True(t, got.CacheUntil.Equal(now.Add(time.Minute)),
		"CacheUntil must be derived from the cache's injected clock, got %v", got.CacheUntil)
}

func TestCapabilityQuickSignCopiesSignatureOnFieldMatch(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	c := NewCapabilityCache(Properties{EntryLimit: 10, HashLimit: 8, Timeout: time.Minute}, clock)

	handles := [][16]byte{{1}}
	c.Insert(Capability{Issuer: "x", FSID: 1, OpMask: 7, Handles: handles, Signature: []byte("sigA"), Expiration: now.Add(time.Hour)})

	probe := Capability{Issuer: "x", FSID: 1, OpMask: 7, Handles: handles}
	ok := c.QuickSign(&probe)
	require.True(t, ok)
	assert.Equal(t, []byte("sigA"), probe.Signature)
}

func TestCapabilityQuickSignMissOnFieldMismatch(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewCapabilityCache(Properties{EntryLimit: 10, HashLimit: 8, Timeout: time.Minute}, func() time.Time { return now })
	c.Insert(Capability{Issuer: "x", FSID: 1, Signature: []byte("sigA"), Expiration: now.Add(time.Hour)})

	probe := Capability{Issuer: "x", FSID: 2}
	ok := c.QuickSign(&probe)
	assert.False(t, ok)
}

func TestEntryLimitEvictsAtMostOne(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewCredentialCache(Properties{EntryLimit: 3, HashLimit: 4, Timeout: time.Minute}, func() time.Time { return now })

	for i := 0; i < 3; i++ {
		c.Insert(Credential{Issuer: "x", Signature: []byte{byte(i)}, Expiration: now.Add(time.Hour)})
	}
	c.Insert(Credential{Issuer: "x", Signature: []byte{99}, Expiration: now.Add(time.Hour)})

	assert.Equal(t, 3, c.cache.sizeLocked())

	got, ok := c.Lookup(Credential{Issuer: "x", Signature: []byte{99}})
	require.True(t, ok)
	assert.Equal(t, []byte{99}, got.Signature)
}

func TestRevocationExpiresAtItsOwnExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	r := NewRevocationList(Properties{EntryLimit: 10, HashLimit: 4}, func() time.Time { return now })
	capID := [16]byte{1, 2, 3}
	r.Insert(Revocation{Server: "s1", CapabilityID: capID, Expiration: now.Add(time.Second)})

	assert.True(t, r.IsRevoked(Revocation{Server: "s1", CapabilityID: capID}))

	now = now.Add(2 * time.Second)
	assert.False(t, r.IsRevoked(Revocation{Server: "s1", CapabilityID: capID}))
}
