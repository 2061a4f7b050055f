package sidcache

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	calls atomic.Int32
	addr  uint64
}

func (s *stubResolver) Resolve(ctx context.Context, url string) (uint64, error) {
	s.calls.Add(1)
	return s.addr, nil
}

func TestGetAddrResolvesOnZeroAndCaches(t *testing.T) {
	cat := NewCatalog()
	rec := mkRecord(1, "1", TypeData)
	rec.URL = "tcp://host:1234"
	cat.Add(rec)

	stub := &stubResolver{addr: 42}
	r := NewResolved(cat, stub)

	addr, err := r.GetAddr(context.Background(), rec.SID)
	require.NoError(t, err)
	assert.EqualValues(t, 42, addr)
	assert.EqualValues(t, 1, stub.calls.Load())

	addr2, err := r.GetAddr(context.Background(), rec.SID)
	require.NoError(t, err)
	assert.EqualValues(t, 42, addr2)
	assert.EqualValues(t, 1, stub.calls.Load(), "second lookup must not re-resolve")
}

func TestGetAddrSkipsResolutionWhenAlreadySet(t *testing.T) {
	cat := NewCatalog()
	rec := mkRecord(1, "1", TypeData)
	rec.BMIAddr = 7
	cat.Add(rec)

	stub := &stubResolver{addr: 99}
	r := NewResolved(cat, stub)

	addr, err := r.GetAddr(context.Background(), rec.SID)
	require.NoError(t, err)
	assert.EqualValues(t, 7, addr)
	assert.EqualValues(t, 0, stub.calls.Load())
}

func TestGetAddrUnknownSidReturnsError(t *testing.T) {
	cat := NewCatalog()
	r := NewResolved(cat, &stubResolver{})
	_, err := r.GetAddr(context.Background(), SID{9})
	assert.Error(t, err)
}
