package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/pvfsmeta/internal/errs"
)

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := New()
	_, err := s.Get([]byte("nope"))
	require.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.Of(err))
}

func TestPutThenGetRoundTrips(t *testing.T) {
	s := New()
	require.NoError(t, s.Put([]byte("a"), []byte("1")))
	v, err := s.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
}

func TestPutOnceFailsOnExisting(t *testing.T) {
	s := New()
	require.NoError(t, s.PutOnce([]byte("a"), []byte("1")))
	err := s.PutOnce([]byte("a"), []byte("2"))
	require.Error(t, err)
	assert.Equal(t, errs.Exists, errs.Of(err))

	v, err := s.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v, "PutOnce must not modify the stored value on conflict")
}

func TestDelIsIdempotent(t *testing.T) {
	s := New()
	existed, err := s.Del([]byte("missing"))
	require.NoError(t, err)
	assert.False(t, existed)

	require.NoError(t, s.Put([]byte("a"), []byte("1")))
	existed, err = s.Del([]byte("a"))
	require.NoError(t, err)
	assert.True(t, existed)

	_, err = s.Get([]byte("a"))
	assert.Error(t, err)

	existed, err = s.Del([]byte("a"))
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestCursorFirstAndNextVisitInOrder(t *testing.T) {
	s := New()
	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, s.Put([]byte(k), []byte(k)))
	}

	c := s.NewCursor()
	var order []string
	k, _, ok := c.First()
	for ok {
		order = append(order, string(k))
		k, _, ok = c.Next()
	}
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestCursorSetRangeSeeksToLeastGreaterOrEqual(t *testing.T) {
	s := New()
	require.NoError(t, s.Put([]byte("a"), []byte("1")))
	require.NoError(t, s.Put([]byte("c"), []byte("3")))

	c := s.NewCursor()
	k, v, ok := c.SetRange([]byte("b"))
	require.True(t, ok)
	assert.Equal(t, []byte("c"), k)
	assert.Equal(t, []byte("3"), v)
}

func TestCursorSetFailsOnAbsentKey(t *testing.T) {
	s := New()
	require.NoError(t, s.Put([]byte("a"), []byte("1")))
	c := s.NewCursor()
	_, ok := c.Set([]byte("z"))
	assert.False(t, ok)
}

func TestCursorCurrentMatchesLastLanding(t *testing.T) {
	s := New()
	require.NoError(t, s.Put([]byte("a"), []byte("1")))
	c := s.NewCursor()
	_, _, ok := c.First()
	require.True(t, ok)
	k, v, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, []byte("a"), k)
	assert.Equal(t, []byte("1"), v)
}
