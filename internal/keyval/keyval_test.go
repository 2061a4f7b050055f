package keyval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/pvfsmeta/internal/errs"
)

func testOID(b byte) OID {
	var o OID
	o[0] = b
	return o
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := New()
	o := testOID(1)
	require.NoError(t, s.Write(o, Attribute, []byte("owner"), []byte{0xAB}, 0))
	v, err := s.Read(o, Attribute, []byte("owner"), -1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAB}, v)
}

func TestWriteRejectsOversizedKey(t *testing.T) {
	s := New()
	o := testOID(1)
	oversized := make([]byte, maxUserKeyLen+1)

	err := s.Write(o, Attribute, oversized, []byte{0x01}, 0)
	require.Error(t, err)
	assert.Equal(t, errs.BadArg, errs.Of(err))
}

func TestReadBufferTooSmallReportsRequiredSize(t *testing.T) {
	s := New()
	o := testOID(1)
	require.NoError(t, s.Write(o, Attribute, []byte("owner"), []byte{0xAB}, 0))

	_, err := s.Read(o, Attribute, []byte("owner"), 0)
	require.Error(t, err)
	assert.Equal(t, errs.BufferTooSmall, errs.Of(err))

	var tooSmall *errs.Error
	require.ErrorAs(t, err, &tooSmall)
	assert.Equal(t, 1, tooSmall.Size)
}

func TestNoOverwriteRejectsSecondWrite(t *testing.T) {
	s := New()
	o := testOID(1)
	require.NoError(t, s.Write(o, Attribute, []byte("k"), []byte("v1"), NoOverwrite))
	err := s.Write(o, Attribute, []byte("k"), []byte("v2"), NoOverwrite)
	require.Error(t, err)
	assert.Equal(t, errs.Exists, errs.Of(err))

	v, err := s.Read(o, Attribute, []byte("k"), -1)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)
}

func TestHandleCountTracksInsertsAndRemoves(t *testing.T) {
	s := New()
	o := testOID(2)
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, s.Write(o, Attribute, []byte(k), []byte("x"), NoOverwrite|HandleCount))
	}
	n, err := s.GetHandleInfo(o, Attribute)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	require.NoError(t, s.Remove(o, Attribute, []byte("a"), HandleCount))
	require.NoError(t, s.Remove(o, Attribute, []byte("b"), HandleCount))
	n, err = s.GetHandleInfo(o, Attribute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, s.Remove(o, Attribute, []byte("c"), HandleCount))
	_, err = s.GetHandleInfo(o, Attribute)
	require.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.Of(err))
}

func TestRemoveOfMissingKeyDoesNotDoubleDecrementHandleCount(t *testing.T) {
	s := New()
	o := testOID(3)
	require.NoError(t, s.Write(o, Attribute, []byte("a"), []byte("x"), NoOverwrite|HandleCount))
	require.NoError(t, s.Write(o, Attribute, []byte("b"), []byte("x"), NoOverwrite|HandleCount))

	require.NoError(t, s.Remove(o, Attribute, []byte("a"), HandleCount))
	// Removing the same key again, and removing a key that never existed,
	// must not further decrement the count: it is already gone.
	require.NoError(t, s.Remove(o, Attribute, []byte("a"), HandleCount))
	require.NoError(t, s.Remove(o, Attribute, []byte("never-written"), HandleCount))

	n, err := s.GetHandleInfo(o, Attribute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestIterateYieldsEveryKeyOnceInOrder(t *testing.T) {
	s := New()
	o := testOID(3)
	for c := byte('a'); c <= 'j'; c++ {
		require.NoError(t, s.Write(o, Attribute, []byte{c}, []byte{c}, 0))
	}

	var got []string
	pos := Start
	for {
		keys, _, next, more, err := s.Iterate(o, Attribute, pos, 3)
		require.NoError(t, err)
		for _, k := range keys {
			got = append(got, string(k))
		}
		if !more {
			break
		}
		pos = next
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}, got)
}

func TestIterateResumeAcrossPcacheClear(t *testing.T) {
	s := New()
	o := testOID(4)
	for c := byte('a'); c <= 'j'; c++ {
		require.NoError(t, s.Write(o, Attribute, []byte{c}, []byte{c}, 0))
	}

	keys1, _, pos1, _, err := s.Iterate(o, Attribute, Start, 3)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, keysToStrings(keys1))

	keys2, _, _, _, err := s.Iterate(o, Attribute, pos1, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"d", "e", "f", "g", "h", "i", "j"}, keysToStrings(keys2))

	s.Clear()

	keys1b, _, pos1b, _, err := s.Iterate(o, Attribute, Start, 3)
	require.NoError(t, err)
	assert.Equal(t, keysToStrings(keys1), keysToStrings(keys1b))

	keys2b, _, _, _, err := s.Iterate(o, Attribute, pos1b, 10)
	require.NoError(t, err)
	assert.Equal(t, keysToStrings(keys2), keysToStrings(keys2b))
}

func TestIterateNeverYieldsHandleInfoKey(t *testing.T) {
	s := New()
	o := testOID(5)
	require.NoError(t, s.Write(o, Attribute, []byte("k"), []byte("v"), NoOverwrite|HandleCount))

	keys, _, _, _, err := s.Iterate(o, Attribute, Start, 10)
	require.NoError(t, err)
	for _, k := range keys {
		assert.NotEmpty(t, k)
	}
}

func keysToStrings(keys [][]byte) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}
