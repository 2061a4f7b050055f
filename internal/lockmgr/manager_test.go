package lockmgr

import (
	"testing"

	"github.com/dreamware/pvfsmeta/internal/distribution"
	"github.com/dreamware/pvfsmeta/internal/itree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRef() ObjectRef {
	return ObjectRef{FSID: 1, OID: [16]byte{1, 2, 3}}
}

// singleServer is a distribution where this server holds the entire file
// contiguously (physical == logical), the simplest case for exercising the
// lock manager without striping noise.
var singleServer = distribution.RoundRobin{StripeSize: 1 << 30, ServerCount: 1, ServerRank: 0}

func TestScenarioS1_LockOverlapAndQueueProgress(t *testing.T) {
	m := NewManager()
	ref := testRef()

	outA, err := m.Acquire(ref, Write, NewBlock, 0, singleServer, 0, 100, 100, nil)
	require.NoError(t, err)
	assert.True(t, outA.Complete)

	var callbackResult *Outcome
	outB, err := m.Acquire(ref, Write, NewNonblock, 0, singleServer, 50, 200, 100, func(o Outcome) {
		callbackResult = &o
	})
	require.NoError(t, err)
	assert.False(t, outB.Complete)
	assert.EqualValues(t, 50, outB.NextOffset)
	assert.EqualValues(t, 0, outB.BytesGrantedNow)

	_, err = m.Revise(ref, ReviseMode{ReleaseAll: true}, outA.ReqID)
	require.NoError(t, err)

	m.ProgressQueue(ref)

	require.NotNil(t, callbackResult)
	assert.True(t, callbackResult.Complete)

	reqB, ok := m.Lookup(outB.ReqID)
	require.True(t, ok)
	assert.Equal(t, StatusAllGranted, reqB.Status)
	assert.EqualValues(t, 100, reqB.ActualLocked())
}

func TestScenarioS2_ReadBehindWrite(t *testing.T) {
	m := NewManager()
	ref := testRef()

	outA, err := m.Acquire(ref, Write, NewBlock, 0, singleServer, 0, 100, 100, nil)
	require.NoError(t, err)
	require.True(t, outA.Complete)

	var fired bool
	outB, err := m.Acquire(ref, Read, NewNonblock, 0, singleServer, 0, 100, 100, func(o Outcome) {
		fired = o.Complete
	})
	require.NoError(t, err)
	assert.False(t, outB.Complete)
	assert.EqualValues(t, 0, outB.NextOffset)

	_, err = m.Revise(ref, ReviseMode{ReleaseAll: true}, outA.ReqID)
	require.NoError(t, err)
	m.ProgressQueue(ref)

	assert.True(t, fired)
}

func TestNonOverlappingWritesBothGrantImmediately(t *testing.T) {
	m := NewManager()
	ref := testRef()

	outA, err := m.Acquire(ref, Write, NewBlock, 0, singleServer, 0, 50, 50, nil)
	require.NoError(t, err)
	assert.True(t, outA.Complete)

	outB, err := m.Acquire(ref, Write, NewBlock, 0, singleServer, 100, 150, 50, nil)
	require.NoError(t, err)
	assert.True(t, outB.Complete)
}

func TestOverlappingWritesNeverBothGranted(t *testing.T) {
	m := NewManager()
	ref := testRef()

	outA, err := m.Acquire(ref, Write, NewBlock, 0, singleServer, 0, 100, 100, nil)
	require.NoError(t, err)
	require.True(t, outA.Complete)

	outB, err := m.Acquire(ref, Write, NewNonblock, 0, singleServer, 50, 150, 100, nil)
	require.NoError(t, err)
	assert.False(t, outB.Complete)
}

func TestReviseAllDestroysEmptyObjectState(t *testing.T) {
	m := NewManager()
	ref := testRef()

	out, err := m.Acquire(ref, Write, NewBlock, 0, singleServer, 0, 10, 10, nil)
	require.NoError(t, err)
	require.True(t, m.HasObjectState(ref))

	_, err = m.Revise(ref, ReviseMode{ReleaseAll: true}, out.ReqID)
	require.NoError(t, err)
	assert.False(t, m.HasObjectState(ref))
}

func TestContinueAcquireUnknownRequest(t *testing.T) {
	m := NewManager()
	ref := testRef()
	_, err := m.Acquire(ref, Write, ContinueBlock, 9999, singleServer, 0, 10, 10, nil)
	require.Error(t, err)
}

func TestReviseSomeMovesTailToRemovedListAndReclaimsOnContinue(t *testing.T) {
	m := NewManager()
	ref := testRef()

	out, err := m.Acquire(ref, Write, NewBlock, 0, singleServer, 0, 100, 100, nil)
	require.NoError(t, err)
	require.True(t, out.Complete)

	revOut, err := m.Revise(ref, ReviseMode{FinalOffset: 50}, out.ReqID)
	require.NoError(t, err)
	assert.False(t, revOut.Complete)

	req, ok := m.Lookup(out.ReqID)
	require.True(t, ok)
	assert.Equal(t, StatusIncomplete, req.Status)
	assert.EqualValues(t, 50, req.ActualLocked())
	require.Len(t, req.removed, 1)
	assert.EqualValues(t, Range{Start: 50, End: 99}, req.removed[0])

	// Continuing the same request should reclaim [50,99] before anything
	// else, since its own stream is already exhausted.
	contOut, err := m.Acquire(ref, Write, ContinueBlock, out.ReqID, singleServer, 0, 100, 100, nil)
	require.NoError(t, err)
	assert.True(t, contOut.Complete)
	assert.EqualValues(t, 50, contOut.BytesGrantedNow)
}

func TestReviseSomeOnStripedObjectReleasesExactlyTheTailAboveFinalOffset(t *testing.T) {
	m := NewManager()
	ref := testRef()

	// Two servers, 100-byte stripes. This server is rank 1: its physical
	// offsets [0,99], [100,199], [200,299] map to logical rounds
	// [100,199], [300,399], [500,599].
	striped := distribution.RoundRobin{StripeSize: 100, ServerCount: 2, ServerRank: 1}

	out, err := m.Acquire(ref, Write, NewBlock, 0, striped, 0, 1<<30, 300, nil)
	require.NoError(t, err)
	require.True(t, out.Complete)
	require.EqualValues(t, 300, out.BytesGrantedNow)

	// Logical 250 falls in round 1 (logical [200,399]), in rank 0's half
	// of that round ([200,299]) — entirely below this server's own rank-1
	// segment of that round ([300,399]). So this server's round-0 physical
	// segment ([0,99], logical [100,199]) lies entirely below the cut and
	// must survive untouched; its round-1 and round-2 physical segments
	// ([100,199] and [200,299], logical [300,399] and [500,599]) lie
	// entirely above the cut and must be released in full.
	revOut, err := m.Revise(ref, ReviseMode{FinalOffset: 250}, out.ReqID)
	require.NoError(t, err)
	assert.False(t, revOut.Complete)
	assert.EqualValues(t, -200, revOut.BytesGrantedNow)

	req, ok := m.Lookup(out.ReqID)
	require.True(t, ok)
	assert.EqualValues(t, 100, req.ActualLocked())
	assert.ElementsMatch(t, []Range{{Start: 100, End: 199}, {Start: 200, End: 299}}, req.removed)
}

func TestWriteTreeStaysDisjointUnderSequentialAcquires(t *testing.T) {
	m := NewManager()
	ref := testRef()

	for i := 0; i < 30; i++ {
		s := int64(i * 10)
		out, err := m.Acquire(ref, Write, NewNonblock, 0, singleServer, s, s+10, 10, nil)
		require.NoError(t, err)
		require.True(t, out.Complete)
	}

	ols, ok := m.objects.Search(ref)
	require.True(t, ok)

	var prevEnd int64 = -1
	ols.WriteTree.InorderWalk(func(iv itree.Interval[int64]) bool {
		assert.Greater(t, iv.Start, prevEnd)
		prevEnd = iv.End
		return true
	})
	assert.EqualValues(t, 299, prevEnd)
}
