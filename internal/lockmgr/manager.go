package lockmgr

import (
	"github.com/dreamware/pvfsmeta/internal/distribution"
	"github.com/dreamware/pvfsmeta/internal/errs"
	"github.com/dreamware/pvfsmeta/internal/hashchain"
)

// NewManager creates an empty lock manager.
func NewManager() *Manager {
	return &Manager{
		objects:  hashchain.New[ObjectRef, *ObjectLockState](64, hashObjectRef, equalObjectRef),
		reqsByID: make(map[int64]*Request),
	}
}

func (m *Manager) getOrCreateLockState(ref ObjectRef, dist distribution.Distribution) *ObjectLockState {
	if ols, ok := m.objects.Search(ref); ok {
		return ols
	}
	ols := newObjectLockState(ref, dist)
	m.objects.InsertAtHead(ref, ols)
	return ols
}

func (m *Manager) removeFromQueued(ols *ObjectLockState, req *Request) {
	for i, r := range ols.Queued {
		if r == req {
			ols.Queued = append(ols.Queued[:i], ols.Queued[i+1:]...)
			return
		}
	}
}

func (m *Manager) addToQueuedIfAbsent(ols *ObjectLockState, req *Request) {
	for _, r := range ols.Queued {
		if r == req {
			return
		}
	}
	ols.Queued = append(ols.Queued, req)
}

func (m *Manager) removeFromAllReqs(ols *ObjectLockState, req *Request) {
	for i, r := range ols.AllReqs {
		if r == req {
			ols.AllReqs = append(ols.AllReqs[:i], ols.AllReqs[i+1:]...)
			return
		}
	}
}

func (m *Manager) destroyIfEmpty(ols *ObjectLockState) {
	if len(ols.AllReqs) == 0 {
		m.objects.SearchAndRemove(ols.Ref)
	}
}

// Acquire implements spec.md 4.D.1/4.D.2. callback, if non-nil, is invoked
// later by ProgressQueue (outside the lock, per §5) when this request's
// status changes further after this call returns.
func (m *Manager) Acquire(
	ref ObjectRef,
	dir Direction,
	kind AcquireKind,
	continueReqID int64,
	dist distribution.Distribution,
	fileReqOffset, finalAbsoluteOffset, aggregateSize int64,
	callback func(Outcome),
) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	isContinue := kind == ContinueBlock || kind == ContinueNonblock
	var ols *ObjectLockState
	var req *Request

	if isContinue {
		r, ok := m.reqsByID[continueReqID]
		if !ok || r.Ref != ref {
			return Outcome{}, errs.New(errs.NotFound, "unknown continuation request %d", continueReqID)
		}
		req = r
		ols, _ = m.objects.Search(ref)
		if ols == nil {
			return Outcome{}, errs.New(errs.Internal, "continuation request has no object lock state")
		}
	} else {
		ols = m.getOrCreateLockState(ref, dist)
		req = &Request{
			ID:                  m.nextReqID,
			Ref:                 ref,
			Direction:           dir,
			Status:              StatusNew,
			dist:                dist,
			fileReqOffset:       fileReqOffset,
			finalAbsoluteOffset: finalAbsoluteOffset,
			aggregateSize:       aggregateSize,
			waitOffset:          -1,
		}
		req.stream = dist.Extents(fileReqOffset, aggregateSize)
		m.nextReqID++
		m.reqsByID[req.ID] = req
		ols.AllReqs = append(ols.AllReqs, req)
	}

	if callback != nil {
		req.callback = callback
	}

	nonblock := kind == NewNonblock || kind == ContinueNonblock
	if nonblock {
		req.waitOffset = -1
	} else {
		req.waitOffset = req.finalAbsoluteOffset
	}

	out := m.attemptGrant(ols, req)

	if out.Complete {
		req.Status = StatusAllGranted
		m.removeFromQueued(ols, req)
		_ = ols.Granted.Insert(req.ID, req)
	} else {
		req.Status = StatusIncomplete
		m.addToQueuedIfAbsent(ols, req)
	}

	return out, nil
}

// ReviseMode selects whether Revise releases everything or only the tail
// above a final offset, per spec.md 4.D.4.
type ReviseMode struct {
	ReleaseAll  bool
	FinalOffset int64
}

// Revise implements spec.md 4.D.1/4.D.4.
func (m *Manager) Revise(ref ObjectRef, mode ReviseMode, reqID int64) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ols, ok := m.objects.Search(ref)
	if !ok {
		return Outcome{}, errs.New(errs.NotFound, "no lock state for object")
	}
	req, ok := m.reqsByID[reqID]
	if !ok || req.Ref != ref {
		return Outcome{}, errs.New(errs.NotFound, "unknown request %d", reqID)
	}

	tree := ols.WriteTree
	if req.Direction == Read {
		tree = ols.ReadTree
	}

	if mode.ReleaseAll {
		var released int64
		for _, id := range req.granted {
			if s, e, ok := tree.Get(id); ok {
				released += e - s + 1
				_ = tree.Delete(id)
			}
		}
		req.granted = nil
		req.removed = nil
		_, _ = ols.Granted.Delete(req.ID)
		m.removeFromQueued(ols, req)
		m.removeFromAllReqs(ols, req)
		delete(m.reqsByID, req.ID)
		m.destroyIfEmpty(ols)
		return Outcome{ReqID: reqID, BytesGrantedNow: -released, Complete: true}, nil
	}

	finalPhysical := req.dist.PhysicalOffset(mode.FinalOffset)
	var released int64
	newGranted := make([]int64, 0, len(req.granted))
	for _, id := range req.granted {
		s, e, ok := tree.Get(id)
		if !ok {
			continue
		}
		switch {
		case s >= finalPhysical:
			released += e - s + 1
			req.removed = append(req.removed, Range{Start: s, End: e})
			_ = tree.Delete(id)
		case e >= finalPhysical:
			released += e - finalPhysical + 1
			req.removed = append(req.removed, Range{Start: finalPhysical, End: e})
			_ = tree.SetEnd(id, finalPhysical-1)
			newGranted = append(newGranted, id)
		default:
			newGranted = append(newGranted, id)
		}
	}
	req.granted = newGranted
	req.actualLocked -= released
	req.waitOffset = -1

	if req.Status == StatusAllGranted {
		_, _ = ols.Granted.Delete(req.ID)
		req.Status = StatusIncomplete
		m.addToQueuedIfAbsent(ols, req)
	}

	return Outcome{ReqID: reqID, BytesGrantedNow: -released, NextOffset: mode.FinalOffset, Complete: false}, nil
}

// ProgressQueue implements spec.md 4.D.1/4.D.3: it attempts to advance
// every queued request on ref toward completion, invoking callbacks for
// requests that finish or whose wait_offset is satisfied. Callbacks run
// after the lock is released, per §5.
func (m *Manager) ProgressQueue(ref ObjectRef) {
	m.mu.Lock()
	ols, ok := m.objects.Search(ref)
	if !ok {
		m.mu.Unlock()
		return
	}
	queued := append([]*Request(nil), ols.Queued...)

	type firing struct {
		req *Request
		out Outcome
	}
	var callbacks []firing

	for _, req := range queued {
		oldWait := req.waitOffset
		before := req.actualLocked
		out := m.attemptGrant(ols, req)

		if out.Complete {
			req.Status = StatusAllGranted
			m.removeFromQueued(ols, req)
			_ = ols.Granted.Insert(req.ID, req)
			if req.callback != nil {
				callbacks = append(callbacks, firing{req, out})
			}
			continue
		}

		if req.actualLocked > before && oldWait >= 0 && out.LastLockedOffset >= oldWait {
			if req.callback != nil {
				callbacks = append(callbacks, firing{req, out})
			}
		}
	}
	m.mu.Unlock()

	for _, f := range callbacks {
		f.req.callback(f.out)
	}
}

// Lookup returns the request with the given id, for test inspection and
// for server code building richer responses atop Outcome.
func (m *Manager) Lookup(reqID int64) (*Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reqsByID[reqID]
	return r, ok
}

// HasObjectState reports whether ref currently has a live ObjectLockState,
// for tests asserting the "destroyed when empty" invariant (spec.md §8.5).
func (m *Manager) HasObjectState(ref ObjectRef) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects.Search(ref)
	return ok
}
