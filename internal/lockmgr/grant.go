package lockmgr

import "github.com/dreamware/pvfsmeta/internal/distribution"

// attemptGrant runs spec.md 4.D.2's per-extent admission loop against
// req's remaining work: it drains the removed-list first (4.D.2 step 6),
// then pulls extents from req's stream, translating each to an absolute
// logical offset and checking it for conflicts against the write tree (and,
// for a write request, the read tree as well). It stops
// as soon as something cannot be granted, leaving req's cursor positioned
// to resume exactly where it left off on the next call.
func (m *Manager) attemptGrant(ols *ObjectLockState, req *Request) Outcome {
	grantedBefore := req.actualLocked
	lastLocked := int64(-1)
	nextOffset := req.fileReqOffset

	for len(req.removed) > 0 {
		rng := req.removed[0]
		grantedEnd, blocked := m.tryInsertRange(ols, req, rng.Start, rng.End)
		if grantedEnd >= rng.Start {
			lastLocked = req.dist.LogicalOffset(grantedEnd)
		}
		if blocked {
			if grantedEnd >= rng.Start {
				req.removed[0] = Range{Start: grantedEnd + 1, End: rng.End}
			}
			return m.makeOutcome(req, grantedBefore, req.dist.LogicalOffset(rng.Start), lastLocked)
		}
		req.removed = req.removed[1:]
	}

	for {
		if req.pendingExtent == nil {
			e, ok := req.stream.Next()
			if !ok {
				break
			}
			req.pendingExtent = &e
		}
		ext := *req.pendingExtent

		absStart := req.dist.LogicalOffset(ext.PhysicalOffset)
		if absStart >= req.finalAbsoluteOffset {
			req.pendingExtent = nil
			nextOffset = absStart
			break
		}

		physEnd := ext.PhysicalOffset + ext.Length - 1
		absEnd := req.dist.LogicalOffset(physEnd)
		targetEnd := physEnd
		reachesFinal := absEnd >= req.finalAbsoluteOffset
		if reachesFinal {
			targetEnd = req.dist.PhysicalOffset(req.finalAbsoluteOffset) - 1
		}

		grantedEnd, blocked := m.tryInsertRange(ols, req, ext.PhysicalOffset, targetEnd)
		if grantedEnd >= ext.PhysicalOffset {
			lastLocked = req.dist.LogicalOffset(grantedEnd)
		}

		if blocked {
			if grantedEnd >= ext.PhysicalOffset {
				req.pendingExtent = &distribution.Extent{
					PhysicalOffset: grantedEnd + 1,
					Length:         ext.PhysicalOffset + ext.Length - (grantedEnd + 1),
				}
				nextOffset = req.dist.LogicalOffset(grantedEnd + 1)
			} else {
				nextOffset = absStart
			}
			return m.makeOutcome(req, grantedBefore, nextOffset, lastLocked)
		}

		req.pendingExtent = nil
		if reachesFinal {
			nextOffset = req.finalAbsoluteOffset
			break
		}
	}

	return m.makeOutcome(req, grantedBefore, nextOffset, lastLocked)
}

func (m *Manager) makeOutcome(req *Request, grantedBefore, nextOffset, lastLocked int64) Outcome {
	return Outcome{
		ReqID:            req.ID,
		BytesGrantedNow:  req.actualLocked - grantedBefore,
		NextOffset:       nextOffset,
		LastLockedOffset: lastLocked,
		Complete:         req.actualLocked >= req.aggregateSize,
	}
}

// tryInsertRange implements spec.md 4.D.2 steps 3-5 for a single candidate
// physical range [start,end]: it shrinks the range against any write-tree
// conflict (and, for write requests, any read-tree conflict too — "reads
// starve writes" is an accepted trade-off per spec.md 4.D.2 step 4), then
// inserts whatever survives. It returns the last physical offset actually
// granted (start-1 if nothing was) and whether the caller remains blocked
// on the rest of the originally requested range.
func (m *Manager) tryInsertRange(ols *ObjectLockState, req *Request, start, end int64) (grantedEnd int64, blocked bool) {
	limit := end

	shrinkAgainst := func(tree interface {
		OverlapSearch(lo, hi int64) (int64, bool)
		Get(id int64) (int64, int64, bool)
	}) bool {
		for {
			id, found := tree.OverlapSearch(start, limit)
			if !found {
				return true
			}
			cs, _, _ := tree.Get(id)
			if cs <= start {
				return false
			}
			if cs-1 < limit {
				limit = cs - 1
			}
		}
	}

	if !shrinkAgainst(ols.WriteTree) {
		return start - 1, true
	}
	if req.Direction == Write {
		if !shrinkAgainst(ols.ReadTree) {
			return start - 1, true
		}
	}

	if limit < start {
		return start - 1, true
	}

	tree := ols.WriteTree
	if req.Direction == Read {
		tree = ols.ReadTree
	}

	id := m.nextIntervalID
	m.nextIntervalID++
	if err := tree.Insert(start, limit, id); err != nil {
		return start - 1, true
	}
	req.granted = append(req.granted, id)
	req.actualLocked += limit - start + 1

	if limit < end {
		return limit, true
	}
	return limit, false
}
