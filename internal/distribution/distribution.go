// Package distribution provides the "distribution" external collaborator
// named in spec.md's GLOSSARY: an object mapping between a file's logical
// byte offsets and the physical offsets used within a single server's
// share of that file. spec.md treats it as opaque; SPEC_FULL.md adds a
// concrete minimal implementation so internal/lockmgr has something real
// to exercise (see SPEC_FULL.md §3, internal/distribution).
package distribution

// Extent is a (physical offset, length) pair produced while walking a file
// request description, per spec.md 4.D.2.
type Extent struct {
	PhysicalOffset int64
	Length         int64
}

// Distribution converts between a server's physical byte offsets and a
// file's absolute logical offsets, and streams the extents a file request
// touches on this server.
type Distribution interface {
	// LogicalOffset converts a physical offset on this server to the
	// absolute logical offset within the file.
	LogicalOffset(physical int64) int64

	// PhysicalOffset converts an absolute logical file offset to this
	// server's physical offset space.
	PhysicalOffset(logical int64) int64

	// Extents returns a lazy stream of (physical_offset, length) pairs
	// this server is responsible for, starting at or after
	// fileReqOffset (a physical offset), in ascending order.
	Extents(fileReqOffset int64, aggregateSize int64) ExtentStream
}

// ExtentStream is a cursor over a distribution's extents.
type ExtentStream interface {
	// Next returns the next extent, or ok=false when exhausted.
	Next() (Extent, bool)
}

// RoundRobin implements a fixed-stripe distribution across serverCount
// servers: each server owns contiguous runs of stripeSize bytes in a
// round-robin pattern, the simplest distribution that still exercises the
// physical<->logical translation the lock manager depends on.
type RoundRobin struct {
	StripeSize  int64
	ServerCount int
	ServerRank  int
}

func (d RoundRobin) stripesPerRound() int64 { return d.StripeSize * int64(d.ServerCount) }

// LogicalOffset implements Distribution.
func (d RoundRobin) LogicalOffset(physical int64) int64 {
	round := physical / d.StripeSize
	within := physical % d.StripeSize
	return round*d.stripesPerRound() + int64(d.ServerRank)*d.StripeSize + within
}

// PhysicalOffset implements Distribution.
func (d RoundRobin) PhysicalOffset(logical int64) int64 {
	round := logical / d.stripesPerRound()
	within := logical % d.stripesPerRound()
	rank := within / d.StripeSize
	offsetInStripe := within % d.StripeSize

	switch {
	case rank < int64(d.ServerRank):
		// This round's segment for this server lies entirely ahead of
		// the cut point.
		return round * d.StripeSize
	case rank > int64(d.ServerRank):
		// This round's segment for this server lies entirely behind
		// the cut point.
		return round*d.StripeSize + d.StripeSize
	default:
		return round*d.StripeSize + offsetInStripe
	}
}

type roundRobinStream struct {
	dist      RoundRobin
	next      int64
	remaining int64
}

// Extents implements Distribution.
func (d RoundRobin) Extents(fileReqOffset int64, aggregateSize int64) ExtentStream {
	return &roundRobinStream{dist: d, next: fileReqOffset, remaining: aggregateSize}
}

func (s *roundRobinStream) Next() (Extent, bool) {
	if s.remaining <= 0 {
		return Extent{}, false
	}
	withinStripe := s.next % s.dist.StripeSize
	runLen := s.dist.StripeSize - withinStripe
	if runLen > s.remaining {
		runLen = s.remaining
	}
	e := Extent{PhysicalOffset: s.next, Length: runLen}
	s.next += runLen
	s.remaining -= runLen
	return e, true
}
