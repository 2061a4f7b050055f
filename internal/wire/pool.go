package wire

import (
	"sync"

	"github.com/dreamware/pvfsmeta/internal/errs"
)

// DefaultBufferCount and DefaultBufferSize are spec.md §4.I's connection
// defaults: a fixed count of receive buffers, each of fixed size.
const (
	DefaultBufferCount = 20
	DefaultBufferSize  = 8 * 1024
)

// BufferPool is a connection's fixed set of receive buffers. Credit and
// return-credit accounting (how many buffers the peer believes it may
// still fill) travels in each message's Header.Credit field; the pool
// itself only tracks which buffers are currently checked out.
type BufferPool struct {
	mu       sync.Mutex
	size     int
	free     [][]byte
	inFlight map[*byte]struct{}
}

// NewBufferPool allocates count buffers of size bytes each.
func NewBufferPool(count, size int) *BufferPool {
	p := &BufferPool{size: size, inFlight: make(map[*byte]struct{})}
	for i := 0; i < count; i++ {
		p.free = append(p.free, make([]byte, size))
	}
	return p
}

// Acquire checks out one buffer, or reports Busy if none are free.
func (p *BufferPool) Acquire() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return nil, errs.New(errs.Busy, "no receive buffers available")
	}
	buf := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.inFlight[&buf[0]] = struct{}{}
	return buf, nil
}

// Release returns buf to the pool. buf must have come from Acquire on
// this pool and not have been resliced past its original capacity.
func (p *BufferPool) Release(buf []byte) {
	if cap(buf) < p.size {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, &buf[0])
	p.free = append(p.free, buf[:p.size])
}

// Available returns the number of buffers currently free.
func (p *BufferPool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
