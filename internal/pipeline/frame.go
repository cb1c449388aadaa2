// Package pipeline runs the two cooperating tasks of the display
// controller: the simulation task produces one frame per tick and the
// display task serializes frames to a sink, connected by an unbounded
// FIFO of owned frame records.
package pipeline

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vovakirdan/serialpong/internal/pong"
)

// ErrAllocationExhausted is returned when the frame budget is used up.
var ErrAllocationExhausted = errors.New("frame allocation exhausted")

// Frame is one produced game state. A frame is owned by exactly one party
// at a time: the simulator until pushed, the queue while enqueued, the
// display while rendering. The display releases it.
type Frame struct {
	Seq        uint64
	Tick       uint64
	State      pong.State
	ProducedAt time.Time
}

// Allocator hands out frame records and reclaims them. At most limit frames
// may be outstanding; beyond that Alloc fails.
type Allocator struct {
	limit       int64
	outstanding atomic.Int64
	allocated   atomic.Uint64
	failures    atomic.Uint64
	pool        sync.Pool
}

// NewAllocator creates an allocator. limit <= 0 means no limit.
func NewAllocator(limit int) *Allocator {
	a := &Allocator{limit: int64(limit)}
	a.pool.New = func() any { return new(Frame) }
	return a
}

// Alloc returns a zeroed frame or ErrAllocationExhausted.
func (a *Allocator) Alloc() (*Frame, error) {
	for {
		n := a.outstanding.Load()
		if a.limit > 0 && n >= a.limit {
			a.failures.Add(1)
			return nil, ErrAllocationExhausted
		}
		if a.outstanding.CompareAndSwap(n, n+1) {
			break
		}
	}
	a.allocated.Add(1)

	f := a.pool.Get().(*Frame)
	*f = Frame{}
	return f, nil
}

// Release returns f to the allocator. f must not be used afterwards.
func (a *Allocator) Release(f *Frame) {
	if f == nil {
		return
	}
	*f = Frame{}
	a.pool.Put(f)
	a.outstanding.Add(-1)
}

// Outstanding returns the number of frames allocated and not yet released.
func (a *Allocator) Outstanding() int {
	return int(a.outstanding.Load())
}

// Allocated returns the total number of successful allocations.
func (a *Allocator) Allocated() uint64 {
	return a.allocated.Load()
}

// Failures returns the total number of failed allocations.
func (a *Allocator) Failures() uint64 {
	return a.failures.Load()
}
