package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/vovakirdan/serialpong/internal/config"
)

// ErrQueueClosed is returned by Push after Close, and by Pop once the queue
// is closed and empty.
var ErrQueueClosed = errors.New("frame queue closed")

// Queue is a FIFO of frames between the simulation and display tasks.
//
// Unbounded by default: Push never blocks and never drops. With a capacity
// the overflow policy decides between dropping the oldest queued frame and
// blocking the producer.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	items    []*Frame
	capacity int
	policy   string
	closed   bool
	onDrop   func(*Frame)

	pushed   uint64
	popped   uint64
	dropped  uint64
	maxDepth int
}

// QueueStats is a point in time copy of the queue counters.
type QueueStats struct {
	Depth    int
	MaxDepth int
	Pushed   uint64
	Popped   uint64
	Dropped  uint64
}

// NewQueue creates a queue. capacity <= 0 means unbounded. onDrop, if not
// nil, receives frames evicted by the drop-oldest policy so they can be
// released.
func NewQueue(capacity int, policy string, onDrop func(*Frame)) *Queue {
	if policy == "" {
		policy = config.OverflowDropOldest
	}
	q := &Queue{
		capacity: max(capacity, 0),
		policy:   policy,
		onDrop:   onDrop,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// wakeOnDone broadcasts cond when ctx is done so waiters re-check ctx.
func (q *Queue) wakeOnDone(ctx context.Context, cond *sync.Cond) (stop func() bool) {
	return context.AfterFunc(ctx, func() {
		q.mu.Lock()
		cond.Broadcast()
		q.mu.Unlock()
	})
}

// Push appends f. Ownership passes to the queue only when Push returns nil.
func (q *Queue) Push(ctx context.Context, f *Frame) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	if q.capacity > 0 && len(q.items) >= q.capacity {
		switch q.policy {
		case config.OverflowBlock:
			stop := q.wakeOnDone(ctx, q.notFull)
			defer stop()
			for len(q.items) >= q.capacity && !q.closed {
				if err := ctx.Err(); err != nil {
					return err
				}
				q.notFull.Wait()
			}
			if q.closed {
				return ErrQueueClosed
			}
		default:
			oldest := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.dropped++
			if q.onDrop != nil {
				q.onDrop(oldest)
			}
		}
	}

	q.items = append(q.items, f)
	q.pushed++
	q.maxDepth = max(q.maxDepth, len(q.items))
	q.notEmpty.Signal()
	return nil
}

// Pop removes the oldest frame, blocking while the queue is empty. It
// returns ctx.Err() when ctx is done and ErrQueueClosed once the queue is
// closed and drained.
func (q *Queue) Pop(ctx context.Context) (*Frame, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 && !q.closed {
		stop := q.wakeOnDone(ctx, q.notEmpty)
		defer stop()
	}
	for len(q.items) == 0 {
		if q.closed {
			return nil, ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q.notEmpty.Wait()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	q.popped++
	q.notFull.Signal()
	return f, nil
}

// Close rejects further pushes and wakes every waiter. Frames already
// queued may still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Drain removes and returns every queued frame.
func (q *Queue) Drain() []*Frame {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.items
	q.items = nil
	q.notFull.Broadcast()
	return out
}

// Len returns the number of queued frames.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats returns the queue counters.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Depth:    len(q.items),
		MaxDepth: q.maxDepth,
		Pushed:   q.pushed,
		Popped:   q.popped,
		Dropped:  q.dropped,
	}
}
