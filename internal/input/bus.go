package input

import (
	"sync/atomic"

	"github.com/vovakirdan/serialpong/internal/core"
)

// DefaultBusSize is the default event buffer length.
const DefaultBusSize = 16

// Bus is a bounded, non-blocking channel of debounced button events.
// Producers (key handlers, pin callbacks) call Publish; the consumer drains
// Events once per tick.
type Bus struct {
	events    chan core.ButtonEvent
	debouncer *Debouncer
	dropped   atomic.Uint64
	bounced   atomic.Uint64
}

// NewBus creates a bus holding at most size pending events.
func NewBus(size int, debouncer *Debouncer) *Bus {
	if size <= 0 {
		size = DefaultBusSize
	}
	if debouncer == nil {
		debouncer = NewDebouncer(0)
	}
	return &Bus{
		events:    make(chan core.ButtonEvent, size),
		debouncer: debouncer,
	}
}

// Publish enqueues ev if it passes the debouncer and the buffer has room.
// It never blocks and reports whether the event was accepted.
func (b *Bus) Publish(ev core.ButtonEvent) bool {
	if !b.debouncer.Accept(ev) {
		b.bounced.Add(1)
		return false
	}
	select {
	case b.events <- ev:
		return true
	default:
		b.dropped.Add(1)
		return false
	}
}

// Events returns the receive side of the bus.
func (b *Bus) Events() <-chan core.ButtonEvent {
	return b.events
}

// Drain removes every pending event without blocking and passes each to fn
// in arrival order. It returns the number of events drained.
func (b *Bus) Drain(fn func(core.ButtonEvent)) int {
	n := 0
	for {
		select {
		case ev := <-b.events:
			fn(ev)
			n++
		default:
			return n
		}
	}
}

// Dropped returns how many accepted events were lost to a full buffer.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Bounced returns how many presses the debouncer rejected.
func (b *Bus) Bounced() uint64 {
	return b.bounced.Load()
}
