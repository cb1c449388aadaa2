package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/x/ansi"
)

// DefaultViewerBuffer is the number of rows a viewer may lag behind before
// it is disconnected.
const DefaultViewerBuffer = 256

// ErrViewerTooSlow is returned by Serve when the viewer was disconnected
// for falling behind.
var ErrViewerTooSlow = errors.New("viewer too slow")

// Hub fans rows out to any number of remote viewers (SSH sessions, web
// sockets). A new viewer starts receiving at the next frame boundary so it
// never sees half a frame. Send never fails; with no viewers rows are
// discarded.
type Hub struct {
	buffer   int
	terminal bool

	mu      sync.Mutex
	nextID  uint64
	active  map[uint64]*Viewer
	pending map[uint64]*Viewer
	closed  bool

	rows   atomic.Uint64
	kicked atomic.Uint64
}

// NewHub creates a hub. When terminal is true the hub declares a terminal
// far end, so the display sends cursor redraw sequences through it.
func NewHub(buffer int, terminal bool) *Hub {
	if buffer <= 0 {
		buffer = DefaultViewerBuffer
	}
	return &Hub{
		buffer:   buffer,
		terminal: terminal,
		active:   make(map[uint64]*Viewer),
		pending:  make(map[uint64]*Viewer),
	}
}

// Viewer is one attached remote client.
type Viewer struct {
	ID   uint64
	Name string

	hub    *Hub
	ch     chan []byte
	once   sync.Once
	kicked atomic.Bool
}

// Rows returns the row stream. It is closed when the viewer is detached.
func (v *Viewer) Rows() <-chan []byte {
	return v.ch
}

// Close detaches the viewer from its hub.
func (v *Viewer) Close() {
	v.hub.detach(v)
}

// Kicked reports whether the hub disconnected the viewer for lagging.
func (v *Viewer) Kicked() bool {
	return v.kicked.Load()
}

func (v *Viewer) shut() {
	v.once.Do(func() { close(v.ch) })
}

// IsTerminal implements TerminalSink.
func (h *Hub) IsTerminal() bool {
	return h.terminal
}

// Attach registers a new viewer. It returns ErrClosed after Close.
func (h *Hub) Attach(name string) (*Viewer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}
	h.nextID++
	v := &Viewer{
		ID:   h.nextID,
		Name: name,
		hub:  h,
		ch:   make(chan []byte, h.buffer),
	}
	if h.terminal {
		v.ch <- []byte(ansi.HideCursor)
	}
	h.pending[v.ID] = v
	return v, nil
}

func (h *Hub) detach(v *Viewer) {
	h.mu.Lock()
	delete(h.active, v.ID)
	delete(h.pending, v.ID)
	h.mu.Unlock()
	v.shut()
}

// Viewers returns the number of attached viewers, pending ones included.
func (h *Hub) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.active) + len(h.pending)
}

// Kicked returns how many viewers were disconnected for being too slow.
func (h *Hub) Kicked() uint64 {
	return h.kicked.Load()
}

// Send implements Sink.
func (h *Hub) Send(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	h.rows.Add(1)
	if len(h.active) == 0 {
		return nil
	}

	row := append([]byte(nil), p...)
	for id, v := range h.active {
		select {
		case v.ch <- row:
		default:
			delete(h.active, id)
			v.kicked.Store(true)
			v.shut()
			h.kicked.Add(1)
		}
	}
	return nil
}

// FrameDone implements FrameSink. Pending viewers become active.
func (h *Hub) FrameDone(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, v := range h.pending {
		h.active[id] = v
		delete(h.pending, id)
	}
	return nil
}

// Close detaches every viewer. Further sends fail with ErrClosed.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	for _, v := range h.active {
		v.shut()
	}
	for _, v := range h.pending {
		v.shut()
	}
	clear(h.active)
	clear(h.pending)
	return nil
}

// Serve attaches a viewer named name and copies rows to w until ctx is
// done, the hub closes, or a write fails.
func (h *Hub) Serve(ctx context.Context, w io.Writer, name string) error {
	v, err := h.Attach(name)
	if err != nil {
		return err
	}
	defer v.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case row, ok := <-v.Rows():
			if !ok {
				if v.Kicked() {
					return ErrViewerTooSlow
				}
				return nil
			}
			if _, err := w.Write(row); err != nil {
				return fmt.Errorf("serial: viewer %s: %w", name, err)
			}
		}
	}
}
