package input

import (
	"github.com/vovakirdan/serialpong/internal/core"
)

// Handler reacts to a button press by updating a target of type T.
type Handler[T any] interface {
	HandleButton(ev core.ButtonEvent, target *T)
}

// HandlerFunc is func type of Handler.
type HandlerFunc[T any] func(ev core.ButtonEvent, target *T)

// HandleButton implements Handler.
func (f HandlerFunc[T]) HandleButton(ev core.ButtonEvent, target *T) {
	f(ev, target)
}

// Dispatcher routes each button to at most one handler.
// A button without a handler is ignored.
type Dispatcher[T any] struct {
	handlers map[core.Button]Handler[T]
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher[T any]() *Dispatcher[T] {
	return &Dispatcher[T]{handlers: make(map[core.Button]Handler[T])}
}

// On registers h for button b, replacing any previous handler.
func (d *Dispatcher[T]) On(b core.Button, h Handler[T]) *Dispatcher[T] {
	d.handlers[b] = h
	return d
}

// Len returns the number of registered handlers.
func (d *Dispatcher[T]) Len() int {
	return len(d.handlers)
}

// Dispatch delivers ev to its handler and reports whether one was found.
func (d *Dispatcher[T]) Dispatch(ev core.ButtonEvent, target *T) bool {
	h, ok := d.handlers[ev.Button]
	if !ok {
		return false
	}
	h.HandleButton(ev, target)
	return true
}
