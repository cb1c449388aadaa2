// Package input turns raw button presses into debounced events and routes
// them to per-button handlers.
package input

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vovakirdan/serialpong/internal/core"
)

// DefaultDebounce is the minimum spacing between two accepted presses of
// the same button.
const DefaultDebounce = 50 * time.Millisecond

// Debouncer rejects presses that follow an accepted press of the same
// button too closely. Each button has its own single-token limiter, so
// presses are timed by their own timestamps rather than the wall clock.
type Debouncer struct {
	window time.Duration

	mu       sync.Mutex
	limiters [core.ButtonCount]*rate.Limiter
}

// NewDebouncer creates a debouncer with the given minimum spacing.
// A non-positive window disables debouncing.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Accept reports whether ev should be delivered. Rejected presses do not
// extend the window.
func (d *Debouncer) Accept(ev core.ButtonEvent) bool {
	if !ev.Button.Valid() {
		return false
	}
	if d.window <= 0 {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	lim := d.limiters[ev.Button]
	if lim == nil {
		lim = rate.NewLimiter(rate.Every(d.window), 1)
		d.limiters[ev.Button] = lim
	}
	return lim.AllowN(ev.At, 1)
}
