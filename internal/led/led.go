// Package led implements the three-light traffic light exercise: a timer
// drives the lights, four buttons switch between cycling, pausing,
// blinking and stepping the active colour.
package led

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultPeriod is the timer period.
const DefaultPeriod = time.Second

// Color is one of the three lights.
type Color int

const (
	Red Color = iota
	Yellow
	Green

	colorCount = 3
)

// Next returns the following colour, wrapping Green to Red.
func (c Color) Next() Color {
	return (c + 1) % colorCount
}

func (c Color) String() string {
	switch c {
	case Red:
		return "red"
	case Yellow:
		return "yellow"
	case Green:
		return "green"
	default:
		return fmt.Sprintf("color(%d)", int(c))
	}
}

// Lights is the on/off state of the three lights, one bit per Color.
type Lights uint8

// Only returns a mask with just c lit.
func Only(c Color) Lights {
	return 1 << c
}

// On reports whether c is lit.
func (l Lights) On(c Color) bool {
	return l&Only(c) != 0
}

// String renders the mask as e.g. "R-G".
func (l Lights) String() string {
	var b strings.Builder
	for c, ch := range "RYG" {
		if l.On(Color(c)) {
			b.WriteRune(ch)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// Mode is the controller state. It is one of Cycling, Blinking or Paused.
type Mode interface {
	mode()
	String() string
}

// Cycling lights each colour in turn, one per period.
type Cycling struct{}

// Blinking toggles the active colour every period.
type Blinking struct{}

// Paused freezes the lights. Resume is the mode restored on unpause and
// Remaining the time left until the next period when pausing.
type Paused struct {
	Resume    Mode
	Remaining time.Duration
}

func (Cycling) mode()  {}
func (Blinking) mode() {}
func (Paused) mode()   {}

func (Cycling) String() string  { return "cycling" }
func (Blinking) String() string { return "blinking" }
func (p Paused) String() string { return "paused (" + p.Resume.String() + ")" }

// Status is a copy of the controller state.
type Status struct {
	Mode   Mode
	Color  Color
	Lights Lights
	Due    time.Time
}

// Controller owns the traffic light state. It is safe for concurrent use.
type Controller struct {
	mu     sync.Mutex
	period time.Duration
	now    func() time.Time

	mode   Mode
	color  Color
	lights Lights
	due    time.Time
}

// NewController starts in Cycling mode on Red with all lights off; the
// first period ends one period from now.
func NewController(period time.Duration, now func() time.Time) *Controller {
	if period <= 0 {
		period = DefaultPeriod
	}
	if now == nil {
		now = time.Now
	}
	return &Controller{
		period: period,
		now:    now,
		mode:   Cycling{},
		color:  Red,
		due:    now().Add(period),
	}
}

// Status returns the current state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{Mode: c.mode, Color: c.color, Lights: c.lights, Due: c.due}
}

// Lights returns the current on/off mask.
func (c *Controller) Lights() Lights {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lights
}

// Tick runs every period that has elapsed by now. It reports whether any
// period ran. Nothing happens while paused.
func (c *Controller) Tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, paused := c.mode.(Paused); paused {
		return false
	}
	now := c.now()
	if now.Before(c.due) {
		return false
	}

	c.update()
	c.due = c.due.Add(c.period)
	if !c.due.After(now) {
		// fell behind by more than a period, skip the missed ones
		c.due = now.Add(c.period)
	}
	return true
}

// update recomputes the lights from the mode, like one timer expiry.
func (c *Controller) update() {
	lights := Only(c.color)
	switch c.mode.(type) {
	case Paused:
		return
	case Cycling:
		c.color = c.color.Next()
	case Blinking:
		if c.lights.On(c.color) {
			lights = 0
		}
	}
	c.lights = lights
}

// setMode switches to m, keeping a pause in place.
func (c *Controller) setMode(m Mode) {
	if p, paused := c.mode.(Paused); paused {
		p.Resume = m
		c.mode = p
		return
	}
	c.mode = m
	c.update()
}

// Cycle switches to cycling and updates the lights at once.
func (c *Controller) Cycle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setMode(Cycling{})
}

// Blink switches to blinking and updates the lights at once.
func (c *Controller) Blink() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setMode(Blinking{})
}

// TogglePause pauses, remembering the time left in the current period, or
// resumes so that the next period ends after exactly that time.
func (c *Controller) TogglePause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if p, paused := c.mode.(Paused); paused {
		c.mode = p.Resume
		c.due = now.Add(p.Remaining)
		return
	}
	c.mode = Paused{Resume: c.mode, Remaining: max(c.due.Sub(now), 0)}
}

// NextColor makes the following colour active. Ignored while paused.
func (c *Controller) NextColor() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, paused := c.mode.(Paused); paused {
		return
	}
	c.color = c.color.Next()
	c.update()
}
