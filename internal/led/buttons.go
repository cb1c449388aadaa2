package led

import (
	"context"
	"time"

	"github.com/vovakirdan/serialpong/internal/core"
	"github.com/vovakirdan/serialpong/internal/input"
)

type cycleButton struct{}

func (cycleButton) HandleButton(_ core.ButtonEvent, c *Controller) { c.Cycle() }

type pauseButton struct{}

func (pauseButton) HandleButton(_ core.ButtonEvent, c *Controller) { c.TogglePause() }

type blinkButton struct{}

func (blinkButton) HandleButton(_ core.ButtonEvent, c *Controller) { c.Blink() }

type colorButton struct{}

func (colorButton) HandleButton(_ core.ButtonEvent, c *Controller) { c.NextColor() }

// Buttons returns the button bindings: 0 cycle, 1 pause, 2 blink,
// 3 next colour.
func Buttons() *input.Dispatcher[Controller] {
	return input.NewDispatcher[Controller]().
		On(core.Button0, cycleButton{}).
		On(core.Button1, pauseButton{}).
		On(core.Button2, blinkButton{}).
		On(core.Button3, colorButton{})
}

// Run drives c from its timer and from bus events until ctx is done.
// onChange, if not nil, is called with the new status after every change.
func Run(ctx context.Context, c *Controller, bus *input.Bus, onChange func(Status)) error {
	buttons := Buttons()
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	// arm points the timer at the next deadline; no deadline while paused.
	var expired <-chan time.Time
	arm := func() {
		timer.Stop()
		st := c.Status()
		if _, paused := st.Mode.(Paused); paused {
			expired = nil
			return
		}
		timer.Reset(max(time.Until(st.Due), 0))
		expired = timer.C
	}
	notify := func() {
		if onChange != nil {
			onChange(c.Status())
		}
	}

	arm()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-bus.Events():
			if buttons.Dispatch(ev, c) {
				notify()
			}
		case <-expired:
			if c.Tick() {
				notify()
			}
		}
		arm()
	}
}
