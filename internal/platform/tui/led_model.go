package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/serialpong/internal/core"
	"github.com/vovakirdan/serialpong/internal/input"
	"github.com/vovakirdan/serialpong/internal/led"
)

const ledPollInterval = 20 * time.Millisecond

// LEDModel runs the traffic light exercise. Number keys act as the four
// board buttons; presses go through the debounced bus and are dispatched
// on the next poll.
type LEDModel struct {
	ctrl     *led.Controller
	bus      *input.Bus
	buttons  *input.Dispatcher[led.Controller]
	keys     KeyMap
	help     help.Model
	presses  int
	quitting bool
}

// NewLEDModel creates the model around a controller and its input bus.
func NewLEDModel(ctrl *led.Controller, bus *input.Bus) LEDModel {
	return LEDModel{
		ctrl:    ctrl,
		bus:     bus,
		buttons: led.Buttons(),
		keys:    DefaultKeyMap(),
		help:    help.New(),
	}
}

// Init implements tea.Model.
func (m LEDModel) Init() tea.Cmd {
	return tickCmd(ledPollInterval)
}

// Update implements tea.Model.
func (m LEDModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.keys.IsQuit(msg) {
			m.quitting = true
			return m, tea.Quit
		}
		if b, ok := m.keys.MapButton(msg); ok {
			m.bus.Publish(core.ButtonEvent{Button: b, At: time.Now()})
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case TickMsg:
		m.presses += m.bus.Drain(func(ev core.ButtonEvent) {
			m.buttons.Dispatch(ev, m.ctrl)
		})
		m.ctrl.Tick()
		return m, tickCmd(ledPollInterval)
	}
	return m, nil
}

// View implements tea.Model.
func (m LEDModel) View() string {
	if m.quitting {
		return ""
	}

	st := m.ctrl.Status()
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Traffic light"))
	sb.WriteString("\n\n  ")
	sb.WriteString(RenderLights(st.Lights))
	sb.WriteString("\n\n")
	sb.WriteString(statusStyle.Render(fmt.Sprintf("mode %s  ·  active %s  ·  presses %d  ·  bounced %d",
		st.Mode, st.Color, m.presses, m.bus.Bounced())))
	sb.WriteString("\n\n")
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

// RunLED runs the traffic light exercise until the user quits.
func RunLED(ctrl *led.Controller, bus *input.Bus) error {
	p := tea.NewProgram(NewLEDModel(ctrl, bus), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
