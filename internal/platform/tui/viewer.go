package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/serialpong/internal/core"
	"github.com/vovakirdan/serialpong/internal/input"
	"github.com/vovakirdan/serialpong/internal/serial"
)

// FrameMsg carries the rows of one complete frame.
type FrameMsg struct {
	Seq  uint64
	Rows []string
}

// viewerClosedMsg reports that the frame source has ended.
type viewerClosedMsg struct{ err error }

// ViewerModel shows the most recent frame and a status line.
type ViewerModel struct {
	title    string
	keys     KeyMap
	rows     []string
	frames   uint64
	next     tea.Cmd // fetches the following frame, nil when frames are pushed
	buttons  *input.Bus
	onQuit   func()
	closed   error
	ended    bool
	quitting bool
}

// NewViewerModel creates a viewer whose frames arrive as FrameMsg sent to
// the program. onQuit, if not nil, runs when the user quits.
func NewViewerModel(title string, onQuit func()) ViewerModel {
	return ViewerModel{title: title, keys: DefaultKeyMap(), onQuit: onQuit}
}

// WithButtons returns a copy of m that publishes button keys to bus.
func (m ViewerModel) WithButtons(bus *input.Bus) ViewerModel {
	m.buttons = bus
	return m
}

// Init implements tea.Model.
func (m ViewerModel) Init() tea.Cmd {
	return m.next
}

// Update implements tea.Model.
func (m ViewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.keys.IsQuit(msg) {
			m.quitting = true
			if m.onQuit != nil {
				m.onQuit()
			}
			return m, tea.Quit
		}
		if b, ok := m.keys.MapButton(msg); ok && m.buttons != nil {
			m.buttons.Publish(core.ButtonEvent{Button: b, At: time.Now()})
		}
	case FrameMsg:
		m.rows = msg.Rows
		m.frames++
		return m, m.next
	case viewerClosedMsg:
		m.ended = true
		m.closed = msg.err
		return m, nil
	}
	return m, nil
}

// View implements tea.Model.
func (m ViewerModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("\n\n")
	if len(m.rows) == 0 {
		sb.WriteString(statusStyle.Render("waiting for the first frame..."))
	} else {
		sb.WriteString(RenderFrame(m.rows))
	}
	sb.WriteString("\n\n")

	status := fmt.Sprintf("frames %d  ·  q quit", m.frames)
	switch {
	case m.closed != nil:
		status = fmt.Sprintf("frames %d  ·  disconnected: %v  ·  q quit", m.frames, m.closed)
	case m.ended:
		status = fmt.Sprintf("frames %d  ·  stream ended  ·  q quit", m.frames)
	}
	sb.WriteString(statusStyle.Render(status))
	return sb.String()
}

// ViewerSink is a serial sink that hands each complete frame to a Bubble
// Tea program.
type ViewerSink struct {
	mu      sync.Mutex
	pending []string
	seq     uint64
	send    func(tea.Msg)
	frames  atomic.Uint64
}

// NewViewerSink creates a sink delivering frames through send, usually
// (*tea.Program).Send.
func NewViewerSink(send func(tea.Msg)) *ViewerSink {
	return &ViewerSink{send: send}
}

// Send implements serial.Sink.
func (s *ViewerSink) Send(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.pending = append(s.pending, string(p))
	s.mu.Unlock()
	return nil
}

// FrameDone implements serial.FrameSink.
func (s *ViewerSink) FrameDone(context.Context) error {
	s.mu.Lock()
	rows := s.pending
	s.pending = nil
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	s.frames.Add(1)
	s.send(FrameMsg{Seq: seq, Rows: rows})
	return nil
}

// Frames returns the number of frames delivered.
func (s *ViewerSink) Frames() uint64 {
	return s.frames.Load()
}

// RunViewer runs the local viewer until the user quits or ctx is done.
// start is called with the sink once the program exists and must start
// the pipeline; cancel stops it when the user quits. Button keys are
// published to buttons when it is not nil.
func RunViewer(ctx context.Context, title string, buttons *input.Bus, cancel context.CancelFunc, start func(sink serial.Sink)) error {
	model := NewViewerModel(title, cancel).WithButtons(buttons)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	start(NewViewerSink(p.Send))

	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		// Program killed by our own cancellation
		return nil
	}
	return err
}

// hubFrames returns a command reading one frame of height rows from v.
func hubFrames(v *serial.Viewer, height int) tea.Cmd {
	return func() tea.Msg {
		rows := make([]string, 0, height)
		for len(rows) < height {
			row, ok := <-v.Rows()
			if !ok {
				if v.Kicked() {
					return viewerClosedMsg{err: serial.ErrViewerTooSlow}
				}
				return viewerClosedMsg{}
			}
			rows = append(rows, string(row))
		}
		return FrameMsg{Rows: rows}
	}
}

// NewHubViewerModel creates a viewer fed from a hub viewer. The hub must
// not be in terminal mode so every item is exactly one row.
func NewHubViewerModel(title string, v *serial.Viewer, height int) ViewerModel {
	m := NewViewerModel(title, v.Close)
	m.next = hubFrames(v, height)
	return m
}
