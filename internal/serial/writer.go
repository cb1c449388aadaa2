package serial

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// WriterSink sends bytes to an io.Writer such as stdout or an open tty.
//
// When a write fails part way with a transient error, the bytes already
// written are remembered; a retry of the same row only sends the remainder,
// so the link never sees a duplicated prefix.
type WriterSink struct {
	w        io.Writer
	terminal bool

	mu      sync.Mutex
	partial []byte // row whose prefix has been written
	sent    int    // bytes of partial already written
}

// NewWriterSink wraps w. Terminal detection uses golang.org/x/term when w
// is an *os.File.
func NewWriterSink(w io.Writer) *WriterSink {
	s := &WriterSink{w: w}
	if f, ok := w.(*os.File); ok {
		s.terminal = term.IsTerminal(int(f.Fd()))
	}
	return s
}

// NewStdout creates a sink writing to the process standard output.
func NewStdout() *WriterSink {
	return NewWriterSink(os.Stdout)
}

// IsTerminal implements TerminalSink.
func (s *WriterSink) IsTerminal() bool {
	return s.terminal
}

// Send implements Sink.
func (s *WriterSink) Send(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rest := p
	if s.partial != nil && bytes.Equal(s.partial, p) {
		rest = p[s.sent:]
	} else {
		s.partial, s.sent = nil, 0
	}

	n, err := s.w.Write(rest)
	if err == nil && n < len(rest) {
		err = io.ErrShortWrite
	}
	if err == nil {
		s.partial, s.sent = nil, 0
		return nil
	}

	if isTransientIO(err) {
		if s.partial == nil {
			s.partial = bytes.Clone(p)
		}
		s.sent += n
		return Transient(err)
	}
	s.partial, s.sent = nil, 0
	return fmt.Errorf("serial: write: %w", err)
}
