// Package serial provides the byte sinks the display task transmits rows
// through: plain writers, tty serial ports, an MQTT bridge and a fan-out hub
// for remote viewers.
package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
)

var (
	// ErrTransient indicates the sink was busy or wrote short. The same bytes
	// may be sent again; nothing partial was committed to the link.
	ErrTransient = errors.New("transient transmission failure")

	// ErrClosed indicates the sink has been closed.
	ErrClosed = errors.New("sink closed")
)

// Sink transmits byte sequences exactly as given, adding no framing.
// Send blocks until the bytes are handed to the link or fails with an error
// wrapping ErrTransient (retry the same bytes) or any other error (terminal).
type Sink interface {
	Send(ctx context.Context, p []byte) error
}

// TerminalSink is implemented by sinks whose far end is a character
// terminal able to interpret cursor escape sequences.
type TerminalSink interface {
	IsTerminal() bool
}

// FrameSink is implemented by sinks that need to know where one full frame
// ends, e.g. to hand complete frames to a viewer.
type FrameSink interface {
	FrameDone(ctx context.Context) error
}

// IsTerminal reports whether s declares a terminal far end.
func IsTerminal(s Sink) bool {
	ts, ok := s.(TerminalSink)
	return ok && ts.IsTerminal()
}

// Close closes s if it implements io.Closer.
func Close(s Sink) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Transient wraps err so that errors.Is(err, ErrTransient) holds.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// isTransientIO classifies low level write errors.
func isTransientIO(err error) bool {
	if os.IsTimeout(err) {
		return true
	}
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR) || errors.Is(err, io.ErrShortWrite)
}
