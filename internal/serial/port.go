package serial

import (
	"fmt"

	"github.com/pkg/term"
)

// DefaultBaud is used when no baud rate is configured.
const DefaultBaud = 115200

// Port is a tty serial line opened in raw mode.
type Port struct {
	*WriterSink
	device string
	t      *term.Term
}

// OpenPort opens device (e.g. /dev/ttyUSB0) at the given baud rate in raw
// mode.
func OpenPort(device string, baud int) (*Port, error) {
	if device == "" {
		return nil, fmt.Errorf("serial: no tty device configured")
	}
	if baud <= 0 {
		baud = DefaultBaud
	}

	t, err := term.Open(device, term.Speed(baud), term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("serial: cannot open %s: %w", device, err)
	}

	return &Port{
		WriterSink: &WriterSink{w: t, terminal: true},
		device:     device,
		t:          t,
	}, nil
}

// Device returns the tty path.
func (p *Port) Device() string {
	return p.device
}

// Close restores the line settings and closes the device.
func (p *Port) Close() error {
	//nolint:errcheck // Best-effort restore, the device is closed regardless
	p.t.Restore()
	return p.t.Close()
}
