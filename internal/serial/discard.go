package serial

import (
	"context"
	"sync/atomic"
)

// Discard accepts and drops all bytes, counting them.
type Discard struct {
	bytes atomic.Uint64
	sends atomic.Uint64
}

// Send implements Sink.
func (d *Discard) Send(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.sends.Add(1)
	d.bytes.Add(uint64(len(p)))
	return nil
}

// Bytes returns the number of bytes accepted.
func (d *Discard) Bytes() uint64 { return d.bytes.Load() }

// Sends returns the number of Send calls accepted.
func (d *Discard) Sends() uint64 { return d.sends.Load() }
