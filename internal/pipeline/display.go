package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/ansi"

	"github.com/vovakirdan/serialpong/internal/pong"
	"github.com/vovakirdan/serialpong/internal/serial"
)

// Retry backoff defaults for transient sink errors.
const (
	DefaultRetryBackoff    = time.Millisecond
	DefaultMaxRetryBackoff = 100 * time.Millisecond
)

// FrameObserver is notified of every frame after it has been rendered and
// before it is released. It must not retain f.
type FrameObserver interface {
	ObserveFrame(f *Frame)
}

// FrameObserverFunc is func type of FrameObserver.
type FrameObserverFunc func(f *Frame)

// ObserveFrame implements FrameObserver.
func (fn FrameObserverFunc) ObserveFrame(f *Frame) {
	fn(f)
}

// Display is the consumer task. It pops frames in FIFO order, transmits
// them row by row and releases them.
type Display struct {
	Geometry pong.Geometry
	Queue    *Queue
	Alloc    *Allocator
	Sink     serial.Sink

	// Redraw moves the cursor back over the frame after each one so a
	// terminal shows an animation rather than a scrolling log.
	Redraw bool

	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration

	Observers []FrameObserver
	Logger    *log.Logger

	report reporter
	buf    []byte

	rendered atomic.Uint64
	rows     atomic.Uint64
	bytes    atomic.Uint64
	retries  atomic.Uint64
}

// Rendered returns the number of frames fully transmitted.
func (d *Display) Rendered() uint64 { return d.rendered.Load() }

// Rows returns the number of rows transmitted.
func (d *Display) Rows() uint64 { return d.rows.Load() }

// Bytes returns the number of row bytes transmitted, escapes excluded.
func (d *Display) Bytes() uint64 { return d.bytes.Load() }

// Retries returns the number of transient send failures retried.
func (d *Display) Retries() uint64 { return d.retries.Load() }

// Run loops until ctx is done or the queue is closed and empty. A frame in
// progress when ctx is cancelled is still completed. Terminal sink errors
// stop the task.
func (d *Display) Run(ctx context.Context) error {
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	if d.RetryBackoff <= 0 {
		d.RetryBackoff = DefaultRetryBackoff
	}
	if d.MaxRetryBackoff < d.RetryBackoff {
		d.MaxRetryBackoff = max(DefaultMaxRetryBackoff, d.RetryBackoff)
	}
	d.buf = make([]byte, 0, d.Geometry.Width)

	if d.Redraw {
		if err := d.send(ctx, []byte(ansi.HideCursor)); err != nil {
			return d.fail(err)
		}
		defer d.restoreCursor(ctx)
	}

	for {
		f, err := d.Queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) || ctx.Err() != nil {
				return nil
			}
			return d.fail(err)
		}

		err = d.render(ctx, f)
		if err == nil {
			for _, o := range d.Observers {
				o.ObserveFrame(f)
			}
		}
		d.Alloc.Release(f)

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return d.fail(err)
		}
		d.rendered.Add(1)
	}
}

func (d *Display) fail(err error) error {
	err = fmt.Errorf("display: %w", err)
	d.report.report(TaskDisplay, SeverityFatal, err)
	return err
}

// render transmits one frame: the rows top to bottom, then the redraw
// epilogue and frame boundary if enabled.
func (d *Display) render(ctx context.Context, f *Frame) error {
	for row := range d.Geometry.Height {
		d.buf = pong.AppendRow(d.buf[:0], d.Geometry, f.State, row)
		if err := d.send(ctx, d.buf); err != nil {
			return fmt.Errorf("frame %d row %d: %w", f.Seq, row, err)
		}
		d.rows.Add(1)
		d.bytes.Add(uint64(len(d.buf)))
	}

	if d.Redraw {
		if err := d.send(ctx, []byte("\r"+ansi.CursorUp(d.lineFeeds()))); err != nil {
			return fmt.Errorf("frame %d redraw: %w", f.Seq, err)
		}
	}
	if fs, ok := d.Sink.(serial.FrameSink); ok {
		if err := d.retry(ctx, fs.FrameDone); err != nil {
			return fmt.Errorf("frame %d boundary: %w", f.Seq, err)
		}
	}
	return nil
}

// lineFeeds is the number of newlines in one frame; only inner rows end
// with one.
func (d *Display) lineFeeds() int {
	return d.Geometry.Height - 2
}

func (d *Display) send(ctx context.Context, p []byte) error {
	return d.retry(ctx, func(ctx context.Context) error {
		return d.Sink.Send(ctx, p)
	})
}

// retry runs op until it succeeds or fails with a non-transient error,
// backing off between attempts. op always gets an uncancelled context so
// in-flight work completes; only the backoff wait observes ctx.
func (d *Display) retry(ctx context.Context, op func(context.Context) error) error {
	opCtx := context.WithoutCancel(ctx)
	var policy *backoff.ExponentialBackOff

	for {
		err := op(opCtx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, serial.ErrTransient) {
			return err
		}

		if policy == nil {
			policy = d.newBackOff()
		}
		wait := policy.NextBackOff()

		n := d.retries.Add(1)
		if n == 1 || n%100 == 0 {
			d.Logger.Debug("sink busy, retrying", "backoff", wait, "retries", n, "err", err)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// newBackOff returns a doubling, unjittered schedule that never gives up.
func (d *Display) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.RetryBackoff
	b.MaxInterval = d.MaxRetryBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// restoreCursor moves below the last frame and shows the cursor again.
func (d *Display) restoreCursor(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()

	seq := ansi.CursorDown(d.lineFeeds()) + "\r\n" + ansi.ShowCursor
	if err := d.send(ctx, []byte(seq)); err != nil {
		d.Logger.Debug("cannot restore cursor", "err", err)
	}
}
