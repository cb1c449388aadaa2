package pipeline

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/serialpong/internal/config"
	"github.com/vovakirdan/serialpong/internal/core"
	"github.com/vovakirdan/serialpong/internal/input"
	"github.com/vovakirdan/serialpong/internal/pong"
	"github.com/vovakirdan/serialpong/internal/serial"
)

// recordSink captures every send and cancels once enough frames arrived.
type recordSink struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	sends    int
	frames   int
	stopAt   int
	cancel   context.CancelFunc
	failEven bool // every other send fails transiently
	attempts int
	terminal bool
}

func (s *recordSink) Send(_ context.Context, p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.failEven && s.attempts%2 == 0 {
		return serial.Transient(io.ErrShortWrite)
	}
	s.buf.Write(p)
	s.sends++
	return nil
}

func (s *recordSink) FrameDone(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	if s.stopAt > 0 && s.frames == s.stopAt && s.cancel != nil {
		s.cancel()
	}
	return nil
}

func (s *recordSink) IsTerminal() bool { return s.terminal }

func (s *recordSink) output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func testConfig() config.PipelineConfig {
	cfg := config.DefaultPipelineConfig()
	cfg.Simulation.Tick = time.Millisecond
	cfg.Display.Redraw = config.RedrawNever
	return cfg
}

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// expectedOutput renders n consecutive frames from the configured start.
func expectedOutput(cfg config.PipelineConfig, n int) string {
	motion, _ := pong.ParseMotion(cfg.Physics.Motion)
	s := cfg.InitialState()
	var b strings.Builder
	for range n {
		s = pong.StepWith(cfg.Screen, motion, s)
		b.Write(pong.EncodeFrame(cfg.Screen, s))
	}
	return b.String()
}

func TestPipelineByteExactOutput(t *testing.T) {
	cfg := testConfig()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &recordSink{stopAt: 5, cancel: cancel}
	p, err := New(cfg, Options{Sink: sink, Logger: quietLogger()})
	require.NoError(t, err)

	stats, err := p.Run(ctx)
	require.NoError(t, err)

	require.GreaterOrEqual(t, stats.Rendered, uint64(5))
	assert.Equal(t, expectedOutput(cfg, int(stats.Rendered)), sink.output())
	assert.Equal(t, stats.Rendered*uint64(cfg.Screen.Height), stats.Rows)
	assert.Equal(t, stats.Rendered*uint64(cfg.Screen.FrameSize()), stats.Bytes)
	assert.Equal(t, stats.Produced, stats.Rendered+uint64(stats.Leftover))
	assert.Zero(t, p.Allocator().Outstanding(), "every frame is released")
}

func TestPipelineRetriesTransientErrors(t *testing.T) {
	cfg := testConfig()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &recordSink{stopAt: 3, cancel: cancel, failEven: true}
	p, err := New(cfg, Options{Sink: sink, Logger: quietLogger()})
	require.NoError(t, err)

	stats, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Positive(t, stats.Retries)
	assert.Equal(t, expectedOutput(cfg, int(stats.Rendered)), sink.output())
}

// blockingSink blocks every send until release is closed.
type blockingSink struct {
	release chan struct{}
	sent    bytes.Buffer
}

func (s *blockingSink) Send(_ context.Context, p []byte) error {
	<-s.release
	s.sent.Write(p)
	return nil
}

func TestPipelineAllocationExhaustion(t *testing.T) {
	cfg := testConfig()
	cfg.Simulation.MaxOutstandingFrames = 1
	cfg.Simulation.MaxAllocFailures = 3

	sink := &blockingSink{release: make(chan struct{})}
	var (
		mu    sync.Mutex
		diags []Diagnostic
	)
	p, err := New(cfg, Options{
		Sink:   sink,
		Logger: quietLogger(),
		OnDiagnostic: func(d Diagnostic) {
			mu.Lock()
			diags = append(diags, d)
			mu.Unlock()
			if d.Severity == SeverityFatal {
				close(sink.release)
			}
		},
	})
	require.NoError(t, err)

	stats, err := p.Run(context.Background())
	require.ErrorIs(t, err, ErrAllocationExhausted)

	assert.Equal(t, uint64(1), stats.Produced)
	assert.Equal(t, uint64(1), stats.Rendered, "the in-flight frame is finished")
	assert.Equal(t, uint64(3), stats.Skipped)
	assert.Equal(t, expectedOutput(cfg, 1), sink.sent.String())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, diags, 3)
	assert.Equal(t, SeverityWarning, diags[0].Severity)
	assert.Equal(t, SeverityFatal, diags[2].Severity)
	assert.Equal(t, TaskSimulation, diags[2].Task)
}

// brokenSink fails every send terminally.
type brokenSink struct{}

func (brokenSink) Send(context.Context, []byte) error { return io.ErrClosedPipe }

func TestPipelineTerminalSinkError(t *testing.T) {
	p, err := New(testConfig(), Options{Sink: brokenSink{}, Logger: quietLogger()})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background())
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, io.ErrClosedPipe)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop after a terminal sink error")
	}
	assert.Zero(t, p.Allocator().Outstanding())
}

func TestPipelineRedraw(t *testing.T) {
	cfg := testConfig()
	cfg.Display.Redraw = config.RedrawAuto
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &recordSink{stopAt: 2, cancel: cancel, terminal: true}
	p, err := New(cfg, Options{Sink: sink, Logger: quietLogger()})
	require.NoError(t, err)
	require.True(t, p.Redraw())

	_, err = p.Run(ctx)
	require.NoError(t, err)

	out := sink.output()
	assert.True(t, strings.HasPrefix(out, ansi.HideCursor))
	assert.Contains(t, out, "\r"+ansi.CursorUp(cfg.Screen.Height-2))
	assert.True(t, strings.HasSuffix(out, ansi.ShowCursor))
}

func TestResolveRedraw(t *testing.T) {
	term := &recordSink{terminal: true}
	plain := &recordSink{}

	assert.True(t, ResolveRedraw(config.RedrawAuto, term))
	assert.False(t, ResolveRedraw(config.RedrawAuto, plain))
	assert.True(t, ResolveRedraw(config.RedrawAlways, plain))
	assert.False(t, ResolveRedraw(config.RedrawNever, term))
}

func TestPipelineButtonsReachControls(t *testing.T) {
	cfg := testConfig()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := input.NewBus(4, nil)
	pressed := make(chan core.Button, 1)
	controls := input.NewDispatcher[pong.State]().
		On(core.Button2, input.HandlerFunc[pong.State](func(ev core.ButtonEvent, _ *pong.State) {
			pressed <- ev.Button
			cancel()
		}))
	require.True(t, bus.Publish(core.ButtonEvent{Button: core.Button2, At: time.Now()}))

	p, err := New(cfg, Options{Sink: &serial.Discard{}, Buttons: bus, Controls: controls, Logger: quietLogger()})
	require.NoError(t, err)

	_, err = p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Button2, <-pressed)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Simulation.Tick = 0
	_, err := New(cfg, Options{Sink: &serial.Discard{}})
	require.Error(t, err)

	_, err = New(testConfig(), Options{})
	require.Error(t, err)
}

// slowSink takes delay per row, so the display falls behind any fast tick.
type slowSink struct {
	delay time.Duration
}

func (s slowSink) Send(context.Context, []byte) error {
	time.Sleep(s.delay)
	return nil
}

func TestPipelineSlowDisplayKeepsRunning(t *testing.T) {
	cfg := testConfig()
	cfg.Simulation.Tick = 50 * time.Microsecond
	require.Zero(t, cfg.Simulation.MaxOutstandingFrames, "frames are unbounded by default")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	p, err := New(cfg, Options{Sink: slowSink{delay: 100 * time.Microsecond}, Logger: quietLogger()})
	require.NoError(t, err)

	stats, err := p.Run(ctx)
	require.NoError(t, err)

	assert.Zero(t, stats.Skipped, "a lagging display never starves the simulation")
	assert.Greater(t, stats.Produced, stats.Rendered)
	assert.Equal(t, stats.Produced, stats.Rendered+uint64(stats.Leftover))
	assert.Zero(t, p.Allocator().Outstanding())
}

// midFrameSink cancels the run after cancelAt rows have been sent.
type midFrameSink struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	rows     int
	cancelAt int
	cancel   context.CancelFunc
}

func (s *midFrameSink) Send(_ context.Context, p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Write(p)
	s.rows++
	if s.rows == s.cancelAt {
		s.cancel()
	}
	return nil
}

func TestPipelineFinishesFrameInFlightOnCancel(t *testing.T) {
	cfg := testConfig()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &midFrameSink{cancelAt: 5, cancel: cancel}
	require.Less(t, sink.cancelAt, cfg.Screen.Height)

	p, err := New(cfg, Options{Sink: sink, Logger: quietLogger()})
	require.NoError(t, err)

	stats, err := p.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), stats.Rendered)
	assert.Equal(t, expectedOutput(cfg, 1), sink.buf.String(), "the interrupted frame is complete")
	assert.Zero(t, p.Allocator().Outstanding())
}

func TestPipelineRunsOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sink := &recordSink{stopAt: 1, cancel: cancel}
	p, err := New(testConfig(), Options{Sink: sink, Logger: quietLogger()})
	require.NoError(t, err)

	_, err = p.Run(ctx)
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.ErrorIs(t, err, ErrAlreadyRun)
}

func TestDisplayBackOffDoublesUpToCap(t *testing.T) {
	d := &Display{RetryBackoff: time.Millisecond, MaxRetryBackoff: 8 * time.Millisecond}
	b := d.newBackOff()

	var got []time.Duration
	for range 5 {
		got = append(got, b.NextBackOff())
	}
	assert.Equal(t, []time.Duration{
		time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond, 8 * time.Millisecond, 8 * time.Millisecond,
	}, got)
}
