package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/serialpong/internal/config"
	"github.com/vovakirdan/serialpong/internal/input"
	"github.com/vovakirdan/serialpong/internal/pong"
	"github.com/vovakirdan/serialpong/internal/serial"
)

const diagnosticsBuffer = 64

// ErrAlreadyRun is returned by Run on a pipeline that has already run.
var ErrAlreadyRun = errors.New("pipeline already run")

// Options configure a pipeline beyond what the config file holds.
type Options struct {
	Sink      serial.Sink
	Buttons   *input.Bus
	Controls  *input.Dispatcher[pong.State]
	Observers []FrameObserver
	Logger    *log.Logger

	// OnDiagnostic is called from the runner goroutine for every reported
	// diagnostic. It may be nil; diagnostics are logged regardless.
	OnDiagnostic func(Diagnostic)
}

// Stats summarizes a finished run.
type Stats struct {
	Ticks              uint64
	Produced           uint64
	Rendered           uint64
	Skipped            uint64
	Dropped            uint64
	Leftover           int
	Rows               uint64
	Bytes              uint64
	Retries            uint64
	MaxQueueDepth      int
	DiagnosticsDropped uint64
	Elapsed            time.Duration
}

// Pipeline wires the simulation and display tasks around one queue.
type Pipeline struct {
	cfg    config.PipelineConfig
	opts   Options
	logger *log.Logger

	queue *Queue
	alloc *Allocator
	sim   *Simulator
	disp  *Display
	diag  chan Diagnostic

	diagDropped atomic.Uint64
	started     atomic.Bool
}

// New builds a pipeline from a validated configuration.
func New(cfg config.PipelineConfig, opts Options) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Sink == nil {
		return nil, errors.New("pipeline: no sink")
	}
	motion, err := pong.ParseMotion(cfg.Physics.Motion)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	p := &Pipeline{
		cfg:    cfg,
		opts:   opts,
		logger: logger,
		alloc:  NewAllocator(cfg.Simulation.MaxOutstandingFrames),
		diag:   make(chan Diagnostic, diagnosticsBuffer),
	}
	p.queue = NewQueue(cfg.Queue.Capacity, cfg.Queue.Overflow, p.alloc.Release)

	rep := reporter{ch: p.diag, dropped: func() { p.diagDropped.Add(1) }}

	p.sim = &Simulator{
		Geometry:         cfg.Screen,
		Motion:           motion,
		Initial:          cfg.InitialState(),
		Tick:             cfg.Simulation.Tick,
		MaxAllocFailures: cfg.Simulation.MaxAllocFailures,
		Queue:            p.queue,
		Alloc:            p.alloc,
		Buttons:          opts.Buttons,
		Controls:         opts.Controls,
		Logger:           logger.WithPrefix(TaskSimulation),
		report:           rep,
	}
	p.disp = &Display{
		Geometry:        cfg.Screen,
		Queue:           p.queue,
		Alloc:           p.alloc,
		Sink:            opts.Sink,
		Redraw:          ResolveRedraw(cfg.Display.Redraw, opts.Sink),
		RetryBackoff:    cfg.Display.RetryBackoff,
		MaxRetryBackoff: cfg.Display.MaxRetryBackoff,
		Observers:       opts.Observers,
		Logger:          logger.WithPrefix(TaskDisplay),
		report:          rep,
	}
	return p, nil
}

// ResolveRedraw decides whether cursor redraw sequences are emitted.
func ResolveRedraw(mode string, sink serial.Sink) bool {
	switch mode {
	case config.RedrawAlways:
		return true
	case config.RedrawNever:
		return false
	default:
		return serial.IsTerminal(sink)
	}
}

// Queue returns the frame queue.
func (p *Pipeline) Queue() *Queue { return p.queue }

// Allocator returns the frame allocator.
func (p *Pipeline) Allocator() *Allocator { return p.alloc }

// Redraw reports whether the display emits cursor redraw sequences.
func (p *Pipeline) Redraw() bool { return p.disp.Redraw }

// Run starts both tasks and blocks until they have stopped.
//
// Cancelling ctx stops the simulator at its next tick and lets the display
// finish the frame it is transmitting. When the simulator stops for any
// reason the queue is closed and the display drains what is left. A
// terminal display error stops the simulator. Frames still queued at exit
// are released and counted as leftover.
//
// A pipeline runs once; later calls return ErrAlreadyRun.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	if !p.started.CompareAndSwap(false, true) {
		return Stats{}, ErrAlreadyRun
	}
	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.logger.Info("pipeline started",
		"variant", p.cfg.Variant,
		"screen", fmt.Sprintf("%dx%d", p.cfg.Screen.Width, p.cfg.Screen.Height),
		"tick", p.cfg.Simulation.Tick,
		"motion", p.sim.Motion,
		"redraw", p.disp.Redraw,
	)

	var (
		wg              sync.WaitGroup
		simErr, dispErr error
		diagDone        = make(chan struct{})
	)

	go func() {
		defer close(diagDone)
		for d := range p.diag {
			p.handleDiagnostic(d)
		}
	}()

	wg.Add(2)
	go func() {
		defer wg.Done()
		simErr = p.sim.Run(ctx)
		p.queue.Close()
	}()
	go func() {
		defer wg.Done()
		dispErr = p.disp.Run(ctx)
		if dispErr != nil {
			cancel()
		}
	}()
	wg.Wait()

	leftover := p.queue.Drain()
	for _, f := range leftover {
		p.alloc.Release(f)
	}

	close(p.diag)
	<-diagDone

	qs := p.queue.Stats()
	stats := Stats{
		Ticks:              p.sim.Ticks(),
		Produced:           p.sim.Produced(),
		Rendered:           p.disp.Rendered(),
		Skipped:            p.sim.Skipped(),
		Dropped:            qs.Dropped,
		Leftover:           len(leftover),
		Rows:               p.disp.Rows(),
		Bytes:              p.disp.Bytes(),
		Retries:            p.disp.Retries(),
		MaxQueueDepth:      qs.MaxDepth,
		DiagnosticsDropped: p.diagDropped.Load(),
		Elapsed:            time.Since(start),
	}

	err := errors.Join(simErr, dispErr)
	p.logger.Info("pipeline stopped",
		"produced", stats.Produced,
		"rendered", stats.Rendered,
		"leftover", stats.Leftover,
		"err", err,
	)
	return stats, err
}

func (p *Pipeline) handleDiagnostic(d Diagnostic) {
	switch d.Severity {
	case SeverityFatal:
		p.logger.Error("task failed", "task", d.Task, "err", d.Err)
	default:
		p.logger.Warn("task diagnostic", "task", d.Task, "err", d.Err)
	}
	if p.opts.OnDiagnostic != nil {
		p.opts.OnDiagnostic(d)
	}
}
