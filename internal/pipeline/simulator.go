package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/serialpong/internal/core"
	"github.com/vovakirdan/serialpong/internal/input"
	"github.com/vovakirdan/serialpong/internal/pong"
)

// Simulator is the producer task. Every tick it advances the game state,
// copies it into a freshly allocated frame and pushes the frame.
type Simulator struct {
	Geometry         pong.Geometry
	Motion           pong.Motion
	Initial          pong.State
	Tick             time.Duration
	MaxAllocFailures int // consecutive failures before the task gives up; <= 0 never

	Queue *Queue
	Alloc *Allocator

	// Buttons are drained once per tick and dispatched to Controls before
	// stepping. Both may be nil. No controls are bound by default.
	Buttons  *input.Bus
	Controls *input.Dispatcher[pong.State]

	Logger *log.Logger

	report reporter

	produced atomic.Uint64
	skipped  atomic.Uint64
	ticks    atomic.Uint64
}

// Produced returns the number of frames pushed.
func (s *Simulator) Produced() uint64 { return s.produced.Load() }

// Skipped returns the number of ticks whose frame could not be allocated.
func (s *Simulator) Skipped() uint64 { return s.skipped.Load() }

// Ticks returns the number of simulation steps taken.
func (s *Simulator) Ticks() uint64 { return s.ticks.Load() }

// Run loops until ctx is done, the queue closes, or allocation keeps
// failing. Only the last case is an error.
func (s *Simulator) Run(ctx context.Context) error {
	if s.Tick <= 0 {
		return fmt.Errorf("simulation: tick must be positive, got %s", s.Tick)
	}

	if s.Logger == nil {
		s.Logger = log.Default()
	}

	state := s.Initial.Normalize(s.Geometry)
	ticker := time.NewTicker(s.Tick)
	defer ticker.Stop()

	failures := 0
	var seq uint64

	for {
		if s.Buttons != nil {
			s.Buttons.Drain(func(ev core.ButtonEvent) {
				if s.Controls == nil || !s.Controls.Dispatch(ev, &state) {
					s.Logger.Debug("button ignored", "button", ev.Button)
				}
			})
		}

		state = pong.StepWith(s.Geometry, s.Motion, state)
		tick := s.ticks.Add(1)

		f, err := s.Alloc.Alloc()
		if err != nil {
			failures++
			s.skipped.Add(1)
			if s.MaxAllocFailures > 0 && failures >= s.MaxAllocFailures {
				err = fmt.Errorf("simulation: %d consecutive failures: %w", failures, err)
				s.report.report(TaskSimulation, SeverityFatal, err)
				return err
			}
			s.Logger.Warn("frame skipped", "tick", tick, "failures", failures, "err", err)
			s.report.report(TaskSimulation, SeverityWarning, err)
		} else {
			failures = 0
			seq++
			f.Seq = seq
			f.Tick = tick
			f.State = state
			f.ProducedAt = time.Now()

			if err := s.Queue.Push(ctx, f); err != nil {
				s.Alloc.Release(f)
				if errors.Is(err, ErrQueueClosed) || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("simulation: push: %w", err)
			}
			s.produced.Add(1)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
