package main

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/serialpong/internal/broker"
	"github.com/vovakirdan/serialpong/internal/config"
	"github.com/vovakirdan/serialpong/internal/input"
	"github.com/vovakirdan/serialpong/internal/pipeline"
	"github.com/vovakirdan/serialpong/internal/pong"
	"github.com/vovakirdan/serialpong/internal/serial"
	"github.com/vovakirdan/serialpong/internal/storage"
	"github.com/vovakirdan/serialpong/internal/telemetry"
)

// session runs one pipeline with the optional run journal and telemetry.
type session struct {
	cfg       config.PipelineConfig
	sink      serial.Sink
	logger    *log.Logger
	journal   bool
	maxFrames uint64 // stop after this many frames; 0 = run until cancelled
	buttons   *input.Bus
}

// newButtonBus creates the debounced button bus the simulation drains.
func newButtonBus(cfg config.PipelineConfig) *input.Bus {
	return input.NewBus(cfg.Input.BufferSize, input.NewDebouncer(cfg.Input.Debounce))
}

func (s session) run(ctx context.Context) (pipeline.Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var observers []pipeline.FrameObserver

	if s.maxFrames > 0 {
		var seen atomic.Uint64
		observers = append(observers, pipeline.FrameObserverFunc(func(*pipeline.Frame) {
			if seen.Add(1) == s.maxFrames {
				cancel()
			}
		}))
	}

	if s.cfg.Telemetry.Enabled {
		client, err := broker.Connect(ctx, s.cfg.Telemetry.MQTT, "telemetry", s.logger)
		if err != nil {
			s.logger.Warn("telemetry disabled", "err", err)
		} else {
			pub := telemetry.NewPublisher(client, s.cfg.Telemetry.MQTT.Topic, s.cfg.Telemetry.MQTT.QoS,
				s.cfg.Telemetry.MQTT.PublishTimeout, s.cfg.Screen, s.logger.WithPrefix("telemetry"))
			defer pub.Close()
			go pub.Run(ctx) //nolint:errcheck // Run only returns nil
			observers = append(observers, pub)
		}
	}

	var (
		store *storage.Store
		run   storage.Run
	)
	if s.journal {
		var err error
		store, err = storage.Open(s.cfg.Storage.DBPath)
		if err != nil {
			s.logger.Warn("could not open run journal", "error", err)
			// Continue without journal
		} else {
			defer store.Close()
			if run, err = store.StartRun(s.cfg, time.Now()); err != nil {
				s.logger.Warn("could not start journal entry", "error", err)
				store = nil
			}
		}
	}

	buttons := s.buttons
	if buttons == nil {
		buttons = newButtonBus(s.cfg)
	}

	// Paddles cycle on their own, so no button has a pong handler.
	opts := pipeline.Options{
		Sink:      s.sink,
		Buttons:   buttons,
		Controls:  input.NewDispatcher[pong.State](),
		Observers: observers,
		Logger:    s.logger,
	}
	if store != nil {
		opts.OnDiagnostic = func(d pipeline.Diagnostic) {
			//nolint:errcheck // Best-effort, the run continues regardless
			store.RecordDiagnostic(run.ID, d.Task, d.Severity.String(), d.Err.Error(), d.At)
		}
	}

	p, err := pipeline.New(s.cfg, opts)
	if err != nil {
		return pipeline.Stats{}, err
	}

	stats, runErr := p.Run(ctx)

	if store != nil {
		counters := storage.RunCounters{
			Produced: stats.Produced,
			Rendered: stats.Rendered,
			Skipped:  stats.Skipped,
			Dropped:  stats.Dropped,
			Leftover: stats.Leftover,
			Retries:  stats.Retries,
		}
		if err := store.FinishRun(run.ID, time.Now(), counters, runErr); err != nil {
			s.logger.Warn("could not finish journal entry", "error", err)
		} else {
			s.logger.Debug("run journaled", "id", run.ID)
		}
	}

	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	return stats, runErr
}
