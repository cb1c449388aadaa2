package main

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/serialpong/internal/config"
	"github.com/vovakirdan/serialpong/internal/core"
	"github.com/vovakirdan/serialpong/internal/serial"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func legacyConfig(t *testing.T) config.PipelineConfig {
	t.Helper()
	cfg := config.DefaultPipelineConfig()
	require.NoError(t, config.ApplyVariant(&cfg, config.VariantLegacy))
	cfg.Simulation.Tick = time.Millisecond
	return cfg
}

func TestHubConfigDisablesRedraw(t *testing.T) {
	cfg := legacyConfig(t)
	require.Equal(t, config.RedrawAlways, cfg.Display.Redraw)

	cfg = hubConfig(cfg)
	assert.Equal(t, "hub", cfg.Sink.Kind)
	assert.Equal(t, config.RedrawNever, cfg.Display.Redraw)
	assert.NoError(t, cfg.Validate())
}

func TestServedFramesStartWithBorder(t *testing.T) {
	cfg := hubConfig(legacyConfig(t))
	hub := serial.NewHub(4*cfg.Screen.Height, false)
	defer hub.Close()

	v, err := hub.Attach("viewer")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		s := session{cfg: cfg, sink: hub, logger: quietLogger()}
		_, err := s.run(ctx)
		done <- err
	}()

	border := strings.Repeat("_", cfg.Screen.Width)
	for frame := range 3 {
		for row := range cfg.Screen.Height {
			select {
			case got := <-v.Rows():
				require.Len(t, got, cfg.Screen.Width, "frame %d row %d", frame, row)
				if row == 0 {
					assert.Equal(t, border, string(got), "frame %d starts with the top border", frame)
				}
			case <-time.After(2 * time.Second):
				t.Fatalf("no row %d of frame %d", row, frame)
			}
		}
	}
	cancel()
	require.NoError(t, <-done)
}

func TestSessionDrainsButtons(t *testing.T) {
	cfg := config.DefaultPipelineConfig()
	cfg.Simulation.Tick = time.Millisecond
	cfg.Display.Redraw = config.RedrawNever

	bus := newButtonBus(cfg)
	require.True(t, bus.Publish(core.ButtonEvent{Button: core.Button1, At: time.Now()}))

	s := session{cfg: cfg, sink: &serial.Discard{}, logger: quietLogger(), maxFrames: 3, buttons: bus}
	stats, err := s.run(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, stats.Rendered, uint64(3))

	assert.Zero(t, bus.Drain(func(core.ButtonEvent) {}), "the simulation consumed the press")
}
