package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/serialpong/internal/config"
	"github.com/vovakirdan/serialpong/internal/pipeline"
	"github.com/vovakirdan/serialpong/internal/platform/tui"
	"github.com/vovakirdan/serialpong/internal/serial"
)

// sinkTUI is handled here rather than by the registry: the viewer sink
// needs the running Bubble Tea program.
const sinkTUI = "tui"

var (
	flagSink      string
	flagDevice    string
	flagBaud      int
	flagTick      time.Duration
	flagFrames    uint64
	flagRedraw    string
	flagNoJournal bool
	flagStatsview string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pong pipeline",
	Long: `Run the simulation and display tasks and stream every frame to a sink.

Sinks:
  stdout    - Standard output (default)
  tty       - A serial device in raw mode (--device, --baud)
  mqtt      - One MQTT message per row (sink.mqtt in the config)
  discard   - Drop all output, for benchmarking
  tui       - Styled local viewer

Examples:
  serialpong run
  serialpong run --frames 20 --redraw never > frames.txt
  serialpong run --sink tty --device /dev/ttyUSB0 --baud 115200
  serialpong run --variant legacy --sink tui
  serialpong run --statsview localhost:18066`,
	Run: runRun,
}

func init() {
	runCmd.Flags().StringVar(&flagSink, "sink", "", "Sink kind (see 'serialpong sinks' and tui)")
	runCmd.Flags().StringVar(&flagDevice, "device", "", "Serial device for the tty sink")
	runCmd.Flags().IntVar(&flagBaud, "baud", 0, "Baud rate for the tty sink")
	runCmd.Flags().DurationVar(&flagTick, "tick", 0, "Simulation period (overrides config)")
	runCmd.Flags().Uint64Var(&flagFrames, "frames", 0, "Stop after this many frames (0 = until interrupted)")
	runCmd.Flags().StringVar(&flagRedraw, "redraw", "", "Cursor redraw: auto, always or never")
	runCmd.Flags().BoolVar(&flagNoJournal, "no-journal", false, "Do not record the run in the journal")
	runCmd.Flags().StringVar(&flagStatsview, "statsview", "", "Serve runtime graphs on this address (e.g. localhost:18066)")
}

func runRun(cmd *cobra.Command, _ []string) {
	cfg, err := loadConfig()
	if err != nil {
		fail("%v", err)
	}
	applyRunFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		fail("invalid configuration:\n%v", err)
	}

	logger := newLogger()

	if flagStatsview != "" {
		viewer.SetConfiguration(viewer.WithAddr(flagStatsview))
		mgr := statsview.New()
		go mgr.Start()
		defer mgr.Stop()
		logger.Info("statsview available", "url", "http://"+flagStatsview+"/debug/statsview")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := session{
		cfg:       cfg,
		logger:    logger,
		journal:   !flagNoJournal,
		maxFrames: flagFrames,
	}

	var stats pipeline.Stats
	if cfg.Sink.Kind == sinkTUI {
		stats, err = runWithViewer(ctx, s)
	} else {
		stats, err = runWithSink(ctx, s)
	}

	logger.Info("run finished",
		"frames", stats.Rendered,
		"skipped", stats.Skipped,
		"retries", stats.Retries,
		"elapsed", stats.Elapsed.Round(time.Millisecond),
	)
	if err != nil {
		fail("%v", err)
	}
}

// applyRunFlags overrides config values with explicitly set flags.
func applyRunFlags(cmd *cobra.Command, cfg *config.PipelineConfig) {
	if flagSink != "" {
		cfg.Sink.Kind = flagSink
	}
	if flagDevice != "" {
		cfg.Sink.Device = flagDevice
	}
	if flagBaud > 0 {
		cfg.Sink.Baud = flagBaud
	}
	if cmd.Flags().Changed("tick") {
		cfg.Simulation.Tick = flagTick
	}
	if flagRedraw != "" {
		cfg.Display.Redraw = flagRedraw
	}
}

func runWithSink(ctx context.Context, s session) (pipeline.Stats, error) {
	sink, err := serial.Open(ctx, s.cfg.Sink, s.logger)
	if err != nil {
		return pipeline.Stats{}, err
	}
	defer serial.Close(sink) //nolint:errcheck // Best-effort close on exit

	s.sink = sink
	return s.run(ctx)
}

// runWithViewer runs the pipeline into the local TUI viewer. Logs would
// corrupt the screen, so they are discarded.
func runWithViewer(ctx context.Context, s session) (pipeline.Stats, error) {
	s.logger.SetOutput(io.Discard)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		stats  pipeline.Stats
		runErr error
		done   = make(chan struct{})
	)
	title := fmt.Sprintf("serialpong · %s · %dx%d", s.cfg.Variant, s.cfg.Screen.Width, s.cfg.Screen.Height)

	s.buttons = newButtonBus(s.cfg)
	uiErr := tui.RunViewer(ctx, title, s.buttons, cancel, func(sink serial.Sink) {
		s.sink = sink
		go func() {
			defer close(done)
			stats, runErr = s.run(ctx)
		}()
	})
	cancel()
	<-done

	if runErr != nil {
		return stats, runErr
	}
	return stats, uiErr
}
