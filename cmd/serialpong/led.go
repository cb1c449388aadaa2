package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/serialpong/internal/input"
	"github.com/vovakirdan/serialpong/internal/led"
	"github.com/vovakirdan/serialpong/internal/platform/tui"
)

var flagHeadless bool

var ledCmd = &cobra.Command{
	Use:   "led",
	Short: "Traffic light exercise",
	Long: `Three lights driven by a timer and four buttons.

Keys:
  1  cycle through the colours
  2  pause / resume (keeps the time left in the period)
  3  blink the active colour
  4  make the next colour active (ignored while paused)

Presses are debounced (input.debounce in the config).

Examples:
  serialpong led
  serialpong led --headless --log-level debug`,
	Run: runLED,
}

func init() {
	ledCmd.Flags().BoolVar(&flagHeadless, "headless", false, "Log light changes instead of drawing them")
}

func runLED(_ *cobra.Command, _ []string) {
	cfg, err := loadConfig()
	if err != nil {
		fail("%v", err)
	}

	ctrl := led.NewController(cfg.LED.Period, nil)
	bus := input.NewBus(cfg.Input.BufferSize, input.NewDebouncer(cfg.Input.Debounce))

	if !flagHeadless {
		if err := tui.RunLED(ctrl, bus); err != nil {
			fail("%v", err)
		}
		return
	}

	logger := newLogger().WithPrefix("led")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("running, Ctrl+C to stop", "period", cfg.LED.Period)
	//nolint:errcheck // Run only returns nil
	led.Run(ctx, ctrl, bus, func(st led.Status) {
		logger.Info("lights", "on", st.Lights.String(), "mode", st.Mode, "active", st.Color)
	})
}
