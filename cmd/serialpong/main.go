// serialpong streams an auto-playing pong field to a serial terminal, one
// fixed-width row at a time, from two cooperating tasks joined by a frame
// queue.
//
// Usage:
//
//	serialpong run               - Run the pipeline (stdout, tty, mqtt, tui...)
//	serialpong serve             - Run the pipeline for SSH and websocket viewers
//	serialpong led               - Traffic light exercise in the terminal
//	serialpong runs              - Show the run journal
//	serialpong sinks             - List available sinks
//
// Global flags:
//
//	--config <path>    - Pipeline config file
//	--variant <name>   - Firmware variant preset (current, legacy)
//	--db <path>        - Run journal path (default: ~/.serialpong/runs.db)
//	--log-level <lvl>  - debug, info, warn, error
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/serialpong/internal/config"

	// Import serial to register its sinks
	_ "github.com/vovakirdan/serialpong/internal/serial"
)

var (
	// Global flags
	flagConfig   string
	flagVariant  string
	flagDBPath   string
	flagLogLevel string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "serialpong",
	Short: "Serial pong - an auto-playing pong field streamed to a terminal",
	Long: `serialpong simulates a self-playing pong field and streams every frame
row by row to a serial terminal, standard output, an MQTT broker or remote viewers.

Available commands:
  run      - Run the pipeline
  serve    - Run the pipeline for SSH and websocket viewers
  led      - Traffic light exercise
  runs     - Show the run journal
  sinks    - List available sinks

Examples:
  serialpong run
  serialpong run --sink tty --device /dev/ttyUSB0 --baud 115200
  serialpong run --variant legacy --sink tui
  serialpong serve --ssh :23234 --ws :8080
  serialpong runs`,
	SilenceUsage: true,
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to pipeline config (YAML)")
	rootCmd.PersistentFlags().StringVar(&flagVariant, "variant", "", "Firmware variant preset: current or legacy")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Path to run journal (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn, error")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ledCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(sinksCmd)
}

// newLogger creates the process logger at the level given by --log-level.
func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "serialpong",
	})
	level, err := log.ParseLevel(flagLogLevel)
	if err != nil {
		logger.Warn("unknown log level, using info", "level", flagLogLevel)
		level = log.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// loadConfig loads the pipeline config and applies the global flags.
func loadConfig() (config.PipelineConfig, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, err
	}
	if flagVariant != "" {
		if err := config.ApplyVariant(&cfg, config.Variant(flagVariant)); err != nil {
			return cfg, err
		}
	}
	if flagDBPath != "" {
		cfg.Storage.DBPath = flagDBPath
	}
	return cfg, nil
}

// fail prints err the way every command reports errors and exits.
func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
