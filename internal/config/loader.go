package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vovakirdan/serialpong/internal/pong"
)

// Load loads the pipeline configuration.
// Search order: customPath -> ~/.serialpong/configs/pipeline.yaml -> ./configs/pipeline.yaml -> embedded default
// Values missing from a file keep their defaults.
func Load(customPath string) (PipelineConfig, error) {
	cfg := DefaultPipelineConfig()

	// Try custom path first
	if customPath != "" {
		data, err := os.ReadFile(customPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", customPath, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", customPath, err)
		}
		return cfg, nil
	}

	// Try user config directory
	if userCfgPath := userConfigPath("pipeline.yaml"); userCfgPath != "" {
		if data, err := os.ReadFile(userCfgPath); err == nil {
			candidate := DefaultPipelineConfig()
			if err := yaml.Unmarshal(data, &candidate); err == nil {
				return candidate, nil
			}
		}
	}

	// Try local configs directory
	if data, err := os.ReadFile("configs/pipeline.yaml"); err == nil {
		candidate := DefaultPipelineConfig()
		if err := yaml.Unmarshal(data, &candidate); err == nil {
			return candidate, nil
		}
	}

	// Use embedded default YAML
	candidate := DefaultPipelineConfig()
	if err := yaml.Unmarshal(defaultPipelineYAML, &candidate); err != nil {
		return cfg, nil // Fallback to hardcoded if embed fails
	}
	return candidate, nil
}

// userConfigPath returns the path to user config file, or empty if home is unavailable.
func userConfigPath(filename string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".serialpong", "configs", filename)
}

// ApplyVariant modifies the config to reproduce a firmware revision.
// An empty variant leaves the config untouched.
func ApplyVariant(cfg *PipelineConfig, v Variant) error {
	switch v {
	case "":
		return nil
	case VariantCurrent:
		cfg.Variant = VariantCurrent
		cfg.Simulation.Tick = 500 * time.Millisecond
		cfg.Physics.Motion = string(pong.MotionWrap)
	case VariantLegacy:
		cfg.Variant = VariantLegacy
		cfg.Screen = pong.Geometry{Width: 40, Height: 20, PaddleHeight: 3}
		cfg.Simulation.Tick = 100 * time.Millisecond
		cfg.Physics.Motion = string(pong.MotionBounce)
		cfg.Physics.Initial = pong.State{
			LeftPaddle:  2,
			RightPaddle: 7,
			BallX:       50,
			BallY:       1000,
			VelX:        100,
			VelY:        100,
			Speed:       100,
		}
		cfg.Display.Redraw = RedrawAlways
	default:
		return fmt.Errorf("config: unknown variant %q (want current or legacy)", v)
	}
	return nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c PipelineConfig) Validate() error {
	var errs []error

	if err := c.Screen.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := pong.ParseMotion(c.Physics.Motion); err != nil {
		errs = append(errs, err)
	}
	if c.Simulation.Tick <= 0 {
		errs = append(errs, fmt.Errorf("config: simulation.tick must be positive, got %s", c.Simulation.Tick))
	}
	if c.Simulation.MaxOutstandingFrames < 0 {
		errs = append(errs, fmt.Errorf("config: simulation.max_outstanding_frames must not be negative"))
	}
	if c.Simulation.MaxAllocFailures < 1 {
		errs = append(errs, fmt.Errorf("config: simulation.max_alloc_failures must be at least 1"))
	}
	if c.Queue.Capacity < 0 {
		errs = append(errs, fmt.Errorf("config: queue.capacity must not be negative"))
	}
	switch c.Queue.Overflow {
	case OverflowDropOldest, OverflowBlock:
	default:
		errs = append(errs, fmt.Errorf("config: unknown queue.overflow %q", c.Queue.Overflow))
	}
	switch c.Display.Redraw {
	case RedrawAuto, RedrawAlways, RedrawNever:
	default:
		errs = append(errs, fmt.Errorf("config: unknown display.redraw %q", c.Display.Redraw))
	}
	if c.Display.RetryBackoff <= 0 || c.Display.MaxRetryBackoff < c.Display.RetryBackoff {
		errs = append(errs, fmt.Errorf("config: display retry backoff must be positive and not exceed max_retry_backoff"))
	}
	if c.Sink.Kind == "" {
		errs = append(errs, fmt.Errorf("config: sink.kind is required"))
	}
	if c.Sink.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("config: sink.mqtt.qos must be 0, 1 or 2, got %d", c.Sink.MQTT.QoS))
	}
	if c.Telemetry.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("config: telemetry.mqtt.qos must be 0, 1 or 2, got %d", c.Telemetry.MQTT.QoS))
	}
	if c.Input.BufferSize < 1 {
		errs = append(errs, fmt.Errorf("config: input.buffer_size must be at least 1"))
	}
	if c.LED.Period <= 0 {
		errs = append(errs, fmt.Errorf("config: led.period must be positive"))
	}

	return errors.Join(errs...)
}

// InitialState returns the configured initial state forced into the legal range.
func (c PipelineConfig) InitialState() pong.State {
	return c.Physics.Initial.Normalize(c.Screen)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: cannot expand home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}
