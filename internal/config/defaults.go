package config

import (
	_ "embed"
	"time"

	"github.com/vovakirdan/serialpong/internal/input"
	"github.com/vovakirdan/serialpong/internal/pong"
)

//go:embed defaults/pipeline.yaml
var defaultPipelineYAML []byte

// DefaultPipelineConfig returns the default pipeline configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Variant: VariantCurrent,
		Screen:  pong.DefaultGeometry(),
		Physics: PhysicsConfig{
			Motion:  string(pong.MotionWrap),
			Initial: pong.DefaultState(),
		},
		Simulation: SimulationConfig{
			Tick:                 500 * time.Millisecond,
			MaxOutstandingFrames: 0,
			MaxAllocFailures:     10,
		},
		Queue: QueueConfig{
			Capacity: 0,
			Overflow: OverflowDropOldest,
		},
		Display: DisplayConfig{
			Redraw:          RedrawAuto,
			RetryBackoff:    time.Millisecond,
			MaxRetryBackoff: 100 * time.Millisecond,
		},
		Sink: SinkConfig{
			Kind: "stdout",
			Baud: 115200,
			MQTT: MQTTConfig{
				Broker:         "tcp://localhost:1883",
				Topic:          "serialpong/display",
				QoS:            1,
				PublishTimeout: 2 * time.Second,
			},
		},
		Input: InputConfig{
			Debounce:   input.DefaultDebounce,
			BufferSize: input.DefaultBusSize,
		},
		Telemetry: TelemetryConfig{
			Enabled: false,
			MQTT: MQTTConfig{
				Broker:         "tcp://localhost:1883",
				Topic:          "serialpong/telemetry",
				QoS:            0,
				PublishTimeout: time.Second,
			},
		},
		Storage: StorageConfig{
			DBPath: "~/.serialpong/runs.db",
		},
		LED: LEDConfig{
			Period: time.Second,
		},
	}
}
