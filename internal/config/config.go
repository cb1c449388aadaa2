// Package config provides YAML-based pipeline configuration loading and
// variant presets for the serial pong pipeline.
package config

import (
	"time"

	"github.com/vovakirdan/serialpong/internal/pong"
)

// PipelineConfig contains all configuration for one pipeline run.
type PipelineConfig struct {
	Variant    Variant          `yaml:"variant"`
	Screen     pong.Geometry    `yaml:"screen"`
	Physics    PhysicsConfig    `yaml:"physics"`
	Simulation SimulationConfig `yaml:"simulation"`
	Queue      QueueConfig      `yaml:"queue"`
	Display    DisplayConfig    `yaml:"display"`
	Sink       SinkConfig       `yaml:"sink"`
	Input      InputConfig      `yaml:"input"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Storage    StorageConfig    `yaml:"storage"`
	LED        LEDConfig        `yaml:"led"`
}

// PhysicsConfig defines how the ball moves and where everything starts.
type PhysicsConfig struct {
	Motion  string     `yaml:"motion"` // "wrap" or "bounce"
	Initial pong.State `yaml:"initial"`
}

// SimulationConfig defines the producer task.
type SimulationConfig struct {
	Tick                 time.Duration `yaml:"tick"`
	MaxOutstandingFrames int           `yaml:"max_outstanding_frames"` // Frames allocated but not yet released; 0 = no limit
	MaxAllocFailures     int           `yaml:"max_alloc_failures"`     // Consecutive failures before giving up
}

// QueueConfig defines the frame queue between the two tasks.
type QueueConfig struct {
	Capacity int    `yaml:"capacity"` // 0 = unbounded
	Overflow string `yaml:"overflow"` // "drop-oldest" or "block", only used when bounded
}

// DisplayConfig defines the consumer task.
type DisplayConfig struct {
	Redraw          string        `yaml:"redraw"` // "auto", "always" or "never"
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	MaxRetryBackoff time.Duration `yaml:"max_retry_backoff"`
}

// SinkConfig selects and configures the serial sink.
type SinkConfig struct {
	Kind   string     `yaml:"kind"`   // Registered sink kind, see `serialpong sinks`
	Device string     `yaml:"device"` // tty device for kind "tty"
	Baud   int        `yaml:"baud"`
	MQTT   MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig defines a broker connection and topic.
type MQTTConfig struct {
	Broker         string        `yaml:"broker"` // e.g. tcp://localhost:1883
	Topic          string        `yaml:"topic"`
	ClientID       string        `yaml:"client_id"` // Empty = derived from the machine ID
	QoS            byte          `yaml:"qos"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// InputConfig defines button handling.
type InputConfig struct {
	Debounce   time.Duration `yaml:"debounce"`
	BufferSize int           `yaml:"buffer_size"`
}

// TelemetryConfig defines the optional frame snapshot publisher.
type TelemetryConfig struct {
	Enabled bool       `yaml:"enabled"`
	MQTT    MQTTConfig `yaml:"mqtt"`
}

// StorageConfig defines the run journal location.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// LEDConfig defines the traffic light exercise.
type LEDConfig struct {
	Period time.Duration `yaml:"period"`
}

// Variant names a firmware revision whose timing and physics are reproduced.
type Variant string

const (
	// VariantCurrent is the newer firmware: 500ms tick, wrap-around ball.
	VariantCurrent Variant = "current"

	// VariantLegacy is the older firmware: 100ms tick, bouncing ball,
	// cursor-up redraw after every frame.
	VariantLegacy Variant = "legacy"
)

// Queue overflow policies
const (
	OverflowDropOldest = "drop-oldest"
	OverflowBlock      = "block"
)

// Display redraw modes
const (
	RedrawAuto   = "auto"
	RedrawAlways = "always"
	RedrawNever  = "never"
)
