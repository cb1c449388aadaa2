package serial

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/serialpong/internal/broker"
	"github.com/vovakirdan/serialpong/internal/config"
	"github.com/vovakirdan/serialpong/internal/registry"
)

// Sink kinds
const (
	KindStdout  = "stdout"
	KindTTY     = "tty"
	KindMQTT    = "mqtt"
	KindDiscard = "discard"
)

func init() {
	registry.Register(KindStdout, "Standard output", func(context.Context, config.SinkConfig, *log.Logger) (registry.Sink, error) {
		return NewStdout(), nil
	})
	registry.Register(KindTTY, "Serial tty (raw mode)", func(_ context.Context, cfg config.SinkConfig, logger *log.Logger) (registry.Sink, error) {
		p, err := OpenPort(cfg.Device, cfg.Baud)
		if err != nil {
			return nil, err
		}
		logger.Info("serial port open", "device", cfg.Device, "baud", cfg.Baud)
		return p, nil
	})
	registry.Register(KindMQTT, "MQTT bridge", func(ctx context.Context, cfg config.SinkConfig, logger *log.Logger) (registry.Sink, error) {
		client, err := broker.Connect(ctx, cfg.MQTT, "sink", logger)
		if err != nil {
			return nil, err
		}
		return NewMQTTSink(client, cfg.MQTT.Topic, cfg.MQTT.QoS, cfg.MQTT.PublishTimeout), nil
	})
	registry.Register(KindDiscard, "Discard (benchmarking)", func(context.Context, config.SinkConfig, *log.Logger) (registry.Sink, error) {
		return &Discard{}, nil
	})
}

// Open opens the sink configured by cfg through the registry.
func Open(ctx context.Context, cfg config.SinkConfig, logger *log.Logger) (Sink, error) {
	return registry.Open(ctx, cfg, logger)
}
