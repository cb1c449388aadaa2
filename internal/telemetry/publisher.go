// Package telemetry publishes a msgpack snapshot of every rendered frame to
// an MQTT topic, so dashboards can follow a run without parsing rows.
package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/vovakirdan/serialpong/internal/broker"
	"github.com/vovakirdan/serialpong/internal/pipeline"
	"github.com/vovakirdan/serialpong/internal/pong"
)

const (
	defaultBuffer  = 64
	defaultTimeout = 2 * time.Second
)

// Publisher is a pipeline.FrameObserver. ObserveFrame never blocks the
// display; when the publish backlog is full the snapshot is dropped.
type Publisher struct {
	client  paho.Client
	topic   string
	qos     byte
	timeout time.Duration
	geom    pong.Geometry
	logger  *log.Logger

	ch chan pong.Snapshot

	published atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

var _ pipeline.FrameObserver = (*Publisher)(nil)

// NewPublisher creates a publisher sending to topic through client.
func NewPublisher(client paho.Client, topic string, qos byte, timeout time.Duration, g pong.Geometry, logger *log.Logger) *Publisher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Publisher{
		client:  client,
		topic:   broker.Topic(topic),
		qos:     qos,
		timeout: timeout,
		geom:    g,
		logger:  logger,
		ch:      make(chan pong.Snapshot, defaultBuffer),
	}
}

// ObserveFrame implements pipeline.FrameObserver.
func (p *Publisher) ObserveFrame(f *pipeline.Frame) {
	select {
	case p.ch <- pong.NewSnapshot(p.geom, f.Seq, f.Tick, f.State):
	default:
		p.dropped.Add(1)
	}
}

// Run publishes queued snapshots until ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-p.ch:
			if err := p.publish(snap); err != nil {
				p.failed.Add(1)
				p.logger.Debug("telemetry publish failed", "seq", snap.Seq, "err", err)
			}
		}
	}
}

func (p *Publisher) publish(snap pong.Snapshot) error {
	payload, err := Encode(snap)
	if err != nil {
		return err
	}
	token := p.client.Publish(p.topic, p.qos, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("telemetry: publish to %s timed out", p.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("telemetry: publish to %s: %w", p.topic, err)
	}
	p.published.Add(1)
	return nil
}

// Published returns the number of snapshots delivered to the broker.
func (p *Publisher) Published() uint64 { return p.published.Load() }

// Dropped returns the number of snapshots dropped because of backlog.
func (p *Publisher) Dropped() uint64 { return p.dropped.Load() }

// Failed returns the number of failed publishes.
func (p *Publisher) Failed() uint64 { return p.failed.Load() }

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}

// Encode serializes a snapshot.
func Encode(s pong.Snapshot) ([]byte, error) {
	b, err := msgpack.Marshal(&s)
	if err != nil {
		return nil, fmt.Errorf("telemetry: encode snapshot: %w", err)
	}
	return b, nil
}

// Decode parses a snapshot produced by Encode.
func Decode(b []byte) (pong.Snapshot, error) {
	var s pong.Snapshot
	if err := msgpack.Unmarshal(b, &s); err != nil {
		return pong.Snapshot{}, fmt.Errorf("telemetry: decode snapshot: %w", err)
	}
	return s, nil
}
