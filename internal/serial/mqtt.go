package serial

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/vovakirdan/serialpong/internal/broker"
)

// DefaultPublishTimeout bounds how long one row publish may wait for the
// broker.
const DefaultPublishTimeout = 2 * time.Second

// MQTTSink publishes every row as one message on <topic>/rows and a frame
// counter on <topic>/frame after each frame.
type MQTTSink struct {
	client  paho.Client
	rows    string
	frames  string
	qos     byte
	timeout time.Duration

	frameSeq atomic.Uint64
	closed   atomic.Bool
}

// NewMQTTSink publishes through an already connected client.
func NewMQTTSink(client paho.Client, topic string, qos byte, timeout time.Duration) *MQTTSink {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &MQTTSink{
		client:  client,
		rows:    broker.Topic(topic, "rows"),
		frames:  broker.Topic(topic, "frame"),
		qos:     qos,
		timeout: timeout,
	}
}

// Send implements Sink. A timed out publish or a disconnected client is
// transient.
func (s *MQTTSink) Send(ctx context.Context, p []byte) error {
	return s.publish(ctx, s.rows, p)
}

// FrameDone implements FrameSink.
func (s *MQTTSink) FrameDone(ctx context.Context) error {
	seq := s.frameSeq.Add(1)
	return s.publish(ctx, s.frames, []byte(strconv.FormatUint(seq, 10)))
}

func (s *MQTTSink) publish(ctx context.Context, topic string, p []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.client.IsConnectionOpen() {
		return Transient(errors.New("mqtt not connected"))
	}

	// paho keeps the payload until delivery
	payload := append([]byte(nil), p...)
	token := s.client.Publish(topic, s.qos, false, payload)
	if !token.WaitTimeout(s.timeout) {
		return Transient(fmt.Errorf("publish to %s timed out", topic))
	}
	if err := token.Error(); err != nil {
		return Transient(fmt.Errorf("publish to %s: %w", topic, err))
	}
	return nil
}

// Close disconnects the client.
func (s *MQTTSink) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.client.Disconnect(250)
	return nil
}
