package telemetry

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/serialpong/internal/pipeline"
	"github.com/vovakirdan/serialpong/internal/pong"
)

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (doneToken) Error() error { return nil }

type captureClient struct {
	paho.Client
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
}

func (c *captureClient) Publish(topic string, _ byte, _ bool, payload any) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	c.payloads = append(c.payloads, payload.([]byte))
	return doneToken{}
}

func (c *captureClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func TestPublisherSendsSnapshots(t *testing.T) {
	g := pong.DefaultGeometry()
	client := &captureClient{}
	p := NewPublisher(client, "serialpong/telemetry", 0, 0, g, log.New(io.Discard))

	state := pong.Step(g, pong.DefaultState())
	p.ObserveFrame(&pipeline.Frame{Seq: 3, Tick: 4, State: state})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return client.count() == 1 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, "serialpong/telemetry", client.topics[0])
	snap, err := Decode(client.payloads[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(3), snap.Seq)
	assert.Equal(t, uint64(4), snap.Tick)
	assert.Equal(t, g.Width, snap.Width)
	assert.Equal(t, state.LeftPaddle, snap.State.LeftPaddle)
	assert.Equal(t, state.BallX, snap.State.BallX)
	assert.Equal(t, uint64(1), p.Published())
}

func TestPublisherDropsWhenBacklogged(t *testing.T) {
	p := NewPublisher(&captureClient{}, "t", 0, 0, pong.DefaultGeometry(), log.New(io.Discard))
	for i := range defaultBuffer + 5 {
		p.ObserveFrame(&pipeline.Frame{Seq: uint64(i)})
	}
	assert.Equal(t, uint64(5), p.Dropped())
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode([]byte{0xc1})
	assert.Error(t, err)
}
