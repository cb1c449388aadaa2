package web

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/vovakirdan/serialpong/internal/serial"
)

func TestWebsocketStreamsRows(t *testing.T) {
	hub := serial.NewHub(16, false)
	s := NewServer("127.0.0.1:0", hub, log.New(io.Discard))

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	ws, err := websocket.Dial(url, "", ts.URL)
	require.NoError(t, err)
	defer ws.Close()

	ctx := context.Background()
	require.Eventually(t, func() bool { return hub.Viewers() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, hub.FrameDone(ctx))
	require.NoError(t, hub.Send(ctx, []byte("____")))
	require.NoError(t, hub.Send(ctx, []byte("|O |\n")))

	var row string
	require.NoError(t, websocket.Message.Receive(ws, &row))
	require.Equal(t, "____", row)
	require.NoError(t, websocket.Message.Receive(ws, &row))
	require.Equal(t, "|O |\n", row)
}

func TestServeStopsOnCancel(t *testing.T) {
	s := NewServer("127.0.0.1:0", serial.NewHub(0, false), log.New(io.Discard))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
