package serial

import (
	"bytes"
	"context"
	"errors"
	"io"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyWriter writes at most limit bytes per call and fails with EAGAIN
// when it cuts a write short.
type flakyWriter struct {
	buf   bytes.Buffer
	limit int
	fail  error
}

func (w *flakyWriter) Write(p []byte) (int, error) {
	if w.fail != nil {
		return 0, w.fail
	}
	if len(p) <= w.limit {
		return w.buf.Write(p)
	}
	n, _ := w.buf.Write(p[:w.limit])
	return n, syscall.EAGAIN
}

func TestWriterSinkPlain(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)

	require.NoError(t, s.Send(context.Background(), []byte("____")))
	require.NoError(t, s.Send(context.Background(), []byte("|  |\n")))
	assert.Equal(t, "____|  |\n", buf.String())
	assert.False(t, s.IsTerminal())
}

func TestWriterSinkResumesPartialWrite(t *testing.T) {
	w := &flakyWriter{limit: 3}
	s := NewWriterSink(w)
	row := []byte("|H  O |\n")

	var err error
	for range 10 {
		if err = s.Send(context.Background(), row); err == nil {
			break
		}
		require.ErrorIs(t, err, ErrTransient)
	}
	require.NoError(t, err)
	assert.Equal(t, string(row), w.buf.String(), "retries must not duplicate bytes")

	// A different row after success starts from scratch.
	w.limit = 100
	require.NoError(t, s.Send(context.Background(), []byte("____")))
	assert.Equal(t, "|H  O |\n____", w.buf.String())
}

func TestWriterSinkTerminalError(t *testing.T) {
	s := NewWriterSink(&flakyWriter{fail: io.ErrClosedPipe})
	err := s.Send(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTransient))
}

func TestWriterSinkCanceled(t *testing.T) {
	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, NewWriterSink(&buf).Send(ctx, []byte("x")), context.Canceled)
	assert.Zero(t, buf.Len())
}

func TestTransient(t *testing.T) {
	assert.NoError(t, Transient(nil))
	err := Transient(io.ErrShortWrite)
	assert.ErrorIs(t, err, ErrTransient)
	assert.ErrorIs(t, err, io.ErrShortWrite)
}

func TestSinkCapabilities(t *testing.T) {
	assert.True(t, IsTerminal(NewHub(0, true)))
	assert.False(t, IsTerminal(NewHub(0, false)))
	assert.False(t, IsTerminal(&Discard{}))
	assert.NoError(t, Close(&Discard{}))
}

func TestDiscard(t *testing.T) {
	d := &Discard{}
	require.NoError(t, d.Send(context.Background(), []byte("abc")))
	require.NoError(t, d.Send(context.Background(), []byte("de")))
	assert.Equal(t, uint64(5), d.Bytes())
	assert.Equal(t, uint64(2), d.Sends())
}

func recv(t *testing.T, v *Viewer) []byte {
	t.Helper()
	select {
	case row := <-v.Rows():
		return row
	case <-time.After(time.Second):
		t.Fatal("no row received")
		return nil
	}
}

func TestHubStartsViewerAtFrameBoundary(t *testing.T) {
	ctx := context.Background()
	h := NewHub(8, false)

	require.NoError(t, h.Send(ctx, []byte("nobody")))

	v, err := h.Attach("alice")
	require.NoError(t, err)
	assert.Equal(t, 1, h.Viewers())

	// Mid-frame rows are not delivered to a pending viewer.
	require.NoError(t, h.Send(ctx, []byte("row2")))
	require.NoError(t, h.FrameDone(ctx))
	require.NoError(t, h.Send(ctx, []byte("row0")))

	assert.Equal(t, "row0", string(recv(t, v)))
	assert.Empty(t, v.Rows())

	v.Close()
	assert.Equal(t, 0, h.Viewers())
	_, ok := <-v.Rows()
	assert.False(t, ok)
}

func TestHubKicksSlowViewer(t *testing.T) {
	ctx := context.Background()
	h := NewHub(2, false)
	v, err := h.Attach("slow")
	require.NoError(t, err)
	require.NoError(t, h.FrameDone(ctx))

	for range 3 {
		require.NoError(t, h.Send(ctx, []byte("r")))
	}
	assert.Equal(t, uint64(1), h.Kicked())
	assert.Equal(t, 0, h.Viewers())
	assert.True(t, v.kicked.Load())
}

func TestHubServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(8, false)

	var out bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- h.Serve(ctx, &out, "bob") }()

	require.Eventually(t, func() bool { return h.Viewers() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, h.FrameDone(ctx))
	require.NoError(t, h.Send(ctx, []byte("____")))
	require.NoError(t, h.Close())

	require.NoError(t, <-done)
	assert.Equal(t, "____", out.String())

	_, err := h.Attach("after")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, h.Send(ctx, []byte("x")), ErrClosed)
}

func TestHubServeSlowViewerError(t *testing.T) {
	ctx := context.Background()
	h := NewHub(1, false)
	v, err := h.Attach("slow")
	require.NoError(t, err)
	require.NoError(t, h.FrameDone(ctx))
	require.NoError(t, h.Send(ctx, []byte("a")))
	require.NoError(t, h.Send(ctx, []byte("b")))

	assert.Equal(t, "a", string(recv(t, v)))
	_, ok := <-v.Rows()
	assert.False(t, ok)
	assert.True(t, v.kicked.Load())
}
