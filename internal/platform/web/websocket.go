// Package web serves the frame rows of a running pipeline to websocket
// clients, one text message per row.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/net/websocket"

	"github.com/vovakirdan/serialpong/internal/serial"
)

// DefaultPath is where the websocket endpoint is mounted.
const DefaultPath = "/rows"

// conn adapts a websocket connection to io.Writer, one message per write.
type conn websocket.Conn

func (c *conn) Write(p []byte) (int, error) {
	if err := websocket.Message.Send((*websocket.Conn)(c), string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Server is an HTTP server with the websocket row stream.
type Server struct {
	addr   string
	hub    *serial.Hub
	logger *log.Logger
	srv    *http.Server
}

// NewServer creates a server listening on addr.
func NewServer(addr string, hub *serial.Hub, logger *log.Logger) *Server {
	s := &Server{
		addr:   addr,
		hub:    hub,
		logger: logger.WithPrefix("ws"),
	}

	mux := http.NewServeMux()
	mux.Handle(DefaultPath, s.Handler())
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the websocket handler streaming hub rows.
func (s *Server) Handler() http.Handler {
	return websocket.Handler(func(ws *websocket.Conn) {
		name := ws.Request().RemoteAddr
		s.logger.Info("viewer connected", "remote", name)

		ctx, cancel := context.WithCancel(ws.Request().Context())
		defer cancel()

		// A read error means the client went away.
		go func() {
			var discard string
			for websocket.Message.Receive(ws, &discard) == nil {
			}
			cancel()
		}()

		err := s.hub.Serve(ctx, (*conn)(ws), name)
		s.logger.Info("viewer disconnected", "remote", name, "err", err)
	})
}

// ListenAndServe serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("ws server: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting websocket server", "address", ln.Addr().String(), "path", DefaultPath)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("ws server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
