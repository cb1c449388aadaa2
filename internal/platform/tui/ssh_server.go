package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"

	"github.com/vovakirdan/serialpong/internal/serial"
)

// SSHServerConfig holds configuration for the SSH viewer server.
type SSHServerConfig struct {
	// Address is the host:port to listen on (e.g., ":23234").
	Address string

	// HostKeyPath is the path to the host key file.
	// If empty, a key will be auto-generated at ~/.serialpong/host_key.
	HostKeyPath string

	// IdleTimeout is how long to wait before closing idle connections.
	IdleTimeout time.Duration
}

// DefaultSSHServerConfig returns a config with sensible defaults.
func DefaultSSHServerConfig() SSHServerConfig {
	return SSHServerConfig{
		Address:     ":23234",
		IdleTimeout: 30 * time.Minute,
	}
}

// SSHServer lets SSH clients watch the frames of a running pipeline.
// Sessions with a PTY get the styled viewer; others receive the raw row
// stream exactly as a serial terminal would.
type SSHServer struct {
	config SSHServerConfig
	server *ssh.Server
	hub    *serial.Hub
	height int
	logger *log.Logger
}

// NewSSHServer creates an SSH server fed by hub. height is the number of
// rows per frame.
func NewSSHServer(cfg SSHServerConfig, hub *serial.Hub, height int, logger *log.Logger) (*SSHServer, error) {
	srv := &SSHServer{
		config: cfg,
		hub:    hub,
		height: height,
		logger: logger.WithPrefix("ssh"),
	}

	// Resolve host key path
	hostKeyPath := cfg.HostKeyPath
	if hostKeyPath == "" {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return nil, fmt.Errorf("cannot get home directory: %w", homeErr)
		}
		hostKeyPath = filepath.Join(home, ".serialpong", "host_key")
	}

	// Ensure host key directory exists
	hostKeyDir := filepath.Dir(hostKeyPath)
	if mkdirErr := os.MkdirAll(hostKeyDir, 0o700); mkdirErr != nil {
		return nil, fmt.Errorf("cannot create host key directory: %w", mkdirErr)
	}

	opts := []ssh.Option{
		wish.WithAddress(cfg.Address),
		wish.WithHostKeyPath(hostKeyPath),
		wish.WithIdleTimeout(cfg.IdleTimeout),
		wish.WithMiddleware(
			bubbletea.Middleware(srv.teaHandler),
			srv.rawStreamMiddleware,
			srv.loggingMiddleware,
		),
	}

	server, err := wish.NewServer(opts...)
	if err != nil {
		return nil, fmt.Errorf("cannot create SSH server: %w", err)
	}

	srv.server = server
	return srv, nil
}

// teaHandler creates a viewer program for each PTY session.
func (s *SSHServer) teaHandler(sshSession ssh.Session) (tea.Model, []tea.ProgramOption) {
	v, err := s.hub.Attach(sshSession.User())
	if err != nil {
		s.logger.Warn("cannot attach viewer", "user", sshSession.User(), "err", err)
		return nil, nil
	}

	go func() {
		<-sshSession.Context().Done()
		v.Close()
	}()

	title := fmt.Sprintf("serialpong · %s", sshSession.User())
	return NewHubViewerModel(title, v, s.height), []tea.ProgramOption{
		tea.WithAltScreen(),
	}
}

// rawStreamMiddleware serves sessions without a PTY with the raw rows.
func (s *SSHServer) rawStreamMiddleware(next ssh.Handler) ssh.Handler {
	return func(sshSession ssh.Session) {
		if _, _, ok := sshSession.Pty(); ok {
			next(sshSession)
			return
		}
		err := s.hub.Serve(sshSession.Context(), sshSession, sshSession.User())
		if err != nil {
			s.logger.Warn("raw stream ended", "user", sshSession.User(), "err", err)
			wish.Fatalln(sshSession, err)
		}
	}
}

// loggingMiddleware logs SSH session events.
func (s *SSHServer) loggingMiddleware(next ssh.Handler) ssh.Handler {
	return func(sshSession ssh.Session) {
		s.logger.Info("session started",
			"user", sshSession.User(),
			"remote", sshSession.RemoteAddr().String(),
		)
		next(sshSession)
		s.logger.Info("session ended",
			"user", sshSession.User(),
			"remote", sshSession.RemoteAddr().String(),
		)
	}
}

// ListenAndServe starts the SSH server and blocks until ctx is done.
func (s *SSHServer) ListenAndServe(ctx context.Context) error {
	s.logger.Info("starting SSH server", "address", s.config.Address)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ssh server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down...")
	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *SSHServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Addr returns the server's listen address string.
func (s *SSHServer) Addr() string {
	return s.config.Address
}
