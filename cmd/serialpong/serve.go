package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/serialpong/internal/config"
	"github.com/vovakirdan/serialpong/internal/platform/tui"
	"github.com/vovakirdan/serialpong/internal/platform/web"
	"github.com/vovakirdan/serialpong/internal/serial"
)

var (
	flagSSHAddr     string
	flagWSAddr      string
	flagHostKey     string
	flagIdleTimeout int
	flagViewerBuf   int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline for remote viewers",
	Long: `Run one pipeline whose frames are fanned out to SSH and websocket viewers.

SSH sessions with a terminal get the styled viewer; sessions without one
(ssh -T) receive the raw rows exactly as a serial terminal would.
Websocket clients connect to /rows and receive one text message per row.
Viewers join at the next frame boundary; a viewer that falls behind is
disconnected.

Host key handling:
  - If --host-key is provided, uses that key file
  - Otherwise, auto-generates a key at ~/.serialpong/host_key

Examples:
  serialpong serve                       # SSH on :23234
  serialpong serve --ws :8080            # Also serve websocket viewers
  serialpong serve --ssh "" --ws :8080   # Websocket only

Users can connect with:
  ssh localhost -p 23234`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagSSHAddr, "ssh", ":23234", "SSH server address (host:port, empty to disable)")
	serveCmd.Flags().StringVar(&flagWSAddr, "ws", "", "Websocket server address (host:port, empty to disable)")
	serveCmd.Flags().StringVar(&flagHostKey, "host-key", "", "Path to host key file (auto-generated if not specified)")
	serveCmd.Flags().IntVar(&flagIdleTimeout, "idle-timeout", 30, "Idle timeout in minutes before disconnecting")
	serveCmd.Flags().IntVar(&flagViewerBuf, "viewer-buffer", serial.DefaultViewerBuffer, "Rows a viewer may lag behind before it is dropped")
}

func runServe(_ *cobra.Command, _ []string) {
	if flagSSHAddr == "" && flagWSAddr == "" {
		fail("nothing to serve, set --ssh or --ws")
	}

	cfg, err := loadConfig()
	if err != nil {
		fail("%v", err)
	}
	cfg = hubConfig(cfg)
	if err := cfg.Validate(); err != nil {
		fail("invalid configuration:\n%v", err)
	}

	logger := newLogger()
	hub := serial.NewHub(flagViewerBuf, false)
	defer hub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	spawn := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
			// One part stopping stops the rest.
			cancel()
		}()
	}

	if flagSSHAddr != "" {
		sshCfg := tui.SSHServerConfig{
			Address:     flagSSHAddr,
			HostKeyPath: flagHostKey,
			IdleTimeout: time.Duration(flagIdleTimeout) * time.Minute,
		}
		server, err := tui.NewSSHServer(sshCfg, hub, cfg.Screen.Height, logger)
		if err != nil {
			fail("creating SSH server: %v", err)
		}
		fmt.Printf("Connect with: ssh localhost -p %s\n", portOf(flagSSHAddr))
		spawn("ssh", server.ListenAndServe)
	}
	if flagWSAddr != "" {
		ws := web.NewServer(flagWSAddr, hub, logger)
		fmt.Printf("Websocket viewers: ws://%s%s\n", flagWSAddr, web.DefaultPath)
		spawn("ws", ws.ListenAndServe)
	}

	spawn("pipeline", func(ctx context.Context) error {
		s := session{cfg: cfg, sink: hub, logger: logger, journal: true}
		_, err := s.run(ctx)
		return err
	})

	fmt.Println("Press Ctrl+C to stop")
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		fail("%v", err)
	}
}

// hubConfig adapts cfg for the viewer hub. Viewers receive exactly one row
// per message, so cursor redraw sequences are never sent through it.
func hubConfig(cfg config.PipelineConfig) config.PipelineConfig {
	cfg.Sink.Kind = "hub"
	cfg.Display.Redraw = config.RedrawNever
	return cfg
}

// portOf returns the port part of a host:port address.
func portOf(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[i+1:]
		}
	}
	return addr
}
