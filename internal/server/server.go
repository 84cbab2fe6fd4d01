// Package server implements the reference server: a runnable daemon that
// registers the built-in and illustrative command handlers and exposes
// them over a Unix socket and an HTTP port (with a WebSocket upgrade on
// the same port), the live counterpart the transports in internal/transport
// talk to. It exists to give internal/transport, internal/registry, and
// internal/filter something real to exercise end to end; it is not itself
// the business logic the spec is concerned with.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shellbridge/shellbridge/internal/registry"
	"github.com/shellbridge/shellbridge/internal/transport"
)

// Config controls how a Server listens and throttles connections.
type Config struct {
	// SocketPath is the Unix domain socket to listen on. Empty disables
	// the Unix listener.
	SocketPath string

	// HTTPAddr is the address (host:port) the HTTP server (including the
	// WebSocket upgrade endpoint) listens on. Empty disables it.
	HTTPAddr string

	// MaxConnections bounds concurrent Unix-socket and WebSocket
	// connections together (0 = unlimited).
	MaxConnections int

	// RateLimitPerSecond and RateLimitBurst configure the per-remote-address
	// token bucket. Either being <= 0 disables rate limiting.
	RateLimitPerSecond float64
	RateLimitBurst     int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults for a local reference server.
func DefaultConfig() Config {
	return Config{
		SocketPath:         transport.DefaultSocketPath(),
		HTTPAddr:           "127.0.0.1:7032",
		MaxConnections:     100,
		RateLimitPerSecond: 50,
		RateLimitBurst:     100,
		WriteTimeout:       30 * time.Second,
	}
}

// Server hosts the command registry and fans requests in from every
// listener it owns.
type Server struct {
	cfg      Config
	registry *registry.CommandRegistry
	hub      *Hub
	limiter  *addressLimiter

	unixListener net.Listener
	httpServer   *http.Server
	httpAddr     string
	upgrader     websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started     time.Time
	connCount   atomic.Int64
	nextConn    atomic.Int64
	rejectCount atomic.Int64

	sessionMu   sync.Mutex
	sessions    map[string]*httpSession
	nextSession atomic.Int64

	shutdownOnce sync.Once
}

// New builds a Server with the built-in and illustrative handlers
// registered. Additional handlers can be registered on Registry() before
// Start.
func New(cfg Config) *Server {
	s := &Server{
		cfg:      cfg,
		hub:      NewHub(),
		limiter:  newAddressLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		sessions: make(map[string]*httpSession),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.registry = registry.New(nil)
	s.registerDefaultHandlers()
	return s
}

// Registry exposes the underlying CommandRegistry for additional handler
// registration before Start.
func (s *Server) Registry() *registry.CommandRegistry { return s.registry }

// HTTPAddr returns the actual bound address of the HTTP listener
// (resolved, so "127.0.0.1:0" in Config becomes the real ephemeral
// port), or "" if the HTTP listener was never started.
func (s *Server) HTTPAddr() string { return s.httpAddr }

// SocketPath returns the configured Unix socket path.
func (s *Server) SocketPath() string { return s.cfg.SocketPath }

func (s *Server) registerDefaultHandlers() {
	s.registry.RegisterMany(
		registry.PingHandler{},
		registry.ConfigHandler{},
		registry.NewRoutesHandler(s.registry),
		registry.ContainerHandler{},
		registry.NewCommandHandler(s.registry),
		&statusHandler{server: s},
		&echoHandler{server: s},
		&sleepHandler{},
		&subscribeHandler{server: s},
		&unsubscribeHandler{server: s},
	)
}

func (s *Server) configMap() map[string]any {
	return map[string]any{
		"socket_path":           s.cfg.SocketPath,
		"http_addr":             s.cfg.HTTPAddr,
		"max_connections":       s.cfg.MaxConnections,
		"rate_limit_per_second": s.cfg.RateLimitPerSecond,
		"rate_limit_burst":      s.cfg.RateLimitBurst,
	}
}

// Start binds every configured listener and begins serving. It returns
// once listeners are bound; accept loops run in background goroutines.
func (s *Server) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = time.Now()

	if s.cfg.SocketPath != "" {
		if err := s.startUnixListener(); err != nil {
			return fmt.Errorf("unix listener: %w", err)
		}
	}

	if s.cfg.HTTPAddr != "" {
		if err := s.startHTTPListener(); err != nil {
			return fmt.Errorf("http listener: %w", err)
		}
	}

	return nil
}

// Stop closes every listener and waits (bounded by ctx) for in-flight
// connections to finish.
func (s *Server) Stop(ctx context.Context) error {
	var stopErr error
	s.shutdownOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}

		if s.unixListener != nil {
			_ = s.unixListener.Close()
			_ = os.Remove(s.cfg.SocketPath)
		}

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(ctx); err != nil {
				stopErr = fmt.Errorf("http shutdown: %w", err)
			}
		}

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			if stopErr == nil {
				stopErr = ctx.Err()
			}
		}
	})
	return stopErr
}

// Wait blocks until the server's context is cancelled (by Stop or by the
// parent context passed to Start).
func (s *Server) Wait() {
	if s.ctx != nil {
		<-s.ctx.Done()
	}
}

// Info reports liveness and connection statistics, backing both the
// "status" command and the HTTP /health endpoint.
func (s *Server) Info() map[string]any {
	return map[string]any{
		"uptime_seconds":    time.Since(s.started).Seconds(),
		"connections":       s.connCount.Load(),
		"total_connections": s.nextConn.Load(),
		"rejected":          s.rejectCount.Load(),
		"topics":            s.hub.TopicCount(),
		"commands":          s.registry.GetCommandList(),
	}
}

func isClosedErr(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, net.ErrClosed)
}

func logServer(format string, args ...any) {
	log.Printf("[server] "+format, args...)
}
