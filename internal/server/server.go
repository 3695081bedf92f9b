package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/castwatch/castwatch/internal/logging"
	"github.com/castwatch/castwatch/internal/monitor"
)

const (
	// DefaultPort is the API port when none is configured
	DefaultPort = 8080

	// DefaultShutdownTimeout bounds waiting for in-flight requests on shutdown
	DefaultShutdownTimeout = 10 * time.Second

	// eventBuffer is the monitor subscription buffer of the WebSocket hub
	eventBuffer = 64
)

// Config holds the server configuration
type Config struct {
	Host            string
	Port            int
	CertPath        string // Serve HTTPS when both CertPath and KeyPath are set
	KeyPath         string
	ShutdownTimeout time.Duration
}

// MonitorView is the part of the monitor the API reads from.
type MonitorView interface {
	State() monitor.State
	CurrentDevices() []monitor.Device
	Statuses() monitor.Snapshot
	Subscribe(buffer int) (<-chan monitor.Event, func())
}

// Server exposes the monitor over HTTP and streams its events over WebSocket.
type Server struct {
	config    Config
	mon       MonitorView
	hub       *Hub
	tlsConfig *tls.Config

	mu         sync.Mutex
	httpServer *http.Server
}

// New creates a new Server instance
func New(config Config, mon MonitorView) (*Server, error) {
	if mon == nil {
		return nil, errors.New("monitor is required")
	}
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}

	s := &Server{
		config: config,
		mon:    mon,
		hub:    NewHub(),
	}

	if config.CertPath != "" && config.KeyPath != "" {
		tlsConfig, err := NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		s.tlsConfig = tlsConfig
	}

	return s, nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	addr := s.Addr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	events, unsubscribe := s.mon.Subscribe(eventBuffer)
	defer unsubscribe()

	hubCtx, cancelHub := context.WithCancel(ctx)
	defer cancelHub()
	go s.hub.Run(hubCtx, events)

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         s.tlsConfig,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	logging.Info("Starting castwatch API server",
		zap.String("addr", listener.Addr().String()),
		zap.Any("tls_info", GetTLSInfo(s.tlsConfig)),
	)

	errCh := make(chan error, 1)
	go func() {
		if s.tlsConfig != nil {
			errCh <- srv.ServeTLS(listener, "", "")
			return
		}
		errCh <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server failed: %w", err)
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server...")

	// Hijacked WebSocket connections are not tracked by http.Server.
	s.hub.CloseAll()

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Shutdown timeout, forcing close", zap.Error(err))
		return srv.Close()
	}
	logging.Info("All connections closed gracefully")
	return nil
}

// GetActiveConnections returns the number of connected WebSocket clients
func (s *Server) GetActiveConnections() int {
	return s.hub.ClientCount()
}
