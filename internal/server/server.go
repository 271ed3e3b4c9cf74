// Package server exposes one nginx configuration file over HTTP and pushes
// a reload signal to connected viewers whenever the file changes.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/yildizm/nginx-config-viewer/internal/config"
	"github.com/yildizm/nginx-config-viewer/internal/logger"
	"github.com/yildizm/nginx-config-viewer/internal/monitor"
	"github.com/yildizm/nginx-config-viewer/internal/web"
)

// ReloadMessage is broadcast to every client when the file changes.
const ReloadMessage = "reload"

// Server serves /raw, /events, /stats and the web viewer.
type Server struct {
	cfg     config.ServerConfig
	path    string
	hub     *Hub
	metrics *monitor.ServerMetrics
	web     *web.Handler
	log     *logger.Logger

	// streams is cancelled on shutdown so open event streams return.
	streams      context.Context
	closeStreams context.CancelFunc

	mu   sync.Mutex
	addr string
}

// New creates a server for cfg. It does not touch the network or the
// watched file until Run is called.
func New(cfg config.ServerConfig, log *logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.Discard()
	}
	defaults := config.DefaultConfig().Server
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = defaults.Heartbeat
	}
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = defaults.ClientBuffer
	}

	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	webHandler, err := web.NewHandler(log.WithComponent("web"))
	if err != nil {
		return nil, fmt.Errorf("failed to load web viewer: %w", err)
	}

	metrics := monitor.NewServerMetrics()
	streams, closeStreams := context.WithCancel(context.Background())

	return &Server{
		cfg:          cfg,
		path:         absPath,
		hub:          NewHub(cfg.ClientBuffer, metrics),
		metrics:      metrics,
		web:          webHandler,
		log:          log,
		streams:      streams,
		closeStreams: closeStreams,
	}, nil
}

// Path returns the absolute path of the served file.
func (s *Server) Path() string {
	return s.path
}

// Hub returns the client hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Metrics returns the live server metrics.
func (s *Server) Metrics() *monitor.ServerMetrics {
	return s.metrics
}

// Addr returns the address the server is listening on, or "" before Run
// has bound it.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /raw", s.handleRaw)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.Handle("/", s.web)
	return s.logRequests(mux)
}

// NotifyChange broadcasts a reload to every connected client.
func (s *Server) NotifyChange() {
	s.metrics.FileChanges.Inc()
	delivered := s.hub.Broadcast(ReloadMessage)
	s.log.InfoWithFields("Config changed", []logger.Field{
		logger.Path(s.path),
		logger.F("clients", delivered),
	})
}

// Run watches the file and serves HTTP until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	watcher, err := NewWatcher(s.path, s.cfg.Debounce, s.NotifyChange, s.log.WithComponent("watcher"))
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(s.closeStreams)

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go func() {
		_ = watcher.Run(watchCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.log.InfoWithFields("Listening", []logger.Field{
		logger.F("addr", s.Addr()),
		logger.Path(s.path),
		logger.F("cors", s.cfg.CORS),
	})

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	s.log.Info("Shutting down")
	shutdownCtx := context.Background()
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, s.cfg.ShutdownTimeout)
		defer cancel()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
