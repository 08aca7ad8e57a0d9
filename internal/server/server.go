package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/zeusync/spatial/internal/config"
	"github.com/zeusync/spatial/internal/core/observability/log"
	"github.com/zeusync/spatial/internal/core/observability/metrics"
	"github.com/zeusync/spatial/internal/core/system"
)

// Server hosts a simulation world: it drives the tick loop at the logic
// cadence, the render loop at the presentation cadence, and serves the
// operational HTTP endpoints.
type Server struct {
	world     *system.World
	collector *metrics.Collector

	httpServer *http.Server
	listener   net.Listener

	// Server state
	running int32 // atomic bool
	closed  int32 // atomic bool

	config Config
	logger log.Log

	tickErrors atomic.Uint64
	lastTick   atomic.Int64 // unix nanos

	// Background workers
	workerGroup sync.WaitGroup
	stopChan    chan struct{}
}

// Config holds server configuration
type Config struct {
	LogicInterval  time.Duration
	RenderInterval time.Duration

	HTTPEnabled     bool
	HTTPAddress     string
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() Config {
	return ConfigFrom(config.Defaults())
}

// ConfigFrom extracts the host settings of a loaded configuration.
func ConfigFrom(c *config.Config) Config {
	return Config{
		LogicInterval:   c.Tick.LogicInterval(),
		RenderInterval:  c.Tick.RenderInterval(),
		HTTPEnabled:     c.HTTP.Enabled,
		HTTPAddress:     c.HTTP.Address,
		ShutdownTimeout: c.HTTP.ShutdownTimeout,
	}
}

func (c Config) validate() error {
	if c.LogicInterval <= 0 || c.RenderInterval <= 0 {
		return errors.Wrap(ErrInvalidConfig, "loop intervals must be positive")
	}
	if c.HTTPEnabled && c.HTTPAddress == "" {
		return errors.Wrap(ErrInvalidConfig, "http address is empty")
	}
	return nil
}

// NewServer creates a server for world. collector may be nil, in which case
// /metrics is not served.
func NewServer(config Config, world *system.World, collector *metrics.Collector, logger log.Log) *Server {
	if logger == nil {
		logger = log.NewNop()
	}
	server := &Server{
		world:     world,
		collector: collector,
		config:    config,
		logger:    logger.With(log.String("component", "server")),
	}

	server.logger.Info("Server created",
		log.Duration("logic_interval", config.LogicInterval),
		log.Duration("render_interval", config.RenderInterval),
		log.Bool("http", config.HTTPEnabled))

	return server
}

// Start starts the loops and, when enabled, the HTTP endpoints.
func (s *Server) Start(ctx context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}
	if err := s.config.validate(); err != nil {
		return err
	}
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	s.logger.Info("Starting server")
	s.stopChan = make(chan struct{})

	if s.config.HTTPEnabled {
		listener, err := net.Listen("tcp", s.config.HTTPAddress)
		if err != nil {
			atomic.StoreInt32(&s.running, 0)
			s.logger.Error("Failed to create listener", log.Error(err))
			return errors.Wrap(ErrListenerFailed, err.Error())
		}
		s.listener = listener
		s.httpServer = &http.Server{
			Handler:           s.routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		s.workerGroup.Add(1)
		go s.serveHTTP()
		s.logger.Info("Server listening", log.String("addr", listener.Addr().String()))
	}

	s.startWorkers(ctx, s.stopChan)
	s.logger.Info("Server started successfully")
	return nil
}

// Stop stops the loops and the HTTP endpoints.
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}

	s.logger.Info("Stopping server")
	close(s.stopChan)

	var err error
	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		err = s.httpServer.Shutdown(shutdownCtx)
		cancel()
	}

	s.workerGroup.Wait()
	s.logger.Info("Server stopped", log.Uint64("tick_errors", s.tickErrors.Load()))
	return err
}

// Close stops the server if needed; a closed server cannot be restarted.
func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil // Already closed
	}
	if atomic.LoadInt32(&s.running) == 1 {
		return s.Stop(context.Background())
	}
	return nil
}

// Addr returns the bound HTTP address, or nil when HTTP is disabled.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) IsRunning() bool { return atomic.LoadInt32(&s.running) == 1 }

func (s *Server) startWorkers(ctx context.Context, stop <-chan struct{}) {
	s.workerGroup.Add(2)
	go s.tickLoop(ctx, stop)
	go s.renderLoop(ctx, stop)
}

// tickLoop advances the world by a fixed step every logic interval. A
// failing tick is logged and the loop carries on with the next one.
func (s *Server) tickLoop(ctx context.Context, stop <-chan struct{}) {
	defer s.workerGroup.Done()
	s.logger.Debug("Tick loop started")
	defer s.logger.Debug("Tick loop stopped")

	ticker := time.NewTicker(s.config.LogicInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if err := s.world.Tick(ctx, s.config.LogicInterval); err != nil {
				s.tickErrors.Add(1)
				s.logger.Warn("Tick failed", log.Error(err))
			}
			s.lastTick.Store(time.Now().UnixNano())
			if s.collector != nil {
				s.collector.SetWorldStats(s.world.Stats())
			}
		}
	}
}

// renderLoop blends render transforms by the real time elapsed between
// passes.
func (s *Server) renderLoop(ctx context.Context, stop <-chan struct{}) {
	defer s.workerGroup.Done()

	ticker := time.NewTicker(s.config.RenderInterval)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case now := <-ticker.C:
			dtp := now.Sub(last)
			last = now
			if err := s.world.Render(ctx, dtp); err != nil {
				s.logger.Warn("Render pass failed", log.Error(err))
			}
		}
	}
}

func (s *Server) serveHTTP() {
	defer s.workerGroup.Done()
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("HTTP server failed", log.Error(err))
	}
}
