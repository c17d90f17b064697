package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/plcbridge/internal/bridges/plc"
	"github.com/nerrad567/plcbridge/internal/channel"
	"github.com/nerrad567/plcbridge/internal/infrastructure/config"
	"github.com/nerrad567/plcbridge/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// healthCheckTimeout bounds all dependency checks for one health request.
const healthCheckTimeout = 2 * time.Second

// StatusSource provides the bridge snapshot. Satisfied by *plc.Bridge.
type StatusSource interface {
	Status() plc.Status
}

// History reports when an output was last commanded. Satisfied by
// *journal.Store.
type History interface {
	UpdatedAt(ctx context.Context, channel string) (time.Time, error)
}

// HealthChecker is implemented by infrastructure clients
// (*mqtt.Client, *database.DB, *influxdb.Client).
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Timeouts Timeouts
	Logger   *logging.Logger
	Table    *channel.Table
	Status   StatusSource

	// History is optional; without it channel responses omit updated_at.
	History History

	// Checks are run by the health endpoint, keyed by component name.
	Checks map[string]HealthChecker

	Version string
}

// Timeouts holds the HTTP server timeouts.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
	Idle  time.Duration
}

// Server is the HTTP status server.
//
// It manages the HTTP listener, routes and middleware.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	timeouts Timeouts
	logger   *logging.Logger
	table    *channel.Table
	status   StatusSource
	history  History
	checks   map[string]HealthChecker
	version  string
	server   *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Table == nil {
		return nil, fmt.Errorf("channel table is required")
	}
	if deps.Status == nil {
		return nil, fmt.Errorf("status source is required")
	}

	return &Server{
		cfg:      deps.Config,
		timeouts: deps.Timeouts,
		logger:   deps.Logger,
		table:    deps.Table,
		status:   deps.Status,
		history:  deps.History,
		checks:   deps.Checks,
		version:  deps.Version,
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
//
// Returns:
//   - error: If the listen address cannot be bound
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.buildRouter(),
		ReadTimeout:       s.timeouts.Read,
		ReadHeaderTimeout: s.timeouts.Read,
		WriteTimeout:      s.timeouts.Write,
		IdleTimeout:       s.timeouts.Idle,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	// Bind synchronously so a port clash fails startup.
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	go func() {
		s.logger.Info("API server starting", "address", listener.Addr().String())
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
