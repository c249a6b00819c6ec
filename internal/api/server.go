package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/fleetwatch-core/internal/archive"
	"github.com/nerrad567/fleetwatch-core/internal/auth"
	"github.com/nerrad567/fleetwatch-core/internal/device"
	"github.com/nerrad567/fleetwatch-core/internal/infrastructure/config"
	"github.com/nerrad567/fleetwatch-core/internal/infrastructure/logging"
	"github.com/nerrad567/fleetwatch-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/fleetwatch-core/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ArchiveReader reads archived status change events for one unit.
// *archive.Repository satisfies it.
type ArchiveReader interface {
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]archive.Entry, error)
}

// IngestStatsProvider exposes telemetry ingest counters for /metrics.
type IngestStatsProvider interface {
	Stats() telemetry.IngestorStats
}

// QueueStatsProvider reports a listener delivery queue.
// *device.QueuedListener satisfies it.
type QueueStatsProvider interface {
	Stats() device.QueueStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Logger    *logging.Logger
	Engine    *device.Engine
	Operators *auth.Directory

	// Optional. Nil disables the feature that needs it.
	Archive ArchiveReader
	MQTT    *mqtt.Client
	Ingest  IngestStatsProvider
	DB      *sql.DB

	// Prometheus serves GET /metrics/prometheus when set.
	Prometheus http.Handler
	// Queues are the listener delivery queues reported by /metrics.
	Queues     []QueueStatsProvider

	// NotificationWindow is the default window for the notification feed.
	NotificationWindow int
	// HistoryLimit is the default page size for /history and archive reads.
	HistoryLimit int

	Version string
}

// Server is the HTTP API server for FleetWatch Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg          config.APIConfig
	wsCfg        config.WebSocketConfig
	secCfg       config.SecurityConfig
	logger       *logging.Logger
	engine       *device.Engine
	operators    *auth.Directory
	archive      ArchiveReader
	mqtt         *mqtt.Client
	ingest       IngestStatsProvider
	db           *sql.DB
	prometheus   http.Handler
	queues       []QueueStatsProvider
	notifyWindow int
	historyLimit int
	version      string
	startTime    time.Time
	server       *http.Server
	hub          *Hub
	tickets      *ticketStore
	cancel       context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The WebSocket hub is created immediately so it can be subscribed to the
// engine before the server starts. The server is not started until Start()
// is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, engine, operators)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("device engine is required")
	}
	if deps.Operators == nil {
		return nil, fmt.Errorf("operator directory is required")
	}

	s := &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WS,
		secCfg:       deps.Security,
		logger:       deps.Logger,
		engine:       deps.Engine,
		operators:    deps.Operators,
		archive:      deps.Archive,
		mqtt:         deps.MQTT,
		ingest:       deps.Ingest,
		db:           deps.DB,
		prometheus:   deps.Prometheus,
		queues:       deps.Queues,
		notifyWindow: deps.NotificationWindow,
		historyLimit: deps.HistoryLimit,
		version:      deps.Version,
		startTime:    time.Now(),
		tickets:      newTicketStore(),
	}
	if s.notifyWindow <= 0 {
		s.notifyWindow = device.DefaultNotificationWindow
	}
	if s.historyLimit <= 0 {
		s.historyLimit = device.DefaultRecentLimit
	}

	s.hub = NewHub(s.wsCfg, s.logger, func(role auth.Role) []device.Notification {
		return s.engine.Notifications(string(role), s.notifyWindow)
	})

	return s, nil
}

// Hub returns the WebSocket hub. Subscribe it to the engine to stream
// status changes to connected dashboards.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and ticket cleanup, builds the router, and
// launches the HTTP listener in a background goroutine. The server can be
// stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
