package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/biobridge/internal/bridges/fingerprint"
	"github.com/nerrad567/biobridge/internal/infrastructure/config"
	"github.com/nerrad567/biobridge/internal/infrastructure/logging"
	"github.com/nerrad567/biobridge/internal/member"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// WebSocket defaults (seconds and bytes) for zero config values.
const (
	defaultPingInterval   = 30
	defaultPongTimeout    = 10
	defaultMaxMessageSize = 8192
)

// BridgeService is the slice of *fingerprint.Bridge the API uses.
type BridgeService interface {
	Submit(ctx context.Context, cmd fingerprint.Command) (fingerprint.Ack, error)
	Subscribe() *fingerprint.Subscription
	Unsubscribe(sub *fingerprint.Subscription)
	Status() fingerprint.ConnectionStatus
	Snapshot() fingerprint.Snapshot
	Reopen(ctx context.Context) error
}

// MemberDirectory looks up who holds a fingerprint slot.
// Satisfied by *member.SQLiteRepository.
type MemberDirectory interface {
	GetByFingerprint(ctx context.Context, fingerID int) (*member.Member, error)
	List(ctx context.Context) ([]member.Member, error)
}

// ConnectionChecker reports broker connectivity. Satisfied by *mqtt.Client.
type ConnectionChecker interface {
	IsConnected() bool
}

// PortLister enumerates serial ports visible to the host.
type PortLister func() ([]string, error)

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Bridge  BridgeService
	Members MemberDirectory   // Optional: member lookup routes are omitted when nil
	Audit   AuditLister       // Optional: audit route is omitted when nil
	Ports   PortLister        // Optional: defaults to fingerprint.ListPorts
	MQTT    ConnectionChecker // Optional: reported in metrics
	DB      *sql.DB           // Optional: pool stats reported in metrics
	Version string
}

// Server is the HTTP API server for the bridge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	bridge    BridgeService
	members   MemberDirectory
	audit     AuditLister
	ports     PortLister
	mqtt      ConnectionChecker
	db        *sql.DB
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	ctx       context.Context    // server lifetime, outlives individual requests
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}

	ports := deps.Ports
	if ports == nil {
		ports = fingerprint.ListPorts
	}

	ws := deps.WS
	if ws.PingInterval <= 0 {
		ws.PingInterval = defaultPingInterval
	}
	if ws.PongTimeout <= 0 {
		ws.PongTimeout = defaultPongTimeout
	}
	if ws.MaxMessageSize <= 0 {
		ws.MaxMessageSize = defaultMaxMessageSize
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     ws,
		logger:    deps.Logger,
		bridge:    deps.Bridge,
		members:   deps.Members,
		audit:     deps.Audit,
		ports:     ports,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(ws, deps.Logger),
	}
	return s, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(s.ctx)

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

// lifetime returns the server context, or Background before Start.
// Work that must outlive the triggering request runs under it.
func (s *Server) lifetime() context.Context {
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}
