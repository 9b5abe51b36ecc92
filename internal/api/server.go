// Package api provides the read-only REST management API for quotestream:
// health, broadcast/session statistics, the connected-session list, and (in
// cluster primary mode) the ticker-list export endpoint secondaries poll.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hydrafeed/quotestream/internal/api/handlers"
	"github.com/hydrafeed/quotestream/internal/api/middleware"
	"github.com/hydrafeed/quotestream/internal/cluster"
	"github.com/hydrafeed/quotestream/internal/hub"
	"github.com/hydrafeed/quotestream/internal/quote"
)

// Server is the management REST API server.
//
// Security note: do not expose the API to untrusted networks without an
// API key set.
type Server struct {
	logger     *slog.Logger
	engine     *gin.Engine
	httpServer *http.Server
}

// Config configures a management API Server.
type Config struct {
	Host     string
	Port     int
	APIKey   string
	Hub      *hub.Hub
	Producer *quote.Producer
	Sessions handlers.SessionLister
	Exporter *cluster.Exporter

	// ClusterSecret, when non-empty, is required on the cluster ticker
	// export endpoint via the X-Cluster-Secret header, matching the
	// secret secondaries send when polling.
	ClusterSecret string
}

// New builds a Server bound to cfg.Host:cfg.Port.
func New(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.SlogRequestLogger(logger))

	h := handlers.New(logger, cfg.Hub, cfg.Producer, cfg.Sessions, cfg.Exporter, cfg.ClusterSecret)
	RegisterRoutes(engine, h, cfg.APIKey)

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{logger: logger, engine: engine, httpServer: httpServer}
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	if s.httpServer == nil {
		return ""
	}
	return s.httpServer.Addr
}

// Engine returns the underlying gin engine, mostly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// ListenAndServe runs the HTTP server until it is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
