// Package handlers implements the REST API endpoint handlers for the
// quotestream management API.
package handlers

import (
	"log/slog"
	"time"

	"github.com/hydrafeed/quotestream/internal/cluster"
	"github.com/hydrafeed/quotestream/internal/hub"
	"github.com/hydrafeed/quotestream/internal/quote"
)

// SessionInfo describes one currently connected client, decoupled from
// internal/server.SessionInfo so this package has no dependency on it.
type SessionInfo struct {
	ClientID       uint64
	UDPTarget      string
	Tickers        []string
	ConnectedSince time.Time
}

// SessionLister is the subset of *server.SessionRegistry the API depends
// on; callers adapt their concrete registry to this interface.
type SessionLister interface {
	List() []SessionInfo
}

// Handler contains dependencies for API handlers. Any dependency may be
// nil; handlers degrade gracefully (empty stats, 404 on cluster export)
// rather than panicking.
type Handler struct {
	logger    *slog.Logger
	startTime time.Time

	hub           *hub.Hub
	producer      *quote.Producer
	sessions      SessionLister
	exporter      *cluster.Exporter
	clusterSecret string
}

// New creates a new Handler with the given dependencies. clusterSecret, when
// non-empty, is required on the cluster ticker export endpoint via the
// X-Cluster-Secret header.
func New(logger *slog.Logger, h *hub.Hub, producer *quote.Producer, sessions SessionLister, exporter *cluster.Exporter, clusterSecret string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:        logger,
		startTime:     time.Now(),
		hub:           h,
		producer:      producer,
		sessions:      sessions,
		exporter:      exporter,
		clusterSecret: clusterSecret,
	}
}
