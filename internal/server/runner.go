// Package server wires together the TCP control listener, the shared UDP
// socket, the ping tracker, the quote producer, and the optional
// management API / session ledger / cluster sync into one running process.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/hydrafeed/quotestream/internal/api"
	"github.com/hydrafeed/quotestream/internal/api/handlers"
	"github.com/hydrafeed/quotestream/internal/cluster"
	"github.com/hydrafeed/quotestream/internal/config"
	"github.com/hydrafeed/quotestream/internal/database"
	"github.com/hydrafeed/quotestream/internal/hub"
	"github.com/hydrafeed/quotestream/internal/ping"
	"github.com/hydrafeed/quotestream/internal/quote"
)

// shutdownTimeout bounds how long Run waits for in-flight sessions and
// servers to wind down once a shutdown is requested.
const shutdownTimeout = 5 * time.Second

// statSnapshotInterval controls how often Hub broadcast counters are
// persisted to the session ledger.
const statSnapshotInterval = 30 * time.Second

// Runner orchestrates quotestream server startup, wiring, and shutdown.
type Runner struct {
	logger *slog.Logger
}

// NewRunner creates a server runner with the given logger.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger}
}

// Run starts the quotestream server with the given configuration and blocks
// until ctx is cancelled or a fatal component error occurs. Callers
// typically derive ctx from signal.NotifyContext so SIGINT/SIGTERM trigger
// a graceful shutdown; tests can cancel it directly.
//
// Startup order: resolve the ticker universe, bind the shared UDP socket,
// build the Hub/producer/tracker, optionally open the session ledger and
// management API, then start every component's goroutine and wait.
func (r *Runner) Run(ctx context.Context, cfg *config.ServerConfig) error {
	tickers, err := resolveTickers(cfg.Tickers)
	if err != nil {
		return fmt.Errorf("resolve tickers: %w", err)
	}

	udpAddr, err := net.ResolveUDPAddr("udp", cfg.UDPBind)
	if err != nil {
		return fmt.Errorf("resolve udp bind %q: %w", cfg.UDPBind, err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("bind shared udp socket %s: %w", cfg.UDPBind, err)
	}
	defer udpConn.Close()

	h := hub.New(hub.DefaultQueueCapacity)
	ids := &hub.IDAllocator{}
	liveness := ping.NewLivenessMap()
	producer := quote.New(tickers, h)
	tracker := ping.New(udpConn, liveness, r.logger)
	sessions := NewSessionRegistry()

	listener := &Listener{
		Hub:      h,
		IDs:      ids,
		Liveness: liveness,
		UDPConn:  udpConn,
		Stats:    NewListenerStats(),
		Sessions: sessions,
		Logger:   r.logger,
	}

	var db *database.DB
	if cfg.DB.Path != "" {
		db, err = database.Open(cfg.DB.Path)
		if err != nil {
			return fmt.Errorf("open session ledger: %w", err)
		}
		defer db.Close()
		listener.Recorder = &DBRecorder{DB: db}
	}

	var exporter *cluster.Exporter
	if cfg.Cluster.Mode == config.ClusterModePrimary {
		exporter = cluster.NewExporter(cfg.Cluster.NodeID, producer.Tickers())
	}

	var syncer *cluster.Syncer
	if cfg.Cluster.Mode == config.ClusterModeSecondary {
		syncer, err = cluster.NewSyncer(&cfg.Cluster, r.logger, func(next []string) error {
			producer.SetTickers(next)
			return nil
		})
		if err != nil {
			return fmt.Errorf("create cluster syncer: %w", err)
		}
	}

	var apiSrv *api.Server
	if cfg.API.Enabled {
		apiSrv = api.New(api.Config{
			Host:          cfg.API.Host,
			Port:          cfg.API.Port,
			APIKey:        cfg.API.APIKey,
			Hub:           h,
			Producer:      producer,
			Sessions:      sessionListerAdapter{sessions},
			Exporter:      exporter,
			ClusterSecret: cfg.Cluster.SharedSecret,
		}, r.logger)
	}

	r.logStartup(cfg, tickers)

	errCh := make(chan error, 4)
	go func() { errCh <- tracker.Run(ctx) }()
	go func() { errCh <- listener.Run(ctx, cfg.TCPBind) }()
	go producer.Run(ctx)
	if apiSrv != nil {
		go func() {
			if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("management api: %w", err)
				return
			}
			errCh <- nil
		}()
	}
	if syncer != nil {
		syncer.Start(ctx)
	}
	if db != nil {
		go r.snapshotLoop(ctx, h, listener.Stats, db)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			runErr = err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if syncer != nil {
		syncer.Stop()
	}
	if apiSrv != nil {
		if err := apiSrv.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("management api: shutdown error", "error", err)
		}
	}
	if err := listener.Stop(shutdownTimeout); err != nil {
		r.logger.Warn("tcp listener: shutdown error", "error", err)
	}

	return runErr
}

func (r *Runner) snapshotLoop(ctx context.Context, h *hub.Hub, stats *ListenerStats, db *database.DB) {
	ticker := time.NewTicker(statSnapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := h.Snapshot()
			active := stats.Snapshot().ActiveSessions
			db.RecordStatSnapshot(snap.Sent, snap.DroppedFull, snap.DroppedDead, active)
		}
	}
}

func (r *Runner) logStartup(cfg *config.ServerConfig, tickers []string) {
	r.logger.Info("quotestream listening",
		"tcp_bind", cfg.TCPBind,
		"udp_bind", cfg.UDPBind,
		"tickers", len(tickers),
		"cluster_mode", cfg.Cluster.Mode,
		"api_enabled", cfg.API.Enabled,
		"ledger_enabled", cfg.DB.Path != "",
	)
}

// resolveTickers applies TickersConfig: file, inline text, or the embedded
// default universe, in that precedence order.
func resolveTickers(cfg config.TickersConfig) ([]string, error) {
	switch {
	case cfg.File != "":
		return quote.LoadFile(cfg.File)
	case cfg.Text != "":
		return quote.ParseText(cfg.Text), nil
	default:
		return quote.DefaultTickers, nil
	}
}

// sessionListerAdapter adapts *SessionRegistry to handlers.SessionLister,
// converting SessionInfo without api/handlers needing to import server.
type sessionListerAdapter struct {
	reg *SessionRegistry
}

func (a sessionListerAdapter) List() []handlers.SessionInfo {
	list := a.reg.List()
	out := make([]handlers.SessionInfo, 0, len(list))
	for _, s := range list {
		out = append(out, handlers.SessionInfo{
			ClientID:       uint64(s.ClientID),
			UDPTarget:      s.UDPTarget,
			Tickers:        s.Tickers,
			ConnectedSince: s.ConnectedSince,
		})
	}
	return out
}
