// Package cluster provides primary/secondary ticker-list synchronization for
// quotestream.
//
// A secondary feed node has no local ticker universe of its own; instead it
// periodically polls a primary node's cluster export endpoint and, on a
// newer version, replaces its local ticker set and the running quote
// producer's tracked symbols. Synchronization is one-way: secondary nodes
// pull from the primary. This mirrors a soft-clustering design where full
// consensus is unnecessary and simplicity is valued over strict consistency.
package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hydrafeed/quotestream/internal/config"
)

// TickerExport is the payload served by a primary node's cluster export
// endpoint and consumed by secondaries.
type TickerExport struct {
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"node_id"`
	Tickers   []string  `json:"tickers"`
}

// SyncStatus represents the current synchronization status, as returned by
// Syncer.Status.
type SyncStatus struct {
	Mode            config.ClusterMode `json:"mode"`
	NodeID          string             `json:"node_id"`
	PrimaryURL      string             `json:"primary_url,omitempty"`
	LastSyncTime    *time.Time         `json:"last_sync_time,omitempty"`
	LastSyncVersion int64              `json:"last_sync_version,omitempty"`
	LastSyncError   string             `json:"last_sync_error,omitempty"`
	NextSyncTime    *time.Time         `json:"next_sync_time,omitempty"`
	SyncCount       int64              `json:"sync_count"`
	ErrorCount      int64              `json:"error_count"`
}

// ApplyFunc replaces the locally tracked ticker universe (config + running
// producer) with tickers from a newer export.
type ApplyFunc func(tickers []string) error

// Syncer polls a primary node for ticker-list updates and applies them
// locally.
type Syncer struct {
	cfg       *config.ClusterConfig
	logger    *slog.Logger
	applyFunc ApplyFunc
	client    *http.Client

	mu           sync.RWMutex
	running      bool
	lastVersion  int64
	lastSyncTime *time.Time
	lastErr      string
	nextSyncTime *time.Time
	syncCount    int64
	errorCount   int64

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSyncer creates a syncer for secondary-mode nodes.
func NewSyncer(cfg *config.ClusterConfig, logger *slog.Logger, applyFunc ApplyFunc) (*Syncer, error) {
	if cfg.Mode != config.ClusterModeSecondary {
		return nil, fmt.Errorf("cluster syncer requires secondary mode, got %q", cfg.Mode)
	}
	if cfg.PrimaryURL == "" {
		return nil, fmt.Errorf("cluster: primary_url is required for secondary mode")
	}

	timeout, err := time.ParseDuration(cfg.SyncTimeout)
	if err != nil {
		timeout = 10 * time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Syncer{
		cfg:       cfg,
		logger:    logger,
		applyFunc: applyFunc,
		client:    &http.Client{Timeout: timeout},
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Start begins periodic synchronization, returning once the initial sync
// attempt has run (its outcome is logged, never fatal to startup).
func (s *Syncer) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	interval, err := time.ParseDuration(s.cfg.SyncInterval)
	if err != nil {
		interval = 30 * time.Second
	}

	s.logger.Info("cluster syncer starting",
		"primary_url", s.cfg.PrimaryURL, "sync_interval", interval, "node_id", s.cfg.NodeID)

	if err := s.doSync(ctx); err != nil {
		s.logger.Warn("cluster: initial sync failed, will retry", "error", err)
	}

	go s.runLoop(ctx, interval)
}

// Stop halts the synchronization loop and waits for it to exit.
func (s *Syncer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh
}

// Status returns the current synchronization status.
func (s *Syncer) Status() SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SyncStatus{
		Mode:            s.cfg.Mode,
		NodeID:          s.cfg.NodeID,
		PrimaryURL:      s.cfg.PrimaryURL,
		LastSyncTime:    s.lastSyncTime,
		LastSyncVersion: s.lastVersion,
		LastSyncError:   s.lastErr,
		NextSyncTime:    s.nextSyncTime,
		SyncCount:       s.syncCount,
		ErrorCount:      s.errorCount,
	}
}

func (s *Syncer) runLoop(ctx context.Context, interval time.Duration) {
	defer close(s.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		next := time.Now().Add(interval)
		s.mu.Lock()
		s.nextSyncTime = &next
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.doSync(ctx); err != nil {
				s.logger.Warn("cluster: sync failed", "error", err)
			}
		}
	}
}

func (s *Syncer) doSync(ctx context.Context) error {
	data, err := s.fetchExport(ctx)
	if err != nil {
		s.recordError(err)
		return fmt.Errorf("fetch ticker export: %w", err)
	}

	s.mu.RLock()
	current := s.lastVersion
	s.mu.RUnlock()

	if data.Version <= current {
		s.recordSuccess(data.Version)
		return nil
	}

	s.logger.Info("cluster: applying newer ticker export",
		"remote_version", data.Version, "local_version", current, "primary_node", data.NodeID)

	if err := s.applyFunc(data.Tickers); err != nil {
		s.recordError(err)
		return fmt.Errorf("apply ticker export: %w", err)
	}

	s.recordSuccess(data.Version)
	return nil
}

func (s *Syncer) fetchExport(ctx context.Context) (*TickerExport, error) {
	url := s.cfg.PrimaryURL + "/api/v1/cluster/tickers"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if s.cfg.SharedSecret != "" {
		req.Header.Set("X-Cluster-Secret", s.cfg.SharedSecret)
	}
	req.Header.Set("Accept", "application/json")
	if s.cfg.NodeID != "" {
		req.Header.Set("X-Node-ID", s.cfg.NodeID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var data TickerExport
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &data, nil
}

func (s *Syncer) recordSuccess(version int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.lastSyncTime = &now
	s.lastVersion = version
	s.lastErr = ""
	s.syncCount++
}

func (s *Syncer) recordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err.Error()
	s.errorCount++
}
