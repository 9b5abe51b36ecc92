package cluster

import (
	"sync/atomic"
	"time"
)

// Exporter serves the current ticker universe to secondaries polling a
// primary node. Version increments whenever the tracked ticker set changes,
// so secondaries can cheaply skip no-op syncs.
type Exporter struct {
	nodeID  string
	version atomic.Int64
	tickers atomic.Value // []string
}

// NewExporter creates an Exporter seeded with the initial ticker universe.
func NewExporter(nodeID string, tickers []string) *Exporter {
	e := &Exporter{nodeID: nodeID}
	e.version.Store(1)
	e.tickers.Store(tickers)
	return e
}

// Export returns the current ticker universe as a versioned export.
func (e *Exporter) Export() TickerExport {
	return TickerExport{
		Version:   e.version.Load(),
		Timestamp: time.Now(),
		NodeID:    e.nodeID,
		Tickers:   e.tickers.Load().([]string),
	}
}

// Update replaces the tracked ticker universe and bumps the version.
func (e *Exporter) Update(tickers []string) {
	e.tickers.Store(tickers)
	e.version.Add(1)
}
