package server

import "github.com/hydrafeed/quotestream/internal/hub"

// ledgerWriter is the subset of *database.DB the recorder adapter depends
// on, letting tests substitute a fake without importing database/sqlite.
type ledgerWriter interface {
	RecordSessionEvent(clientID uint64, event, udpTarget string, tickers []string)
}

// DBRecorder adapts a ledgerWriter (normally *database.DB) to the
// SessionRecorder interface Listener expects, converting hub.ClientID to
// the plain uint64 the database layer stores.
type DBRecorder struct {
	DB ledgerWriter
}

// RecordSessionEvent implements SessionRecorder.
func (r *DBRecorder) RecordSessionEvent(cid hub.ClientID, event, udpTarget string, tickers []string) {
	r.DB.RecordSessionEvent(uint64(cid), event, udpTarget, tickers)
}
