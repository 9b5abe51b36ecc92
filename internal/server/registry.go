package server

import (
	"sync"
	"time"

	"github.com/hydrafeed/quotestream/internal/hub"
)

// SessionInfo describes a currently connected client, for the management
// API's /sessions endpoint.
type SessionInfo struct {
	ClientID       hub.ClientID
	UDPTarget      string
	Tickers        []string
	ConnectedSince time.Time
}

// SessionRegistry tracks currently connected clients in memory. Unlike the
// SQLite session ledger, it holds only live sessions and is read by the
// management API, never persisted.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[hub.ClientID]SessionInfo
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[hub.ClientID]SessionInfo)}
}

// Add registers a newly connected client.
func (r *SessionRegistry) Add(cid hub.ClientID, udpTarget string, tickers []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[cid] = SessionInfo{
		ClientID:       cid,
		UDPTarget:      udpTarget,
		Tickers:        tickers,
		ConnectedSince: time.Now(),
	}
}

// Remove drops a client on session exit.
func (r *SessionRegistry) Remove(cid hub.ClientID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, cid)
}

// List returns a snapshot of all currently connected sessions.
func (r *SessionRegistry) List() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
