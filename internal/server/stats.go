package server

import (
	"sync/atomic"
)

// ListenerStats collects TCP control-connection statistics. All methods are
// safe for concurrent use.
type ListenerStats struct {
	connectionsTotal atomic.Uint64
	streamsAccepted  atomic.Uint64
	streamsRejected  atomic.Uint64
	activeSessions   atomic.Int64
}

// NewListenerStats creates a new listener statistics collector.
func NewListenerStats() *ListenerStats {
	return &ListenerStats{}
}

// RecordConnection records an accepted TCP connection, before its STREAM
// command is parsed.
func (s *ListenerStats) RecordConnection() {
	s.connectionsTotal.Add(1)
}

// RecordStreamAccepted records a successfully registered STREAM command.
func (s *ListenerStats) RecordStreamAccepted() {
	s.streamsAccepted.Add(1)
	s.activeSessions.Add(1)
}

// RecordStreamRejected records a STREAM command that failed to parse or
// register.
func (s *ListenerStats) RecordStreamRejected() {
	s.streamsRejected.Add(1)
}

// RecordSessionEnded records a session that has returned from Run.
func (s *ListenerStats) RecordSessionEnded() {
	s.activeSessions.Add(-1)
}

// ListenerSnapshot is a point-in-time snapshot of listener statistics.
type ListenerSnapshot struct {
	ConnectionsTotal uint64
	StreamsAccepted  uint64
	StreamsRejected  uint64
	ActiveSessions   int64
}

// Snapshot returns the current statistics.
func (s *ListenerStats) Snapshot() ListenerSnapshot {
	return ListenerSnapshot{
		ConnectionsTotal: s.connectionsTotal.Load(),
		StreamsAccepted:  s.streamsAccepted.Load(),
		StreamsRejected:  s.streamsRejected.Load(),
		ActiveSessions:   s.activeSessions.Load(),
	}
}
