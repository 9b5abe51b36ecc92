package database

import (
	"log/slog"
	"strings"
)

// RecordSessionEvent writes a session_events row. It is best-effort: a
// logged failure never propagates to the caller, since the ledger must
// never slow down or abort a TCP handler or Session.
func (db *DB) RecordSessionEvent(clientID uint64, event, udpTarget string, tickers []string) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	_, err := db.conn.Exec(
		`INSERT INTO session_events (client_id, event, udp_target, tickers) VALUES (?, ?, ?, ?)`,
		clientID, event, udpTarget, strings.Join(tickers, ","),
	)
	if err != nil {
		slog.Default().Warn("session ledger: failed to record session event",
			"client_id", clientID, "event", event, "error", err)
	}
}

// RecordStatSnapshot writes a stat_snapshots row. Best-effort, same as
// RecordSessionEvent.
func (db *DB) RecordStatSnapshot(sent, droppedFull, droppedDead uint64, activeSessions int64) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	_, err := db.conn.Exec(
		`INSERT INTO stat_snapshots (sent, dropped_full, dropped_dead, active_sessions) VALUES (?, ?, ?, ?)`,
		sent, droppedFull, droppedDead, activeSessions,
	)
	if err != nil {
		slog.Default().Warn("session ledger: failed to record stat snapshot", "error", err)
	}
}

// SessionEvent is a row read back from session_events by
// RecentSessionEvents.
type SessionEvent struct {
	ID        int64
	ClientID  uint64
	Event     string
	UDPTarget string
	Tickers   []string
	At        string
}

// RecentSessionEvents returns up to limit most recent session_events rows,
// newest first.
func (db *DB) RecentSessionEvents(limit int) ([]SessionEvent, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(
		`SELECT id, client_id, event, udp_target, tickers, at FROM session_events ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []SessionEvent
	for rows.Next() {
		var e SessionEvent
		var tickers string
		if err := rows.Scan(&e.ID, &e.ClientID, &e.Event, &e.UDPTarget, &tickers, &e.At); err != nil {
			return nil, err
		}
		if tickers != "" {
			e.Tickers = strings.Split(tickers, ",")
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
