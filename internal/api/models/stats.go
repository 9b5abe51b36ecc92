package models

import "time"

// CPUStats contains system CPU statistics.
type CPUStats struct {
	NumCPU      int     `json:"num_cpu"`
	UsedPercent float64 `json:"used_percent"`
	IdlePercent float64 `json:"idle_percent"`
}

// MemoryStats contains system memory statistics.
type MemoryStats struct {
	TotalMB     float64 `json:"total_mb"`
	FreeMB      float64 `json:"free_mb"`
	UsedMB      float64 `json:"used_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// HubStats contains lifetime broadcast counters and the current active
// session count.
type HubStats struct {
	Sent           uint64 `json:"sent"`
	DroppedFull    uint64 `json:"dropped_full"`
	DroppedDead    uint64 `json:"dropped_dead"`
	ActiveSessions int64  `json:"active_sessions"`
}

// TickerPrice is one symbol's last published price.
type TickerPrice struct {
	Ticker string `json:"ticker"`
	Price  int64  `json:"price"`
}

// ServerStatsResponse contains server runtime statistics.
type ServerStatsResponse struct {
	Uptime        string        `json:"uptime"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     time.Time     `json:"start_time"`
	CPU           CPUStats      `json:"cpu"`
	Memory        MemoryStats   `json:"memory"`
	Hub           HubStats      `json:"hub"`
	Tickers       []TickerPrice `json:"tickers"`
}

// SessionResponse describes one currently connected client.
type SessionResponse struct {
	ClientID       uint64    `json:"client_id"`
	UDPTarget      string    `json:"udp_target"`
	Tickers        []string  `json:"tickers"`
	ConnectedSince time.Time `json:"connected_since"`
}
