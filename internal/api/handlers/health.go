package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hydrafeed/quotestream/internal/api/models"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Health returns a simple liveness check.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}

// Stats returns uptime, system CPU/mem, Hub broadcast counters, and the
// producer's last-known price for every tracked ticker.
func (h *Handler) Stats(c *gin.Context) {
	uptime := time.Since(h.startTime)

	memStats := models.MemoryStats{}
	if vmStat, err := mem.VirtualMemory(); err == nil {
		memStats.TotalMB = float64(vmStat.Total) / 1024 / 1024
		memStats.FreeMB = float64(vmStat.Available) / 1024 / 1024
		memStats.UsedMB = float64(vmStat.Used) / 1024 / 1024
		memStats.UsedPercent = vmStat.UsedPercent
	}

	cpuStats := models.CPUStats{NumCPU: runtime.NumCPU()}
	if cpuPercent, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		cpuStats.UsedPercent = cpuPercent[0]
		cpuStats.IdlePercent = 100.0 - cpuPercent[0]
	}

	resp := models.ServerStatsResponse{
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
		StartTime:     h.startTime,
		CPU:           cpuStats,
		Memory:        memStats,
		Hub:           h.hubStats(),
		Tickers:       h.tickerPrices(),
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) hubStats() models.HubStats {
	if h.hub == nil {
		return models.HubStats{}
	}
	snap := h.hub.Snapshot()
	return models.HubStats{
		Sent:           snap.Sent,
		DroppedFull:    snap.DroppedFull,
		DroppedDead:    snap.DroppedDead,
		ActiveSessions: int64(h.hub.ActiveClients()),
	}
}

func (h *Handler) tickerPrices() []models.TickerPrice {
	if h.producer == nil {
		return nil
	}
	snap := h.producer.Snapshot()
	out := make([]models.TickerPrice, 0, len(snap))
	for _, s := range snap {
		out = append(out, models.TickerPrice{Ticker: s.Ticker, Price: s.Price})
	}
	return out
}

// Sessions returns the currently connected clients.
func (h *Handler) Sessions(c *gin.Context) {
	if h.sessions == nil {
		c.JSON(http.StatusOK, []models.SessionResponse{})
		return
	}
	list := h.sessions.List()
	out := make([]models.SessionResponse, 0, len(list))
	for _, s := range list {
		out = append(out, models.SessionResponse{
			ClientID:       s.ClientID,
			UDPTarget:      s.UDPTarget,
			Tickers:        s.Tickers,
			ConnectedSince: s.ConnectedSince,
		})
	}
	c.JSON(http.StatusOK, out)
}

// ClusterTickers serves the current ticker universe for secondary nodes to
// poll. 404s when this node has no exporter, i.e. it is not running in
// cluster primary mode. When a cluster shared secret is configured, the
// caller must present it via X-Cluster-Secret.
func (h *Handler) ClusterTickers(c *gin.Context) {
	if h.exporter == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "cluster export is only available on a primary node"})
		return
	}
	if h.clusterSecret != "" && c.GetHeader("X-Cluster-Secret") != h.clusterSecret {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid or missing X-Cluster-Secret"})
		return
	}
	c.JSON(http.StatusOK, h.exporter.Export())
}
