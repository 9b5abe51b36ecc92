package api

import (
	"github.com/gin-gonic/gin"
	"github.com/hydrafeed/quotestream/internal/api/handlers"
	"github.com/hydrafeed/quotestream/internal/api/middleware"
)

// RegisterRoutes wires the read-only management API. apiKey, when
// non-empty, gates every route behind the X-API-Key header.
func RegisterRoutes(r *gin.Engine, h *handlers.Handler, apiKey string) {
	api := r.Group("/api/v1")

	if apiKey != "" {
		api.Use(middleware.RequireAPIKey(apiKey))
	}

	api.GET("/health", h.Health)
	api.GET("/stats", h.Stats)
	api.GET("/sessions", h.Sessions)
	api.GET("/cluster/tickers", h.ClusterTickers)
}
