package handlers_test

import (
	"github.com/gin-gonic/gin"
	"github.com/hydrafeed/quotestream/internal/api/handlers"
)

func setupTestRouter(h *handlers.Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	api := r.Group("/api/v1")
	api.GET("/health", h.Health)
	api.GET("/stats", h.Stats)
	api.GET("/sessions", h.Sessions)
	api.GET("/cluster/tickers", h.ClusterTickers)

	return r
}

type fakeSessionLister struct {
	sessions []handlers.SessionInfo
}

func (f *fakeSessionLister) List() []handlers.SessionInfo {
	return f.sessions
}
