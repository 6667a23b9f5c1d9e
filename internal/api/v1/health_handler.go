package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gymmaster/internal/api/middleware"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db          Pinger
	pingTimeout time.Duration
}

func NewHealthHandler(db Pinger, pingTimeout time.Duration) *HealthHandler {
	if pingTimeout <= 0 {
		pingTimeout = 3 * time.Second
	}
	return &HealthHandler{db: db, pingTimeout: pingTimeout}
}

// RegisterHealthRoutes mounts liveness/readiness at the root and under /api/v1,
// plus the token-guarded Prometheus endpoint.
func RegisterHealthRoutes(router *gin.Engine, db Pinger, pingTimeout time.Duration, internalToken string) {
	handler := NewHealthHandler(db, pingTimeout)

	router.GET("/health", handler.Live)
	router.GET("/health/ready", handler.Ready)
	router.GET("/api/v1/health", handler.Live)
	router.GET("/api/v1/health/ready", handler.Ready)

	internal := router.Group("/internal")
	internal.Use(middleware.InternalTokenAuth(internalToken))
	internal.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": "database unavailable"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.pingTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"error":  "database unavailable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
