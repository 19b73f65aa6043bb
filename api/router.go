package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kentaroh-toyoda/ai-security-feed/config"
	"github.com/kentaroh-toyoda/ai-security-feed/dispatch"
	"github.com/kentaroh-toyoda/ai-security-feed/metrics"
	"github.com/kentaroh-toyoda/ai-security-feed/models"
)

// PoolStats reports browser pool utilisation for the health endpoint.
// Nil-able: service mode can run without a browser.
type PoolStats interface {
	Stats() models.PoolStats
}

// Deps carries the wired components the API serves.
type Deps struct {
	Dispatcher *dispatch.Dispatcher
	Pool       PoolStats
	Metrics    *metrics.Metrics
	Webhook    config.WebhookConfig
	StartTime  time.Time
}

// NewRouter creates a configured Gin engine.
//
// Health and metrics sit outside any future auth so monitoring probes
// always work.
func NewRouter(deps Deps, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")
	v1.GET("/health", Health(deps.Pool, deps.StartTime))
	v1.POST("/resolve", Resolve(deps.Dispatcher))
	v1.POST("/run", Run(deps.Dispatcher, deps.Webhook))

	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	return r
}
