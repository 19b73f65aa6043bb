package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kentaroh-toyoda/ai-security-feed/config"
	"github.com/kentaroh-toyoda/ai-security-feed/dispatch"
	"github.com/kentaroh-toyoda/ai-security-feed/models"
	"github.com/kentaroh-toyoda/ai-security-feed/webhook"
)

// HealthResponse is the GET /api/v1/health payload.
type HealthResponse struct {
	Status    string           `json:"status"`
	Uptime    string           `json:"uptime"`
	PoolStats models.PoolStats `json:"pool_stats"`
	Version   string           `json:"version"`
}

// errorResponse is the uniform error payload.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// resolveRequest is the POST /api/v1/resolve body.
type resolveRequest struct {
	URL  string `json:"url" binding:"required"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// runRequest is the POST /api/v1/run body.
type runRequest struct {
	Sources []models.Source `json:"sources" binding:"required"`
}

// Health reports service liveness and pool utilisation. Status degrades
// when more than 80% of sessions are lent out.
func Health(pool PoolStats, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := models.PoolStats{}
		if pool != nil {
			stats = pool.Stats()
		}

		status := "healthy"
		if stats.Capacity > 0 && stats.InUse > int(float64(stats.Capacity)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			PoolStats: stats,
			Version:   "0.1.0",
		})
	}
}

// Resolve runs one source through the full routing and arbitration pipeline
// and returns its result, including the attempt history.
func Resolve(d *dispatch.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resolveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{
				Code:    models.ErrCodeInvalidInput,
				Message: "invalid request body: " + err.Error(),
			})
			return
		}

		src := models.Source{URL: req.URL, Name: req.Name, Type: models.SourceType(req.Type)}
		results, _ := d.Run(c.Request.Context(), []models.Source{src})
		res := results[0]

		if res.Failed() {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":  errorResponse{Code: res.Err.Code, Message: res.Err.Message},
				"result": res,
			})
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// Run executes a whole batch and returns per-source results plus the
// summary. When a webhook endpoint is configured, the summary is also
// delivered there asynchronously so a slow endpoint never delays the
// response.
func Run(d *dispatch.Dispatcher, hook config.WebhookConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req runRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{
				Code:    models.ErrCodeInvalidInput,
				Message: "invalid request body: " + err.Error(),
			})
			return
		}
		if len(req.Sources) == 0 {
			c.JSON(http.StatusBadRequest, errorResponse{
				Code:    models.ErrCodeInvalidInput,
				Message: "sources must not be empty",
			})
			return
		}

		results, summary := d.Run(c.Request.Context(), req.Sources)
		if hook.URL != "" {
			webhook.DeliverAsync(hook.URL, hook.Secret, webhook.NewRunCompleted(summary))
		}
		c.JSON(http.StatusOK, gin.H{
			"summary": summary,
			"results": results,
		})
	}
}
