package ops

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-client/internal/observability"
	"chat-client/internal/telemetry"
	"chat-client/internal/transcript"
)

// NewRouter builds the local ops surface: health, metrics and debug routes.
// This is observability plumbing for the client process, not a product API.
func NewRouter(sync *transcript.Synchronizer, emitter *telemetry.AuditEmitter, channelUp func() bool, debug bool) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("chat-client"))
	router.Use(observability.OpsMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":            "ok",
			"channel_connected": channelUp(),
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	registerDebugRoutes(router, sync, emitter, debug)
	return router
}

// registerDebugRoutes wires debug-only endpoints.
func registerDebugRoutes(router *gin.Engine, sync *transcript.Synchronizer, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/transcript", func(c *gin.Context) {
		entries := sync.Snapshot()
		type entryView struct {
			ID        string `json:"id"`
			Confirmed bool   `json:"confirmed"`
			Author    string `json:"author"`
			Content   string `json:"content"`
			CreatedAt string `json:"created_at"`
		}
		views := make([]entryView, 0, len(entries))
		for _, e := range entries {
			views = append(views, entryView{
				ID:        e.ID.String(),
				Confirmed: e.Confirmed(),
				Author:    e.Author,
				Content:   e.Content,
				CreatedAt: e.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"conversation": sync.Active().String(),
			"messages":     views,
		})
	})

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "audit_test", "", map[string]any{"text": "audit test"})
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
