package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-core/internal/telemetry"
)

// DebugInfo is the runtime wiring reported by the debug endpoints.
type DebugInfo struct {
	BroadcastDriver string
	PresenceDriver  string
	PublisherMode   string
}

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, info DebugInfo, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/drivers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"broadcast_driver": info.BroadcastDriver,
			"presence_driver":  info.PresenceDriver,
			"publisher_mode":   info.PublisherMode,
		})
	})

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
