package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"voice-intake/internal/shared/telemetry"
)

// Context keys handlers set so the request log can carry them.
const (
	SessionIDKey        = "sessionId"
	TrackingIDKey       = "trackingId"
	StatusTransitionKey = "statusTransition"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		reqID := RequestIDFromContext(c)

		sessionID, _ := c.Get(SessionIDKey)
		trackingID, _ := c.Get(TrackingIDKey)
		statusTransition := c.GetString(StatusTransitionKey)

		telemetry.Info("request.complete", map[string]any{
			"request_id":        reqID,
			"method":            c.Request.Method,
			"path":              c.Request.URL.Path,
			"route":             c.FullPath(),
			"status":            status,
			"status_transition": statusTransition,
			"duration_ms":       float64(latency.Microseconds()) / 1000.0,
			"session_id":        sessionID,
			"tracking_id":       trackingID,
			"client_ip":         c.ClientIP(),
			"user_agent":        c.Request.UserAgent(),
		})
	}
}
