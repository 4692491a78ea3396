package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voice-intake/internal/services/health"
	"voice-intake/internal/sessions"
	"voice-intake/internal/shared/config"
	"voice-intake/internal/shared/metrics"
	"voice-intake/internal/shared/server/middleware"
	"voice-intake/internal/shared/server/respond"
	"voice-intake/internal/submissions"
)

const (
	rateGroupSessions = "SESSIONS"
	rateGroupTurns    = "TURNS"
)

// RouterDeps are the handlers mounted under /api/v1.
type RouterDeps struct {
	Config            config.Config
	SessionsHandler   *sessions.Handler
	SubmissionHandler *submissions.Handler
	Health            *health.Service
	Limiter           *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.JSON(c, http.StatusOK, gin.H{"ok": true})
			return
		}
		report := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	api.GET("/metrics", metrics.Handler())

	limited := api.Group("")
	limited.Use(middleware.RateLimit(middleware.RateLimitConfig{
		GroupFor: rateGroup,
		Limiter:  deps.Limiter,
		Rules: map[string]middleware.RateLimitRule{
			rateGroupSessions: {Rate: 0.5, Burst: 10},
			rateGroupTurns:    {Rate: 2, Burst: 20},
		},
	}))
	if deps.SessionsHandler != nil {
		deps.SessionsHandler.RegisterRoutes(limited)
	}
	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.RegisterRoutes(limited)
	}

	return r
}

// rateGroup puts session creation and transcript posts, the two routes that
// reach the remote services, into their own buckets.
func rateGroup(c *gin.Context) string {
	if c.Request.Method != http.MethodPost {
		return ""
	}
	switch c.FullPath() {
	case "/api/v1/sessions":
		return rateGroupSessions
	case "/api/v1/sessions/:id/transcript":
		return rateGroupTurns
	}
	return ""
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
