package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	googleauth "litigation-backend/internal/auth"
	"litigation-backend/internal/chat"
	"litigation-backend/internal/documents"
	"litigation-backend/internal/pipeline"
	"litigation-backend/internal/shared/config"
	"litigation-backend/internal/shared/metrics"
	"litigation-backend/internal/shared/server/middleware"
	"litigation-backend/internal/shared/server/respond"
	"litigation-backend/internal/status"
	"litigation-backend/internal/users"
)

// RouterDeps carries the handlers the router mounts. Nil handlers are
// skipped so partial wiring works in tests.
type RouterDeps struct {
	Config           config.Config
	DocumentsHandler *documents.Handler
	PipelineHandler  *pipeline.Handler
	StatusHandler    *status.Handler
	UsersHandler     *users.Handler
	ChatHandler      *chat.Handler
	GoogleAuth       *googleauth.GoogleService
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Config.Env),
		middleware.RateLimit(rateLimits()),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	api.GET("/metrics", metrics.Handler())

	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}
	if deps.UsersHandler != nil {
		deps.UsersHandler.RegisterRoutes(api)
	}
	if deps.DocumentsHandler != nil {
		deps.DocumentsHandler.RegisterRoutes(api)
	}
	if deps.PipelineHandler != nil {
		deps.PipelineHandler.RegisterRoutes(api)
	}
	if deps.StatusHandler != nil {
		deps.StatusHandler.RegisterRoutes(api)
	}
	if deps.ChatHandler != nil {
		deps.ChatHandler.RegisterRoutes(api)
	}

	return r
}

// rateLimits gives the polling endpoints a higher budget than the rest
// of the API, since clients hit them every couple of seconds.
func rateLimits() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		DefaultGroup: "DEFAULT",
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method != http.MethodGet {
				return "DEFAULT"
			}
			switch c.FullPath() {
			case "/api/v1/status/:id", "/api/v1/status/user/:userId", "/api/v1/jobs/:id":
				return "POLLING"
			}
			return "DEFAULT"
		},
		Rules: map[string]middleware.RateLimitRule{
			"DEFAULT": {Rate: 5, Burst: 20},
			"POLLING": {Rate: 20, Burst: 60},
		},
	}
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
