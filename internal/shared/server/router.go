package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cv-assistant/internal/services/health"
	"cv-assistant/internal/shared/config"
	"cv-assistant/internal/shared/metrics"
	"cv-assistant/internal/shared/server/middleware"
	"cv-assistant/internal/shared/server/respond"
	"cv-assistant/internal/workspace"
)

const (
	healthPath  = "/api/v1/health"
	metricsPath = "/api/v1/metrics"
)

// RouterDeps carries the handlers mounted by NewRouter.
type RouterDeps struct {
	Config    config.Config
	Health    *health.Service
	Workspace *workspace.Handler
	Limiter   *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	cfg := deps.Config
	modelRate := cfg.ModelRatePerSecond
	if modelRate <= 0 {
		modelRate = 0.5
	}
	modelBurst := cfg.ModelBurst
	if modelBurst <= 0 {
		modelBurst = 5
	}

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.Auth(healthPath, metricsPath),
		middleware.RateLimit(middleware.RateLimitConfig{
			GroupFor: middleware.GroupByRoute(
				"POST /api/v1/chat",
				"POST /api/v1/records/upload",
				"POST /api/v1/recommendations",
			),
			Limiter: deps.Limiter,
			Rules: map[string]middleware.RateLimitRule{
				middleware.ModelGroup: {Rate: modelRate, Burst: modelBurst},
			},
		}),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.OK(c, gin.H{"ok": true})
			return
		}
		status := deps.Health.Status(c.Request.Context())
		code := http.StatusOK
		if !status.OK {
			code = http.StatusServiceUnavailable
		}
		respond.JSON(c, code, status)
	})
	api.GET("/metrics", metrics.Handler())
	registerMeRoutes(api)

	if deps.Workspace != nil {
		deps.Workspace.RegisterRoutes(api.Group(""))
	}

	return r
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
