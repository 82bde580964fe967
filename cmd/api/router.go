package api

import (
	"net/http"

	authdelivery "blogpost-backend/internal/auth/delivery"
	authdomain "blogpost-backend/internal/auth/domain"
	"blogpost-backend/pkg/logger"
	"blogpost-backend/pkg/metrics"
	"blogpost-backend/pkg/middleware"
	"blogpost-backend/pkg/response"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const refreshPath = "/api/auth/refresh-token"

// Router builds the gin engine with the global middleware chain and all routes.
func (h *Handler) Router() *gin.Engine {
	if h.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	response.UseJSONFieldNames()

	r := gin.New()
	r.Use(
		middleware.Recovery(),
		otelgin.Middleware(h.cfg.ServiceName),
		logger.GinLogger(),
		metrics.Middleware(),
		middleware.CORS(),
		gzip.Gzip(gzip.DefaultCompression),
	)

	SetupRoutes(r, h)
	return r
}

func SetupRoutes(r *gin.Engine, h *Handler) {
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		extract := authdelivery.RouteExtractor(refreshPath, h.cfg.RefreshCookieName)
		requireAccess := authdelivery.Authenticate(h.validator, extract, authdomain.AbilityAccessAPI)
		requireRefresh := h.authHandler.RefreshGuard(h.validator, extract)

		// Auth routes, throttled per client IP
		auth := api.Group("/auth")
		auth.Use(h.ipLimiter.Handler(middleware.ByClientIP))
		{
			auth.POST("/register", h.authHandler.Register)
			auth.POST("/login", h.authHandler.Login)
			auth.POST("/logout", h.authHandler.Logout)
			auth.POST("/refresh-token", requireRefresh, h.authHandler.RefreshToken)
			auth.GET("/me", requireAccess, h.authHandler.Me)
			auth.POST("/me", requireAccess, h.authHandler.Me)
		}

		// Post routes (protected), throttled per user
		v1 := api.Group("/v1")
		v1.Use(authdelivery.AuthMiddleware(h.validator), h.userLimiter.Handler(middleware.ByUser))
		h.postHandler.Register(v1)
	}
}
