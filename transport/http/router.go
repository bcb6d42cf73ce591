package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/garant/observability"
	"github.com/layer-3/garant/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig toggles optional routing behavior
type RouterConfig struct {
	// RequireAuth puts /access behind a bearer credential bound to the checked address
	RequireAuth bool
}

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, accessCache *service.AccessCache, cfg RouterConfig) *gin.Engine {
	useJSONFieldNames()

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(), observability.Metrics())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Create handlers
	authHandlers := NewAuthHandlers(authService)
	accessHandlers := NewAccessHandlers(accessCache)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/nonce", authHandlers.Nonce)
		auth.POST("/verify", authHandlers.Verify)
		auth.GET("/me", authHandlers.Me)
	}

	// Access routes
	access := router.Group("/access")
	if cfg.RequireAuth {
		access.Use(AuthMiddleware(authService))
	}
	{
		access.POST("/check", accessHandlers.Check)
	}

	return router
}
