package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Metrics())

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	auth := r.Group("/api/auth")
	{
		auth.POST("/google", h.GoogleLogin)
		auth.GET("/google/url", h.GoogleAuthURL)
		auth.POST("/register", h.RateLimit(), h.Register)
		auth.POST("/login", h.RateLimit(), h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.GET("/health", h.AuthHealth)

		private := auth.Group("", AuthRequired(h.JWTSecret))
		private.POST("/logout", h.Logout)
		private.GET("/me", h.Me)
	}

	return r
}
