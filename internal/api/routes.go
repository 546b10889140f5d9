package api

import (
	"github.com/gin-gonic/gin"
	"github.com/tormodh/doipuds/internal/api/handlers"
	"github.com/tormodh/doipuds/internal/api/middleware"
	"github.com/tormodh/doipuds/internal/config"
)

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, cfg *config.Config) {
	api := r.Group("/api/v1")

	// Optional API key protection.
	if cfg != nil && cfg.API.APIKey != "" {
		api.Use(middleware.RequireAPIKey(cfg.API.APIKey))
	}

	api.GET("/health", h.Health)
	api.GET("/stats", h.Stats)

	api.POST("/connection", h.ConnectECU)
	api.DELETE("/connection", h.DisconnectECU)
	api.GET("/connection", h.GetConnectionStatus)
	api.GET("/connection/config", h.GetConnectionConfig)

	api.POST("/commands", h.SendCommand)
	api.PUT("/security/constant/:level", h.SetSecurityConstant)
}
