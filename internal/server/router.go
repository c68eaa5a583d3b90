package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"creator_sync/internal/config"
)

func NewRouter(h *Handlers, cfg config.ServerConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", h.Healthz)
	router.POST("/sync/:platform/webhook", h.Webhook)

	internal := router.Group("/internal")
	internal.Use(RequireTrigger(cfg.TriggerSecret))
	{
		internal.POST("/fleet/run", h.RunFleet)
		internal.GET("/health", h.HealthCheck)
		internal.POST("/health/remediate", h.Remediate)
		internal.POST("/costs/report", h.CostReport)
		internal.POST("/creators/:id/resync", h.Resync)
	}

	return router
}
