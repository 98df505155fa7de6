package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/custodia-io/custodia/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Checkpoint scans come from terminals, which hold API keys only
		v1.POST("/checkpoint/scans", middleware.APIKeyAuth(authCfg), handler.ProcessScan)

		// Equipment registration and administration (requires authentication)
		v1.POST("/equipment", middleware.Auth(authCfg), handler.RegisterEquipment)
		v1.PATCH("/equipment/:id", middleware.Auth(authCfg), handler.UpdateEquipment)

		// Equipment read access (public)
		v1.GET("/equipment/:id", handler.GetEquipment)
		v1.GET("/equipment", handler.ListEquipment)

		// Credential revocation (requires authentication)
		v1.POST("/tokens/:token/revoke", middleware.Auth(authCfg), handler.RevokeToken)

		// Anomaly flags (requires authentication)
		v1.GET("/anomalies", middleware.Auth(authCfg), handler.ListAnomalies)
		v1.POST("/anomalies/:id/resolve", middleware.Auth(authCfg), handler.ResolveAnomaly)
		v1.POST("/anomalies/sweep", middleware.Auth(authCfg), handler.TriggerSweep)
	}
}
