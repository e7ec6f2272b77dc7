package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	infragin "github.com/jonesrussell/north-cloud/categorizer/infrastructure/gin"
)

// SetupRoutes configures all API routes. metrics may be nil.
func SetupRoutes(router *gin.Engine, handler *Handler, serviceName, version string, metrics http.Handler) {
	infragin.RegisterHealthRoutes(router, serviceName, version, map[string]infragin.HealthChecker{
		"database": handler.pingStore,
	})
	router.GET("/ready", handler.ReadyCheck)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := router.Group("/api/v1")
	v1.POST("/classify", handler.Classify) // POST /api/v1/classify
	v1.GET("/taxonomy", handler.GetTaxonomy)
	v1.GET("/stats", handler.GetStats)
}
