package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	infragin "github.com/jonesrussell/north-cloud/categorizer/infrastructure/gin"
	infralogger "github.com/jonesrussell/north-cloud/categorizer/infrastructure/logger"
)

// NewServer creates the preview HTTP server using the infrastructure gin package.
func NewServer(handler *Handler, cfg infragin.Config, metrics http.Handler, logger infralogger.Logger) *infragin.Server {
	return infragin.NewServer(&cfg, logger, func(router *gin.Engine) {
		SetupRoutes(router, handler, cfg.ServiceName, cfg.ServiceVersion, metrics)
	})
}
