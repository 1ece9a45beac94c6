// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/AtRiskMedia/tractstack-telemetry/internal/application/container"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/presentation/http/handlers"
	"github.com/AtRiskMedia/tractstack-telemetry/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware(container.Config.CORSAllowOrigins))

	ingestHandlers := handlers.NewIngestHandlers(container.IngestService, container.Config.MaxBodyBytes, container.Logger)
	healthHandlers := handlers.NewHealthHandlers(container.DB, container.Logger)
	streamHandlers := handlers.NewStreamHandlers(container.Broadcaster, container.Config.StreamHeartbeat, container.Logger)

	r.GET("/healthz", healthHandlers.GetHealth)

	api := r.Group("/api/v1/telemetry")
	{
		api.POST("/events", ingestHandlers.PostEvents)
		api.GET("/stream", streamHandlers.GetStream)
		api.GET("/ws", streamHandlers.GetSocket)
	}

	return r
}
