package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/fleetcab/cab-dispatch/internal/api/handlers"
	"github.com/fleetcab/cab-dispatch/internal/api/middleware"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, nrApp *newrelic.Application) {
	// Add New Relic middleware if enabled
	if nrApp != nil {
		r.Use(nrgin.Middleware(nrApp))
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})

	secret := h.Config.JWT.Secret

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// WebSocket connection; authorization for the operator stream is
		// handled inside the upgrade.
		v1.GET("/ws", h.ServeWS)

		// Auth endpoints
		auth := v1.Group("/auth")
		{
			auth.POST("/register", h.Register)
			auth.POST("/login", h.Login)
			auth.POST("/logout", middleware.RequireAuth(secret), h.Logout)
		}

		// Trip endpoints
		trips := v1.Group("/trips", middleware.RequireAuth(secret))
		{
			trips.POST("", h.SubmitTrip)
			trips.GET("/:id", h.GetTrip)
			trips.POST("/:id/allocate", middleware.RequireAdmin(), h.AllocateTrip)
			trips.POST("/:id/finish", h.FinishTrip)
			trips.POST("/:id/cancel", h.CancelTrip)
		}

		// Vehicle endpoints
		vehicles := v1.Group("/vehicles", middleware.RequireAuth(secret))
		{
			vehicles.GET("", middleware.RequireAdmin(), h.ListVehicles)
			vehicles.POST("", middleware.RequireAdmin(), h.CreateVehicle)
			vehicles.POST("/:id/location", h.UpdateVehicleLocation)
			vehicles.GET("/nearby", h.NearbyVehicles)
			vehicles.GET("/positions", middleware.RequireAdmin(), h.VehiclePositions)
		}
	}
}
