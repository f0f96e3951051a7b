package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fleetcab/cab-dispatch/internal/api/dto"
	"github.com/fleetcab/cab-dispatch/internal/domain/geo"
	"github.com/fleetcab/cab-dispatch/internal/domain/vehicle"
	"github.com/fleetcab/cab-dispatch/pkg/cache"
	"github.com/fleetcab/cab-dispatch/pkg/errors"
	"github.com/fleetcab/cab-dispatch/pkg/logger"
)

// ListVehicles handles GET /v1/vehicles
func (h *Handlers) ListVehicles(c *gin.Context) {
	fleet, err := h.Vehicles.ListAll(c.Request.Context())
	if err != nil {
		h.respondError(c, errors.Unavailable("Failed to list vehicles", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": fleet, "count": len(fleet)})
}

// CreateVehicle handles POST /v1/vehicles
func (h *Handlers) CreateVehicle(c *gin.Context) {
	var req dto.CreateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errors.Validation("Driver name, license plate and position are required", err))
		return
	}

	now := time.Now()
	v := &vehicle.Vehicle{
		ID:           uuid.New(),
		DriverName:   req.DriverName,
		LicensePlate: req.LicensePlate,
		Position:     geo.Position{Latitude: *req.Latitude, Longitude: *req.Longitude},
		Status:       vehicle.StatusAvailable,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := v.IsValid(); err != nil {
		h.respondError(c, errors.Validation(err.Error(), err))
		return
	}

	if err := h.Vehicles.Create(c.Request.Context(), v); err != nil {
		h.respondError(c, errors.Unavailable("Failed to register vehicle", err))
		return
	}

	if err := cache.SetVehicleLocation(c.Request.Context(), h.Redis, v.ID.String(),
		v.Position.Latitude, v.Position.Longitude); err != nil {
		h.Logger.Warn("Failed to seed vehicle location cache", logger.Err(err))
	}

	h.Logger.Info("Vehicle registered",
		logger.String("vehicle_id", v.ID.String()),
		logger.String("license_plate", v.LicensePlate),
	)

	c.JSON(http.StatusCreated, v)
}

// UpdateVehicleLocation handles POST /v1/vehicles/:id/location
//
// Any caller with a valid session may report any vehicle's position; only
// the payload shape is checked. See DESIGN.md for the hardening gap.
func (h *Handlers) UpdateVehicleLocation(c *gin.Context) {
	vehicleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.respondError(c, errors.Validation("Invalid vehicle id", err))
		return
	}

	var req dto.UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errors.Validation("Latitude and longitude are required", err))
		return
	}

	if err := h.Coordinator.ReportLocation(c.Request.Context(), vehicleID, *req.Latitude, *req.Longitude); err != nil {
		h.respondError(c, err)
		return
	}

	if err := cache.SetVehicleLocation(c.Request.Context(), h.Redis, vehicleID.String(),
		*req.Latitude, *req.Longitude); err != nil {
		h.Logger.Warn("Failed to refresh vehicle location cache", logger.Err(err))
	}

	if h.NR != nil {
		h.NR.RecordLocationUpdate()
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// NearbyVehicles handles GET /v1/vehicles/nearby
//
// Returns on-trip vehicles within road-network distance of the caller's
// position, nearest first.
func (h *Handlers) NearbyVehicles(c *gin.Context) {
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lon, lonErr := strconv.ParseFloat(c.Query("lon"), 64)
	if latErr != nil || lonErr != nil {
		h.respondError(c, errors.Validation("Latitude and longitude are required parameters", nil))
		return
	}

	radiusKM := 5.0
	if raw := c.Query("radius_km"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			h.respondError(c, errors.Validation("Invalid radius", err))
			return
		}
		radiusKM = parsed
	}

	nearby, err := h.Coordinator.NearbyOnTrip(c.Request.Context(),
		geo.Position{Latitude: lat, Longitude: lon}, radiusKM)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"vehicles": nearby, "count": len(nearby)})
}

// VehiclePositions handles GET /v1/vehicles/positions
//
// Reads last-reported positions from the geo cache instead of the entity
// store. Straight-line radius, no road network; intended for fleet map
// overviews where cache staleness is acceptable.
func (h *Handlers) VehiclePositions(c *gin.Context) {
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lon, lonErr := strconv.ParseFloat(c.Query("lon"), 64)
	if latErr != nil || lonErr != nil {
		h.respondError(c, errors.Validation("Latitude and longitude are required parameters", nil))
		return
	}

	radiusKM := 5.0
	if raw := c.Query("radius_km"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			h.respondError(c, errors.Validation("Invalid radius", err))
			return
		}
		radiusKM = parsed
	}

	locations, err := cache.VehiclesNearby(c.Request.Context(), h.Redis, lat, lon, radiusKM, 100)
	if err != nil {
		h.respondError(c, errors.Unavailable("Failed to query vehicle positions", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"positions": locations, "count": len(locations)})
}
