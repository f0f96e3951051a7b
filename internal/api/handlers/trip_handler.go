package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fleetcab/cab-dispatch/internal/api/dto"
	"github.com/fleetcab/cab-dispatch/internal/api/middleware"
	"github.com/fleetcab/cab-dispatch/internal/domain/geo"
	"github.com/fleetcab/cab-dispatch/internal/domain/rider"
	"github.com/fleetcab/cab-dispatch/internal/domain/trip"
	"github.com/fleetcab/cab-dispatch/pkg/errors"
	"github.com/fleetcab/cab-dispatch/pkg/logger"
)

// SubmitTrip handles POST /v1/trips
func (h *Handlers) SubmitTrip(c *gin.Context) {
	var req dto.SubmitTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errors.Validation("Origin latitude and longitude are required", err))
		return
	}

	riderID := middleware.SubjectID(c)
	if req.RiderID != "" {
		if middleware.RoleOf(c) != rider.RoleAdmin {
			h.respondError(c, errors.Forbidden("Only admins may submit for another rider", nil))
			return
		}
		parsed, err := uuid.Parse(req.RiderID)
		if err != nil {
			h.respondError(c, errors.Validation("Invalid rider id", err))
			return
		}
		riderID = parsed
	}

	origin := geo.Position{Latitude: *req.Latitude, Longitude: *req.Longitude}
	t, err := h.Coordinator.Submit(c.Request.Context(), riderID, origin)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tripResponse(t))
}

// GetTrip handles GET /v1/trips/:id
func (h *Handlers) GetTrip(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.respondError(c, errors.Validation("Invalid trip id", err))
		return
	}

	t, err := h.Coordinator.GetTrip(c.Request.Context(), tripID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tripResponse(t))
}

// AllocateTrip handles POST /v1/trips/:id/allocate
func (h *Handlers) AllocateTrip(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.respondError(c, errors.Validation("Invalid trip id", err))
		return
	}

	start := time.Now()
	result, err := h.Coordinator.Allocate(c.Request.Context(), tripID)
	if err != nil {
		if h.NR != nil {
			h.NR.RecordAllocationOutcome(errors.GetAppError(err).Code)
		}
		h.respondError(c, err)
		return
	}

	if h.NR != nil {
		h.NR.RecordAllocationLatency(float64(time.Since(start).Milliseconds()))
		h.NR.RecordTripAllocated(result.Trip.ID.String(), result.Vehicle.ID.String(), result.DistanceMeters)
	}

	h.Logger.Info("Allocation committed",
		logger.String("trip_id", result.Trip.ID.String()),
		logger.String("vehicle_id", result.Vehicle.ID.String()),
		logger.Int64("latency_ms", time.Since(start).Milliseconds()),
	)

	c.JSON(http.StatusOK, dto.AllocationResponse{
		TripID:         result.Trip.ID,
		VehicleID:      result.Vehicle.ID,
		DriverName:     result.Vehicle.DriverName,
		VehiclePos:     result.Vehicle.Position,
		DistanceMeters: result.DistanceMeters,
		Status:         string(result.Trip.Status),
	})
}

// FinishTrip handles POST /v1/trips/:id/finish
func (h *Handlers) FinishTrip(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.respondError(c, errors.Validation("Invalid trip id", err))
		return
	}

	t, err := h.Coordinator.Finish(c.Request.Context(), tripID, middleware.SubjectID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if h.NR != nil && t.AssignedVehicleID != nil {
		h.NR.RecordVehicleFreed(t.AssignedVehicleID.String())
	}

	c.JSON(http.StatusOK, tripResponse(t))
}

// CancelTrip handles POST /v1/trips/:id/cancel
func (h *Handlers) CancelTrip(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.respondError(c, errors.Validation("Invalid trip id", err))
		return
	}

	t, err := h.Coordinator.GetTrip(c.Request.Context(), tripID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// The trip's rider or an operator may cancel.
	if t.RiderID != middleware.SubjectID(c) && middleware.RoleOf(c) != rider.RoleAdmin {
		h.respondError(c, errors.Forbidden("Only the trip's rider or an admin may cancel", nil))
		return
	}

	cancelled, err := h.Coordinator.Cancel(c.Request.Context(), tripID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tripResponse(cancelled))
}

func tripResponse(t *trip.Trip) dto.TripResponse {
	return dto.TripResponse{
		ID:                t.ID,
		RiderID:           t.RiderID,
		Origin:            t.Origin,
		Status:            string(t.Status),
		AssignedVehicleID: t.AssignedVehicleID,
	}
}
