package dto

import (
	"github.com/google/uuid"

	"github.com/fleetcab/cab-dispatch/internal/domain/geo"
)

// RegisterRequest creates a rider account.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"omitempty,oneof=admin employee"`
}

// LoginRequest authenticates a rider.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries an issued token.
type AuthResponse struct {
	Token string `json:"token"`
}

// SubmitTripRequest creates a new trip request. RiderID is honored only for
// admin callers submitting on behalf of a rider.
type SubmitTripRequest struct {
	RiderID   string   `json:"rider_id,omitempty"`
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

// CreateVehicleRequest registers a fleet vehicle.
type CreateVehicleRequest struct {
	DriverName   string   `json:"driver_name" binding:"required"`
	LicensePlate string   `json:"license_plate" binding:"required"`
	Latitude     *float64 `json:"latitude" binding:"required"`
	Longitude    *float64 `json:"longitude" binding:"required"`
}

// UpdateLocationRequest reports a vehicle position.
type UpdateLocationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

// TripResponse is the boundary view of a trip.
type TripResponse struct {
	ID                uuid.UUID    `json:"id"`
	RiderID           uuid.UUID    `json:"rider_id"`
	Origin            geo.Position `json:"origin"`
	Status            string       `json:"status"`
	AssignedVehicleID *uuid.UUID   `json:"assigned_vehicle_id,omitempty"`
}

// AllocationResponse reports a committed assignment.
type AllocationResponse struct {
	TripID         uuid.UUID    `json:"trip_id"`
	VehicleID      uuid.UUID    `json:"vehicle_id"`
	DriverName     string       `json:"driver_name"`
	VehiclePos     geo.Position `json:"vehicle_position"`
	DistanceMeters float64      `json:"distance_meters"`
	Status         string       `json:"status"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
