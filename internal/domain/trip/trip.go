package trip

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fleetcab/cab-dispatch/internal/domain/geo"
)

// Status represents trip request status. A trip moves strictly forward
// through requested -> in_progress -> {completed, cancelled}; completed and
// cancelled are terminal.
type Status string

const (
	StatusRequested  Status = "requested"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether no transition may leave this status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Trip represents a trip request through its lifecycle.
type Trip struct {
	ID                uuid.UUID    `json:"id"`
	RiderID           uuid.UUID    `json:"rider_id"`
	Origin            geo.Position `json:"origin"`
	Status            Status       `json:"status"`
	AssignedVehicleID *uuid.UUID   `json:"assigned_vehicle_id,omitempty"`
	RequestedAt       time.Time    `json:"requested_at"`
	EndedAt           *time.Time   `json:"ended_at,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// CanAllocate checks if a vehicle can be allocated to this trip.
func (t *Trip) CanAllocate() bool {
	return t.Status == StatusRequested
}

// CanFinish checks if the trip can be completed.
func (t *Trip) CanFinish() bool {
	return t.Status == StatusInProgress
}

// CanCancel checks if the trip can be cancelled.
func (t *Trip) CanCancel() bool {
	return t.Status == StatusRequested || t.Status == StatusInProgress
}

// Repository defines the interface for trip data access.
type Repository interface {
	Create(ctx context.Context, t *Trip) error
	GetByID(ctx context.Context, id uuid.UUID) (*Trip, error)

	// GetActiveByRider returns the rider's non-terminal trip, or
	// ErrTripNotFound when there is none.
	GetActiveByRider(ctx context.Context, riderID uuid.UUID) (*Trip, error)

	// ListByStatus retrieves all trips with the given status.
	ListByStatus(ctx context.Context, status Status) ([]*Trip, error)

	// MarkInProgress assigns the vehicle and moves the trip to in_progress,
	// conditioned on the trip still being requested. Returns false when the
	// condition does not hold.
	MarkInProgress(ctx context.Context, id, vehicleID uuid.UUID) (bool, error)

	// MarkEnded moves a trip from the expected active status into the given
	// terminal status, recording the end time and clearing the vehicle
	// reference. Returns false when the trip was not in the expected status.
	MarkEnded(ctx context.Context, id uuid.UUID, from, to Status, endedAt time.Time) (bool, error)
}

var ErrTripNotFound = errors.New("trip not found")
