package vehicle

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for vehicle data access.
type Repository interface {
	// Create creates a new vehicle.
	Create(ctx context.Context, v *Vehicle) error

	// GetByID retrieves a vehicle by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*Vehicle, error)

	// ListByStatus retrieves all vehicles with the given status.
	ListByStatus(ctx context.Context, status Status) ([]*Vehicle, error)

	// ListAll retrieves the whole fleet.
	ListAll(ctx context.Context) ([]*Vehicle, error)

	// UpdatePosition updates only the vehicle's position.
	UpdatePosition(ctx context.Context, id uuid.UUID, lat, lon float64) error

	// ClaimAvailable flips the vehicle from available to on_trip, but only
	// if it is still available at commit time. Returns false when the
	// vehicle was claimed by a concurrent allocation or is otherwise not
	// available.
	ClaimAvailable(ctx context.Context, id uuid.UUID) (bool, error)

	// Release returns an on_trip vehicle to the available pool.
	Release(ctx context.Context, id uuid.UUID) error
}
