package rider

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRiderNotFound = errors.New("rider not found")
	ErrInvalidRider  = errors.New("invalid rider data")
	ErrEmailTaken    = errors.New("email already registered")
)

// Role is the identity role claim trusted by the core.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// IsValid validates the role.
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleEmployee
}

// Rider represents a rider entity.
type Rider struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	Role          Role       `json:"role"`
	CurrentTripID *uuid.UUID `json:"current_trip_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Repository defines the interface for rider data access.
type Repository interface {
	Create(ctx context.Context, r *Rider) error
	GetByID(ctx context.Context, id uuid.UUID) (*Rider, error)
	GetByEmail(ctx context.Context, email string) (*Rider, error)

	// SetCurrentTrip updates the rider's active trip pointer; nil clears it.
	SetCurrentTrip(ctx context.Context, id uuid.UUID, tripID *uuid.UUID) error
}
