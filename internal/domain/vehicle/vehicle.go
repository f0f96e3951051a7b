package vehicle

import (
	"time"

	"github.com/google/uuid"

	"github.com/fleetcab/cab-dispatch/internal/domain/geo"
)

// Status represents vehicle availability status.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusOnTrip      Status = "on_trip"
	StatusUnavailable Status = "unavailable"
)

// Vehicle represents a fleet vehicle.
type Vehicle struct {
	ID           uuid.UUID    `json:"id"`
	DriverName   string       `json:"driver_name"`
	LicensePlate string       `json:"license_plate"`
	Position     geo.Position `json:"position"`
	Status       Status       `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// IsValid validates the status.
func (s Status) IsValid() bool {
	switch s {
	case StatusAvailable, StatusOnTrip, StatusUnavailable:
		return true
	}
	return false
}

// IsValid validates the vehicle entity.
func (v *Vehicle) IsValid() error {
	if v.DriverName == "" {
		return ErrInvalidDriverName
	}
	if v.LicensePlate == "" {
		return ErrInvalidLicensePlate
	}
	if !v.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

// CanAcceptTrips returns true if the vehicle can be allocated.
func (v *Vehicle) CanAcceptTrips() bool {
	return v.Status == StatusAvailable
}

// SetPosition updates the vehicle's reported position. Position is owned by
// whatever process reports the vehicle's location and never touches status.
func (v *Vehicle) SetPosition(lat, lon float64) {
	v.Position = geo.Position{Latitude: lat, Longitude: lon}
	v.UpdatedAt = time.Now()
}
