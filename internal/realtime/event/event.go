// Package event defines the closed set of realtime event variants carried
// over the dispatch channel. Observers subscribe under an audience tag;
// each event names the audience it targets, with the empty audience meaning
// every connected observer.
package event

import (
	"github.com/google/uuid"

	"github.com/fleetcab/cab-dispatch/internal/domain/geo"
	"github.com/fleetcab/cab-dispatch/internal/domain/vehicle"
)

// Audience tags.
const (
	AudienceAll       = ""
	AudienceOperators = "operators"
)

// Event is one variant of the realtime contract. The set of implementations
// in this package is closed: adding a kind means adding a type here.
type Event interface {
	// Name is the wire-level event name.
	Name() string
	// Audience is the observer partition this event targets.
	Audience() string
}

// LocationChanged reports a vehicle's newly ingested position.
type LocationChanged struct {
	VehicleID uuid.UUID      `json:"vehicle_id"`
	Position  geo.Position   `json:"position"`
	Status    vehicle.Status `json:"status"`
}

func (LocationChanged) Name() string     { return "location_changed" }
func (LocationChanged) Audience() string { return AudienceAll }

// TripRequested announces a newly submitted trip to operators.
type TripRequested struct {
	TripID  uuid.UUID    `json:"trip_id"`
	RiderID uuid.UUID    `json:"rider_id"`
	Origin  geo.Position `json:"origin"`
}

func (TripRequested) Name() string     { return "trip_requested" }
func (TripRequested) Audience() string { return AudienceOperators }

// TripAllocated announces a committed vehicle assignment.
type TripAllocated struct {
	TripID          uuid.UUID    `json:"trip_id"`
	VehicleID       uuid.UUID    `json:"vehicle_id"`
	RiderID         uuid.UUID    `json:"rider_id"`
	Origin          geo.Position `json:"origin"`
	VehiclePosition geo.Position `json:"vehicle_position"`
	DistanceMeters  float64      `json:"distance_meters"`
}

func (TripAllocated) Name() string     { return "trip_allocated" }
func (TripAllocated) Audience() string { return AudienceAll }

// VehicleFreed announces a vehicle returning to the available pool.
type VehicleFreed struct {
	VehicleID uuid.UUID    `json:"vehicle_id"`
	Position  geo.Position `json:"position"`
}

func (VehicleFreed) Name() string     { return "vehicle_freed" }
func (VehicleFreed) Audience() string { return AudienceAll }
