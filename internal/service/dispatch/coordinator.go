// Package dispatch owns the trip allocation transaction and state machine:
// requested -> in_progress -> {completed, cancelled}. All mutations of
// vehicle status, trip status and rider current-trip go through the
// coordinator; position-only updates bypass it.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fleetcab/cab-dispatch/internal/domain/geo"
	"github.com/fleetcab/cab-dispatch/internal/domain/rider"
	"github.com/fleetcab/cab-dispatch/internal/domain/trip"
	"github.com/fleetcab/cab-dispatch/internal/domain/vehicle"
	"github.com/fleetcab/cab-dispatch/internal/realtime/event"
	"github.com/fleetcab/cab-dispatch/internal/service/matching"
	"github.com/fleetcab/cab-dispatch/internal/service/roadnet"
	"github.com/fleetcab/cab-dispatch/pkg/errors"
	"github.com/fleetcab/cab-dispatch/pkg/logger"
)

// Publisher fans out domain events. Implementations must not block: event
// delivery is decoupled from the allocation critical section.
type Publisher interface {
	Publish(evt event.Event)
}

// RoadNetwork supplies the cached road graph.
type RoadNetwork interface {
	Load() (*roadnet.Graph, error)
}

// Config holds coordinator configuration.
type Config struct {
	// SearchRadiusKM is the coarse haversine prefilter radius.
	SearchRadiusKM float64
}

// AllocationResult reports a committed assignment.
type AllocationResult struct {
	Trip           *trip.Trip
	Vehicle        *vehicle.Vehicle
	DistanceMeters float64
}

// VehicleDistance pairs a vehicle with its road-network distance from a
// query position.
type VehicleDistance struct {
	Vehicle        *vehicle.Vehicle `json:"vehicle"`
	DistanceMeters float64          `json:"distance_meters"`
}

// Coordinator matches trip requests to vehicles and drives the trip state
// machine.
type Coordinator struct {
	vehicles    vehicle.Repository
	trips       trip.Repository
	riders      rider.Repository
	roadNetwork RoadNetwork
	publisher   Publisher
	logger      *logger.Logger
	cfg         Config
}

// NewCoordinator creates a dispatch coordinator.
func NewCoordinator(
	vehicles vehicle.Repository,
	trips trip.Repository,
	riders rider.Repository,
	roadNetwork RoadNetwork,
	publisher Publisher,
	log *logger.Logger,
	cfg Config,
) *Coordinator {
	if cfg.SearchRadiusKM <= 0 {
		cfg.SearchRadiusKM = 5.0
	}
	return &Coordinator{
		vehicles:    vehicles,
		trips:       trips,
		riders:      riders,
		roadNetwork: roadNetwork,
		publisher:   publisher,
		logger:      log,
		cfg:         cfg,
	}
}

// Submit records a new trip request for the rider. A rider may hold at most
// one non-terminal trip.
func (c *Coordinator) Submit(ctx context.Context, riderID uuid.UUID, origin geo.Position) (*trip.Trip, error) {
	if _, err := c.riders.GetByID(ctx, riderID); err != nil {
		return nil, errors.NotFound("Rider not found", err)
	}

	if active, err := c.trips.GetActiveByRider(ctx, riderID); err == nil {
		return nil, errors.Conflict(
			fmt.Sprintf("Rider already has an active trip %s", active.ID), nil)
	}

	now := time.Now()
	t := &trip.Trip{
		ID:          uuid.New(),
		RiderID:     riderID,
		Origin:      origin,
		Status:      trip.StatusRequested,
		RequestedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.trips.Create(ctx, t); err != nil {
		return nil, errors.Unavailable("Failed to record trip request", err)
	}

	c.logger.Info("Trip requested",
		logger.String("trip_id", t.ID.String()),
		logger.String("rider_id", riderID.String()),
	)

	c.publisher.Publish(event.TripRequested{
		TripID:  t.ID,
		RiderID: riderID,
		Origin:  origin,
	})

	return t, nil
}

// Allocate runs the two-stage search for a requested trip and commits the
// assignment atomically. The coarse haversine prefilter narrows the fleet
// before the expensive shortest-path ranking. The commit is an optimistic
// check-then-set on the chosen vehicle: losing the race yields Conflict and
// the caller may retry with a fresh candidate search.
func (c *Coordinator) Allocate(ctx context.Context, tripID uuid.UUID) (*AllocationResult, error) {
	t, err := c.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, errors.NotFound("Trip not found", err)
	}
	if !t.CanAllocate() {
		return nil, errors.InvalidState(
			fmt.Sprintf("Trip is %s, allocation requires requested", t.Status), nil)
	}

	available, err := c.vehicles.ListByStatus(ctx, vehicle.StatusAvailable)
	if err != nil {
		return nil, errors.Unavailable("Failed to query available vehicles", err)
	}

	candidates := matching.Candidates(available, t.Origin, c.cfg.SearchRadiusKM)
	if len(candidates) == 0 {
		return nil, errors.NoCandidates(
			fmt.Sprintf("No available vehicle within a %.0f km radius", c.cfg.SearchRadiusKM))
	}

	graph, err := c.roadNetwork.Load()
	if err != nil {
		return nil, errors.NoRoadNetwork(err)
	}

	best, distance, ok := matching.BestByRoute(candidates, t.Origin, graph)
	if !ok {
		return nil, errors.NoRoute("No candidate vehicle has a viable route")
	}

	claimed, err := c.vehicles.ClaimAvailable(ctx, best.ID)
	if err != nil {
		return nil, errors.Unavailable("Failed to claim vehicle", err)
	}
	if !claimed {
		return nil, errors.Conflict("Vehicle was claimed by a concurrent allocation", nil)
	}

	assigned, err := c.trips.MarkInProgress(ctx, t.ID, best.ID)
	if err != nil || !assigned {
		// Undo the claim so the vehicle is not stranded on_trip.
		if relErr := c.vehicles.Release(ctx, best.ID); relErr != nil {
			c.logger.Error("Failed to release vehicle after aborted allocation",
				logger.String("vehicle_id", best.ID.String()),
				logger.Err(relErr),
			)
		}
		if err != nil {
			return nil, errors.Unavailable("Failed to commit allocation", err)
		}
		return nil, errors.InvalidState("Trip left requested state during allocation", nil)
	}

	if err := c.riders.SetCurrentTrip(ctx, t.RiderID, &t.ID); err != nil {
		c.logger.Warn("Failed to update rider current trip",
			logger.String("rider_id", t.RiderID.String()),
			logger.Err(err),
		)
	}

	vid := best.ID
	t.Status = trip.StatusInProgress
	t.AssignedVehicleID = &vid
	best.Status = vehicle.StatusOnTrip

	c.logger.Info("Trip allocated",
		logger.String("trip_id", t.ID.String()),
		logger.String("vehicle_id", best.ID.String()),
		logger.Float64("distance_meters", distance),
	)

	c.publisher.Publish(event.TripAllocated{
		TripID:          t.ID,
		VehicleID:       best.ID,
		RiderID:         t.RiderID,
		Origin:          t.Origin,
		VehiclePosition: best.Position,
		DistanceMeters:  distance,
	})

	return &AllocationResult{Trip: t, Vehicle: best, DistanceMeters: distance}, nil
}

// Finish completes an in-progress trip. Only the trip's rider may finish it.
func (c *Coordinator) Finish(ctx context.Context, tripID, requesterID uuid.UUID) (*trip.Trip, error) {
	t, err := c.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, errors.NotFound("Trip not found", err)
	}
	if t.RiderID != requesterID {
		return nil, errors.Forbidden("Only the trip's rider may finish it", nil)
	}
	if !t.CanFinish() {
		return nil, errors.InvalidState(
			fmt.Sprintf("Trip is %s, finish requires in_progress", t.Status), nil)
	}

	return c.end(ctx, t, trip.StatusInProgress, trip.StatusCompleted)
}

// Cancel ends a trip from requested or in_progress, freeing any assigned
// vehicle. Authorization (rider-or-operator) is enforced at the boundary.
func (c *Coordinator) Cancel(ctx context.Context, tripID uuid.UUID) (*trip.Trip, error) {
	t, err := c.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, errors.NotFound("Trip not found", err)
	}
	if !t.CanCancel() {
		return nil, errors.InvalidState(
			fmt.Sprintf("Trip is %s and cannot be cancelled", t.Status), nil)
	}

	return c.end(ctx, t, t.Status, trip.StatusCancelled)
}

// end moves a trip into a terminal state, frees the vehicle and clears the
// rider's current trip pointer.
func (c *Coordinator) end(ctx context.Context, t *trip.Trip, from, to trip.Status) (*trip.Trip, error) {
	assignedVehicleID := t.AssignedVehicleID
	endedAt := time.Now()

	ended, err := c.trips.MarkEnded(ctx, t.ID, from, to, endedAt)
	if err != nil {
		return nil, errors.Unavailable("Failed to end trip", err)
	}
	if !ended {
		return nil, errors.InvalidState("Trip changed state concurrently", nil)
	}

	if assignedVehicleID != nil {
		if err := c.vehicles.Release(ctx, *assignedVehicleID); err != nil {
			c.logger.Error("Failed to free vehicle",
				logger.String("vehicle_id", assignedVehicleID.String()),
				logger.Err(err),
			)
		} else if v, err := c.vehicles.GetByID(ctx, *assignedVehicleID); err == nil {
			c.publisher.Publish(event.VehicleFreed{
				VehicleID: v.ID,
				Position:  v.Position,
			})
		}
	}

	if err := c.riders.SetCurrentTrip(ctx, t.RiderID, nil); err != nil {
		c.logger.Warn("Failed to clear rider current trip",
			logger.String("rider_id", t.RiderID.String()),
			logger.Err(err),
		)
	}

	t.Status = to
	t.AssignedVehicleID = nil
	t.EndedAt = &endedAt

	c.logger.Info("Trip ended",
		logger.String("trip_id", t.ID.String()),
		logger.String("status", string(to)),
	)

	return t, nil
}

// ReportLocation ingests a vehicle position report. Position is owned by
// the reporting process; status is never touched here, so location updates
// need no coordination with allocation.
func (c *Coordinator) ReportLocation(ctx context.Context, vehicleID uuid.UUID, lat, lon float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return errors.Validation("Coordinates out of range", nil)
	}

	if err := c.vehicles.UpdatePosition(ctx, vehicleID, lat, lon); err != nil {
		if err == vehicle.ErrVehicleNotFound {
			return errors.NotFound("Vehicle not found", err)
		}
		return errors.Unavailable("Failed to update vehicle position", err)
	}

	v, err := c.vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		return errors.Unavailable("Failed to read vehicle", err)
	}

	c.publisher.Publish(event.LocationChanged{
		VehicleID: v.ID,
		Position:  v.Position,
		Status:    v.Status,
	})

	return nil
}

// GetTrip retrieves a trip for boundary reads.
func (c *Coordinator) GetTrip(ctx context.Context, tripID uuid.UUID) (*trip.Trip, error) {
	t, err := c.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, errors.NotFound("Trip not found", err)
	}
	return t, nil
}

// NearbyOnTrip returns engaged vehicles within radiusKM road-network
// distance of the given position, nearest first.
func (c *Coordinator) NearbyOnTrip(ctx context.Context, pos geo.Position, radiusKM float64) ([]VehicleDistance, error) {
	engaged, err := c.vehicles.ListByStatus(ctx, vehicle.StatusOnTrip)
	if err != nil {
		return nil, errors.Unavailable("Failed to query vehicles", err)
	}

	graph, err := c.roadNetwork.Load()
	if err != nil {
		return nil, errors.NoRoadNetwork(err)
	}

	var out []VehicleDistance
	for _, v := range engaged {
		d := graph.ShortestPathDistance(pos, v.Position)
		if d <= radiusKM*1000 {
			out = append(out, VehicleDistance{Vehicle: v, DistanceMeters: d})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].DistanceMeters < out[j].DistanceMeters
	})

	return out, nil
}
