// Package memory provides a mutex-guarded in-process implementation of the
// entity repositories. It backs tests and single-node deployments; the
// conditional updates here are the atomic commit point the dispatch
// coordinator relies on.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetcab/cab-dispatch/internal/domain/rider"
	"github.com/fleetcab/cab-dispatch/internal/domain/trip"
	"github.com/fleetcab/cab-dispatch/internal/domain/vehicle"
)

// Store holds all entities behind one lock.
type Store struct {
	mu       sync.Mutex
	vehicles map[uuid.UUID]*vehicle.Vehicle
	trips    map[uuid.UUID]*trip.Trip
	riders   map[uuid.UUID]*rider.Rider
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		vehicles: make(map[uuid.UUID]*vehicle.Vehicle),
		trips:    make(map[uuid.UUID]*trip.Trip),
		riders:   make(map[uuid.UUID]*rider.Rider),
	}
}

// Vehicles returns the vehicle repository view of the store.
func (s *Store) Vehicles() vehicle.Repository { return (*vehicleRepo)(s) }

// Trips returns the trip repository view of the store.
func (s *Store) Trips() trip.Repository { return (*tripRepo)(s) }

// Riders returns the rider repository view of the store.
func (s *Store) Riders() rider.Repository { return (*riderRepo)(s) }

// --- vehicles ---

type vehicleRepo Store

func (r *vehicleRepo) Create(_ context.Context, v *vehicle.Vehicle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *v
	r.vehicles[v.ID] = &cp
	return nil
}

func (r *vehicleRepo) GetByID(_ context.Context, id uuid.UUID) (*vehicle.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[id]
	if !ok {
		return nil, vehicle.ErrVehicleNotFound
	}
	cp := *v
	return &cp, nil
}

func (r *vehicleRepo) ListByStatus(_ context.Context, status vehicle.Status) ([]*vehicle.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*vehicle.Vehicle
	for _, v := range r.vehicles {
		if v.Status == status {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *vehicleRepo) ListAll(_ context.Context) ([]*vehicle.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*vehicle.Vehicle, 0, len(r.vehicles))
	for _, v := range r.vehicles {
		cp := *v
		out = append(out, &cp)
	}
	return out, nil
}

func (r *vehicleRepo) UpdatePosition(_ context.Context, id uuid.UUID, lat, lon float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[id]
	if !ok {
		return vehicle.ErrVehicleNotFound
	}
	v.SetPosition(lat, lon)
	return nil
}

func (r *vehicleRepo) ClaimAvailable(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[id]
	if !ok {
		return false, vehicle.ErrVehicleNotFound
	}
	if v.Status != vehicle.StatusAvailable {
		return false, nil
	}
	v.Status = vehicle.StatusOnTrip
	v.UpdatedAt = time.Now()
	return true, nil
}

func (r *vehicleRepo) Release(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[id]
	if !ok {
		return vehicle.ErrVehicleNotFound
	}
	v.Status = vehicle.StatusAvailable
	v.UpdatedAt = time.Now()
	return nil
}

// --- trips ---

type tripRepo Store

func (r *tripRepo) Create(_ context.Context, t *trip.Trip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.trips[t.ID] = &cp
	return nil
}

func (r *tripRepo) GetByID(_ context.Context, id uuid.UUID) (*trip.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[id]
	if !ok {
		return nil, trip.ErrTripNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *tripRepo) GetActiveByRider(_ context.Context, riderID uuid.UUID) (*trip.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.trips {
		if t.RiderID == riderID && !t.Status.IsTerminal() {
			cp := *t
			return &cp, nil
		}
	}
	return nil, trip.ErrTripNotFound
}

func (r *tripRepo) ListByStatus(_ context.Context, status trip.Status) ([]*trip.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*trip.Trip
	for _, t := range r.trips {
		if t.Status == status {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *tripRepo) MarkInProgress(_ context.Context, id, vehicleID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[id]
	if !ok {
		return false, trip.ErrTripNotFound
	}
	if t.Status != trip.StatusRequested {
		return false, nil
	}
	vid := vehicleID
	t.Status = trip.StatusInProgress
	t.AssignedVehicleID = &vid
	t.UpdatedAt = time.Now()
	return true, nil
}

func (r *tripRepo) MarkEnded(_ context.Context, id uuid.UUID, from, to trip.Status, endedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[id]
	if !ok {
		return false, trip.ErrTripNotFound
	}
	if t.Status != from {
		return false, nil
	}
	t.Status = to
	t.AssignedVehicleID = nil
	t.EndedAt = &endedAt
	t.UpdatedAt = time.Now()
	return true, nil
}

// --- riders ---

type riderRepo Store

func (r *riderRepo) Create(_ context.Context, rd *rider.Rider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.riders {
		if existing.Email == rd.Email {
			return rider.ErrEmailTaken
		}
	}
	cp := *rd
	r.riders[rd.ID] = &cp
	return nil
}

func (r *riderRepo) GetByID(_ context.Context, id uuid.UUID) (*rider.Rider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rd, ok := r.riders[id]
	if !ok {
		return nil, rider.ErrRiderNotFound
	}
	cp := *rd
	return &cp, nil
}

func (r *riderRepo) GetByEmail(_ context.Context, email string) (*rider.Rider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rd := range r.riders {
		if rd.Email == email {
			cp := *rd
			return &cp, nil
		}
	}
	return nil, rider.ErrRiderNotFound
}

func (r *riderRepo) SetCurrentTrip(_ context.Context, id uuid.UUID, tripID *uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rd, ok := r.riders[id]
	if !ok {
		return rider.ErrRiderNotFound
	}
	if tripID != nil {
		tid := *tripID
		rd.CurrentTripID = &tid
	} else {
		rd.CurrentTripID = nil
	}
	rd.UpdatedAt = time.Now()
	return nil
}
