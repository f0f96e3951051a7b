package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcab/cab-dispatch/internal/domain/geo"
	"github.com/fleetcab/cab-dispatch/internal/domain/rider"
	"github.com/fleetcab/cab-dispatch/internal/domain/trip"
	"github.com/fleetcab/cab-dispatch/internal/domain/vehicle"
	"github.com/fleetcab/cab-dispatch/internal/realtime/event"
	"github.com/fleetcab/cab-dispatch/internal/service/roadnet"
	"github.com/fleetcab/cab-dispatch/internal/storage/memory"
	"github.com/fleetcab/cab-dispatch/pkg/errors"
	"github.com/fleetcab/cab-dispatch/pkg/logger"
)

// capturingPublisher records published events for assertion.
type capturingPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *capturingPublisher) Publish(evt event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *capturingPublisher) named(name string) []event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []event.Event
	for _, evt := range p.events {
		if evt.Name() == name {
			out = append(out, evt)
		}
	}
	return out
}

// dispatchGraph covers the origin and two cab stands; node 3 is cut off from
// the rest of the network.
func dispatchGraph() *roadnet.Graph {
	g := roadnet.NewGraph()
	g.AddNode(1, 26.2400, 73.0250) // trip origin
	g.AddNode(2, 26.2389, 73.0243) // near stand
	g.AddNode(3, 26.2420, 73.0260) // disconnected stand
	g.AddNode(4, 26.2380, 73.0230) // far stand
	g.AddEdge(1, 2, 420)
	g.AddEdge(2, 1, 420)
	g.AddEdge(1, 4, 800)
	g.AddEdge(4, 1, 800)
	return g
}

var testOrigin = geo.Position{Latitude: 26.2400, Longitude: 73.0250}

type fixture struct {
	coordinator *Coordinator
	store       *memory.Store
	publisher   *capturingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	publisher := &capturingPublisher{}
	coordinator := NewCoordinator(
		store.Vehicles(),
		store.Trips(),
		store.Riders(),
		roadnet.NewStaticProvider(dispatchGraph()),
		publisher,
		logger.NewNop(),
		Config{SearchRadiusKM: 5.0},
	)
	return &fixture{coordinator: coordinator, store: store, publisher: publisher}
}

func (f *fixture) addRider(t *testing.T) *rider.Rider {
	t.Helper()
	r := &rider.Rider{
		ID:    uuid.New(),
		Email: uuid.NewString() + "@fleetcab.test",
		Role:  rider.RoleEmployee,
	}
	require.NoError(t, f.store.Riders().Create(context.Background(), r))
	return r
}

func (f *fixture) addVehicle(t *testing.T, lat, lon float64, status vehicle.Status) *vehicle.Vehicle {
	t.Helper()
	v := &vehicle.Vehicle{
		ID:           uuid.New(),
		DriverName:   "Test Driver",
		LicensePlate: "RJ19-" + uuid.NewString()[:8],
		Position:     geo.Position{Latitude: lat, Longitude: lon},
		Status:       status,
	}
	require.NoError(t, f.store.Vehicles().Create(context.Background(), v))
	return v
}

func (f *fixture) submitTrip(t *testing.T, riderID uuid.UUID) *trip.Trip {
	t.Helper()
	tr, err := f.coordinator.Submit(context.Background(), riderID, testOrigin)
	require.NoError(t, err)
	return tr
}

func appCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	return errors.GetAppError(err).Code
}

// TestSubmit_CreatesRequestedTrip tests trip intake
func TestSubmit_CreatesRequestedTrip(t *testing.T) {
	f := newFixture(t)
	r := f.addRider(t)

	tr := f.submitTrip(t, r.ID)

	assert.Equal(t, trip.StatusRequested, tr.Status)
	assert.Equal(t, r.ID, tr.RiderID)
	assert.Equal(t, testOrigin, tr.Origin)
	assert.Nil(t, tr.AssignedVehicleID)

	requested := f.publisher.named("trip_requested")
	require.Len(t, requested, 1)
	assert.Equal(t, event.AudienceOperators, requested[0].Audience())
}

// TestSubmit_RejectsUnknownRider tests intake for a missing identity
func TestSubmit_RejectsUnknownRider(t *testing.T) {
	f := newFixture(t)

	_, err := f.coordinator.Submit(context.Background(), uuid.New(), testOrigin)

	assert.Equal(t, "NOT_FOUND", appCode(t, err))
}

// TestSubmit_RejectsSecondActiveTrip tests the one-active-trip rule
func TestSubmit_RejectsSecondActiveTrip(t *testing.T) {
	f := newFixture(t)
	r := f.addRider(t)
	f.submitTrip(t, r.ID)

	_, err := f.coordinator.Submit(context.Background(), r.ID, testOrigin)

	assert.Equal(t, "CONFLICT", appCode(t, err))
	assert.True(t, errors.GetAppError(err).Retryable())
}

// TestAllocate_AssignsClosestByRoute tests the two-stage search end to end
func TestAllocate_AssignsClosestByRoute(t *testing.T) {
	f := newFixture(t)
	r := f.addRider(t)
	far := f.addVehicle(t, 26.2380, 73.0230, vehicle.StatusAvailable)
	near := f.addVehicle(t, 26.2389, 73.0243, vehicle.StatusAvailable)
	tr := f.submitTrip(t, r.ID)

	result, err := f.coordinator.Allocate(context.Background(), tr.ID)
	require.NoError(t, err)

	assert.Equal(t, near.ID, result.Vehicle.ID)
	assert.Equal(t, 420.0, result.DistanceMeters)
	assert.Equal(t, trip.StatusInProgress, result.Trip.Status)
	require.NotNil(t, result.Trip.AssignedVehicleID)
	assert.Equal(t, near.ID, *result.Trip.AssignedVehicleID)

	// The winner is engaged, the loser still available.
	gotNear, err := f.store.Vehicles().GetByID(context.Background(), near.ID)
	require.NoError(t, err)
	assert.Equal(t, vehicle.StatusOnTrip, gotNear.Status)

	gotFar, err := f.store.Vehicles().GetByID(context.Background(), far.ID)
	require.NoError(t, err)
	assert.Equal(t, vehicle.StatusAvailable, gotFar.Status)

	gotRider, err := f.store.Riders().GetByID(context.Background(), r.ID)
	require.NoError(t, err)
	require.NotNil(t, gotRider.CurrentTripID)
	assert.Equal(t, tr.ID, *gotRider.CurrentTripID)

	allocated := f.publisher.named("trip_allocated")
	require.Len(t, allocated, 1)
	evt := allocated[0].(event.TripAllocated)
	assert.Equal(t, tr.ID, evt.TripID)
	assert.Equal(t, near.ID, evt.VehicleID)
	assert.Equal(t, 420.0, evt.DistanceMeters)
}

// TestAllocate_NoVehicleInRadius tests the empty prefilter outcome
func TestAllocate_NoVehicleInRadius(t *testing.T) {
	f := newFixture(t)
	r := f.addRider(t)
	f.addVehicle(t, 27.1400, 73.0250, vehicle.StatusAvailable) // ~100 km away
	tr := f.submitTrip(t, r.ID)

	_, err := f.coordinator.Allocate(context.Background(), tr.ID)

	assert.Equal(t, "NO_CANDIDATES", appCode(t, err))

	// The trip must remain allocatable.
	got, getErr := f.store.Trips().GetByID(context.Background(), tr.ID)
	require.NoError(t, getErr)
	assert.Equal(t, trip.StatusRequested, got.Status)
}

// TestAllocate_IgnoresEngagedVehicles tests that only available vehicles compete
func TestAllocate_IgnoresEngagedVehicles(t *testing.T) {
	f := newFixture(t)
	r := f.addRider(t)
	f.addVehicle(t, 26.2389, 73.0243, vehicle.StatusOnTrip)
	f.addVehicle(t, 26.2389, 73.0243, vehicle.StatusUnavailable)
	tr := f.submitTrip(t, r.ID)

	_, err := f.coordinator.Allocate(context.Background(), tr.ID)

	assert.Equal(t, "NO_CANDIDATES", appCode(t, err))
}

// TestAllocate_NoViableRoute tests candidates that the road network cannot reach
func TestAllocate_NoViableRoute(t *testing.T) {
	f := newFixture(t)
	r := f.addRider(t)
	f.addVehicle(t, 26.2420, 73.0260, vehicle.StatusAvailable) // disconnected stand
	tr := f.submitTrip(t, r.ID)

	_, err := f.coordinator.Allocate(context.Background(), tr.ID)

	assert.Equal(t, "NO_ROUTE", appCode(t, err))

	got, getErr := f.store.Trips().GetByID(context.Background(), tr.ID)
	require.NoError(t, getErr)
	assert.Equal(t, trip.StatusRequested, got.Status)
}

// TestAllocate_RequiresRequestedState tests double allocation
func TestAllocate_RequiresRequestedState(t *testing.T) {
	f := newFixture(t)
	r := f.addRider(t)
	f.addVehicle(t, 26.2389, 73.0243, vehicle.StatusAvailable)
	tr := f.submitTrip(t, r.ID)

	_, err := f.coordinator.Allocate(context.Background(), tr.ID)
	require.NoError(t, err)

	_, err = f.coordinator.Allocate(context.Background(), tr.ID)
	assert.Equal(t, "INVALID_STATE", appCode(t, err))
}

// TestAllocate_UnknownTrip tests allocation of a missing trip
func TestAllocate_UnknownTrip(t *testing.T) {
	f := newFixture(t)

	_, err := f.coordinator.Allocate(context.Background(), uuid.New())

	assert.Equal(t, "NOT_FOUND", appCode(t, err))
}

// TestAllocate_ConcurrentRequestsClaimOneVehicleOnce tests the allocation race
func TestAllocate_ConcurrentRequestsClaimOneVehicleOnce(t *testing.T) {
	f := newFixture(t)
	riderA := f.addRider(t)
	riderB := f.addRider(t)
	v := f.addVehicle(t, 26.2389, 73.0243, vehicle.StatusAvailable)
	tripA := f.submitTrip(t, riderA.ID)
	tripB := f.submitTrip(t, riderB.ID)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []uuid.UUID{tripA.ID, tripB.ID} {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.coordinator.Allocate(context.Background(), id)
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			code := errors.GetAppError(err).Code
			assert.Contains(t, []string{"CONFLICT", "NO_CANDIDATES"}, code)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one allocation must win the vehicle")

	got, err := f.store.Vehicles().GetByID(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, vehicle.StatusOnTrip, got.Status)

	inProgress, err := f.store.Trips().ListByStatus(context.Background(), trip.StatusInProgress)
	require.NoError(t, err)
	assert.Len(t, inProgress, 1)
}

// TestFinish_CompletesTripAndFreesVehicle tests trip completion
func TestFinish_CompletesTripAndFreesVehicle(t *testing.T) {
	f := newFixture(t)
	r := f.addRider(t)
	v := f.addVehicle(t, 26.2389, 73.0243, vehicle.StatusAvailable)
	tr := f.submitTrip(t, r.ID)
	_, err := f.coordinator.Allocate(context.Background(), tr.ID)
	require.NoError(t, err)

	finished, err := f.coordinator.Finish(context.Background(), tr.ID, r.ID)
	require.NoError(t, err)

	assert.Equal(t, trip.StatusCompleted, finished.Status)
	assert.Nil(t, finished.AssignedVehicleID)
	require.NotNil(t, finished.EndedAt)
	assert.WithinDuration(t, time.Now(), *finished.EndedAt, time.Minute)

	got, err := f.store.Vehicles().GetByID(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, vehicle.StatusAvailable, got.Status)

	gotRider, err := f.store.Riders().GetByID(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Nil(t, gotRider.CurrentTripID)

	freed := f.publisher.named("vehicle_freed")
	require.Len(t, freed, 1)
	assert.Equal(t, v.ID, freed[0].(event.VehicleFreed).VehicleID)
}

// TestFinish_OnlyTripRiderMayFinish tests finish authorization
func TestFinish_OnlyTripRiderMayFinish(t *testing.T) {
	f := newFixture(t)
	r := f.addRider(t)
	other := f.addRider(t)
	f.addVehicle(t, 26.2389, 73.0243, vehicle.StatusAvailable)
	tr := f.submitTrip(t, r.ID)
	_, err := f.coordinator.Allocate(context.Background(), tr.ID)
	require.NoError(t, err)

	_, err = f.coordinator.Finish(context.Background(), tr.ID, other.ID)
	assert.Equal(t, "FORBIDDEN", appCode(t, err))

	got, getErr := f.store.Trips().GetByID(context.Background(), tr.ID)
	require.NoError(t, getErr)
	assert.Equal(t, trip.StatusInProgress, got.Status)
}

// TestFinish_RequiresInProgress tests finishing an unallocated trip
func TestFinish_RequiresInProgress(t *testing.T) {
	f := newFixture(t)
	r := f.addRider(t)
	tr := f.submitTrip(t, r.ID)

	_, err := f.coordinator.Finish(context.Background(), tr.ID, r.ID)

	assert.Equal(t, "INVALID_STATE", appCode(t, err))
}

// TestCancel_RequestedTrip tests cancellation before allocation
func TestCancel_RequestedTrip(t *testing.T) {
	f := newFixture(t)
	r := f.addRider(t)
	tr := f.submitTrip(t, r.ID)

	cancelled, err := f.coordinator.Cancel(context.Background(), tr.ID)
	require.NoError(t, err)

	assert.Equal(t, trip.StatusCancelled, cancelled.Status)
	assert.Empty(t, f.publisher.named("vehicle_freed"), "no vehicle was held")
}

// TestCancel_InProgressTripFreesVehicle tests cancellation after allocation
func TestCancel_InProgressTripFreesVehicle(t *testing.T) {
	f := newFixture(t)
	r := f.addRider(t)
	v := f.addVehicle(t, 26.2389, 73.0243, vehicle.StatusAvailable)
	tr := f.submitTrip(t, r.ID)
	_, err := f.coordinator.Allocate(context.Background(), tr.ID)
	require.NoError(t, err)

	cancelled, err := f.coordinator.Cancel(context.Background(), tr.ID)
	require.NoError(t, err)

	assert.Equal(t, trip.StatusCancelled, cancelled.Status)

	got, err := f.store.Vehicles().GetByID(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, vehicle.StatusAvailable, got.Status)

	assert.Len(t, f.publisher.named("vehicle_freed"), 1)
}

// TestCancel_TerminalTrip tests cancelling a finished trip
func TestCancel_TerminalTrip(t *testing.T) {
	f := newFixture(t)
	r := f.addRider(t)
	tr := f.submitTrip(t, r.ID)
	_, err := f.coordinator.Cancel(context.Background(), tr.ID)
	require.NoError(t, err)

	_, err = f.coordinator.Cancel(context.Background(), tr.ID)

	assert.Equal(t, "INVALID_STATE", appCode(t, err))
}

// TestReportLocation_UpdatesPositionAndPublishes tests the location ingest path
func TestReportLocation_UpdatesPositionAndPublishes(t *testing.T) {
	f := newFixture(t)
	v := f.addVehicle(t, 26.2389, 73.0243, vehicle.StatusAvailable)

	err := f.coordinator.ReportLocation(context.Background(), v.ID, 26.2395, 73.0248)
	require.NoError(t, err)

	got, err := f.store.Vehicles().GetByID(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, geo.Position{Latitude: 26.2395, Longitude: 73.0248}, got.Position)
	assert.Equal(t, vehicle.StatusAvailable, got.Status, "location reports never touch status")

	changed := f.publisher.named("location_changed")
	require.Len(t, changed, 1)
	evt := changed[0].(event.LocationChanged)
	assert.Equal(t, v.ID, evt.VehicleID)
	assert.Equal(t, 26.2395, evt.Position.Latitude)
}

// TestReportLocation_RejectsOutOfRangeCoordinates tests coordinate validation
func TestReportLocation_RejectsOutOfRangeCoordinates(t *testing.T) {
	f := newFixture(t)
	v := f.addVehicle(t, 26.2389, 73.0243, vehicle.StatusAvailable)

	tests := []struct {
		name     string
		lat, lon float64
	}{
		{name: "latitude too high", lat: 91, lon: 73},
		{name: "latitude too low", lat: -91, lon: 73},
		{name: "longitude too high", lat: 26, lon: 181},
		{name: "longitude too low", lat: 26, lon: -181},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.coordinator.ReportLocation(context.Background(), v.ID, tt.lat, tt.lon)
			assert.Equal(t, "VALIDATION_ERROR", appCode(t, err))
		})
	}
}

// TestReportLocation_UnknownVehicle tests a report for a missing vehicle
func TestReportLocation_UnknownVehicle(t *testing.T) {
	f := newFixture(t)

	err := f.coordinator.ReportLocation(context.Background(), uuid.New(), 26.2389, 73.0243)

	assert.Equal(t, "NOT_FOUND", appCode(t, err))
}

// TestNearbyOnTrip_ReturnsEngagedVehiclesSortedByDistance tests the nearby query
func TestNearbyOnTrip_ReturnsEngagedVehiclesSortedByDistance(t *testing.T) {
	f := newFixture(t)
	near := f.addVehicle(t, 26.2389, 73.0243, vehicle.StatusOnTrip)
	far := f.addVehicle(t, 26.2380, 73.0230, vehicle.StatusOnTrip)
	f.addVehicle(t, 26.2389, 73.0243, vehicle.StatusAvailable) // not engaged

	got, err := f.coordinator.NearbyOnTrip(context.Background(), testOrigin, 1.0)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, near.ID, got[0].Vehicle.ID)
	assert.Equal(t, 420.0, got[0].DistanceMeters)
	assert.Equal(t, far.ID, got[1].Vehicle.ID)
	assert.Equal(t, 800.0, got[1].DistanceMeters)
}

// TestNearbyOnTrip_RadiusBoundsResults tests the distance cutoff
func TestNearbyOnTrip_RadiusBoundsResults(t *testing.T) {
	f := newFixture(t)
	near := f.addVehicle(t, 26.2389, 73.0243, vehicle.StatusOnTrip)
	f.addVehicle(t, 26.2380, 73.0230, vehicle.StatusOnTrip) // 800 m by road

	got, err := f.coordinator.NearbyOnTrip(context.Background(), testOrigin, 0.5)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, near.ID, got[0].Vehicle.ID)
}
