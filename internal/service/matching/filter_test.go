package matching

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/fleetcab/cab-dispatch/internal/domain/geo"
	"github.com/fleetcab/cab-dispatch/internal/domain/vehicle"
)

func vehicleAt(lat, lon float64) *vehicle.Vehicle {
	return &vehicle.Vehicle{
		ID:       uuid.New(),
		Position: geo.Position{Latitude: lat, Longitude: lon},
		Status:   vehicle.StatusAvailable,
	}
}

// TestHaversine_ZeroForSamePoint tests the degenerate distance
func TestHaversine_ZeroForSamePoint(t *testing.T) {
	p := geo.Position{Latitude: 26.2389, Longitude: 73.0243}
	assert.Equal(t, 0.0, geo.Haversine(p, p))
}

// TestHaversine_Symmetric tests distance symmetry
func TestHaversine_Symmetric(t *testing.T) {
	a := geo.Position{Latitude: 26.2389, Longitude: 73.0243}
	b := geo.Position{Latitude: 26.2400, Longitude: 73.0250}

	assert.Equal(t, geo.Haversine(a, b), geo.Haversine(b, a))
}

// TestHaversine_CityScaleDistance tests a known short hop
func TestHaversine_CityScaleDistance(t *testing.T) {
	a := geo.Position{Latitude: 26.2400, Longitude: 73.0250}
	b := geo.Position{Latitude: 26.2389, Longitude: 73.0243}

	d := geo.Haversine(a, b)
	assert.Greater(t, d, 0.1, "two city blocks should be over 100 m apart")
	assert.Less(t, d, 0.2, "two city blocks should be under 200 m apart")
}

// TestCandidates_FiltersByRadius tests the coarse prefilter
func TestCandidates_FiltersByRadius(t *testing.T) {
	origin := geo.Position{Latitude: 26.2400, Longitude: 73.0250}

	near := vehicleAt(26.2389, 73.0243)    // a couple of blocks away
	edge := vehicleAt(26.2800, 73.0250)    // ~4.4 km north
	farAway := vehicleAt(27.1400, 73.0250) // ~100 km north

	got := Candidates([]*vehicle.Vehicle{near, edge, farAway}, origin, 5.0)

	assert.Len(t, got, 2)
	assert.Equal(t, near.ID, got[0].ID)
	assert.Equal(t, edge.ID, got[1].ID)
}

// TestCandidates_PreservesInputOrder tests ordering stability
func TestCandidates_PreservesInputOrder(t *testing.T) {
	origin := geo.Position{Latitude: 26.2400, Longitude: 73.0250}

	a := vehicleAt(26.2410, 73.0250)
	b := vehicleAt(26.2389, 73.0243)
	c := vehicleAt(26.2405, 73.0255)

	got := Candidates([]*vehicle.Vehicle{a, b, c}, origin, 5.0)

	assert.Len(t, got, 3)
	assert.Equal(t, a.ID, got[0].ID)
	assert.Equal(t, b.ID, got[1].ID)
	assert.Equal(t, c.ID, got[2].ID)
}

// TestCandidates_RadiusMonotonic tests that growing the radius never drops a vehicle
func TestCandidates_RadiusMonotonic(t *testing.T) {
	origin := geo.Position{Latitude: 26.2400, Longitude: 73.0250}

	fleet := []*vehicle.Vehicle{
		vehicleAt(26.2389, 73.0243),
		vehicleAt(26.2800, 73.0250),
		vehicleAt(26.3300, 73.0250),
	}

	narrow := Candidates(fleet, origin, 2.0)
	wide := Candidates(fleet, origin, 15.0)

	assert.LessOrEqual(t, len(narrow), len(wide))
	for _, v := range narrow {
		assert.Contains(t, wide, v)
	}
}

// TestCandidates_EmptyFleet tests the empty input edge case
func TestCandidates_EmptyFleet(t *testing.T) {
	origin := geo.Position{Latitude: 26.2400, Longitude: 73.0250}

	assert.Empty(t, Candidates(nil, origin, 5.0))
	assert.Empty(t, Candidates([]*vehicle.Vehicle{}, origin, 5.0))
}
