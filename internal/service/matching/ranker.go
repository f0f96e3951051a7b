package matching

import (
	"math"

	"github.com/fleetcab/cab-dispatch/internal/domain/geo"
	"github.com/fleetcab/cab-dispatch/internal/domain/vehicle"
	"github.com/fleetcab/cab-dispatch/internal/service/roadnet"
)

// BestByRoute ranks candidates by road-network travel distance from their
// current position to the trip origin and returns the closest one with its
// distance in meters. Selection takes the strictly smallest distance; ties
// keep the first-encountered candidate, so the result is deterministic
// given stable candidate ordering.
//
// ok is false when candidates is empty or every candidate is unroutable.
func BestByRoute(candidates []*vehicle.Vehicle, origin geo.Position, g *roadnet.Graph) (*vehicle.Vehicle, float64, bool) {
	var best *vehicle.Vehicle
	minDistance := math.Inf(1)

	for _, v := range candidates {
		distance := g.ShortestPathDistance(origin, v.Position)
		if distance < minDistance {
			minDistance = distance
			best = v
		}
	}

	if best == nil {
		return nil, 0, false
	}
	return best, minDistance, true
}
