package matching

import (
	"github.com/fleetcab/cab-dispatch/internal/domain/geo"
	"github.com/fleetcab/cab-dispatch/internal/domain/vehicle"
)

// Candidates returns the vehicles within radiusKM great-circle distance of
// origin, preserving input order. This is the cheap prefilter stage: it
// narrows the fleet before the expensive shortest-path ranking so route
// queries only run against nearby vehicles.
//
// Pure and total: empty input yields empty output.
func Candidates(vehicles []*vehicle.Vehicle, origin geo.Position, radiusKM float64) []*vehicle.Vehicle {
	var nearby []*vehicle.Vehicle
	for _, v := range vehicles {
		if geo.Haversine(origin, v.Position) <= radiusKM {
			nearby = append(nearby, v)
		}
	}
	return nearby
}
