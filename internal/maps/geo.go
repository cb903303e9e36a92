// README: Great-circle distance and a straight-line trip estimator.
package maps

import (
	"context"
	"math"

	"ridehail/internal/types"
)

const (
	earthRadiusKm = 6371.0
	// DefaultCitySpeedKmh is the average speed assumed without a routing API.
	DefaultCitySpeedKmh = 30.0
)

// HaversineKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func HaversineKm(a, b types.Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// StraightLine estimates trips as the great-circle distance driven at a
// constant speed.
type StraightLine struct {
	SpeedKmh float64
}

func (s StraightLine) Estimate(_ context.Context, from, to types.Point) (float64, int, error) {
	speed := s.SpeedKmh
	if speed <= 0 {
		speed = DefaultCitySpeedKmh
	}
	km := HaversineKm(from, to)
	minutes := int(math.Ceil(km / speed * 60))
	return km, minutes, nil
}
