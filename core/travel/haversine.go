package travel

import (
	"context"
	"fmt"
	"math"
	"time"

	"ambuplan/core/model"
)

const earthRadiusMeters = 6371000.0

// DefaultSpeedKmh is the assumed average driving speed when estimating
// durations from straight-line distances.
const DefaultSpeedKmh = 40.0

// Haversine estimates travel cost from the great-circle distance between two
// coordinate locations. It serves as the offline fallback when the matrix
// provider is unreachable; locations must be in "lat,lng" form.
type Haversine struct {
	// SpeedKmh is the assumed average speed. Zero means DefaultSpeedKmh.
	SpeedKmh float64
}

func (h Haversine) DistanceDuration(_ context.Context, from, to model.Location) (Estimate, error) {
	lat1, lng1, ok := from.Coords()
	if !ok {
		return Estimate{}, fmt.Errorf("%w: %q is not a coordinate location", ErrUnavailable, from)
	}
	lat2, lng2, ok := to.Coords()
	if !ok {
		return Estimate{}, fmt.Errorf("%w: %q is not a coordinate location", ErrUnavailable, to)
	}
	meters := haversineMeters(lat1, lng1, lat2, lng2)
	speed := h.SpeedKmh
	if speed <= 0 {
		speed = DefaultSpeedKmh
	}
	secs := meters / (speed * 1000 / 3600)
	return Estimate{Meters: meters, Duration: time.Duration(secs * float64(time.Second))}, nil
}

func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}
