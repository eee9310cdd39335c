package model

import (
	"strconv"
	"strings"
)

// Location is an opaque place reference handed to the travel oracle. It is
// typically a street address for a matrix provider, or a "lat,lng" pair when
// running against the haversine estimator.
type Location string

// Coords parses the location as a "lat,lng" pair. ok is false when the
// location is not in coordinate form.
func (l Location) Coords() (lat, lng float64, ok bool) {
	parts := strings.Split(string(l), ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	lng, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, false
	}
	return lat, lng, true
}
