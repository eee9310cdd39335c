package model

import "time"

// StopRole distinguishes the two visits a booking generates on a trip.
type StopRole int

const (
	RolePickup StopRole = iota
	RoleDropoff
)

func (r StopRole) String() string {
	if r == RolePickup {
		return "PICKUP"
	}
	return "DROPOFF"
}

// Stop is one visit of a vehicle: a booking's pickup or dropoff at a computed
// time. At is when service starts, Depart is when the vehicle leaves again
// (loading or unloading included). Occupancy is the onboard load after the
// stop has been served.
type Stop struct {
	BookingID string
	Role      StopRole
	Location  Location
	At        time.Time
	Depart    time.Time
	Occupancy SeatVector
}

// Trip is the ordered itinerary of one vehicle.
type Trip struct {
	VehicleID string
	Stops     []Stop
}

// End returns the departure time of the last stop, or start when the trip is
// empty.
func (t Trip) End(start time.Time) time.Time {
	if len(t.Stops) == 0 {
		return start
	}
	return t.Stops[len(t.Stops)-1].Depart
}

// Duration is the trip makespan measured from the vehicle's shift start to
// the completion of its last stop.
func (t Trip) Duration(start time.Time) time.Duration {
	return t.End(start).Sub(start)
}
