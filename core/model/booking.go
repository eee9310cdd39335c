package model

import (
	"fmt"
	"time"
)

// Booking is a single transport request: pick the passenger up around
// PickupAt and carry them from Pickup to Dropoff. PassengerID links the legs
// of a multi-leg journey (an outbound and a return ride, for instance) so the
// schedulers can keep them on one vehicle when chaining is enabled.
type Booking struct {
	ID          string
	PassengerID string // optional; shared by chained legs
	LinkedID    string // optional; id of the return leg booking
	PickupAt    time.Time
	Pickup      Location
	Dropoff     Location
	Seats       SeatVector
	LoadDur     time.Duration // boarding time at pickup
	UnloadDur   time.Duration // alighting time at dropoff
}

// Validate checks that the booking definition is sound.
func (b Booking) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("booking id must not be empty")
	}
	if b.Seats.HasNegative() {
		return fmt.Errorf("booking %s: negative seat requirement", b.ID)
	}
	if b.Seats.IsZero() {
		return fmt.Errorf("booking %s: empty seat requirement", b.ID)
	}
	if b.PickupAt.IsZero() {
		return fmt.Errorf("booking %s: missing pickup time", b.ID)
	}
	if b.Pickup == "" || b.Dropoff == "" {
		return fmt.Errorf("booking %s: missing pickup or dropoff location", b.ID)
	}
	if b.LoadDur < 0 || b.UnloadDur < 0 {
		return fmt.Errorf("booking %s: negative service duration", b.ID)
	}
	return nil
}
