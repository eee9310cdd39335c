package scheduler

import (
	"fmt"

	"ambuplan/core/model"
)

// ValidateInput rejects malformed fleets and booking sets before any
// scheduling work starts. A booking that no vehicle can ever seat is NOT an
// input error: it is returned unassigned with reason CAPACITY by the
// schedulers.
func ValidateInput(fleet []model.Vehicle, bookings []model.Booking) error {
	if len(fleet) == 0 {
		return &ValidationError{Msg: "fleet is empty"}
	}
	vehicleIDs := make(map[string]struct{}, len(fleet))
	for _, v := range fleet {
		if err := v.Validate(); err != nil {
			return &ValidationError{ID: v.ID, Msg: err.Error()}
		}
		if _, dup := vehicleIDs[v.ID]; dup {
			return &ValidationError{ID: v.ID, Msg: "duplicate vehicle id"}
		}
		vehicleIDs[v.ID] = struct{}{}
	}

	bookingIDs := make(map[string]struct{}, len(bookings))
	for _, b := range bookings {
		if err := b.Validate(); err != nil {
			return &ValidationError{ID: b.ID, Msg: err.Error()}
		}
		if _, dup := bookingIDs[b.ID]; dup {
			return &ValidationError{ID: b.ID, Msg: "duplicate booking id"}
		}
		bookingIDs[b.ID] = struct{}{}
	}
	for _, b := range bookings {
		if b.LinkedID == "" {
			continue
		}
		if b.LinkedID == b.ID {
			return &ValidationError{ID: b.ID, Msg: "booking linked to itself"}
		}
		if _, ok := bookingIDs[b.LinkedID]; !ok {
			return &ValidationError{ID: b.ID, Msg: fmt.Sprintf("linked booking %s does not exist", b.LinkedID)}
		}
	}
	return nil
}
