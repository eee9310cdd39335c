package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ambuplan/core/model"
)

func TestValidateInput(t *testing.T) {
	goodFleet := []model.Vehicle{ambulance("amb-1", 4, 1, 0, 100, "depot", at(8, 0))}
	goodBooking := ride("b-1", at(9, 0), "clinic", "hospital", 1, 0, 0)

	tests := []struct {
		name     string
		fleet    []model.Vehicle
		bookings []model.Booking
		wantErr  string
	}{
		{
			name:     "valid",
			fleet:    goodFleet,
			bookings: []model.Booking{goodBooking},
		},
		{
			name:    "empty fleet",
			fleet:   nil,
			wantErr: "fleet is empty",
		},
		{
			name:    "duplicate vehicle",
			fleet:   []model.Vehicle{goodFleet[0], goodFleet[0]},
			wantErr: "duplicate vehicle id",
		},
		{
			name: "vehicle without capacity",
			fleet: []model.Vehicle{{
				ID: "amb-1", HourlyRate: 10, Start: "depot", ShiftStart: at(8, 0),
			}},
			wantErr: "zero seat capacity",
		},
		{
			name:     "duplicate booking",
			fleet:    goodFleet,
			bookings: []model.Booking{goodBooking, goodBooking},
			wantErr:  "duplicate booking id",
		},
		{
			name:  "booking without seats",
			fleet: goodFleet,
			bookings: []model.Booking{{
				ID: "b-1", PickupAt: at(9, 0), Pickup: "clinic", Dropoff: "hospital",
			}},
			wantErr: "empty seat requirement",
		},
		{
			name:  "self-linked booking",
			fleet: goodFleet,
			bookings: func() []model.Booking {
				b := goodBooking
				b.LinkedID = b.ID
				return []model.Booking{b}
			}(),
			wantErr: "linked to itself",
		},
		{
			name:  "dangling link",
			fleet: goodFleet,
			bookings: func() []model.Booking {
				b := goodBooking
				b.LinkedID = "b-404"
				return []model.Booking{b}
			}(),
			wantErr: "does not exist",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInput(tt.fleet, tt.bookings)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
