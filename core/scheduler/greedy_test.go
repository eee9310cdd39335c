package scheduler

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ambuplan/core/model"
)

func TestGreedySingleBookingTiming(t *testing.T) {
	oracle := tenMinuteWorld()
	fleet := []model.Vehicle{ambulance("amb-1", 10, 2, 1, 100, "depot", at(8, 0))}
	bookings := []model.Booking{ride("b-1", at(9, 0), "clinic", "hospital", 2, 1, 0)}

	s, err := NewGreedy(oracle, testConfig(), nil).Schedule(context.Background(), fleet, bookings)
	require.NoError(t, err)

	require.Equal(t, model.StatusFeasible, s.Status)
	require.Equal(t, "greedy", s.Algorithm)
	require.Empty(t, s.Unassigned)

	trip := s.TripFor("amb-1")
	require.NotNil(t, trip)
	require.Len(t, trip.Stops, 2)

	// Arrival at 08:10 waits for the 09:00 target; five minutes of boarding,
	// ten of travel, five of unloading.
	pickup, dropoff := trip.Stops[0], trip.Stops[1]
	assert.Equal(t, model.RolePickup, pickup.Role)
	assert.True(t, pickup.At.Equal(at(9, 0)), "pickup at %s", pickup.At)
	assert.True(t, pickup.Depart.Equal(at(9, 5)))
	assert.Equal(t, model.RoleDropoff, dropoff.Role)
	assert.True(t, dropoff.At.Equal(at(9, 15)))
	assert.True(t, dropoff.Depart.Equal(at(9, 20)))

	// 1h20m of trip at 100/h.
	assert.InDelta(t, 133.33, s.TotalCost, 0.01)
}

func TestGreedyNoStretcherFleet(t *testing.T) {
	oracle := tenMinuteWorld()
	fleet := []model.Vehicle{
		ambulance("amb-1", 8, 2, 0, 90, "depot", at(8, 0)),
		ambulance("amb-2", 6, 1, 0, 80, "depot", at(8, 0)),
	}
	bookings := []model.Booking{
		ride("walk-1", at(9, 0), "home-a", "clinic", 1, 0, 0),
		ride("bed-1", at(9, 30), "home-b", "hospital", 0, 0, 1),
	}

	s, err := NewGreedy(oracle, testConfig(), nil).Schedule(context.Background(), fleet, bookings)
	require.NoError(t, err)

	require.Equal(t, 1, s.AssignedCount())
	require.Len(t, s.Unassigned, 1)
	assert.Equal(t, model.ReasonCapacity, reasonOf(t, s, "bed-1"))
	assert.Equal(t, model.StatusFeasible, s.Status)
}

func TestGreedyUnreachablePickupWindow(t *testing.T) {
	oracle := tenMinuteWorld()
	oracle.legs["depot>clinic"] = 45 * time.Minute
	fleet := []model.Vehicle{ambulance("amb-1", 4, 1, 0, 100, "depot", at(8, 0))}
	bookings := []model.Booking{ride("b-1", at(8, 0), "clinic", "hospital", 1, 0, 0)}

	s, err := NewGreedy(oracle, testConfig(), nil).Schedule(context.Background(), fleet, bookings)
	require.NoError(t, err)

	require.Equal(t, 0, s.AssignedCount())
	assert.Equal(t, model.ReasonTimeWindow, reasonOf(t, s, "b-1"))
}

func TestGreedyShiftEndRespected(t *testing.T) {
	oracle := tenMinuteWorld()
	v := ambulance("amb-1", 4, 1, 0, 100, "depot", at(8, 0))
	v.ShiftEnd = at(9, 0)
	bookings := []model.Booking{ride("b-1", at(8, 50), "clinic", "hospital", 1, 0, 0)}

	s, err := NewGreedy(oracle, testConfig(), nil).Schedule(context.Background(), []model.Vehicle{v}, bookings)
	require.NoError(t, err)

	require.Equal(t, 0, s.AssignedCount())
	assert.Equal(t, model.ReasonTimeWindow, reasonOf(t, s, "b-1"))
}

func TestGreedyPrefersCheaperInsertion(t *testing.T) {
	oracle := tenMinuteWorld()
	oracle.legs["depot-2>clinic"] = 2 * time.Minute
	fleet := []model.Vehicle{
		ambulance("amb-1", 4, 1, 0, 100, "depot-1", at(8, 0)),
		ambulance("amb-2", 4, 1, 0, 100, "depot-2", at(8, 0)),
	}
	bookings := []model.Booking{ride("b-1", at(9, 0), "clinic", "hospital", 1, 0, 0)}

	s, err := NewGreedy(oracle, testConfig(), nil).Schedule(context.Background(), fleet, bookings)
	require.NoError(t, err)
	require.NotNil(t, s.TripFor("amb-2"))
	require.Nil(t, s.TripFor("amb-1"))
}

func TestGreedyDeterministic(t *testing.T) {
	build := func() (*model.Schedule, error) {
		oracle := tenMinuteWorld()
		fleet := []model.Vehicle{
			ambulance("amb-1", 6, 2, 1, 100, "depot", at(7, 0)),
			ambulance("amb-2", 6, 2, 1, 100, "depot", at(7, 0)),
		}
		bookings := []model.Booking{
			ride("b-1", at(9, 0), "a", "b", 1, 0, 0),
			ride("b-2", at(9, 0), "c", "d", 0, 1, 0),
			ride("b-3", at(10, 0), "b", "c", 2, 0, 0),
			ride("b-4", at(10, 30), "d", "a", 0, 0, 1),
			ride("b-5", at(11, 0), "a", "d", 1, 1, 0),
		}
		return NewGreedy(oracle, testConfig(), nil).Schedule(context.Background(), fleet, bookings)
	}
	first, err := build()
	require.NoError(t, err)
	second, err := build()
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestGreedyChainsStayTogether(t *testing.T) {
	cfg := testConfig()
	cfg.ChainBookings = true
	oracle := tenMinuteWorld()
	fleet := []model.Vehicle{
		ambulance("amb-1", 4, 1, 0, 100, "depot", at(8, 0)),
		ambulance("amb-2", 4, 1, 0, 100, "depot", at(8, 0)),
	}
	out := ride("leg-out", at(9, 0), "home", "clinic", 1, 0, 0)
	out.PassengerID = "pat-7"
	back := ride("leg-back", at(10, 30), "clinic", "home", 1, 0, 0)
	back.PassengerID = "pat-7"

	s, err := NewGreedy(oracle, cfg, nil).Schedule(context.Background(), fleet, []model.Booking{back, out})
	require.NoError(t, err)

	require.Empty(t, s.Unassigned)
	require.Equal(t, 1, s.VehiclesUsed())
	trip := s.Trips[0]
	require.Len(t, trip.Stops, 4)
	assert.Equal(t, "leg-out", trip.Stops[0].BookingID)
	assert.Equal(t, "leg-back", trip.Stops[2].BookingID)
}

func TestGreedyLinkedPairChains(t *testing.T) {
	cfg := testConfig()
	cfg.ChainBookings = true
	oracle := tenMinuteWorld()
	fleet := []model.Vehicle{
		ambulance("amb-1", 4, 1, 0, 100, "depot", at(8, 0)),
		ambulance("amb-2", 4, 1, 0, 100, "depot", at(8, 0)),
	}
	out := ride("leg-out", at(9, 0), "home", "clinic", 1, 0, 0)
	out.LinkedID = "leg-back"
	back := ride("leg-back", at(10, 30), "clinic", "home", 1, 0, 0)
	back.LinkedID = "leg-out"

	s, err := NewGreedy(oracle, cfg, nil).Schedule(context.Background(), fleet, []model.Booking{out, back})
	require.NoError(t, err)
	require.Empty(t, s.Unassigned)
	require.Equal(t, 1, s.VehiclesUsed())
}

func TestGreedyChainAllOrNothing(t *testing.T) {
	cfg := testConfig()
	cfg.ChainBookings = true
	oracle := tenMinuteWorld()
	fleet := []model.Vehicle{ambulance("amb-1", 4, 1, 0, 100, "depot", at(8, 0))}
	out := ride("leg-out", at(9, 0), "home", "clinic", 1, 0, 0)
	out.PassengerID = "pat-7"
	// The return leg waits longer after the first dropoff than the chain
	// allows, so the whole journey must come out of the schedule.
	back := ride("leg-back", at(12, 0), "clinic", "home", 1, 0, 0)
	back.PassengerID = "pat-7"

	s, err := NewGreedy(oracle, cfg, nil).Schedule(context.Background(), fleet, []model.Booking{out, back})
	require.NoError(t, err)

	require.Equal(t, 0, s.AssignedCount())
	assert.Equal(t, model.ReasonChainConflict, reasonOf(t, s, "leg-out"))
	assert.Equal(t, model.ReasonChainConflict, reasonOf(t, s, "leg-back"))
}

func TestGreedyRandomisedSchedulesValidate(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	locations := []model.Location{"a", "b", "c", "d", "e", "f"}
	seats := []model.SeatVector{
		model.NewSeatVector(1, 0, 0),
		model.NewSeatVector(2, 0, 0),
		model.NewSeatVector(0, 1, 0),
		model.NewSeatVector(0, 0, 1),
		model.NewSeatVector(1, 1, 0),
	}
	cfg := testConfig()
	cfg.ChainBookings = true

	for round := 0; round < 5; round++ {
		oracle := &routeOracle{def: time.Duration(4+rng.Intn(10)) * time.Minute, legs: map[string]time.Duration{}}
		fleet := []model.Vehicle{
			ambulance("amb-1", 4, 1, 1, 80+float64(rng.Intn(40)), locations[rng.Intn(len(locations))], at(7, 0)),
			ambulance("amb-2", 6, 2, 0, 80+float64(rng.Intn(40)), locations[rng.Intn(len(locations))], at(7, 0)),
			ambulance("amb-3", 2, 0, 1, 80+float64(rng.Intn(40)), locations[rng.Intn(len(locations))], at(7, 0)),
		}
		var bookings []model.Booking
		for i := 0; i < 12; i++ {
			b := ride(
				"b-"+string(rune('a'+i)),
				at(8+rng.Intn(8), 15*rng.Intn(4)),
				locations[rng.Intn(len(locations))],
				locations[rng.Intn(len(locations))],
				0, 0, 0,
			)
			b.Seats = seats[rng.Intn(len(seats))]
			if rng.Intn(4) == 0 {
				b.PassengerID = "pat-" + string(rune('a'+i%3))
			}
			bookings = append(bookings, b)
		}

		s, err := NewGreedy(oracle, cfg, nil).Schedule(context.Background(), fleet, bookings)
		require.NoError(t, err, "round %d", round)
		require.NoError(t, ValidateSchedule(s, fleet, bookings, cfg), "round %d", round)
	}
}
