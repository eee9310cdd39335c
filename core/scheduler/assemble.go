package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"ambuplan/core/model"
	"ambuplan/core/travel"
)

// Assembler turns a raw assignment (per-vehicle stop orders plus the
// unassigned set) from either strategy into a timed, cost-evaluated Schedule.
// It re-validates every invariant itself, independently of whichever
// algorithm produced the input: a scheduler defect surfaces here as a fatal
// InvariantError instead of leaking an invalid schedule.
type Assembler struct {
	Oracle travel.Oracle
	Config Config
}

// Assemble builds and verifies the final schedule.
func (a Assembler) Assemble(ctx context.Context, fleet []model.Vehicle, orders map[string][]StopOrder, unassigned []model.Unassigned, bookings []model.Booking, algorithm string, status model.SolveStatus) (*model.Schedule, error) {
	pl := newPlanner(a.Config, a.Oracle, bookings)
	sched := &model.Schedule{
		Unassigned: unassigned,
		Status:     status,
		Algorithm:  algorithm,
	}
	for _, v := range sortedFleet(fleet) {
		raw := orders[v.ID]
		if len(raw) == 0 {
			continue
		}
		seq := make([]stopOrder, len(raw))
		for i, so := range raw {
			b, ok := pl.byID[so.BookingID]
			if !ok {
				return nil, &InvariantError{VehicleID: v.ID, BookingID: so.BookingID, Msg: "stop references unknown booking"}
			}
			seq[i] = stopOrder{booking: b, role: so.Role}
		}
		tm, err := pl.timeline(ctx, v, seq)
		if err != nil {
			var inf *infeasibility
			if errors.As(err, &inf) {
				return nil, &InvariantError{VehicleID: v.ID, Msg: inf.msg}
			}
			return nil, fmt.Errorf("assemble trip for vehicle %s: %w", v.ID, err)
		}
		sched.Trips = append(sched.Trips, model.Trip{VehicleID: v.ID, Stops: tm.stops})
	}
	sched.TotalCost = Cost(sched, fleet)
	if err := ValidateSchedule(sched, fleet, bookings, a.Config); err != nil {
		return nil, err
	}
	return sched, nil
}

// bookingVisit aggregates the stops one booking received across a schedule.
type bookingVisit struct {
	vehicleID string
	pickup    model.Stop
	dropoff   model.Stop
	pickups   int
	dropoffs  int
}

// ValidateSchedule independently re-checks the five schedule invariants. It
// walks the finished schedule from scratch rather than trusting any
// intermediate state of the producing algorithm.
func ValidateSchedule(s *model.Schedule, fleet []model.Vehicle, bookings []model.Booking, cfg Config) error {
	cfg.SetDefaults()
	vehicleByID := make(map[string]model.Vehicle, len(fleet))
	for _, v := range fleet {
		vehicleByID[v.ID] = v
	}
	bookingByID := make(map[string]model.Booking, len(bookings))
	for _, b := range bookings {
		bookingByID[b.ID] = b
	}

	visits := make(map[string]*bookingVisit)
	for _, trip := range s.Trips {
		v, ok := vehicleByID[trip.VehicleID]
		if !ok {
			return &InvariantError{VehicleID: trip.VehicleID, Msg: "trip for unknown vehicle"}
		}
		var occ model.SeatVector
		prev := v.ShiftStart
		for _, stop := range trip.Stops {
			b, ok := bookingByID[stop.BookingID]
			if !ok {
				return &InvariantError{VehicleID: v.ID, BookingID: stop.BookingID, Msg: "stop for unknown booking"}
			}
			if stop.At.Before(prev) {
				return &InvariantError{VehicleID: v.ID, BookingID: b.ID, Msg: "stops are not time-ordered"}
			}
			prev = stop.At

			vis := visits[b.ID]
			if vis == nil {
				vis = &bookingVisit{vehicleID: v.ID}
				visits[b.ID] = vis
			} else if vis.vehicleID != v.ID {
				return &InvariantError{VehicleID: v.ID, BookingID: b.ID, Msg: "booking served by more than one vehicle"}
			}

			if stop.Role == model.RolePickup {
				vis.pickups++
				vis.pickup = stop
				occ = occ.Add(b.Seats)
				// invariant 2: occupancy within capacity between every pair
				// of consecutive stops
				if !occ.Fits(v.Capacity) {
					return &InvariantError{VehicleID: v.ID, BookingID: b.ID, Msg: fmt.Sprintf("occupancy %v exceeds capacity %v", occ, v.Capacity)}
				}
				// invariant 3: pickup inside the configured window
				if stop.At.Before(b.PickupAt.Add(-cfg.WindowBefore)) || stop.At.After(b.PickupAt.Add(cfg.WindowAfter)) {
					return &InvariantError{VehicleID: v.ID, BookingID: b.ID, Msg: fmt.Sprintf("pickup at %s outside window around %s", stop.At, b.PickupAt)}
				}
			} else {
				vis.dropoffs++
				vis.dropoff = stop
				occ = occ.Sub(b.Seats)
				if occ.HasNegative() {
					return &InvariantError{VehicleID: v.ID, BookingID: b.ID, Msg: "dropoff without matching pickup on board"}
				}
			}
			if !v.ShiftEnd.IsZero() && stop.Depart.After(v.ShiftEnd) {
				return &InvariantError{VehicleID: v.ID, BookingID: b.ID, Msg: "trip runs past end of shift"}
			}
		}
		if !occ.IsZero() {
			return &InvariantError{VehicleID: v.ID, Msg: "passengers still on board at end of trip"}
		}
	}

	// invariant 1: exactly one pickup and one dropoff, dropoff after pickup
	for id, vis := range visits {
		if vis.pickups != 1 || vis.dropoffs != 1 {
			return &InvariantError{BookingID: id, Msg: fmt.Sprintf("booking visited %d pickups / %d dropoffs", vis.pickups, vis.dropoffs)}
		}
		if vis.dropoff.At.Before(vis.pickup.At) {
			return &InvariantError{BookingID: id, Msg: "dropoff before pickup"}
		}
	}

	// invariant 5: complete coverage, reasons always present
	unassignedByID := make(map[string]model.Reason, len(s.Unassigned))
	for _, u := range s.Unassigned {
		if u.Reason == "" {
			return &InvariantError{BookingID: u.BookingID, Msg: "unassigned booking without reason"}
		}
		if _, ok := bookingByID[u.BookingID]; !ok {
			return &InvariantError{BookingID: u.BookingID, Msg: "unassigned entry for unknown booking"}
		}
		unassignedByID[u.BookingID] = u.Reason
	}
	for id := range bookingByID {
		_, assigned := visits[id]
		_, dropped := unassignedByID[id]
		if assigned && dropped {
			return &InvariantError{BookingID: id, Msg: "booking both assigned and unassigned"}
		}
		if !assigned && !dropped {
			return &InvariantError{BookingID: id, Msg: "booking silently dropped"}
		}
	}

	// invariant 4: chained legs on one vehicle, in order, within the gap
	if cfg.ChainBookings {
		return validateChains(visits, unassignedByID, bookings, cfg)
	}
	return nil
}

func validateChains(visits map[string]*bookingVisit, unassignedByID map[string]model.Reason, bookings []model.Booking, cfg Config) error {
	groups := make(map[string][]*model.Booking)
	for i := range bookings {
		b := &bookings[i]
		if key := chainKey(b); key != "" {
			groups[key] = append(groups[key], b)
		}
	}
	for _, legs := range groups {
		if len(legs) < 2 {
			continue
		}
		sort.Slice(legs, func(i, j int) bool {
			if !legs[i].PickupAt.Equal(legs[j].PickupAt) {
				return legs[i].PickupAt.Before(legs[j].PickupAt)
			}
			return legs[i].ID < legs[j].ID
		})
		assigned := 0
		for _, leg := range legs {
			if _, ok := visits[leg.ID]; ok {
				assigned++
			}
		}
		if assigned != 0 && assigned != len(legs) {
			return &InvariantError{BookingID: legs[0].ID, Msg: "chain partially scheduled"}
		}
		if assigned == 0 {
			continue
		}
		for i := 0; i < len(legs)-1; i++ {
			first, second := visits[legs[i].ID], visits[legs[i+1].ID]
			if first.vehicleID != second.vehicleID {
				return &InvariantError{BookingID: legs[i+1].ID, Msg: "chained legs on different vehicles"}
			}
			if second.pickup.At.Before(first.dropoff.At) {
				return &InvariantError{BookingID: legs[i+1].ID, Msg: "chained leg picked up before previous dropoff"}
			}
			if cfg.MaxChainGap > 0 && second.pickup.At.Sub(first.dropoff.At) > cfg.MaxChainGap {
				return &InvariantError{BookingID: legs[i+1].ID, Msg: "wait between chained legs exceeds limit"}
			}
		}
	}
	return nil
}
