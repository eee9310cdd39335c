package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"ambuplan/core/model"
	"ambuplan/core/travel"
)

// StopOrder is the raw, untimed form of a stop: which booking is served and
// in which role. Schedulers emit per-vehicle StopOrder sequences; the
// assembler turns them into timed trips.
type StopOrder struct {
	BookingID string
	Role      model.StopRole
}

// stopOrder is the internal counterpart carrying the booking itself.
type stopOrder struct {
	booking *model.Booking
	role    model.StopRole
}

func (s stopOrder) location() model.Location {
	if s.role == model.RolePickup {
		return s.booking.Pickup
	}
	return s.booking.Dropoff
}

// planner holds the shared feasibility and timing machinery of both
// scheduling strategies: stop-sequence timing, chain bookkeeping and
// insertion-point evaluation.
type planner struct {
	cfg    Config
	oracle travel.Oracle
	// chains groups the legs of one passenger's journey, in pickup order.
	// Empty unless chaining is enabled.
	chains  map[string][]*model.Booking
	chainOf map[string]string // booking id -> chain key
	byID    map[string]*model.Booking
}

func newPlanner(cfg Config, oracle travel.Oracle, bookings []model.Booking) *planner {
	p := &planner{
		cfg:     cfg,
		oracle:  oracle,
		chains:  make(map[string][]*model.Booking),
		chainOf: make(map[string]string),
		byID:    make(map[string]*model.Booking, len(bookings)),
	}
	for i := range bookings {
		p.byID[bookings[i].ID] = &bookings[i]
	}
	if !cfg.ChainBookings {
		return p
	}
	for i := range bookings {
		b := &bookings[i]
		key := chainKey(b)
		if key == "" {
			continue
		}
		p.chains[key] = append(p.chains[key], b)
		p.chainOf[b.ID] = key
	}
	for key, legs := range p.chains {
		if len(legs) < 2 {
			delete(p.chains, key)
			delete(p.chainOf, legs[0].ID)
			continue
		}
		sort.Slice(legs, func(i, j int) bool {
			if !legs[i].PickupAt.Equal(legs[j].PickupAt) {
				return legs[i].PickupAt.Before(legs[j].PickupAt)
			}
			return legs[i].ID < legs[j].ID
		})
	}
	return p
}

// chainKey identifies the journey a booking belongs to: the passenger id when
// present, else the unordered pair of linked booking ids.
func chainKey(b *model.Booking) string {
	if b.PassengerID != "" {
		return "passenger:" + b.PassengerID
	}
	if b.LinkedID != "" {
		lo, hi := b.ID, b.LinkedID
		if hi < lo {
			lo, hi = hi, lo
		}
		return "linked:" + lo + "|" + hi
	}
	return ""
}

// chainLegs returns the legs chained with b, including b itself, or nil when
// b is unchained.
func (p *planner) chainLegs(b *model.Booking) []*model.Booking {
	key, ok := p.chainOf[b.ID]
	if !ok {
		return nil
	}
	return p.chains[key]
}

func (p *planner) loadDur(b *model.Booking) time.Duration {
	if b.LoadDur > 0 {
		return b.LoadDur
	}
	return p.cfg.DefaultLoad
}

func (p *planner) unloadDur(b *model.Booking) time.Duration {
	if b.UnloadDur > 0 {
		return b.UnloadDur
	}
	return p.cfg.DefaultUnload
}

// prioritize orders bookings for insertion: mobility severity first
// (stretcher before wheelchair before ambulatory), then target pickup time,
// then id. Chained legs are then pulled together so a doomed chain is
// discovered as early as possible.
func (p *planner) prioritize(bookings []model.Booking) []*model.Booking {
	order := make([]*model.Booking, 0, len(bookings))
	for i := range bookings {
		order = append(order, &bookings[i])
	}
	sort.Slice(order, func(i, j int) bool {
		si, sj := order[i].Seats.Severity(), order[j].Seats.Severity()
		if si != sj {
			return si > sj
		}
		if !order[i].PickupAt.Equal(order[j].PickupAt) {
			return order[i].PickupAt.Before(order[j].PickupAt)
		}
		return order[i].ID < order[j].ID
	})
	if len(p.chains) == 0 {
		return order
	}
	seen := make(map[string]bool, len(order))
	grouped := make([]*model.Booking, 0, len(order))
	for _, b := range order {
		if seen[b.ID] {
			continue
		}
		legs := p.chainLegs(b)
		if legs == nil {
			seen[b.ID] = true
			grouped = append(grouped, b)
			continue
		}
		for _, leg := range legs {
			if !seen[leg.ID] {
				seen[leg.ID] = true
				grouped = append(grouped, leg)
			}
		}
	}
	return grouped
}

// timing is the computed result of one stop sequence.
type timing struct {
	stops  []model.Stop
	travel time.Duration // summed drive time
	end    time.Time     // departure from the last stop, shift start if empty
}

// timeline computes concrete stop times for a vehicle serving seq in order.
// Pickup service starts at max(target, arrival); a pickup later than
// target+WindowAfter, or any work beyond the end of shift, is infeasible.
// Returned errors are either *infeasibility or an oracle failure.
func (p *planner) timeline(ctx context.Context, v model.Vehicle, seq []stopOrder) (timing, error) {
	tm := timing{end: v.ShiftStart}
	cur := v.Start
	curTime := v.ShiftStart
	var occ model.SeatVector
	tm.stops = make([]model.Stop, 0, len(seq))

	for _, so := range seq {
		loc := so.location()
		est, err := p.oracle.DistanceDuration(ctx, cur, loc)
		if err != nil {
			return timing{}, fmt.Errorf("travel %s -> %s: %w", cur, loc, err)
		}
		tm.travel += est.Duration
		arrival := curTime.Add(est.Duration)
		b := so.booking

		var at, depart time.Time
		if so.role == model.RolePickup {
			at = arrival
			if at.Before(b.PickupAt) {
				at = b.PickupAt
			}
			if at.After(b.PickupAt.Add(p.cfg.WindowAfter)) {
				return timing{}, &infeasibility{
					family: model.ReasonTimeWindow,
					msg:    fmt.Sprintf("booking %s: pickup %s misses window ending %s", b.ID, at.Format(time.RFC3339), b.PickupAt.Add(p.cfg.WindowAfter).Format(time.RFC3339)),
				}
			}
			occ = occ.Add(b.Seats)
			if !occ.Fits(v.Capacity) {
				return timing{}, &infeasibility{
					family: model.ReasonCapacity,
					msg:    fmt.Sprintf("booking %s: occupancy %v exceeds capacity %v", b.ID, occ, v.Capacity),
				}
			}
			depart = at.Add(p.loadDur(b))
		} else {
			at = arrival
			depart = at.Add(p.unloadDur(b))
			occ = occ.Sub(b.Seats)
		}
		if !v.ShiftEnd.IsZero() && depart.After(v.ShiftEnd) {
			return timing{}, &infeasibility{
				family: model.ReasonTimeWindow,
				msg:    fmt.Sprintf("booking %s: stop runs past end of shift %s", b.ID, v.ShiftEnd.Format(time.RFC3339)),
			}
		}
		tm.stops = append(tm.stops, model.Stop{
			BookingID: b.ID,
			Role:      so.role,
			Location:  loc,
			At:        at,
			Depart:    depart,
			Occupancy: occ,
		})
		cur = loc
		curTime = depart
	}
	if len(tm.stops) > 0 {
		tm.end = tm.stops[len(tm.stops)-1].Depart
	}
	if p.cfg.ChainBookings {
		if err := p.checkChains(tm.stops); err != nil {
			return timing{}, err
		}
	}
	return tm, nil
}

// checkChains verifies leg ordering and the inter-leg gap for every chain
// with at least two legs on this trip.
func (p *planner) checkChains(stops []model.Stop) error {
	pickups := make(map[string]time.Time)
	dropoffs := make(map[string]time.Time)
	for _, s := range stops {
		if s.Role == model.RolePickup {
			pickups[s.BookingID] = s.At
		} else {
			dropoffs[s.BookingID] = s.At
		}
	}
	for _, legs := range p.chains {
		for i := 0; i < len(legs)-1; i++ {
			drop, ok1 := dropoffs[legs[i].ID]
			pick, ok2 := pickups[legs[i+1].ID]
			if !ok1 || !ok2 {
				continue
			}
			if pick.Before(drop) {
				return &infeasibility{
					family: model.ReasonChainConflict,
					msg:    fmt.Sprintf("leg %s picked up before leg %s is dropped off", legs[i+1].ID, legs[i].ID),
				}
			}
			if p.cfg.MaxChainGap > 0 && pick.Sub(drop) > p.cfg.MaxChainGap {
				return &infeasibility{
					family: model.ReasonChainConflict,
					msg:    fmt.Sprintf("wait between legs %s and %s exceeds %s", legs[i].ID, legs[i+1].ID, p.cfg.MaxChainGap),
				}
			}
		}
	}
	return nil
}

// placement is one feasible way to insert a booking into a vehicle's
// sequence, with its marginal cost.
type placement struct {
	vehicleID   string
	pickupPos   int
	dropoffPos  int
	travelDelta time.Duration
	endDelta    time.Duration
	seq         []stopOrder
	tm          timing
}

// findPlacements evaluates every insertion point of b's pickup/dropoff pair
// into seq on vehicle v. It returns the feasible placements sorted by added
// travel time, and the set of constraint families that eliminated the
// infeasible ones. Oracle failures abort the evaluation.
func (p *planner) findPlacements(ctx context.Context, v model.Vehicle, seq []stopOrder, b *model.Booking) ([]placement, map[model.Reason]bool, error) {
	families := make(map[model.Reason]bool)
	if !b.Seats.Fits(v.Capacity) {
		families[model.ReasonCapacity] = true
		return nil, families, nil
	}
	base, err := p.timeline(ctx, v, seq)
	if err != nil {
		return nil, nil, fmt.Errorf("vehicle %s: invalid base sequence: %w", v.ID, err)
	}

	var out []placement
	n := len(seq)
	for pi := 0; pi <= n; pi++ {
		for di := pi; di <= n; di++ {
			cand := make([]stopOrder, 0, n+2)
			cand = append(cand, seq[:pi]...)
			cand = append(cand, stopOrder{booking: b, role: model.RolePickup})
			cand = append(cand, seq[pi:di]...)
			cand = append(cand, stopOrder{booking: b, role: model.RoleDropoff})
			cand = append(cand, seq[di:]...)

			tm, err := p.timeline(ctx, v, cand)
			if err != nil {
				var inf *infeasibility
				if errors.As(err, &inf) {
					families[inf.family] = true
					continue
				}
				return nil, nil, err
			}
			out = append(out, placement{
				vehicleID:   v.ID,
				pickupPos:   pi,
				dropoffPos:  di + 1,
				travelDelta: tm.travel - base.travel,
				endDelta:    tm.end.Sub(base.end),
				seq:         cand,
				tm:          tm,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].travelDelta != out[j].travelDelta {
			return out[i].travelDelta < out[j].travelDelta
		}
		if out[i].endDelta != out[j].endDelta {
			return out[i].endDelta < out[j].endDelta
		}
		if out[i].pickupPos != out[j].pickupPos {
			return out[i].pickupPos < out[j].pickupPos
		}
		return out[i].dropoffPos < out[j].dropoffPos
	})
	return out, families, nil
}

// removeBooking strips both stops of the given booking from seq.
func removeBooking(seq []stopOrder, bookingID string) []stopOrder {
	out := seq[:0:0]
	for _, so := range seq {
		if so.booking.ID != bookingID {
			out = append(out, so)
		}
	}
	return out
}

// sortedFleet returns a copy of the fleet ordered by vehicle id, the
// tie-break order used by both strategies.
func sortedFleet(fleet []model.Vehicle) []model.Vehicle {
	out := append([]model.Vehicle(nil), fleet...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
