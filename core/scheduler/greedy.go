package scheduler

import (
	"context"
	"sort"

	"ambuplan/core/logger"
	"ambuplan/core/model"
	"ambuplan/core/travel"
)

// Greedy is the priority-ordered cheapest-insertion heuristic. Bookings are
// handled from most to least demanding; each is inserted at the feasible
// position adding the least travel time across the whole fleet. The result is
// fully deterministic: ties fall to the vehicle already serving a chained
// partner, then to the lowest vehicle id, then to the earliest position.
type Greedy struct {
	oracle travel.Oracle
	cfg    Config
	log    logger.Logger
}

// NewGreedy builds the heuristic strategy.
func NewGreedy(oracle travel.Oracle, cfg Config, log logger.Logger) *Greedy {
	cfg.SetDefaults()
	if log == nil {
		log = logger.Nop{}
	}
	return &Greedy{oracle: oracle, cfg: cfg, log: log}
}

// Schedule implements the Scheduler interface.
func (g *Greedy) Schedule(ctx context.Context, fleet []model.Vehicle, bookings []model.Booking) (*model.Schedule, error) {
	if err := ValidateInput(fleet, bookings); err != nil {
		return nil, err
	}
	pl := newPlanner(g.cfg, g.oracle, bookings)
	vehicles := sortedFleet(fleet)
	seqs := make(map[string][]stopOrder, len(vehicles))
	assignedTo := make(map[string]string, len(bookings))
	unassigned := make(map[string]model.Reason)

	for _, b := range pl.prioritize(bookings) {
		if _, done := unassigned[b.ID]; done {
			continue
		}
		restricted, dead := g.chainRestriction(pl, b, assignedTo, unassigned)
		if dead {
			unassigned[b.ID] = model.ReasonChainConflict
			continue
		}

		var best placement
		found := false
		anySeatFit := false
		families := make(map[model.Reason]bool)
		for _, v := range vehicles {
			if restricted != "" && v.ID != restricted {
				continue
			}
			if !b.Seats.Fits(v.Capacity) {
				families[model.ReasonCapacity] = true
				continue
			}
			anySeatFit = true
			places, fams, err := pl.findPlacements(ctx, v, seqs[v.ID], b)
			if err != nil {
				return nil, err
			}
			for f := range fams {
				families[f] = true
			}
			if len(places) == 0 {
				continue
			}
			// Vehicles are visited in id order, so a strict comparison keeps
			// the lowest id on equal cost.
			if cand := places[0]; !found || cand.travelDelta < best.travelDelta ||
				(cand.travelDelta == best.travelDelta && cand.endDelta < best.endDelta) {
				best = cand
				found = true
			}
		}

		if found {
			seqs[best.vehicleID] = best.seq
			assignedTo[b.ID] = best.vehicleID
			g.log.Debugw("booking assigned", map[string]any{
				"booking": b.ID, "vehicle": best.vehicleID, "added_travel": best.travelDelta.String(),
			})
			continue
		}
		g.failBooking(pl, b, restricted != "", anySeatFit, families, seqs, assignedTo, unassigned)
	}

	asm := Assembler{Oracle: g.oracle, Config: g.cfg}
	return asm.Assemble(ctx, fleet, exportOrders(vehicles, seqs), exportUnassigned(unassigned), bookings, string(AlgorithmGreedy), model.StatusFeasible)
}

// chainRestriction reports the vehicle a chained booking is pinned to, or
// that the chain is already dead because an earlier leg went unassigned.
func (g *Greedy) chainRestriction(pl *planner, b *model.Booking, assignedTo map[string]string, unassigned map[string]model.Reason) (vehicleID string, dead bool) {
	if !g.cfg.ChainBookings {
		return "", false
	}
	for _, leg := range pl.chainLegs(b) {
		if leg.ID == b.ID {
			continue
		}
		if vid, ok := assignedTo[leg.ID]; ok {
			return vid, false
		}
		if _, bad := unassigned[leg.ID]; bad {
			return "", true
		}
	}
	return "", false
}

// failBooking records an unassignable booking and, when it belonged to a
// chain, tears the whole chain out of the schedule: a journey is never
// partially served.
func (g *Greedy) failBooking(pl *planner, b *model.Booking, chainPinned, anySeatFit bool, families map[model.Reason]bool, seqs map[string][]stopOrder, assignedTo map[string]string, unassigned map[string]model.Reason) {
	reason := classifyFailure(anySeatFit, families)
	if chainPinned {
		reason = model.ReasonChainConflict
	}
	unassigned[b.ID] = reason
	g.log.Infof("booking %s unassigned: %s", b.ID, reason)

	for _, leg := range pl.chainLegs(b) {
		if leg.ID == b.ID {
			continue
		}
		if vid, ok := assignedTo[leg.ID]; ok {
			seqs[vid] = removeBooking(seqs[vid], leg.ID)
			delete(assignedTo, leg.ID)
		}
		if _, done := unassigned[leg.ID]; !done {
			unassigned[leg.ID] = model.ReasonChainConflict
		}
	}
}

// classifyFailure picks the reported reason from the constraint families that
// eliminated every candidate.
func classifyFailure(anySeatFit bool, families map[model.Reason]bool) model.Reason {
	switch {
	case !anySeatFit:
		return model.ReasonCapacity
	case families[model.ReasonTimeWindow]:
		return model.ReasonTimeWindow
	case families[model.ReasonChainConflict]:
		return model.ReasonChainConflict
	default:
		return model.ReasonCapacity
	}
}

func exportOrders(vehicles []model.Vehicle, seqs map[string][]stopOrder) map[string][]StopOrder {
	out := make(map[string][]StopOrder, len(seqs))
	for _, v := range vehicles {
		seq := seqs[v.ID]
		if len(seq) == 0 {
			continue
		}
		orders := make([]StopOrder, len(seq))
		for i, so := range seq {
			orders[i] = StopOrder{BookingID: so.booking.ID, Role: so.role}
		}
		out[v.ID] = orders
	}
	return out
}

func exportUnassigned(unassigned map[string]model.Reason) []model.Unassigned {
	out := make([]model.Unassigned, 0, len(unassigned))
	for id, reason := range unassigned {
		out = append(out, model.Unassigned{BookingID: id, Reason: reason})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingID < out[j].BookingID })
	return out
}
