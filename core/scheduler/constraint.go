package scheduler

import (
	"context"
	"math"
	"sort"
	"time"

	"ambuplan/core/logger"
	"ambuplan/core/model"
	"ambuplan/core/travel"
)

// unassignedPenalty prices dropping a booking in the relaxation. It dwarfs any
// realistic trip cost so the relaxation only drops bookings it truly cannot
// place.
const unassignedPenalty = 1e7

// openShiftBudget stands in for the shift length of vehicles without a
// configured end of shift.
const openShiftBudget = 24 * time.Hour

// Constraint is the exact strategy: a depth-first branch-and-bound over the
// same insertion moves the greedy heuristic uses. The greedy solution seeds
// the search, so an expired deadline still returns a feasible schedule, and
// the LP relaxation of the booking-to-vehicle assignment orders the branches.
// An exhausted search proves optimality; any early stop is reported FEASIBLE.
type Constraint struct {
	oracle travel.Oracle
	cfg    Config
	log    logger.Logger
}

// NewConstraint builds the exact strategy.
func NewConstraint(oracle travel.Oracle, cfg Config, log logger.Logger) *Constraint {
	cfg.SetDefaults()
	if log == nil {
		log = logger.Nop{}
	}
	return &Constraint{oracle: oracle, cfg: cfg, log: log}
}

// objValue orders candidate schedules lexicographically: serving more bookings
// always beats any cost saving, then the primary objective decides, then the
// secondary tiebreak.
type objValue struct {
	unassigned int
	primary    float64
	secondary  float64
}

func (o objValue) less(p objValue) bool {
	if o.unassigned != p.unassigned {
		return o.unassigned < p.unassigned
	}
	if math.Abs(o.primary-p.primary) > 1e-9 {
		return o.primary < p.primary
	}
	return o.secondary < p.secondary-1e-9
}

// incumbentState is a snapshot of the best assignment found so far.
type incumbentState struct {
	orders  map[string][]StopOrder
	skipped []string
}

// search carries all mutable branch-and-bound state for one Schedule call.
type search struct {
	pl       *planner
	cfg      Config
	log      logger.Logger
	vehicles []model.Vehicle
	order    []*model.Booking
	deadline time.Time

	// per-vehicle working state, indexed like vehicles
	seqs [][]stopOrder
	ends []time.Time

	assignedTo map[string]string
	skipped    map[string]bool
	// never maps bookings that cannot be served by any vehicle in isolation to
	// the reason why. They are also counted into the pruning bound.
	never map[string]model.Reason

	// lpScore[i][v] is the fractional assignment of order[i] to vehicles[v].
	lpScore  [][]float64
	lpValue  float64
	lpSolved bool

	incumbent  *incumbentState
	incObj     objValue
	timedOut   bool
	gapStopped bool
	nodes      int
}

// Schedule implements the Scheduler interface.
func (c *Constraint) Schedule(ctx context.Context, fleet []model.Vehicle, bookings []model.Booking) (*model.Schedule, error) {
	if err := ValidateInput(fleet, bookings); err != nil {
		return nil, err
	}
	started := time.Now()
	pl := newPlanner(c.cfg, c.oracle, bookings)
	s := &search{
		pl:         pl,
		cfg:        c.cfg,
		log:        c.log,
		vehicles:   sortedFleet(fleet),
		order:      pl.prioritize(bookings),
		deadline:   started.Add(c.cfg.SolverDeadline),
		assignedTo: make(map[string]string, len(bookings)),
		skipped:    make(map[string]bool),
		never:      make(map[string]model.Reason),
	}
	s.seqs = make([][]stopOrder, len(s.vehicles))
	s.ends = make([]time.Time, len(s.vehicles))
	for i, v := range s.vehicles {
		s.ends[i] = v.ShiftStart
	}

	if err := s.classifyHopeless(ctx); err != nil {
		return nil, err
	}
	s.solveRelaxation(ctx)

	// Greedy warm start. Whatever happens afterwards, a feasible incumbent
	// exists before the first search node.
	warm, err := NewGreedy(c.oracle, c.cfg, logger.Nop{}).Schedule(ctx, fleet, bookings)
	if err != nil {
		return nil, err
	}
	s.seedIncumbent(warm, fleet)

	switch {
	case s.gapStopped:
	case !time.Now().Before(s.deadline):
		s.timedOut = true
	default:
		if err := s.dfs(ctx, 0); err != nil {
			return nil, err
		}
	}

	status := model.StatusOptimal
	switch {
	case s.timedOut && s.incumbent == nil:
		status = model.StatusTimeoutNoSolution
	case s.timedOut || s.gapStopped:
		status = model.StatusFeasible
	case s.incumbent == nil:
		status = model.StatusInfeasible
	}
	c.log.Infof("constraint search finished: status=%s nodes=%d elapsed=%s", status, s.nodes, time.Since(started))

	orders := map[string][]StopOrder{}
	var unassigned []model.Unassigned
	if s.incumbent != nil {
		orders = s.incumbent.orders
		unassigned = s.finalUnassigned(s.incumbent.skipped)
	} else {
		for _, b := range s.order {
			unassigned = append(unassigned, model.Unassigned{BookingID: b.ID, Reason: model.ReasonInfeasible})
		}
		sort.Slice(unassigned, func(i, j int) bool { return unassigned[i].BookingID < unassigned[j].BookingID })
	}

	asm := Assembler{Oracle: c.oracle, Config: c.cfg}
	return asm.Assemble(ctx, fleet, orders, unassigned, bookings, string(AlgorithmConstraint), status)
}

// classifyHopeless finds bookings no vehicle can serve even on an empty trip.
// Seat demand that fits nowhere is CAPACITY; a pickup unreachable in time from
// every vehicle is TIME_WINDOW. Both are fixed before the search starts and
// feed the pruning bound, since adding other stops only delays arrivals.
func (s *search) classifyHopeless(ctx context.Context) error {
	for _, b := range s.order {
		seatFit, placeable := false, false
		for _, v := range s.vehicles {
			if !b.Seats.Fits(v.Capacity) {
				continue
			}
			seatFit = true
			places, _, err := s.pl.findPlacements(ctx, v, nil, b)
			if err != nil {
				return err
			}
			if len(places) > 0 {
				placeable = true
				break
			}
		}
		switch {
		case !seatFit:
			s.never[b.ID] = model.ReasonCapacity
		case !placeable:
			s.never[b.ID] = model.ReasonTimeWindow
		}
	}
	return nil
}

// solveRelaxation feeds the direct-ride assignment relaxation to the LP and
// keeps the fractional scores for branch ordering. Failure is logged and
// tolerated; the search then orders branches by insertion cost alone.
func (s *search) solveRelaxation(ctx context.Context) {
	nb, nv := len(s.order), len(s.vehicles)
	if nb == 0 || nv == 0 {
		return
	}
	costs := make([][]float64, nb)
	loads := make([]float64, nb)
	caps := make([]float64, nv)
	for vi, v := range s.vehicles {
		budget := openShiftBudget
		if !v.ShiftEnd.IsZero() {
			budget = v.ShiftEnd.Sub(v.ShiftStart)
		}
		caps[vi] = budget.Seconds()
	}
	for bi, b := range s.order {
		ride := s.directRide(ctx, b)
		loads[bi] = ride.Seconds()
		costs[bi] = make([]float64, nv)
		for vi, v := range s.vehicles {
			if !b.Seats.Fits(v.Capacity) {
				costs[bi][vi] = unassignedPenalty
				continue
			}
			costs[bi][vi] = v.HourlyRate * ride.Hours()
		}
	}
	sol, val, err := lpSolve(costs, loads, caps, unassignedPenalty)
	if err != nil {
		s.log.Warnf("assignment relaxation unavailable, ordering branches by insertion cost: %v", err)
		return
	}
	s.lpScore = make([][]float64, nb)
	for bi := range s.order {
		s.lpScore[bi] = sol[bi*nv : (bi+1)*nv]
	}
	s.lpValue = val
	s.lpSolved = true
}

// directRide is the vehicle-independent serve time of a booking on its own:
// pickup-to-dropoff travel plus both service durations. Oracle failures here
// only degrade the relaxation, so they fall back to zero travel.
func (s *search) directRide(ctx context.Context, b *model.Booking) time.Duration {
	ride := s.pl.loadDur(b) + s.pl.unloadDur(b)
	if est, err := s.pl.oracle.DistanceDuration(ctx, b.Pickup, b.Dropoff); err == nil {
		ride += est.Duration
	}
	return ride
}

// seedIncumbent adopts the greedy schedule as the starting incumbent.
func (s *search) seedIncumbent(warm *model.Schedule, fleet []model.Vehicle) {
	orders := make(map[string][]StopOrder, len(warm.Trips))
	for _, trip := range warm.Trips {
		ords := make([]StopOrder, len(trip.Stops))
		for i, stop := range trip.Stops {
			ords[i] = StopOrder{BookingID: stop.BookingID, Role: stop.Role}
		}
		orders[trip.VehicleID] = ords
	}
	skipped := make([]string, len(warm.Unassigned))
	for i, u := range warm.Unassigned {
		skipped[i] = u.BookingID
	}
	s.incumbent = &incumbentState{orders: orders, skipped: skipped}
	s.incObj = s.scheduleObj(warm, fleet)
	s.checkGap()
}

// checkGap compares the incumbent against the relaxation optimum. The
// relaxation is an estimate, not a proven bound, so stopping on a small gap
// downgrades the result to FEASIBLE.
func (s *search) checkGap() {
	if s.cfg.GapTolerance > 0 && s.lpSolved && s.incObj.unassigned == 0 &&
		s.cfg.Objective == ObjectiveDuration && s.lpValue < unassignedPenalty/2 &&
		s.incObj.primary <= s.lpValue*(1+s.cfg.GapTolerance) {
		s.gapStopped = true
	}
}

func (s *search) scheduleObj(sched *model.Schedule, fleet []model.Vehicle) objValue {
	cost := Cost(sched, fleet)
	if s.cfg.Objective == ObjectiveVehicles {
		return objValue{unassigned: len(sched.Unassigned), primary: float64(sched.VehiclesUsed()), secondary: cost}
	}
	return objValue{unassigned: len(sched.Unassigned), primary: cost}
}

// currentObj evaluates the partial assignment. Inserting further bookings can
// only delay trip ends and bring vehicles into use, so for a fixed unassigned
// count this is a lower bound on every completion of the node.
func (s *search) currentObj() objValue {
	cost, used := 0.0, 0
	for i, v := range s.vehicles {
		if len(s.seqs[i]) == 0 {
			continue
		}
		used++
		cost += v.HourlyRate * s.ends[i].Sub(v.ShiftStart).Hours()
	}
	if s.cfg.Objective == ObjectiveVehicles {
		return objValue{unassigned: len(s.skipped), primary: float64(used), secondary: cost}
	}
	return objValue{unassigned: len(s.skipped), primary: cost}
}

// hopelessRemaining counts not-yet-skipped bookings at or after index i that
// cannot be served at all. Every completion of this node leaves at least these
// unassigned.
func (s *search) hopelessRemaining(i int) int {
	n := 0
	for _, b := range s.order[i:] {
		if _, hopeless := s.never[b.ID]; hopeless && !s.skipped[b.ID] {
			n++
		}
	}
	return n
}

type move struct {
	vehicleIdx int
	pl         placement
	score      float64
}

func (s *search) dfs(ctx context.Context, i int) error {
	if s.timedOut || s.gapStopped {
		return nil
	}
	s.nodes++
	if ctx.Err() != nil || !time.Now().Before(s.deadline) {
		s.timedOut = true
		return nil
	}

	if i == len(s.order) {
		s.acceptLeaf()
		return nil
	}
	b := s.order[i]
	if s.skipped[b.ID] {
		return s.dfs(ctx, i+1)
	}

	bound := s.currentObj()
	bound.unassigned += s.hopelessRemaining(i)
	if s.incumbent != nil && !bound.less(s.incObj) {
		return nil
	}

	pinned := s.pinnedVehicle(b)
	moves, err := s.candidateMoves(ctx, i, b, pinned)
	if err != nil {
		return err
	}
	for _, mv := range moves {
		prevSeq, prevEnd := s.seqs[mv.vehicleIdx], s.ends[mv.vehicleIdx]
		s.seqs[mv.vehicleIdx] = mv.pl.seq
		s.ends[mv.vehicleIdx] = mv.pl.tm.end
		s.assignedTo[b.ID] = s.vehicles[mv.vehicleIdx].ID

		err := s.dfs(ctx, i+1)

		s.seqs[mv.vehicleIdx] = prevSeq
		s.ends[mv.vehicleIdx] = prevEnd
		delete(s.assignedTo, b.ID)
		if err != nil {
			return err
		}
		if s.timedOut || s.gapStopped {
			return nil
		}
	}

	// The skip branch drops the whole chain at once; a journey is never
	// partially served. It is closed when a partner leg is already placed,
	// since that case is covered by the partner's own skip branch.
	if pinned == "" {
		marked := s.markSkipped(b)
		err := s.dfs(ctx, i+1)
		for _, id := range marked {
			delete(s.skipped, id)
		}
		return err
	}
	return nil
}

func (s *search) acceptLeaf() {
	obj := s.currentObj()
	if s.incumbent != nil && !obj.less(s.incObj) {
		return
	}
	seqByID := make(map[string][]stopOrder, len(s.vehicles))
	for i, v := range s.vehicles {
		seqByID[v.ID] = s.seqs[i]
	}
	skipped := make([]string, 0, len(s.skipped))
	for id := range s.skipped {
		skipped = append(skipped, id)
	}
	sort.Strings(skipped)
	s.incumbent = &incumbentState{orders: exportOrders(s.vehicles, seqByID), skipped: skipped}
	s.incObj = obj
	s.checkGap()
}

// pinnedVehicle reports the vehicle a chained booking must join because an
// earlier leg is already placed there.
func (s *search) pinnedVehicle(b *model.Booking) string {
	for _, leg := range s.pl.chainLegs(b) {
		if leg.ID == b.ID {
			continue
		}
		if vid, ok := s.assignedTo[leg.ID]; ok {
			return vid
		}
	}
	return ""
}

// markSkipped marks b and its not-yet-skipped chain partners unassigned and
// returns the marked ids for backtracking.
func (s *search) markSkipped(b *model.Booking) []string {
	legs := s.pl.chainLegs(b)
	if legs == nil {
		s.skipped[b.ID] = true
		return []string{b.ID}
	}
	var marked []string
	for _, leg := range legs {
		if !s.skipped[leg.ID] {
			s.skipped[leg.ID] = true
			marked = append(marked, leg.ID)
		}
	}
	return marked
}

// candidateMoves collects every feasible insertion of b, ordered by the
// relaxation's preference for the hosting vehicle and then by added travel.
func (s *search) candidateMoves(ctx context.Context, i int, b *model.Booking, pinned string) ([]move, error) {
	var moves []move
	for vi, v := range s.vehicles {
		if pinned != "" && v.ID != pinned {
			continue
		}
		if !b.Seats.Fits(v.Capacity) {
			continue
		}
		places, _, err := s.pl.findPlacements(ctx, v, s.seqs[vi], b)
		if err != nil {
			return nil, err
		}
		score := 0.0
		if s.lpSolved {
			score = s.lpScore[i][vi]
		}
		for _, pl := range places {
			moves = append(moves, move{vehicleIdx: vi, pl: pl, score: score})
		}
	}
	sort.SliceStable(moves, func(a, b int) bool {
		if math.Abs(moves[a].score-moves[b].score) > 1e-9 {
			return moves[a].score > moves[b].score
		}
		if moves[a].pl.travelDelta != moves[b].pl.travelDelta {
			return moves[a].pl.travelDelta < moves[b].pl.travelDelta
		}
		if moves[a].pl.endDelta != moves[b].pl.endDelta {
			return moves[a].pl.endDelta < moves[b].pl.endDelta
		}
		return moves[a].vehicleIdx < moves[b].vehicleIdx
	})
	return moves, nil
}

// finalUnassigned attaches reasons to the bookings the best solution skipped.
// Bookings no vehicle could ever serve keep their structural reason; a skipped
// leg of a chain is a chain conflict; anything else was crowded out by the
// rest of the workload.
func (s *search) finalUnassigned(skipped []string) []model.Unassigned {
	out := make([]model.Unassigned, 0, len(skipped))
	for _, id := range skipped {
		reason, ok := s.never[id]
		if !ok {
			if _, chained := s.pl.chainOf[id]; chained {
				reason = model.ReasonChainConflict
			} else {
				reason = model.ReasonInfeasible
			}
		}
		out = append(out, model.Unassigned{BookingID: id, Reason: reason})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingID < out[j].BookingID })
	return out
}
