package model

// Reason explains why a booking could not be placed on any vehicle.
type Reason string

const (
	ReasonCapacity      Reason = "CAPACITY"
	ReasonTimeWindow    Reason = "TIME_WINDOW"
	ReasonChainConflict Reason = "CHAIN_CONFLICT"
	ReasonInfeasible    Reason = "INFEASIBLE"
)

// SolveStatus reports how a scheduling run terminated.
type SolveStatus string

const (
	// StatusOptimal means the result is provably the best under the
	// configured objective.
	StatusOptimal SolveStatus = "OPTIMAL"
	// StatusFeasible means a valid schedule was produced but optimality was
	// not proven. Heuristic results always carry this status.
	StatusFeasible SolveStatus = "FEASIBLE"
	// StatusInfeasible signals a modeling or input error: leaving every
	// booking unassigned is always legal, so a healthy run never ends here.
	StatusInfeasible SolveStatus = "INFEASIBLE"
	// StatusTimeoutNoSolution means the search deadline expired before any
	// valid schedule was found.
	StatusTimeoutNoSolution SolveStatus = "TIMEOUT_NO_SOLUTION"
)

// Unassigned records a booking left out of the schedule and why.
type Unassigned struct {
	BookingID string
	Reason    Reason
}

// Schedule is the complete output of a scheduling run: one trip per vehicle
// actually used, the bookings that could not be placed, and the evaluated
// operating cost. Schedules are built during a run and discarded with the
// response; nothing in the core persists them.
type Schedule struct {
	Trips      []Trip
	Unassigned []Unassigned
	TotalCost  float64
	Status     SolveStatus
	Algorithm  string
}

// AssignedCount returns the number of bookings placed on a vehicle.
func (s *Schedule) AssignedCount() int {
	n := 0
	for _, t := range s.Trips {
		n += len(t.Stops)
	}
	return n / 2
}

// VehiclesUsed returns the number of vehicles with at least one stop.
func (s *Schedule) VehiclesUsed() int {
	n := 0
	for _, t := range s.Trips {
		if len(t.Stops) > 0 {
			n++
		}
	}
	return n
}

// TripFor returns the trip of the given vehicle, or nil.
func (s *Schedule) TripFor(vehicleID string) *Trip {
	for i := range s.Trips {
		if s.Trips[i].VehicleID == vehicleID {
			return &s.Trips[i]
		}
	}
	return nil
}
