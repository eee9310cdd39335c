package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ambuplan/core/logger"
	"ambuplan/core/model"
	"ambuplan/core/travel"
)

// Algorithm selects the scheduling strategy.
type Algorithm string

const (
	AlgorithmGreedy     Algorithm = "greedy"
	AlgorithmConstraint Algorithm = "constraint"
)

// ParseAlgorithm maps wire-level algorithm names to a strategy. "or_tools" is
// accepted as an alias of the constraint solver for compatibility with the
// original request schema.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "", "greedy":
		return AlgorithmGreedy, nil
	case "constraint", "or_tools":
		return AlgorithmConstraint, nil
	}
	return "", fmt.Errorf("unknown algorithm %q", name)
}

// Objective selects what the constraint solver minimizes.
type Objective string

const (
	// ObjectiveDuration minimizes the summed trip durations, weighted by each
	// vehicle's hourly rate.
	ObjectiveDuration Objective = "duration"
	// ObjectiveVehicles minimizes the number of vehicles used, with total
	// duration cost as tiebreak.
	ObjectiveVehicles Objective = "vehicles"
)

// Config carries the run-level scheduling parameters. Time windows are run
// configuration, not per-booking data.
type Config struct {
	// WindowBefore and WindowAfter bound the actual pickup time around a
	// booking's target: [target-WindowBefore, target+WindowAfter].
	WindowBefore time.Duration
	WindowAfter  time.Duration
	// DefaultLoad and DefaultUnload apply to bookings that do not carry their
	// own service durations.
	DefaultLoad   time.Duration
	DefaultUnload time.Duration
	// ChainBookings keeps the legs of one passenger's journey on a single
	// vehicle, in order.
	ChainBookings bool
	// MaxChainGap bounds the wait between a chained dropoff and the next
	// leg's pickup. Zero means unlimited.
	MaxChainGap time.Duration
	Objective   Objective
	// SolverDeadline caps the constraint search wall-clock time.
	SolverDeadline time.Duration
	// GapTolerance stops the search early once the incumbent is within this
	// relative distance of the best known lower estimate. The early result is
	// reported FEASIBLE, never OPTIMAL.
	GapTolerance float64
}

// SetDefaults fills unset fields with operational defaults.
func (c *Config) SetDefaults() {
	if c.WindowBefore == 0 {
		c.WindowBefore = 15 * time.Minute
	}
	if c.WindowAfter == 0 {
		c.WindowAfter = 30 * time.Minute
	}
	if c.DefaultLoad == 0 {
		c.DefaultLoad = 5 * time.Minute
	}
	if c.DefaultUnload == 0 {
		c.DefaultUnload = 5 * time.Minute
	}
	if c.MaxChainGap == 0 {
		c.MaxChainGap = 2 * time.Hour
	}
	if c.Objective == "" {
		c.Objective = ObjectiveDuration
	}
	if c.SolverDeadline == 0 {
		c.SolverDeadline = 30 * time.Second
	}
}

// Validate checks the configuration for contradictions.
func (c Config) Validate() error {
	if c.WindowBefore < 0 || c.WindowAfter < 0 {
		return errors.New("pickup window widths must not be negative")
	}
	if c.GapTolerance < 0 || c.GapTolerance >= 1 {
		return errors.New("gap tolerance must be in [0,1)")
	}
	switch c.Objective {
	case "", ObjectiveDuration, ObjectiveVehicles:
	default:
		return fmt.Errorf("unknown objective %q", c.Objective)
	}
	return nil
}

// Scheduler is the shared contract of both strategies. Implementations are
// single-writer: one call owns its in-progress assignment exclusively, and
// independent runs share nothing but the travel oracle's cache.
type Scheduler interface {
	Schedule(ctx context.Context, fleet []model.Vehicle, bookings []model.Booking) (*model.Schedule, error)
}

// New returns the strategy for the given algorithm.
func New(alg Algorithm, oracle travel.Oracle, cfg Config, log logger.Logger) (Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if log == nil {
		log = logger.Nop{}
	}
	switch alg {
	case AlgorithmGreedy:
		return NewGreedy(oracle, cfg, log), nil
	case AlgorithmConstraint:
		return NewConstraint(oracle, cfg, log), nil
	}
	return nil, fmt.Errorf("unknown algorithm %q", alg)
}
