package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ambuplan/core/model"
	"ambuplan/core/travel"
)

type runTagKey struct{}

// taggedOracle counts lookups whose context lost the caller's run tag.
type taggedOracle struct {
	inner    *routeOracle
	untagged int
}

func (o *taggedOracle) DistanceDuration(ctx context.Context, from, to model.Location) (travel.Estimate, error) {
	if ctx.Value(runTagKey{}) == nil {
		o.untagged++
	}
	return o.inner.DistanceDuration(ctx, from, to)
}

func TestConstraintProvesOptimality(t *testing.T) {
	oracle := tenMinuteWorld()
	fleet := []model.Vehicle{
		ambulance("amb-1", 6, 2, 1, 100, "depot", at(7, 0)),
		ambulance("amb-2", 6, 2, 1, 100, "depot", at(7, 0)),
	}
	bookings := []model.Booking{
		ride("b-1", at(9, 0), "a", "b", 1, 0, 0),
		ride("b-2", at(9, 30), "b", "c", 0, 1, 0),
		ride("b-3", at(10, 0), "c", "a", 2, 0, 0),
	}

	greedy, err := NewGreedy(oracle, testConfig(), nil).Schedule(context.Background(), fleet, bookings)
	require.NoError(t, err)

	exact, err := NewConstraint(oracle, testConfig(), nil).Schedule(context.Background(), fleet, bookings)
	require.NoError(t, err)

	require.Equal(t, model.StatusOptimal, exact.Status)
	require.Equal(t, "constraint", exact.Algorithm)
	require.Empty(t, exact.Unassigned)
	assert.LessOrEqual(t, exact.TotalCost, greedy.TotalCost+1e-6)
	require.NoError(t, ValidateSchedule(exact, fleet, bookings, testConfig()))
}

func TestConstraintDeadlineReturnsWarmStart(t *testing.T) {
	cfg := testConfig()
	cfg.SolverDeadline = time.Nanosecond
	oracle := tenMinuteWorld()
	fleet := []model.Vehicle{ambulance("amb-1", 6, 2, 1, 100, "depot", at(8, 0))}
	bookings := []model.Booking{
		ride("b-1", at(9, 0), "a", "b", 1, 0, 0),
		ride("b-2", at(10, 0), "b", "c", 1, 0, 0),
	}

	s, err := NewConstraint(oracle, cfg, nil).Schedule(context.Background(), fleet, bookings)
	require.NoError(t, err)

	// The deadline expires before the first search node, but the greedy warm
	// start already holds a full schedule.
	require.Equal(t, model.StatusFeasible, s.Status)
	require.Equal(t, 2, s.AssignedCount())
}

func TestConstraintCapacityReason(t *testing.T) {
	oracle := tenMinuteWorld()
	fleet := []model.Vehicle{ambulance("amb-1", 8, 2, 0, 90, "depot", at(8, 0))}
	bookings := []model.Booking{
		ride("walk-1", at(9, 0), "a", "b", 1, 0, 0),
		ride("bed-1", at(9, 30), "c", "d", 0, 0, 1),
	}

	s, err := NewConstraint(oracle, testConfig(), nil).Schedule(context.Background(), fleet, bookings)
	require.NoError(t, err)

	require.Equal(t, model.StatusOptimal, s.Status)
	require.Equal(t, 1, s.AssignedCount())
	assert.Equal(t, model.ReasonCapacity, reasonOf(t, s, "bed-1"))
}

func TestConstraintTimeWindowReason(t *testing.T) {
	oracle := tenMinuteWorld()
	oracle.legs["depot>clinic"] = 45 * time.Minute
	fleet := []model.Vehicle{ambulance("amb-1", 4, 1, 0, 100, "depot", at(8, 0))}
	bookings := []model.Booking{ride("b-1", at(8, 0), "clinic", "hospital", 1, 0, 0)}

	s, err := NewConstraint(oracle, testConfig(), nil).Schedule(context.Background(), fleet, bookings)
	require.NoError(t, err)

	require.Equal(t, model.StatusOptimal, s.Status)
	assert.Equal(t, model.ReasonTimeWindow, reasonOf(t, s, "b-1"))
}

func TestConstraintChainConflictReason(t *testing.T) {
	cfg := testConfig()
	cfg.ChainBookings = true
	oracle := tenMinuteWorld()
	fleet := []model.Vehicle{ambulance("amb-1", 4, 1, 0, 100, "depot", at(8, 0))}
	out := ride("leg-out", at(9, 0), "home", "clinic", 1, 0, 0)
	out.PassengerID = "pat-7"
	back := ride("leg-back", at(12, 0), "clinic", "home", 1, 0, 0)
	back.PassengerID = "pat-7"

	s, err := NewConstraint(oracle, cfg, nil).Schedule(context.Background(), fleet, []model.Booking{out, back})
	require.NoError(t, err)

	require.Equal(t, model.StatusOptimal, s.Status)
	require.Equal(t, 0, s.AssignedCount())
	assert.Equal(t, model.ReasonChainConflict, reasonOf(t, s, "leg-out"))
	assert.Equal(t, model.ReasonChainConflict, reasonOf(t, s, "leg-back"))
}

func TestConstraintSurvivesRelaxationFailure(t *testing.T) {
	orig := lpSolve
	lpSolve = func([][]float64, []float64, []float64, float64) ([]float64, float64, error) {
		return nil, 0, errors.New("singular basis")
	}
	defer func() { lpSolve = orig }()

	oracle := tenMinuteWorld()
	fleet := []model.Vehicle{ambulance("amb-1", 6, 2, 1, 100, "depot", at(8, 0))}
	bookings := []model.Booking{
		ride("b-1", at(9, 0), "a", "b", 1, 0, 0),
		ride("b-2", at(10, 0), "b", "c", 1, 0, 0),
	}

	s, err := NewConstraint(oracle, testConfig(), nil).Schedule(context.Background(), fleet, bookings)
	require.NoError(t, err)
	require.Equal(t, model.StatusOptimal, s.Status)
	require.Empty(t, s.Unassigned)
}

func TestConstraintPropagatesRunContext(t *testing.T) {
	oracle := &taggedOracle{inner: tenMinuteWorld()}
	fleet := []model.Vehicle{ambulance("amb-1", 4, 0, 0, 100, "depot", at(8, 0))}
	bookings := []model.Booking{ride("b-1", at(9, 0), "a", "b", 1, 0, 0)}

	ctx := context.WithValue(context.Background(), runTagKey{}, "run")
	s, err := NewConstraint(oracle, testConfig(), nil).Schedule(ctx, fleet, bookings)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOptimal, s.Status)
	assert.Zero(t, oracle.untagged, "every oracle lookup should carry the caller's context")
}

func TestConstraintGapStopReportsFeasible(t *testing.T) {
	cfg := testConfig()
	cfg.GapTolerance = 0.5
	oracle := tenMinuteWorld()
	// Vehicle waiting at the pickup with a target on shift start: the schedule
	// cost equals the direct-ride estimate, so the incumbent is inside any
	// positive gap.
	fleet := []model.Vehicle{ambulance("amb-1", 4, 1, 0, 60, "clinic", at(8, 0))}
	bookings := []model.Booking{ride("b-1", at(8, 0), "clinic", "hospital", 1, 0, 0)}

	s, err := NewConstraint(oracle, cfg, nil).Schedule(context.Background(), fleet, bookings)
	require.NoError(t, err)
	require.Equal(t, model.StatusFeasible, s.Status)
	require.Empty(t, s.Unassigned)
}

func TestConstraintMinimizesVehicles(t *testing.T) {
	cfg := testConfig()
	cfg.Objective = ObjectiveVehicles
	oracle := tenMinuteWorld()
	fleet := []model.Vehicle{
		ambulance("amb-1", 6, 2, 1, 100, "depot", at(7, 0)),
		ambulance("amb-2", 6, 2, 1, 100, "depot", at(7, 0)),
	}
	// Both rides fit comfortably on one vehicle.
	bookings := []model.Booking{
		ride("b-1", at(9, 0), "a", "b", 1, 0, 0),
		ride("b-2", at(10, 0), "b", "c", 1, 0, 0),
	}

	s, err := NewConstraint(oracle, cfg, nil).Schedule(context.Background(), fleet, bookings)
	require.NoError(t, err)
	require.Equal(t, model.StatusOptimal, s.Status)
	require.Empty(t, s.Unassigned)
	require.Equal(t, 1, s.VehiclesUsed())
}

func TestConstraintRejectsBadInput(t *testing.T) {
	oracle := tenMinuteWorld()
	_, err := NewConstraint(oracle, testConfig(), nil).Schedule(context.Background(), nil, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}
