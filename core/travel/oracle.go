// Package travel resolves the road distance and drive time between two
// locations. Schedulers consume it through the Oracle interface; the Cache
// wrapper adds per-run memoization, duplicate-call collapsing, bounded
// retries and an optional straight-line fallback.
package travel

import (
	"context"
	"errors"
	"time"

	"ambuplan/core/model"
)

// Estimate is the travel cost between two locations.
type Estimate struct {
	Meters   float64
	Duration time.Duration
}

// Oracle resolves the distance and drive time from one location to another.
// Routes are directional: (a,b) and (b,a) are distinct queries.
type Oracle interface {
	DistanceDuration(ctx context.Context, from, to model.Location) (Estimate, error)
}

// ErrUnavailable is returned when the underlying provider cannot answer, for
// example on network failure or an unresolvable location. Callers either fall
// back to an estimate or abort the run; a failed lookup is never treated as
// zero distance.
var ErrUnavailable = errors.New("travel: provider unavailable")

// Pair identifies one directional lookup.
type Pair struct {
	From, To model.Location
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, from, to model.Location) (Estimate, error)

func (f OracleFunc) DistanceDuration(ctx context.Context, from, to model.Location) (Estimate, error) {
	return f(ctx, from, to)
}
