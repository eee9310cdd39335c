package maps

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ambuplan/core/model"
	"ambuplan/core/travel"
)

// Static is a travel oracle backed by a fixed matrix. It serves offline
// deployments and QA scenarios where reproducible travel times matter more
// than realism.
type Static struct {
	mu      sync.RWMutex
	entries map[travel.Pair]travel.Estimate
}

// NewStatic creates an empty matrix.
func NewStatic() *Static {
	return &Static{entries: make(map[travel.Pair]travel.Estimate)}
}

// Set records the estimate for one directed pair.
func (s *Static) Set(from, to model.Location, meters float64, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[travel.Pair{From: from, To: to}] = travel.Estimate{Meters: meters, Duration: d}
}

// SetSymmetric records the estimate in both directions.
func (s *Static) SetSymmetric(a, b model.Location, meters float64, d time.Duration) {
	s.Set(a, b, meters, d)
	s.Set(b, a, meters, d)
}

// DistanceDuration implements travel.Oracle. Unknown pairs are unavailable.
func (s *Static) DistanceDuration(_ context.Context, from, to model.Location) (travel.Estimate, error) {
	if from == to {
		return travel.Estimate{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if est, ok := s.entries[travel.Pair{From: from, To: to}]; ok {
		return est, nil
	}
	return travel.Estimate{}, fmt.Errorf("%w: no matrix entry %s -> %s", travel.ErrUnavailable, from, to)
}
