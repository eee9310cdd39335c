package scheduler

import (
	"fmt"

	"ambuplan/core/model"
)

// ValidationError reports malformed input detected before scheduling starts.
// It aborts the whole run.
type ValidationError struct {
	ID  string // offending booking or vehicle id, if known
	Msg string
}

func (e *ValidationError) Error() string {
	if e.ID == "" {
		return "invalid input: " + e.Msg
	}
	return fmt.Sprintf("invalid input (%s): %s", e.ID, e.Msg)
}

// InvariantError reports that the validator caught a broken invariant in a
// scheduler's output. It indicates a scheduler defect and is always fatal;
// the offending schedule is never returned to the caller.
type InvariantError struct {
	VehicleID string
	BookingID string
	Msg       string
}

func (e *InvariantError) Error() string {
	s := "schedule invariant violated"
	if e.VehicleID != "" {
		s += " on vehicle " + e.VehicleID
	}
	if e.BookingID != "" {
		s += " for booking " + e.BookingID
	}
	return s + ": " + e.Msg
}

// infeasibility classifies why a candidate placement was rejected. The family
// determines the reason reported when every candidate is eliminated.
type infeasibility struct {
	family model.Reason
	msg    string
}

func (e *infeasibility) Error() string {
	return fmt.Sprintf("%s: %s", e.family, e.msg)
}
