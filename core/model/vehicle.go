package model

import (
	"fmt"
	"time"
)

// Vehicle is a transport unit of the fleet. Vehicles are read-only inputs to
// a scheduling run; the run never mutates them.
type Vehicle struct {
	ID         string
	Capacity   SeatVector
	HourlyRate float64 // operating cost per hour of trip time
	Start      Location
	ShiftStart time.Time
	ShiftEnd   time.Time // zero value means open-ended shift
}

// Validate checks that the vehicle definition is sound.
func (v Vehicle) Validate() error {
	if v.ID == "" {
		return fmt.Errorf("vehicle id must not be empty")
	}
	if v.Capacity.HasNegative() {
		return fmt.Errorf("vehicle %s: negative seat capacity", v.ID)
	}
	if v.Capacity.IsZero() {
		return fmt.Errorf("vehicle %s: zero seat capacity", v.ID)
	}
	if v.HourlyRate < 0 {
		return fmt.Errorf("vehicle %s: negative hourly rate", v.ID)
	}
	if v.Start == "" {
		return fmt.Errorf("vehicle %s: missing start location", v.ID)
	}
	if v.ShiftStart.IsZero() {
		return fmt.Errorf("vehicle %s: missing shift start", v.ID)
	}
	if !v.ShiftEnd.IsZero() && !v.ShiftEnd.After(v.ShiftStart) {
		return fmt.Errorf("vehicle %s: shift ends before it starts", v.ID)
	}
	return nil
}

// OnShift reports whether t falls inside the vehicle's availability window.
func (v Vehicle) OnShift(t time.Time) bool {
	if t.Before(v.ShiftStart) {
		return false
	}
	if !v.ShiftEnd.IsZero() && t.After(v.ShiftEnd) {
		return false
	}
	return true
}
