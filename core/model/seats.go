package model

import "fmt"

// MobilityClass identifies the kind of accommodation a passenger occupies on
// board: a regular seat, a wheelchair space or a stretcher berth.
type MobilityClass int

const (
	Ambulatory MobilityClass = iota
	Wheelchair
	Stretcher
	numClasses
)

func (c MobilityClass) String() string {
	switch c {
	case Ambulatory:
		return "ambulatory"
	case Wheelchair:
		return "wheelchair"
	case Stretcher:
		return "stretcher"
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// SeatVector carries one count per mobility class. It is used both for
// vehicle capacities and for booking requirements, so capacity checks are
// plain component-wise comparisons. Each class draws from its own pool.
type SeatVector [numClasses]int

// NewSeatVector builds a SeatVector from per-class counts.
func NewSeatVector(ambulatory, wheelchair, stretcher int) SeatVector {
	return SeatVector{ambulatory, wheelchair, stretcher}
}

// Get returns the count for the given class.
func (s SeatVector) Get(c MobilityClass) int {
	if c < 0 || c >= numClasses {
		return 0
	}
	return s[c]
}

// Fits reports whether every component of s is covered by capacity.
func (s SeatVector) Fits(capacity SeatVector) bool {
	for i := range s {
		if s[i] > capacity[i] {
			return false
		}
	}
	return true
}

// Add returns the component-wise sum of s and o.
func (s SeatVector) Add(o SeatVector) SeatVector {
	for i := range s {
		s[i] += o[i]
	}
	return s
}

// Sub returns the component-wise difference of s and o.
func (s SeatVector) Sub(o SeatVector) SeatVector {
	for i := range s {
		s[i] -= o[i]
	}
	return s
}

// IsZero reports whether all components are zero.
func (s SeatVector) IsZero() bool {
	for _, n := range s {
		if n != 0 {
			return false
		}
	}
	return true
}

// HasNegative reports whether any component is negative.
func (s SeatVector) HasNegative() bool {
	for _, n := range s {
		if n < 0 {
			return true
		}
	}
	return false
}

// Severity returns the most demanding class with a nonzero count. Stretcher
// outranks wheelchair, which outranks ambulatory. An empty vector reports
// Ambulatory.
func (s SeatVector) Severity() MobilityClass {
	for c := numClasses - 1; c > 0; c-- {
		if s[c] > 0 {
			return MobilityClass(c)
		}
	}
	return Ambulatory
}

func (s SeatVector) String() string {
	return fmt.Sprintf("ambulatory=%d wheelchair=%d stretcher=%d", s[Ambulatory], s[Wheelchair], s[Stretcher])
}
