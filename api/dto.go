package api

import (
	"time"

	"ambuplan/core/model"
	"ambuplan/core/scheduler"
)

// SeatsDTO is the wire form of a seat vector, keyed by mobility class.
// "regular" is the ambulatory class.
type SeatsDTO struct {
	Regular    int `json:"regular"`
	Wheelchair int `json:"wheelchair"`
	Stretcher  int `json:"stretcher"`
}

func (s SeatsDTO) toVector() model.SeatVector {
	return model.NewSeatVector(s.Regular, s.Wheelchair, s.Stretcher)
}

// VehicleDTO is one fleet vehicle in a scheduling request.
type VehicleDTO struct {
	ID            string     `json:"id"`
	Seats         SeatsDTO   `json:"seats"`
	HourlyRate    float64    `json:"hourly_rate"`
	StartLocation string     `json:"start_location"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time,omitempty"`
}

// BookingDTO is one transport request. Service times are in seconds; zero
// falls back to the run-level defaults.
type BookingDTO struct {
	ID              string    `json:"id"`
	PassengerID     string    `json:"passenger_id,omitempty"`
	LinkedBookingID string    `json:"linked_booking_id,omitempty"`
	PickupTime      time.Time `json:"pickup_time"`
	PickupLocation  string    `json:"pickup_location"`
	DropoffLocation string    `json:"dropoff_location"`
	RequiredSeats   SeatsDTO  `json:"required_seats"`
	LoadingTime     int       `json:"loading_time,omitempty"`
	UnloadingTime   int       `json:"unloading_time,omitempty"`
}

// OptimizationDTO carries the optional solver objectives and constraints.
// Unset fields inherit the server-configured run defaults.
type OptimizationDTO struct {
	ChainBookingsForSamePassenger *bool `json:"chain_bookings_for_same_passenger,omitempty"`
	MinimizeVehicles              bool  `json:"minimize_vehicles,omitempty"`
	MinimizeTotalDuration         bool  `json:"minimize_total_duration,omitempty"`
}

// ScheduleRequest is the request body of both scheduling endpoints. The
// window and service-time overrides are in seconds.
type ScheduleRequest struct {
	Vehicles             []VehicleDTO     `json:"vehicles"`
	Bookings             []BookingDTO     `json:"bookings"`
	Algorithm            string           `json:"algorithm,omitempty"`
	BeforePickupTime     int              `json:"before_pickup_time,omitempty"`
	AfterPickupTime      int              `json:"after_pickup_time,omitempty"`
	PickupLoadingTime    int              `json:"pickup_loading_time,omitempty"`
	DropoffUnloadingTime int              `json:"dropoff_unloading_time,omitempty"`
	Optimization         *OptimizationDTO `json:"optimization,omitempty"`
}

// Decode maps the request onto domain inputs and the run configuration, with
// base supplying the defaults the request may override. Structural soundness
// of the fleet and bookings is left to the scheduler's own input validation.
func (r ScheduleRequest) Decode(base scheduler.Config) ([]model.Vehicle, []model.Booking, scheduler.Algorithm, scheduler.Config, error) {
	alg, err := scheduler.ParseAlgorithm(r.Algorithm)
	if err != nil {
		return nil, nil, "", scheduler.Config{}, err
	}

	cfg := base
	if r.BeforePickupTime > 0 {
		cfg.WindowBefore = time.Duration(r.BeforePickupTime) * time.Second
	}
	if r.AfterPickupTime > 0 {
		cfg.WindowAfter = time.Duration(r.AfterPickupTime) * time.Second
	}
	if r.PickupLoadingTime > 0 {
		cfg.DefaultLoad = time.Duration(r.PickupLoadingTime) * time.Second
	}
	if r.DropoffUnloadingTime > 0 {
		cfg.DefaultUnload = time.Duration(r.DropoffUnloadingTime) * time.Second
	}
	if opt := r.Optimization; opt != nil {
		if opt.ChainBookingsForSamePassenger != nil {
			cfg.ChainBookings = *opt.ChainBookingsForSamePassenger
		}
		switch {
		case opt.MinimizeTotalDuration:
			cfg.Objective = scheduler.ObjectiveDuration
		case opt.MinimizeVehicles:
			cfg.Objective = scheduler.ObjectiveVehicles
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, "", scheduler.Config{}, err
	}

	fleet := make([]model.Vehicle, len(r.Vehicles))
	for i, v := range r.Vehicles {
		fleet[i] = model.Vehicle{
			ID:         v.ID,
			Capacity:   v.Seats.toVector(),
			HourlyRate: v.HourlyRate,
			Start:      model.Location(v.StartLocation),
			ShiftStart: v.StartTime,
		}
		if v.EndTime != nil {
			fleet[i].ShiftEnd = *v.EndTime
		}
	}
	bookings := make([]model.Booking, len(r.Bookings))
	for i, b := range r.Bookings {
		bookings[i] = model.Booking{
			ID:          b.ID,
			PassengerID: b.PassengerID,
			LinkedID:    b.LinkedBookingID,
			PickupAt:    b.PickupTime,
			Pickup:      model.Location(b.PickupLocation),
			Dropoff:     model.Location(b.DropoffLocation),
			Seats:       b.RequiredSeats.toVector(),
			LoadDur:     time.Duration(b.LoadingTime) * time.Second,
			UnloadDur:   time.Duration(b.UnloadingTime) * time.Second,
		}
	}
	return fleet, bookings, alg, cfg, nil
}

// AssignedBookingDTO is one served booking on a vehicle's schedule.
type AssignedBookingDTO struct {
	BookingID       string    `json:"booking_id"`
	StartTime       time.Time `json:"start_time"`
	DropoffTime     time.Time `json:"dropoff_time"`
	PickupLocation  string    `json:"pickup_location"`
	DropoffLocation string    `json:"dropoff_location"`
}

// VehicleScheduleDTO is the itinerary of one vehicle, bookings in pickup
// order.
type VehicleScheduleDTO struct {
	VehicleID string               `json:"vehicle_id"`
	Bookings  []AssignedBookingDTO `json:"bookings"`
}

// UnassignedDTO reports a booking that could not be placed.
type UnassignedDTO struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

// ScheduleResponse is the wire form of a finished schedule.
type ScheduleResponse struct {
	Schedules  []VehicleScheduleDTO `json:"schedules"`
	Unassigned []UnassignedDTO      `json:"unassigned"`
	TotalCost  float64              `json:"total_cost"`
	Status     string               `json:"status"`
	Algorithm  string               `json:"algorithm"`
}

// EncodeSchedule converts a finished schedule into its wire form.
func EncodeSchedule(s *model.Schedule) ScheduleResponse {
	resp := ScheduleResponse{
		Schedules:  []VehicleScheduleDTO{},
		Unassigned: []UnassignedDTO{},
		TotalCost:  s.TotalCost,
		Status:     string(s.Status),
		Algorithm:  s.Algorithm,
	}
	for _, trip := range s.Trips {
		if len(trip.Stops) == 0 {
			continue
		}
		vs := VehicleScheduleDTO{VehicleID: trip.VehicleID}
		visits := make(map[string]*AssignedBookingDTO)
		for _, stop := range trip.Stops {
			if stop.Role == model.RolePickup {
				vs.Bookings = append(vs.Bookings, AssignedBookingDTO{
					BookingID:      stop.BookingID,
					StartTime:      stop.At,
					PickupLocation: string(stop.Location),
				})
				visits[stop.BookingID] = &vs.Bookings[len(vs.Bookings)-1]
			} else if b := visits[stop.BookingID]; b != nil {
				b.DropoffTime = stop.At
				b.DropoffLocation = string(stop.Location)
			}
		}
		resp.Schedules = append(resp.Schedules, vs)
	}
	for _, u := range s.Unassigned {
		resp.Unassigned = append(resp.Unassigned, UnassignedDTO{BookingID: u.BookingID, Reason: string(u.Reason)})
	}
	return resp
}

// Envelope is the async result wrapper: status is "success" or "error".
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// TaskDTO is the poll result of an asynchronous scheduling task.
type TaskDTO struct {
	TaskID     string            `json:"task_id"`
	TaskStatus string            `json:"task_status"`
	CreatedAt  time.Time         `json:"created_at"`
	Result     *ScheduleResponse `json:"result,omitempty"`
}

// CreateTaskResponse acknowledges an accepted asynchronous run.
type CreateTaskResponse struct {
	TaskID     string `json:"task_id"`
	TaskStatus string `json:"task_status"`
}
