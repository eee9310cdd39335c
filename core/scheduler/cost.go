package scheduler

import "ambuplan/core/model"

// Cost evaluates the operating cost of a schedule: for every vehicle actually
// used, its hourly rate times the trip makespan (last stop completion minus
// shift start). The function is pure and shared by both strategies, so greedy
// and solver costs are directly comparable.
func Cost(s *model.Schedule, fleet []model.Vehicle) float64 {
	rates := make(map[string]model.Vehicle, len(fleet))
	for _, v := range fleet {
		rates[v.ID] = v
	}
	total := 0.0
	for _, trip := range s.Trips {
		if len(trip.Stops) == 0 {
			continue
		}
		v, ok := rates[trip.VehicleID]
		if !ok {
			continue
		}
		total += v.HourlyRate * trip.Duration(v.ShiftStart).Hours()
	}
	return total
}
