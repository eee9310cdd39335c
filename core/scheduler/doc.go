// Package scheduler assigns medical-transport bookings to fleet vehicles and
// builds per-vehicle, time-ordered stop itineraries. Two strategies implement
// the same contract: a greedy cheapest-insertion heuristic and an exact
// branch-and-bound search. Both feed the assembler, which independently
// re-validates every invariant and evaluates the operating cost, so a bug in
// either strategy can never leak an invalid schedule to the caller.
package scheduler
