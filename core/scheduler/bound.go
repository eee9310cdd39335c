package scheduler

import (
	"errors"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// errRelaxation indicates the LP relaxation could not be solved. The search
// then falls back to plain insertion-cost branch ordering.
var errRelaxation = errors.New("assignment relaxation failed")

// solveRelaxation solves the relaxed booking-to-vehicle assignment problem
// with the simplex method. Variables are x[b][v] (fractional assignment of
// booking b to vehicle v) followed by u[b] (booking left unassigned, at a
// penalty). Each booking is assigned exactly once or dropped; each vehicle
// with a bounded shift cannot accumulate more direct-ride seconds than its
// shift holds. Ordering, capacity interaction and waiting are relaxed away,
// so the optimum is a cheap guide for branch ordering, not a proven bound.
func solveRelaxation(costs [][]float64, loads []float64, caps []float64, penalty float64) ([]float64, float64, error) {
	nb := len(costs)
	if nb == 0 {
		return nil, 0, errRelaxation
	}
	nv := len(costs[0])
	n := nb*nv + nb

	c := make([]float64, n)
	for b := 0; b < nb; b++ {
		for v := 0; v < nv; v++ {
			c[b*nv+v] = costs[b][v]
		}
		c[nb*nv+b] = penalty
	}

	// Upper bounds x <= 1, u <= 1, plus one shift-budget row per vehicle.
	rows := n + nv
	g := mat.NewDense(rows, n, nil)
	h := make([]float64, rows)
	for i := 0; i < n; i++ {
		g.Set(i, i, 1)
		h[i] = 1
	}
	for v := 0; v < nv; v++ {
		row := n + v
		for b := 0; b < nb; b++ {
			g.Set(row, b*nv+v, loads[b])
		}
		h[row] = caps[v]
	}

	// One assignment row per booking: sum_v x[b][v] + u[b] = 1.
	a := mat.NewDense(nb, n, nil)
	bVec := make([]float64, nb)
	for b := 0; b < nb; b++ {
		for v := 0; v < nv; v++ {
			a.Set(b, b*nv+v, 1)
		}
		a.Set(b, nb*nv+b, 1)
		bVec[b] = 1
	}

	cStd, aStd, bStd := lp.Convert(c, g, h, a, bVec)
	val, sol, err := lp.Simplex(cStd, aStd, bStd, 1e-7, nil)
	if err != nil {
		return nil, 0, err
	}
	return sol[:n], val, nil
}

// lpSolve points to the relaxation solver. Tests override it to simulate
// solver failures.
var lpSolve = solveRelaxation
