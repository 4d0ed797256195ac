// Package dynamics evaluates rigid-body equations of motion in body axes.
package dynamics

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// FlatEarth implements the Euler flat-earth linear and angular momentum
// equations. Gravity is expected to be part of the supplied forces (the
// vehicle model projects weight through the attitude); the equations here
// only couple the velocity state with the net forces and moments:
//
//	m·(u̇ + q·w − r·v) = Fx        I·ω̇ = M − ω × (I·ω)
//	m·(v̇ + r·u − p·w) = Fy
//	m·(ẇ + p·v − q·u) = Fz
//
// Stateless; the zero value is ready to use.
type FlatEarth struct{}

// StateDerivative returns the six-component body-axis state derivative for
// state = [u, v, w, p, q, r]. The time argument is unused (the equations are
// autonomous) but kept for the general equations-of-motion contract.
func (FlatEarth) StateDerivative(t float64, state [6]float64, mass float64, inertia mat.Symmetric, forces, moments [3]float64) ([6]float64, error) {
	if mass <= 0 {
		return [6]float64{}, fmt.Errorf("mass must be positive, got %g", mass)
	}
	if inertia == nil {
		return [6]float64{}, fmt.Errorf("inertia tensor is required")
	}

	u, v, w := state[0], state[1], state[2]
	p, q, r := state[3], state[4], state[5]

	du := forces[0]/mass - q*w + r*v
	dv := forces[1]/mass - r*u + p*w
	dw := forces[2]/mass - p*v + q*u

	omega := mat.NewVecDense(3, []float64{p, q, r})
	var angMom mat.VecDense
	angMom.MulVec(inertia, omega)

	hx, hy, hz := angMom.AtVec(0), angMom.AtVec(1), angMom.AtVec(2)
	rhs := mat.NewVecDense(3, []float64{
		moments[0] - (q*hz - r*hy),
		moments[1] - (r*hx - p*hz),
		moments[2] - (p*hy - q*hx),
	})

	var omegaDot mat.VecDense
	if err := omegaDot.SolveVec(inertia, rhs); err != nil {
		return [6]float64{}, fmt.Errorf("singular inertia tensor: %w", err)
	}

	return [6]float64{du, dv, dw, omegaDot.AtVec(0), omegaDot.AtVec(1), omegaDot.AtVec(2)}, nil
}
