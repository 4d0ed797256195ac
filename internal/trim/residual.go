package trim

import (
	"fmt"
	"math"

	"github.com/DLpadilla/PyFME/internal/frames"
)

// bodyState is the full body-axis state implied by one trial (alpha, beta)
// under the kinematic closure constraints. Rebuilt on every residual
// evaluation and once more for the returned result.
type bodyState struct {
	phi, theta float64
	linVel     [3]float64 // u, v, w
	angVel     [3]float64 // p, q, r
}

// closeState applies the two closure equations and decomposes the turn-rate
// vector (assumed aligned with local vertical) into body axes.
func closeState(cond FlightCondition, alpha, beta float64) (bodyState, error) {
	var st bodyState
	var err error

	if math.Abs(cond.TurnRate) >= turnRateEpsilon {
		st.phi, err = TurnCoordination(cond.TurnRate, alpha, beta, cond.TAS, cond.Gamma)
		if err != nil {
			return bodyState{}, err
		}
	}

	st.theta, err = RateOfClimb(cond.Gamma, alpha, beta, st.phi)
	if err != nil {
		return bodyState{}, err
	}

	sinTheta, cosTheta := math.Sincos(st.theta)
	sinPhi := math.Sin(st.phi)
	st.angVel = [3]float64{
		-cond.TurnRate * sinTheta,
		cond.TurnRate * sinPhi * cosTheta,
		cond.TurnRate * cosTheta * sinPhi,
	}
	st.linVel = frames.WindToBody([3]float64{cond.TAS, 0, 0}, alpha, beta)
	return st, nil
}

// Residual evaluates the six-component body-axis acceleration residual for
// one trial point: the state derivative the dynamics report for the closed
// state under the model's forces and moments. A trim is a root of this
// function. Exposed so callers can verify a returned Result against the
// reported cost.
func (s *Solver) Residual(cond FlightCondition, alpha, beta float64, ctr Controls) ([6]float64, error) {
	st, err := closeState(cond, alpha, beta)
	if err != nil {
		return [6]float64{}, err
	}

	rho, err := s.atmos.Density(cond.Altitude)
	if err != nil {
		return [6]float64{}, fmt.Errorf("atmosphere query at %g m: %w", cond.Altitude, err)
	}

	// Heading is fixed at zero: in a flat-earth model it does not affect the
	// gravity projection onto body axes.
	forces, moments := s.model.ForcesAndMoments(ForceInput{
		TAS:      cond.TAS,
		Density:  rho,
		Alpha:    alpha,
		Beta:     beta,
		Elevator: ctr.Elevator,
		Aileron:  ctr.Aileron,
		Rudder:   ctr.Rudder,
		Throttle: ctr.Throttle,
		Attitude: [3]float64{st.theta, st.phi, 0},
	})
	mass, inertia := s.model.MassAndInertia()

	state := [6]float64{
		st.linVel[0], st.linVel[1], st.linVel[2],
		st.angVel[0], st.angVel[1], st.angVel[2],
	}
	deriv, err := s.dyn.StateDerivative(0, state, mass, inertia, forces, moments)
	if err != nil {
		return [6]float64{}, fmt.Errorf("state derivative: %w", err)
	}

	// NaN or Inf must not reach the optimizer.
	for i, d := range deriv {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return [6]float64{}, fmt.Errorf("state derivative component %d is not finite (alpha=%g, beta=%g, throttle=%g)",
				i, alpha, beta, ctr.Throttle)
		}
	}

	return deriv, nil
}

// evaluate adapts Residual to the flat slice layout the search iterates on:
// [alpha, beta, elevator, aileron, rudder, throttle].
func (s *Solver) evaluate(cond FlightCondition, x []float64) ([]float64, error) {
	ctr := Controls{Elevator: x[2], Aileron: x[3], Rudder: x[4], Throttle: x[5]}
	deriv, err := s.Residual(cond, x[0], x[1], ctr)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(deriv))
	copy(out, deriv[:])
	return out, nil
}
