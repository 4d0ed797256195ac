// Package trim finds steady-state flight conditions for a rigid-body
// aircraft: the combination of wind angles, attitude, angular rates and
// control commands for which all body-axis accelerations vanish at a target
// altitude, airspeed, flight-path angle and turn rate.
//
// The search runs a box-constrained nonlinear least-squares iteration over
// six unknowns (alpha, beta, elevator, aileron, rudder, throttle); bank and
// pitch angle are never free parameters, they always follow from the
// kinematic closure equations.
package trim

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// Box bounds for the search unknowns, in the order
// [alpha, beta, elevator, aileron, rudder, throttle].
var (
	lowerBounds = [6]float64{-1, -0.5, -1, -1, -1, 0}
	upperBounds = [6]float64{1, 0.5, 1, 1, 1, 1}
)

// Acceptance thresholds for a solved trim.
const (
	costThreshold     = 1e-7 // on ½‖residual‖²
	residualThreshold = 1e-3 // on each residual component
	throttleThreshold = 0.99
)

const defaultMaxEvaluations = 1500

// Config tunes the trim search.
type Config struct {
	// MaxEvaluations bounds the number of residual evaluations per solve.
	// Zero selects the default. The budget is always finite.
	MaxEvaluations int
}

// Solver finds trim conditions for one aircraft model. Stateless across
// solves; safe for concurrent use.
type Solver struct {
	model  ForceModel
	atmos  Atmosphere
	dyn    Dynamics
	cfg    Config
	logger *slog.Logger
}

// New creates a trim solver. All three collaborators are mandatory: there is
// no implicit default for the dynamics equations, the atmosphere or the
// vehicle model.
func New(model ForceModel, atmos Atmosphere, dyn Dynamics, cfg Config, logger *slog.Logger) (*Solver, error) {
	if model == nil {
		return nil, errors.New("trim: aircraft force model is required")
	}
	if atmos == nil {
		return nil, errors.New("trim: atmosphere model is required")
	}
	if dyn == nil {
		return nil, errors.New("trim: rigid-body dynamics implementation is required")
	}
	if cfg.MaxEvaluations <= 0 {
		cfg.MaxEvaluations = defaultMaxEvaluations
	}
	return &Solver{model: model, atmos: atmos, dyn: dyn, cfg: cfg, logger: logger}, nil
}

// sign returns -1, 0 or 1 matching the sign of v.
func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// initialGuess seeds the search from the demanded condition. The wind angles
// and lateral controls start on the side of the expected solution, the
// throttle mid-range.
func initialGuess(cond FlightCondition) [6]float64 {
	return [6]float64{
		0.05 * sign(cond.Gamma),
		0.001 * sign(cond.TurnRate),
		0.05,
		0.01 * sign(cond.TurnRate),
		0.01 * sign(cond.TurnRate),
		0.5,
	}
}

// Solve finds the trim for the given flight condition.
//
// Hard failures (invalid condition, closure domain errors, non-finite
// dynamics output) return a nil result and an error. A search that merely
// fails to meet the acceptance thresholds still returns its best-effort
// result with a DiagNotConverged diagnostic attached; DiagInsufficientPower
// is attached independently when the resolved throttle exceeds its threshold.
func (s *Solver) Solve(cond FlightCondition) (*Result, error) {
	if err := cond.Validate(); err != nil {
		return nil, err
	}

	guess := initialGuess(cond)
	res, err := leastSquares(
		func(x []float64) ([]float64, error) { return s.evaluate(cond, x) },
		guess[:], lowerBounds[:], upperBounds[:],
		lsqSettings{
			maxEvaluations: s.cfg.MaxEvaluations,
			costTol:        1e-10,
			stepTol:        1e-10,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("trim search: %w", err)
	}

	alpha, beta := res.x[0], res.x[1]
	ctr := Controls{Elevator: res.x[2], Aileron: res.x[3], Rudder: res.x[4], Throttle: res.x[5]}

	// Reconstruct the full state from the final iterate. Always performed,
	// converged or not.
	st, err := closeState(cond, alpha, beta)
	if err != nil {
		return nil, fmt.Errorf("reconstructing trim state: %w", err)
	}

	var maxResid float64
	var residual [6]float64
	for i, v := range res.residual {
		residual[i] = v
		if a := math.Abs(v); a > maxResid {
			maxResid = a
		}
	}

	var diags []Diagnostic
	if res.cost > costThreshold || maxResid > residualThreshold {
		diags = append(diags, Diagnostic{
			Kind:    DiagNotConverged,
			Message: fmt.Sprintf("trim search did not converge: cost=%.3g, max residual=%.3g", res.cost, maxResid),
		})
		s.logger.Warn("trim did not converge",
			"cost", res.cost,
			"max_residual", maxResid,
			"evaluations", res.evaluations,
			"tas", cond.TAS,
			"altitude", cond.Altitude,
		)
	}
	if ctr.Throttle > throttleThreshold {
		diags = append(diags, Diagnostic{
			Kind:    DiagInsufficientPower,
			Message: fmt.Sprintf("throttle %.3f at demanded condition, probably not enough power", ctr.Throttle),
		})
		s.logger.Warn("throttle saturated",
			"throttle", ctr.Throttle,
			"tas", cond.TAS,
			"altitude", cond.Altitude,
		)
	}

	out := &Result{
		Condition:       cond,
		LinearVelocity:  st.linVel,
		AngularVelocity: st.angVel,
		Theta:           st.theta,
		Phi:             st.phi,
		Alpha:           alpha,
		Beta:            beta,
		Controls:        ctr,
		Cost:            res.cost,
		Residual:        residual,
		Evaluations:     res.evaluations,
		Diagnostics:     diags,
	}

	s.logger.Debug("trim solved",
		"tas", cond.TAS,
		"altitude", cond.Altitude,
		"gamma", cond.Gamma,
		"turn_rate", cond.TurnRate,
		"cost", res.cost,
		"evaluations", res.evaluations,
		"alpha", alpha,
		"theta", st.theta,
		"phi", st.phi,
		"throttle", ctr.Throttle,
		"converged", out.Converged(),
	)

	return out, nil
}
