package trim

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidFlightCondition is returned before any search iteration runs when
// the requested flight condition cannot be trimmed (e.g. non-positive TAS).
var ErrInvalidFlightCondition = errors.New("invalid flight condition")

// FlightCondition is the target steady-state condition for a trim solve.
// Immutable per solve.
type FlightCondition struct {
	Altitude float64 `json:"altitude"`  // geopotential altitude (m)
	TAS      float64 `json:"tas"`       // true airspeed (m/s)
	Gamma    float64 `json:"gamma"`     // flight-path angle (rad)
	TurnRate float64 `json:"turn_rate"` // heading rate in a coordinated turn (rad/s)
}

// Validate rejects conditions the closure formulas cannot handle.
// TAS appears in denominators, so it must be strictly positive.
func (fc FlightCondition) Validate() error {
	if !(fc.TAS > 0) {
		return fmt.Errorf("%w: TAS must be positive, got %g m/s", ErrInvalidFlightCondition, fc.TAS)
	}
	return nil
}

// Controls holds the resolved control-surface and throttle commands.
// Deflections are normalized to [-1, 1], throttle to [0, 1].
type Controls struct {
	Elevator float64 `json:"elevator"`
	Aileron  float64 `json:"aileron"`
	Rudder   float64 `json:"rudder"`
	Throttle float64 `json:"throttle"`
}

// Vector returns the controls in the conventional order
// [elevator, aileron, rudder, throttle].
func (c Controls) Vector() [4]float64 {
	return [4]float64{c.Elevator, c.Aileron, c.Rudder, c.Throttle}
}

// DiagnosticKind identifies a class of non-fatal solve diagnostic.
type DiagnosticKind string

const (
	// DiagNotConverged marks a solve whose final cost or residual exceeded
	// the acceptance thresholds. The result is still usable as a best effort.
	DiagNotConverged DiagnosticKind = "not_converged"
	// DiagInsufficientPower marks a solve whose resolved throttle sits at
	// the top of its range, suggesting the aircraft cannot sustain the
	// demanded condition.
	DiagInsufficientPower DiagnosticKind = "insufficient_power"
)

// Diagnostic is a non-fatal condition attached to a Result.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Message string         `json:"message"`
}

// Result is the immutable outcome of one trim solve.
type Result struct {
	Condition       FlightCondition `json:"condition"`
	LinearVelocity  [3]float64      `json:"linear_velocity"`  // u, v, w body axes (m/s)
	AngularVelocity [3]float64      `json:"angular_velocity"` // p, q, r body axes (rad/s)
	Theta           float64         `json:"theta"`            // pitch angle (rad)
	Phi             float64         `json:"phi"`              // bank angle (rad)
	Alpha           float64         `json:"alpha"`            // angle of attack (rad)
	Beta            float64         `json:"beta"`             // sideslip angle (rad)
	Controls        Controls        `json:"controls"`
	Cost            float64         `json:"cost"`     // ½·‖residual‖²
	Residual        [6]float64      `json:"residual"` // body-axis accelerations at the solution
	Evaluations     int             `json:"evaluations"`
	Diagnostics     []Diagnostic    `json:"diagnostics,omitempty"`
}

// Converged reports whether the solve met the acceptance thresholds.
func (r *Result) Converged() bool {
	return !r.HasDiagnostic(DiagNotConverged)
}

// HasDiagnostic reports whether a diagnostic of the given kind is attached.
func (r *Result) HasDiagnostic(kind DiagnosticKind) bool {
	for _, d := range r.Diagnostics {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

// DomainError reports that a closure formula was evaluated outside its
// mathematical domain (negative square-root argument or zero denominator).
// It aborts the solve: letting NaN or Inf into the search would silently
// corrupt the iterate trajectory.
type DomainError struct {
	Formula string             // which formula failed
	Reason  string             // what went wrong
	Inputs  map[string]float64 // the offending inputs
}

func (e *DomainError) Error() string {
	keys := make([]string, 0, len(e.Inputs))
	for k := range e.Inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", e.Formula, e.Reason)
	for i, k := range keys {
		if i == 0 {
			sb.WriteString(" (")
		} else {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%g", k, e.Inputs[k])
	}
	if len(keys) > 0 {
		sb.WriteString(")")
	}
	return sb.String()
}

// ForceInput carries the flight state and control deflections handed to an
// aircraft force model for one evaluation.
type ForceInput struct {
	TAS          float64
	Density      float64
	Alpha        float64
	Beta         float64
	Elevator     float64
	ElevatorTrim float64
	Aileron      float64
	Rudder       float64
	Throttle     float64
	Attitude     [3]float64 // theta, phi, psi (rad)
}

// ForceModel is the capability a vehicle model must expose to be trimmed:
// body-axes forces and moments for a flight state, and its mass properties.
type ForceModel interface {
	ForcesAndMoments(in ForceInput) (forces, moments [3]float64)
	MassAndInertia() (mass float64, inertia mat.Symmetric)
}

// Atmosphere maps altitude to air density. Other atmospheric state is not
// needed by the trim core.
type Atmosphere interface {
	Density(altitude float64) (float64, error)
}

// Dynamics evaluates the rigid-body equations of motion, returning the
// six-component state derivative (3 linear + 3 angular accelerations).
type Dynamics interface {
	StateDerivative(t float64, state [6]float64, mass float64, inertia mat.Symmetric, forces, moments [3]float64) ([6]float64, error)
}
