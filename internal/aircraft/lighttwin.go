// Package aircraft provides concrete vehicle force models for the trim
// solver. Any vehicle exposing body-axes forces/moments and mass properties
// can be trimmed; LightTwin is the reference model used by the service,
// the diagnostic tool and the tests.
package aircraft

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/DLpadilla/PyFME/internal/frames"
	"github.com/DLpadilla/PyFME/internal/trim"
)

// Geometry and mass properties of a generic light twin (Roskam-class data).
const (
	wingArea  = 16.2  // m²
	wingSpan  = 11.25 // m
	meanChord = 1.44  // m
	mass      = 1600.0
	weightG   = 9.81 // matches the trim coordination constant
)

// Static aerodynamic derivatives (per rad where dimensional).
const (
	liftZero     = 0.288
	liftAlpha    = 4.58
	liftElevator = 0.81

	dragZero      = 0.029
	dragInduced   = 0.054 // k in CD = CD0 + k·CL²
	sideBeta      = -0.698
	sideRudder    = 0.230
	rollBeta      = -0.1096
	rollAileron   = 0.172
	rollRudder    = 0.0192
	pitchZero     = 0.07
	pitchAlpha    = -0.989
	pitchElevator = -1.28
	yawBeta       = 0.1444
	yawAileron    = -0.0168
	yawRudder     = -0.1152
)

// LightTwin is a linear-derivative force model of a light twin-engine
// aircraft with a single effective thrust line along body x. Immutable and
// safe for concurrent use.
type LightTwin struct {
	maxThrust float64
	inertia   *mat.SymDense
}

// NewLightTwin creates the model with its nominal installed thrust.
func NewLightTwin() *LightTwin {
	return NewLightTwinWithThrust(12000)
}

// NewLightTwinWithThrust creates the model with a custom maximum thrust (N).
// Useful for exercising power-limited trim conditions.
func NewLightTwinWithThrust(maxThrust float64) *LightTwin {
	return &LightTwin{
		maxThrust: maxThrust,
		inertia: mat.NewSymDense(3, []float64{
			1300, 0, 0,
			0, 1825, 0,
			0, 0, 2900,
		}),
	}
}

// ForcesAndMoments returns body-axes forces and moments for the given flight
// state. Aerodynamic forces are built in wind axes and rotated to body axes;
// weight is projected through the attitude; thrust scales linearly with
// throttle along body x.
func (a *LightTwin) ForcesAndMoments(in trim.ForceInput) (forces, moments [3]float64) {
	qbar := frames.DynamicPressure(in.Density, in.TAS)
	qS := qbar * wingArea

	coefLift := liftZero + liftAlpha*in.Alpha + liftElevator*(in.Elevator+in.ElevatorTrim)
	coefDrag := dragZero + dragInduced*coefLift*coefLift
	coefSide := sideBeta*in.Beta + sideRudder*in.Rudder

	// Wind axes: drag opposes the velocity, lift points up.
	aero := frames.WindToBody([3]float64{
		-qS * coefDrag,
		qS * coefSide,
		-qS * coefLift,
	}, in.Alpha, in.Beta)

	theta, phi := in.Attitude[0], in.Attitude[1]
	sinTheta, cosTheta := math.Sincos(theta)
	sinPhi, cosPhi := math.Sincos(phi)
	weight := mass * weightG
	grav := [3]float64{
		-weight * sinTheta,
		weight * sinPhi * cosTheta,
		weight * cosPhi * cosTheta,
	}

	thrust := in.Throttle * a.maxThrust

	forces = [3]float64{
		aero[0] + thrust + grav[0],
		aero[1] + grav[1],
		aero[2] + grav[2],
	}
	moments = [3]float64{
		qS * wingSpan * (rollBeta*in.Beta + rollAileron*in.Aileron + rollRudder*in.Rudder),
		qS * meanChord * (pitchZero + pitchAlpha*in.Alpha + pitchElevator*(in.Elevator+in.ElevatorTrim)),
		qS * wingSpan * (yawBeta*in.Beta + yawAileron*in.Aileron + yawRudder*in.Rudder),
	}
	return forces, moments
}

// MassAndInertia returns the aircraft mass (kg) and body-axes inertia tensor
// (kg·m²).
func (a *LightTwin) MassAndInertia() (float64, mat.Symmetric) {
	return mass, a.inertia
}
