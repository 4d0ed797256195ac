// Package frames provides rotations between the wind and body reference
// frames and the anemometric relations tying them together.
package frames

import (
	"fmt"
	"math"
)

// WindToBody rotates a wind-axes vector into body axes through the standard
// wind→body rotation: sideslip beta first, then angle of attack alpha.
func WindToBody(v [3]float64, alpha, beta float64) [3]float64 {
	sa, ca := math.Sincos(alpha)
	sb, cb := math.Sincos(beta)
	return [3]float64{
		ca*cb*v[0] - ca*sb*v[1] - sa*v[2],
		sb*v[0] + cb*v[1],
		sa*cb*v[0] - sa*sb*v[1] + ca*v[2],
	}
}

// BodyToWind rotates a body-axes vector into wind axes. Inverse of WindToBody.
func BodyToWind(v [3]float64, alpha, beta float64) [3]float64 {
	sa, ca := math.Sincos(alpha)
	sb, cb := math.Sincos(beta)
	return [3]float64{
		ca*cb*v[0] + sb*v[1] + sa*cb*v[2],
		-ca*sb*v[0] + cb*v[1] - sa*sb*v[2],
		-sa*v[0] + ca*v[2],
	}
}

// AlphaBetaTAS recovers the angle of attack, sideslip angle and true
// airspeed from the aerodynamic velocity in body axes:
//
//	TAS   = √(u² + v² + w²)
//	alpha = atan(w / u)
//	beta  = asin(v / TAS)
//
// Returns an error when u is zero, where alpha is undefined.
func AlphaBetaTAS(u, v, w float64) (alpha, beta, tas float64, err error) {
	tas = math.Sqrt(u*u + v*v + w*w)
	if u == 0 {
		return 0, 0, tas, fmt.Errorf("alpha undefined for zero axial velocity (v=%g, w=%g)", v, w)
	}
	alpha = math.Atan(w / u)
	beta = math.Asin(v / tas)
	return alpha, beta, tas, nil
}

// DynamicPressure returns ½·rho·TAS².
func DynamicPressure(rho, tas float64) float64 {
	return 0.5 * rho * tas * tas
}
