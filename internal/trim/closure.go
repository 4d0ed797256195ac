package trim

import "math"

// Kinematic closure equations for steady-state flight, per Stevens & Lewis,
// "Aircraft Control and Simulation", section 3.4. They convert the optimizer
// unknowns (alpha, beta) plus the target condition into a full body-axis
// attitude. Both functions are pure: identical inputs produce bitwise
// identical outputs, which the search relies on for stable re-evaluation.

// g0 is the reference gravity used by the coordination formulas (m/s²).
const g0 = 9.81

// turnRateEpsilon is the threshold below which a turn is treated as level
// flight and the bank angle short-circuits to zero.
const turnRateEpsilon = 1e-8

// TurnCoordination computes the bank angle phi for a coordinated turn at the
// given turn rate, wind angles, airspeed and flight-path angle.
func TurnCoordination(turnRate, alpha, beta, tas, gamma float64) (float64, error) {
	G := turnRate * tas / g0

	if math.Abs(gamma) < 1e-8 {
		return math.Atan(G * math.Cos(beta) / (math.Cos(alpha) - G*math.Sin(alpha)*math.Sin(beta))), nil
	}

	a := 1 - G*math.Tan(alpha)*math.Sin(beta)
	b := math.Sin(gamma) / math.Cos(beta)
	c := 1 + G*G*math.Cos(beta)*math.Cos(beta)

	arg := c*(1-b*b) + G*G*math.Sin(beta)*math.Sin(beta)
	if arg < 0 {
		return 0, &DomainError{
			Formula: "turn coordination",
			Reason:  "negative square root argument",
			Inputs: map[string]float64{
				"turn_rate": turnRate,
				"alpha":     alpha,
				"beta":      beta,
				"tas":       tas,
				"gamma":     gamma,
				"sqrt_arg":  arg,
			},
		}
	}
	sq := math.Sqrt(arg)

	num := (a - b*b) + b*math.Tan(alpha)*sq
	den := a*a - b*b*(1+c*math.Tan(alpha)*math.Tan(alpha))
	if den == 0 {
		return 0, &DomainError{
			Formula: "turn coordination",
			Reason:  "zero denominator",
			Inputs: map[string]float64{
				"turn_rate": turnRate,
				"alpha":     alpha,
				"beta":      beta,
				"tas":       tas,
				"gamma":     gamma,
			},
		}
	}

	return math.Atan(G * math.Cos(beta) / math.Cos(alpha) * num / den), nil
}

// TurnCoordinationLevel computes the bank angle for a level coordinated turn
// under the small-sideslip approximation (beta << 1).
func TurnCoordinationLevel(turnRate, alpha, tas float64) float64 {
	G := turnRate * tas / g0
	return math.Atan(G / math.Cos(alpha))
}

// RateOfClimb computes the pitch angle theta consistent with the given
// flight-path angle, wind angles and bank angle.
func RateOfClimb(gamma, alpha, beta, phi float64) (float64, error) {
	a := math.Cos(alpha) * math.Cos(beta)
	b := math.Sin(phi)*math.Sin(beta) + math.Cos(phi)*math.Sin(alpha)*math.Cos(beta)
	sg := math.Sin(gamma)

	den := a*a - sg*sg
	if den == 0 {
		return 0, &DomainError{
			Formula: "rate of climb",
			Reason:  "zero denominator",
			Inputs: map[string]float64{
				"gamma": gamma,
				"alpha": alpha,
				"beta":  beta,
				"phi":   phi,
			},
		}
	}

	arg := den + b*b
	if arg < 0 {
		return 0, &DomainError{
			Formula: "rate of climb",
			Reason:  "negative square root argument",
			Inputs: map[string]float64{
				"gamma":    gamma,
				"alpha":    alpha,
				"beta":     beta,
				"phi":      phi,
				"sqrt_arg": arg,
			},
		}
	}
	sq := math.Sqrt(arg)

	return math.Atan((a*b + sg*sq) / den), nil
}
