// Package atmosphere implements the International Standard Atmosphere
// (ISO 2533:1975) through the lower stratosphere, plus the altimetry
// conversions between geometric and geopotential altitude.
package atmosphere

import (
	"fmt"
	"math"
)

// Sea-level reference state and layer constants.
const (
	seaLevelTemperature = 288.15   // K
	seaLevelPressure    = 101325.0 // Pa
	gasConstantAir      = 287.05287
	gammaAir            = 1.4
	gravity             = 9.80665   // m/s², standard
	tropoLapseRate      = -0.0065   // K/m, troposphere
	tropopauseAltitude  = 11000.0   // m geopotential
	stratoTemperature   = 216.65    // K, isothermal layer
	modelCeiling        = 20000.0   // m geopotential
	earthMeanRadius     = 6371000.0 // m
)

// State is the atmospheric state at a geopotential altitude.
type State struct {
	Temperature float64 // K
	Pressure    float64 // Pa
	Density     float64 // kg/m³
	SoundSpeed  float64 // m/s
}

// ISA is the standard atmosphere model. Zero value is ready to use.
type ISA struct{}

// Query returns the atmospheric state at the given geopotential altitude.
// Valid between sea level and 20 km; anything outside is an error rather
// than an extrapolation.
func (ISA) Query(altitude float64) (State, error) {
	if altitude < 0 || altitude > modelCeiling {
		return State{}, fmt.Errorf("altitude %g m outside ISA model range [0, %g]", altitude, modelCeiling)
	}

	var temp, press float64
	if altitude <= tropopauseAltitude {
		temp = seaLevelTemperature + tropoLapseRate*altitude
		press = seaLevelPressure * math.Pow(temp/seaLevelTemperature, -gravity/(gasConstantAir*tropoLapseRate))
	} else {
		temp = stratoTemperature
		tropoPress := seaLevelPressure * math.Pow(stratoTemperature/seaLevelTemperature, -gravity/(gasConstantAir*tropoLapseRate))
		press = tropoPress * math.Exp(-gravity*(altitude-tropopauseAltitude)/(gasConstantAir*stratoTemperature))
	}

	return State{
		Temperature: temp,
		Pressure:    press,
		Density:     press / (gasConstantAir * temp),
		SoundSpeed:  math.Sqrt(gammaAir * gasConstantAir * temp),
	}, nil
}

// Density returns the air density at the given geopotential altitude.
func (m ISA) Density(altitude float64) (float64, error) {
	st, err := m.Query(altitude)
	if err != nil {
		return 0, err
	}
	return st.Density, nil
}

// GeopotentialToGeometric converts geopotential altitude above MSL to
// geometric altitude.
func GeopotentialToGeometric(h float64) float64 {
	return earthMeanRadius * h / (earthMeanRadius - h)
}

// GeometricToGeopotential converts geometric altitude above MSL to
// geopotential altitude.
func GeometricToGeopotential(z float64) float64 {
	return earthMeanRadius * z / (earthMeanRadius + z)
}

// SutherlandViscosity returns the dynamic viscosity of air at temperature T
// (K) per Sutherland's law. Valid below roughly 550 K.
func SutherlandViscosity(temp float64) float64 {
	const (
		refViscosity   = 1.176e-5 // kg/(m·s)
		refTemperature = 273.1    // K
		sutherlandB    = 0.4042
	)
	tr := temp / refTemperature
	return refViscosity * math.Pow(tr, 1.5) * (1 + sutherlandB) / (tr + sutherlandB)
}
