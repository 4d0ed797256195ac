package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/DLpadilla/PyFME/internal/aircraft"
	"github.com/DLpadilla/PyFME/internal/atmosphere"
	"github.com/DLpadilla/PyFME/internal/dynamics"
	"github.com/DLpadilla/PyFME/internal/trim"
)

func main() {
	altitude := flag.Float64("alt", 1000, "altitude in meters")
	tas := flag.Float64("tas", 100, "true airspeed in m/s")
	gamma := flag.Float64("gamma", 0, "flight-path angle in radians")
	turnRate := flag.Float64("turn", 0, "turn rate in rad/s")
	thrust := flag.Float64("thrust", 12000, "maximum thrust in newtons")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	solver, err := trim.New(aircraft.NewLightTwinWithThrust(*thrust), atmosphere.ISA{},
		dynamics.FlatEarth{}, trim.Config{}, logger)
	if err != nil {
		fmt.Println("ERROR building solver:", err)
		os.Exit(1)
	}

	cond := trim.FlightCondition{
		Altitude: *altitude,
		TAS:      *tas,
		Gamma:    *gamma,
		TurnRate: *turnRate,
	}
	fmt.Printf("Trimming: alt=%.0f m  TAS=%.1f m/s  gamma=%.4f rad  turn=%.4f rad/s\n",
		cond.Altitude, cond.TAS, cond.Gamma, cond.TurnRate)

	res, err := solver.Solve(cond)
	if err != nil {
		fmt.Println("ERROR solving trim:", err)
		os.Exit(1)
	}

	fmt.Printf("\nSteady state (%d evaluations, cost %.3e):\n", res.Evaluations, res.Cost)
	fmt.Printf("  alpha = %+.5f rad   beta  = %+.5f rad\n", res.Alpha, res.Beta)
	fmt.Printf("  theta = %+.5f rad   phi   = %+.5f rad\n", res.Theta, res.Phi)
	fmt.Printf("  u, v, w = %+.3f, %+.3f, %+.3f m/s\n",
		res.LinearVelocity[0], res.LinearVelocity[1], res.LinearVelocity[2])
	fmt.Printf("  p, q, r = %+.5f, %+.5f, %+.5f rad/s\n",
		res.AngularVelocity[0], res.AngularVelocity[1], res.AngularVelocity[2])
	fmt.Printf("  elevator = %+.4f  aileron = %+.4f  rudder = %+.4f  throttle = %.4f\n",
		res.Controls.Elevator, res.Controls.Aileron, res.Controls.Rudder, res.Controls.Throttle)

	fmt.Println("\nResidual:")
	for i, r := range res.Residual {
		fmt.Printf("  f[%d] = %+.3e\n", i, r)
	}

	if len(res.Diagnostics) == 0 {
		fmt.Println("\nConverged.")
		return
	}
	fmt.Println("\nDiagnostics:")
	for _, d := range res.Diagnostics {
		fmt.Printf("  %s: %s\n", d.Kind, d.Message)
	}
	os.Exit(2)
}
