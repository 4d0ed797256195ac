package trim_test

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/DLpadilla/PyFME/internal/aircraft"
	"github.com/DLpadilla/PyFME/internal/atmosphere"
	"github.com/DLpadilla/PyFME/internal/dynamics"
	"github.com/DLpadilla/PyFME/internal/trim"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newTestSolver(t *testing.T, model trim.ForceModel) *trim.Solver {
	t.Helper()
	if model == nil {
		model = aircraft.NewLightTwin()
	}
	s, err := trim.New(model, atmosphere.ISA{}, dynamics.FlatEarth{}, trim.Config{}, testLogger())
	if err != nil {
		t.Fatalf("trim.New failed: %v", err)
	}
	return s
}

// TestNewRequiresDependencies verifies the solver refuses to start without
// an explicit aircraft, atmosphere and dynamics implementation: there is no
// hidden default for any of them.
func TestNewRequiresDependencies(t *testing.T) {
	model := aircraft.NewLightTwin()
	atmos := atmosphere.ISA{}
	dyn := dynamics.FlatEarth{}
	logger := testLogger()

	tests := []struct {
		name  string
		model trim.ForceModel
		atmos trim.Atmosphere
		dyn   trim.Dynamics
	}{
		{"nil force model", nil, atmos, dyn},
		{"nil atmosphere", model, nil, dyn},
		{"nil dynamics", model, atmos, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := trim.New(tt.model, tt.atmos, tt.dyn, trim.Config{}, logger); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

// TestSolveRejectsNonPositiveTAS verifies the flight condition is validated
// before any search iteration runs.
func TestSolveRejectsNonPositiveTAS(t *testing.T) {
	s := newTestSolver(t, nil)

	for _, tas := range []float64{0, -10} {
		res, err := s.Solve(trim.FlightCondition{Altitude: 1000, TAS: tas})
		if !errors.Is(err, trim.ErrInvalidFlightCondition) {
			t.Errorf("TAS=%g: err = %v, want ErrInvalidFlightCondition", tas, err)
		}
		if res != nil {
			t.Errorf("TAS=%g: expected nil result on invalid condition", tas)
		}
	}
}

// TestSolveLevelCruise trims straight level flight at 1000 m, 100 m/s and
// checks the full steady-state contract.
func TestSolveLevelCruise(t *testing.T) {
	s := newTestSolver(t, nil)
	cond := trim.FlightCondition{Altitude: 1000, TAS: 100}

	res, err := s.Solve(cond)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}

	if !res.Converged() {
		t.Fatalf("expected convergence, diagnostics: %v", res.Diagnostics)
	}
	if res.Phi != 0 {
		t.Errorf("phi = %g, want exactly 0 without a turn", res.Phi)
	}
	for i, r := range res.Residual {
		if math.Abs(r) > 1e-3 {
			t.Errorf("residual[%d] = %g, want |r| <= 1e-3", i, r)
		}
	}
	if res.AngularVelocity != [3]float64{} {
		t.Errorf("angular velocity = %v, want zero without a turn", res.AngularVelocity)
	}

	// Linear velocity must be exactly (TAS, 0, 0) rotated through the wind
	// angles, so its magnitude is the TAS.
	v := res.LinearVelocity
	speed := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if math.Abs(speed-cond.TAS) > 1e-9 {
		t.Errorf("|linear velocity| = %g, want TAS %g", speed, cond.TAS)
	}

	// Level flight with negligible sideslip: theta tracks alpha.
	if math.Abs(res.Theta-res.Alpha) > 1e-6 {
		t.Errorf("theta = %g, alpha = %g: want equal in level flight", res.Theta, res.Alpha)
	}

	ctr := res.Controls.Vector()
	bounds := [4][2]float64{{-1, 1}, {-1, 1}, {-1, 1}, {0, 1}}
	for i, c := range ctr {
		if c < bounds[i][0] || c > bounds[i][1] {
			t.Errorf("control[%d] = %g outside [%g, %g]", i, c, bounds[i][0], bounds[i][1])
		}
	}
	if res.Controls.Throttle <= 0 || res.Controls.Throttle >= 1 {
		t.Errorf("throttle = %g, want interior of (0, 1) in cruise", res.Controls.Throttle)
	}
}

// TestSolveCoordinatedTurn trims a level coordinated turn and verifies the
// bank angle is exactly the turn-coordination closure value at the solved
// wind angles, never an independently optimized quantity.
func TestSolveCoordinatedTurn(t *testing.T) {
	s := newTestSolver(t, nil)
	cond := trim.FlightCondition{Altitude: 1000, TAS: 120, TurnRate: 0.05}

	res, err := s.Solve(cond)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if !res.Converged() {
		t.Fatalf("expected convergence, diagnostics: %v", res.Diagnostics)
	}

	if res.Phi <= 0 || res.Phi >= math.Pi/2 {
		t.Errorf("phi = %g rad, want in (0, π/2) for a right-hand turn", res.Phi)
	}

	wantPhi, err := trim.TurnCoordination(cond.TurnRate, res.Alpha, res.Beta, cond.TAS, cond.Gamma)
	if err != nil {
		t.Fatalf("TurnCoordination failed: %v", err)
	}
	if res.Phi != wantPhi {
		t.Errorf("phi = %.17g, want closure value %.17g", res.Phi, wantPhi)
	}
	wantTheta, err := trim.RateOfClimb(cond.Gamma, res.Alpha, res.Beta, res.Phi)
	if err != nil {
		t.Fatalf("RateOfClimb failed: %v", err)
	}
	if res.Theta != wantTheta {
		t.Errorf("theta = %.17g, want closure value %.17g", res.Theta, wantTheta)
	}

	// Angular velocity is the turn-rate vector decomposed into body axes.
	sinTheta, cosTheta := math.Sincos(res.Theta)
	sinPhi := math.Sin(res.Phi)
	want := [3]float64{
		-cond.TurnRate * sinTheta,
		cond.TurnRate * sinPhi * cosTheta,
		cond.TurnRate * cosTheta * sinPhi,
	}
	if res.AngularVelocity != want {
		t.Errorf("angular velocity = %v, want %v", res.AngularVelocity, want)
	}
}

// TestSolveSteadyClimb trims a straight climb and verifies wings stay level
// while the pitch angle rises above the angle of attack.
func TestSolveSteadyClimb(t *testing.T) {
	s := newTestSolver(t, nil)
	cond := trim.FlightCondition{Altitude: 1000, TAS: 100, Gamma: 0.05}

	res, err := s.Solve(cond)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if !res.Converged() {
		t.Fatalf("expected convergence, diagnostics: %v", res.Diagnostics)
	}
	if res.Phi != 0 {
		t.Errorf("phi = %g, want exactly 0 without a turn", res.Phi)
	}
	if res.Theta <= res.Alpha {
		t.Errorf("theta = %g, alpha = %g: steady climb must pitch above the angle of attack", res.Theta, res.Alpha)
	}
}

// TestSolveReconstruction re-evaluates the residual from a returned result
// and checks it reproduces the reported convergence cost.
func TestSolveReconstruction(t *testing.T) {
	s := newTestSolver(t, nil)

	conds := []trim.FlightCondition{
		{Altitude: 1000, TAS: 100},
		{Altitude: 2000, TAS: 120, TurnRate: 0.05},
		{Altitude: 500, TAS: 90, Gamma: 0.03},
	}

	for _, cond := range conds {
		res, err := s.Solve(cond)
		if err != nil {
			t.Fatalf("Solve(%+v) failed: %v", cond, err)
		}

		r, err := s.Residual(cond, res.Alpha, res.Beta, res.Controls)
		if err != nil {
			t.Fatalf("Residual re-evaluation failed: %v", err)
		}

		var cost float64
		for _, v := range r {
			cost += 0.5 * v * v
		}

		ref := math.Max(res.Cost, 1e-300)
		if math.Abs(cost-res.Cost)/ref > 1e-6 && math.Abs(cost-res.Cost) > 1e-15 {
			t.Errorf("%+v: reconstructed cost %g, reported %g", cond, cost, res.Cost)
		}
	}
}

// TestSolveConvergedResidualProperty sweeps a handful of conditions and
// checks the acceptance property: a result without a convergence diagnostic
// has every residual component within 1e-3.
func TestSolveConvergedResidualProperty(t *testing.T) {
	s := newTestSolver(t, nil)

	conds := []trim.FlightCondition{
		{Altitude: 0, TAS: 70},
		{Altitude: 1000, TAS: 100},
		{Altitude: 3000, TAS: 110, Gamma: 0.02},
		{Altitude: 1500, TAS: 130, TurnRate: -0.04},
		{Altitude: 2500, TAS: 115, Gamma: -0.03, TurnRate: 0.03},
	}

	for _, cond := range conds {
		res, err := s.Solve(cond)
		if err != nil {
			t.Fatalf("Solve(%+v) failed: %v", cond, err)
		}
		if !res.Converged() {
			continue
		}
		for i, r := range res.Residual {
			if math.Abs(r) > 1e-3 {
				t.Errorf("%+v: converged but residual[%d] = %g", cond, i, r)
			}
		}
	}
}

// TestSolveInsufficientPower trims a power-starved variant of the model and
// expects both the convergence and the insufficient-power diagnostics: the
// two conditions are independent and may co-occur.
func TestSolveInsufficientPower(t *testing.T) {
	weak := aircraft.NewLightTwinWithThrust(500)
	s := newTestSolver(t, weak)

	res, err := s.Solve(trim.FlightCondition{Altitude: 1000, TAS: 100})
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}

	if !res.HasDiagnostic(trim.DiagInsufficientPower) {
		t.Errorf("throttle = %g, expected insufficient-power diagnostic, got %v",
			res.Controls.Throttle, res.Diagnostics)
	}
	if res.Converged() {
		t.Error("expected non-convergence with a 500 N thrust ceiling at 100 m/s")
	}
	if res.Controls.Throttle <= 0.99 {
		t.Errorf("throttle = %g, expected saturation above 0.99", res.Controls.Throttle)
	}
}

// TestSolveEvaluationBudget verifies a tiny evaluation budget still returns
// a best-effort result (with diagnostics) instead of searching forever.
func TestSolveEvaluationBudget(t *testing.T) {
	s, err := trim.New(aircraft.NewLightTwin(), atmosphere.ISA{}, dynamics.FlatEarth{},
		trim.Config{MaxEvaluations: 10}, testLogger())
	if err != nil {
		t.Fatalf("trim.New failed: %v", err)
	}

	res, err := s.Solve(trim.FlightCondition{Altitude: 1000, TAS: 100})
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if res.Evaluations > 20 {
		t.Errorf("evaluations = %d, budget of 10 not respected", res.Evaluations)
	}
}

// TestForceModelContract pins down the light twin's mass properties so the
// dynamics see a positive-definite inertia tensor.
func TestForceModelContract(t *testing.T) {
	model := aircraft.NewLightTwin()
	mass, inertia := model.MassAndInertia()
	if mass <= 0 {
		t.Errorf("mass = %g, want positive", mass)
	}
	if inertia.SymmetricDim() != 3 {
		t.Fatalf("inertia dim = %d, want 3", inertia.SymmetricDim())
	}
	var chol mat.Cholesky
	if !chol.Factorize(inertia) {
		t.Error("inertia tensor is not positive definite")
	}
}
