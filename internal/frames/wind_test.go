package frames

import (
	"math"
	"testing"
)

// TestWindToBodyAirspeedVector verifies the canonical rotation of the
// airspeed vector (TAS, 0, 0) into body axes.
func TestWindToBodyAirspeedVector(t *testing.T) {
	tests := []struct {
		name        string
		alpha, beta float64
	}{
		{"zero angles", 0, 0},
		{"pure alpha", 0.1, 0},
		{"pure beta", 0, 0.08},
		{"combined", 0.12, -0.05},
	}

	const tas = 100.0
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WindToBody([3]float64{tas, 0, 0}, tt.alpha, tt.beta)
			want := [3]float64{
				tas * math.Cos(tt.alpha) * math.Cos(tt.beta),
				tas * math.Sin(tt.beta),
				tas * math.Sin(tt.alpha) * math.Cos(tt.beta),
			}
			for i := range got {
				if math.Abs(got[i]-want[i]) > 1e-12 {
					t.Errorf("component %d = %.15g, want %.15g", i, got[i], want[i])
				}
			}
			// Rotation preserves magnitude.
			mag := math.Sqrt(got[0]*got[0] + got[1]*got[1] + got[2]*got[2])
			if math.Abs(mag-tas) > 1e-9 {
				t.Errorf("|v| = %g, want %g", mag, tas)
			}
		})
	}
}

// TestBodyToWindRoundTrip verifies BodyToWind inverts WindToBody.
func TestBodyToWindRoundTrip(t *testing.T) {
	vectors := [][3]float64{
		{100, 0, 0},
		{80, -5, 12},
		{-3, 40, 7},
	}
	angles := [][2]float64{{0, 0}, {0.15, -0.07}, {-0.3, 0.2}}

	for _, v := range vectors {
		for _, ab := range angles {
			body := WindToBody(v, ab[0], ab[1])
			back := BodyToWind(body, ab[0], ab[1])
			for i := range v {
				if math.Abs(back[i]-v[i]) > 1e-10 {
					t.Errorf("v=%v alpha=%g beta=%g: round trip[%d] = %g, want %g",
						v, ab[0], ab[1], i, back[i], v[i])
				}
			}
		}
	}
}

// TestAlphaBetaTAS verifies the anemometric angles invert the airspeed
// rotation.
func TestAlphaBetaTAS(t *testing.T) {
	const (
		wantAlpha = 0.08
		wantBeta  = -0.03
		wantTAS   = 95.0
	)
	v := WindToBody([3]float64{wantTAS, 0, 0}, wantAlpha, wantBeta)

	alpha, beta, tas, err := AlphaBetaTAS(v[0], v[1], v[2])
	if err != nil {
		t.Fatalf("AlphaBetaTAS failed: %v", err)
	}
	if math.Abs(alpha-wantAlpha) > 1e-12 {
		t.Errorf("alpha = %g, want %g", alpha, wantAlpha)
	}
	if math.Abs(beta-wantBeta) > 1e-12 {
		t.Errorf("beta = %g, want %g", beta, wantBeta)
	}
	if math.Abs(tas-wantTAS) > 1e-9 {
		t.Errorf("TAS = %g, want %g", tas, wantTAS)
	}
}

// TestAlphaBetaTASZeroAxial verifies the undefined-alpha case is an error.
func TestAlphaBetaTASZeroAxial(t *testing.T) {
	if _, _, _, err := AlphaBetaTAS(0, 5, 3); err == nil {
		t.Error("expected error for zero axial velocity")
	}
}

// TestDynamicPressure checks ½·rho·V².
func TestDynamicPressure(t *testing.T) {
	got := DynamicPressure(1.225, 100)
	if math.Abs(got-6125) > 1e-9 {
		t.Errorf("q = %g, want 6125", got)
	}
}
