package sweep

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/DLpadilla/PyFME/internal/aircraft"
	"github.com/DLpadilla/PyFME/internal/atmosphere"
	"github.com/DLpadilla/PyFME/internal/dynamics"
	"github.com/DLpadilla/PyFME/internal/trim"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testSolver(t *testing.T) *trim.Solver {
	t.Helper()
	s, err := trim.New(aircraft.NewLightTwin(), atmosphere.ISA{}, dynamics.FlatEarth{},
		trim.Config{}, testLogger())
	if err != nil {
		t.Fatalf("trim.New failed: %v", err)
	}
	return s
}

func TestGridValidate(t *testing.T) {
	tests := []struct {
		name    string
		grid    Grid
		wantErr bool
	}{
		{"valid", Grid{AltitudeMin: 0, AltitudeMax: 1000, AltitudeStep: 500, TASMin: 80, TASMax: 100, TASStep: 10}, false},
		{"single point", Grid{AltitudeMin: 1000, AltitudeMax: 1000, AltitudeStep: 1, TASMin: 100, TASMax: 100, TASStep: 1}, false},
		{"zero altitude step", Grid{AltitudeMax: 1000, TASMin: 80, TASMax: 100, TASStep: 10}, true},
		{"inverted airspeed range", Grid{AltitudeMax: 1000, AltitudeStep: 500, TASMin: 100, TASMax: 80, TASStep: 10}, true},
		{"non-positive airspeed", Grid{AltitudeMax: 1000, AltitudeStep: 500, TASMin: 0, TASMax: 100, TASStep: 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.grid.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGridConditions(t *testing.T) {
	grid := Grid{
		AltitudeMin: 0, AltitudeMax: 1000, AltitudeStep: 500,
		TASMin: 80, TASMax: 100, TASStep: 10,
		Gamma: 0.02,
	}

	conds := grid.Conditions()
	if len(conds) != 9 {
		t.Fatalf("got %d conditions, want 9", len(conds))
	}
	if n := grid.NumPoints(); n != 9 {
		t.Errorf("NumPoints() = %d, want 9", n)
	}

	// Altitude outer, airspeed inner.
	if conds[0].Altitude != 0 || conds[0].TAS != 80 {
		t.Errorf("conds[0] = %+v, want altitude 0, TAS 80", conds[0])
	}
	if conds[1].Altitude != 0 || conds[1].TAS != 90 {
		t.Errorf("conds[1] = %+v, want altitude 0, TAS 90", conds[1])
	}
	if conds[8].Altitude != 1000 || conds[8].TAS != 100 {
		t.Errorf("conds[8] = %+v, want altitude 1000, TAS 100", conds[8])
	}
	for _, c := range conds {
		if c.Gamma != 0.02 {
			t.Fatalf("gamma not carried through: %+v", c)
		}
	}
}

func TestSweeperRun(t *testing.T) {
	sw := NewSweeper(testSolver(t), 4, testLogger())
	grid := Grid{
		AltitudeMin: 500, AltitudeMax: 1500, AltitudeStep: 1000,
		TASMin: 90, TASMax: 110, TASStep: 20,
	}

	table, err := sw.Run(context.Background(), grid)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(table.Points) != 4 {
		t.Fatalf("got %d points, want 4", len(table.Points))
	}
	if table.Converged+table.Failed != 4 {
		t.Errorf("converged %d + failed %d != 4", table.Converged, table.Failed)
	}
	if table.Converged != 4 {
		t.Errorf("expected all cruise points to converge, got %d of 4", table.Converged)
	}

	// Results keep grid order regardless of worker completion order.
	wantOrder := [][2]float64{{500, 90}, {500, 110}, {1500, 90}, {1500, 110}}
	for i, want := range wantOrder {
		p := table.Points[i]
		if p.Altitude != want[0] || p.TAS != want[1] {
			t.Errorf("points[%d] at (%g, %g), want (%g, %g)", i, p.Altitude, p.TAS, want[0], want[1])
		}
		if p.Converged && p.Cost > 1e-7 {
			t.Errorf("points[%d] marked converged with cost %g", i, p.Cost)
		}
	}
	if table.GeneratedAt.IsZero() {
		t.Error("GeneratedAt not set")
	}
}

func TestSweeperRunInvalidGrid(t *testing.T) {
	sw := NewSweeper(testSolver(t), 2, testLogger())
	if _, err := sw.Run(context.Background(), Grid{}); err == nil {
		t.Error("expected error for invalid grid")
	}
}

func TestSweeperRunCancelled(t *testing.T) {
	sw := NewSweeper(testSolver(t), 2, testLogger())
	grid := Grid{
		AltitudeMin: 0, AltitudeMax: 5000, AltitudeStep: 100,
		TASMin: 60, TASMax: 150, TASStep: 5,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := sw.Run(ctx, grid); err == nil {
		t.Error("expected error when context is already cancelled")
	}
}
