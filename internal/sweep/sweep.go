// Package sweep computes trim tables over a grid of flight conditions
// using a fixed-size worker pool.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DLpadilla/PyFME/internal/metrics"
	"github.com/DLpadilla/PyFME/internal/trim"
)

// Grid describes a rectangular sweep over altitude and airspeed at a fixed
// flight-path angle and turn rate.
type Grid struct {
	AltitudeMin  float64 `json:"altitude_min"`
	AltitudeMax  float64 `json:"altitude_max"`
	AltitudeStep float64 `json:"altitude_step"`
	TASMin       float64 `json:"tas_min"`
	TASMax       float64 `json:"tas_max"`
	TASStep      float64 `json:"tas_step"`
	Gamma        float64 `json:"gamma"`
	TurnRate     float64 `json:"turn_rate"`
}

// Validate checks the grid is well-formed and non-empty.
func (g Grid) Validate() error {
	if g.AltitudeStep <= 0 || g.TASStep <= 0 {
		return fmt.Errorf("grid steps must be positive")
	}
	if g.AltitudeMax < g.AltitudeMin {
		return fmt.Errorf("altitude range is empty")
	}
	if g.TASMax < g.TASMin {
		return fmt.Errorf("airspeed range is empty")
	}
	if g.TASMin <= 0 {
		return fmt.Errorf("airspeed range must be positive")
	}
	return nil
}

// Conditions expands the grid into concrete flight conditions, altitude
// outer, airspeed inner. Range ends are inclusive up to rounding.
func (g Grid) Conditions() []trim.FlightCondition {
	var conds []trim.FlightCondition
	for alt := g.AltitudeMin; alt <= g.AltitudeMax+1e-9; alt += g.AltitudeStep {
		for tas := g.TASMin; tas <= g.TASMax+1e-9; tas += g.TASStep {
			conds = append(conds, trim.FlightCondition{
				Altitude: alt,
				TAS:      tas,
				Gamma:    g.Gamma,
				TurnRate: g.TurnRate,
			})
		}
	}
	return conds
}

// NumPoints reports how many conditions the grid expands to.
func (g Grid) NumPoints() int {
	if g.Validate() != nil {
		return 0
	}
	nAlt := int((g.AltitudeMax-g.AltitudeMin)/g.AltitudeStep+1e-9) + 1
	nTAS := int((g.TASMax-g.TASMin)/g.TASStep+1e-9) + 1
	return nAlt * nTAS
}

// Point is one trimmed grid cell.
type Point struct {
	Altitude    float64       `json:"altitude"`
	TAS         float64       `json:"tas"`
	Gamma       float64       `json:"gamma,omitempty"`
	TurnRate    float64       `json:"turn_rate,omitempty"`
	Alpha       float64       `json:"alpha"`
	Beta        float64       `json:"beta"`
	Theta       float64       `json:"theta"`
	Phi         float64       `json:"phi"`
	Controls    trim.Controls `json:"controls"`
	Cost        float64       `json:"cost"`
	Converged   bool          `json:"converged"`
	Diagnostics []string      `json:"diagnostics,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Table is a completed sweep.
type Table struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Grid        Grid          `json:"grid"`
	Points      []Point       `json:"points"`
	Converged   int           `json:"converged"`
	Failed      int           `json:"failed"`
	Duration    time.Duration `json:"duration_ns"`
}

// trimJob is a unit of work for the worker pool.
type trimJob struct {
	index int
	cond  trim.FlightCondition
}

// trimResult is the output of a single grid-point trim.
type trimResult struct {
	index int
	point Point
	err   error
}

// Sweeper runs trim sweeps on a fixed number of goroutines. The solver must
// be safe for concurrent use, which holds for any solver built from
// stateless collaborators.
type Sweeper struct {
	solver  *trim.Solver
	workers int
	logger  *slog.Logger
}

// NewSweeper creates a sweeper with the given number of workers.
func NewSweeper(solver *trim.Solver, workers int, logger *slog.Logger) *Sweeper {
	if workers <= 0 {
		workers = 1
	}
	return &Sweeper{
		solver:  solver,
		workers: workers,
		logger:  logger,
	}
}

// Run trims every grid point and assembles the table. Points that fail with
// a hard error are logged and recorded with an error string. The table keeps
// grid order regardless of completion order.
func (sw *Sweeper) Run(ctx context.Context, grid Grid) (*Table, error) {
	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sweep grid: %w", err)
	}
	conds := grid.Conditions()
	start := time.Now()

	jobs := make(chan trimJob, sw.workers*2)
	results := make(chan trimResult, sw.workers*2)

	// Start workers.
	var wg sync.WaitGroup
	for i := 0; i < sw.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result := sw.trimSingle(job)
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Feed jobs in a goroutine.
	go func() {
		defer close(jobs)
		for i, cond := range conds {
			select {
			case jobs <- trimJob{index: i, cond: cond}:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Close results when all workers are done.
	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results into grid order.
	points := make([]Point, len(conds))
	var converged, failed int
	for result := range results {
		if result.err != nil {
			failed++
			sw.logger.Warn("trim point failed",
				"altitude", conds[result.index].Altitude,
				"tas", conds[result.index].TAS,
				"error", result.err,
			)
			points[result.index] = Point{
				Altitude: conds[result.index].Altitude,
				TAS:      conds[result.index].TAS,
				Gamma:    conds[result.index].Gamma,
				TurnRate: conds[result.index].TurnRate,
				Error:    result.err.Error(),
			}
			continue
		}
		if result.point.Converged {
			converged++
		} else {
			failed++
		}
		points[result.index] = result.point
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sweep aborted: %w", err)
	}

	table := &Table{
		GeneratedAt: time.Now().UTC(),
		Grid:        grid,
		Points:      points,
		Converged:   converged,
		Failed:      failed,
		Duration:    time.Since(start),
	}

	metrics.RecordSweep(table.Duration.Seconds(), converged, failed)
	sw.logger.Info("sweep complete",
		"points", len(points),
		"converged", converged,
		"failed", failed,
		"duration_ms", table.Duration.Milliseconds(),
	)
	return table, nil
}

// trimSingle trims one grid point.
func (sw *Sweeper) trimSingle(job trimJob) trimResult {
	res, err := sw.solver.Solve(job.cond)
	if err != nil {
		return trimResult{index: job.index, err: err}
	}

	diags := make([]string, 0, len(res.Diagnostics))
	for _, d := range res.Diagnostics {
		diags = append(diags, string(d.Kind))
	}

	return trimResult{
		index: job.index,
		point: Point{
			Altitude:    job.cond.Altitude,
			TAS:         job.cond.TAS,
			Gamma:       job.cond.Gamma,
			TurnRate:    job.cond.TurnRate,
			Alpha:       res.Alpha,
			Beta:        res.Beta,
			Theta:       res.Theta,
			Phi:         res.Phi,
			Controls:    res.Controls,
			Cost:        res.Cost,
			Converged:   res.Converged(),
			Diagnostics: diags,
		},
	}
}
