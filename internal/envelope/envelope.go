// Package envelope locates the trimmable airspeed window at a given
// altitude by scanning candidate speeds and refining the boundaries.
package envelope

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DLpadilla/PyFME/internal/trim"
)

// Config bounds the airspeed search.
type Config struct {
	MinTAS     float64 `json:"min_tas"`
	MaxTAS     float64 `json:"max_tas"`
	CoarseStep float64 `json:"coarse_step"`
	Refine     float64 `json:"refine"`
	Gamma      float64 `json:"gamma"`
	TurnRate   float64 `json:"turn_rate"`
}

// Validate checks the search window is usable.
func (c Config) Validate() error {
	if c.MinTAS <= 0 {
		return fmt.Errorf("minimum airspeed must be positive")
	}
	if c.MaxTAS <= c.MinTAS {
		return fmt.Errorf("airspeed window is empty")
	}
	if c.CoarseStep <= 0 || c.Refine <= 0 {
		return fmt.Errorf("coarse step and refine tolerance must be positive")
	}
	return nil
}

// Envelope is the trimmable airspeed window found at one altitude. The
// boundaries are accurate to the refine tolerance; when a boundary sits at
// the edge of the search window it is reported as that edge.
type Envelope struct {
	Altitude  float64 `json:"altitude"`
	Gamma     float64 `json:"gamma,omitempty"`
	TurnRate  float64 `json:"turn_rate,omitempty"`
	Trimmable bool    `json:"trimmable"`
	MinTAS    float64 `json:"min_tas,omitempty"`
	MaxTAS    float64 `json:"max_tas,omitempty"`
	Samples   int     `json:"samples"`
}

// searcher carries the fixed parameters of one envelope search.
type searcher struct {
	solver   *trim.Solver
	altitude float64
	cfg      Config
	logger   *slog.Logger
	samples  int
}

// Search scans [MinTAS, MaxTAS] in coarse steps for trimmable speeds, then
// bisects the outermost crossings down to the refine tolerance. A speed is
// trimmable when the solve converges without an insufficient-power
// diagnostic. Solve errors at a probe speed count the speed as untrimmable.
func Search(ctx context.Context, solver *trim.Solver, altitude float64, cfg Config, logger *slog.Logger) (*Envelope, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid envelope config: %w", err)
	}

	s := &searcher{solver: solver, altitude: altitude, cfg: cfg, logger: logger}

	// Coarse scan: find the outermost trimmable speeds.
	var firstHit, lastHit float64
	found := false
	for tas := cfg.MinTAS; tas <= cfg.MaxTAS+1e-9; tas += cfg.CoarseStep {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("envelope search aborted: %w", err)
		}
		if s.trimmable(tas) {
			if !found {
				firstHit = tas
				found = true
			}
			lastHit = tas
		}
	}

	env := &Envelope{
		Altitude: altitude,
		Gamma:    cfg.Gamma,
		TurnRate: cfg.TurnRate,
	}
	if !found {
		env.Samples = s.samples
		s.logger.Info("no trimmable speed in search window",
			"altitude", altitude,
			"min_tas", cfg.MinTAS,
			"max_tas", cfg.MaxTAS,
		)
		return env, nil
	}

	// Refine each boundary between the outermost hit and its untrimmable
	// neighbor. A hit at the window edge needs no refinement.
	low := firstHit
	if firstHit > cfg.MinTAS {
		var err error
		low, err = s.bisect(ctx, firstHit-cfg.CoarseStep, firstHit, false)
		if err != nil {
			return nil, err
		}
	}
	high := lastHit
	if lastHit < cfg.MaxTAS {
		var err error
		high, err = s.bisect(ctx, lastHit, lastHit+cfg.CoarseStep, true)
		if err != nil {
			return nil, err
		}
	}

	env.Trimmable = true
	env.MinTAS = low
	env.MaxTAS = high
	env.Samples = s.samples
	s.logger.Info("envelope found",
		"altitude", altitude,
		"min_tas", low,
		"max_tas", high,
		"samples", s.samples,
	)
	return env, nil
}

// bisect narrows a boundary bracket down to the refine tolerance and
// returns the trimmable end. For the upper boundary the trimmable end is
// lo, for the lower boundary it is hi.
func (s *searcher) bisect(ctx context.Context, lo, hi float64, upper bool) (float64, error) {
	if lo < s.cfg.MinTAS {
		lo = s.cfg.MinTAS
	}
	if hi > s.cfg.MaxTAS {
		hi = s.cfg.MaxTAS
	}

	for hi-lo > s.cfg.Refine {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("envelope search aborted: %w", err)
		}
		mid := 0.5 * (lo + hi)
		if s.trimmable(mid) == upper {
			lo = mid
		} else {
			hi = mid
		}
	}

	if upper {
		return lo, nil
	}
	return hi, nil
}

// trimmable probes a single airspeed.
func (s *searcher) trimmable(tas float64) bool {
	s.samples++
	res, err := s.solver.Solve(trim.FlightCondition{
		Altitude: s.altitude,
		TAS:      tas,
		Gamma:    s.cfg.Gamma,
		TurnRate: s.cfg.TurnRate,
	})
	if err != nil {
		s.logger.Warn("envelope probe failed",
			"altitude", s.altitude,
			"tas", tas,
			"error", err,
		)
		return false
	}
	return res.Converged() && !res.HasDiagnostic(trim.DiagInsufficientPower)
}
