package trim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Box-constrained nonlinear least squares via a projected Levenberg-Marquardt
// iteration. The Jacobian comes from forward differences (flipped to backward
// at an active upper bound), the damped normal equations are solved with
// gonum, and every candidate step is clamped into the box before evaluation.
// The evaluation budget is finite: running out terminates the search with the
// best iterate found, never an error.

type lsqSettings struct {
	maxEvaluations int
	costTol        float64 // stop once ½‖r‖² falls below this
	stepTol        float64 // stop once the accepted step is this small (relative)
}

type lsqResult struct {
	x           []float64
	residual    []float64
	cost        float64
	evaluations int
}

const (
	fdStep        = 1e-7
	lambdaInitial = 1e-3
	lambdaGrow    = 10.0
	lambdaShrink  = 0.3
	lambdaMax     = 1e12
	lambdaMin     = 1e-12
)

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// leastSquares minimizes ½‖f(x)‖² over the box [lower, upper] starting from
// x0. Any error from f aborts the search immediately.
func leastSquares(f func([]float64) ([]float64, error), x0, lower, upper []float64, set lsqSettings) (lsqResult, error) {
	if err := set.validate(); err != nil {
		return lsqResult{}, err
	}

	n := len(x0)
	x := make([]float64, n)
	for j := range x {
		x[j] = clamp(x0[j], lower[j], upper[j])
	}

	r, err := f(x)
	if err != nil {
		return lsqResult{}, err
	}
	m := len(r)
	cost := 0.5 * floats.Dot(r, r)
	nEval := 1

	lambda := lambdaInitial
	jac := mat.NewDense(m, n, nil)
	xPert := make([]float64, n)
	xCand := make([]float64, n)

	for nEval < set.maxEvaluations && cost > set.costTol {
		// Forward-difference Jacobian at the current iterate.
		for j := 0; j < n; j++ {
			h := fdStep * math.Max(1, math.Abs(x[j]))
			if x[j]+h > upper[j] {
				h = -h
			}
			copy(xPert, x)
			xPert[j] = x[j] + h
			rp, err := f(xPert)
			if err != nil {
				return lsqResult{}, err
			}
			nEval++
			for i := 0; i < m; i++ {
				jac.Set(i, j, (rp[i]-r[i])/h)
			}
		}

		rVec := mat.NewVecDense(m, r)
		var grad mat.VecDense
		grad.MulVec(jac.T(), rVec)

		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)

		// Damped steps until one reduces the cost or lambda saturates.
		accepted := false
		for nEval < set.maxEvaluations {
			var damped mat.Dense
			damped.CloneFrom(&jtj)
			for j := 0; j < n; j++ {
				damped.Set(j, j, jtj.At(j, j)*(1+lambda)+lambdaMin)
			}

			var step mat.VecDense
			if err := step.SolveVec(&damped, &grad); err != nil {
				lambda *= lambdaGrow
				if lambda > lambdaMax {
					break
				}
				continue
			}

			for j := 0; j < n; j++ {
				xCand[j] = clamp(x[j]-step.AtVec(j), lower[j], upper[j])
			}
			rc, err := f(xCand)
			if err != nil {
				return lsqResult{}, err
			}
			nEval++
			costC := 0.5 * floats.Dot(rc, rc)

			if costC < cost {
				var stepNorm float64
				for j := 0; j < n; j++ {
					d := xCand[j] - x[j]
					stepNorm += d * d
				}
				stepNorm = math.Sqrt(stepNorm)

				copy(x, xCand)
				copy(r, rc)
				cost = costC
				lambda = math.Max(lambda*lambdaShrink, lambdaMin)
				accepted = true

				if stepNorm <= set.stepTol*(set.stepTol+floats.Norm(x, 2)) {
					return lsqResult{x: x, residual: r, cost: cost, evaluations: nEval}, nil
				}
				break
			}

			lambda *= lambdaGrow
			if lambda > lambdaMax {
				break
			}
		}

		if !accepted {
			// No descent direction left at maximum damping; the iterate is
			// as good as this search will get.
			break
		}
	}

	return lsqResult{x: x, residual: r, cost: cost, evaluations: nEval}, nil
}

func (s lsqSettings) validate() error {
	if s.maxEvaluations <= 0 {
		return fmt.Errorf("evaluation budget must be positive, got %d", s.maxEvaluations)
	}
	return nil
}
