package sight

import (
	"math"
	"sort"
)

// GradientOptions configures a single gradient descent run over phi
type GradientOptions struct {
	LearningRate  float64 // Step multiplier applied to the numeric gradient
	MaxIterations int     // Hard iteration budget
	Step          float64 // Central-difference half step h (degrees)
	Tolerance     float64 // Stop once |dphi| falls below this (degrees)
}

// gradientOptions builds descent options sharing h and tolerance from c
func (c EstimatorConfig) gradientOptions(rate float64, maxIter int) GradientOptions {
	return GradientOptions{
		LearningRate:  rate,
		MaxIterations: maxIter,
		Step:          c.GradientH,
		Tolerance:     c.ConvergenceTol,
	}
}

// sweep evaluates start, start+step, ... for count+1 candidates and keeps the
// first strictly lowest residual
func sweep(observations []Observation, start, step float64, count int) Model {
	best := evaluate(start, observations)
	for i := 1; i <= count; i++ {
		if m := evaluate(start+float64(i)*step, observations); m.Residual < best.Residual {
			best = m
		}
	}
	return best
}

// fullTurnCount is the number of steps after 0 that stay below 360
func fullTurnCount(step float64) int {
	return int(math.Ceil(360/step-1e-9)) - 1
}

// LegacySweep scans [0, 360) at 0.5 degree steps. Kept as a benchmark baseline.
func LegacySweep(observations []Observation) Model {
	return DenseSweep(observations, 0.5)
}

// DenseSweep scans [0, 360) at the given step
func DenseSweep(observations []Observation, step float64) Model {
	if step <= 0 {
		step = DefaultEstimatorConfig().DenseStep
	}
	return sweep(observations, 0, step, fullTurnCount(step))
}

// LocalSearch scans [center-rangeDeg, center+rangeDeg] inclusive at step
func LocalSearch(observations []Observation, center, rangeDeg, step float64) Model {
	if step <= 0 || rangeDeg <= 0 {
		return evaluate(center, observations)
	}
	count := int(math.Round(2 * rangeDeg / step))
	return sweep(observations, center-rangeDeg, step, count)
}

// TernarySearch shrinks [0, 360] by thirds until it is at most epsilon wide.
// Only correct when the residual is unimodal over the bracket, which
// outliers and the 180 degree line symmetry can both break.
func TernarySearch(observations []Observation, epsilon float64) Model {
	if epsilon <= 0 {
		epsilon = 0.01
	}
	left, right := 0.0, 360.0

	for right-left > epsilon {
		mid1 := left + (right-left)/3.0
		mid2 := right - (right-left)/3.0

		_, res1 := EvaluatePhi(mid1, observations)
		_, res2 := EvaluatePhi(mid2, observations)

		if res1 > res2 {
			left = mid1
		} else {
			right = mid2
		}
	}

	return evaluate((left+right)/2.0, observations)
}

// GradientDescent refines phi from phiInit with a central-difference
// gradient. It returns the lowest-residual phi visited, phiInit included,
// so it never ends worse than where it started.
func GradientDescent(observations []Observation, phiInit float64, opts GradientOptions) Model {
	h := opts.Step
	if h <= 0 {
		h = 0.01
	}

	phi := NormalizeAngle(phiInit)
	best := evaluate(phi, observations)

	for iter := 0; iter < opts.MaxIterations; iter++ {
		_, resMinus := EvaluatePhi(NormalizeAngle(phi-h), observations)
		_, resPlus := EvaluatePhi(NormalizeAngle(phi+h), observations)
		gradient := (resPlus - resMinus) / (2.0 * h)

		next := NormalizeAngle(phi - opts.LearningRate*gradient)
		if math.IsNaN(next) || math.Abs(AngleDiff(next, phi)) < opts.Tolerance {
			break
		}
		phi = next

		if m := evaluate(phi, observations); m.Residual < best.Residual {
			best = m
		}
	}

	return best
}

// MultiStart runs GradientDescent from every seed and keeps the first
// strictly lowest residual
func MultiStart(observations []Observation, seeds []float64, opts GradientOptions) Model {
	if len(seeds) == 0 {
		seeds = DefaultEstimatorConfig().MultiStartSeeds
	}
	best := GradientDescent(observations, seeds[0], opts)
	for _, seed := range seeds[1:] {
		if m := GradientDescent(observations, seed, opts); m.Residual < best.Residual {
			best = m
		}
	}
	return best
}

// AdaptiveMultiScale searches coarse to fine:
//  1. full sweep at AdaptiveCoarseStep, keep the AdaptiveCandidates best
//  2. local window of +-AdaptiveMidRange at AdaptiveMidStep around each
//  3. local window of +-AdaptiveFineRange at AdaptiveFineStep around the best
//  4. gradient refinement, kept only if it lowers the residual
func AdaptiveMultiScale(observations []Observation, cfg EstimatorConfig) Model {
	cfg = cfg.WithDefaults()

	coarse := make([]Model, 0, fullTurnCount(cfg.AdaptiveCoarseStep)+1)
	for i := 0; i <= fullTurnCount(cfg.AdaptiveCoarseStep); i++ {
		coarse = append(coarse, evaluate(float64(i)*cfg.AdaptiveCoarseStep, observations))
	}
	sort.SliceStable(coarse, func(i, j int) bool {
		return coarse[i].Residual < coarse[j].Residual
	})
	if len(coarse) > cfg.AdaptiveCandidates {
		coarse = coarse[:cfg.AdaptiveCandidates]
	}

	best := LocalSearch(observations, coarse[0].PhiDeg, cfg.AdaptiveMidRange, cfg.AdaptiveMidStep)
	for _, c := range coarse[1:] {
		if m := LocalSearch(observations, c.PhiDeg, cfg.AdaptiveMidRange, cfg.AdaptiveMidStep); m.Residual < best.Residual {
			best = m
		}
	}

	fine := LocalSearch(observations, best.PhiDeg, cfg.AdaptiveFineRange, cfg.AdaptiveFineStep)
	if fine.Residual < best.Residual {
		best = fine
	}

	opts := cfg.gradientOptions(cfg.AdaptiveRefineRate, cfg.AdaptiveRefineIters)
	return GradientDescent(observations, best.PhiDeg, opts)
}
