package sight

import (
	"log"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"
)

// consensus is the scored fit of one sample
type consensus struct {
	model   Model
	inliers []int
}

// RANSAC fits phi and origin robustly. Each iteration fits a coarse model on
// SampleSize random observations (sweep at SampleStep), counts the
// observations whose sight line passes within InlierThreshold of its origin,
// and keeps the model with strictly more inliers than any earlier one. The
// winner's inliers are refit with RefitStrategy.
//
// With fewer than SampleSize observations, or when no model gathers
// SampleSize inliers, it falls back to the refit strategy over everything and
// reports every index as an inlier. Inlier indices refer to the original
// observation order.
func RANSAC(observations []Observation, cfg EstimatorConfig) (Model, []int) {
	cfg = cfg.WithDefaults()
	n := len(observations)
	k := cfg.SampleSize

	if n < k {
		return refit(observations, cfg), allIndices(n)
	}

	samples := drawSamples(n, k, cfg.RANSACIterations, cfg.rng())
	scored := scoreSamples(observations, samples, cfg)

	var best consensus
	for _, c := range scored {
		if len(c.inliers) > len(best.inliers) {
			best = c
		}
	}

	if len(best.inliers) < k {
		log.Printf("[ESTIMATE] consensus found only %d inliers out of %d, refitting on all observations",
			len(best.inliers), n)
		return refit(observations, cfg), allIndices(n)
	}

	subset := make([]Observation, len(best.inliers))
	for i, idx := range best.inliers {
		subset[i] = observations[idx]
	}
	return refit(subset, cfg), best.inliers
}

// drawSamples returns the index sets for every iteration, drawn sequentially
// from rng. When n == k every sample is the whole set and a single iteration
// is enough: later identical samples can never win a strict comparison.
func drawSamples(n, k, iterations int, rng *rand.Rand) [][]int {
	if n == k {
		return [][]int{allIndices(n)}
	}
	samples := make([][]int, iterations)
	for i := range samples {
		samples[i] = rng.Perm(n)[:k]
	}
	return samples
}

// scoreSamples fits and scores every sample, preserving iteration order
func scoreSamples(observations []Observation, samples [][]int, cfg EstimatorConfig) []consensus {
	scored := make([]consensus, len(samples))
	workers := cfg.workerCount()

	if workers == 1 || len(samples) == 1 {
		for i, s := range samples {
			scored[i] = scoreSample(observations, s, cfg)
		}
		return scored
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, s := range samples {
		g.Go(func() error {
			scored[i] = scoreSample(observations, s, cfg)
			return nil
		})
	}
	_ = g.Wait() // workers never fail
	return scored
}

func scoreSample(observations []Observation, sample []int, cfg EstimatorConfig) consensus {
	subset := make([]Observation, len(sample))
	for i, idx := range sample {
		subset[i] = observations[idx]
	}
	model := DenseSweep(subset, cfg.SampleStep)
	return consensus{model: model, inliers: CountInliers(model, observations, cfg.InlierThreshold)}
}

// CountInliers returns, in ascending order, the indices of observations whose
// sight line under m passes strictly closer than threshold to m's origin
func CountInliers(m Model, observations []Observation, threshold float64) []int {
	var inliers []int
	for i, d := range LineDistances(m, observations) {
		if d < threshold {
			inliers = append(inliers, i)
		}
	}
	return inliers
}

// refit runs the configured deterministic strategy on observations
func refit(observations []Observation, cfg EstimatorConfig) Model {
	m, err := runDeterministic(observations, cfg.RefitStrategy, cfg)
	if err != nil {
		// RefitStrategy was not deterministic or unknown
		return MultiStart(observations, cfg.MultiStartSeeds, cfg.gradientOptions(cfg.MultiStartRate, cfg.MultiStartIters))
	}
	return m
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// SampleFailureProbability is the chance that none of iterations samples of
// size sampleSize is outlier-free when outlierFraction of the data is bad:
// (1 - (1-eps)^k)^m.
func SampleFailureProbability(outlierFraction float64, sampleSize, iterations int) float64 {
	good := math.Pow(1-outlierFraction, float64(sampleSize))
	return math.Pow(1-good, float64(iterations))
}

// RequiredIterations is the smallest iteration count whose failure
// probability is at most 1-confidence. Returns 1 for clean data and
// math.MaxInt when no sample can be outlier-free.
func RequiredIterations(outlierFraction float64, sampleSize int, confidence float64) int {
	good := math.Pow(1-outlierFraction, float64(sampleSize))
	switch {
	case good >= 1:
		return 1
	case good <= 0, confidence >= 1:
		return math.MaxInt
	}
	m := math.Log(1-confidence) / math.Log(1-good)
	if m < 1 {
		return 1
	}
	return int(math.Ceil(m))
}
