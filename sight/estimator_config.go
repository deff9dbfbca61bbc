package sight

import (
	"math/rand"
	"runtime"
)

// EstimatorConfig holds every tunable of the search strategies and the
// robust estimator. Angles are in degrees; InlierThreshold is in the same
// units as observation coordinates.
type EstimatorConfig struct {
	// Sweep steps and windows. TernaryEps stops ternary search once the
	// bracket is that narrow.
	LegacyStep float64 `yaml:"legacyStep,omitempty"`
	DenseStep  float64 `yaml:"denseStep,omitempty"`
	LocalRange float64 `yaml:"localRange,omitempty"`
	LocalStep  float64 `yaml:"localStep,omitempty"`
	TernaryEps float64 `yaml:"ternaryEpsilon,omitempty"`

	// Gradient descent. LearningRate and MaxIterations drive the "gradient"
	// strategy; the other entry paths have their own rate and budget.
	GradientH          float64   `yaml:"gradientStep,omitempty"`
	LearningRate       float64   `yaml:"learningRate,omitempty"`
	MaxIterations      int       `yaml:"maxIterations,omitempty"`
	ConvergenceTol     float64   `yaml:"convergenceTolerance,omitempty"`
	MultiStartSeeds    []float64 `yaml:"multiStartSeeds,omitempty"`
	MultiStartRate     float64   `yaml:"multiStartRate,omitempty"`
	MultiStartIters    int       `yaml:"multiStartIterations,omitempty"`
	TernaryRefineRate  float64   `yaml:"ternaryRefineRate,omitempty"`
	TernaryRefineIters int       `yaml:"ternaryRefineIterations,omitempty"`

	// Adaptive multi-scale stages
	AdaptiveCoarseStep  float64 `yaml:"adaptiveCoarseStep,omitempty"`
	AdaptiveCandidates  int     `yaml:"adaptiveCandidates,omitempty"`
	AdaptiveMidRange    float64 `yaml:"adaptiveMidRange,omitempty"`
	AdaptiveMidStep     float64 `yaml:"adaptiveMidStep,omitempty"`
	AdaptiveFineRange   float64 `yaml:"adaptiveFineRange,omitempty"`
	AdaptiveFineStep    float64 `yaml:"adaptiveFineStep,omitempty"`
	AdaptiveRefineRate  float64 `yaml:"adaptiveRefineRate,omitempty"`
	AdaptiveRefineIters int     `yaml:"adaptiveRefineIterations,omitempty"`

	// Consensus sampling. SampleStep is the coarse sweep used to fit each
	// sample; Workers > 1 scores samples concurrently.
	RANSACIterations int      `yaml:"ransacIterations,omitempty"`
	InlierThreshold  float64  `yaml:"inlierThreshold,omitempty"`
	SampleSize       int      `yaml:"sampleSize,omitempty"`
	SampleStep       float64  `yaml:"sampleStep,omitempty"`
	RefitStrategy    Strategy `yaml:"refitStrategy,omitempty"`
	Workers          int      `yaml:"workers,omitempty"`
	Seed             int64    `yaml:"seed,omitempty"`

	// ResolveHalfTurn reports the phi that puts landmarks in front of the table
	ResolveHalfTurn bool `yaml:"resolveHalfTurn"`

	// RNG overrides Seed when set. Not safe for concurrent estimations.
	RNG *rand.Rand `yaml:"-"`
}

// DefaultEstimatorConfig returns the documented defaults
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		LegacyStep: 0.5,
		DenseStep:  0.1,
		LocalRange: 1.0,
		LocalStep:  0.01,
		TernaryEps: 0.1,

		GradientH:          0.01,
		LearningRate:       0.1,
		MaxIterations:      100,
		ConvergenceTol:     0.001,
		MultiStartSeeds:    []float64{0, 45, 90, 135, 180, 225, 270, 315},
		MultiStartRate:     0.5,
		MultiStartIters:    100,
		TernaryRefineRate:  0.5,
		TernaryRefineIters: 50,

		AdaptiveCoarseStep:  1.0,
		AdaptiveCandidates:  5,
		AdaptiveMidRange:    2.0,
		AdaptiveMidStep:     0.1,
		AdaptiveFineRange:   0.5,
		AdaptiveFineStep:    0.01,
		AdaptiveRefineRate:  0.1,
		AdaptiveRefineIters: 50,

		RANSACIterations: 100,
		InlierThreshold:  50,
		SampleSize:       3,
		SampleStep:       2.0,
		RefitStrategy:    StrategyMultiStart,
		Workers:          1,
		Seed:             1,

		ResolveHalfTurn: true,
	}
}

// WithDefaults fills zero-valued fields from DefaultEstimatorConfig.
// ResolveHalfTurn, Seed and RNG are taken as given.
func (c EstimatorConfig) WithDefaults() EstimatorConfig {
	d := DefaultEstimatorConfig()
	setF := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	setI := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}

	setF(&c.LegacyStep, d.LegacyStep)
	setF(&c.DenseStep, d.DenseStep)
	setF(&c.LocalRange, d.LocalRange)
	setF(&c.LocalStep, d.LocalStep)
	setF(&c.TernaryEps, d.TernaryEps)
	setF(&c.GradientH, d.GradientH)
	setF(&c.LearningRate, d.LearningRate)
	setI(&c.MaxIterations, d.MaxIterations)
	setF(&c.ConvergenceTol, d.ConvergenceTol)
	if len(c.MultiStartSeeds) == 0 {
		c.MultiStartSeeds = d.MultiStartSeeds
	}
	setF(&c.MultiStartRate, d.MultiStartRate)
	setI(&c.MultiStartIters, d.MultiStartIters)
	setF(&c.TernaryRefineRate, d.TernaryRefineRate)
	setI(&c.TernaryRefineIters, d.TernaryRefineIters)
	setF(&c.AdaptiveCoarseStep, d.AdaptiveCoarseStep)
	setI(&c.AdaptiveCandidates, d.AdaptiveCandidates)
	setF(&c.AdaptiveMidRange, d.AdaptiveMidRange)
	setF(&c.AdaptiveMidStep, d.AdaptiveMidStep)
	setF(&c.AdaptiveFineRange, d.AdaptiveFineRange)
	setF(&c.AdaptiveFineStep, d.AdaptiveFineStep)
	setF(&c.AdaptiveRefineRate, d.AdaptiveRefineRate)
	setI(&c.AdaptiveRefineIters, d.AdaptiveRefineIters)
	setI(&c.RANSACIterations, d.RANSACIterations)
	setF(&c.InlierThreshold, d.InlierThreshold)
	setI(&c.SampleSize, d.SampleSize)
	setF(&c.SampleStep, d.SampleStep)
	if c.RefitStrategy == "" {
		c.RefitStrategy = d.RefitStrategy
	}
	setI(&c.Workers, d.Workers)
	return c
}

// rng returns the configured random source, or a fresh one seeded from Seed
func (c EstimatorConfig) rng() *rand.Rand {
	if c.RNG != nil {
		return c.RNG
	}
	return rand.New(rand.NewSource(c.Seed))
}

// workerCount clamps Workers to [1, GOMAXPROCS*4]
func (c EstimatorConfig) workerCount() int {
	w := c.Workers
	if w < 1 {
		return 1
	}
	if limit := runtime.GOMAXPROCS(0) * 4; w > limit {
		return limit
	}
	return w
}
