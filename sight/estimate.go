package sight

import "fmt"

// Estimator runs strategies with a fixed configuration
type Estimator struct {
	Config EstimatorConfig
}

// NewEstimator creates an estimator; zero-valued tunables take their defaults
func NewEstimator(cfg EstimatorConfig) *Estimator {
	return &Estimator{Config: cfg.WithDefaults()}
}

// Estimate runs strategy with DefaultEstimatorConfig
func Estimate(observations []Observation, strategy Strategy, includeInliers bool) (Result, error) {
	return NewEstimator(DefaultEstimatorConfig()).Estimate(observations, strategy, includeInliers)
}

// Estimate fits origin and phi to observations with the named strategy.
// An empty strategy selects DefaultStrategy. The only error is
// ErrUnknownStrategy; degenerate geometry always yields a model.
//
// When includeInliers is set, Inliers holds the consensus set for
// StrategyRANSAC and every index 0..n-1 for the other strategies.
func (e *Estimator) Estimate(observations []Observation, strategy Strategy, includeInliers bool) (Result, error) {
	if strategy == "" {
		strategy = DefaultStrategy
	}
	cfg := e.Config

	var (
		model   Model
		inliers []int
	)
	if strategy == StrategyRANSAC {
		model, inliers = RANSAC(observations, cfg)
	} else {
		m, err := runDeterministic(observations, strategy, cfg)
		if err != nil {
			return Result{}, err
		}
		model = m
		inliers = allIndices(len(observations))
	}

	if cfg.ResolveHalfTurn {
		model = ResolveHalfTurn(model, subsetOf(observations, inliers))
	}

	result := Result{Model: model, Strategy: strategy}
	if includeInliers {
		result.Inliers = inliers
	}
	return result, nil
}

// runDeterministic dispatches every strategy except RANSAC
func runDeterministic(observations []Observation, strategy Strategy, cfg EstimatorConfig) (Model, error) {
	switch strategy {
	case StrategyAdaptive:
		return AdaptiveMultiScale(observations, cfg), nil
	case StrategyTernary:
		coarse := TernarySearch(observations, cfg.TernaryEps)
		opts := cfg.gradientOptions(cfg.TernaryRefineRate, cfg.TernaryRefineIters)
		return GradientDescent(observations, coarse.PhiDeg, opts), nil
	case StrategyGradient:
		opts := cfg.gradientOptions(cfg.LearningRate, cfg.MaxIterations)
		return GradientDescent(observations, 0, opts), nil
	case StrategyMultiStart:
		opts := cfg.gradientOptions(cfg.MultiStartRate, cfg.MultiStartIters)
		return MultiStart(observations, cfg.MultiStartSeeds, opts), nil
	case StrategyDense:
		return DenseSweep(observations, cfg.DenseStep), nil
	case StrategyLegacy:
		return DenseSweep(observations, cfg.LegacyStep), nil
	default:
		return Model{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

func subsetOf(observations []Observation, indices []int) []Observation {
	if len(indices) == len(observations) {
		return observations
	}
	subset := make([]Observation, len(indices))
	for i, idx := range indices {
		subset[i] = observations[idx]
	}
	return subset
}
