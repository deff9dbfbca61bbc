package sight

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", StrategyRANSAC, false},
		{"ransac", StrategyRANSAC, false},
		{"Adaptive", StrategyAdaptive, false},
		{" multi-start ", StrategyMultiStart, false},
		{"legacy", StrategyLegacy, false},
		{"dense", StrategyDense, false},
		{"multistart", "", true},
		{"brute", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownStrategy, "ParseStrategy(%q)", tt.in)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.True(t, got.Valid())
	}
	assert.False(t, Strategy("Adaptive").Valid())
}

func TestEstimate_UnknownStrategyFailsFast(t *testing.T) {
	_, err := Estimate(squareTable, Strategy("simulated-annealing"), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownStrategy))
}

func TestEstimate_DefaultStrategyIsRANSAC(t *testing.T) {
	cfg := testRANSACConfig()
	est := NewEstimator(cfg)

	def, err := est.Estimate(outlierTable(), "", true)
	require.NoError(t, err)
	explicit, err := est.Estimate(outlierTable(), StrategyRANSAC, true)
	require.NoError(t, err)

	assert.Equal(t, StrategyRANSAC, def.Strategy)
	assert.Equal(t, explicit, def)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, def.Inliers)
}

func TestEstimate_InliersOnRequest(t *testing.T) {
	est := NewEstimator(DefaultEstimatorConfig())

	for _, s := range Strategies {
		with, err := est.Estimate(surveyTable, s, true)
		require.NoError(t, err)
		without, err := est.Estimate(surveyTable, s, false)
		require.NoError(t, err)

		assert.Nil(t, without.Inliers, "strategy %s", s)
		assert.Equal(t, []int{0, 1, 2, 3, 4}, with.Inliers, "strategy %s", s)
		assert.Equal(t, with.Model, without.Model, "strategy %s", s)
		assert.Equal(t, s, with.Strategy)
	}
}

func TestEstimate_ReportsForwardFacingPhi(t *testing.T) {
	for _, s := range []Strategy{StrategyAdaptive, StrategyTernary, StrategyDense} {
		res, err := Estimate(squareTable, s, false)
		require.NoError(t, err)
		assert.InDelta(t, squarePhi, res.PhiDeg, 0.1, "strategy %s", s)
	}

	// Without resolution phi is only meaningful modulo 180
	cfg := DefaultEstimatorConfig()
	cfg.ResolveHalfTurn = false
	raw, err := NewEstimator(cfg).Estimate(squareTable, StrategyAdaptive, false)
	require.NoError(t, err)
	assertPhiNear(t, squarePhi, raw.PhiDeg, 0.01)
}

func TestEstimate_RANSACResolvesOnInliers(t *testing.T) {
	res, err := NewEstimator(testRANSACConfig()).Estimate(outlierTable(), StrategyRANSAC, false)
	require.NoError(t, err)

	assert.InDelta(t, squarePhi, res.PhiDeg, 0.5)
	assert.Less(t, res.Residual, 1.0)
	assert.Nil(t, res.Inliers)
}

func TestEstimate_DegenerateInputNeverFails(t *testing.T) {
	// Collinear landmarks with parallel azimuths
	collinear := []Observation{
		{X: 0, Y: 0, AzimuthDeg: 45},
		{X: 10, Y: 10, AzimuthDeg: 45},
		{X: 20, Y: 20, AzimuthDeg: 45},
	}
	for _, s := range Strategies {
		res, err := Estimate(collinear, s, true)
		require.NoError(t, err, "strategy %s", s)
		assert.GreaterOrEqual(t, res.PhiDeg, 0.0)
		assert.Less(t, res.PhiDeg, 360.0)
	}

	for _, s := range Strategies {
		_, err := Estimate(nil, s, true)
		assert.NoError(t, err, "strategy %s", s)
	}
}

func TestNewEstimator_FillsDefaults(t *testing.T) {
	est := NewEstimator(EstimatorConfig{InlierThreshold: 5, Seed: 9})
	def := DefaultEstimatorConfig()

	assert.Equal(t, 5.0, est.Config.InlierThreshold)
	assert.Equal(t, int64(9), est.Config.Seed)
	assert.Equal(t, def.RANSACIterations, est.Config.RANSACIterations)
	assert.Equal(t, def.MultiStartSeeds, est.Config.MultiStartSeeds)
	assert.Equal(t, def.RefitStrategy, est.Config.RefitStrategy)
	assert.Equal(t, 1, est.Config.Workers)
	// Zero value of a bool is kept
	assert.False(t, est.Config.ResolveHalfTurn)
}
