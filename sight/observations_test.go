package sight

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadObservations_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roof.yaml")
	body := `table: roof
observations:
  - name: church
    x: 150
    y: 30
    azimuthDeg: 322.75
  - x: 50
    y: 130
    azimuthDeg: 52.75
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	set, err := LoadObservations(path)
	require.NoError(t, err)
	assert.Equal(t, "roof", set.Table)
	assert.Equal(t, []Observation{
		{Name: "church", X: 150, Y: 30, AzimuthDeg: 322.75},
		{X: 50, Y: 130, AzimuthDeg: 52.75},
	}, set.Observations)
}

func TestLoadObservations_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roof.json")
	body := `{"observations":[{"x":1,"y":2,"azimuthDeg":3},{"x":4,"y":5,"azimuthDeg":6.5}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	set, err := LoadObservations(path)
	require.NoError(t, err)
	assert.Len(t, set.Observations, 2)
	assert.Equal(t, 6.5, set.Observations[1].AzimuthDeg)
}

func TestLoadObservations_Errors(t *testing.T) {
	_, err := LoadObservations(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = ParseObservations([]byte("observations: []\n"))
	assert.ErrorIs(t, err, ErrNoObservations)

	_, err = ParseObservations([]byte("observations: [\n"))
	assert.ErrorContains(t, err, "parsing observations")
}

func TestParseEstimateRequest(t *testing.T) {
	req, err := ParseEstimateRequest([]byte(`{"strategy":"Adaptive","includeInliers":true,"observations":[{"x":1,"y":2,"azimuthDeg":30}]}`))
	require.NoError(t, err)
	assert.Equal(t, StrategyAdaptive, req.Strategy)
	assert.True(t, req.IncludeInliers)
	assert.Len(t, req.Observations, 1)

	req, err = ParseEstimateRequest([]byte(`{"observations":[{"x":1,"y":2,"azimuthDeg":30}]}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultStrategy, req.Strategy)
	assert.False(t, req.IncludeInliers)
}

func TestParseEstimateRequest_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		is   error
	}{
		{"unknown strategy", `{"strategy":"brute","observations":[{"x":1,"y":2,"azimuthDeg":3}]}`, ErrUnknownStrategy},
		{"no observations", `{"strategy":"ransac"}`, ErrNoObservations},
		{"empty observations", `{"observations":[]}`, ErrNoObservations},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEstimateRequest([]byte(tt.body))
			assert.ErrorIs(t, err, tt.is)
		})
	}

	_, err := ParseEstimateRequest([]byte("not json"))
	assert.ErrorContains(t, err, "decoding estimate request")
}
