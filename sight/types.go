package sight

import (
	"errors"
	"fmt"
	"strings"
)

// Point represents a 2D coordinate in the survey's planar CRS
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Observation couples a landmark's known position with the azimuth engraved
// on the table pointing toward it. Name is for display only.
type Observation struct {
	Name       string  `json:"name,omitempty" yaml:"name,omitempty"`
	X          float64 `json:"x" yaml:"x"`
	Y          float64 `json:"y" yaml:"y"`
	AzimuthDeg float64 `json:"azimuthDeg" yaml:"azimuthDeg"`
}

// Position returns the landmark coordinates
func (o Observation) Position() Point {
	return Point{X: o.X, Y: o.Y}
}

// Line is a sight line through Point along Direction.
// Direction need not be unit length.
type Line struct {
	Point     Point
	Direction Point
}

// Model is a fitted table pose. Residual is the mean perpendicular distance
// from Origin to every sight line built with PhiDeg; lower is better.
type Model struct {
	Origin   Point   `json:"origin"`
	PhiDeg   float64 `json:"phiDeg"`
	Residual float64 `json:"residual"`
}

// Result is the output of Estimate. Inliers holds original observation
// indices in ascending order and is nil unless requested.
type Result struct {
	Model
	Strategy Strategy `json:"strategy"`
	Inliers  []int    `json:"inliers,omitempty"`
}

// Strategy names a search method over the rotation phi
type Strategy string

const (
	StrategyRANSAC     Strategy = "ransac"
	StrategyAdaptive   Strategy = "adaptive"
	StrategyTernary    Strategy = "ternary"
	StrategyGradient   Strategy = "gradient"
	StrategyMultiStart Strategy = "multi-start"
	StrategyDense      Strategy = "dense"
	StrategyLegacy     Strategy = "legacy"
)

// DefaultStrategy is used when no strategy name is given
const DefaultStrategy = StrategyRANSAC

// Strategies lists every supported strategy in documentation order
var Strategies = []Strategy{
	StrategyRANSAC,
	StrategyAdaptive,
	StrategyTernary,
	StrategyGradient,
	StrategyMultiStart,
	StrategyDense,
	StrategyLegacy,
}

var (
	// ErrUnknownStrategy is returned for a strategy name outside Strategies
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrNoObservations is returned by service surfaces for empty input
	ErrNoObservations = errors.New("no observations")
)

// ParseStrategy resolves a strategy name. The empty string selects
// DefaultStrategy; anything else must match exactly (case-insensitive).
func ParseStrategy(name string) (Strategy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultStrategy, nil
	}
	for _, s := range Strategies {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// Valid reports whether s is one of Strategies
func (s Strategy) Valid() bool {
	for _, known := range Strategies {
		if s == known {
			return true
		}
	}
	return false
}
