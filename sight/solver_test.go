package sight

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestLeastSquaresOrigin_Empty(t *testing.T) {
	assert.Equal(t, Point{}, LeastSquaresOrigin(nil))
}

func TestLeastSquaresOrigin_SingleLine(t *testing.T) {
	line := Line{Point: Point{X: 3, Y: -2}, Direction: Point{X: 2, Y: 1}}
	got := LeastSquaresOrigin([]Line{line})

	// Any point of the line is a minimizer; the result must lie on it
	assert.InDelta(t, 0.0, DistancePointToLine(got, line.Point, line.Direction), 1e-9)
}

func TestLeastSquaresOrigin_PerpendicularMatchesIntersection(t *testing.T) {
	a := Line{Point: Point{X: -4, Y: 7}, Direction: Point{X: 3, Y: 0}}
	b := Line{Point: Point{X: 11, Y: -2}, Direction: Point{X: 0, Y: -5}}

	want, ok := IntersectLines(a.Point, a.Direction, b.Point, b.Direction)
	require.True(t, ok)
	assertPointNear(t, want, LeastSquaresOrigin([]Line{a, b}), 1e-9)
	assertPointNear(t, Point{X: 11, Y: 7}, want, 1e-9)
}

func TestLeastSquaresOrigin_ParallelFallsBackToCentroid(t *testing.T) {
	// Collinear landmarks with parallel azimuths
	lines := []Line{
		{Point: Point{X: 0, Y: 0}, Direction: Point{X: 1, Y: 1}},
		{Point: Point{X: 10, Y: 10}, Direction: Point{X: 2, Y: 2}},
		{Point: Point{X: 20, Y: 20}, Direction: Point{X: -1, Y: -1}},
	}
	assertPointNear(t, Point{X: 10, Y: 10}, LeastSquaresOrigin(lines), 1e-9)
}

func TestLeastSquaresOrigin_ZeroDirectionsIgnored(t *testing.T) {
	a := Line{Point: Point{X: 0, Y: 2}, Direction: Point{X: 1, Y: 0}}
	b := Line{Point: Point{X: 5, Y: 0}, Direction: Point{X: 0, Y: 1}}
	junk := Line{Point: Point{X: 1000, Y: -1000}, Direction: Point{}}

	assertPointNear(t, Point{X: 5, Y: 2}, LeastSquaresOrigin([]Line{a, junk, b}), 1e-9)

	// Nothing usable at all: det is zero, centroid of every line point
	got := LeastSquaresOrigin([]Line{junk, {Point: Point{X: 0, Y: 0}}})
	assertPointNear(t, Point{X: 500, Y: -500}, got, 1e-9)
}

// The closed form must agree with a generic QR least-squares solve of the
// stacked normal-form rows
func TestLeastSquaresOrigin_MatchesQRSolve(t *testing.T) {
	lines := []Line{
		{Point: Point{X: 10, Y: 0}, Direction: DirectionFromAngle(100)},
		{Point: Point{X: 0, Y: 12}, Direction: DirectionFromAngle(-15)},
		{Point: Point{X: -8, Y: -3}, Direction: DirectionFromAngle(40)},
		{Point: Point{X: 5, Y: -9}, Direction: Point{X: -3, Y: 7}},
		{Point: Point{X: 2, Y: 2}, Direction: Point{X: 0.2, Y: 0.1}},
	}

	a := mat.NewDense(len(lines), 2, nil)
	b := mat.NewVecDense(len(lines), nil)
	for i, l := range lines {
		norm := math.Hypot(l.Direction.X, l.Direction.Y)
		dx, dy := l.Direction.X/norm, l.Direction.Y/norm
		a.Set(i, 0, dy)
		a.Set(i, 1, -dx)
		b.SetVec(i, dy*l.Point.X-dx*l.Point.Y)
	}
	var x mat.VecDense
	require.NoError(t, x.SolveVec(a, b))

	assertPointNear(t, Point{X: x.AtVec(0), Y: x.AtVec(1)}, LeastSquaresOrigin(lines), 1e-9)
}
