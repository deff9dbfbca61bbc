package sight

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// synthesize builds exact observations of landmarks seen from origin by a
// table rotated by phi
func synthesize(origin Point, phi float64, landmarks ...Point) []Observation {
	obs := make([]Observation, len(landmarks))
	for i, l := range landmarks {
		theta := math.Atan2(l.Y-origin.Y, l.X-origin.X) * 180 / math.Pi
		obs[i] = Observation{X: l.X, Y: l.Y, AzimuthDeg: NormalizeAngle(theta - phi)}
	}
	return obs
}

// displace moves an observed landmark sideways off its true sight line
// while keeping its azimuth
func displace(o Observation, phi, offset float64) Observation {
	d := DirectionFromAngle(o.AzimuthDeg + phi)
	o.X -= d.Y * offset
	o.Y += d.X * offset
	return o
}

var (
	squareOrigin = Point{X: 50, Y: 30}
	squarePhi    = 37.25
	squareTable  = synthesize(squareOrigin, squarePhi,
		Point{X: 150, Y: 30}, Point{X: 50, Y: 130}, Point{X: -50, Y: 30}, Point{X: 120, Y: -40})

	surveyOrigin = Point{X: 1000, Y: 2000}
	surveyPhi    = 123.4
	surveyTable  = synthesize(surveyOrigin, surveyPhi,
		Point{X: 1100, Y: 2050}, Point{X: 950, Y: 2120}, Point{X: 880, Y: 1930},
		Point{X: 1040, Y: 1890}, Point{X: 1200, Y: 2000})
)

// outlierTable is five exact observations plus one landmark misplaced by
// 500 units, small enough that a 10 unit inlier threshold separates them
func outlierTable() []Observation {
	obs := synthesize(squareOrigin, squarePhi,
		Point{X: 150, Y: 30}, Point{X: 50, Y: 130}, Point{X: -50, Y: 30},
		Point{X: 120, Y: -40}, Point{X: -20, Y: -60}, Point{X: 130, Y: 110})
	obs[5] = displace(obs[5], squarePhi, 500)
	return obs
}

// twoBasinTable mixes two triples consistent with different rotations, so
// the residual has several local minima over phi
func twoBasinTable() []Observation {
	a := synthesize(Point{}, 160, Point{X: 100, Y: 0}, Point{X: 0, Y: 100}, Point{X: -100, Y: 20})
	b := synthesize(Point{}, 80, Point{X: 80, Y: -60}, Point{X: -60, Y: -80}, Point{X: 40, Y: 90})
	return append(a, b...)
}

// assertPhiNear compares rotations modulo 180, the period of the residual
func assertPhiNear(t *testing.T, want, got, tolerance float64, msgAndArgs ...interface{}) {
	t.Helper()
	d := math.Abs(AngleDiff(got, want))
	if d > 90 {
		d = 180 - d
	}
	assert.LessOrEqual(t, d, tolerance, msgAndArgs...)
}

func assertPointNear(t *testing.T, want, got Point, tolerance float64, msgAndArgs ...interface{}) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, tolerance, msgAndArgs...)
	assert.InDelta(t, want.Y, got.Y, tolerance, msgAndArgs...)
}
