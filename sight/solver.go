package sight

import "math"

// LeastSquaresOrigin returns the point minimizing the sum of squared
// perpendicular distances to every line.
//
// Each line contributes its normal-form equation dy*x - dx*y = dy*qx - dx*qy
// (direction normalized first) as one row of an overdetermined system; the
// 2x2 normal equations are accumulated in a single pass and solved with
// Cramer's rule.
//
// Edge cases are absorbed, never returned as errors:
//   - no lines: (0, 0)
//   - directions shorter than 1e-12 contribute nothing
//   - |det| < 1e-12 (all lines parallel): centroid of the line points
func LeastSquaresOrigin(lines []Line) Point {
	if len(lines) == 0 {
		return Point{}
	}

	var a11, a12, a22 float64
	var b1, b2 float64

	for _, l := range lines {
		norm := math.Hypot(l.Direction.X, l.Direction.Y)
		if norm < degenerateEpsilon {
			continue
		}
		dx := l.Direction.X / norm
		dy := l.Direction.Y / norm

		a11 += dy * dy
		a12 -= dy * dx
		a22 += dx * dx

		rhs := dy*l.Point.X - dx*l.Point.Y
		b1 += dy * rhs
		b2 -= dx * rhs
	}

	det := a11*a22 - a12*a12
	if math.Abs(det) < degenerateEpsilon {
		points := make([]Point, len(lines))
		for i, l := range lines {
			points[i] = l.Point
		}
		return Centroid(points)
	}

	return Point{
		X: (a22*b1 - a12*b2) / det,
		Y: (a11*b2 - a12*b1) / det,
	}
}
