package sight

import "math"

// degenerateEpsilon guards near-parallel directions, zero-length directions
// and near-singular normal systems
const degenerateEpsilon = 1e-12

// NormalizeAngle normalizes an angle in degrees to the range [0, 360).
func NormalizeAngle(degrees float64) float64 {
	degrees = math.Mod(degrees, 360)
	if degrees < 0 {
		degrees += 360
	}
	// -1e-15 + 360 rounds to 360
	if degrees >= 360 {
		degrees -= 360
	}
	return degrees
}

// AngleDiff returns the shortest signed difference a-b in degrees, in [-180, 180)
func AngleDiff(a, b float64) float64 {
	d := NormalizeAngle(a - b)
	if d >= 180 {
		d -= 360
	}
	return d
}

// DirectionFromAngle converts an angle in degrees to the unit vector (cos, sin).
// Every azimuth in the package becomes a vector through this function.
func DirectionFromAngle(degrees float64) Point {
	r := degrees * math.Pi / 180.0
	return Point{X: math.Cos(r), Y: math.Sin(r)}
}

// Cross2 returns the z component of the 2D cross product a x b
func Cross2(ax, ay, bx, by float64) float64 {
	return ax*by - ay*bx
}

// IntersectLines solves p1 + t*d1 = p2 + u*d2.
// Returns false when the lines are near-parallel.
func IntersectLines(p1, d1, p2, d2 Point) (Point, bool) {
	denom := Cross2(d1.X, d1.Y, d2.X, d2.Y)
	if math.Abs(denom) < degenerateEpsilon {
		return Point{}, false
	}
	dx := p2.X - p1.X
	dy := p2.Y - p1.Y
	t := Cross2(dx, dy, d2.X, d2.Y) / denom
	return Point{X: p1.X + t*d1.X, Y: p1.Y + t*d1.Y}, true
}

// DistancePointToLine returns the perpendicular distance from p to the line
// through q with direction d. d must not be near zero length.
func DistancePointToLine(p, q, d Point) float64 {
	num := math.Abs(Cross2(d.X, d.Y, p.X-q.X, p.Y-q.Y))
	return num / math.Hypot(d.X, d.Y)
}

// Distance calculates Euclidean distance between two points
func Distance(p1, p2 Point) float64 {
	return math.Hypot(p2.X-p1.X, p2.Y-p1.Y)
}

// Centroid calculates the center of mass of a set of points
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}
	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	return Point{X: sumX / n, Y: sumY / n}
}

// ProjectPoint moves distance units from p along the angle in degrees
func ProjectPoint(p Point, degrees, distance float64) Point {
	d := DirectionFromAngle(degrees)
	return Point{X: p.X + d.X*distance, Y: p.Y + d.Y*distance}
}
