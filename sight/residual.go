package sight

import "math"

// BackBearing is the azimuth from a landmark back toward the table
// for an engraved azimuth and table rotation phi, normalized to [0, 360).
func BackBearing(azimuthDeg, phiDeg float64) float64 {
	return NormalizeAngle(azimuthDeg + phiDeg + 180.0)
}

// BuildLines returns one sight line per observation for rotation phi,
// in observation order.
func BuildLines(phiDeg float64, observations []Observation) []Line {
	lines := make([]Line, len(observations))
	for i, obs := range observations {
		lines[i] = Line{
			Point:     obs.Position(),
			Direction: DirectionFromAngle(BackBearing(obs.AzimuthDeg, phiDeg)),
		}
	}
	return lines
}

// EvaluatePhi fits the origin for rotation phi and returns it with the mean
// perpendicular distance to all sight lines. With no observations the
// residual is +Inf.
func EvaluatePhi(phiDeg float64, observations []Observation) (Point, float64) {
	lines := BuildLines(phiDeg, observations)
	origin := LeastSquaresOrigin(lines)
	return origin, meanDistance(origin, lines)
}

// evaluate wraps EvaluatePhi into a Model with phi normalized
func evaluate(phiDeg float64, observations []Observation) Model {
	phiDeg = NormalizeAngle(phiDeg)
	origin, residual := EvaluatePhi(phiDeg, observations)
	return Model{Origin: origin, PhiDeg: phiDeg, Residual: residual}
}

func meanDistance(origin Point, lines []Line) float64 {
	if len(lines) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for _, l := range lines {
		sum += DistancePointToLine(origin, l.Point, l.Direction)
	}
	return sum / float64(len(lines))
}

// LineDistances returns the perpendicular distance from the model origin to
// each observation's sight line, indexed like observations.
func LineDistances(m Model, observations []Observation) []float64 {
	lines := BuildLines(m.PhiDeg, observations)
	dists := make([]float64, len(lines))
	for i, l := range lines {
		dists[i] = DistancePointToLine(m.Origin, l.Point, l.Direction)
	}
	return dists
}

// ResolveHalfTurn picks between phi and phi+180 the rotation under which most
// landmarks lie in front of the origin along their engraved azimuth. Both
// rotations produce the same sight lines, so the origin is kept and only the
// residual is recomputed at the reported phi.
func ResolveHalfTurn(m Model, observations []Observation) Model {
	if len(observations) == 0 {
		return m
	}
	var ahead, behind int
	for _, obs := range observations {
		dir := DirectionFromAngle(obs.AzimuthDeg + m.PhiDeg)
		dot := (obs.X-m.Origin.X)*dir.X + (obs.Y-m.Origin.Y)*dir.Y
		switch {
		case dot > 0:
			ahead++
		case dot < 0:
			behind++
		}
	}
	if behind <= ahead {
		return m
	}
	flipped := NormalizeAngle(m.PhiDeg + 180)
	lines := BuildLines(flipped, observations)
	return Model{Origin: m.Origin, PhiDeg: flipped, Residual: meanDistance(m.Origin, lines)}
}
