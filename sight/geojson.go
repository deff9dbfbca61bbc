package sight

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// sightLineOvershoot extends default sight lines past the landmark
const sightLineOvershoot = 1.1

// FeatureCollection renders an estimate as GeoJSON in the observations' CRS:
// the table origin, one point per landmark, and one sight line per landmark
// drawn from the landmark along its back-bearing. lineLength <= 0 draws each
// line to sightLineOvershoot times the landmark's distance from the origin.
func FeatureCollection(observations []Observation, result Result, lineLength float64) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	origin := orb.Point{result.Origin.X, result.Origin.Y}
	of := geojson.NewFeature(origin)
	of.Properties["layerType"] = "origin"
	of.Properties["strategy"] = string(result.Strategy)
	of.Properties["phiDeg"] = result.PhiDeg
	of.Properties["residual"] = finiteOrNil(result.Residual)
	fc.Append(of)

	inlier := inlierSet(result.Inliers, len(observations))
	distances := LineDistances(result.Model, observations)

	bound := orb.MultiPoint{origin}
	for i, o := range observations {
		landmark := orb.Point{o.X, o.Y}
		bound = append(bound, landmark)

		pf := geojson.NewFeature(landmark)
		pf.Properties["layerType"] = "landmark"
		pf.Properties["index"] = i
		if o.Name != "" {
			pf.Properties["name"] = o.Name
		}
		pf.Properties["azimuthDeg"] = o.AzimuthDeg
		pf.Properties["inlier"] = inlier[i]
		pf.Properties["lineDistance"] = distances[i]
		pf.Properties["range"] = planar.Distance(origin, landmark)
		fc.Append(pf)

		length := lineLength
		if length <= 0 {
			length = sightLineOvershoot * planar.Distance(origin, landmark)
		}
		end := ProjectPoint(o.Position(), BackBearing(o.AzimuthDeg, result.PhiDeg), length)

		lf := geojson.NewFeature(orb.LineString{landmark, {end.X, end.Y}})
		lf.Properties["layerType"] = "sightLine"
		lf.Properties["index"] = i
		lf.Properties["inlier"] = inlier[i]
		fc.Append(lf)
	}

	fc.BBox = geojson.NewBBox(bound.Bound())
	return fc
}

// inlierSet marks the given indices; a nil slice marks every observation
func inlierSet(inliers []int, n int) []bool {
	set := make([]bool, n)
	if inliers == nil {
		for i := range set {
			set[i] = true
		}
		return set
	}
	for _, idx := range inliers {
		if idx >= 0 && idx < n {
			set[idx] = true
		}
	}
	return set
}

// finiteOrNil keeps +Inf out of the JSON encoder
func finiteOrNil(v float64) interface{} {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return v
}
