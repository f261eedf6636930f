package crosssection

import "math"

// EarthRadius is the mean radius of the Earth in meters.
const EarthRadius = 6371e3

// GreatCircleDistance returns the distance in meters between a and b on a
// sphere of radius EarthRadius, using the spherical law of cosines.
func GreatCircleDistance(a, b GeoPoint) float64 {
	// The law of cosines loses precision for coincident points.
	if a == b {
		return 0
	}
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	deltaLon := (b.Longitude - a.Longitude) * math.Pi / 180
	cos := math.Sin(lat1)*math.Sin(lat2) + math.Cos(lat1)*math.Cos(lat2)*math.Cos(deltaLon)
	// Rounding can push cos slightly outside [-1, 1] for nearby points.
	return EarthRadius * math.Acos(min(max(cos, -1), 1))
}
