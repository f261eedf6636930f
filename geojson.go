package crosssection

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection returns p as a GeoJSON FeatureCollection. The first
// feature is the path of the profile. It is followed by one point feature per
// sample with distance, elevation, and source properties. Missing elevations
// are null.
func (p *Profile) FeatureCollection() *geojson.FeatureCollection {
	lineString := make(orb.LineString, 0, len(p.Points))
	for _, point := range p.Points {
		lineString = append(lineString, point.Point.orbPoint())
	}
	path := geojson.NewFeature(lineString)
	path.Properties["zoom"] = p.Zoom
	path.Properties["distance"] = p.Distance
	path.Properties["min"] = nullableProperty(p.Min)
	path.Properties["max"] = nullableProperty(p.Max)
	path.Properties["ascent"] = p.Ascent
	path.Properties["descent"] = p.Descent

	featureCollection := geojson.NewFeatureCollection().Append(path)
	for _, point := range p.Points {
		feature := geojson.NewFeature(point.Point.orbPoint())
		feature.Properties["distance"] = point.Distance
		feature.Properties["elevation"] = nullableProperty(point.Elevation)
		if point.Source != "" {
			feature.Properties["source"] = point.Source
		}
		featureCollection.Append(feature)
	}
	return featureCollection
}

func (p GeoPoint) orbPoint() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

func nullableProperty(value float64) any {
	if math.IsNaN(value) {
		return nil
	}
	return value
}
