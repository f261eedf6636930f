package crosssection

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func TestProfileFeatureCollection(t *testing.T) {
	profile := &Profile{
		Zoom:     15,
		Distance: 537,
		Points: []ProfilePoint{
			{Distance: 0, Elevation: 3700, Point: testFujiA, Source: "dem5a_png"},
			{Distance: 268.5, Elevation: math.NaN(), Point: GeoPoint{Latitude: 35.36285, Longitude: 138.72865}},
			{Distance: 537, Elevation: 3650.5, Point: testFujiB, Source: "dem_png"},
		},
	}
	profile.summarize()

	featureCollection := profile.FeatureCollection()
	assert.Equal(t, 4, len(featureCollection.Features))

	path := featureCollection.Features[0]
	assert.Equal(t, orb.Geometry(orb.LineString{
		{138.7273, 35.3607},
		{138.72865, 35.36285},
		{138.73, 35.365},
	}), path.Geometry)
	assert.Equal(t, 15, path.Properties.MustInt("zoom"))
	assert.Equal(t, 3650.5, path.Properties.MustFloat64("min"))
	assert.Equal(t, 3700.0, path.Properties.MustFloat64("max"))
	assert.Equal(t, 49.5, path.Properties.MustFloat64("descent"))

	first := featureCollection.Features[1]
	assert.Equal(t, orb.Geometry(orb.Point{138.7273, 35.3607}), first.Geometry)
	assert.Equal(t, 3700.0, first.Properties.MustFloat64("elevation"))
	assert.Equal(t, "dem5a_png", first.Properties.MustString("source"))

	missing := featureCollection.Features[2]
	assert.Equal(t, nil, missing.Properties["elevation"])
	_, ok := missing.Properties["source"]
	assert.False(t, ok)

	// NaN elevations must not prevent encoding.
	data, err := json.Marshal(featureCollection)
	assert.NoError(t, err)
	actual, err := geojson.UnmarshalFeatureCollection(data)
	assert.NoError(t, err)
	assert.Equal(t, 4, len(actual.Features))
	assert.Equal(t, nil, actual.Features[2].Properties["elevation"])
	assert.Equal(t, 537.0, actual.Features[3].Properties.MustFloat64("distance"))
}
