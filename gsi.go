package crosssection

import "slices"

// GSIURLTemplate is the URL template of the Geospatial Information Authority
// of Japan elevation tiles.
const GSIURLTemplate = "https://cyberjapandata.gsi.go.jp/xyz/{source}/{z}/{x}/{y}.{ext}"

// GSIPrecisionSources are the Geospatial Information Authority of Japan DEM
// tile datasets, highest resolution first.
var GSIPrecisionSources = []PrecisionSource{
	{ID: "dem5a_png", Ext: "png", Description: "DEM5A airborne laser survey, 5m"},
	{ID: "dem5b_png", Ext: "png", Description: "DEM5B photogrammetry, 5m"},
	{ID: "dem5c_png", Ext: "png", Description: "DEM5C photogrammetry, 5m"},
	{ID: "dem_png", Ext: "png", Description: "DEM10B 1:25000 contours, 10m"},
	{ID: "demgm_png", Ext: "png", Description: "Global map, 1km"},
}

// NewGSITileSource returns a caching HTTP tile source for the Geospatial
// Information Authority of Japan elevation tiles.
func NewGSITileSource(options ...HTTPTileSourceOption) (*CachingTileSource, error) {
	httpTileSource, err := NewHTTPTileSource(GSIURLTemplate, options...)
	if err != nil {
		return nil, err
	}
	return NewCachingTileSource(httpTileSource)
}

// NewGSIProfiler returns a Profiler over the Geospatial Information Authority
// of Japan elevation tiles.
func NewGSIProfiler(options ...ProfilerOption) (*Profiler, error) {
	tileSource, err := NewGSITileSource()
	if err != nil {
		return nil, err
	}
	return NewProfiler(tileSource, slices.Concat(
		[]ProfilerOption{
			WithPrecisionSources(GSIPrecisionSources),
		},
		options,
	)...), nil
}
