package crosssection

const (
	// DefaultMaxZoom is the highest zoom level considered when selecting a
	// zoom level for a profile.
	DefaultMaxZoom = 15

	// DefaultMinPixelDistance is the pixel distance that the endpoints of a
	// profile must exceed at the selected zoom level.
	DefaultMinPixelDistance = 128
)

// A ZoomSelection is the zoom level chosen for a profile and the projections
// of its endpoints at that zoom level.
type ZoomSelection struct {
	Zoom int
	A    Projection
	B    Projection
}

// SelectZoom returns the smallest zoom level in [0, DefaultMaxZoom] at which a
// and b are more than DefaultMinPixelDistance pixels apart. If there is no
// such zoom level then DefaultMaxZoom is used.
func SelectZoom(a, b GeoPoint) (ZoomSelection, error) {
	return selectZoom(a, b, DefaultMaxZoom, DefaultMinPixelDistance)
}

func selectZoom(a, b GeoPoint, maxZoom int, minPixelDistance float64) (ZoomSelection, error) {
	if err := a.Validate(); err != nil {
		return ZoomSelection{}, err
	}
	if err := b.Validate(); err != nil {
		return ZoomSelection{}, err
	}
	maxZoom = clampZoom(maxZoom)

	var selection ZoomSelection
	for zoom := 0; zoom <= maxZoom; zoom++ {
		projectionA, err := Project(a, zoom)
		if err != nil {
			return ZoomSelection{}, err
		}
		projectionB, err := Project(b, zoom)
		if err != nil {
			return ZoomSelection{}, err
		}
		selection = ZoomSelection{
			Zoom: zoom,
			A:    projectionA,
			B:    projectionB,
		}
		if pixelDistance(projectionA.Pixel, projectionB.Pixel) > minPixelDistance {
			return selection, nil
		}
	}
	// Very short segments fall back to the maximum zoom level.
	return selection, nil
}

func clampZoom(zoom int) int {
	return min(max(zoom, 0), MaxTileZoom)
}
