package crosssection

import (
	"fmt"
	"sync"

	"github.com/twpayne/go-proj/v10"
)

// A CRSTransformer converts coordinates in another coordinate reference
// system to GeoPoints.
type CRSTransformer struct {
	mutex sync.Mutex
	crs   string
	pj    *proj.PJ
}

// NewCRSTransformer returns a new CRSTransformer from crs, which can be any
// definition understood by PROJ, e.g. epsg:6677.
func NewCRSTransformer(crs string) (*CRSTransformer, error) {
	pj, err := proj.NewCRSToCRS(crs, "epsg:4326", nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", crs, err)
	}
	return &CRSTransformer{
		crs: crs,
		pj:  pj,
	}, nil
}

// GeoPoints converts coords, given in the axis order of t's CRS, to GeoPoints.
func (t *CRSTransformer) GeoPoints(coords [][]float64) ([]GeoPoint, error) {
	for i, coord := range coords {
		if len(coord) < 2 {
			return nil, fmt.Errorf("%w: coordinate %d has %d values", ErrInvalidCoordinate, i, len(coord))
		}
	}

	// EPSG:4326 coordinates are in latitude, longitude order.
	coords4326 := cloneCoords(coords)
	t.mutex.Lock()
	err := t.pj.ForwardFloat64Slices(coords4326)
	t.mutex.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.crs, err)
	}

	geoPoints := make([]GeoPoint, len(coords4326))
	for i, coord := range coords4326 {
		geoPoints[i] = GeoPoint{
			Latitude:  coord[0],
			Longitude: coord[1],
		}
		if err := geoPoints[i].Validate(); err != nil {
			return nil, err
		}
	}
	return geoPoints, nil
}

// GeoPoint converts a single coordinate to a GeoPoint.
func (t *CRSTransformer) GeoPoint(x, y float64) (GeoPoint, error) {
	geoPoints, err := t.GeoPoints([][]float64{{x, y}})
	if err != nil {
		return GeoPoint{}, err
	}
	return geoPoints[0], nil
}

// cloneCoords returns a deep copy of the first two values of each coordinate
// in coords, backed by a single slice.
func cloneCoords(coords [][]float64) [][]float64 {
	clonedCoordsFlat := make([]float64, 2*len(coords))
	clonedCoords := make([][]float64, len(coords))
	for i, coord := range coords {
		copy(clonedCoordsFlat[2*i:2*i+2], coord[:2])
		clonedCoords[i] = clonedCoordsFlat[2*i : 2*i+2]
	}
	return clonedCoords
}
