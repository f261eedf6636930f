// Package crosssection computes elevation cross-sections between two points
// from slippy-tiled elevation rasters.
package crosssection

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidCoordinate is returned for coordinates that cannot be
	// projected.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrSuperseded is returned by a LatestBuilder for builds that were
	// replaced by a newer build.
	ErrSuperseded = errors.New("superseded")
)

// A GeoPoint is a geographic position in degrees.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate returns an error if p cannot be projected.
func (p GeoPoint) Validate() error {
	switch {
	case math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0):
		return fmt.Errorf("%w: latitude %v", ErrInvalidCoordinate, p.Latitude)
	case math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0):
		return fmt.Errorf("%w: longitude %v", ErrInvalidCoordinate, p.Longitude)
	case p.Latitude <= -90 || 90 <= p.Latitude:
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinate, p.Latitude)
	default:
		return nil
	}
}

// A PixelCoordinate is a continuous position in the world raster at a zoom
// level.
type PixelCoordinate struct {
	X float64
	Y float64
}

// A TileAddress identifies a tile in the slippy tile grid.
type TileAddress struct {
	Zoom int
	X    int
	Y    int
}

// MaxTileZoom is the highest zoom level of the tile grid.
const MaxTileZoom = 30

// Valid returns whether a exists in the tile grid.
func (a TileAddress) Valid() bool {
	if a.Zoom < 0 || MaxTileZoom < a.Zoom {
		return false
	}
	n := 1 << a.Zoom
	return 0 <= a.X && a.X < n && 0 <= a.Y && a.Y < n
}

func (a TileAddress) String() string {
	return fmt.Sprintf("%d/%d/%d", a.Zoom, a.X, a.Y)
}

// A PrecisionSource is an elevation dataset. Profiles try precision sources in
// order, so lists of them should be ordered from highest to lowest resolution.
type PrecisionSource struct {
	ID          string // Path component of the dataset, e.g. dem5a_png.
	Ext         string // Tile filename extension, e.g. png.
	Description string
}
