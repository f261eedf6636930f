package crosssection

import "math"

// TileSize is the edge length of a tile in pixels.
const TileSize = 256

// worldRadius is the number of pixels per radian at zoom level zero.
const worldRadius = TileSize / (2 * math.Pi)

// A Projection is a GeoPoint projected at a zoom level.
type Projection struct {
	Pixel  PixelCoordinate
	Tile   TileAddress
	LocalX int
	LocalY int
}

// Project projects point into the Web Mercator pixel space at zoom.
func Project(point GeoPoint, zoom int) (Projection, error) {
	if err := point.Validate(); err != nil {
		return Projection{}, err
	}
	scale := math.Exp2(float64(zoom))
	lon := point.Longitude * math.Pi / 180
	lat := point.Latitude * math.Pi / 180
	pixel := PixelCoordinate{
		X: (worldRadius*lon + worldRadius*math.Pi) * scale,
		Y: (-worldRadius*math.Log(math.Tan(math.Pi/4+lat/2)) + TileSize/2) * scale,
	}
	if math.IsInf(pixel.Y, 0) || math.IsNaN(pixel.Y) {
		return Projection{}, ErrInvalidCoordinate
	}
	return pixel.Projection(zoom), nil
}

// Projection returns the tile and the offset within the tile containing p.
func (p PixelCoordinate) Projection(zoom int) Projection {
	tileX := math.Floor(p.X / TileSize)
	tileY := math.Floor(p.Y / TileSize)
	return Projection{
		Pixel: p,
		Tile: TileAddress{
			Zoom: zoom,
			X:    int(tileX),
			Y:    int(tileY),
		},
		LocalX: localPixel(p.X - tileX*TileSize),
		LocalY: localPixel(p.Y - tileY*TileSize),
	}
}

// localPixel floors offset, clamping rounding errors at tile edges.
func localPixel(offset float64) int {
	return min(max(int(math.Floor(offset)), 0), TileSize-1)
}

// Unproject returns the GeoPoint at pixel at zoom. It is the inverse of
// Project.
func Unproject(pixel PixelCoordinate, zoom int) GeoPoint {
	scale := math.Exp2(float64(zoom))
	x := pixel.X / scale
	y := pixel.Y / scale
	lon := (x - worldRadius*math.Pi) / worldRadius
	lat := 2*math.Atan(math.Exp(-(y-TileSize/2)/worldRadius)) - math.Pi/2
	return GeoPoint{
		Latitude:  lat * 180 / math.Pi,
		Longitude: lon * 180 / math.Pi,
	}
}

// pixelDistance returns the Euclidean distance between p and q.
func pixelDistance(p, q PixelCoordinate) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}
