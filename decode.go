package crosssection

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"math"

	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrInvalidTile is returned when tile data cannot be decoded.
var ErrInvalidTile = errors.New("invalid tile")

const (
	elevationResolution = 0.01
	noDataValue         = 1 << 23
)

// A DecodedTile holds the elevations of a tile, one per pixel, with NaN for
// pixels without data.
type DecodedTile struct {
	elevations []float64
}

// Elevation returns the elevation at the local pixel x, y, or NaN if there is
// no data.
func (t *DecodedTile) Elevation(x, y int) float64 {
	if t == nil || x < 0 || TileSize <= x || y < 0 || TileSize <= y {
		return math.NaN()
	}
	return t.elevations[y*TileSize+x]
}

// DecodeTile decodes an elevation tile. Float GeoTIFF tiles are decoded
// directly. All other images are decoded with the image package and their
// RGB channels are interpreted with DecodeRGB.
func DecodeTile(data []byte) (*DecodedTile, error) {
	if isTIFF(data) {
		switch tile, err := decodeGeoTIFFTile(data); {
		case errors.Is(err, errors.ErrUnsupported):
			// Not a float tile, try an RGB encoded TIFF.
		case err != nil:
			return nil, err
		default:
			return tile, nil
		}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTile, err)
	}
	return decodeImage(img)
}

// DecodeRGB returns the elevation encoded in r, g, and b. The channels form
// a 24-bit two's complement integer in units of 0.01m, with -2^23 meaning no
// data.
func DecodeRGB(r, g, b uint8) float64 {
	x := int32(r)<<16 | int32(g)<<8 | int32(b)
	switch {
	case x < noDataValue:
		return float64(x) * elevationResolution
	case x == noDataValue:
		return math.NaN()
	default:
		return float64(x-1<<24) * elevationResolution
	}
}

func decodeImage(img image.Image) (*DecodedTile, error) {
	bounds := img.Bounds()
	if bounds.Dx() != TileSize || bounds.Dy() != TileSize {
		return nil, fmt.Errorf("%w: %dx%d pixels", ErrInvalidTile, bounds.Dx(), bounds.Dy())
	}

	tile := &DecodedTile{
		elevations: make([]float64, TileSize*TileSize),
	}
	switch img := img.(type) {
	case *image.NRGBA:
		for y := range TileSize {
			row := img.Pix[y*img.Stride : y*img.Stride+4*TileSize]
			for x := range TileSize {
				tile.elevations[y*TileSize+x] = decodeNRGBA(row[4*x], row[4*x+1], row[4*x+2], row[4*x+3])
			}
		}
	case *image.Paletted:
		palette := make([]float64, len(img.Palette))
		for i, c := range img.Palette {
			nrgba := color.NRGBAModel.Convert(c).(color.NRGBA)
			palette[i] = decodeNRGBA(nrgba.R, nrgba.G, nrgba.B, nrgba.A)
		}
		for y := range TileSize {
			row := img.Pix[y*img.Stride : y*img.Stride+TileSize]
			for x, index := range row {
				if int(index) < len(palette) {
					tile.elevations[y*TileSize+x] = palette[index]
				} else {
					tile.elevations[y*TileSize+x] = math.NaN()
				}
			}
		}
	default:
		for y := range TileSize {
			for x := range TileSize {
				nrgba := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
				tile.elevations[y*TileSize+x] = decodeNRGBA(nrgba.R, nrgba.G, nrgba.B, nrgba.A)
			}
		}
	}
	return tile, nil
}

// decodeNRGBA decodes a non-premultiplied pixel. Fully transparent pixels have
// no data.
func decodeNRGBA(r, g, b, a uint8) float64 {
	if a == 0 {
		return math.NaN()
	}
	return DecodeRGB(r, g, b)
}

func isTIFF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("II*\x00")) ||
		bytes.HasPrefix(data, []byte("MM\x00*")) ||
		bytes.HasPrefix(data, []byte("II+\x00")) ||
		bytes.HasPrefix(data, []byte("MM\x00+"))
}
