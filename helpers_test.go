package crosssection

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"
	"testing"

	"github.com/alecthomas/assert/v2"
)

var (
	testHighSource = PrecisionSource{ID: "high", Ext: "png"}
	testLowSource  = PrecisionSource{ID: "low", Ext: "png"}

	testPrecisionSources = []PrecisionSource{testHighSource, testLowSource}

	// Near the summit of Mount Fuji.
	testFujiA = GeoPoint{Latitude: 35.3607, Longitude: 138.7273}
	testFujiB = GeoPoint{Latitude: 35.3650, Longitude: 138.7300}
)

// encodeRGB returns the color that DecodeRGB decodes to elevation. NaN is
// encoded as the no data value.
func encodeRGB(elevation float64) color.NRGBA {
	if math.IsNaN(elevation) {
		return color.NRGBA{R: 128, A: 255}
	}
	x := int32(math.Round(elevation / elevationResolution))
	if x < 0 {
		x += 1 << 24
	}
	return color.NRGBA{
		R: uint8(x >> 16),
		G: uint8(x >> 8),
		B: uint8(x),
		A: 255,
	}
}

// newTestTile returns a PNG encoded tile with the elevations returned by
// elevation.
func newTestTile(t *testing.T, elevation func(x, y int) float64) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, TileSize, TileSize))
	for y := range TileSize {
		for x := range TileSize {
			img.SetNRGBA(x, y, encodeRGB(elevation(x, y)))
		}
	}
	buffer := &bytes.Buffer{}
	assert.NoError(t, png.Encode(buffer, img))
	return buffer.Bytes()
}

func constantElevation(elevation float64) func(int, int) float64 {
	return func(int, int) float64 {
		return elevation
	}
}

// A testTileSource is an in-memory TileSource that counts fetches.
type testTileSource struct {
	mutex sync.Mutex
	// tiles maps precision source IDs to tile data. A source with tile data
	// serves it for every address.
	tiles   map[string][]byte
	errs    map[string]error
	fetches map[tileKey]int
}

func newTestTileSource() *testTileSource {
	return &testTileSource{
		tiles:   make(map[string][]byte),
		errs:    make(map[string]error),
		fetches: make(map[tileKey]int),
	}
}

func (s *testTileSource) Tile(ctx context.Context, source PrecisionSource, address TileAddress) ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.fetches[tileKey{sourceID: source.ID, address: address}]++
	if err := s.errs[source.ID]; err != nil {
		return nil, err
	}
	if data, ok := s.tiles[source.ID]; ok {
		return data, nil
	}
	return nil, ErrTileNotFound
}

// totalFetches returns the total number of fetches and the largest number of
// fetches of any single tile.
func (s *testTileSource) totalFetches() (total, maxPerTile int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, n := range s.fetches {
		total += n
		maxPerTile = max(maxPerTile, n)
	}
	return total, maxPerTile
}
