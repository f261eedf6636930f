package crosssection

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
	_ "github.com/google/tiff/geotiff"
	"golang.org/x/image/tiff/lzw"
)

const epsgWebMercator = 3857

const (
	compressionNone = 1
	compressionLZW  = 5

	sampleFormatFloat = 3
)

// A geoTIFFIFD is a struct into which github.com/google/tiff can unmarshal an
// IFD.
type geoTIFFIFD struct {
	ImageWidth                uint16   `tiff:"field,tag=256"`
	ImageLength               uint16   `tiff:"field,tag=257"`
	BitsPerSample             uint16   `tiff:"field,tag=258"`
	Compression               uint16   `tiff:"field,tag=259"`
	PhotometricInterpretation uint16   `tiff:"field,tag=262"`
	SamplesPerPixel           uint16   `tiff:"field,tag=277"`
	PlanarConfiguration       uint16   `tiff:"field,tag=284"`
	Predictor                 uint16   `tiff:"field,tag=317"`
	TileWidth                 uint16   `tiff:"field,tag=322"`
	TileLength                uint16   `tiff:"field,tag=323"`
	TileOffsets               []uint64 `tiff:"field,tag=324"`
	TileByteCounts            []uint64 `tiff:"field,tag=325"`
	SampleFormat              uint16   `tiff:"field,tag=339"`
	GeoKeyDirectoryTag        []uint16 `tiff:"field,tag=34735"`
	GDALNoData                string   `tiff:"field,tag=42113"`
}

// decodeGeoTIFFTile decodes a single-band 32-bit float GeoTIFF tile. It
// returns errors.ErrUnsupported if data is a TIFF in some other layout.
func decodeGeoTIFFTile(data []byte) (*DecodedTile, error) {
	tiffTIFF, err := tiff.Parse(bytes.NewReader(data), tiff.GetTagSpace("GeoTIFF"), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTile, err)
	}
	if len(tiffTIFF.IFDs()) == 0 {
		return nil, fmt.Errorf("%w: no IFDs", ErrInvalidTile)
	}

	var ifd geoTIFFIFD
	if err := tiff.UnmarshalIFD(tiffTIFF.IFDs()[0], &ifd); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTile, err)
	}

	if ifd.BitsPerSample != 32 ||
		ifd.SampleFormat != sampleFormatFloat ||
		ifd.SamplesPerPixel != 1 ||
		(ifd.PlanarConfiguration != 0 && ifd.PlanarConfiguration != 1) ||
		(ifd.Predictor != 0 && ifd.Predictor != 1) ||
		(ifd.Compression != compressionNone && ifd.Compression != compressionLZW) ||
		len(ifd.TileOffsets) != 1 || len(ifd.TileByteCounts) != 1 {
		return nil, errors.ErrUnsupported
	}
	if ifd.ImageWidth != TileSize || ifd.ImageLength != TileSize ||
		ifd.TileWidth != TileSize || ifd.TileLength != TileSize {
		return nil, fmt.Errorf("%w: %dx%d pixels", ErrInvalidTile, ifd.ImageWidth, ifd.ImageLength)
	}

	if len(ifd.GeoKeyDirectoryTag) != 0 {
		geoKeys, err := ParseGeoKeys(ifd.GeoKeyDirectoryTag)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidTile, err)
		}
		if _, ok := geoKeys.Params[GeoKeyGTModelType]; ok && !geoKeys.IsWebMercator() {
			return nil, fmt.Errorf("%w: not EPSG:%d", ErrInvalidTile, epsgWebMercator)
		}
	}

	noData := math.NaN()
	if s := strings.TrimSpace(strings.TrimRight(ifd.GDALNoData, "\x00")); s != "" {
		noData, err = strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: no data value %q", ErrInvalidTile, s)
		}
	}

	compressedData, err := tileBytes(data, ifd.TileOffsets[0], ifd.TileByteCounts[0])
	if err != nil {
		return nil, err
	}
	tileData := compressedData
	if ifd.Compression == compressionLZW {
		tileData, err = decompressTileData(compressedData)
		if err != nil {
			return nil, err
		}
	} else if len(tileData) < 4*TileSize*TileSize {
		return nil, fmt.Errorf("%w: short tile", ErrInvalidTile)
	}

	var byteOrder binary.ByteOrder = binary.LittleEndian
	if data[0] == 'M' {
		byteOrder = binary.BigEndian
	}
	return decodeTileData(tileData, byteOrder, float32(noData)), nil
}

// tileBytes returns the byteCount bytes at offset in data.
func tileBytes(data []byte, offset, byteCount uint64) ([]byte, error) {
	if offset > uint64(len(data)) || byteCount > uint64(len(data))-offset {
		return nil, fmt.Errorf("%w: tile data out of range", ErrInvalidTile)
	}
	return data[offset : offset+byteCount], nil
}

// decompressTileData decompresses the LZW compressed tile data in
// compressedData.
func decompressTileData(compressedData []byte) ([]byte, error) {
	tileData := make([]byte, 4*TileSize*TileSize)
	r := lzw.NewReader(bytes.NewReader(compressedData), lzw.MSB, 8)
	defer r.Close()
	if _, err := io.ReadFull(r, tileData); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTile, err)
	}
	return tileData, nil
}

// decodeTileData decodes tileData, replacing noData with NaN.
func decodeTileData(tileData []byte, byteOrder binary.ByteOrder, noData float32) *DecodedTile {
	tile := &DecodedTile{
		elevations: make([]float64, TileSize*TileSize),
	}
	for i := range tile.elevations {
		sample := math.Float32frombits(byteOrder.Uint32(tileData[4*i : 4*(i+1)]))
		if sample == noData || math.IsNaN(float64(sample)) {
			tile.elevations[i] = math.NaN()
		} else {
			tile.elevations[i] = float64(sample)
		}
	}
	return tile
}
