package crosssection

import "errors"

var errParse = errors.New("parse error")

type GeoKey uint16

const (
	GeoKeyGTModelType  GeoKey = 1024
	GeoKeyProjectedCRS GeoKey = 3072
)

const modelTypeProjected = 1

// ParsedGeoKeys are the GeoKeys whose values are stored directly in the
// GeoKey directory. Keys stored in the double or ASCII parameter tags are
// skipped.
type ParsedGeoKeys struct {
	Params map[GeoKey]int
}

// ParseGeoKeys parses a GeoKeyDirectoryTag.
func ParseGeoKeys(directory []uint16) (*ParsedGeoKeys, error) {
	if len(directory) < 4 {
		return nil, errParse
	}

	if keyDirectoryVersion := int(directory[0]); keyDirectoryVersion != 1 {
		return nil, errParse
	}
	if keyRevision := int(directory[1]); keyRevision != 1 {
		return nil, errParse
	}
	if minorRevision := int(directory[2]); minorRevision != 0 && minorRevision != 1 {
		return nil, errParse
	}
	numberOfKeys := int(directory[3])
	if len(directory) != 4+4*numberOfKeys {
		return nil, errParse
	}

	parsedGeoKeys := &ParsedGeoKeys{
		Params: make(map[GeoKey]int),
	}
	for i := range numberOfKeys {
		keyValues := directory[4+4*i : 4+4*(i+1)]
		key := GeoKey(keyValues[0])
		tiffTagLocation := int(keyValues[1])
		numberOfValues := int(keyValues[2])
		switch tiffTagLocation {
		case 0:
			if numberOfValues != 1 {
				return nil, errParse
			}
			parsedGeoKeys.Params[key] = int(keyValues[3])
		case 34736, 34737: // GeoDoubleParamsTag, GeoASCIIParamsTag.
		default:
			return nil, errors.ErrUnsupported
		}
	}
	return parsedGeoKeys, nil
}

// IsWebMercator returns whether k describes a raster in EPSG:3857.
func (k *ParsedGeoKeys) IsWebMercator() bool {
	if k.Params[GeoKeyGTModelType] != modelTypeProjected {
		return false
	}
	return k.Params[GeoKeyProjectedCRS] == epsgWebMercator
}
