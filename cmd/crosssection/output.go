package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/twpayne/go-crosssection"
)

const (
	formatJSON    = "json"
	formatGeoJSON = "geojson"
	formatCSV     = "csv"
)

// validateFormat returns an error if format is not a supported output format.
func validateFormat(format string) error {
	switch format {
	case formatJSON, formatGeoJSON, formatCSV:
		return nil
	default:
		return fmt.Errorf("%s: unsupported format", format)
	}
}

func contentType(format string) string {
	switch format {
	case formatGeoJSON:
		return "application/geo+json"
	case formatCSV:
		return "text/csv"
	default:
		return "application/json"
	}
}

// writeProfile writes profile to w in format.
func writeProfile(w io.Writer, profile *crosssection.Profile, format string) error {
	switch format {
	case formatJSON, "":
		return json.NewEncoder(w).Encode(profile)
	case formatGeoJSON:
		return json.NewEncoder(w).Encode(profile.FeatureCollection())
	case formatCSV:
		return writeProfileCSV(w, profile)
	default:
		return fmt.Errorf("%s: unsupported format", format)
	}
}

func writeProfileCSV(w io.Writer, profile *crosssection.Profile) error {
	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write([]string{"distance", "elevation", "latitude", "longitude", "source"}); err != nil {
		return err
	}
	for _, point := range profile.Points {
		elevation := ""
		if !math.IsNaN(point.Elevation) {
			elevation = formatFloat(point.Elevation)
		}
		if err := csvWriter.Write([]string{
			formatFloat(point.Distance),
			elevation,
			formatFloat(point.Point.Latitude),
			formatFloat(point.Point.Longitude),
			point.Source,
		}); err != nil {
			return err
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
