package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twpayne/go-crosssection"
)

// Config holds all configuration for the crosssection binary.
type Config struct {
	URLTemplate string
	TilesDir    string
	MBTiles     string
	Sources     string
	CacheSize   int
	MaxZoom     int
	MaxDepth    int
	Concurrency int
	CRS         string
	LogLevel    string
	LogFormat   string
	Trace       bool
}

// LoadConfig loads configuration with priority: flags > env vars > defaults.
func LoadConfig(cmd *cobra.Command) Config {
	return Config{
		URLTemplate: getConfigString(cmd, "url-template", "CROSSSECTION_URL_TEMPLATE", crosssection.GSIURLTemplate),
		TilesDir:    getConfigString(cmd, "tiles-dir", "CROSSSECTION_TILES_DIR", ""),
		MBTiles:     getConfigString(cmd, "mbtiles", "CROSSSECTION_MBTILES", ""),
		Sources:     getConfigString(cmd, "sources", "CROSSSECTION_SOURCES", defaultSources()),
		CacheSize:   getConfigInt(cmd, "cache-size", "CROSSSECTION_CACHE_SIZE", 256),
		MaxZoom:     getConfigInt(cmd, "max-zoom", "CROSSSECTION_MAX_ZOOM", crosssection.DefaultMaxZoom),
		MaxDepth:    getConfigInt(cmd, "max-depth", "CROSSSECTION_MAX_DEPTH", crosssection.DefaultMaxDepth),
		Concurrency: getConfigInt(cmd, "concurrency", "CROSSSECTION_CONCURRENCY", crosssection.DefaultConcurrency),
		CRS:         getConfigString(cmd, "crs", "CROSSSECTION_CRS", ""),
		LogLevel:    getConfigString(cmd, "log-level", "CROSSSECTION_LOG_LEVEL", "warn"),
		LogFormat:   getConfigString(cmd, "log-format", "CROSSSECTION_LOG_FORMAT", "text"),
		Trace:       getConfigBool(cmd, "trace", "CROSSSECTION_TRACE", false),
	}
}

// getConfigString gets a string value from flag, then env, then default
func getConfigString(cmd *cobra.Command, flagName, envName, defaultValue string) string {
	if cmd.Flags().Changed(flagName) {
		val, _ := cmd.Flags().GetString(flagName)
		return val
	}
	if v := os.Getenv(envName); v != "" {
		return v
	}
	return defaultValue
}

// getConfigInt gets an int value from flag, then env, then default
func getConfigInt(cmd *cobra.Command, flagName, envName string, defaultValue int) int {
	if cmd.Flags().Changed(flagName) {
		val, _ := cmd.Flags().GetInt(flagName)
		return val
	}
	if v := os.Getenv(envName); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

// getConfigBool gets a bool value from flag, then env, then default
func getConfigBool(cmd *cobra.Command, flagName, envName string, defaultValue bool) bool {
	if cmd.Flags().Changed(flagName) {
		val, _ := cmd.Flags().GetBool(flagName)
		return val
	}
	if v := os.Getenv(envName); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// PrecisionSources parses the comma-separated list of precision sources. Each
// entry is either an ID, in which case the extension defaults to png, or
// ID:ext.
func (c Config) PrecisionSources() ([]crosssection.PrecisionSource, error) {
	var precisionSources []crosssection.PrecisionSource
	for entry := range strings.SplitSeq(c.Sources, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, ext, ok := strings.Cut(entry, ":")
		if !ok {
			ext = "png"
		}
		if id == "" || ext == "" {
			return nil, fmt.Errorf("%s: invalid precision source", entry)
		}
		precisionSources = append(precisionSources, crosssection.PrecisionSource{
			ID:  id,
			Ext: ext,
		})
	}
	if len(precisionSources) == 0 {
		return nil, fmt.Errorf("%q: no precision sources", c.Sources)
	}
	return precisionSources, nil
}

// MBTilesFilenames parses the comma-separated list of source=filename pairs.
func (c Config) MBTilesFilenames() (map[string]string, error) {
	filenames := make(map[string]string)
	for entry := range strings.SplitSeq(c.MBTiles, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		sourceID, filename, ok := strings.Cut(entry, "=")
		if !ok || sourceID == "" || filename == "" {
			return nil, fmt.Errorf("%s: invalid MBTiles entry, expected source=filename", entry)
		}
		filenames[sourceID] = filename
	}
	return filenames, nil
}

// newProfiler returns a Profiler configured by cfg, and a function that
// releases its resources.
func newProfiler(cfg Config) (*crosssection.Profiler, func() error, error) {
	precisionSources, err := cfg.PrecisionSources()
	if err != nil {
		return nil, nil, err
	}

	closeFunc := func() error { return nil }
	var tileSource crosssection.TileSource
	switch {
	case cfg.MBTiles != "":
		filenames, err := cfg.MBTilesFilenames()
		if err != nil {
			return nil, nil, err
		}
		mbtilesTileSource, err := crosssection.NewMBTilesTileSource(filenames)
		if err != nil {
			return nil, nil, err
		}
		tileSource = mbtilesTileSource
		closeFunc = mbtilesTileSource.Close
	case cfg.TilesDir != "":
		fsTileSource, err := crosssection.NewFSTileSource(os.DirFS(cfg.TilesDir), "{source}/{z}/{x}/{y}.{ext}")
		if err != nil {
			return nil, nil, err
		}
		tileSource = fsTileSource
	default:
		httpTileSource, err := crosssection.NewHTTPTileSource(cfg.URLTemplate)
		if err != nil {
			return nil, nil, err
		}
		tileSource = httpTileSource
	}

	cachingTileSource, err := crosssection.NewCachingTileSource(tileSource, crosssection.WithCacheSize(cfg.CacheSize))
	if err != nil {
		_ = closeFunc()
		return nil, nil, err
	}

	profiler := crosssection.NewProfiler(cachingTileSource,
		crosssection.WithPrecisionSources(precisionSources),
		crosssection.WithMaxZoom(cfg.MaxZoom),
		crosssection.WithMaxDepth(cfg.MaxDepth),
		crosssection.WithConcurrency(cfg.Concurrency),
		crosssection.WithLogger(logger),
	)
	return profiler, closeFunc, nil
}

// newPointParser returns a function that parses "lat,lon" or, if cfg.CRS is
// set, "x,y" in that CRS.
func newPointParser(cfg Config) (func(string) (crosssection.GeoPoint, error), error) {
	if cfg.CRS == "" {
		return parseGeoPoint, nil
	}
	crsTransformer, err := crosssection.NewCRSTransformer(cfg.CRS)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.CRS, err)
	}
	return func(s string) (crosssection.GeoPoint, error) {
		x, y, err := parsePair(s)
		if err != nil {
			return crosssection.GeoPoint{}, err
		}
		return crsTransformer.GeoPoint(x, y)
	}, nil
}

func parseGeoPoint(s string) (crosssection.GeoPoint, error) {
	latitude, longitude, err := parsePair(s)
	if err != nil {
		return crosssection.GeoPoint{}, err
	}
	point := crosssection.GeoPoint{
		Latitude:  latitude,
		Longitude: longitude,
	}
	if err := point.Validate(); err != nil {
		return crosssection.GeoPoint{}, err
	}
	return point, nil
}

func parsePair(s string) (float64, float64, error) {
	first, second, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("%s: %w: expected two comma-separated numbers", s, crosssection.ErrInvalidCoordinate)
	}
	a, err := strconv.ParseFloat(strings.TrimSpace(first), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w: %w", s, crosssection.ErrInvalidCoordinate, err)
	}
	b, err := strconv.ParseFloat(strings.TrimSpace(second), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w: %w", s, crosssection.ErrInvalidCoordinate, err)
	}
	return a, b, nil
}
