package crosssection

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultElevationZoom is the zoom level used for single point
	// elevations.
	DefaultElevationZoom = 15

	// DefaultConcurrency is the default number of tiles loaded concurrently
	// by a profile build.
	DefaultConcurrency = 8
)

var tracer = otel.Tracer("github.com/twpayne/go-crosssection")

var (
	profileBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crosssection_profile_builds_total",
		Help: "The total number of profile builds by result",
	}, []string{"result"})
	profileBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crosssection_profile_build_duration_seconds",
		Help:    "The duration of profile builds",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})
)

// A Profile is an elevation cross-section between two points.
type Profile struct {
	Zoom     int            // Zoom level at which the profile was sampled.
	Distance float64        // Great-circle distance between the endpoints in meters.
	Points   []ProfilePoint // Samples in order from the first to the second endpoint.
	Min      float64        // Lowest defined elevation, or NaN.
	Max      float64        // Highest defined elevation, or NaN.
	Ascent   float64        // Total climb between consecutive defined elevations.
	Descent  float64        // Total drop between consecutive defined elevations.
}

// A ProfilePoint is a single sample of a Profile.
type ProfilePoint struct {
	Distance  float64  // Distance from the first endpoint in meters.
	Elevation float64  // Elevation in meters, or NaN if no source has data.
	Point     GeoPoint // Position of the sample.
	Source    string   // ID of the precision source that supplied Elevation.
}

// A Profiler builds elevation profiles from a TileSource.
type Profiler struct {
	tileSource       TileSource
	precisionSources []PrecisionSource
	maxZoom          int
	minPixelDistance float64
	maxDepth         int
	elevationZoom    int
	concurrency      int
	logger           *slog.Logger
}

// A ProfilerOption sets an option on a Profiler.
type ProfilerOption func(*Profiler)

// NewProfiler returns a new Profiler that reads tiles from tileSource. By
// default it uses GSIPrecisionSources.
func NewProfiler(tileSource TileSource, options ...ProfilerOption) *Profiler {
	p := &Profiler{
		tileSource:       tileSource,
		precisionSources: GSIPrecisionSources,
		maxZoom:          DefaultMaxZoom,
		minPixelDistance: DefaultMinPixelDistance,
		maxDepth:         DefaultMaxDepth,
		elevationZoom:    DefaultElevationZoom,
		concurrency:      DefaultConcurrency,
		logger:           slog.New(slog.DiscardHandler),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// WithMaxZoom sets the highest zoom level considered for profiles. It is
// clamped to [0, MaxTileZoom].
func WithMaxZoom(maxZoom int) ProfilerOption {
	return func(p *Profiler) {
		p.maxZoom = clampZoom(maxZoom)
	}
}

// WithMinPixelDistance sets the pixel distance that the endpoints of a profile
// must exceed at the selected zoom level.
func WithMinPixelDistance(minPixelDistance float64) ProfilerOption {
	return func(p *Profiler) {
		p.minPixelDistance = minPixelDistance
	}
}

// WithMaxDepth sets the bisection depth. Profiles have 2^maxDepth+1 points.
func WithMaxDepth(maxDepth int) ProfilerOption {
	return func(p *Profiler) {
		p.maxDepth = min(max(maxDepth, 0), maxMaxDepth)
	}
}

// WithElevationZoom sets the zoom level used by Elevation. It is clamped to
// [0, MaxTileZoom].
func WithElevationZoom(elevationZoom int) ProfilerOption {
	return func(p *Profiler) {
		p.elevationZoom = clampZoom(elevationZoom)
	}
}

// WithPrecisionSources sets the precision sources, highest priority first.
func WithPrecisionSources(precisionSources []PrecisionSource) ProfilerOption {
	return func(p *Profiler) {
		p.precisionSources = precisionSources
	}
}

// WithConcurrency sets the maximum number of tiles loaded concurrently.
func WithConcurrency(concurrency int) ProfilerOption {
	return func(p *Profiler) {
		p.concurrency = max(concurrency, 1)
	}
}

// WithLogger sets the logger. A nil logger discards all records.
func WithLogger(logger *slog.Logger) ProfilerOption {
	return func(p *Profiler) {
		if logger == nil {
			logger = slog.New(slog.DiscardHandler)
		}
		p.logger = logger
	}
}

// PrecisionSources returns p's precision sources.
func (p *Profiler) PrecisionSources() []PrecisionSource {
	return p.precisionSources
}

// BuildProfile returns the elevation profile from a to b. Samples without data
// in any precision source have a NaN elevation. If ctx is canceled then no
// profile is returned.
func (p *Profiler) BuildProfile(ctx context.Context, a, b GeoPoint) (_ *Profile, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "BuildProfile", trace.WithAttributes(
		attribute.Float64Slice("from", []float64{a.Latitude, a.Longitude}),
		attribute.Float64Slice("to", []float64{b.Latitude, b.Longitude}),
	))
	defer func() {
		profileBuilds.WithLabelValues(buildResult(err)).Inc()
		profileBuildDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	selection, err := selectZoom(a, b, p.maxZoom, p.minPixelDistance)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("zoom", selection.Zoom))

	pixels := SampleLine(selection.A.Pixel, selection.B.Pixel, p.maxDepth)
	projections := make([]Projection, len(pixels))
	points := make([]ProfilePoint, len(pixels))
	for i, pixel := range pixels {
		projections[i] = pixel.Projection(selection.Zoom)
		points[i] = ProfilePoint{
			Elevation: math.NaN(),
			Point:     Unproject(pixel, selection.Zoom),
		}
	}
	points[0].Point = a
	points[len(points)-1].Point = b

	tileCache, err := NewTileCache(p.tileSource, len(pixels)*len(p.precisionSources), p.logger)
	if err != nil {
		return nil, err
	}

	pending := make([]int, len(points))
	for i := range pending {
		pending[i] = i
	}
	for _, source := range p.precisionSources {
		if len(pending) == 0 {
			break
		}

		addresses := make([]TileAddress, 0, len(pending))
		for _, i := range pending {
			addresses = append(addresses, projections[i].Tile)
		}
		tiles, err := p.loadTiles(ctx, tileCache, source, addresses)
		if err != nil {
			return nil, err
		}

		stillPending := pending[:0]
		for _, i := range pending {
			projection := projections[i]
			elevation := tiles[projection.Tile].Elevation(projection.LocalX, projection.LocalY)
			if math.IsNaN(elevation) {
				stillPending = append(stillPending, i)
				continue
			}
			points[i].Elevation = elevation
			points[i].Source = source.ID
		}
		pending = stillPending
	}

	// Never return a profile from a build that was canceled part way through.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	distance := GreatCircleDistance(a, b)
	for i := range points {
		points[i].Distance = float64(i) * distance / float64(len(points)-1)
	}

	profile := &Profile{
		Zoom:     selection.Zoom,
		Distance: distance,
		Points:   points,
	}
	profile.summarize()

	p.logger.DebugContext(ctx, "built profile",
		slog.Int("zoom", profile.Zoom),
		slog.Int("points", len(profile.Points)),
		slog.Int("missing", len(pending)),
		slog.Duration("duration", time.Since(start)),
	)
	return profile, nil
}

// Elevation returns the elevation at point from the highest priority precision
// source at p's elevation zoom level, or NaN if there is no data.
func (p *Profiler) Elevation(ctx context.Context, point GeoPoint) (_ float64, err error) {
	ctx, span := tracer.Start(ctx, "Elevation", trace.WithAttributes(
		attribute.Float64Slice("point", []float64{point.Latitude, point.Longitude}),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	projection, err := Project(point, p.elevationZoom)
	if err != nil {
		return 0, err
	}
	if len(p.precisionSources) == 0 {
		return math.NaN(), nil
	}

	tileCache, err := NewTileCache(p.tileSource, 1, p.logger)
	if err != nil {
		return 0, err
	}
	tile, err := tileCache.Get(ctx, p.precisionSources[0], projection.Tile)
	if err != nil {
		return 0, err
	}
	return tile.Elevation(projection.LocalX, projection.LocalY), nil
}

// loadTiles loads the distinct tiles in addresses from source concurrently.
// Tiles without data are nil in the returned map.
func (p *Profiler) loadTiles(ctx context.Context, tileCache *TileCache, source PrecisionSource, addresses []TileAddress) (map[TileAddress]*DecodedTile, error) {
	var mutex sync.Mutex
	tiles := make(map[TileAddress]*DecodedTile)
	seen := make(map[TileAddress]struct{})
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, address := range addresses {
		if _, ok := seen[address]; ok {
			continue
		}
		seen[address] = struct{}{}
		g.Go(func() error {
			tile, err := tileCache.Get(ctx, source, address)
			if err != nil {
				return err
			}
			mutex.Lock()
			defer mutex.Unlock()
			tiles[address] = tile
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tiles, nil
}

// summarize computes the summary statistics of p.
func (p *Profile) summarize() {
	p.Min = math.NaN()
	p.Max = math.NaN()
	p.Ascent = 0
	p.Descent = 0
	previous := math.NaN()
	for _, point := range p.Points {
		elevation := point.Elevation
		if math.IsNaN(elevation) {
			continue
		}
		if math.IsNaN(p.Min) || elevation < p.Min {
			p.Min = elevation
		}
		if math.IsNaN(p.Max) || elevation > p.Max {
			p.Max = elevation
		}
		switch {
		case math.IsNaN(previous):
		case elevation > previous:
			p.Ascent += elevation - previous
		default:
			p.Descent += previous - elevation
		}
		previous = elevation
	}
}

// Defined returns the number of points in p with a defined elevation.
func (p *Profile) Defined() int {
	defined := 0
	for _, point := range p.Points {
		if !math.IsNaN(point.Elevation) {
			defined++
		}
	}
	return defined
}

func buildResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidCoordinate):
		return "invalid_coordinate"
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// A nullableFloat is a float64 that is encoded as JSON null when it is NaN.
type nullableFloat float64

func (f nullableFloat) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(f), 'f', -1, 64), nil
}

func (f *nullableFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = nullableFloat(math.NaN())
		return nil
	}
	value, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*f = nullableFloat(value)
	return nil
}

type jsonProfilePoint struct {
	Distance  float64       `json:"distance"`
	Elevation nullableFloat `json:"elevation"`
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	Source    string        `json:"source,omitempty"`
}

func (p ProfilePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonProfilePoint{
		Distance:  p.Distance,
		Elevation: nullableFloat(p.Elevation),
		Latitude:  p.Point.Latitude,
		Longitude: p.Point.Longitude,
		Source:    p.Source,
	})
}

func (p *ProfilePoint) UnmarshalJSON(data []byte) error {
	var jsonPoint jsonProfilePoint
	if err := json.Unmarshal(data, &jsonPoint); err != nil {
		return err
	}
	*p = ProfilePoint{
		Distance:  jsonPoint.Distance,
		Elevation: float64(jsonPoint.Elevation),
		Point: GeoPoint{
			Latitude:  jsonPoint.Latitude,
			Longitude: jsonPoint.Longitude,
		},
		Source: jsonPoint.Source,
	}
	return nil
}

type jsonProfile struct {
	Zoom     int            `json:"zoom"`
	Distance float64        `json:"distance"`
	Min      nullableFloat  `json:"min"`
	Max      nullableFloat  `json:"max"`
	Ascent   float64        `json:"ascent"`
	Descent  float64        `json:"descent"`
	Points   []ProfilePoint `json:"points"`
}

func (p *Profile) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonProfile{
		Zoom:     p.Zoom,
		Distance: p.Distance,
		Min:      nullableFloat(p.Min),
		Max:      nullableFloat(p.Max),
		Ascent:   p.Ascent,
		Descent:  p.Descent,
		Points:   p.Points,
	})
}

func (p *Profile) UnmarshalJSON(data []byte) error {
	var jsonP jsonProfile
	if err := json.Unmarshal(data, &jsonP); err != nil {
		return err
	}
	*p = Profile{
		Zoom:     jsonP.Zoom,
		Distance: jsonP.Distance,
		Points:   jsonP.Points,
		Min:      float64(jsonP.Min),
		Max:      float64(jsonP.Max),
		Ascent:   jsonP.Ascent,
		Descent:  jsonP.Descent,
	}
	return nil
}
