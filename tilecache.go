package crosssection

import (
	"context"
	"errors"
	"log/slog"

	"github.com/maypok86/otter/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tileLoadResultOK          = "ok"
	tileLoadResultNotFound    = "not_found"
	tileLoadResultFetchError  = "fetch_error"
	tileLoadResultDecodeError = "decode_error"
)

var tileLoads = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "crosssection_tile_loads_total",
	Help: "The total number of tile loads by precision source and result",
}, []string{"source", "result"})

// A TileCache memoizes decoded tiles for a single profile build. Each tile is
// loaded at most once, even when requested concurrently. Tiles that are
// missing or cannot be fetched or decoded are cached as nil.
type TileCache struct {
	tileSource TileSource
	logger     *slog.Logger
	tiles      *otter.Cache[tileKey, *DecodedTile]
}

// NewTileCache returns a new TileCache that loads tiles from tileSource and
// holds at least capacity tiles without eviction.
func NewTileCache(tileSource TileSource, capacity int, logger *slog.Logger) (*TileCache, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tiles, err := otter.New(&otter.Options[tileKey, *DecodedTile]{
		MaximumSize: max(capacity, 1),
	})
	if err != nil {
		return nil, err
	}
	return &TileCache{
		tileSource: tileSource,
		logger:     logger,
		tiles:      tiles,
	}, nil
}

// Get returns the decoded tile at address in source, loading it if needed. It
// returns nil if the tile has no data. The only errors returned are context
// errors.
func (c *TileCache) Get(ctx context.Context, source PrecisionSource, address TileAddress) (*DecodedTile, error) {
	if !address.Valid() {
		return nil, nil
	}
	key := tileKey{
		sourceID: source.ID,
		address:  address,
	}
	return c.tiles.Get(ctx, key, otter.LoaderFunc[tileKey, *DecodedTile](func(ctx context.Context, key tileKey) (*DecodedTile, error) {
		return c.load(ctx, source, key)
	}))
}

// load fetches and decodes the tile at key.
func (c *TileCache) load(ctx context.Context, source PrecisionSource, key tileKey) (*DecodedTile, error) {
	ctx, span := tracer.Start(ctx, "LoadTile", trace.WithAttributes(
		attribute.String("source", key.sourceID),
		attribute.String("tile", key.address.String()),
	))
	defer span.End()

	data, err := c.tileSource.Tile(ctx, source, key.address)
	switch {
	case errors.Is(err, ErrTileNotFound):
		tileLoads.WithLabelValues(key.sourceID, tileLoadResultNotFound).Inc()
		c.logger.DebugContext(ctx, "tile not found",
			slog.String("source", key.sourceID),
			slog.String("tile", key.address.String()),
		)
		span.SetAttributes(attribute.String("result", tileLoadResultNotFound))
		return nil, nil
	case err != nil && ctx.Err() != nil:
		span.SetStatus(codes.Error, ctx.Err().Error())
		return nil, ctx.Err()
	case err != nil:
		tileLoads.WithLabelValues(key.sourceID, tileLoadResultFetchError).Inc()
		c.logger.WarnContext(ctx, "tile fetch failed",
			slog.String("source", key.sourceID),
			slog.String("tile", key.address.String()),
			slog.Any("err", err),
		)
		span.SetAttributes(attribute.String("result", tileLoadResultFetchError))
		span.RecordError(err)
		return nil, nil
	}

	tile, err := DecodeTile(data)
	if err != nil {
		tileLoads.WithLabelValues(key.sourceID, tileLoadResultDecodeError).Inc()
		c.logger.WarnContext(ctx, "tile decode failed",
			slog.String("source", key.sourceID),
			slog.String("tile", key.address.String()),
			slog.Any("err", err),
		)
		span.SetAttributes(attribute.String("result", tileLoadResultDecodeError))
		span.RecordError(err)
		return nil, nil
	}

	tileLoads.WithLabelValues(key.sourceID, tileLoadResultOK).Inc()
	span.SetAttributes(attribute.String("result", tileLoadResultOK))
	return tile, nil
}
