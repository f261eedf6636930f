package crosssection

import (
	"context"
	"errors"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

var (
	missingTileCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crosssection_missing_tile_cache_hits_total",
		Help: "The total number of hits on the missing tile cache",
	})
	missingTileCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crosssection_missing_tile_cache_misses_total",
		Help: "The total number of misses on the missing tile cache",
	})
	globalTileCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crosssection_global_tile_cache_hits_total",
		Help: "The total number of hits on the global tile cache",
	})
	globalTileCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crosssection_global_tile_cache_misses_total",
		Help: "The total number of misses on the global tile cache",
	})
	globalTileCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crosssection_global_tile_cache_evictions_total",
		Help: "The total number of evictions from the global tile cache",
	})
)

// A tileKey identifies a tile in a precision source.
type tileKey struct {
	sourceID string
	address  TileAddress
}

func (k tileKey) String() string {
	return k.sourceID + "/" + k.address.String()
}

// A CachingTileSource caches raw tiles from another TileSource. Tiles are
// shared between profile builds. Missing tiles are remembered forever, and
// fetch errors are not cached.
type CachingTileSource struct {
	tileSource   TileSource
	cacheSize    int
	missingTiles sync.Map
	inflight     singleflight.Group
	tileCache    *lru.Cache[tileKey, []byte]
}

// A CachingTileSourceOption sets an option on a CachingTileSource.
type CachingTileSourceOption func(*CachingTileSource)

// NewCachingTileSource returns a new CachingTileSource that caches tiles from
// tileSource.
func NewCachingTileSource(tileSource TileSource, options ...CachingTileSourceOption) (*CachingTileSource, error) {
	s := &CachingTileSource{
		tileSource: tileSource,
		cacheSize:  256,
	}
	for _, option := range options {
		option(s)
	}

	var err error
	s.tileCache, err = lru.New[tileKey, []byte](s.cacheSize)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// WithCacheSize sets the maximum number of tiles to cache.
func WithCacheSize(cacheSize int) CachingTileSourceOption {
	return func(s *CachingTileSource) {
		s.cacheSize = cacheSize
	}
}

// Tile implements TileSource.
func (s *CachingTileSource) Tile(ctx context.Context, source PrecisionSource, address TileAddress) ([]byte, error) {
	key := tileKey{
		sourceID: source.ID,
		address:  address,
	}

	if data, ok := s.cachedTile(key); ok {
		if data == nil {
			return nil, ErrTileNotFound
		}
		return data, nil
	}

	ch := s.inflight.DoChan(key.String(), func() (any, error) {
		// Check again, another fetch may have completed while we were
		// waiting.
		if data, ok := s.cachedTile(key); ok {
			return data, nil
		}

		globalTileCacheMisses.Inc()

		switch data, err := s.tileSource.Tile(context.WithoutCancel(ctx), source, address); {
		case errors.Is(err, ErrTileNotFound):
			s.missingTiles.Store(key, struct{}{})
			missingTileCacheMisses.Inc()
			return []byte(nil), nil
		case err != nil:
			return nil, err
		default:
			if eviction := s.tileCache.Add(key, data); eviction {
				globalTileCacheEvictions.Inc()
			}
			return data, nil
		}
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-ch:
		if result.Err != nil {
			return nil, result.Err
		}
		data := result.Val.([]byte)
		if data == nil {
			return nil, ErrTileNotFound
		}
		return data, nil
	}
}

// cachedTile returns the tile at key if it is known. Missing tiles are
// returned as nil.
func (s *CachingTileSource) cachedTile(key tileKey) ([]byte, bool) {
	if _, ok := s.missingTiles.Load(key); ok {
		missingTileCacheHits.Inc()
		return nil, true
	}

	if data, ok := s.tileCache.Get(key); ok {
		globalTileCacheHits.Inc()
		return data, true
	}

	return nil, false
}
