package crosssection

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestCachingTileSource(t *testing.T) {
	errBoom := errors.New("boom")
	testTileSource := newTestTileSource()
	testTileSource.tiles[testHighSource.ID] = []byte("high tile")
	testTileSource.errs["broken"] = errBoom

	cachingTileSource, err := NewCachingTileSource(testTileSource, WithCacheSize(2))
	assert.NoError(t, err)

	address := TileAddress{Zoom: 15, X: 1, Y: 2}
	for range 3 {
		actual, err := cachingTileSource.Tile(t.Context(), testHighSource, address)
		assert.NoError(t, err)
		assert.Equal(t, []byte("high tile"), actual)
	}
	assert.Equal(t, 1, testTileSource.fetches[tileKey{sourceID: testHighSource.ID, address: address}])

	// Missing tiles are remembered.
	for range 3 {
		_, err := cachingTileSource.Tile(t.Context(), testLowSource, address)
		assert.IsError(t, err, ErrTileNotFound)
	}
	assert.Equal(t, 1, testTileSource.fetches[tileKey{sourceID: testLowSource.ID, address: address}])

	// Errors are not cached.
	brokenSource := PrecisionSource{ID: "broken"}
	for range 2 {
		_, err := cachingTileSource.Tile(t.Context(), brokenSource, address)
		assert.IsError(t, err, errBoom)
	}
	assert.Equal(t, 2, testTileSource.fetches[tileKey{sourceID: brokenSource.ID, address: address}])
}

func TestCachingTileSourceEviction(t *testing.T) {
	testTileSource := newTestTileSource()
	testTileSource.tiles[testHighSource.ID] = []byte("high tile")

	cachingTileSource, err := NewCachingTileSource(testTileSource, WithCacheSize(1))
	assert.NoError(t, err)

	address1 := TileAddress{Zoom: 1, X: 0, Y: 0}
	address2 := TileAddress{Zoom: 1, X: 1, Y: 0}
	for _, address := range []TileAddress{address1, address2, address1} {
		_, err := cachingTileSource.Tile(t.Context(), testHighSource, address)
		assert.NoError(t, err)
	}
	assert.Equal(t, 2, testTileSource.fetches[tileKey{sourceID: testHighSource.ID, address: address1}])
	assert.Equal(t, 1, testTileSource.fetches[tileKey{sourceID: testHighSource.ID, address: address2}])
}

func TestCachingTileSourceConcurrent(t *testing.T) {
	release := make(chan struct{})
	var mutex sync.Mutex
	fetches := 0
	tileSource := TileSourceFunc(func(ctx context.Context, source PrecisionSource, address TileAddress) ([]byte, error) {
		mutex.Lock()
		fetches++
		mutex.Unlock()
		<-release
		return []byte("tile"), nil
	})

	cachingTileSource, err := NewCachingTileSource(tileSource)
	assert.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]byte, 8)
	errs := make([]error, len(results))
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = cachingTileSource.Tile(t.Context(), testHighSource, TileAddress{})
		}()
	}
	close(release)
	wg.Wait()

	for i := range results {
		assert.NoError(t, errs[i])
		assert.Equal(t, []byte("tile"), results[i])
	}
	mutex.Lock()
	defer mutex.Unlock()
	assert.Equal(t, 1, fetches)
}

func TestCachingTileSourceCanceled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	tileSource := TileSourceFunc(func(ctx context.Context, source PrecisionSource, address TileAddress) ([]byte, error) {
		<-release
		return []byte("tile"), nil
	})

	cachingTileSource, err := NewCachingTileSource(tileSource)
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = cachingTileSource.Tile(ctx, testHighSource, TileAddress{})
	assert.IsError(t, err, context.Canceled)
}
