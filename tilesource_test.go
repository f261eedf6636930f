package crosssection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/alecthomas/assert/v2"
)

func TestExpandTemplate(t *testing.T) {
	source := PrecisionSource{ID: "dem5a_png", Ext: "png"}
	address := TileAddress{Zoom: 15, X: 29079, Y: 12944}
	assert.Equal(t,
		"https://cyberjapandata.gsi.go.jp/xyz/dem5a_png/15/29079/12944.png",
		expandTemplate(GSIURLTemplate, source, address),
	)
	assert.Equal(t,
		"tiles/15/29079/12944.png",
		expandTemplate("tiles/{z}/{x}/{y}.png", source, address),
	)
}

func TestValidateTemplate(t *testing.T) {
	assert.NoError(t, validateTemplate(GSIURLTemplate))
	assert.Error(t, validateTemplate("https://example.com/{z}/{x}.png"))
	_, err := NewHTTPTileSource("https://example.com/{source}")
	assert.Error(t, err)
	_, err = NewFSTileSource(fstest.MapFS{}, "{source}/{z}/{x}.png")
	assert.Error(t, err)
}

func TestHTTPTileSource(t *testing.T) {
	tileData := []byte("tile data")
	var mutex sync.Mutex
	var userAgents []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mutex.Lock()
		userAgents = append(userAgents, r.UserAgent())
		mutex.Unlock()
		switch r.URL.Path {
		case "/high/15/1/2.png":
			_, _ = w.Write(tileData)
		case "/high/15/1/3.png":
			w.WriteHeader(http.StatusNoContent)
		case "/high/15/1/4.png":
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	httpTileSource, err := NewHTTPTileSource(server.URL+"/{source}/{z}/{x}/{y}.{ext}",
		WithHTTPClient(server.Client()),
		WithUserAgent("test-agent"),
	)
	assert.NoError(t, err)
	assert.Equal(t, server.URL+"/high/15/1/2.png", httpTileSource.URL(testHighSource, TileAddress{Zoom: 15, X: 1, Y: 2}))

	actual, err := httpTileSource.Tile(t.Context(), testHighSource, TileAddress{Zoom: 15, X: 1, Y: 2})
	assert.NoError(t, err)
	assert.Equal(t, tileData, actual)

	_, err = httpTileSource.Tile(t.Context(), testHighSource, TileAddress{Zoom: 15, X: 1, Y: 3})
	assert.IsError(t, err, ErrTileNotFound)

	_, err = httpTileSource.Tile(t.Context(), testHighSource, TileAddress{Zoom: 15, X: 1, Y: 4})
	assert.IsError(t, err, ErrTileFetch)

	_, err = httpTileSource.Tile(t.Context(), testLowSource, TileAddress{Zoom: 15, X: 1, Y: 2})
	assert.IsError(t, err, ErrTileNotFound)

	mutex.Lock()
	defer mutex.Unlock()
	assert.Equal(t, []string{"test-agent", "test-agent", "test-agent", "test-agent"}, userAgents)
}

func TestHTTPTileSourceWithURLTemplate(t *testing.T) {
	httpTileSource, err := NewHTTPTileSource(GSIURLTemplate, WithURLTemplate("https://example.com/{z}/{x}/{y}.webp"))
	assert.NoError(t, err)
	assert.Equal(t, "https://example.com/1/0/1.webp", httpTileSource.URL(testHighSource, TileAddress{Zoom: 1, X: 0, Y: 1}))
}

func TestHTTPTileSourceTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	httpTileSource, err := NewHTTPTileSource(url + "/{z}/{x}/{y}.png")
	assert.NoError(t, err)
	_, err = httpTileSource.Tile(t.Context(), testHighSource, TileAddress{})
	assert.IsError(t, err, ErrTileFetch)
	assert.False(t, errors.Is(err, ErrTileNotFound))
}

func TestHTTPTileSourceCanceled(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	httpTileSource, err := NewHTTPTileSource(server.URL + "/{z}/{x}/{y}.png")
	assert.NoError(t, err)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = httpTileSource.Tile(ctx, testHighSource, TileAddress{})
	assert.IsError(t, err, context.Canceled)
}

func TestFSTileSource(t *testing.T) {
	fsys := fstest.MapFS{
		"high/15/1/2.png": &fstest.MapFile{Data: []byte("high tile")},
		"low/15/1/2.png":  &fstest.MapFile{Data: []byte("low tile")},
	}
	fsTileSource, err := NewFSTileSource(fsys, "{source}/{z}/{x}/{y}.{ext}")
	assert.NoError(t, err)

	actual, err := fsTileSource.Tile(t.Context(), testHighSource, TileAddress{Zoom: 15, X: 1, Y: 2})
	assert.NoError(t, err)
	assert.Equal(t, []byte("high tile"), actual)

	actual, err = fsTileSource.Tile(t.Context(), testLowSource, TileAddress{Zoom: 15, X: 1, Y: 2})
	assert.NoError(t, err)
	assert.Equal(t, []byte("low tile"), actual)

	_, err = fsTileSource.Tile(t.Context(), testHighSource, TileAddress{Zoom: 15, X: 2, Y: 1})
	assert.IsError(t, err, ErrTileNotFound)
}

// newTestMBTiles creates an MBTiles file containing tiles, which maps XYZ
// addresses to tile data.
func newTestMBTiles(t *testing.T, name string, tiles map[TileAddress][]byte) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), name+".mbtiles")
	db, err := sql.Open("sqlite3", filename)
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, db.Close())
	}()

	for _, statement := range []string{
		"CREATE TABLE metadata (name TEXT, value TEXT)",
		"CREATE TABLE tiles (zoom_level INTEGER, tile_column INTEGER, tile_row INTEGER, tile_data BLOB)",
		"CREATE UNIQUE INDEX tile_index ON tiles (zoom_level, tile_column, tile_row)",
		fmt.Sprintf("INSERT INTO metadata (name, value) VALUES ('name', '%s'), ('format', 'png')", name),
	} {
		_, err := db.Exec(statement)
		assert.NoError(t, err)
	}
	for address, data := range tiles {
		_, err := db.Exec(
			"INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)",
			address.Zoom, address.X, (1<<address.Zoom)-1-address.Y, data,
		)
		assert.NoError(t, err)
	}
	return filename
}

func TestMBTilesTileSource(t *testing.T) {
	address := TileAddress{Zoom: 15, X: 29079, Y: 12944}
	highFilename := newTestMBTiles(t, "high", map[TileAddress][]byte{
		address:                 []byte("high tile"),
		{Zoom: 15, X: 1, Y: 1}: {},
	})

	mbTilesTileSource, err := NewMBTilesTileSource(map[string]string{
		testHighSource.ID: highFilename,
	})
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, mbTilesTileSource.Close())
	}()

	actual, err := mbTilesTileSource.Tile(t.Context(), testHighSource, address)
	assert.NoError(t, err)
	assert.Equal(t, []byte("high tile"), actual)

	// Empty tiles are missing.
	_, err = mbTilesTileSource.Tile(t.Context(), testHighSource, TileAddress{Zoom: 15, X: 1, Y: 1})
	assert.IsError(t, err, ErrTileNotFound)

	_, err = mbTilesTileSource.Tile(t.Context(), testHighSource, TileAddress{Zoom: 15, X: 29079, Y: 12945})
	assert.IsError(t, err, ErrTileNotFound)

	_, err = mbTilesTileSource.Tile(t.Context(), testLowSource, address)
	assert.IsError(t, err, ErrTileNotFound)

	_, err = mbTilesTileSource.Tile(t.Context(), testHighSource, TileAddress{Zoom: 1, X: 2, Y: 0})
	assert.IsError(t, err, ErrTileNotFound)

	metadata, err := mbTilesTileSource.Metadata(t.Context(), testHighSource)
	assert.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "high", "format": "png"}, metadata)
}

func TestMBTilesTileSourceMissingFile(t *testing.T) {
	_, err := NewMBTilesTileSource(map[string]string{
		testHighSource.ID: filepath.Join(t.TempDir(), "missing.mbtiles"),
	})
	assert.Error(t, err)
}
