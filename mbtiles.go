package crosssection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// An MBTilesTileSource reads tiles from MBTiles files, one per precision
// source.
type MBTilesTileSource struct {
	mutex sync.Mutex
	dbs   map[string]*sql.DB
}

// NewMBTilesTileSource opens the MBTiles files in filenames, which maps
// precision source IDs to filenames. The returned MBTilesTileSource must be
// closed after use.
func NewMBTilesTileSource(filenames map[string]string) (*MBTilesTileSource, error) {
	s := &MBTilesTileSource{
		dbs: make(map[string]*sql.DB, len(filenames)),
	}
	for sourceID, filename := range filenames {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", filename))
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		if err := db.Ping(); err != nil {
			_ = db.Close()
			_ = s.Close()
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		s.dbs[sourceID] = db
	}
	return s, nil
}

// Close closes all MBTiles files.
func (s *MBTilesTileSource) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	errs := make([]error, 0, len(s.dbs))
	for sourceID, db := range s.dbs {
		errs = append(errs, db.Close())
		delete(s.dbs, sourceID)
	}
	return errors.Join(errs...)
}

// Metadata returns the metadata table of the MBTiles file for source.
func (s *MBTilesTileSource) Metadata(ctx context.Context, source PrecisionSource) (map[string]string, error) {
	db, ok := s.db(source)
	if !ok {
		return nil, ErrTileNotFound
	}

	rows, err := db.QueryContext(ctx, "SELECT name, value FROM metadata")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metadata := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		metadata[name] = value
	}
	return metadata, rows.Err()
}

// Tile implements TileSource.
func (s *MBTilesTileSource) Tile(ctx context.Context, source PrecisionSource, address TileAddress) ([]byte, error) {
	db, ok := s.db(source)
	if !ok || !address.Valid() {
		return nil, ErrTileNotFound
	}

	// MBTiles rows are in TMS order.
	row := (1 << address.Zoom) - 1 - address.Y

	var data []byte
	switch err := db.QueryRowContext(ctx,
		"SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?",
		address.Zoom, address.X, row,
	).Scan(&data); {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrTileNotFound
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrTileFetch, err)
	case len(data) == 0:
		return nil, ErrTileNotFound
	default:
		return data, nil
	}
}

func (s *MBTilesTileSource) db(source PrecisionSource) (*sql.DB, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	db, ok := s.dbs[source.ID]
	return db, ok
}
