package crosssection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrTileNotFound is returned by a TileSource when it has no tile for a
	// precision source and address.
	ErrTileNotFound = errors.New("tile not found")

	// ErrTileFetch is returned by a TileSource when a tile could not be
	// fetched for a reason other than it not existing.
	ErrTileFetch = errors.New("tile fetch failed")
)

// A TileSource returns raw tile data. It returns ErrTileNotFound if the tile
// does not exist.
type TileSource interface {
	Tile(ctx context.Context, source PrecisionSource, address TileAddress) ([]byte, error)
}

// A TileSourceFunc is a function that implements TileSource.
type TileSourceFunc func(ctx context.Context, source PrecisionSource, address TileAddress) ([]byte, error)

func (f TileSourceFunc) Tile(ctx context.Context, source PrecisionSource, address TileAddress) ([]byte, error) {
	return f(ctx, source, address)
}

// expandTemplate replaces the {source}, {z}, {x}, {y}, and {ext} placeholders
// in template.
func expandTemplate(template string, source PrecisionSource, address TileAddress) string {
	return strings.NewReplacer(
		"{source}", source.ID,
		"{z}", strconv.Itoa(address.Zoom),
		"{x}", strconv.Itoa(address.X),
		"{y}", strconv.Itoa(address.Y),
		"{ext}", source.Ext,
	).Replace(template)
}

func validateTemplate(template string) error {
	for _, placeholder := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(template, placeholder) {
			return fmt.Errorf("%s: placeholder %s not found", template, placeholder)
		}
	}
	return nil
}

// An HTTPTileSource fetches tiles over HTTP.
type HTTPTileSource struct {
	client      *http.Client
	urlTemplate string
	userAgent   string
}

// An HTTPTileSourceOption sets an option on an HTTPTileSource.
type HTTPTileSourceOption func(*HTTPTileSource)

// NewHTTPTileSource returns a new HTTPTileSource that fetches tiles from
// urlTemplate.
func NewHTTPTileSource(urlTemplate string, options ...HTTPTileSourceOption) (*HTTPTileSource, error) {
	s := &HTTPTileSource{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		urlTemplate: urlTemplate,
		userAgent:   "go-crosssection",
	}
	for _, option := range options {
		option(s)
	}
	if err := validateTemplate(s.urlTemplate); err != nil {
		return nil, err
	}
	return s, nil
}

// WithURLTemplate overrides the URL template.
func WithURLTemplate(urlTemplate string) HTTPTileSourceOption {
	return func(s *HTTPTileSource) {
		s.urlTemplate = urlTemplate
	}
}

// WithHTTPClient sets the HTTP client used to fetch tiles.
func WithHTTPClient(client *http.Client) HTTPTileSourceOption {
	return func(s *HTTPTileSource) {
		s.client = client
	}
}

// WithUserAgent sets the User-Agent header sent with each request.
func WithUserAgent(userAgent string) HTTPTileSourceOption {
	return func(s *HTTPTileSource) {
		s.userAgent = userAgent
	}
}

// URL returns the URL of the tile at address in source.
func (s *HTTPTileSource) URL(source PrecisionSource, address TileAddress) string {
	return expandTemplate(s.urlTemplate, source, address)
}

// Tile implements TileSource.
func (s *HTTPTileSource) Tile(ctx context.Context, source PrecisionSource, address TileAddress) ([]byte, error) {
	url := s.URL(source, address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrTileFetch, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent:
		return nil, ErrTileNotFound
	case resp.StatusCode < 200 || 300 <= resp.StatusCode:
		return nil, fmt.Errorf("%w: %s: %s", ErrTileFetch, url, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTileFetch, url, err)
	}
	return data, nil
}

// An FSTileSource reads tiles from a filesystem.
type FSTileSource struct {
	fsys            fs.FS
	filenamePattern string
}

// NewFSTileSource returns a new FSTileSource that reads tiles from fsys.
// filenamePattern uses the same placeholders as a URL template, e.g.
// {source}/{z}/{x}/{y}.{ext}.
func NewFSTileSource(fsys fs.FS, filenamePattern string) (*FSTileSource, error) {
	if err := validateTemplate(filenamePattern); err != nil {
		return nil, err
	}
	return &FSTileSource{
		fsys:            fsys,
		filenamePattern: filenamePattern,
	}, nil
}

// Tile implements TileSource.
func (s *FSTileSource) Tile(ctx context.Context, source PrecisionSource, address TileAddress) ([]byte, error) {
	filename := expandTemplate(s.filenamePattern, source, address)
	switch data, err := fs.ReadFile(s.fsys, filename); {
	case errors.Is(err, fs.ErrNotExist):
		return nil, ErrTileNotFound
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrTileFetch, err)
	default:
		return data, nil
	}
}
