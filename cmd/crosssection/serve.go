package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/twpayne/go-crosssection"
)

const (
	readTimeout    = 5 * time.Second
	writeTimeout   = 60 * time.Second
	idleTimeout    = 120 * time.Second

	defaultRequestTimeout = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP API server",
	Long: `Start an HTTP server that provides endpoints for:
  - /profile?from=lat,lon&to=lat,lon&format=json - Elevation profile
  - /elevation?at=lat,lon - Elevation at a point
  - /health - Health check
  - /metrics - Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on")
	rootCmd.AddCommand(serveCmd)
}

// A profileBuilder builds profiles and point elevations.
type profileBuilder interface {
	BuildProfile(ctx context.Context, a, b crosssection.GeoPoint) (*crosssection.Profile, error)
	Elevation(ctx context.Context, point crosssection.GeoPoint) (float64, error)
}

type server struct {
	profiler       profileBuilder
	parsePoint     func(string) (crosssection.GeoPoint, error)
	logger         *slog.Logger
	requestTimeout time.Duration
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /profile", s.handleProfile)
	mux.HandleFunc("GET /elevation", s.handleElevation)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *server) handleProfile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := s.parsePoint(q.Get("from"))
	if err != nil {
		http.Error(w, "invalid from: "+err.Error(), http.StatusBadRequest)
		return
	}
	to, err := s.parsePoint(q.Get("to"))
	if err != nil {
		http.Error(w, "invalid to: "+err.Error(), http.StatusBadRequest)
		return
	}
	format := q.Get("format")
	if format == "" {
		format = formatJSON
	}
	if err := validateFormat(format); err != nil {
		http.Error(w, "invalid format", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	profile, err := s.profiler.BuildProfile(ctx, from, to)
	if err != nil {
		s.error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType(format))
	if err := writeProfile(w, profile, format); err != nil {
		s.logger.WarnContext(ctx, "write profile", "err", err)
	}
}

func (s *server) handleElevation(w http.ResponseWriter, r *http.Request) {
	at, err := s.parsePoint(r.URL.Query().Get("at"))
	if err != nil {
		http.Error(w, "invalid at: "+err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	elevation, err := s.profiler.Elevation(ctx, at)
	if err != nil {
		s.error(w, r, err)
		return
	}

	response := struct {
		Latitude  float64  `json:"latitude"`
		Longitude float64  `json:"longitude"`
		Elevation *float64 `json:"elevation"`
	}{
		Latitude:  at.Latitude,
		Longitude: at.Longitude,
	}
	if !math.IsNaN(elevation) {
		response.Elevation = &elevation
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.WarnContext(ctx, "write elevation", "err", err)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *server) error(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, crosssection.ErrInvalidCoordinate):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	default:
		s.logger.ErrorContext(r.Context(), "request failed", "url", r.URL.String(), "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := LoadConfig(cmd)
	addr := getConfigString(cmd, "addr", "CROSSSECTION_ADDR", ":8080")

	parsePoint, err := newPointParser(cfg)
	if err != nil {
		return err
	}
	profiler, closeFunc, err := newProfiler(cfg)
	if err != nil {
		return err
	}
	defer closeFunc() //nolint:errcheck

	s := &server{
		profiler:       profiler,
		parsePoint:     parsePoint,
		logger:         logger,
		requestTimeout: defaultRequestTimeout,
	}

	ctx := cmd.Context()
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
