package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/twpayne/go-crosssection"
)

var (
	logger          = slog.New(slog.DiscardHandler)
	shutdownTracing = func(context.Context) error { return nil }
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "crosssection",
	Short: "Elevation cross-sections from slippy elevation tiles",
	Long: `crosssection samples elevations along the line between two points.

Tiles are read from the Geospatial Information Authority of Japan by default,
or from any XYZ URL template, directory, or set of MBTiles files.

Configuration can be set via CROSSSECTION_* environment variables or
command-line flags. Flags take precedence over environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := LoadConfig(cmd)
		var err error
		logger, err = newLogger(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}
		if cfg.Trace {
			shutdownTracing, err = initTracing(cmd.Context())
			if err != nil {
				return err
			}
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), 5*time.Second)
		defer cancel()
		return shutdownTracing(ctx)
	},
}

// Execute runs the root command, exiting on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("url-template", crosssection.GSIURLTemplate, "URL template for downloading tiles")
	rootCmd.PersistentFlags().String("tiles-dir", "", "Directory of tiles, laid out as {source}/{z}/{x}/{y}.{ext}")
	rootCmd.PersistentFlags().String("mbtiles", "", "Comma-separated list of source=filename MBTiles files")
	rootCmd.PersistentFlags().String("sources", defaultSources(), "Comma-separated list of precision sources, highest priority first")
	rootCmd.PersistentFlags().Int("cache-size", 256, "Number of raw tiles to cache")
	rootCmd.PersistentFlags().Int("max-zoom", crosssection.DefaultMaxZoom, "Maximum zoom level")
	rootCmd.PersistentFlags().Int("max-depth", crosssection.DefaultMaxDepth, "Bisection depth, profiles have 2^depth+1 points")
	rootCmd.PersistentFlags().Int("concurrency", crosssection.DefaultConcurrency, "Maximum concurrent tile loads per profile")
	rootCmd.PersistentFlags().String("crs", "", "CRS of input coordinates, e.g. epsg:6677 (default latitude,longitude)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, or error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text or json)")
	rootCmd.PersistentFlags().Bool("trace", false, "Write traces to stderr")
}

func defaultSources() string {
	ids := make([]string, 0, len(crosssection.GSIPrecisionSources))
	for _, source := range crosssection.GSIPrecisionSources {
		ids = append(ids, source.ID)
	}
	return strings.Join(ids, ",")
}

// newLogger returns a new logger that writes to stderr.
func newLogger(level, format string) (*slog.Logger, error) {
	var slogLevel slog.Level
	if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("%s: invalid log level", level)
	}
	options := &slog.HandlerOptions{
		Level: slogLevel,
	}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, options)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(os.Stderr, options)), nil
	default:
		return nil, fmt.Errorf("%s: invalid log format", format)
	}
}

// initTracing installs a tracer provider that writes spans to stderr. It
// returns a function that flushes and stops the tracer provider.
func initTracing(ctx context.Context) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(os.Stderr),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", "crosssection"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	return func(ctx context.Context) error {
		if err := tracerProvider.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}, nil
}
