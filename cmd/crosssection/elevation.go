package main

import (
	"errors"
	"fmt"
	"math"

	"github.com/spf13/cobra"
)

var elevationCmd = &cobra.Command{
	Use:   "elevation",
	Short: "Print the elevation at a point",
	Args:  cobra.NoArgs,
	RunE:  runElevation,
}

func init() {
	elevationCmd.Flags().String("at", "", "Point as latitude,longitude")
	rootCmd.AddCommand(elevationCmd)
}

func runElevation(cmd *cobra.Command, args []string) error {
	cfg := LoadConfig(cmd)
	at, _ := cmd.Flags().GetString("at")
	if at == "" {
		return errors.New("--at is required")
	}

	parsePoint, err := newPointParser(cfg)
	if err != nil {
		return err
	}
	point, err := parsePoint(at)
	if err != nil {
		return err
	}

	profiler, closeFunc, err := newProfiler(cfg)
	if err != nil {
		return err
	}
	defer closeFunc() //nolint:errcheck

	elevation, err := profiler.Elevation(cmd.Context(), point)
	if err != nil {
		return err
	}
	if math.IsNaN(elevation) {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "null")
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), formatFloat(elevation))
	return err
}
