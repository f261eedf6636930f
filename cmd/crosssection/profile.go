package main

import (
	"errors"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Print the elevation profile between two points",
	Args:  cobra.NoArgs,
	RunE:  runProfile,
}

func init() {
	profileCmd.Flags().String("from", "", "Start point as latitude,longitude")
	profileCmd.Flags().String("to", "", "End point as latitude,longitude")
	profileCmd.Flags().String("format", formatJSON, "Output format (json, geojson, or csv)")
	rootCmd.AddCommand(profileCmd)
}

func runProfile(cmd *cobra.Command, args []string) error {
	cfg := LoadConfig(cmd)
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	format, _ := cmd.Flags().GetString("format")
	if from == "" || to == "" {
		return errors.New("--from and --to are required")
	}
	if err := validateFormat(format); err != nil {
		return err
	}

	parsePoint, err := newPointParser(cfg)
	if err != nil {
		return err
	}
	a, err := parsePoint(from)
	if err != nil {
		return err
	}
	b, err := parsePoint(to)
	if err != nil {
		return err
	}

	profiler, closeFunc, err := newProfiler(cfg)
	if err != nil {
		return err
	}
	defer closeFunc() //nolint:errcheck

	profile, err := profiler.BuildProfile(cmd.Context(), a, b)
	if err != nil {
		return err
	}
	return writeProfile(cmd.OutOrStdout(), profile, format)
}
