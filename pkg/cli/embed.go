package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bstardust/takeout-geotag/internal/geo"
	"github.com/bstardust/takeout-geotag/internal/logger"
	"github.com/bstardust/takeout-geotag/pkg/geotag"
	"github.com/spf13/cobra"
)

type embedOptions struct {
	lat, lon, alt float64
	when          string
	output        string
}

func newEmbedCommand() *cobra.Command {
	opts := &embedOptions{}
	cmd := &cobra.Command{
		Use:   "embed [flags] <image>",
		Short: "Write a position and capture time into one JPEG or PNG file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmbed(opts, args[0])
		},
	}

	cmd.Flags().Float64Var(&opts.lat, "lat", 0, "Latitude in decimal degrees (required)")
	cmd.Flags().Float64Var(&opts.lon, "lon", 0, "Longitude in decimal degrees (required)")
	cmd.Flags().Float64Var(&opts.alt, "alt", 0, "Altitude in meters, negative below sea level")
	cmd.Flags().StringVar(&opts.when, "time", "", "Capture time as Unix seconds or RFC 3339 (required)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file (default: rewrite the image in place)")

	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("lon")
	cmd.MarkFlagRequired("time")

	return cmd
}

func runEmbed(opts *embedOptions, src string) error {
	pos := geo.Position{Latitude: opts.lat, Longitude: opts.lon, Altitude: opts.alt}
	if err := validatePosition(pos); err != nil {
		return err
	}
	t, err := parseTime(opts.when)
	if err != nil {
		return err
	}

	if err := geotag.New().EmbedFile(src, opts.output, pos, t); err != nil {
		return err
	}

	dst := opts.output
	if dst == "" {
		dst = src
	}
	logger.Info("Wrote %s taken at %s to %s", pos, t.Format(time.RFC3339), dst)
	return nil
}

func validatePosition(pos geo.Position) error {
	if pos.Latitude < -90 || pos.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", pos.Latitude)
	}
	if pos.Longitude < -180 || pos.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", pos.Longitude)
	}
	return nil
}

// parseTime accepts Unix seconds, as Takeout stores them, or RFC 3339
func parseTime(s string) (time.Time, error) {
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: use Unix seconds or RFC 3339", s)
	}
	return t, nil
}
