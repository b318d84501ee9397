package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/bstardust/takeout-geotag/internal/exif"
	"github.com/spf13/cobra"
)

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <image>",
		Short: "Print the position and capture time stored in an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			d, err := exif.ExtractBytes(data)
			if err != nil {
				return fmt.Errorf("no readable EXIF data in %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "File:      %s\n", args[0])
			if d.GPS != nil {
				fmt.Fprintf(out, "Latitude:  %.6f\n", d.GPS.Latitude)
				fmt.Fprintf(out, "Longitude: %.6f\n", d.GPS.Longitude)
				fmt.Fprintf(out, "Altitude:  %.3f m\n", d.GPS.Altitude)
			} else {
				fmt.Fprintln(out, "Position:  none")
			}
			if d.DateTime != nil {
				fmt.Fprintf(out, "Taken:     %s\n", d.DateTime.Format(time.RFC3339))
			}
			if d.Make != "" || d.Model != "" {
				fmt.Fprintf(out, "Camera:    %s %s\n", d.Make, d.Model)
			}
			return nil
		},
	}
}
