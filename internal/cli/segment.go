package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"manualsmap/internal/domain/entities"
	"manualsmap/internal/geo"
)

func newSegmentCmd(v *viper.Viper, load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segment LAT LON",
		Short: "Print the map block a coordinate falls in",
		Long: `Print the cell key, origin and polygon of the map block containing a coordinate.
Put -- before the coordinate when it starts with a minus sign.`,
		Example: "  manualsmap segment 47.6249 -122.3469\n  manualsmap segment -- -33.8688 151.2093",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			lat, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("latitude %q: %w", args[0], err)
			}
			lon, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("longitude %q: %w", args[1], err)
			}

			c := entities.NewCoordinate(lat, lon)
			origin, err := geo.CellOrigin(c, cfg.Map.BlockSize)
			if err != nil {
				return err
			}
			key, err := geo.CellKey(c, cfg.Map.BlockSize)
			if err != nil {
				return err
			}
			polygon, err := geo.CellPolygon(origin, cfg.Map.BlockSize)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "key     %s\n", key)
			fmt.Fprintf(out, "origin  %.6f,%.6f\n", origin.Latitude, origin.Longitude)
			for i, corner := range polygon {
				fmt.Fprintf(out, "corner%d %.6f,%.6f\n", i, corner.Latitude, corner.Longitude)
			}
			return nil
		},
	}
	// Positional values such as -122.34 must not be read as flags.
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().Float64("block-size", 0, "map block edge length in degrees (default from config)")
	_ = v.BindPFlag("map.block_size", cmd.Flags().Lookup("block-size"))
	return cmd
}
