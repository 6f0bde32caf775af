package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"manualsmap/internal/backend"
	"manualsmap/internal/domain/entities"
	"manualsmap/internal/session"
)

type blocksOptions struct {
	lat, lon         float64
	latSpan, lonSpan float64
	selectID         int
}

func newBlocksCmd(load loader) *cobra.Command {
	var opts blocksOptions
	cmd := &cobra.Command{
		Use:   "blocks",
		Short: "Sync the overlays of one viewport and print them as GeoJSON",
		Long: `Run a single region-change-end for a viewport against the backend and print
the resulting map-block overlays as a GeoJSON FeatureCollection. Unset
viewport flags fall back to the configured initial region.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			client, err := newClient(cfg)
			if err != nil {
				return err
			}
			validator, err := backend.NewSchemaValidator()
			if err != nil {
				return err
			}

			region := entities.NewRegion(cfg.Map.InitialLatitude, cfg.Map.InitialLongitude, cfg.Map.InitialSpan, cfg.Map.InitialSpan)
			flags := cmd.Flags()
			if flags.Changed("lat") {
				region.Center.Latitude = opts.lat
			}
			if flags.Changed("lon") {
				region.Center.Longitude = opts.lon
			}
			if flags.Changed("lat-span") {
				region.Span.LatitudeDelta = opts.latSpan
			}
			if flags.Changed("lon-span") {
				region.Span.LongitudeDelta = opts.lonSpan
			}

			s := session.NewFactory(client, validator, cfg.Map).New("cli", region)
			defer s.Close()

			result, err := s.MoveTo(cmd.Context(), region)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d overlays\n", result.State, result.Overlays)

			if opts.selectID != 0 {
				selected, err := s.Sync.Select(cmd.Context(), opts.selectID)
				if err != nil {
					return err
				}
				for _, car := range selected.Cars {
					fmt.Fprintf(cmd.ErrOrStderr(), "block %d: %s\n", selected.BlockID, car.Title())
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s.Map.FeatureCollection())
		},
	}
	cmd.Flags().Float64Var(&opts.lat, "lat", 0, "viewport center latitude")
	cmd.Flags().Float64Var(&opts.lon, "lon", 0, "viewport center longitude")
	cmd.Flags().Float64Var(&opts.latSpan, "lat-span", 0, "viewport latitude span in degrees")
	cmd.Flags().Float64Var(&opts.lonSpan, "lon-span", 0, "viewport longitude span in degrees")
	cmd.Flags().IntVar(&opts.selectID, "select", 0, "also select this block and list its cars")
	return cmd
}
