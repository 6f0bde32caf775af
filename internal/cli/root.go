// Package cli implements the manualsmap command line: the controller server
// plus a few one-shot commands for poking at the grid and the backend.
package cli

import (
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"manualsmap/internal/backend"
	"manualsmap/internal/config"
)

// loader resolves the configuration once flags have been parsed.
type loader func() (*config.Config, error)

// NewRootCmd builds the command tree. Each call gets its own viper instance
// so commands can be built and run repeatedly in tests.
//
// Go Learning Note — cobra + viper:
// Flags are declared on cobra commands and bound to viper keys with
// BindPFlag. viper then resolves each key from the flag if it was set, the
// environment, the config file, and finally the default, in that order.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	var configPath string

	root := &cobra.Command{
		Use:          "manualsmap",
		Short:        "Map controller for the parked-cars map",
		Long:         `Serves the map controller API and offers one-shot commands against the parked-cars backend.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (yaml, json or toml)")
	root.PersistentFlags().String("backend-url", "", "base URL of the parked-cars API")
	_ = v.BindPFlag("backend.base_url", root.PersistentFlags().Lookup("backend-url"))

	load := func() (*config.Config, error) {
		return config.Load(v, configPath)
	}

	root.AddCommand(
		newServeCmd(v, load),
		newSegmentCmd(v, load),
		newBlocksCmd(load),
		newCarsCmd(load),
	)
	return root
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func newClient(cfg *config.Config) (*backend.Client, error) {
	return backend.NewClient(cfg.Backend, nil)
}
