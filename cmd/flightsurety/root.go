package main

import (
	"github.com/spf13/cobra"

	"flightsurety/internal/platform/config"
)

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "flightsurety",
		Short: "Flight delay insurance ledger",
		Long: `flightsurety runs the airline membership and insurance escrow ledger.

Settings come from an optional config file and FLIGHTSURETY_* environment
variables, e.g. FLIGHTSURETY_LEDGER_OWNER or FLIGHTSURETY_SERVER_ADDR.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file (yaml, toml or json)")

	load := func() (config.Config, error) {
		return config.Load(configFile)
	}
	root.AddCommand(
		newServeCmd(load),
		newFlightKeyCmd(),
		newTokenCmd(load),
	)
	return root
}
