package cmd

import (
	"fmt"
	"os"

	"bookgateway/internal/components/telemetry"
	"bookgateway/internal/config"
	"bookgateway/internal/platform"
	"bookgateway/internal/platform/zlibrary"

	"github.com/spf13/cobra"
)

var (
	verbose  bool
	cfg      config.Config
	registry *platform.Registry
)

var rootCmd = &cobra.Command{
	Use:   "bookgateway",
	Short: "bookgateway searches book platforms and serves the results as JSON.",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load(zlibrary.ID)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		telemetry.InitSlog(verbose || cfg.Debug)

		registry, err = newRegistry(cfg, telemetry.SlogAPI{})
		if err != nil {
			return err
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
