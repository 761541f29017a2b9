package cmd

import (
	"github.com/spf13/cobra"
)

var (
	version = "dev"

	// Global flags shared by every subcommand.
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:     "auroracore",
	Short:   "Aurora-aware connectivity wrapper core",
	Version: version,
	Long: `auroracore runs the cluster topology monitor, failover
coordinator, and limitless router service described by this module,
serving a read-only diagnostics surface over the result.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file (operational defaults; connection attributes are set via flags/env)")
	rootCmd.AddCommand(serveCmd)
}
