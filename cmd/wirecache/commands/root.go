// Package commands implements the wirecache daemon CLI.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "wirecache",
	Short: "Network-interception caching daemon",
	Long: `wirecache is a caching daemon that answers intercepted requests from a
durable versioned cache, falls back to the network per configurable
strategies, and queues offline writes for ordered replay.

Configuration is read from a YAML file (default:
$XDG_CONFIG_HOME/wirecache/config.yaml) and can be overridden with
WIRECACHE_* environment variables, e.g. WIRECACHE_LOGGING_LEVEL=DEBUG.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wirecache %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"Path to config file (default: $XDG_CONFIG_HOME/wirecache/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(schemaCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
