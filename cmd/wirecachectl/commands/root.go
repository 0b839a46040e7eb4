// Package commands implements the wirecachectl CLI.
package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wirecache/wirecache/internal/cli/connection"
	"github.com/wirecache/wirecache/internal/cli/output"
	"github.com/wirecache/wirecache/pkg/apiclient"
)

var (
	flagServer string
	flagToken  string
	flagOutput string
)

var rootCmd = &cobra.Command{
	Use:   "wirecachectl",
	Short: "Control client for the wirecache daemon",
	Long: `wirecachectl talks to a running wirecache daemon over its control API.

The server URL and bearer token are resolved in order from flags,
WIRECACHE_SERVER / WIRECACHE_TOKEN environment variables, and the saved
connection (see 'wirecachectl connect').`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "Daemon URL (e.g. http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "Bearer token for the control API")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "Output format (table, json, yaml)")

	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cacheSizeCmd)
	rootCmd.AddCommand(warmCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(applyUpdateCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(offlineCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newClient resolves the server URL and token and builds an API client.
func newClient() (*apiclient.Client, error) {
	server := flagServer
	token := flagToken

	if server == "" {
		server = os.Getenv("WIRECACHE_SERVER")
	}
	if token == "" {
		token = os.Getenv("WIRECACHE_TOKEN")
	}

	if server == "" || token == "" {
		store, err := connection.NewStore()
		if err != nil {
			return nil, err
		}
		conn, err := store.Load()
		if err != nil && !errors.Is(err, connection.ErrNotConnected) {
			return nil, err
		}
		if conn != nil {
			if server == "" {
				server = conn.ServerURL
			}
			if token == "" {
				token = conn.Token
			}
		}
	}

	if server == "" {
		return nil, fmt.Errorf("no server URL\n\n" +
			"Specify one:\n" +
			"  wirecachectl --server http://localhost:8080 <command>\n" +
			"Or save it:\n" +
			"  wirecachectl connect --server http://localhost:8080")
	}

	client := apiclient.New(server)
	if token != "" {
		client.SetToken(token)
	}
	return client, nil
}

// newPrinter builds the output printer from the --output flag.
func newPrinter() (*output.Printer, error) {
	format, err := output.ParseFormat(flagOutput)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(os.Stdout, format, true), nil
}
