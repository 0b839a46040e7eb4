package commands

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/wirecache/wirecache/internal/cli/connection"
	"github.com/wirecache/wirecache/pkg/apiclient"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Save the daemon connection",
	Long: `Verify and save the daemon URL (and optional bearer token) so later
commands do not need --server/--token.

Examples:
  # Unauthenticated local daemon
  wirecachectl connect --server http://localhost:8080

  # With a token issued by 'wirecache token'
  wirecachectl connect --server http://localhost:8080 --token <token>`,
	RunE: runConnect,
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Forget the saved daemon connection",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := connection.NewStore()
		if err != nil {
			return err
		}
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Println("Connection removed")
		return nil
	},
}

func runConnect(cmd *cobra.Command, args []string) error {
	if flagServer == "" {
		return fmt.Errorf("--server is required")
	}

	parsed, err := url.Parse(flagServer)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "http"
	}
	server := parsed.String()

	// Verify the daemon answers before saving.
	client := apiclient.New(server)
	if flagToken != "" {
		client.SetToken(flagToken)
	}
	status, err := client.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to reach daemon at %s: %w", server, err)
	}

	store, err := connection.NewStore()
	if err != nil {
		return err
	}
	if err := store.Save(&connection.Connection{ServerURL: server, Token: flagToken}); err != nil {
		return err
	}

	fmt.Printf("Connected to %s (worker %s, state %s)\n", server, status.WorkerID, status.State)
	return nil
}
