package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wirecache/wirecache/pkg/api"
	"github.com/wirecache/wirecache/pkg/config"
)

var tokenClientName string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the control API",
	Long: `Issue a signed bearer token using the api.auth_secret from the daemon
configuration. The token is printed to stdout for use with wirecachectl:

  wirecachectl connect --server http://localhost:8080 --token $(wirecache token)`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenClientName, "name", "wirecachectl", "Client name recorded in the token")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.API.AuthSecret == "" {
		return fmt.Errorf("api.auth_secret is not set; the API runs unauthenticated and needs no token")
	}

	tokens, err := api.NewTokenService(cfg.API.AuthSecret, cfg.API.TokenTTL)
	if err != nil {
		return err
	}

	token, err := tokens.Issue(tokenClientName)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
