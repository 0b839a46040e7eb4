package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wirecache/wirecache/pkg/apiclient"
)

var applyUpdateCmd = &cobra.Command{
	Use:   "apply-update",
	Short: "Activate the waiting worker version",
	Long: `Promote the waiting worker version to active. The retiring version is
marked redundant and connected clients are told to reload once.`,
	RunE: runApplyUpdate,
}

func runApplyUpdate(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	if err := client.ApplyUpdate(); err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.IsConflict() {
			return fmt.Errorf("no update is waiting")
		}
		return err
	}

	status, err := client.GetStatus()
	if err != nil {
		fmt.Println("Update applied")
		return nil
	}
	fmt.Printf("Update applied; version %d is now active\n", status.ActiveVersion)
	return nil
}
