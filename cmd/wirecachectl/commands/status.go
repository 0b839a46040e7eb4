package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wirecache/wirecache/internal/cli/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show worker status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	printer, err := newPrinter()
	if err != nil {
		return err
	}

	status, err := client.GetStatus()
	if err != nil {
		return err
	}

	if printer.Format() != output.FormatTable {
		return printer.Print(status)
	}

	pairs := [][2]string{
		{"Worker", status.WorkerID},
		{"State", status.State},
		{"Version", fmt.Sprintf("%d", status.Version)},
	}
	if status.ActiveVersion != 0 {
		pairs = append(pairs, [2]string{"Active version", fmt.Sprintf("%d", status.ActiveVersion)})
	}
	pairs = append(pairs,
		[2]string{"Update policy", status.UpdatePolicy},
		[2]string{"Update available", fmt.Sprintf("%t", status.UpdateAvailable)},
		[2]string{"Offline", fmt.Sprintf("%t", status.Offline)},
		[2]string{"Queue depth", fmt.Sprintf("%d", status.QueueDepth)},
	)

	return output.SimpleTable(os.Stdout, pairs)
}
