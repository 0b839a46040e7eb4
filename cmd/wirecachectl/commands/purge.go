package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wirecache/wirecache/internal/cli/prompt"
)

var purgeForce bool

var purgeCmd = &cobra.Command{
	Use:   "purge <namespace>",
	Short: "Drop a cache namespace",
	Long: `Delete every cached entry in the named namespace. The namespace refills
on the next install or write-through.

Examples:
  wirecachectl purge static
  wirecachectl purge static --force`,
	Args: cobra.ExactArgs(1),
	RunE: runPurge,
}

func init() {
	purgeCmd.Flags().BoolVarP(&purgeForce, "force", "f", false, "Skip confirmation")
}

func runPurge(cmd *cobra.Command, args []string) error {
	namespace := args[0]

	confirmed, err := prompt.ConfirmWithForce(
		fmt.Sprintf("Delete all cached entries in namespace %q?", namespace), purgeForce)
	if err != nil {
		return err
	}
	if !confirmed {
		fmt.Println("Cancelled")
		return nil
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	if err := client.PurgeCache(namespace); err != nil {
		return err
	}

	fmt.Printf("Namespace %q purged\n", namespace)
	return nil
}
