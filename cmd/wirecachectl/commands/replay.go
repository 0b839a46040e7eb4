package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay queued offline writes now",
	RunE:  runReplay,
}

var offlineCmd = &cobra.Command{
	Use:       "offline <on|off>",
	Short:     "Toggle the daemon's connectivity assumption",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runOffline,
}

func runReplay(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	result, err := client.Replay()
	if err != nil {
		return err
	}

	if result.Remaining == 0 {
		fmt.Println("Queue drained")
	} else {
		fmt.Printf("Replay stopped with %d writes still queued\n", result.Remaining)
	}
	return nil
}

func runOffline(cmd *cobra.Command, args []string) error {
	var offline bool
	switch args[0] {
	case "on":
		offline = true
	case "off":
		offline = false
	default:
		return fmt.Errorf("invalid argument %q (expected on or off)", args[0])
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	if err := client.SetOffline(offline); err != nil {
		return err
	}

	if offline {
		fmt.Println("Daemon is now assuming offline; writes will be queued")
	} else {
		fmt.Println("Daemon is back online; queued writes replay shortly")
	}
	return nil
}
