package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"kevoctl/lib/osutil"
	"kevoctl/lib/scrapers/kevo"
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(unlockCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status <lock-id>",
	Short: "Prints the current bolt state of a lock.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient(cmd.Context())
		defer client.Close()

		lock := kevo.NewLock(client, args[0])
		state, err := lock.GetBoltState(cmd.Context())
		if err != nil {
			osutil.Fatal("failed to read bolt state", err)
		}
		fmt.Println(state)
	},
}

var lockCmd = &cobra.Command{
	Use:   "lock <lock-id>",
	Short: "Locks a lock and waits for the bolt to report locked.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient(cmd.Context())
		defer client.Close()

		lock := kevo.NewLock(client, args[0])
		err := lock.Lock(cmd.Context())
		if err != nil {
			osutil.Fatal("failed to lock", err)
		}
		fmt.Println(lock)
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock <lock-id>",
	Short: "Unlocks a lock and waits for the bolt to report unlocked.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient(cmd.Context())
		defer client.Close()

		lock := kevo.NewLock(client, args[0])
		err := lock.Unlock(cmd.Context())
		if err != nil {
			osutil.Fatal("failed to unlock", err)
		}
		fmt.Println(lock)
	},
}
