package commands

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"kevoctl/lib/osutil"
)

func init() {
	rootCmd.AddCommand(locksCmd)
}

var locksCmd = &cobra.Command{
	Use:   "locks",
	Short: "Prints the locks registered to your account.",
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient(cmd.Context())
		defer client.Close()

		locks, err := client.GetLocks(cmd.Context())
		if err != nil {
			osutil.Fatal("failed to list locks", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Name", "State"})

		for _, l := range locks {
			t.AppendRow(table.Row{l.ID, l.Name, l.State})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
