package commands

import (
	"database/sql"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"kevoctl/lib/boltstore"
	"kevoctl/lib/osutil"

	_ "modernc.org/sqlite"
)

var historyDb *string

func init() {
	historyDb = historyCmd.Flags().String(
		"db", "bolt_history.db",
		"The database bolt state observations were recorded to.",
	)
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history <lock-id>",
	Short: "Prints the recorded bolt state history of a lock.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sqlite, err := sql.Open("sqlite", *historyDb)
		if err != nil {
			osutil.Fatal("open history database", err)
		}
		defer sqlite.Close()
		store, err := boltstore.NewStore(sqlite)
		if err != nil {
			osutil.Fatal("initialize history database", err)
		}

		snapshots, err := store.Pull(cmd.Context(), args[0])
		if err != nil {
			osutil.Fatal("failed to read history", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Time", "Name", "State"})

		for _, s := range snapshots {
			t.AppendRow(table.Row{s.Time.Format(time.RFC3339), s.Name, s.State})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
