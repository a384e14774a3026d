package commands

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"kevoctl/lib/boltstore"
	"kevoctl/lib/osutil"
	"kevoctl/lib/scrapers/kevo"
	"kevoctl/lib/telemetry"

	_ "modernc.org/sqlite"
)

var watchDb *string
var watchInterval *time.Duration

func init() {
	watchDb = watchCmd.Flags().String(
		"db", "bolt_history.db",
		"The database to record bolt state observations to.",
	)
	watchInterval = watchCmd.Flags().Duration(
		"interval", time.Minute*5,
		"How often to poll lock states.",
	)
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Polls the state of every lock on an interval and records the history.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		sqlite, err := sql.Open("sqlite", *watchDb)
		if err != nil {
			osutil.Fatal("open history database", err)
		}
		defer sqlite.Close()
		store, err := boltstore.NewStore(sqlite)
		if err != nil {
			osutil.Fatal("initialize history database", err)
		}

		client := createClient(ctx)
		defer client.Close()

		telemetry.InstrumentPerfStats(ctx)

		recordOnce(ctx, client, store)
		ticker := time.NewTicker(*watchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				recordOnce(ctx, client, store)
			case <-ctx.Done():
				return
			}
		}
	},
}

func recordOnce(ctx context.Context, client *kevo.Client, store boltstore.Store) {
	locks, err := client.GetLocks(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list locks", "err", err)
		return
	}

	observations := make([]boltstore.Observation, len(locks))
	for i, l := range locks {
		observations[i] = boltstore.Observation{
			LockId: l.ID,
			Name:   l.Name,
			State:  string(l.State),
		}
		slog.InfoContext(ctx, "observed", "lock", l.Name, "state", l.State)
	}

	err = store.Push(ctx, time.Now(), observations)
	if err != nil {
		slog.ErrorContext(ctx, "failed to record observations", "err", err)
	}
}
