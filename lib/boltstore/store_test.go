package boltstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kevoctl/lib/telemetry"

	_ "modernc.org/sqlite"
)

func TestStore(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:boltstore")
	defer cleanup()

	sqlite, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	store, err := NewStore(sqlite)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	{
		res, err := store.Pull(ctx, "unknown-lock")
		if err != nil {
			t.Fatal(err)
		}
		require.Len(t, res, 0)
	}

	start := time.Now().Truncate(time.Second)
	{
		err := store.Push(ctx, start, []Observation{
			{LockId: "front", Name: "Front Door", State: "Locked"},
			{LockId: "back", Name: "Back Door", State: "Unlocked"},
		})
		if err != nil {
			t.Fatal(err)
		}

		err = store.Push(ctx, start.Add(time.Minute), []Observation{
			{LockId: "front", Name: "Front Door", State: "Unlocked"},
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	{
		res, err := store.Pull(ctx, "front")
		if err != nil {
			t.Fatal(err)
		}
		require.Len(t, res, 2)
		require.Equal(t, "Locked", res[0].State)
		require.Equal(t, "Unlocked", res[1].State)
		require.True(t, res[1].Time.After(res[0].Time))
	}
	{
		res, err := store.Pull(ctx, "back")
		if err != nil {
			t.Fatal(err)
		}
		require.Len(t, res, 1)
		require.Equal(t, "Back Door", res[0].Name)
	}
}
