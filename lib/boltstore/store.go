// Package boltstore records observed bolt states over time so that the
// watch daemon can build a history of when doors were locked and
// unlocked.
package boltstore

import (
	"context"
	"database/sql"
	"time"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) (Store, error) {
	_, err := database.Exec(Schema)
	if err != nil {
		return Store{}, err
	}
	return Store{db: database}, nil
}

// Observation is one lock's state at the time it was read off the
// portal.
type Observation struct {
	LockId string
	Name   string
	State  string
}

// Snapshot is a stored observation with the time it was taken.
type Snapshot struct {
	Time  time.Time
	Name  string
	State string
}

func (s Store) Push(ctx context.Context, at time.Time, observations []Observation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(
		ctx,
		`INSERT INTO bolt_observation (lock_id, name, state, observed_at)
		 VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, obs := range observations {
		_, err = stmt.ExecContext(ctx, obs.LockId, obs.Name, obs.State, at.Unix())
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s Store) Pull(ctx context.Context, lockId string) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT name, state, observed_at FROM bolt_observation
		 WHERE lock_id = ? ORDER BY observed_at ASC`,
		lockId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var name, state string
		var observedAt int64
		err = rows.Scan(&name, &state, &observedAt)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, Snapshot{
			Time:  time.Unix(observedAt, 0),
			Name:  name,
			State: state,
		})
	}
	return snapshots, rows.Err()
}
