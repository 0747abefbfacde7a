// Package checkpoint persists value tables between runs. Every backend round-trips through the
// table's own codec, so a table saved by one backend loads identically through any other.
package checkpoint

import (
	"context"
	"errors"

	"gridlearn/reinforcement"
)

// ErrNotFound is returned by Load when the store holds no table.
var ErrNotFound = errors.New("checkpoint not found")

// Store is a durable home for one value table.
type Store interface {
	// Exists reports whether a table has been saved.
	Exists(ctx context.Context) (bool, error)
	// Save writes the full table, replacing any previous checkpoint.
	Save(ctx context.Context, table *reinforcement.QTable) error
	// Load replaces the contents of table with the checkpoint.
	Load(ctx context.Context, table *reinforcement.QTable) error
	// String names the store for log lines.
	String() string
}

// Restore loads the checkpoint into table if one exists. A missing checkpoint is a cold start,
// not an error: table is left as is and restored is false.
func Restore(ctx context.Context, store Store, table *reinforcement.QTable) (restored bool, err error) {
	if store == nil {
		return false, nil
	}
	ok, err := store.Exists(ctx)
	if err != nil || !ok {
		return false, err
	}
	if err = store.Load(ctx, table); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
