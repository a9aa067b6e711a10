package storage

import (
	"github.com/cuemby/jamctl/pkg/types"
)

// Store records toolchain lifecycle history: committed installs and
// supervised node runs. It is a ledger only; the config file remains the
// source of truth for what is active.
type Store interface {
	// Record appends an entry, assigning ID and Timestamp when unset
	Record(entry *types.HistoryEntry) error

	// List returns entries of the given kind, newest first. An empty kind
	// lists everything; limit <= 0 means no limit.
	List(kind types.HistoryKind, limit int) ([]*types.HistoryEntry, error)

	// Utility
	Close() error
}
