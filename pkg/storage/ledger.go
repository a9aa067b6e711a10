package storage

import (
	"github.com/cuemby/jamctl/pkg/types"
)

// Ledger is a Store that opens the database only for the duration of each
// call. bbolt holds an exclusive file lock while open, so a long-running
// command (a foreground node) must not keep it open and block others.
type Ledger struct {
	path string
}

// NewLedger returns a Store backed by the bbolt file at path
func NewLedger(path string) *Ledger {
	return &Ledger{path: path}
}

// Record appends an entry
func (l *Ledger) Record(entry *types.HistoryEntry) error {
	s, err := NewBoltStore(l.path)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Record(entry)
}

// List returns entries of the given kind, newest first
func (l *Ledger) List(kind types.HistoryKind, limit int) ([]*types.HistoryEntry, error) {
	s, err := NewBoltStore(l.path)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.List(kind, limit)
}

// Close is a no-op; nothing is held between calls
func (l *Ledger) Close() error {
	return nil
}
