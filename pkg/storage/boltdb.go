package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cuemby/jamctl/pkg/types"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketInstalls = []byte("installs")
	bucketRuns     = []byte("runs")
)

// openTimeout bounds how long we wait for another jamctl invocation that
// holds the database open.
const openTimeout = 2 * time.Second

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if needed) the history database at path
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, types.IOError("failed to create history directory", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, types.IOError("failed to open history database", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketInstalls, bucketRuns} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, types.IOError("failed to initialize history database", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func bucketFor(kind types.HistoryKind) ([]byte, error) {
	switch kind {
	case types.HistoryInstall:
		return bucketInstalls, nil
	case types.HistoryStart, types.HistoryStop:
		return bucketRuns, nil
	default:
		return nil, fmt.Errorf("unknown history kind %q", kind)
	}
}

// historyKey orders entries chronologically within a bucket
func historyKey(entry *types.HistoryEntry) []byte {
	return []byte(fmt.Sprintf("%020d-%s", entry.Timestamp.UnixNano(), entry.ID))
}

func (s *BoltStore) Record(entry *types.HistoryEntry) error {
	bucket, err := bucketFor(entry.Kind)
	if err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return tx.Bucket(bucket).Put(historyKey(entry), data)
	})
}

func (s *BoltStore) List(kind types.HistoryKind, limit int) ([]*types.HistoryEntry, error) {
	buckets := [][]byte{bucketInstalls, bucketRuns}
	if kind != "" {
		b, err := bucketFor(kind)
		if err != nil {
			return nil, err
		}
		buckets = [][]byte{b}
	}

	var entries []*types.HistoryEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			c := tx.Bucket(name).Cursor()
			for k, v := c.Last(); k != nil; k, v = c.Prev() {
				var entry types.HistoryEntry
				if err := json.Unmarshal(v, &entry); err != nil {
					return err
				}
				if kind != "" && entry.Kind != kind {
					continue
				}
				entries = append(entries, &entry)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
