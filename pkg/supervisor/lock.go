package supervisor

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cuemby/jamctl/pkg/config"
	"github.com/cuemby/jamctl/pkg/types"
)

// errBadLock marks a lock file that exists but cannot be parsed
var errBadLock = errors.New("unreadable lock file")

// readLock loads the process handle from path. It returns types.ErrNotFound
// when there is no lock and errBadLock when the file is garbage.
func readLock(path string) (*types.ProcessHandle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, types.ErrNotFound
		}
		return nil, types.IOError("failed to read lock file", err)
	}

	var handle types.ProcessHandle
	if err := json.Unmarshal(data, &handle); err != nil || handle.PID <= 0 {
		return nil, errBadLock
	}
	handle.LockPath = path
	return &handle, nil
}

// writeLock persists the handle atomically so a concurrent reader never
// sees a half-written pid.
func writeLock(handle *types.ProcessHandle) error {
	if err := os.MkdirAll(filepath.Dir(handle.LockPath), 0755); err != nil {
		return types.IOError("failed to create lock directory", err)
	}
	data, err := json.MarshalIndent(handle, "", "  ")
	if err != nil {
		return types.IOError("failed to encode lock file", err)
	}
	return config.WriteFileAtomic(handle.LockPath, data, 0644)
}

func removeLock(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return types.IOError("failed to remove lock file", err)
	}
	return nil
}
