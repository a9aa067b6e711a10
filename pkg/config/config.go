package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cuemby/jamctl/pkg/types"
	"github.com/pelletier/go-toml/v2"
)

const (
	// DefaultDirName is the toolchain root under the user's home directory
	DefaultDirName = ".jamctl"

	// EnvHome overrides the toolchain root
	EnvHome = "JAMCTL_HOME"

	configFileName = "config.toml"
)

// Paths is the on-disk layout under a toolchain root
type Paths struct {
	Root string
}

// NewPaths returns the layout rooted at root
func NewPaths(root string) Paths {
	return Paths{Root: root}
}

func (p Paths) ConfigFile() string { return filepath.Join(p.Root, configFileName) }
func (p Paths) ToolchainDir() string { return filepath.Join(p.Root, "toolchain") }
func (p Paths) DownloadsDir() string { return filepath.Join(p.Root, "downloads") }
func (p Paths) LockFile() string { return filepath.Join(p.Root, "testnet.lock") }
func (p Paths) GuardFile() string { return filepath.Join(p.Root, "testnet.guard") }
func (p Paths) LogFile() string { return filepath.Join(p.Root, "logs", "testnet.log") }
func (p Paths) HistoryDB() string { return filepath.Join(p.Root, "history.db") }

// VersionDir is the version-scoped install directory for tag
func (p Paths) VersionDir(tag string) string {
	return filepath.Join(p.ToolchainDir(), tag)
}

// ResolveRoot picks the toolchain root: explicit value, then $JAMCTL_HOME,
// then ~/.jamctl. The result is always absolute.
func ResolveRoot(explicit string) (string, error) {
	root := explicit
	if root == "" {
		root = os.Getenv(EnvHome)
	}
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", types.IOError("could not determine home directory", err)
		}
		root = filepath.Join(home, DefaultDirName)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", types.IOError("resolve toolchain root", err)
	}
	return abs, nil
}

// Load reads the config stored under root. It returns types.ErrNotFound when
// nothing has been installed yet.
func Load(root string) (*types.Config, error) {
	paths := NewPaths(root)
	data, err := os.ReadFile(paths.ConfigFile())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config %s: %w", paths.ConfigFile(), types.ErrNotFound)
		}
		return nil, types.IOError("failed to read config", err)
	}

	var cfg types.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, types.IOError("failed to parse config "+paths.ConfigFile(), err)
	}
	if cfg.Root == "" {
		cfg.Root = root
	}
	return &cfg, nil
}

// LoadOrEmpty is Load, returning an empty config rooted at root when none exists
func LoadOrEmpty(root string) (*types.Config, error) {
	cfg, err := Load(root)
	if errors.Is(err, types.ErrNotFound) {
		return &types.Config{Root: root}, nil
	}
	return cfg, err
}

// Save writes cfg atomically: the new contents go to a temporary file in the
// same directory which is then renamed over the config file. Readers see
// either the old or the new config, never a partial one.
func Save(cfg *types.Config) error {
	if cfg.Root == "" {
		return fmt.Errorf("config has no root: %w", types.ErrIOFailure)
	}
	paths := NewPaths(cfg.Root)

	if err := os.MkdirAll(paths.Root, 0755); err != nil {
		return types.IOError("failed to create toolchain root", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return types.IOError("failed to encode config", err)
	}

	return WriteFileAtomic(paths.ConfigFile(), data, 0644)
}

// WriteFileAtomic writes data to a sibling temp file, syncs it and renames it
// into place.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return types.IOError("failed to create temp file", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return types.IOError("failed to write "+path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return types.IOError("failed to sync "+path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return types.IOError("failed to close "+path, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return types.IOError("failed to chmod "+path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return types.IOError("failed to replace "+path, err)
	}
	return nil
}
