package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/jamctl/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingConfig(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.ErrorIs(t, err, types.ErrNotFound)

	cfg, err := LoadOrEmpty(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, cfg.Active)
	assert.Empty(t, cfg.Installed)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	installedAt := time.Date(2025, 12, 29, 10, 0, 0, 0, time.UTC)

	cfg := &types.Config{Root: root}
	cfg.Activate(types.InstallRecord{
		Version:     "nightly-2025-12-29",
		Platform:    "linux-x86_64",
		Path:        NewPaths(root).VersionDir("nightly-2025-12-29"),
		InstalledAt: installedAt,
	})
	require.NoError(t, Save(cfg))

	loaded, err := Load(root)
	require.NoError(t, err)
	require.NotNil(t, loaded.Active)
	assert.Equal(t, "nightly-2025-12-29", loaded.Active.Version)
	assert.True(t, loaded.Active.InstalledAt.Equal(installedAt))
	assert.Len(t, loaded.Installed, 1)
	assert.Equal(t, root, loaded.Root)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	cfg := &types.Config{Root: root}
	require.NoError(t, Save(cfg))
	require.NoError(t, Save(cfg))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "config.toml", entries[0].Name())
}

func TestCorruptConfigIsIOFailure(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "config.toml"), []byte("active = [[["), 0644))

	_, err := Load(root)
	assert.ErrorIs(t, err, types.ErrIOFailure)
}

func TestFailedSaveKeepsPreviousConfig(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	root := t.TempDir()
	cfg := &types.Config{Root: root}
	cfg.Activate(types.InstallRecord{Version: "nightly-2025-12-01", Path: "/a"})
	require.NoError(t, Save(cfg))

	require.NoError(t, os.Chmod(root, 0555))
	t.Cleanup(func() { _ = os.Chmod(root, 0755) })

	cfg.Activate(types.InstallRecord{Version: "nightly-2025-12-29", Path: "/b"})
	err := Save(cfg)
	assert.ErrorIs(t, err, types.ErrIOFailure)

	loaded, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "nightly-2025-12-01", loaded.Active.Version)
}

func TestResolveRoot(t *testing.T) {
	explicit := t.TempDir()
	got, err := ResolveRoot(explicit)
	require.NoError(t, err)
	assert.Equal(t, explicit, got)

	fromEnv := t.TempDir()
	t.Setenv(EnvHome, fromEnv)
	got, err = ResolveRoot("")
	require.NoError(t, err)
	assert.Equal(t, fromEnv, got)

	t.Setenv(EnvHome, "")
	t.Setenv("HOME", explicit)
	got, err = ResolveRoot("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(explicit, DefaultDirName), got)
}

func TestPathsLayout(t *testing.T) {
	p := NewPaths("/home/dev/.jamctl")
	assert.Equal(t, "/home/dev/.jamctl/config.toml", p.ConfigFile())
	assert.Equal(t, "/home/dev/.jamctl/toolchain/nightly-2025-12-29", p.VersionDir("nightly-2025-12-29"))
	assert.Equal(t, "/home/dev/.jamctl/testnet.lock", p.LockFile())
	assert.Equal(t, "/home/dev/.jamctl/logs/testnet.log", p.LogFile())
}
