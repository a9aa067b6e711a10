package types

import (
	"time"
)

// ToolchainVersion identifies one published toolchain build for one platform
type ToolchainVersion struct {
	Tag      string   `json:"tag" yaml:"tag"`
	Platform Platform `json:"platform" yaml:"platform"`
}

func (v ToolchainVersion) String() string {
	return v.Tag + " (" + v.Platform.String() + ")"
}

// Checksum is a digest published by the release index, e.g. "sha256:<hex>"
type Checksum struct {
	Algorithm string `json:"algorithm" yaml:"algorithm"`
	Hex       string `json:"hex" yaml:"hex"`
}

// ArtifactDescriptor is a fully resolved, downloadable toolchain archive.
// It is produced and consumed within a single setup invocation.
type ArtifactDescriptor struct {
	Version     ToolchainVersion `json:"version" yaml:"version"`
	AssetName   string           `json:"asset_name" yaml:"asset_name"`
	DownloadURL string           `json:"download_url" yaml:"download_url"`
	Size        int64            `json:"size" yaml:"size"`
	Checksum    *Checksum        `json:"checksum,omitempty" yaml:"checksum,omitempty"`
}

// ReleaseInfo summarizes one entry of the release index for listing
type ReleaseInfo struct {
	Tag         string    `json:"tag" yaml:"tag"`
	Name        string    `json:"name,omitempty" yaml:"name,omitempty"`
	PublishedAt time.Time `json:"published_at" yaml:"published_at"`
	Assets      []string  `json:"assets" yaml:"assets"`
	Installed   bool      `json:"installed" yaml:"installed"`
	Active      bool      `json:"active" yaml:"active"`
}

// InstallRecord describes a toolchain version extracted on disk
type InstallRecord struct {
	Version     string    `toml:"version" json:"version" yaml:"version"`
	Platform    string    `toml:"platform" json:"platform" yaml:"platform"`
	Path        string    `toml:"path" json:"path" yaml:"path"`
	InstalledAt time.Time `toml:"installed_at" json:"installed_at" yaml:"installed_at"`
}

// Config is the persisted record of what is installed and where.
// Active, when set, always refers to an entry in Installed.
type Config struct {
	Root      string          `toml:"root" json:"root" yaml:"root"`
	Active    *InstallRecord  `toml:"active,omitempty" json:"active,omitempty" yaml:"active,omitempty"`
	Installed []InstallRecord `toml:"installed,omitempty" json:"installed,omitempty" yaml:"installed,omitempty"`
}

// Find returns the install record for the given version tag
func (c *Config) Find(version string) (*InstallRecord, bool) {
	for i := range c.Installed {
		if c.Installed[i].Version == version {
			rec := c.Installed[i]
			return &rec, true
		}
	}
	return nil, false
}

// IsActive reports whether version is the active install
func (c *Config) IsActive(version string) bool {
	return c.Active != nil && c.Active.Version == version
}

// Activate records rec as installed and makes it the active version.
// An existing record for the same version is replaced.
func (c *Config) Activate(rec InstallRecord) {
	replaced := false
	for i := range c.Installed {
		if c.Installed[i].Version == rec.Version {
			c.Installed[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		c.Installed = append(c.Installed, rec)
	}
	active := rec
	c.Active = &active
}

// ProcessHandle identifies a supervised node process. It is persisted only as
// the lock artifact; nothing holds an in-memory reference across invocations.
type ProcessHandle struct {
	ID         string    `json:"id" yaml:"id"`
	PID        int       `json:"pid" yaml:"pid"`
	LockPath   string    `json:"lock_path" yaml:"lock_path"`
	Endpoint   string    `json:"endpoint" yaml:"endpoint"`
	Version    string    `json:"version" yaml:"version"`
	Binary     string    `json:"binary" yaml:"binary"`
	LogPath    string    `json:"log_path,omitempty" yaml:"log_path,omitempty"`
	Foreground bool      `json:"foreground" yaml:"foreground"`
	LaunchedAt time.Time `json:"launched_at" yaml:"launched_at"`
}

// StopMode describes how a supervised process was terminated
type StopMode string

const (
	StopModeNone     StopMode = "none"
	StopModeGraceful StopMode = "graceful"
	StopModeForced   StopMode = "forced"
	StopModeStale    StopMode = "stale"
)

// HistoryKind classifies lifecycle history entries
type HistoryKind string

const (
	HistoryInstall HistoryKind = "install"
	HistoryStart   HistoryKind = "start"
	HistoryStop    HistoryKind = "stop"
)

// HistoryEntry is one lifecycle event recorded in the history ledger
type HistoryEntry struct {
	ID        string      `json:"id" yaml:"id"`
	Kind      HistoryKind `json:"kind" yaml:"kind"`
	Version   string      `json:"version,omitempty" yaml:"version,omitempty"`
	PID       int         `json:"pid,omitempty" yaml:"pid,omitempty"`
	Endpoint  string      `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Detail    string      `json:"detail,omitempty" yaml:"detail,omitempty"`
	Timestamp time.Time   `json:"timestamp" yaml:"timestamp"`
}
