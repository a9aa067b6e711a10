package release

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cuemby/jamctl/pkg/types"
)

const (
	// SelectorLatest resolves to the newest nightly release
	SelectorLatest = "latest"

	nightlyPrefix = "nightly"
)

// archiveExtensions are the asset formats the installer can unpack
var archiveExtensions = []string{".tar.gz", ".tgz", ".tar.zst", ".zip"}

// Resolve maps a version selector to exactly one downloadable artifact for
// platform. An empty selector or "latest" picks the newest nightly.
func (c *Client) Resolve(ctx context.Context, selector string, platform types.Platform) (*types.ArtifactDescriptor, error) {
	var release *Release
	switch strings.TrimSpace(selector) {
	case "", SelectorLatest:
		releases, err := c.Releases(ctx, DefaultListLimit)
		if err != nil {
			return nil, err
		}
		release, err = SelectLatest(releases)
		if err != nil {
			return nil, err
		}
	default:
		var err error
		release, err = c.Release(ctx, selector)
		if err != nil {
			return nil, err
		}
	}

	desc, err := SelectAsset(release, platform)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("version", desc.Version.Tag).
		Str("asset", desc.AssetName).
		Bool("checksum", desc.Checksum != nil).
		Msg("Resolved toolchain release")
	return desc, nil
}

// SortReleases orders releases newest first: by publication time, then by
// tag in descending order (dated nightly tags sort lexically).
func SortReleases(releases []Release) {
	sort.SliceStable(releases, func(i, j int) bool {
		a, b := releases[i], releases[j]
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.TagName > b.TagName
	})
}

// SelectLatest returns the newest nightly release
func SelectLatest(releases []Release) (*Release, error) {
	sorted := make([]Release, len(releases))
	copy(sorted, releases)
	SortReleases(sorted)

	for i := range sorted {
		if strings.HasPrefix(sorted[i].TagName, nightlyPrefix) {
			return &sorted[i], nil
		}
	}
	return nil, fmt.Errorf("no nightly releases found: %w", types.ErrVersionNotFound)
}

// SelectAsset picks the archive for platform from release. The platform's
// native archive format is preferred when several formats are published.
func SelectAsset(release *Release, platform types.Platform) (*types.ArtifactDescriptor, error) {
	suffix := platform.String()
	preferred := "." + platform.ArchiveExtension()

	var match *Asset
	for i := range release.Assets {
		asset := &release.Assets[i]
		if !strings.Contains(asset.Name, suffix) || !isArchive(asset.Name) {
			continue
		}
		if match == nil || (strings.HasSuffix(asset.Name, preferred) && !strings.HasSuffix(match.Name, preferred)) {
			match = asset
		}
	}

	if match == nil {
		names := make([]string, 0, len(release.Assets))
		for _, a := range release.Assets {
			names = append(names, a.Name)
		}
		return nil, fmt.Errorf("%w: no asset for %s in release %s (available: %s)",
			types.ErrPlatformUnsupported, suffix, release.TagName, strings.Join(names, ", "))
	}

	return &types.ArtifactDescriptor{
		Version:     types.ToolchainVersion{Tag: release.TagName, Platform: platform},
		AssetName:   match.Name,
		DownloadURL: match.BrowserDownloadURL,
		Size:        match.Size,
		Checksum:    ParseChecksum(match.Digest),
	}, nil
}

// ParseChecksum parses an "algorithm:hex" digest. It returns nil when the
// index did not publish one.
func ParseChecksum(digest string) *types.Checksum {
	algo, hex, ok := strings.Cut(strings.TrimSpace(digest), ":")
	if !ok || algo == "" || hex == "" {
		return nil
	}
	return &types.Checksum{
		Algorithm: strings.ToLower(algo),
		Hex:       strings.ToLower(hex),
	}
}

func isArchive(name string) bool {
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// List returns known releases newest first, marking the installed and
// active ones from cfg (which may be nil).
func (c *Client) List(ctx context.Context, limit int, cfg *types.Config) ([]types.ReleaseInfo, error) {
	releases, err := c.Releases(ctx, limit)
	if err != nil {
		return nil, err
	}
	SortReleases(releases)

	infos := make([]types.ReleaseInfo, 0, len(releases))
	for _, r := range releases {
		info := types.ReleaseInfo{
			Tag:         r.TagName,
			Name:        r.Name,
			PublishedAt: r.PublishedAt,
		}
		for _, a := range r.Assets {
			info.Assets = append(info.Assets, a.Name)
		}
		if cfg != nil {
			_, info.Installed = cfg.Find(r.TagName)
			info.Active = cfg.IsActive(r.TagName)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Info returns the active install without contacting the network
func Info(cfg *types.Config) (*types.InstallRecord, error) {
	if cfg == nil || cfg.Active == nil {
		return nil, types.ErrNotInstalled
	}
	rec := *cfg.Active
	return &rec, nil
}
