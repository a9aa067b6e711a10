package install

import (
	"context"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cuemby/jamctl/pkg/config"
	"github.com/cuemby/jamctl/pkg/log"
	"github.com/cuemby/jamctl/pkg/metrics"
	"github.com/cuemby/jamctl/pkg/storage"
	"github.com/cuemby/jamctl/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	stagingPrefix = ".staging-"
	trashPrefix   = ".trash-"
	partialSuffix = ".partial"
)

// Outcome describes what an install call did
type Outcome string

const (
	// OutcomeNoop means the requested version was already active
	OutcomeNoop Outcome = "noop"
	// OutcomeReactivated means a previously installed version was made active without downloading
	OutcomeReactivated Outcome = "reactivated"
	// OutcomeInstalled means the artifact was downloaded, extracted and committed
	OutcomeInstalled Outcome = "installed"
)

// Result is the outcome of Install or Update
type Result struct {
	Record  *types.InstallRecord
	Outcome Outcome
}

// Resolver resolves a version selector to an artifact
type Resolver interface {
	Resolve(ctx context.Context, selector string, platform types.Platform) (*types.ArtifactDescriptor, error)
}

// Installer downloads, verifies and unpacks toolchain artifacts into
// version-scoped directories. The config save is the single commit point:
// nothing becomes active until it succeeds.
type Installer struct {
	cfg     *types.Config
	paths   config.Paths
	history storage.Store
	logger  zerolog.Logger

	HTTPClient *http.Client

	// extract is swappable so tests can simulate a failure mid-extraction
	extract func(src, dest, assetName string) error
	now     func() time.Time
}

// NewInstaller creates an installer operating on cfg. history may be nil.
func NewInstaller(cfg *types.Config, history storage.Store) *Installer {
	return &Installer{
		cfg:     cfg,
		paths:   config.NewPaths(cfg.Root),
		history: history,
		logger:  log.WithComponent("installer"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Minute,
		},
		extract: extractArchive,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Config returns the config as of the last commit
func (i *Installer) Config() *types.Config {
	return i.cfg
}

// Install makes desc the active toolchain. Without force, an already
// installed version is returned (or re-activated) without any download.
func (i *Installer) Install(ctx context.Context, desc *types.ArtifactDescriptor, force bool) (*Result, error) {
	tag := desc.Version.Tag
	logger := i.logger.With().Str("version", tag).Logger()

	if !force {
		if rec, ok := i.cfg.Find(tag); ok && dirExists(rec.Path) {
			if i.cfg.IsActive(tag) {
				logger.Debug().Msg("Version already active, nothing to do")
				metrics.InstallsTotal.WithLabelValues("noop").Inc()
				return &Result{Record: rec, Outcome: OutcomeNoop}, nil
			}
			if err := i.commit(*rec); err != nil {
				return nil, err
			}
			logger.Info().Msg("Re-activated installed version")
			metrics.InstallsTotal.WithLabelValues("reactivated").Inc()
			return &Result{Record: rec, Outcome: OutcomeReactivated}, nil
		}
	}

	timer := metrics.NewTimer()
	rec, err := i.installFresh(ctx, desc, logger)
	if err != nil {
		metrics.InstallsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	timer.ObserveDuration(metrics.InstallDuration)
	metrics.InstallsTotal.WithLabelValues("committed").Inc()

	i.record(&types.HistoryEntry{
		Kind:    types.HistoryInstall,
		Version: tag,
		Detail:  desc.AssetName,
	})
	return &Result{Record: rec, Outcome: OutcomeInstalled}, nil
}

// Update installs the latest release unless it is already active
func (i *Installer) Update(ctx context.Context, resolver Resolver, platform types.Platform) (*Result, error) {
	desc, err := resolver.Resolve(ctx, "latest", platform)
	if err != nil {
		return nil, err
	}
	if i.cfg.IsActive(desc.Version.Tag) {
		rec := *i.cfg.Active
		return &Result{Record: &rec, Outcome: OutcomeNoop}, nil
	}
	return i.Install(ctx, desc, false)
}

func (i *Installer) installFresh(ctx context.Context, desc *types.ArtifactDescriptor, logger zerolog.Logger) (*types.InstallRecord, error) {
	tag := desc.Version.Tag
	if err := validTag(tag); err != nil {
		return nil, err
	}

	if err := i.GC(); err != nil {
		logger.Warn().Err(err).Msg("Failed to clean up leftovers from earlier installs")
	}

	if err := os.MkdirAll(i.paths.DownloadsDir(), 0755); err != nil {
		return nil, types.IOError("failed to create downloads directory", err)
	}
	if err := os.MkdirAll(i.paths.ToolchainDir(), 0755); err != nil {
		return nil, types.IOError("failed to create toolchain directory", err)
	}

	archive := filepath.Join(i.paths.DownloadsDir(), filepath.Base(desc.AssetName)+partialSuffix)
	logger.Info().Str("url", desc.DownloadURL).Msg("Downloading toolchain")
	if err := i.download(ctx, desc, archive); err != nil {
		os.Remove(archive)
		return nil, err
	}
	defer os.Remove(archive)

	staging := filepath.Join(i.paths.ToolchainDir(), stagingPrefix+tag+"-"+shortID())
	if err := os.MkdirAll(staging, 0755); err != nil {
		return nil, types.IOError("failed to create staging directory", err)
	}
	defer os.RemoveAll(staging)

	logger.Debug().Str("staging", staging).Msg("Extracting toolchain")
	if err := i.extract(archive, staging, desc.AssetName); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target := i.paths.VersionDir(tag)
	sw, err := swapInto(contentRoot(staging), target, i.paths.ToolchainDir(), tag)
	if err != nil {
		return nil, err
	}

	rec := types.InstallRecord{
		Version:     tag,
		Platform:    desc.Version.Platform.String(),
		Path:        target,
		InstalledAt: i.now(),
	}
	if err := i.commit(rec); err != nil {
		if rerr := sw.rollback(); rerr != nil {
			logger.Error().Err(rerr).Str("path", target).Msg("Failed to restore previous install")
		}
		return nil, err
	}
	sw.finish()

	logger.Info().Str("path", target).Msg("Toolchain installed")
	return &rec, nil
}

// commit atomically records rec as the active install. i.cfg only changes
// once the save has succeeded.
func (i *Installer) commit(rec types.InstallRecord) error {
	next := cloneConfig(i.cfg)
	next.Activate(rec)
	if err := config.Save(next); err != nil {
		return err
	}
	*i.cfg = *next
	return nil
}

func (i *Installer) download(ctx context.Context, desc *types.ArtifactDescriptor, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.DownloadURL, nil)
	if err != nil {
		return fmt.Errorf("%w: invalid download url: %v", types.ErrNetwork, err)
	}
	req.Header.Set("User-Agent", "jamctl")

	resp, err := i.HTTPClient.Do(req)
	if err != nil {
		metrics.DownloadsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: failed to download %s: %v", types.ErrNetwork, desc.AssetName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.DownloadsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: download of %s failed with status %d", types.ErrNetwork, desc.AssetName, resp.StatusCode)
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return types.IOError("failed to create download file", err)
	}

	var hasher hash.Hash
	w := io.Writer(out)
	if desc.Checksum != nil {
		hasher = newHasher(desc.Checksum.Algorithm)
		if hasher == nil {
			i.logger.Warn().Str("algorithm", desc.Checksum.Algorithm).Msg("Unsupported checksum algorithm, skipping verification")
		} else {
			w = io.MultiWriter(out, hasher)
		}
	}

	n, err := io.Copy(w, resp.Body)
	metrics.DownloadBytesTotal.Add(float64(n))
	if cerr := out.Close(); err == nil && cerr != nil {
		return types.IOError("failed to close download file", cerr)
	}
	if err != nil {
		metrics.DownloadsTotal.WithLabelValues("error").Inc()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: download of %s interrupted: %v", types.ErrNetwork, desc.AssetName, err)
	}

	if desc.Size > 0 && n != desc.Size {
		metrics.DownloadsTotal.WithLabelValues("corrupt").Inc()
		return fmt.Errorf("%w: size mismatch for %s (expected %d bytes, got %d)", types.ErrCorruptArtifact, desc.AssetName, desc.Size, n)
	}
	if hasher != nil {
		if err := verifyDigest(hasher, desc.Checksum); err != nil {
			metrics.DownloadsTotal.WithLabelValues("corrupt").Inc()
			return err
		}
	}

	metrics.DownloadsTotal.WithLabelValues("success").Inc()
	return nil
}

// GC removes staging and trash directories, partial downloads, and version
// directories that no committed install refers to.
func (i *Installer) GC() error {
	var errs []error

	if entries, err := os.ReadDir(i.paths.ToolchainDir()); err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			path := filepath.Join(i.paths.ToolchainDir(), e.Name())
			if _, ok := i.referenced(path); ok {
				continue
			}
			i.logger.Debug().Str("path", path).Msg("Removing uncommitted toolchain directory")
			if err := os.RemoveAll(path); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if entries, err := os.ReadDir(i.paths.DownloadsDir()); err == nil {
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), partialSuffix) {
				if err := os.Remove(filepath.Join(i.paths.DownloadsDir(), e.Name())); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}

	return errors.Join(errs...)
}

func (i *Installer) referenced(path string) (*types.InstallRecord, bool) {
	for _, rec := range i.cfg.Installed {
		if filepath.Clean(rec.Path) == filepath.Clean(path) {
			r := rec
			return &r, true
		}
	}
	return nil, false
}

func (i *Installer) record(entry *types.HistoryEntry) {
	if i.history == nil {
		return
	}
	if err := i.history.Record(entry); err != nil {
		i.logger.Warn().Err(err).Msg("Failed to record install history")
	}
}

// Binaries lists the executables shipped in an install, sorted by name
func Binaries(rec *types.InstallRecord) ([]string, error) {
	entries, err := os.ReadDir(rec.Path)
	if err != nil {
		return nil, types.IOError("failed to read toolchain directory", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".md", ".txt", ".corevm":
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// BinaryPath returns the path of a toolchain binary in rec, or
// types.ErrNotInstalled when the install does not contain it.
func BinaryPath(rec *types.InstallRecord, name string) (string, error) {
	if rec == nil {
		return "", types.ErrNotInstalled
	}
	p := types.Platform{}
	if parts := strings.SplitN(rec.Platform, "-", 2); len(parts) == 2 {
		p = types.Platform{OS: parts[0], Arch: parts[1]}
	}
	path := filepath.Join(rec.Path, p.ExecutableName(name))
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%s not found in %s (run 'jamctl setup --force' to reinstall): %w", name, rec.Path, types.ErrNotInstalled)
	}
	return path, nil
}

// contentRoot flattens archives that wrap everything in a single top-level
// directory, e.g. polkajam-nightly-2025-12-29-linux-x86_64/.
func contentRoot(staging string) string {
	entries, err := os.ReadDir(staging)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return staging
	}
	return filepath.Join(staging, entries[0].Name())
}

// swap is a version directory replaced on disk but not yet committed. The
// previous tree, if any, stays in trash until finish or rollback.
type swap struct {
	target string
	trash  string
}

// swapInto renames src to target. An existing target is moved aside and
// kept until the swap is finished.
func swapInto(src, target, toolchainDir, tag string) (*swap, error) {
	sw := &swap{target: target}
	if dirExists(target) {
		sw.trash = filepath.Join(toolchainDir, trashPrefix+tag+"-"+shortID())
		if err := os.Rename(target, sw.trash); err != nil {
			return nil, types.IOError("failed to move previous install aside", err)
		}
	}

	if err := os.Rename(src, target); err != nil {
		if sw.trash != "" {
			_ = os.Rename(sw.trash, target)
		}
		return nil, types.IOError("failed to move toolchain into place", err)
	}
	return sw, nil
}

// finish discards the previous tree
func (sw *swap) finish() {
	if sw.trash != "" {
		_ = os.RemoveAll(sw.trash)
	}
}

// rollback removes the new tree and puts the previous one back
func (sw *swap) rollback() error {
	if err := os.RemoveAll(sw.target); err != nil {
		return types.IOError("failed to remove uncommitted install", err)
	}
	if sw.trash == "" {
		return nil
	}
	if err := os.Rename(sw.trash, sw.target); err != nil {
		return types.IOError("failed to restore previous install", err)
	}
	return nil
}

func cloneConfig(cfg *types.Config) *types.Config {
	next := &types.Config{Root: cfg.Root}
	next.Installed = append(next.Installed, cfg.Installed...)
	if cfg.Active != nil {
		active := *cfg.Active
		next.Active = &active
	}
	return next
}

func validTag(tag string) error {
	if tag == "" || tag == "." || tag == ".." || strings.ContainsAny(tag, `/\`) || strings.HasPrefix(tag, ".") {
		return fmt.Errorf("%w: invalid version tag %q", types.ErrVersionNotFound, tag)
	}
	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func shortID() string {
	return uuid.New().String()[:8]
}
