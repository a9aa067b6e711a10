/*
Package install downloads toolchain releases and commits them as the active
toolchain.

An install moves through four stages. Only the last one changes what the
rest of jamctl sees:

	download ──► verify ──► extract + swap ──► commit
	(.partial)   (size,      (.staging-*,       (config.Save)
	             digest)      toolchain/<tag>)

# Layout

	<root>/
	├── config.toml                 active + installed records
	├── downloads/<asset>.partial   in-flight download, removed afterwards
	└── toolchain/
	    ├── nightly-2025-12-01/     one directory per committed version
	    ├── nightly-2025-12-29/
	    ├── .staging-<tag>-<id>/    extraction in progress
	    └── .trash-<tag>-<id>/      previous tree during a forced reinstall

# Commit point

config.Save is the single commit point. Until it succeeds, Installer.Config
still describes the previous state and the version directory it names is
untouched:

  - a failed download or digest check removes its .partial file
  - a failed extraction removes its staging directory
  - a failed save after a forced reinstall moves the new tree out and the
    previous tree (parked in .trash-*) back into place

Leftovers from runs that were killed outright are cleared by GC, which runs at the start
of every fresh install. GC never touches a directory that a committed
record points at.

# Idempotence

Install without force returns immediately, with no network traffic, when
the requested tag is already active (OutcomeNoop). A tag installed earlier
but not active is re-activated through the same commit
(OutcomeReactivated). Update is a no-op when the latest release is already
active.

# Archives

Supported formats are .tar.gz/.tgz, .tar.zst and .zip, decoded with
github.com/klauspost/compress. Entries are confined to the staging
directory: absolute names, ".." traversal, symlinks pointing outside,
symlinks that resolve through other symlinks, and entries placed below a
symlink are all rejected as types.ErrCorruptArtifact. An archive whose
content sits in a single top-level directory is flattened so binaries live
directly in toolchain/<tag>.

Digests published by the release index are checked while downloading.
sha256, sha512 and blake3 are understood; other algorithms are logged and
skipped.
*/
package install
