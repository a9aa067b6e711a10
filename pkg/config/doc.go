/*
Package config owns the toolchain root and its config.toml.

The root comes from --home, then $JAMCTL_HOME, then ~/.jamctl. Paths maps
it to every file jamctl uses (config, toolchain directories, downloads, the
testnet lock and guard, the log file and the history database).

Save encodes the config as TOML with github.com/pelletier/go-toml/v2 and
writes it through WriteFileAtomic: temp file in the same directory, fsync,
rename. A crash mid-write leaves the previous config in place. Load returns
types.ErrNotFound when no config exists yet.
*/
package config
