/*
Package storage keeps a history of toolchain installs and testnet runs in a
bbolt database at <root>/history.db.

# Buckets

	installs   one entry per committed install
	runs       one entry per node start and stop

Keys are "<unix nanos>-<uuid>", so a reverse cursor walk lists entries
newest first without sorting. Values are JSON encoded types.HistoryEntry.

# Ledger

bbolt holds an exclusive file lock for as long as a database is open. A
foreground "jamctl up" can run for hours, and "jamctl down" from another
shell must still be able to record its stop. Ledger therefore opens the
database for each Record or List call and closes it straight after.
BoltStore keeps it open and suits tests and single-shot use.

History is informational. Callers log a failed write and carry on; the
config file remains the source of truth for what is installed.
*/
package storage
