/*
Package supervisor starts, stops and tracks the local testnet node process.

A jamctl invocation is short-lived while the node it starts is not, so the
supervisor keeps no state in memory between calls. Everything it knows about
a running node comes from a lock file on disk, and every operation starts by
reading that file and checking whether the pid it names is still alive.

# Architecture

	┌──────────────────── PROCESS SUPERVISOR ────────────────────┐
	│                                                             │
	│   jamctl up ──┐                        ┌── jamctl down      │
	│               ▼                        ▼                    │
	│   ┌───────────────────────┐   ┌───────────────────────┐     │
	│   │ guard (flock)         │   │ Stop                   │     │
	│   │  <root>/testnet.guard │   │  SIGTERM, poll, grace  │     │
	│   └──────────┬────────────┘   │  or SIGKILL (--force)  │     │
	│              ▼                └──────────┬─────────────┘     │
	│   ┌───────────────────────┐              │                   │
	│   │ Discover              │◄─────────────┘                   │
	│   │  read lock, kill -0   │                                  │
	│   │  heal stale locks     │                                  │
	│   └──────────┬────────────┘                                  │
	│              ▼                                               │
	│   ┌───────────────────────┐   ┌───────────────────────┐     │
	│   │ spawn polkajam-testnet│──►│ <root>/testnet.lock    │     │
	│   │  Setsid, log file     │   │  JSON ProcessHandle    │     │
	│   └───────────────────────┘   └───────────────────────┘     │
	└─────────────────────────────────────────────────────────────┘

# Lock model

The lock file holds a JSON encoded types.ProcessHandle: pid, endpoint, log
path, launch time and whether the node runs in the foreground. It is
written atomically through config.WriteFileAtomic, so readers never see a
partial handle.

A lock is in one of three states:

  - absent: nothing is running
  - live: the pid answers kill(pid, 0), EPERM included
  - stale: the pid is gone or the file cannot be parsed

Start and Stop heal stale locks silently. Status reports them without
touching the disk.

Start holds an exclusive flock on testnet.guard from the liveness check
until the new lock is written, so two concurrent "jamctl up" calls cannot
both spawn a node. The guard file is never removed; the kernel drops the
lock when the holder exits.

# Background and foreground

In the background the node runs in its own session with stdin on
/dev/null and output appended to <root>/logs/testnet.log. A goroutine
reaps it, so a node that crashes while jamctl is still waiting for it is
reported as dead instead of lingering as a zombie. Start returns as soon as
the lock is written; readiness is the caller's business (see package
probe and Supervisor.Exited).

In the foreground the node inherits jamctl's stdout and stderr. SIGINT and
SIGTERM received by jamctl, or cancellation of the context, are forwarded
as SIGTERM. A node still alive after the grace period is killed. The lock
is removed when the node exits and a non-zero exit status is returned.

# Stopping

Stop sends SIGTERM to the node's process group and polls every
PollInterval until the pid disappears or GracePeriod runs out. A graceful
stop that runs out of time returns types.ErrStopTimeout and leaves the
lock in place; escalation is left to the user ("jamctl down --force"),
which sends SIGKILL instead.

# Usage

	sup := supervisor.New(config.NewPaths(root), storage.NewLedger(historyPath))

	handle, err := sup.Start(ctx, rec, supervisor.Options{
		Endpoint: "ws://localhost:19800",
	})
	if errors.Is(err, types.ErrAlreadyRunning) {
		// someone else's node is up
	}

	res, err := sup.Stop(ctx, false)
	if errors.Is(err, types.ErrStopTimeout) {
		res, err = sup.Stop(ctx, true)
	}

# Platform notes

Liveness, detaching and signalling live in process_unix.go and
process_windows.go. On Windows the node gets its own process group and
liveness is read from GetExitCodeProcess. There is no graceful signal, so
Stop always terminates, and the start guard is a no-op.
*/
package supervisor
