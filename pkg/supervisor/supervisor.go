package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/cuemby/jamctl/pkg/config"
	"github.com/cuemby/jamctl/pkg/install"
	"github.com/cuemby/jamctl/pkg/log"
	"github.com/cuemby/jamctl/pkg/metrics"
	"github.com/cuemby/jamctl/pkg/storage"
	"github.com/cuemby/jamctl/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// NodeBinary is the node executable shipped with the toolchain
	NodeBinary = "polkajam-testnet"

	// DefaultPort is the RPC port the node listens on unless told otherwise
	DefaultPort = 19800

	// DefaultEndpoint is the node's JSON-RPC websocket with default flags
	DefaultEndpoint = "ws://localhost:19800"

	// DefaultGracePeriod bounds how long a stop waits for the node to exit
	DefaultGracePeriod = 10 * time.Second

	// DefaultPollInterval is how often liveness is checked while stopping
	DefaultPollInterval = 100 * time.Millisecond
)

// Options configures Start
type Options struct {
	// Endpoint is the RPC endpoint the node will serve (default DefaultEndpoint)
	Endpoint string

	// Foreground blocks until the node exits, with its output attached
	Foreground bool

	// Args are passed through to the node
	Args []string

	// Stdout and Stderr receive foreground output (default os.Stdout/os.Stderr)
	Stdout io.Writer
	Stderr io.Writer

	// OnStarted is called in foreground mode once the lock has been written
	OnStarted func(*types.ProcessHandle)
}

// StopResult describes what Stop did
type StopResult struct {
	WasRunning bool
	Mode       types.StopMode
	Handle     *types.ProcessHandle
}

// State is a read-only snapshot of the lock and the process it names
type State struct {
	Handle  *types.ProcessHandle
	Running bool
	Stale   bool
}

// Supervisor starts and stops the local node. All state lives in the lock
// file, so separate invocations cooperate through it.
type Supervisor struct {
	paths   config.Paths
	history storage.Store
	logger  zerolog.Logger

	GracePeriod  time.Duration
	PollInterval time.Duration
}

// New creates a supervisor for the toolchain root described by paths.
// history may be nil.
func New(paths config.Paths, history storage.Store) *Supervisor {
	return &Supervisor{
		paths:        paths,
		history:      history,
		logger:       log.WithComponent("supervisor"),
		GracePeriod:  DefaultGracePeriod,
		PollInterval: DefaultPollInterval,
	}
}

// Start launches the node from rec. In background mode it returns as soon
// as the process is running and the lock is written; readiness is the
// caller's concern. In foreground mode it returns after the node exits.
func (s *Supervisor) Start(ctx context.Context, rec *types.InstallRecord, opts Options) (*types.ProcessHandle, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: run 'jamctl setup' first", types.ErrNotInstalled)
	}
	binary, err := install.BinaryPath(rec, NodeBinary)
	if err != nil {
		return nil, err
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	args, err := nodeArgs(opts.Endpoint, opts.Args)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.paths.Root, 0755); err != nil {
		return nil, types.IOError("failed to create toolchain root", err)
	}
	g, err := acquireGuard(s.paths.GuardFile())
	if err != nil {
		return nil, types.IOError("failed to acquire start guard", err)
	}
	handle, cmd, err := s.launch(rec, binary, args, opts)
	g.release()
	if err != nil {
		metrics.ProcessStartsTotal.WithLabelValues(startResult(err)).Inc()
		return nil, err
	}
	metrics.ProcessStartsTotal.WithLabelValues("success").Inc()

	mode := "background"
	if opts.Foreground {
		mode = "foreground"
	}
	s.record(&types.HistoryEntry{
		Kind:     types.HistoryStart,
		Version:  rec.Version,
		PID:      handle.PID,
		Endpoint: handle.Endpoint,
		Detail:   mode,
	})
	s.logger.Info().
		Int("pid", handle.PID).
		Str("version", rec.Version).
		Str("endpoint", handle.Endpoint).
		Str("mode", mode).
		Msg("Testnet started")

	if !opts.Foreground {
		return handle, nil
	}
	if opts.OnStarted != nil {
		opts.OnStarted(handle)
	}
	return handle, s.wait(ctx, cmd, handle)
}

// launch runs with the guard held: refuse a live instance, heal a stale
// lock, spawn, then write the new lock.
func (s *Supervisor) launch(rec *types.InstallRecord, binary string, args []string, opts Options) (*types.ProcessHandle, *exec.Cmd, error) {
	existing, err := s.Discover()
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, fmt.Errorf("%w: testnet (pid %d) at %s; run 'jamctl down' first",
			types.ErrAlreadyRunning, existing.PID, existing.Endpoint)
	}

	cmd := exec.Command(binary, args...)
	cmd.Dir = rec.Path

	handle := &types.ProcessHandle{
		ID:         uuid.New().String(),
		LockPath:   s.paths.LockFile(),
		Endpoint:   opts.Endpoint,
		Version:    rec.Version,
		Binary:     binary,
		Foreground: opts.Foreground,
	}

	var logFile *os.File
	if opts.Foreground {
		cmd.Stdout = opts.Stdout
		cmd.Stderr = opts.Stderr
		if cmd.Stdout == nil {
			cmd.Stdout = os.Stdout
		}
		if cmd.Stderr == nil {
			cmd.Stderr = os.Stderr
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(s.paths.LogFile()), 0755); err != nil {
			return nil, nil, types.IOError("failed to create log directory", err)
		}
		logFile, err = os.OpenFile(s.paths.LogFile(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, types.IOError("failed to open node log", err)
		}
		defer logFile.Close()
		cmd.Stdout = logFile
		cmd.Stderr = logFile
		detach(cmd)
		handle.LogPath = s.paths.LogFile()
	}

	s.logger.Debug().Str("binary", binary).Strs("args", args).Msg("Spawning testnet")
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("failed to start %s: %w", NodeBinary, err)
	}
	handle.PID = cmd.Process.Pid
	handle.LaunchedAt = time.Now().UTC()

	if err := writeLock(handle); err != nil {
		_ = kill(handle.PID, !opts.Foreground)
		_ = cmd.Wait()
		return nil, nil, err
	}

	if !opts.Foreground {
		// Reap the child if it exits while this command is still running
		go func() { _ = cmd.Wait() }()
	}
	return handle, cmd, nil
}

// wait blocks until the foreground child exits. An interrupt or context
// cancellation is forwarded as a graceful stop, escalating to a kill after
// the grace period.
func (s *Supervisor) wait(ctx context.Context, cmd *exec.Cmd, handle *types.ProcessHandle) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	logger := s.logger.With().Int("pid", handle.PID).Logger()
	ctxDone := ctx.Done()
	var escalate <-chan time.Time
	stopping := false
	mode := types.StopModeNone

	requestStop := func(reason string) {
		if stopping {
			return
		}
		stopping = true
		mode = types.StopModeGraceful
		logger.Info().Str("reason", reason).Msg("Stopping testnet")
		if err := terminate(handle.PID, false); err != nil {
			logger.Warn().Err(err).Msg("Failed to signal testnet")
		}
		escalate = time.After(s.GracePeriod)
	}

	for {
		select {
		case err := <-done:
			if rerr := removeLock(handle.LockPath); rerr != nil {
				logger.Warn().Err(rerr).Msg("Failed to remove lock file")
			}
			metrics.ProcessStopsTotal.WithLabelValues(string(mode)).Inc()
			s.record(&types.HistoryEntry{
				Kind:     types.HistoryStop,
				Version:  handle.Version,
				PID:      handle.PID,
				Endpoint: handle.Endpoint,
				Detail:   string(mode),
			})
			if stopping {
				return nil
			}
			if err != nil {
				return fmt.Errorf("%s exited: %w", NodeBinary, err)
			}
			return nil
		case sig := <-sigCh:
			requestStop(sig.String())
		case <-ctxDone:
			ctxDone = nil
			requestStop("cancelled")
		case <-escalate:
			escalate = nil
			mode = types.StopModeForced
			logger.Warn().Dur("grace", s.GracePeriod).Msg("Testnet did not stop gracefully, force killing")
			_ = kill(handle.PID, false)
		}
	}
}

// Stop terminates the running node. With force it is killed outright;
// otherwise it is asked to exit and given the grace period to do so. A
// missing or stale lock is a successful no-op.
func (s *Supervisor) Stop(ctx context.Context, force bool) (*StopResult, error) {
	handle, err := readLock(s.paths.LockFile())
	switch {
	case errors.Is(err, types.ErrNotFound):
		metrics.ProcessStopsTotal.WithLabelValues(string(types.StopModeNone)).Inc()
		return &StopResult{Mode: types.StopModeNone}, nil
	case errors.Is(err, errBadLock):
		s.logger.Warn().Str("lock", s.paths.LockFile()).Msg("Removing unreadable lock file")
		metrics.ProcessStopsTotal.WithLabelValues(string(types.StopModeStale)).Inc()
		return &StopResult{Mode: types.StopModeStale}, removeLock(s.paths.LockFile())
	case err != nil:
		return nil, err
	}

	logger := s.logger.With().Int("pid", handle.PID).Logger()
	if !processAlive(handle.PID) {
		logger.Info().Msg("Removing stale lock, process is gone")
		metrics.ProcessStopsTotal.WithLabelValues(string(types.StopModeStale)).Inc()
		return &StopResult{Mode: types.StopModeStale, Handle: handle}, removeLock(handle.LockPath)
	}

	group := !handle.Foreground
	mode := types.StopModeGraceful
	signalFn := terminate
	if force {
		mode = types.StopModeForced
		signalFn = kill
	}
	logger.Debug().Str("mode", string(mode)).Msg("Signalling testnet")
	if err := signalFn(handle.PID, group); err != nil {
		return nil, fmt.Errorf("failed to signal testnet (pid %d): %w", handle.PID, err)
	}

	if !s.waitExit(ctx, handle.PID) {
		metrics.ProcessStopsTotal.WithLabelValues("timeout").Inc()
		return &StopResult{WasRunning: true, Mode: mode, Handle: handle},
			fmt.Errorf("%w: testnet (pid %d) still running after %s; retry with --force",
				types.ErrStopTimeout, handle.PID, s.GracePeriod)
	}

	if err := removeLock(handle.LockPath); err != nil {
		return nil, err
	}
	metrics.ProcessStopsTotal.WithLabelValues(string(mode)).Inc()
	s.record(&types.HistoryEntry{
		Kind:     types.HistoryStop,
		Version:  handle.Version,
		PID:      handle.PID,
		Endpoint: handle.Endpoint,
		Detail:   string(mode),
	})
	logger.Info().Str("mode", string(mode)).Msg("Testnet stopped")
	return &StopResult{WasRunning: true, Mode: mode, Handle: handle}, nil
}

// waitExit polls until pid is gone, the grace period passes or ctx ends
func (s *Supervisor) waitExit(ctx context.Context, pid int) bool {
	ctx, cancel := context.WithTimeout(ctx, s.GracePeriod)
	defer cancel()

	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	for {
		if !processAlive(pid) {
			return true
		}
		select {
		case <-ctx.Done():
			return !processAlive(pid)
		case <-ticker.C:
		}
	}
}

// Status reports the lock and whether its process is alive without
// changing anything on disk.
func (s *Supervisor) Status() (*State, error) {
	handle, err := readLock(s.paths.LockFile())
	switch {
	case errors.Is(err, types.ErrNotFound):
		return &State{}, nil
	case errors.Is(err, errBadLock):
		return &State{Stale: true}, nil
	case err != nil:
		return nil, err
	}

	alive := processAlive(handle.PID)
	return &State{Handle: handle, Running: alive, Stale: !alive}, nil
}

// Exited returns an error wrapping types.ErrProcessExited once the process
// behind handle is gone, and nil while it runs.
func (s *Supervisor) Exited(handle *types.ProcessHandle) error {
	if processAlive(handle.PID) {
		return nil
	}
	return fmt.Errorf("%w: testnet (pid %d) stopped before it became ready, check %s",
		types.ErrProcessExited, handle.PID, handle.LogPath)
}

// Discover returns the handle of a live instance, or nil. A lock naming a
// dead process is removed on the way.
func (s *Supervisor) Discover() (*types.ProcessHandle, error) {
	handle, err := readLock(s.paths.LockFile())
	switch {
	case errors.Is(err, types.ErrNotFound):
		return nil, nil
	case errors.Is(err, errBadLock):
		s.logger.Warn().Str("lock", s.paths.LockFile()).Msg("Removing unreadable lock file")
		return nil, removeLock(s.paths.LockFile())
	case err != nil:
		return nil, err
	}

	if processAlive(handle.PID) {
		return handle, nil
	}
	s.logger.Info().Int("pid", handle.PID).Msg("Removing stale lock, process is gone")
	return nil, removeLock(handle.LockPath)
}

func (s *Supervisor) record(entry *types.HistoryEntry) {
	if s.history == nil {
		return
	}
	if err := s.history.Record(entry); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record run history")
	}
}

// nodeArgs adds --rpc-port when the endpoint asks for a non-default port
func nodeArgs(endpoint string, extra []string) ([]string, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid rpc endpoint %q", endpoint)
	}

	var args []string
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid rpc port in %q", endpoint)
		}
		if port != DefaultPort {
			args = append(args, "--rpc-port", p)
		}
	}
	return append(args, extra...), nil
}

func startResult(err error) string {
	if errors.Is(err, types.ErrAlreadyRunning) {
		return "conflict"
	}
	return "error"
}
