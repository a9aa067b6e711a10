package jamt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuemby/jamctl/pkg/install"
	"github.com/cuemby/jamctl/pkg/log"
	"github.com/cuemby/jamctl/pkg/probe"
	"github.com/cuemby/jamctl/pkg/types"
	"github.com/rs/zerolog"
)

const (
	// CLIBinary submits transactions to the node
	CLIBinary = "jamt"

	// MonitorBinary is the interactive network monitor
	MonitorBinary = "jamtop"

	// DefaultGas is the default minimum gas for work items and memos
	DefaultGas = "1000000"

	// DefaultPingTimeout bounds the reachability check before delegating
	DefaultPingTimeout = 5 * time.Second

	// monitorWaitDelay is how long the monitor gets to restore the terminal
	// after an interrupt before it is killed
	monitorWaitDelay = 3 * time.Second
)

// DeployOptions are the arguments of a create-service call
type DeployOptions struct {
	RPC        string
	Blob       string
	Amount     string
	Memo       string
	MinItemGas string
	MinMemoGas string
	Register   string
}

// Client runs toolchain tools against a node. Every call first checks that
// the node answers so a dead endpoint fails fast.
type Client struct {
	record *types.InstallRecord
	logger zerolog.Logger

	PingTimeout time.Duration
	Stdin       io.Reader
	Stdout      io.Writer
	Stderr      io.Writer
}

// NewClient creates a client using the tools of the active install rec
func NewClient(rec *types.InstallRecord) *Client {
	return &Client{
		record:      rec,
		logger:      log.WithComponent("jamt"),
		PingTimeout: DefaultPingTimeout,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}
}

// CreateService deploys a service blob and returns the tool's output
func (c *Client) CreateService(ctx context.Context, opts DeployOptions) (string, error) {
	if err := checkBlob(opts.Blob); err != nil {
		return "", err
	}
	bin, err := install.BinaryPath(c.record, CLIBinary)
	if err != nil {
		return "", err
	}
	if err := probe.Ping(ctx, opts.RPC, c.PingTimeout); err != nil {
		return "", err
	}

	args := deployArgs(opts)
	c.logger.Debug().Str("binary", bin).Strs("args", args).Msg("Running create-service")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return stdout.String(), fmt.Errorf("deployment failed: %w", err)
		}
		return stdout.String(), fmt.Errorf("deployment failed: %w: %s", err, msg)
	}
	return stdout.String(), nil
}

// Monitor runs the interactive monitor attached to the client's streams
// until it exits.
func (c *Client) Monitor(ctx context.Context, rpc string) error {
	bin, err := install.BinaryPath(c.record, MonitorBinary)
	if err != nil {
		return err
	}
	if err := probe.Ping(ctx, rpc, c.PingTimeout); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, bin, "--rpc", rpc)
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	// Interrupt rather than kill so the monitor can leave raw mode
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = monitorWaitDelay

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			c.logger.Debug().Err(err).Msg("Monitor stopped by interrupt")
			return nil
		}
		return fmt.Errorf("%s exited with error: %w", MonitorBinary, err)
	}
	return nil
}

// deployArgs builds the create-service command line. --rpc is a global
// option and has to precede the subcommand.
func deployArgs(opts DeployOptions) []string {
	amount := opts.Amount
	if amount == "" {
		amount = "0"
	}
	itemGas, memoGas := opts.MinItemGas, opts.MinMemoGas
	if itemGas == "" {
		itemGas = DefaultGas
	}
	if memoGas == "" {
		memoGas = DefaultGas
	}

	args := []string{"--rpc", opts.RPC, "create-service", opts.Blob, amount}
	if opts.Memo != "" {
		args = append(args, opts.Memo)
	}
	args = append(args, "--min-item-gas", itemGas, "--min-memo-gas", memoGas)
	if opts.Register != "" {
		args = append(args, "--register", opts.Register)
	}
	return args
}

func checkBlob(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("service blob %s: %w", path, types.ErrNotFound)
		}
		return types.IOError("failed to stat service blob", err)
	}
	if info.IsDir() || filepath.Ext(path) != ".jam" {
		return fmt.Errorf("expected a .jam file, got: %s", path)
	}
	return nil
}
