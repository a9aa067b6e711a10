package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/jamctl/pkg/probe"
	"github.com/cuemby/jamctl/pkg/supervisor"
	"github.com/cuemby/jamctl/pkg/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the local JAM testnet",
	Long: `Start the testnet node from the active toolchain.

By default the node runs in the background with its output in the
toolchain's logs directory, and up returns once the RPC endpoint answers.
With --foreground the node's output is shown and Ctrl+C stops it.

Examples:
  # Start in the background and wait until ready
  jamctl up

  # Run attached to the terminal
  jamctl up --foreground`,
	Args: cobra.NoArgs,
	RunE: runUp,
}

func init() {
	upCmd.Flags().Bool("foreground", false, "Run the node in the foreground")
	upCmd.Flags().String("rpc", supervisor.DefaultEndpoint, "RPC endpoint the node serves")
	upCmd.Flags().Duration("timeout", 30*time.Second, "How long to wait for the node to become ready")
	upCmd.Flags().BoolP("verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, args []string) error {
	foreground, _ := cmd.Flags().GetBool("foreground")
	endpoint := viper.GetString("rpc")
	timeout := viper.GetDuration("timeout")
	out := cmd.OutOrStdout()

	env, err := loadEnv()
	if err != nil {
		return err
	}
	_, rec, err := env.activeInstall()
	if err != nil {
		return err
	}

	sup := supervisor.New(env.paths, env.history)
	if foreground {
		_, err := sup.Start(cmd.Context(), rec, supervisor.Options{
			Endpoint:   endpoint,
			Foreground: true,
			Stdout:     out,
			Stderr:     cmd.ErrOrStderr(),
			OnStarted: func(h *types.ProcessHandle) {
				fmt.Fprintf(out, "Testnet %s running (pid %d) at %s. Press Ctrl+C to stop.\n", h.Version, h.PID, h.Endpoint)
			},
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "✓ Testnet stopped")
		return nil
	}

	checker, err := probe.NewChecker(endpoint)
	if err != nil {
		return err
	}

	handle, err := sup.Start(cmd.Context(), rec, supervisor.Options{Endpoint: endpoint})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Started testnet %s (pid %d)\n", handle.Version, handle.PID)
	fmt.Fprintf(out, "  Logs: %s\n", handle.LogPath)
	fmt.Fprintf(out, "Waiting for %s...\n", endpoint)

	_, err = probe.AwaitReady(cmd.Context(), checker, probe.Options{
		Timeout: timeout,
		Abort:   func() error { return sup.Exited(handle) },
	})
	if errors.Is(err, types.ErrProcessExited) {
		// Clears the lock left by the dead node
		_, _ = sup.Discover()
		return err
	}
	if err != nil {
		return fmt.Errorf("%w; the node (pid %d) is still running, check %s or run 'jamctl down'",
			err, handle.PID, handle.LogPath)
	}

	fmt.Fprintf(out, "✓ Testnet ready at %s\n", endpoint)
	return nil
}
