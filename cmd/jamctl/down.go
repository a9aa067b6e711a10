package main

import (
	"fmt"

	"github.com/cuemby/jamctl/pkg/supervisor"
	"github.com/cuemby/jamctl/pkg/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop the local JAM testnet",
	Long: `Stop the testnet node started by 'jamctl up'.

The node is asked to shut down and given a grace period to exit. If it
does not, down fails and leaves it running; retry with --force to kill it.
Running down when nothing is running succeeds.`,
	Args: cobra.NoArgs,
	RunE: runDown,
}

func init() {
	downCmd.Flags().Bool("force", false, "Kill the node immediately")
	downCmd.Flags().Duration("grace", supervisor.DefaultGracePeriod, "How long to wait for the node to exit")
	downCmd.Flags().BoolP("verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(downCmd)
}

func runDown(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	out := cmd.OutOrStdout()

	env, err := loadEnv()
	if err != nil {
		return err
	}

	sup := supervisor.New(env.paths, env.history)
	sup.GracePeriod = viper.GetDuration("grace")

	res, err := sup.Stop(cmd.Context(), force)
	if err != nil {
		return err
	}

	switch res.Mode {
	case types.StopModeNone:
		fmt.Fprintln(out, "No testnet running")
	case types.StopModeStale:
		if res.Handle != nil {
			fmt.Fprintf(out, "Removed stale lock (pid %d was not running)\n", res.Handle.PID)
		} else {
			fmt.Fprintln(out, "Removed unreadable lock file")
		}
	case types.StopModeForced:
		fmt.Fprintf(out, "✓ Testnet killed (pid %d)\n", res.Handle.PID)
	default:
		fmt.Fprintf(out, "✓ Testnet stopped (pid %d)\n", res.Handle.PID)
	}
	return nil
}
