package main

import (
	"fmt"
	"time"

	"github.com/cuemby/jamctl/pkg/config"
	"github.com/cuemby/jamctl/pkg/probe"
	"github.com/cuemby/jamctl/pkg/supervisor"
	"github.com/cuemby/jamctl/pkg/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// statusPingTimeout bounds the readiness check done by status
const statusPingTimeout = 2 * time.Second

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the toolchain and testnet status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().String("rpc", "", "RPC endpoint to check (default: the running node's)")
	statusCmd.Flags().StringP("output", "o", "text", "Output format (text, json, yaml)")

	rootCmd.AddCommand(statusCmd)
}

// statusView is the status report
type statusView struct {
	Toolchain *types.InstallRecord `json:"toolchain,omitempty" yaml:"toolchain,omitempty"`
	Process   *types.ProcessHandle `json:"process,omitempty" yaml:"process,omitempty"`
	Running   bool                 `json:"running" yaml:"running"`
	StaleLock bool                 `json:"stale_lock" yaml:"stale_lock"`
	Endpoint  string               `json:"endpoint" yaml:"endpoint"`
	Ready     bool                 `json:"ready" yaml:"ready"`
	Detail    string               `json:"detail,omitempty" yaml:"detail,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("output")
	out := cmd.OutOrStdout()

	env, err := loadEnv()
	if err != nil {
		return err
	}
	cfg, err := config.LoadOrEmpty(env.paths.Root)
	if err != nil {
		return err
	}

	state, err := supervisor.New(env.paths, env.history).Status()
	if err != nil {
		return err
	}

	view := statusView{
		Toolchain: cfg.Active,
		Process:   state.Handle,
		Running:   state.Running,
		StaleLock: state.Stale,
		Endpoint:  viper.GetString("rpc"),
	}
	if view.Endpoint == "" && state.Handle != nil {
		view.Endpoint = state.Handle.Endpoint
	}
	if view.Endpoint == "" {
		view.Endpoint = supervisor.DefaultEndpoint
	}

	if state.Running {
		if err := probe.Ping(cmd.Context(), view.Endpoint, statusPingTimeout); err != nil {
			view.Detail = err.Error()
		} else {
			view.Ready = true
		}
	}

	if format != "text" {
		return printStructured(out, format, view)
	}

	if view.Toolchain != nil {
		fmt.Fprintf(out, "Toolchain: %s (%s)\n", view.Toolchain.Version, view.Toolchain.Path)
	} else {
		fmt.Fprintln(out, "Toolchain: not installed")
	}

	switch {
	case view.Running:
		fmt.Fprintf(out, "Testnet:   running (pid %d, started %s)\n",
			view.Process.PID, view.Process.LaunchedAt.Local().Format(time.RFC1123))
		if view.Ready {
			fmt.Fprintf(out, "Endpoint:  %s (ready)\n", view.Endpoint)
		} else {
			fmt.Fprintf(out, "Endpoint:  %s (not ready: %s)\n", view.Endpoint, view.Detail)
		}
		if view.Process.LogPath != "" {
			fmt.Fprintf(out, "Logs:      %s\n", view.Process.LogPath)
		}
	case view.StaleLock:
		fmt.Fprintln(out, "Testnet:   not running (stale lock; 'jamctl down' cleans it up)")
	default:
		fmt.Fprintln(out, "Testnet:   not running")
	}
	return nil
}
