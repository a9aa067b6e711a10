package main

import (
	"fmt"

	"github.com/cuemby/jamctl/pkg/jamt"
	"github.com/cuemby/jamctl/pkg/supervisor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor the testnet with jamtop",
	Args:  cobra.NoArgs,
	RunE:  runMonitor,
}

func init() {
	monitorCmd.Flags().String("rpc", supervisor.DefaultEndpoint, "RPC endpoint of the testnet")
	monitorCmd.Flags().BoolP("verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	rpc := viper.GetString("rpc")

	env, err := loadEnv()
	if err != nil {
		return err
	}
	_, rec, err := env.activeInstall()
	if err != nil {
		return err
	}

	client := jamt.NewClient(rec)
	client.Stdin = cmd.InOrStdin()
	client.Stdout = cmd.OutOrStdout()
	client.Stderr = cmd.ErrOrStderr()

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting JAM testnet monitor, press 'q' to quit")
	return client.Monitor(cmd.Context(), rpc)
}
