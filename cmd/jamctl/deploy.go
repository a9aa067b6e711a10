package main

import (
	"fmt"

	"github.com/cuemby/jamctl/pkg/jamt"
	"github.com/cuemby/jamctl/pkg/supervisor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var deployCmd = &cobra.Command{
	Use:   "deploy <service.jam>",
	Short: "Deploy a service blob to the testnet",
	Long: `Deploy a built .jam service blob to a running testnet with jamt.

The RPC endpoint is checked first, so a stopped network fails immediately.

Examples:
  # Deploy to the local testnet
  jamctl deploy target/my-service.jam

  # Deploy with an endowment and register it by name
  jamctl deploy my-service.jam --amount 1000 -r my-service`,
	Args: cobra.ExactArgs(1),
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().String("amount", "0", "Initial endowment for the service")
	deployCmd.Flags().String("memo", "", "Memo for the service endowment")
	deployCmd.Flags().StringP("min-item-gas", "G", jamt.DefaultGas, "Minimum accumulation gas per work item")
	deployCmd.Flags().StringP("min-memo-gas", "g", jamt.DefaultGas, "Minimum on-transfer gas per memo")
	deployCmd.Flags().StringP("register", "r", "", "Register the service with the bootstrap service under this name")
	deployCmd.Flags().String("rpc", supervisor.DefaultEndpoint, "RPC endpoint of the testnet")
	deployCmd.Flags().BoolP("verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	amount, _ := cmd.Flags().GetString("amount")
	memo, _ := cmd.Flags().GetString("memo")
	itemGas, _ := cmd.Flags().GetString("min-item-gas")
	memoGas, _ := cmd.Flags().GetString("min-memo-gas")
	register, _ := cmd.Flags().GetString("register")
	verbose, _ := cmd.Flags().GetBool("verbose")
	rpc := viper.GetString("rpc")
	out := cmd.OutOrStdout()

	env, err := loadEnv()
	if err != nil {
		return err
	}
	_, rec, err := env.activeInstall()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Deploying service: %s\n", args[0])
	if verbose {
		fmt.Fprintf(out, "  RPC: %s\n", rpc)
		fmt.Fprintf(out, "  Amount: %s\n", amount)
		fmt.Fprintf(out, "  Min item gas: %s\n", itemGas)
		fmt.Fprintf(out, "  Min memo gas: %s\n", memoGas)
	}

	client := jamt.NewClient(rec)
	output, err := client.CreateService(cmd.Context(), jamt.DeployOptions{
		RPC:        rpc,
		Blob:       args[0],
		Amount:     amount,
		Memo:       memo,
		MinItemGas: itemGas,
		MinMemoGas: memoGas,
		Register:   register,
	})
	if output != "" {
		fmt.Fprintln(out, output)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "✓ Service deployed successfully")
	return nil
}
