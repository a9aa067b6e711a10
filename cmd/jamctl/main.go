package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cuemby/jamctl/pkg/log"
	"github.com/cuemby/jamctl/pkg/metrics"
	"github.com/cuemby/jamctl/pkg/release"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	writeMetrics()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "jamctl",
	Short: "jamctl - JAM toolchain manager and local testnet supervisor",
	Long: `jamctl installs the polkajam toolchain and runs a local JAM testnet
from it.

It resolves release versions, installs them atomically under a single
toolchain root, starts and stops the testnet node, and checks that the
network answers before deploying services to it.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initRuntime,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"jamctl version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("home", "", "Toolchain root (default $JAMCTL_HOME or ~/.jamctl)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	rootCmd.PersistentFlags().String("metrics-file", "", "Write Prometheus metrics to this textfile on exit")
	rootCmd.PersistentFlags().String("index-url", release.DefaultIndexURL, "Release index API endpoint")
	_ = rootCmd.PersistentFlags().MarkHidden("index-url")
}

// initRuntime binds flags and JAMCTL_* environment variables through viper
// and configures logging before any command runs.
func initRuntime(cmd *cobra.Command, args []string) error {
	viper.SetEnvPrefix("JAMCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	level := log.ParseLevel(viper.GetString("log-level"))
	if verbose, err := cmd.Flags().GetBool("verbose"); err == nil && verbose {
		level = log.DebugLevel
	}
	log.Init(log.Config{
		Level:      level,
		JSONOutput: viper.GetBool("log-json"),
		Output:     cmd.ErrOrStderr(),
	})
	return nil
}

func writeMetrics() {
	path := viper.GetString("metrics-file")
	if path == "" {
		return
	}
	if err := metrics.WriteTextfile(path); err != nil {
		log.Logger.Warn().Err(err).Str("path", path).Msg("Failed to write metrics textfile")
	}
}
