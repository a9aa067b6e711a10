package main

import (
	"fmt"
	"io"
	"os/exec"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cuemby/jamctl/pkg/config"
	"github.com/cuemby/jamctl/pkg/install"
	"github.com/cuemby/jamctl/pkg/release"
	"github.com/cuemby/jamctl/pkg/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// pvmBuildTool is the service compiler; it is installed separately
const pvmBuildTool = "jam-pvm-build"

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Install or update the JAM toolchain",
	Long: `Install a polkajam toolchain release for this platform.

Installing a version that is already installed only switches to it;
nothing is downloaded unless --force is given.

Examples:
  # Install the latest nightly
  jamctl setup

  # Install a specific release
  jamctl setup --version nightly-2025-12-29

  # Show available releases
  jamctl setup --list

  # Show what is installed
  jamctl setup --info --output json`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().Bool("list", false, "List available toolchain releases")
	setupCmd.Flags().Bool("info", false, "Show the installed toolchain")
	setupCmd.Flags().String("version", "latest", "Release tag to install, or 'latest'")
	setupCmd.Flags().Bool("force", false, "Reinstall even if the version is already installed")
	setupCmd.Flags().Bool("update", false, "Update to the latest release")
	setupCmd.Flags().StringP("output", "o", "text", "Output format for --list and --info (text, json, yaml)")
	setupCmd.Flags().BoolP("verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	list, _ := cmd.Flags().GetBool("list")
	info, _ := cmd.Flags().GetBool("info")
	version, _ := cmd.Flags().GetString("version")
	force, _ := cmd.Flags().GetBool("force")
	update, _ := cmd.Flags().GetBool("update")
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

	if info {
		return showInfo(out, cfg, format)
	}

	client := release.NewClient().WithIndexURL(viper.GetString("index-url"))
	if list {
		return listReleases(cmd, client, cfg, format)
	}

	platform, err := types.DetectPlatform()
	if err != nil {
		return err
	}

	inst := install.NewInstaller(cfg, env.history)
	var res *install.Result
	if update {
		fmt.Fprintf(out, "Checking for toolchain updates (%s)...\n", platform)
		res, err = inst.Update(cmd.Context(), client, platform)
	} else {
		fmt.Fprintf(out, "Resolving %s for %s...\n", version, platform)
		desc, rerr := client.Resolve(cmd.Context(), version, platform)
		if rerr != nil {
			return rerr
		}
		if !cfg.IsActive(desc.Version.Tag) || force {
			fmt.Fprintf(out, "Installing %s\n", desc.AssetName)
		}
		res, err = inst.Install(cmd.Context(), desc, force)
	}
	if err != nil {
		return err
	}

	switch res.Outcome {
	case install.OutcomeNoop:
		fmt.Fprintf(out, "✓ %s is already installed and active\n", res.Record.Version)
	case install.OutcomeReactivated:
		fmt.Fprintf(out, "✓ Switched to %s\n", res.Record.Version)
	default:
		fmt.Fprintf(out, "✓ Installed %s to %s\n", res.Record.Version, res.Record.Path)
	}

	if bins, err := install.Binaries(res.Record); err == nil && len(bins) > 0 {
		fmt.Fprintf(out, "  Binaries: %s\n", strings.Join(bins, ", "))
	}
	return nil
}

func listReleases(cmd *cobra.Command, client *release.Client, cfg *types.Config, format string) error {
	infos, err := client.List(cmd.Context(), release.DefaultListLimit, cfg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if format != "text" {
		return printStructured(out, format, infos)
	}

	if len(infos) == 0 {
		fmt.Fprintln(out, "No releases found")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tPUBLISHED\tSTATUS")
	for _, r := range infos {
		status := ""
		switch {
		case r.Active:
			status = "active"
		case r.Installed:
			status = "installed"
		}
		published := "-"
		if !r.PublishedAt.IsZero() {
			published = r.PublishedAt.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Tag, published, status)
	}
	return w.Flush()
}

// toolchainInfo is the --info view of the active install
type toolchainInfo struct {
	Version     string    `json:"version" yaml:"version"`
	Platform    string    `json:"platform" yaml:"platform"`
	Path        string    `json:"path" yaml:"path"`
	InstalledAt time.Time `json:"installed_at" yaml:"installed_at"`
	Binaries    []string  `json:"binaries" yaml:"binaries"`
	PVMBuild    string    `json:"jam_pvm_build,omitempty" yaml:"jam_pvm_build,omitempty"`
}

func showInfo(out io.Writer, cfg *types.Config, format string) error {
	rec, err := release.Info(cfg)
	if err != nil {
		return fmt.Errorf("%w: run 'jamctl setup' to install the toolchain", err)
	}
	bins, err := install.Binaries(rec)
	if err != nil {
		return err
	}

	view := toolchainInfo{
		Version:     rec.Version,
		Platform:    rec.Platform,
		Path:        rec.Path,
		InstalledAt: rec.InstalledAt,
		Binaries:    bins,
	}
	if path, err := exec.LookPath(pvmBuildTool); err == nil {
		view.PVMBuild = path
	}

	if format != "text" {
		return printStructured(out, format, view)
	}

	fmt.Fprintf(out, "Toolchain %s (%s)\n", view.Version, view.Platform)
	fmt.Fprintf(out, "  Path:      %s\n", view.Path)
	fmt.Fprintf(out, "  Installed: %s\n", view.InstalledAt.Local().Format(time.RFC1123))
	fmt.Fprintln(out, "  Binaries:")
	for _, b := range view.Binaries {
		fmt.Fprintf(out, "    %s\n", b)
	}
	if view.PVMBuild != "" {
		fmt.Fprintf(out, "  %s: %s\n", pvmBuildTool, view.PVMBuild)
	} else {
		fmt.Fprintf(out, "  %s: not found on PATH (install it with 'cargo install jam-pvm-build')\n", pvmBuildTool)
	}
	return nil
}
